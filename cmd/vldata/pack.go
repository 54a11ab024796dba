package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/Noofbiz/vldata/features"
)

// packRecord is one line of the JSON-lines feature dump read by pack.
type packRecord struct {
	ImageID *int64    `json:"image_id"`
	Shape   []int     `json:"shape"`
	Data    []float32 `json:"data"`
}

func packFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Input, "input", cfg.Input, "JSON-lines file of {\"image_id\", \"shape\", \"data\"} records ('-' for stdin)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "path of the .vlf store to write")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "block compression: none, lz4 or zstd")
}

func runPack(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, _, err := parseConfig("pack", args, stderr, packFlags)
	if err != nil {
		return err
	}
	if cfg.PrintEffectiveConfig {
		return printConfig(stdout, cfg)
	}
	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Input == "" || cfg.Output == "" {
		return fmt.Errorf("-input and -output are required")
	}
	compression, err := features.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	w, err := features.Create(cfg.Output, features.WithCompression(compression))
	if err != nil {
		return err
	}
	n, err := packRecords(ctx, in, w)
	if err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("packed features", "output", cfg.Output, "images", n, "compression", compression.String())
	return nil
}

// packRecords streams records from r into w and returns how many were written.
func packRecords(ctx context.Context, r io.Reader, w *features.Writer) (int, error) {
	dec := gojson.NewDecoder(r)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return w.Len(), err
		}
		var rec packRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return w.Len(), nil
			}
			return w.Len(), fmt.Errorf("record %d: %w", line, err)
		}
		if rec.ImageID == nil {
			return w.Len(), fmt.Errorf("record %d: missing image_id", line)
		}
		shape := rec.Shape
		if shape == nil {
			shape = []int{len(rec.Data)}
		}
		a, err := features.NewArray(rec.Data, shape...)
		if err != nil {
			return w.Len(), fmt.Errorf("record %d: %w", line, err)
		}
		if err := w.Add(*rec.ImageID, a); err != nil {
			return w.Len(), fmt.Errorf("record %d: %w", line, err)
		}
	}
}
