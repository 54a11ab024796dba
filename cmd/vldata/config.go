package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	gojson "github.com/goccy/go-json"

	"github.com/Noofbiz/vldata/datasets"
	"github.com/Noofbiz/vldata/features"
	"github.com/Noofbiz/vldata/tokenizer"
)

// Config is the merged JSON + flag configuration of every subcommand. Flags
// given on the command line take precedence over the JSON file.
type Config struct {
	ConfigPath           string `json:"-"`
	PrintEffectiveConfig bool   `json:"-"`
	LogLevel             string `json:"log_level"`

	// dataset
	Dataset             string `json:"dataset"`
	Annotations         string `json:"annotations"`
	Features            string `json:"features"`
	Vocab               string `json:"vocab"`
	LowerCase           bool   `json:"lower_case"`
	MaxCaptionLength    int    `json:"max_caption_length"`
	PaddingIndex        int    `json:"padding_index"` // -1 resolves [PAD] from the vocabulary
	InMemory            bool   `json:"in_memory"`
	EntryMode           string `json:"entry_mode"`
	Workers             int    `json:"workers"`
	FeatureCacheEntries int    `json:"feature_cache_entries"`
	CaptionCache        string `json:"caption_cache"`

	// inspect
	Histogram string `json:"histogram"`

	// pack
	Input       string `json:"input"`
	Output      string `json:"output"`
	Compression string `json:"compression"`

	// serve
	Addr string `json:"addr"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:         "info",
		Dataset:          datasets.FoilName,
		LowerCase:        true,
		MaxCaptionLength: 20,
		PaddingIndex:     0,
		InMemory:         true,
		EntryMode:        datasets.EntryPerImage.String(),
		Workers:          runtime.NumCPU(),
		Compression:      features.CompressionLZ4.String(),
		Addr:             "127.0.0.1:8093",
	}
}

// flagBinder registers the flags of one subcommand onto cfg.
type flagBinder func(fs *flag.FlagSet, cfg *Config)

func commonFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "path to a JSON config file; flags override its values")
	fs.BoolVar(&cfg.PrintEffectiveConfig, "print-effective-config", cfg.PrintEffectiveConfig, "print the effective (JSON+CLI merged) configuration and exit")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
}

func datasetFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "registered dataset name")
	fs.StringVar(&cfg.Annotations, "annotations", cfg.Annotations, "path to the annotations JSON file")
	fs.StringVar(&cfg.Features, "features", cfg.Features, "path to the .vlf image feature store")
	fs.StringVar(&cfg.Vocab, "vocab", cfg.Vocab, "path to a WordPiece vocab.txt")
	fs.BoolVar(&cfg.LowerCase, "lower-case", cfg.LowerCase, "lower-case and strip accents before WordPiece")
	fs.IntVar(&cfg.MaxCaptionLength, "max-caption-length", cfg.MaxCaptionLength, "length of every encoded caption")
	fs.IntVar(&cfg.PaddingIndex, "padding-index", cfg.PaddingIndex, "id used for left padding (-1 = id of [PAD])")
	fs.BoolVar(&cfg.InMemory, "in-memory", cfg.InMemory, "decode all image features at startup instead of reading them lazily")
	fs.StringVar(&cfg.EntryMode, "entry-mode", cfg.EntryMode, "'image' (one entry per image) or 'caption' (one entry per caption)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "goroutines used for encoding and decoding")
	fs.IntVar(&cfg.FeatureCacheEntries, "feature-cache", cfg.FeatureCacheEntries, "LRU size for lazily read features (0 = none)")
	fs.StringVar(&cfg.CaptionCache, "caption-cache", cfg.CaptionCache, "path to a gob file caching encoded captions")
}

// parseConfig parses args for a subcommand. When -config is given the JSON file
// is loaded over the defaults and args are parsed again on top of it.
func parseConfig(name string, args []string, output io.Writer, binders ...flagBinder) (*Config, []string, error) {
	newFlagSet := func(cfg *Config) *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(output)
		commonFlags(fs, cfg)
		for _, b := range binders {
			b(fs, cfg)
		}
		return fs
	}

	cfg := defaultConfig()
	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if cfg.ConfigPath == "" {
		return &cfg, fs.Args(), nil
	}

	fileCfg := defaultConfig()
	if err := loadConfigFile(cfg.ConfigPath, &fileCfg); err != nil {
		return nil, nil, err
	}
	fs = newFlagSet(&fileCfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &fileCfg, fs.Args(), nil
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()
	dec := gojson.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func printConfig(w io.Writer, cfg *Config) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// loadTokenizer builds the WordPiece tokenizer described by cfg and resolves a
// padding index of -1 to the id of [PAD].
func loadTokenizer(cfg *Config) (*tokenizer.WordPiece, int, error) {
	if cfg.Vocab == "" {
		return nil, 0, fmt.Errorf("-vocab is required")
	}
	vocab, err := tokenizer.LoadVocab(cfg.Vocab)
	if err != nil {
		return nil, 0, err
	}
	tok := tokenizer.NewWordPiece(vocab, tokenizer.WithLowerCase(cfg.LowerCase))
	pad := cfg.PaddingIndex
	if pad < 0 {
		pad = tokenizer.PadID(vocab)
	}
	return tok, pad, nil
}

// openDataset opens the registered dataset named by cfg.
func openDataset(cfg *Config, logger *slog.Logger) (datasets.Adapter, *tokenizer.WordPiece, error) {
	if cfg.Annotations == "" || cfg.Features == "" {
		return nil, nil, fmt.Errorf("-annotations and -features are required")
	}
	mode, err := datasets.ParseEntryMode(cfg.EntryMode)
	if err != nil {
		return nil, nil, err
	}
	tok, pad, err := loadTokenizer(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []datasets.FoilOption{
		datasets.WithPaddingIndex(pad),
		datasets.WithMaxCaptionLength(cfg.MaxCaptionLength),
		datasets.WithImageFeaturesInMemory(cfg.InMemory),
		datasets.WithEntryMode(mode),
		datasets.WithWorkers(cfg.Workers),
		datasets.WithFeatureCacheEntries(cfg.FeatureCacheEntries),
		datasets.WithLogger(logger),
	}
	if cfg.CaptionCache != "" {
		opts = append(opts, datasets.WithCaptionCache(cfg.CaptionCache))
	}
	ds, err := datasets.Open(cfg.Dataset, datasets.Config{
		AnnotationsPath: cfg.Annotations,
		FeaturesPath:    cfg.Features,
		Tokenizer:       tok,
		Options:         opts,
	})
	if err != nil {
		return nil, nil, err
	}
	return ds, tok, nil
}
