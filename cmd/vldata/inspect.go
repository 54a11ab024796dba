package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/vldata/annotations"
	"github.com/Noofbiz/vldata/datasets"
	"github.com/Noofbiz/vldata/features"
	"github.com/Noofbiz/vldata/tokenizer"
)

// storeBacked is implemented by datasets that expose their feature store.
type storeBacked interface {
	Store() features.Store
}

// inspectable is implemented by datasets that expose their collaborators.
type inspectable interface {
	datasets.Dataset
	storeBacked
	Index() *annotations.Index
	Validate() ([]annotations.ImageID, error)
}

type inspectReport struct {
	Name      string
	Entries   int
	Images    int
	Captions  int
	Foils     int
	Features  int
	Missing   []annotations.ImageID
	Unused    int // stored arrays of images that have no annotation
	MaxLength int

	// Lengths holds the encoded length of every caption before truncation.
	Lengths   []int
	Truncated int
	Shortest  int
	Longest   int
	Mean      float64
}

func inspectFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Histogram, "histogram", cfg.Histogram, "write a caption length histogram PNG to this path")
}

func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, _, err := parseConfig("inspect", args, stderr, datasetFlags, inspectFlags)
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

	ds, tok, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	insp, ok := ds.(inspectable)
	if !ok {
		return fmt.Errorf("dataset %q cannot be inspected", cfg.Dataset)
	}
	report, err := buildReport(insp, tok, cfg.MaxCaptionLength)
	if err != nil {
		return err
	}
	report.print(stdout)

	if cfg.Histogram != "" {
		if err := plotCaptionLengths(report, cfg.Histogram); err != nil {
			return err
		}
		logger.Info("wrote caption length histogram", "path", cfg.Histogram)
	}
	if len(report.Missing) > 0 {
		return fmt.Errorf("%d of %d images have no features", len(report.Missing), report.Images)
	}
	return nil
}

func buildReport(ds inspectable, tok tokenizer.Tokenizer, maxLength int) (*inspectReport, error) {
	enc, err := tokenizer.NewEncoder(tok, maxLength, 0)
	if err != nil {
		return nil, err
	}
	index := ds.Index()
	r := &inspectReport{
		Name:      ds.Name(),
		Entries:   ds.Len(),
		Images:    index.Len(),
		Captions:  index.NumRecords(),
		Features:  ds.Store().Len(),
		MaxLength: maxLength,
		Lengths:   make([]int, 0, index.NumRecords()),
	}

	missing, err := ds.Validate()
	if err != nil && !errors.Is(err, features.ErrNotFound) {
		return nil, err
	}
	r.Missing = missing

	unused := ds.Store().IDs()
	for _, id := range index.ImageIDs() {
		unused.Remove(uint64(id))
	}
	r.Unused = int(unused.GetCardinality())

	total := 0
	index.Each(func(_ annotations.ImageID, records []annotations.Record) {
		for _, rec := range records {
			if rec.Foil {
				r.Foils++
			}
			n := enc.Length(rec.Caption)
			r.Lengths = append(r.Lengths, n)
			total += n
			if n > maxLength {
				r.Truncated++
			}
			if len(r.Lengths) == 1 || n < r.Shortest {
				r.Shortest = n
			}
			r.Longest = max(r.Longest, n)
		}
	})
	if len(r.Lengths) > 0 {
		r.Mean = float64(total) / float64(len(r.Lengths))
	}
	return r, nil
}

func (r *inspectReport) print(w io.Writer) {
	fmt.Fprintf(w, "dataset:          %s\n", r.Name)
	fmt.Fprintf(w, "entries:          %d\n", r.Entries)
	fmt.Fprintf(w, "images:           %d\n", r.Images)
	fmt.Fprintf(w, "captions:         %d (%d foil)\n", r.Captions, r.Foils)
	fmt.Fprintf(w, "stored features:  %d\n", r.Features)
	fmt.Fprintf(w, "missing features: %d\n", len(r.Missing))
	for i, id := range r.Missing {
		if i == 10 {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Missing)-10)
			break
		}
		fmt.Fprintf(w, "  image %d\n", id)
	}
	fmt.Fprintf(w, "unused features:  %d\n", r.Unused)
	fmt.Fprintf(w, "caption length:   min %d, max %d, mean %.2f\n", r.Shortest, r.Longest, r.Mean)
	fmt.Fprintf(w, "truncated:        %d captions longer than %d\n", r.Truncated, r.MaxLength)
}

// plotCaptionLengths writes a histogram of caption lengths with a dashed line
// at the truncation length.
func plotCaptionLengths(r *inspectReport, outPath string) error {
	if len(r.Lengths) == 0 {
		return fmt.Errorf("no captions to plot")
	}
	values := make(plotter.Values, len(r.Lengths))
	counts := make(map[int]int)
	peak := 0
	for i, n := range r.Lengths {
		values[i] = float64(n)
		counts[n]++
		peak = max(peak, counts[n])
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: caption lengths ([CLS] and [SEP] included)", r.Name)
	p.X.Label.Text = "tokens"
	p.Y.Label.Text = "captions"

	hist, err := plotter.NewHist(values, r.Longest-r.Shortest+1)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	hist.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	p.Add(hist)

	limit, err := plotter.NewLine(plotter.XYs{
		{X: float64(r.MaxLength), Y: 0},
		{X: float64(r.MaxLength), Y: float64(peak)},
	})
	if err != nil {
		return fmt.Errorf("limit line: %w", err)
	}
	limit.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	limit.Width = vg.Points(1.2)
	limit.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(limit)
	p.Add(plotter.NewGrid())

	if dir := filepath.Dir(outPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
