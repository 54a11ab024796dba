package datasets

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// EntryMode selects what one dataset index addresses.
type EntryMode int

const (
	// EntryPerImage addresses distinct image ids in first-seen order and
	// surfaces the first annotation of each image. Len counts images.
	EntryPerImage EntryMode = iota
	// EntryPerCaption addresses every annotation record. Len counts captions.
	EntryPerCaption
)

func (m EntryMode) String() string {
	switch m {
	case EntryPerImage:
		return "image"
	case EntryPerCaption:
		return "caption"
	default:
		return fmt.Sprintf("EntryMode(%d)", int(m))
	}
}

// ParseEntryMode parses "image" or "caption".
func ParseEntryMode(s string) (EntryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "image":
		return EntryPerImage, nil
	case "caption":
		return EntryPerCaption, nil
	default:
		return 0, fmt.Errorf("unknown entry mode %q", s)
	}
}

type foilOptions struct {
	paddingIndex        int
	maxCaptionLength    int
	inMemory            bool
	entryMode           EntryMode
	workers             int
	featureCacheEntries int
	captionCachePath    string
	logger              *slog.Logger
}

func defaultFoilOptions() foilOptions {
	return foilOptions{
		paddingIndex:     0,
		maxCaptionLength: 20,
		inMemory:         true,
		entryMode:        EntryPerImage,
		workers:          runtime.NumCPU(),
		logger:           slog.New(slog.DiscardHandler),
	}
}

// FoilOption configures a FoilClassificationDataset.
type FoilOption func(*foilOptions)

// WithPaddingIndex sets the id used to left-pad captions. Defaults to 0.
func WithPaddingIndex(id int) FoilOption {
	return func(o *foilOptions) { o.paddingIndex = id }
}

// WithMaxCaptionLength sets the length of every encoded caption, markers
// included. Defaults to 20.
func WithMaxCaptionLength(n int) FoilOption {
	return func(o *foilOptions) { o.maxCaptionLength = n }
}

// WithImageFeaturesInMemory decodes the whole feature store at construction
// when true (the default). When false the store is memory mapped and read per
// access.
func WithImageFeaturesInMemory(inMemory bool) FoilOption {
	return func(o *foilOptions) { o.inMemory = inMemory }
}

// WithEntryMode selects per-image (default) or per-caption addressing.
func WithEntryMode(m EntryMode) FoilOption {
	return func(o *foilOptions) { o.entryMode = m }
}

// WithWorkers bounds the goroutines used to encode captions and decode the
// feature store. Defaults to runtime.NumCPU().
func WithWorkers(n int) FoilOption {
	return func(o *foilOptions) { o.workers = n }
}

// WithFeatureCacheEntries keeps up to n decoded feature arrays in an LRU when
// features are read lazily.
func WithFeatureCacheEntries(n int) FoilOption {
	return func(o *foilOptions) { o.featureCacheEntries = n }
}

// WithCaptionCache reuses the encoded captions stored at path when they were
// produced with the same parameters and tokenizer, and writes them there
// otherwise. It has no effect when the tokenizer does not implement
// tokenizer.Fingerprinter.
func WithCaptionCache(path string) FoilOption {
	return func(o *foilOptions) { o.captionCachePath = path }
}

// WithLogger sets the logger used during construction. Defaults to discarding.
func WithLogger(l *slog.Logger) FoilOption {
	return func(o *foilOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
