package datasets

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Noofbiz/vldata/annotations"
	"github.com/Noofbiz/vldata/features"
	"github.com/Noofbiz/vldata/tokenizer"
)

// FoilClassificationDataset pairs image features with captions labelled as
// foil (1) or correct (0).
//
// Every caption is encoded at construction. Entries address either distinct
// images or individual captions, see EntryMode.
type FoilClassificationDataset struct {
	index     *annotations.Index
	store     features.Store
	ownsStore bool
	opts      foilOptions
	cacheKey  captionCacheKey
	cacheable bool

	// One slot per annotation record, in index order.
	recordImages []annotations.ImageID
	labels       []int
	captions     [][]int

	// entries[i] is the record position surfaced by Get(i).
	entries []int
}

// NewFoilClassificationDataset indexes the annotation file, opens the feature
// store and encodes every caption with tok.
func NewFoilClassificationDataset(annotationsPath, featuresPath string, tok tokenizer.Tokenizer, opts ...FoilOption) (*FoilClassificationDataset, error) {
	o := defaultFoilOptions()
	for _, opt := range opts {
		opt(&o)
	}

	index, err := annotations.Load(annotationsPath)
	if err != nil {
		return nil, err
	}

	storeOpts := []features.OpenOption{
		features.WithInMemory(o.inMemory),
		features.WithWorkers(o.workers),
	}
	if o.featureCacheEntries > 0 {
		storeOpts = append(storeOpts, features.WithCacheEntries(o.featureCacheEntries))
	}
	store, err := features.Open(featuresPath, storeOpts...)
	if err != nil {
		return nil, err
	}

	ds, err := newFoilDataset(index, store, tok, o)
	if err != nil {
		store.Close()
		return nil, err
	}
	ds.ownsStore = true
	return ds, nil
}

// NewFoilClassificationDatasetFromStore builds the dataset over an index and a
// store that are already open. Close does not close store.
func NewFoilClassificationDatasetFromStore(index *annotations.Index, store features.Store, tok tokenizer.Tokenizer, opts ...FoilOption) (*FoilClassificationDataset, error) {
	o := defaultFoilOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newFoilDataset(index, store, tok, o)
}

func newFoilDataset(index *annotations.Index, store features.Store, tok tokenizer.Tokenizer, o foilOptions) (*FoilClassificationDataset, error) {
	if index == nil || store == nil || tok == nil {
		return nil, errors.New("foil dataset: index, store and tokenizer are required")
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	enc, err := tokenizer.NewEncoder(tok, o.maxCaptionLength, o.paddingIndex)
	if err != nil {
		return nil, fmt.Errorf("foil dataset: %w", err)
	}

	fp, cacheable := tok.(tokenizer.Fingerprinter)
	if !cacheable && o.captionCachePath != "" {
		o.logger.Warn("caption cache disabled, tokenizer has no fingerprint", "path", o.captionCachePath)
		o.captionCachePath = ""
	}

	ds := &FoilClassificationDataset{
		index:        index,
		store:        store,
		opts:         o,
		cacheable:    cacheable,
		recordImages: make([]annotations.ImageID, 0, index.NumRecords()),
		labels:       make([]int, 0, index.NumRecords()),
		entries:      make([]int, 0, index.Len()),
	}
	texts := make([]string, 0, index.NumRecords())
	index.Each(func(id annotations.ImageID, records []annotations.Record) {
		for j, r := range records {
			if j == 0 || o.entryMode == EntryPerCaption {
				ds.entries = append(ds.entries, len(ds.recordImages))
			}
			ds.recordImages = append(ds.recordImages, id)
			ds.labels = append(ds.labels, label(r.Foil))
			texts = append(texts, r.Caption)
		}
	})

	ds.cacheKey = captionCacheKey{
		MaxLength:   o.maxCaptionLength,
		PaddingID:   o.paddingIndex,
		VocabSize:   tok.Vocab().Size(),
		Records:     len(texts),
		Fingerprint: fingerprint(texts),
	}
	if cacheable {
		ds.cacheKey.Tokenizer = fp.Fingerprint()
	}
	if o.captionCachePath != "" {
		captions, err := loadCaptionCache(o.captionCachePath, ds.cacheKey)
		switch {
		case err == nil:
			ds.captions = captions
			o.logger.Info("loaded caption cache", "path", o.captionCachePath, "records", len(captions))
		case errors.Is(err, os.ErrNotExist):
			o.logger.Debug("no caption cache", "path", o.captionCachePath)
		default:
			o.logger.Warn("ignoring caption cache", "path", o.captionCachePath, "err", err)
		}
	}
	if ds.captions == nil {
		ds.captions = encodeCaptions(enc, texts, o.workers)
		if o.captionCachePath != "" {
			if err := writeCaptionCache(o.captionCachePath, ds.cacheKey, ds.captions); err != nil {
				return nil, fmt.Errorf("foil dataset: %w", err)
			}
		}
	}

	o.logger.Info("foil dataset ready",
		"images", index.Len(),
		"captions", len(texts),
		"entries", len(ds.entries),
		"entry_mode", o.entryMode.String(),
		"max_caption_length", o.maxCaptionLength,
		"features", store.Len(),
	)
	return ds, nil
}

func label(foil bool) int {
	if foil {
		return 1
	}
	return 0
}

// encodeCaptions encodes texts in parallel. Each goroutine fills a contiguous
// chunk of the result, so no locking is needed.
func encodeCaptions(enc *tokenizer.Encoder, texts []string, workers int) [][]int {
	out := make([][]int, len(texts))
	chunk := (len(texts) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}

	var wg sync.WaitGroup
	for start := 0; start < len(texts); start += chunk {
		end := min(start+chunk, len(texts))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = enc.Encode(texts[i])
			}
		}()
	}
	wg.Wait()
	return out
}

// Name returns the name of the dataset
func (d *FoilClassificationDataset) Name() string {
	return "FoilClassificationDataset"
}

// Len returns the number of addressable entries: distinct images in
// EntryPerImage mode, annotation records in EntryPerCaption mode.
func (d *FoilClassificationDataset) Len() int {
	return len(d.entries)
}

// Get returns entry i. It fails with an *OutOfRangeError for i outside
// [0, Len) and with an error wrapping features.ErrNotFound when the image has
// no features in the store.
//
// The returned Features are shared with the store and must not be modified.
// Caption is a fresh copy.
func (d *FoilClassificationDataset) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(d.entries)); err != nil {
		return Sample{}, err
	}
	pos := d.entries[i]
	id := d.recordImages[pos]

	arr, err := d.store.Get(int64(id))
	if err != nil {
		return Sample{}, fmt.Errorf("image %d: %w", id, err)
	}
	caption := make([]int, len(d.captions[pos]))
	copy(caption, d.captions[pos])

	return Sample{
		ImageID:  id,
		Features: arr,
		Caption:  caption,
		Label:    d.labels[pos],
	}, nil
}

// Example is Get under the Dataset interface name.
func (d *FoilClassificationDataset) Example(i int) (Sample, error) {
	return d.Get(i)
}

// Batch reads the given entries in order.
func (d *FoilClassificationDataset) Batch(indices []int) ([]Sample, error) {
	out := make([]Sample, len(indices))
	for b, i := range indices {
		s, err := d.Get(i)
		if err != nil {
			return nil, fmt.Errorf("batch position %d: %w", b, err)
		}
		out[b] = s
	}
	return out, nil
}

// Validate checks that every image of the annotation index has features. It
// returns the missing ids in index order and an error wrapping
// features.ErrNotFound when there is at least one.
func (d *FoilClassificationDataset) Validate() ([]annotations.ImageID, error) {
	var missing []annotations.ImageID
	for _, id := range d.index.ImageIDs() {
		if !d.store.Contains(int64(id)) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return missing, fmt.Errorf("%w: %d of %d images have no features", features.ErrNotFound, len(missing), d.index.Len())
	}
	return nil, nil
}

// SaveCaptionCache writes the encoded captions to path so that a later
// construction with WithCaptionCache(path) and the same parameters can skip
// encoding. It fails with ErrCacheUnsupported when the tokenizer does not
// implement tokenizer.Fingerprinter.
func (d *FoilClassificationDataset) SaveCaptionCache(path string) error {
	if !d.cacheable {
		return ErrCacheUnsupported
	}
	return writeCaptionCache(path, d.cacheKey, d.captions)
}

// Index returns the annotation index the dataset was built from.
func (d *FoilClassificationDataset) Index() *annotations.Index {
	return d.index
}

// Store returns the feature store.
func (d *FoilClassificationDataset) Store() features.Store {
	return d.store
}

// MaxCaptionLength returns the length of every encoded caption.
func (d *FoilClassificationDataset) MaxCaptionLength() int {
	return d.opts.maxCaptionLength
}

// EntryMode returns how entries are addressed.
func (d *FoilClassificationDataset) EntryMode() EntryMode {
	return d.opts.entryMode
}

// Close closes the feature store if the dataset opened it.
func (d *FoilClassificationDataset) Close() error {
	if !d.ownsStore {
		return nil
	}
	return d.store.Close()
}
