package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// Loader yields batches of a Dataset for gomlx training loops. It implements
// train.Dataset: inputs are [features, captions] and labels are [labels], see
// FoilBatchFlat.ToGomlxTensors.
//
// The epoch order and shuffle state live in the Loader, so several loaders can
// read the same dataset concurrently.
type Loader struct {
	ds        Dataset
	batchSize int
	dropLast  bool
	shuffle   bool
	rand      *rand.Rand

	mu    sync.Mutex
	order []int
	pos   int
}

var _ train.Dataset = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithShuffle reshuffles the entry order at the start of every epoch using a
// generator seeded with seed.
func WithShuffle(seed int64) LoaderOption {
	return func(l *Loader) {
		l.shuffle = true
		l.rand = rand.New(rand.NewSource(seed))
	}
}

// WithDropLast skips the final batch of an epoch when it is smaller than the
// batch size.
func WithDropLast() LoaderOption {
	return func(l *Loader) { l.dropLast = true }
}

// NewLoader returns a Loader over ds yielding batchSize entries per batch.
func NewLoader(ds Dataset, batchSize int, opts ...LoaderOption) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		order:     make([]int, ds.Len()),
	}
	for _, opt := range opts {
		opt(l)
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l, nil
}

// Name returns the name of the dataset being loaded.
func (l *Loader) Name() string {
	return l.ds.Name()
}

// Reset starts a new epoch.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pos = 0
	if l.shuffle {
		l.rand.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// NextBatch returns the samples of the next batch, or io.EOF at the end of the
// epoch.
func (l *Loader) NextBatch() ([]Sample, error) {
	l.mu.Lock()
	n := len(l.order)
	if l.pos >= n {
		l.mu.Unlock()
		return nil, io.EOF
	}
	end := min(l.pos+l.batchSize, n)
	if l.dropLast && end-l.pos < l.batchSize {
		l.pos = n
		l.mu.Unlock()
		return nil, io.EOF
	}
	indices := make([]int, end-l.pos)
	copy(indices, l.order[l.pos:end])
	l.pos = end
	l.mu.Unlock()

	return l.ds.Batch(indices)
}

// Yield implements train.Dataset.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	samples, err := l.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	flat, err := MakeFoilBatchFlat(samples)
	if err != nil {
		return nil, nil, nil, err
	}
	featuresT, captionsT, labelsT, err := flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return l, []*tensors.Tensor{featuresT, captionsT}, []*tensors.Tensor{labelsT}, nil
}
