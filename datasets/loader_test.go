package datasets

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/Noofbiz/vldata/annotations"
	"github.com/Noofbiz/vldata/features"
)

// newTestDataset builds a per-caption dataset of n captions over images 0..n-1.
func newTestDataset(t *testing.T, n int) *FoilClassificationDataset {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`{"annotations":[`)
	arrays := make(map[int64]features.Array, n)
	for i := range n {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"image_id":%d,"caption":"a dog","foil":%v}`, i, i%2 == 1)
		arrays[int64(i)] = features.Array{Shape: []int{2, 2}, Data: []float32{float32(i), 0, 0, 0}}
	}
	sb.WriteString(`]}`)

	index, err := annotations.Decode(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ds, err := NewFoilClassificationDatasetFromStore(index, features.NewMemoryStore(arrays), testTokenizer(),
		WithEntryMode(EntryPerCaption), WithMaxCaptionLength(6))
	if err != nil {
		t.Fatalf("NewFoilClassificationDatasetFromStore failed: %v", err)
	}
	return ds
}

// drain reads batches until io.EOF and returns the image ids of each batch.
func drain(t *testing.T, l *Loader) [][]annotations.ImageID {
	t.Helper()
	var out [][]annotations.ImageID
	for {
		samples, err := l.NextBatch()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("NextBatch error: %v", err)
		}
		ids := make([]annotations.ImageID, len(samples))
		for i, s := range samples {
			ids[i] = s.ImageID
		}
		out = append(out, ids)
	}
}

func TestLoader_Sequential(t *testing.T) {
	ds := newTestDataset(t, 10)
	l, err := NewLoader(ds, 4)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if l.Name() != ds.Name() {
		t.Fatalf("Name: got %q", l.Name())
	}

	batches := drain(t, l)
	want := [][]annotations.ImageID{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9}}
	if !reflect.DeepEqual(batches, want) {
		t.Fatalf("got %v want %v", batches, want)
	}

	// Still exhausted until Reset.
	if _, err := l.NextBatch(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	l.Reset()
	if again := drain(t, l); !reflect.DeepEqual(again, want) {
		t.Fatalf("after Reset: got %v", again)
	}
}

func TestLoader_DropLast(t *testing.T) {
	l, err := NewLoader(newTestDataset(t, 10), 4, WithDropLast())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if got := drain(t, l); len(got) != 2 {
		t.Fatalf("expected 2 full batches, got %v", got)
	}
}

func TestLoader_Shuffle(t *testing.T) {
	ds := newTestDataset(t, 20)
	epoch := func(l *Loader) []annotations.ImageID {
		var ids []annotations.ImageID
		for _, b := range drain(t, l) {
			ids = append(ids, b...)
		}
		return ids
	}

	a, _ := NewLoader(ds, 3, WithShuffle(42))
	b, _ := NewLoader(ds, 3, WithShuffle(42))
	first, second := epoch(a), epoch(b)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed must give the same order: %v vs %v", first, second)
	}

	sorted := append([]annotations.ImageID(nil), first...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, id := range sorted {
		if id != annotations.ImageID(i) {
			t.Fatalf("epoch must visit every entry once, got %v", first)
		}
	}
	if reflect.DeepEqual(first, sorted) {
		t.Fatalf("shuffled order should differ from identity")
	}

	a.Reset()
	if next := epoch(a); reflect.DeepEqual(next, first) {
		t.Fatalf("Reset should reshuffle")
	}
}

func TestLoader_Yield(t *testing.T) {
	l, err := NewLoader(newTestDataset(t, 5), 2)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	var sizes []int
	for {
		_, inputs, labels, err := l.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Yield error: %v", err)
		}
		if len(inputs) != 2 || len(labels) != 1 {
			t.Fatalf("expected 2 inputs and 1 label tensor, got %d and %d", len(inputs), len(labels))
		}
		dims := inputs[0].Shape().Dimensions
		if len(dims) != 3 || dims[1] != 2 || dims[2] != 2 {
			t.Fatalf("features dims: %v", dims)
		}
		if capDims := inputs[1].Shape().Dimensions; !reflect.DeepEqual(capDims, []int{dims[0], 6}) {
			t.Fatalf("captions dims: %v", capDims)
		}
		sizes = append(sizes, dims[0])
	}
	if !reflect.DeepEqual(sizes, []int{2, 2, 1}) {
		t.Fatalf("batch sizes: got %v", sizes)
	}
}

func TestNewLoader_InvalidBatchSize(t *testing.T) {
	if _, err := NewLoader(newTestDataset(t, 2), 0); err == nil {
		t.Fatalf("expected error for batch size 0")
	}
}
