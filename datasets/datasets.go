// Package datasets turns caption annotations and image feature stores into
// fixed-shape samples for vision-language training loops.
//
// A dataset is built eagerly: annotations are indexed and every caption is
// encoded before the constructor returns. After that the dataset is read-only
// and safe for concurrent use. Image features are looked up per access, either
// from a store decoded fully in memory or from a memory-mapped store.
//
// Layout and intended usage:
//
// FoilClassificationDataset
//   - Joins a FOIL-style annotation file ({"annotations": [{image_id, caption,
//     foil}, ...]}) with a feature store keyed by the same image ids.
//   - Sample: region features, an optional spatial slot (always nil here), the
//     encoded caption and the label (1 for a foil caption, 0 otherwise).
//
// Loader wraps any Dataset into gomlx's train.Dataset, yielding batches as
// tensors and owning the shuffle state.
package datasets

import (
	"github.com/Noofbiz/vldata/annotations"
	"github.com/Noofbiz/vldata/features"
)

// Dataset is implemented by every adapter in the package so they can be
// batched and fed to gomlx training loops the same way.
type Dataset interface {
	Name() string
	Len() int
	Example(i int) (Sample, error)
	Batch(indices []int) ([]Sample, error)
}

// Spatials holds per-region box geometry. No adapter fills it yet.
type Spatials struct {
	Boxes features.Array
}

// Sample is one training example.
type Sample struct {
	ImageID  annotations.ImageID
	Features features.Array
	// Spatials is nil for adapters without spatial metadata.
	Spatials *Spatials
	// Caption has exactly the configured max caption length.
	Caption []int
	Label   int
}
