package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// FoilBatchFlat stores a batch of samples in flat contiguous buffers.
type FoilBatchFlat struct {
	Features      []float32 // BatchSize x prod(FeatureShape)
	FeatureShape  []int     // shape of one example's features
	Captions      []int32   // BatchSize x CaptionLength
	Labels        []int32   // BatchSize
	BatchSize     int
	CaptionLength int
}

// MakeFoilBatchFlat flattens samples into contiguous buffers. Every sample must
// have the same feature shape and caption length.
func MakeFoilBatchFlat(samples []Sample) (*FoilBatchFlat, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	first := samples[0]
	featureSize := first.Features.Size()
	captionLength := len(first.Caption)
	b := &FoilBatchFlat{
		Features:      make([]float32, 0, len(samples)*featureSize),
		FeatureShape:  append([]int(nil), first.Features.Shape...),
		Captions:      make([]int32, 0, len(samples)*captionLength),
		Labels:        make([]int32, 0, len(samples)),
		BatchSize:     len(samples),
		CaptionLength: captionLength,
	}

	for i, s := range samples {
		if !s.Features.SameShape(first.Features) {
			return nil, fmt.Errorf("inconsistent feature shapes at example %d: expected %v, got %v",
				i, first.Features.Shape, s.Features.Shape)
		}
		if len(s.Features.Data) != featureSize {
			return nil, fmt.Errorf("example %d: shape %v holds %d values, got %d",
				i, s.Features.Shape, featureSize, len(s.Features.Data))
		}
		if len(s.Caption) != captionLength {
			return nil, fmt.Errorf("inconsistent caption lengths at example %d: expected %d, got %d",
				i, captionLength, len(s.Caption))
		}
		b.Features = append(b.Features, s.Features.Data...)
		for _, id := range s.Caption {
			b.Captions = append(b.Captions, int32(id))
		}
		b.Labels = append(b.Labels, int32(s.Label))
	}
	return b, nil
}

// ToGomlxTensors converts the batch to gomlx tensors: features
// [BatchSize, FeatureShape...] float32, captions [BatchSize, CaptionLength]
// int32 and labels [BatchSize] int32.
func (b *FoilBatchFlat) ToGomlxTensors() (featuresT, captionsT, labelsT *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, nil, fmt.Errorf("empty batch")
	}
	dims := append([]int{b.BatchSize}, b.FeatureShape...)
	featuresT = tensors.FromFlatDataAndDimensions(b.Features, dims...)

	captions := make([][]int32, b.BatchSize)
	for i := range b.BatchSize {
		captions[i] = b.Captions[i*b.CaptionLength : (i+1)*b.CaptionLength]
	}
	captionsT = tensors.FromAnyValue(captions)
	labelsT = tensors.FromAnyValue(b.Labels)
	return featuresT, captionsT, labelsT, nil
}
