// Package annotations loads caption annotation files and indexes them by image.
//
// The expected input is a JSON object with an "annotations" array, where each
// element carries at least "image_id", "caption" and "foil". Any other field is
// ignored and dropped from the index.
package annotations

import (
	"fmt"
	"io"
	"os"

	gojson "github.com/goccy/go-json"
)

// ImageID identifies an image. Annotation files and feature stores share this
// key space.
type ImageID int64

// Record is the part of a caption annotation kept in the index.
type Record struct {
	Caption string
	Foil    bool
}

// Index maps image ids to their caption records. Records of one image keep the
// order they had in the source file, and image ids keep the order in which they
// were first seen.
type Index struct {
	order   []ImageID
	entries map[ImageID][]Record
	records int
}

// rawAnnotation mirrors one element of the "annotations" array. Pointers are
// used so missing fields can be told apart from zero values.
type rawAnnotation struct {
	ImageID *ImageID `json:"image_id"`
	Caption *string  `json:"caption"`
	Foil    *bool    `json:"foil"`
}

type rawDocument struct {
	Annotations *[]rawAnnotation `json:"annotations"`
}

// Load reads the annotation file at path and builds its Index.
func Load(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations %s: %w", path, err)
	}
	defer file.Close()

	idx, err := Decode(file)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return idx, nil
}

// Decode builds an Index from a JSON annotation document read from r.
func Decode(r io.Reader) (*Index, error) {
	var doc rawDocument
	if err := gojson.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Msg: "invalid JSON", cause: err}
	}
	if doc.Annotations == nil {
		return nil, &ParseError{Msg: `missing "annotations" key`}
	}

	idx := &Index{entries: make(map[ImageID][]Record)}
	for i, a := range *doc.Annotations {
		switch {
		case a.ImageID == nil:
			return nil, &ParseError{Msg: fmt.Sprintf("annotation %d: missing image_id", i)}
		case a.Caption == nil:
			return nil, &ParseError{Msg: fmt.Sprintf("annotation %d: missing caption", i)}
		case a.Foil == nil:
			return nil, &ParseError{Msg: fmt.Sprintf("annotation %d: missing foil", i)}
		}
		idx.add(*a.ImageID, Record{Caption: *a.Caption, Foil: *a.Foil})
	}
	return idx, nil
}

func (x *Index) add(id ImageID, rec Record) {
	if _, ok := x.entries[id]; !ok {
		x.order = append(x.order, id)
	}
	x.entries[id] = append(x.entries[id], rec)
	x.records++
}

// Len returns the number of distinct image ids.
func (x *Index) Len() int {
	return len(x.order)
}

// NumRecords returns the number of caption records across all images.
func (x *Index) NumRecords() int {
	return x.records
}

// ImageIDs returns the image ids in first-seen order. The slice is a copy.
func (x *Index) ImageIDs() []ImageID {
	out := make([]ImageID, len(x.order))
	copy(out, x.order)
	return out
}

// Records returns the records of one image. The returned slice must not be
// modified.
func (x *Index) Records(id ImageID) ([]Record, bool) {
	recs, ok := x.entries[id]
	return recs, ok
}

// Each calls fn for every image in first-seen order.
func (x *Index) Each(fn func(id ImageID, records []Record)) {
	for _, id := range x.order {
		fn(id, x.entries[id])
	}
}
