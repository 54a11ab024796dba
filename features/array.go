package features

import "fmt"

// Array is a dense row-major float32 array, typically [boxes, dim] region
// features of one image.
type Array struct {
	Shape []int
	Data  []float32
}

// NewArray wraps data with the given shape. The product of shape must equal
// len(data).
func NewArray(data []float32, shape ...int) (Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Array{}, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShape, shape, n, len(data))
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Array{Shape: s, Data: data}, nil
}

// Size returns the number of elements described by the shape.
func (a Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// SameShape reports whether a and b have identical shapes.
func (a Array) SameShape(b Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of a.
func (a Array) Clone() Array {
	out := Array{
		Shape: make([]int, len(a.Shape)),
		Data:  make([]float32, len(a.Data)),
	}
	copy(out.Shape, a.Shape)
	copy(out.Data, a.Data)
	return out
}
