package features

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Store file layout (little endian):
//
//	blocks:  one compressed block per image, see compressBlock
//	index:   count x [image id i64][block offset u64][block length u32]
//	footer:  [index offset u64][count u32][compression u8][version u8][magic "VLF1"]
//
// A block decompresses to [ndim u32][dims u32 x ndim][float32 x prod(dims)].
const (
	formatVersion  = 1
	formatMagic    = "VLF1"
	indexEntrySize = 20
	footerSize     = 18
	maxArrayRank   = 8
)

type indexEntry struct {
	id     int64
	offset uint64
	length uint32
}

type footer struct {
	indexOffset uint64
	count       uint32
	compression Compression
	version     uint8
}

func encodeArray(a Array) ([]byte, error) {
	if len(a.Shape) > maxArrayRank {
		return nil, fmt.Errorf("%w: rank %d exceeds %d", ErrShape, len(a.Shape), maxArrayRank)
	}
	if a.Size() != len(a.Data) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShape, a.Shape, a.Size(), len(a.Data))
	}
	buf := make([]byte, 4+4*len(a.Shape)+4*len(a.Data))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(a.Shape)))
	pos := 4
	for _, d := range a.Shape {
		if d < 0 || uint64(d) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: dimension %d out of range", ErrShape, d)
		}
		binary.LittleEndian.PutUint32(buf[pos:], uint32(d))
		pos += 4
	}
	for _, v := range a.Data {
		binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(v))
		pos += 4
	}
	return buf, nil
}

func decodeArray(buf []byte) (Array, error) {
	if len(buf) < 4 {
		return Array{}, fmt.Errorf("%w: array header truncated", ErrCorrupt)
	}
	ndim := int(binary.LittleEndian.Uint32(buf[0:]))
	if ndim > maxArrayRank || len(buf) < 4+4*ndim {
		return Array{}, fmt.Errorf("%w: invalid array rank %d", ErrCorrupt, ndim)
	}
	shape := make([]int, ndim)
	n := 1
	pos := 4
	limit := (len(buf) - 4 - 4*ndim) / 4
	for i := range shape {
		d := int(binary.LittleEndian.Uint32(buf[pos:]))
		if d < 0 || (d != 0 && n > limit/d) {
			return Array{}, fmt.Errorf("%w: shape exceeds %d values", ErrCorrupt, limit)
		}
		shape[i] = d
		n *= d
		pos += 4
	}
	if len(buf)-pos != 4*n {
		return Array{}, fmt.Errorf("%w: shape %v needs %d bytes, got %d", ErrCorrupt, shape, 4*n, len(buf)-pos)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
	}
	return Array{Shape: shape, Data: data}, nil
}

func appendIndexEntry(dst []byte, e indexEntry) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(e.id))
	dst = binary.LittleEndian.AppendUint64(dst, e.offset)
	dst = binary.LittleEndian.AppendUint32(dst, e.length)
	return dst
}

func appendFooter(dst []byte, f footer) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, f.indexOffset)
	dst = binary.LittleEndian.AppendUint32(dst, f.count)
	dst = append(dst, byte(f.compression), f.version)
	return append(dst, formatMagic...)
}

func parseFooter(data []byte) (footer, error) {
	if len(data) < footerSize {
		return footer{}, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupt, len(data))
	}
	tail := data[len(data)-footerSize:]
	if string(tail[14:]) != formatMagic {
		return footer{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	f := footer{
		indexOffset: binary.LittleEndian.Uint64(tail[0:]),
		count:       binary.LittleEndian.Uint32(tail[8:]),
		compression: Compression(tail[12]),
		version:     tail[13],
	}
	if f.version != formatVersion {
		return footer{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, f.version)
	}
	if f.compression > CompressionZSTD {
		return footer{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, f.compression)
	}
	tailSize := uint64(f.count)*indexEntrySize + footerSize
	if f.indexOffset > uint64(len(data)) || uint64(len(data))-f.indexOffset != tailSize {
		return footer{}, fmt.Errorf("%w: index does not match file size", ErrCorrupt)
	}
	return f, nil
}

// parseIndex reads the index section described by f. Entries keep file order.
func parseIndex(data []byte, f footer) ([]indexEntry, error) {
	entries := make([]indexEntry, f.count)
	pos := f.indexOffset
	for i := range entries {
		raw := data[pos : pos+indexEntrySize]
		e := indexEntry{
			id:     int64(binary.LittleEndian.Uint64(raw[0:])),
			offset: binary.LittleEndian.Uint64(raw[8:]),
			length: binary.LittleEndian.Uint32(raw[16:]),
		}
		if e.offset > f.indexOffset || uint64(e.length) > f.indexOffset-e.offset {
			return nil, fmt.Errorf("%w: block of image %d out of bounds", ErrCorrupt, e.id)
		}
		entries[i] = e
		pos += indexEntrySize
	}
	return entries, nil
}
