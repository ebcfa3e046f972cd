// Package compression implements the chunk codecs of OpenEXR files.
//
// Every codec works on one chunk at a time: the uncompressed bytes of a
// scanline block or tile, laid out row by row, and within a row channel by
// channel in channel list order. A Block describes that layout so codecs
// that care about sample boundaries can find them.
package compression

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrCorrupted is returned when compressed data cannot be decoded.
	ErrCorrupted = errors.New("compression: corrupted data")

	// ErrSizeMismatch is returned when decoded data does not have the
	// expected size.
	ErrSizeMismatch = errors.New("compression: decompressed size mismatch")

	// ErrUnsupported is returned when a codec cannot handle a block layout.
	ErrUnsupported = errors.New("compression: unsupported layout")
)

// PixelType mirrors the channel sample types of the file format.
type PixelType int

const (
	PixelTypeUint  PixelType = 0
	PixelTypeHalf  PixelType = 1
	PixelTypeFloat PixelType = 2
)

// Size returns the number of bytes one sample occupies.
func (t PixelType) Size() int {
	if t == PixelTypeHalf {
		return 2
	}
	return 4
}

// Channel is the per-channel part of a Block layout.
type Channel struct {
	Name      string
	Type      PixelType
	XSampling int
	YSampling int

	// Linear marks perceptually linear samples, which B44 encodes on a
	// logarithmic scale.
	Linear bool
}

// sampled reports whether c has samples in block row y.
func (c Channel) sampled(y int) bool {
	return c.YSampling <= 1 || y%c.YSampling == 0
}

// Block describes the uncompressed layout of one chunk.
type Block struct {
	Width  int
	Height int

	// FirstRow is the row of the chunk's first line, counted from the top
	// of the data window. Subsampled channels only have samples in rows
	// that are a multiple of their YSampling.
	FirstRow int

	Channels []Channel
}

// Runs calls fn for every channel run of the block in storage order, with
// the number of samples in the run.
func (b Block) Runs(fn func(c Channel, samples int)) {
	for row := 0; row < b.Height; row++ {
		y := b.FirstRow + row
		for _, c := range b.Channels {
			if c.sampled(y) {
				fn(c, b.Width/max(c.XSampling, 1))
			}
		}
	}
}

// wordPlane is the sample grid of one channel as 16-bit words. FLOAT and
// UINT samples take two words each, low word first.
type wordPlane struct {
	start  int
	nx, ny int
	size   int
}

func (p wordPlane) words() int { return p.nx * p.ny * p.size }

// wordPlanes lays the channels of b out one after the other and returns
// the total number of words.
func wordPlanes(b Block) ([]wordPlane, int) {
	planes := make([]wordPlane, len(b.Channels))
	n := 0
	for i, c := range b.Channels {
		p := wordPlane{start: n, nx: b.Width / max(c.XSampling, 1), size: c.Type.Size() / 2}
		for row := 0; row < b.Height; row++ {
			if c.sampled(b.FirstRow + row) {
				p.ny++
			}
		}
		planes[i] = p
		n += p.words()
	}
	return planes, n
}

// gatherWords reorders the samples of a chunk into per-channel planes.
func gatherWords(src []byte, b Block, planes []wordPlane, words []uint16) {
	next := make([]int, len(planes))
	for i, p := range planes {
		next[i] = p.start
	}
	pos := 0
	for row := 0; row < b.Height; row++ {
		for i, c := range b.Channels {
			if !c.sampled(b.FirstRow + row) {
				continue
			}
			n := planes[i].nx * planes[i].size
			for j := range words[next[i] : next[i]+n] {
				words[next[i]+j] = binary.LittleEndian.Uint16(src[pos+2*j:])
			}
			next[i] += n
			pos += 2 * n
		}
	}
}

// scatterWords is the inverse of gatherWords.
func scatterWords(words []uint16, b Block, planes []wordPlane, dst []byte) {
	next := make([]int, len(planes))
	for i, p := range planes {
		next[i] = p.start
	}
	pos := 0
	for row := 0; row < b.Height; row++ {
		for i, c := range b.Channels {
			if !c.sampled(b.FirstRow + row) {
				continue
			}
			n := planes[i].nx * planes[i].size
			for _, w := range words[next[i] : next[i]+n] {
				binary.LittleEndian.PutUint16(dst[pos:], w)
				pos += 2
			}
			next[i] += n
		}
	}
}

// Size returns the number of uncompressed bytes in the block.
func (b Block) Size() int {
	n := 0
	b.Runs(func(c Channel, samples int) { n += samples * c.Type.Size() })
	return n
}

// Codec compresses and decompresses single chunks.
//
// Decompress must return exactly expectedSize bytes or fail with
// ErrSizeMismatch or ErrCorrupted. Implementations are safe for concurrent
// use.
type Codec interface {
	Compress(src []byte, b Block) ([]byte, error)
	Decompress(src []byte, b Block, expectedSize int) ([]byte, error)
}

// None stores chunks unchanged.
type None struct{}

func (None) Compress(src []byte, _ Block) ([]byte, error) { return src, nil }

func (None) Decompress(src []byte, _ Block, expectedSize int) ([]byte, error) {
	if len(src) != expectedSize {
		return nil, ErrSizeMismatch
	}
	return src, nil
}
