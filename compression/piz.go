package compression

import (
	"encoding/binary"
	"sync"
)

// PIZ is the wavelet codec of OpenEXR. Samples are split into 16-bit word
// planes per channel, the words present are renumbered densely through a
// lookup table, each plane gets a Haar wavelet transform, and the result
// is Huffman coded. It is lossless.
type PIZ struct{}

const pizBitmapSize = 1 << 16 >> 3

var wordBuffers = sync.Pool{
	New: func() any { return new([]uint16) },
}

func getWords(n int) *[]uint16 {
	p := wordBuffers.Get().(*[]uint16)
	if cap(*p) < n {
		*p = make([]uint16, n)
	}
	*p = (*p)[:n]
	return p
}

// pizBitmap marks the words that occur in words. Zero is never marked.
func pizBitmap(words []uint16) (bitmap []byte, minNonZero, maxNonZero int) {
	bitmap = make([]byte, pizBitmapSize)
	for _, w := range words {
		bitmap[w>>3] |= 1 << (w & 7)
	}
	bitmap[0] &^= 1
	minNonZero, maxNonZero = pizBitmapSize-1, 0
	for i, b := range bitmap {
		if b != 0 {
			minNonZero = min(minNonZero, i)
			maxNonZero = max(maxNonZero, i)
		}
	}
	return bitmap, minNonZero, maxNonZero
}

func pizPresent(bitmap []byte, i int) bool {
	return i == 0 || bitmap[i>>3]&(1<<(i&7)) != 0
}

// pizForwardLUT maps present words to 0..n and returns n.
func pizForwardLUT(bitmap []byte) ([]uint16, uint16) {
	lut := make([]uint16, 1<<16)
	k := 0
	for i := range lut {
		if pizPresent(bitmap, i) {
			lut[i] = uint16(k)
			k++
		}
	}
	return lut, uint16(k - 1)
}

// pizReverseLUT inverts pizForwardLUT.
func pizReverseLUT(bitmap []byte) ([]uint16, uint16) {
	lut := make([]uint16, 1<<16)
	k := 0
	for i := range lut {
		if pizPresent(bitmap, i) {
			lut[k] = uint16(i)
			k++
		}
	}
	return lut, uint16(k - 1)
}

func (PIZ) Compress(src []byte, b Block) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	planes, n := wordPlanes(b)
	if 2*n != len(src) {
		return nil, ErrSizeMismatch
	}
	buf := getWords(n)
	defer wordBuffers.Put(buf)
	words := *buf
	gatherWords(src, b, planes, words)

	bitmap, minNonZero, maxNonZero := pizBitmap(words)
	lut, maxValue := pizForwardLUT(bitmap)
	for i, w := range words {
		words[i] = lut[w]
	}

	out := make([]byte, 0, len(src)/2)
	out = binary.LittleEndian.AppendUint16(out, uint16(minNonZero))
	out = binary.LittleEndian.AppendUint16(out, uint16(maxNonZero))
	if minNonZero <= maxNonZero {
		out = append(out, bitmap[minNonZero:maxNonZero+1]...)
	}
	for _, p := range planes {
		for j := 0; j < p.size; j++ {
			wav2Encode(words[p.start+j:], p.nx, p.size, p.ny, p.nx*p.size, maxValue)
		}
	}
	coded, err := hufCompress(words)
	if err != nil {
		return nil, err
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(coded)))
	return append(out, coded...), nil
}

func (PIZ) Decompress(src []byte, b Block, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrSizeMismatch
		}
		return nil, nil
	}
	planes, n := wordPlanes(b)
	if 2*n != expectedSize {
		return nil, ErrSizeMismatch
	}
	if len(src) < 4 {
		return nil, ErrCorrupted
	}
	minNonZero := int(binary.LittleEndian.Uint16(src))
	maxNonZero := int(binary.LittleEndian.Uint16(src[2:]))
	src = src[4:]
	if maxNonZero >= pizBitmapSize {
		return nil, ErrCorrupted
	}
	bitmap := make([]byte, pizBitmapSize)
	if minNonZero <= maxNonZero {
		k := maxNonZero - minNonZero + 1
		if len(src) < k {
			return nil, ErrCorrupted
		}
		copy(bitmap[minNonZero:], src[:k])
		src = src[k:]
	}
	lut, maxValue := pizReverseLUT(bitmap)

	if len(src) < 4 {
		return nil, ErrCorrupted
	}
	length := binary.LittleEndian.Uint32(src)
	src = src[4:]
	if uint64(length) > uint64(len(src)) {
		return nil, ErrCorrupted
	}
	buf := getWords(n)
	defer wordBuffers.Put(buf)
	words := *buf
	if err := hufUncompress(src[:length], words); err != nil {
		return nil, err
	}
	for _, p := range planes {
		for j := 0; j < p.size; j++ {
			wav2Decode(words[p.start+j:], p.nx, p.size, p.ny, p.nx*p.size, maxValue)
		}
	}
	for i, w := range words {
		words[i] = lut[w]
	}
	out := make([]byte, expectedSize)
	scatterWords(words, b, planes, out)
	return out, nil
}
