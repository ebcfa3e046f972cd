package compression

import (
	"github.com/fursund/exrs/internal/interleave"
	"github.com/fursund/exrs/internal/predictor"
)

const (
	rleMinRun = 3
	rleMaxRun = 127
)

// RLE is the run length codec. Bytes are split into even and odd halves and
// passed through the predictor before run length coding.
type RLE struct{}

func (RLE) Compress(src []byte, _ Block) ([]byte, error) {
	return rleEncode(prepare(src)), nil
}

func (RLE) Decompress(src []byte, _ Block, expectedSize int) ([]byte, error) {
	tmp := make([]byte, expectedSize)
	if err := rleDecode(tmp, src); err != nil {
		return nil, err
	}
	return restore(tmp), nil
}

// prepare returns a reordered, predicted copy of src.
func prepare(src []byte) []byte {
	out := make([]byte, len(src))
	interleave.Split(out, src)
	predictor.Encode(out)
	return out
}

// restore undoes prepare. It modifies tmp.
func restore(tmp []byte) []byte {
	predictor.Decode(tmp)
	out := make([]byte, len(tmp))
	interleave.Merge(out, tmp)
	return out
}

// rleEncode writes runs of three or more equal bytes as a count followed by
// the byte, with count = length-1. Other bytes are written as literal
// sequences introduced by a negative count.
func rleEncode(src []byte) []byte {
	dst := make([]byte, 0, len(src)+len(src)/128+2)
	start, end := 0, 1
	for start < len(src) {
		for end < len(src) && src[start] == src[end] && end-start-1 < rleMaxRun {
			end++
		}
		if end-start >= rleMinRun {
			dst = append(dst, byte(end-start-1), src[start])
			start = end
		} else {
			for end < len(src) &&
				(end+1 >= len(src) || src[end] != src[end+1] || end+2 >= len(src) || src[end+1] != src[end+2]) &&
				end-start < rleMaxRun {
				end++
			}
			n := end - start
			dst = append(dst, byte(-n))
			dst = append(dst, src[start:end]...)
			start = end
		}
		end++
	}
	return dst
}

// rleDecode expands src into dst, which must be filled exactly.
func rleDecode(dst, src []byte) error {
	out := 0
	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++
		if count < 0 {
			n := -count
			if i+n > len(src) {
				return ErrCorrupted
			}
			if out+n > len(dst) {
				return ErrSizeMismatch
			}
			copy(dst[out:], src[i:i+n])
			out += n
			i += n
			continue
		}
		n := count + 1
		if i >= len(src) {
			return ErrCorrupted
		}
		if out+n > len(dst) {
			return ErrSizeMismatch
		}
		v := src[i]
		i++
		for end := out + n; out < end; out++ {
			dst[out] = v
		}
	}
	if out != len(dst) {
		return ErrSizeMismatch
	}
	return nil
}
