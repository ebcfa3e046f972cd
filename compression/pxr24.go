package compression

import (
	"encoding/binary"
)

// PXR24 is the lossy codec that drops the low eight mantissa bits of FLOAT
// samples. HALF and UINT samples are kept exactly. Each channel run is split
// into byte planes, most significant first, after differencing against the
// previous sample, and the result is deflated.
type PXR24 struct{}

func (PXR24) Compress(src []byte, b Block) ([]byte, error) {
	planes := make([]byte, 0, pxr24Size(b))
	in := 0
	var err error
	b.Runs(func(c Channel, n int) {
		if err != nil {
			return
		}
		if in+n*c.Type.Size() > len(src) {
			err = ErrSizeMismatch
			return
		}
		start := len(planes)
		width := pxr24Width(c.Type)
		planes = planes[:start+n*width]
		out := planes[start:]
		var prev uint32
		for i := 0; i < n; i++ {
			var v uint32
			switch c.Type {
			case PixelTypeHalf:
				v = uint32(binary.LittleEndian.Uint16(src[in:]))
				in += 2
			case PixelTypeFloat:
				v = float24(binary.LittleEndian.Uint32(src[in:]))
				in += 4
			default:
				v = binary.LittleEndian.Uint32(src[in:])
				in += 4
			}
			d := v - prev
			prev = v
			for p := 0; p < width; p++ {
				out[p*n+i] = byte(d >> (8 * (width - 1 - p)))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return zlibCompress(planes, 0)
}

func (PXR24) Decompress(src []byte, b Block, expectedSize int) ([]byte, error) {
	planes := make([]byte, pxr24Size(b))
	if err := zlibDecompress(planes, src); err != nil {
		return nil, err
	}
	dst := make([]byte, expectedSize)
	in, out := 0, 0
	var err error
	b.Runs(func(c Channel, n int) {
		if err != nil {
			return
		}
		if out+n*c.Type.Size() > len(dst) {
			err = ErrSizeMismatch
			return
		}
		width := pxr24Width(c.Type)
		p := planes[in : in+n*width]
		in += n * width
		var v uint32
		for i := 0; i < n; i++ {
			var d uint32
			for k := 0; k < width; k++ {
				d = d<<8 | uint32(p[k*n+i])
			}
			v += d
			switch c.Type {
			case PixelTypeHalf:
				binary.LittleEndian.PutUint16(dst[out:], uint16(v))
				out += 2
			case PixelTypeFloat:
				binary.LittleEndian.PutUint32(dst[out:], v<<8)
				out += 4
			default:
				binary.LittleEndian.PutUint32(dst[out:], v)
				out += 4
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if out != expectedSize {
		return nil, ErrSizeMismatch
	}
	return dst, nil
}

func pxr24Width(t PixelType) int {
	switch t {
	case PixelTypeHalf:
		return 2
	case PixelTypeFloat:
		return 3
	}
	return 4
}

func pxr24Size(b Block) int {
	n := 0
	b.Runs(func(c Channel, samples int) { n += samples * pxr24Width(c.Type) })
	return n
}

// float24 rounds the bits of a float32 to 24 bits: sign, exponent and the
// top 15 mantissa bits. NaNs stay NaN and values that would round up to
// infinity are truncated instead.
func float24(bits uint32) uint32 {
	s := bits & 0x80000000
	e := bits & 0x7F800000
	m := bits & 0x007FFFFF

	if e == 0x7F800000 {
		if m != 0 {
			m >>= 8
			if m == 0 {
				m = 1
			}
			return s>>8 | e>>8 | m
		}
		return s>>8 | e>>8
	}

	i := ((e | m) + (m & 0x80)) >> 8
	if i >= 0x7F8000 {
		i = (e | m) >> 8
	}
	return s>>8 | i
}
