// Package half implements the IEEE 754 binary16 format used for HALF
// channels in OpenEXR files.
//
// A Half is a sign bit, a 5 bit exponent with bias 15 and a 10 bit
// mantissa. Conversions from float32 round to nearest even.
package half

import (
	"math"
	"strconv"
)

// Half is a binary16 value stored in its raw bit pattern.
type Half uint16

const (
	signMask     = 0x8000
	exponentMask = 0x7C00
	mantissaMask = 0x03FF
	bias         = 15
)

// Well-known values.
const (
	Zero              Half = 0x0000
	NegZero           Half = 0x8000
	One               Half = 0x3C00
	Inf               Half = 0x7C00
	NegInf            Half = 0xFC00
	NaN               Half = 0x7E00
	Max               Half = 0x7BFF // 65504
	SmallestNormal    Half = 0x0400
	SmallestSubnormal Half = 0x0001
)

// FromBits returns the Half with the given bit pattern.
func FromBits(bits uint16) Half { return Half(bits) }

// Bits returns the binary16 bit pattern of h.
func (h Half) Bits() uint16 { return uint16(h) }

// FromFloat32 converts f to the nearest Half, ties to even.
// Values beyond the half range become infinities and NaN stays NaN.
func FromFloat32(f float32) Half {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & signMask
	exp := int(bits>>23) & 0xFF
	man := bits & 0x007FFFFF

	if exp == 0xFF {
		if man == 0 {
			return Half(sign | exponentMask)
		}
		m := uint16(man >> 13)
		if m == 0 {
			m = 0x0200
		}
		return Half(sign | exponentMask | m)
	}
	if exp == 0 {
		// float32 subnormals are far below the half range
		return Half(sign)
	}

	e := exp - 127 + bias
	switch {
	case e >= 0x1F:
		return Half(sign | exponentMask)
	case e <= 0:
		if e < -10 {
			return Half(sign)
		}
		man |= 0x00800000
		shift := uint(14 - e)
		out := man >> shift
		rem := man & (1<<shift - 1)
		halfway := uint32(1) << (shift - 1)
		if rem > halfway || (rem == halfway && out&1 == 1) {
			out++
		}
		// a carry into the exponent field yields the smallest normal
		return Half(sign | uint16(out))
	}

	out := uint32(e)<<10 | man>>13
	rem := man & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && out&1 == 1) {
		out++ // may carry into the exponent, up to infinity
	}
	return Half(sign | uint16(out))
}

// FromFloat64 converts f to the nearest Half.
func FromFloat64(f float64) Half { return FromFloat32(float32(f)) }

// Float32 returns h as a float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&exponentMask) >> 10
	man := uint32(h & mantissaMask)

	switch exp {
	case 0:
		if man == 0 {
			return math.Float32frombits(sign)
		}
		e := uint32(127 - bias + 1)
		for man&0x0400 == 0 {
			man <<= 1
			e--
		}
		man &= mantissaMask
		return math.Float32frombits(sign | e<<23 | man<<13)
	case 0x1F:
		if man == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return math.Float32frombits(sign | 0x7FC00000 | man<<13)
	}
	return math.Float32frombits(sign | (exp+127-bias)<<23 | man<<13)
}

// Float64 returns h as a float64.
func (h Half) Float64() float64 { return float64(h.Float32()) }

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool { return h&exponentMask == exponentMask && h&mantissaMask != 0 }

// IsInf reports whether h is an infinity of either sign.
func (h Half) IsInf() bool { return h&^signMask == exponentMask }

// IsFinite reports whether h is neither infinite nor NaN.
func (h Half) IsFinite() bool { return h&exponentMask != exponentMask }

// IsZero reports whether h is a zero of either sign.
func (h Half) IsZero() bool { return h&^signMask == 0 }

// Neg returns h with its sign flipped.
func (h Half) Neg() Half { return h ^ signMask }

// Abs returns h with its sign cleared.
func (h Half) Abs() Half { return h &^ signMask }

func (h Half) String() string {
	return strconv.FormatFloat(float64(h.Float32()), 'g', -1, 32)
}

// Slice converts src to halves.
func Slice(src []float32) []Half {
	dst := make([]Half, len(src))
	for i, f := range src {
		dst[i] = FromFloat32(f)
	}
	return dst
}

// Float32s converts src to float32 values.
func Float32s(src []Half) []float32 {
	dst := make([]float32, len(src))
	for i, h := range src {
		dst[i] = h.Float32()
	}
	return dst
}
