package exr

import (
	"math"

	"github.com/fursund/exrs/half"
)

// Sample is a single channel value of one of the three pixel types.
type Sample struct {
	typ  PixelType
	bits uint32
}

// HalfSample returns a HALF sample.
func HalfSample(h half.Half) Sample { return Sample{PixelTypeHalf, uint32(h)} }

// FloatSample returns a FLOAT sample.
func FloatSample(f float32) Sample { return Sample{PixelTypeFloat, math.Float32bits(f)} }

// UintSample returns a UINT sample.
func UintSample(u uint32) Sample { return Sample{PixelTypeUint, u} }

// Type returns the pixel type of s.
func (s Sample) Type() PixelType { return s.typ }

// Bits returns the raw bit pattern of s. HALF samples use the low 16 bits.
func (s Sample) Bits() uint32 { return s.bits }

// Half returns s as a half, converting if needed.
func (s Sample) Half() half.Half { return half.Half(s.convert(PixelTypeHalf).bits) }

// Float32 returns s as a float32, converting if needed.
func (s Sample) Float32() float32 { return math.Float32frombits(s.convert(PixelTypeFloat).bits) }

// Uint32 returns s as a uint32, converting if needed.
func (s Sample) Uint32() uint32 { return s.convert(PixelTypeUint).bits }

// IsNaN reports whether s is a floating point NaN.
func (s Sample) IsNaN() bool {
	switch s.typ {
	case PixelTypeHalf:
		return half.Half(s.bits).IsNaN()
	case PixelTypeFloat:
		f := math.Float32frombits(s.bits)
		return f != f
	}
	return false
}

// Equal reports whether a and b have the same type and either the same bits
// or are both NaN.
func (s Sample) Equal(o Sample) bool {
	if s.typ != o.typ {
		return false
	}
	return s.bits == o.bits || s.IsNaN() && o.IsNaN()
}

// Convert returns s as type to. Only conversions that keep every value
// exact are allowed unless lossy is set: identity and HALF to FLOAT.
func (s Sample) Convert(to PixelType, lossy bool) (Sample, error) {
	if err := checkConversion(s.typ, to, lossy); err != nil {
		return Sample{}, err
	}
	return s.convert(to), nil
}

func checkConversion(from, to PixelType, lossy bool) error {
	if to > PixelTypeFloat {
		return invalidf("unknown pixel type %d", to)
	}
	if from == to || lossy || from == PixelTypeHalf && to == PixelTypeFloat {
		return nil
	}
	return unsupportedf("lossy conversion from %s to %s", from, to)
}

// convert performs any conversion. Floats become unsigned integers by
// truncation, with NaN and negative values going to zero and large values
// clamping to the largest uint32.
func (s Sample) convert(to PixelType) Sample {
	if s.typ == to {
		return s
	}
	switch to {
	case PixelTypeHalf:
		switch s.typ {
		case PixelTypeFloat:
			return HalfSample(half.FromFloat32(math.Float32frombits(s.bits)))
		case PixelTypeUint:
			return HalfSample(half.FromFloat32(float32(s.bits)))
		}
	case PixelTypeFloat:
		switch s.typ {
		case PixelTypeHalf:
			return FloatSample(half.Half(s.bits).Float32())
		case PixelTypeUint:
			return FloatSample(float32(s.bits))
		}
	case PixelTypeUint:
		var f float32
		if s.typ == PixelTypeHalf {
			f = half.Half(s.bits).Float32()
		} else {
			f = math.Float32frombits(s.bits)
		}
		switch {
		case f != f || f <= 0:
			return UintSample(0)
		case f >= math.MaxUint32:
			return UintSample(math.MaxUint32)
		}
		return UintSample(uint32(f))
	}
	return Sample{typ: to}
}
