// Package exr reads and writes OpenEXR images.
//
// An Image is a list of layers. Each layer has its own channels, data
// window, compression and chunk layout, and stores one or more resolution
// levels. Files are read with a ReadOptions value built from Read:
//
//	img, err := exr.Read().AllLayers().AllChannels().FromFile("beauty.exr")
//
// and written back with img.Write().ToFile(path). Pixel samples live in a
// PixelStorage chosen at read time; FlatChannels keeps every channel in its
// own typed slice and FlatRGBA interleaves the R, G, B and A channels.
package exr

import (
	"github.com/fursund/exrs/internal/xdr"
)

// V2i is a 2D integer vector.
type V2i struct {
	X, Y int
}

// V2f is a 2D float vector.
type V2f struct {
	X, Y float32
}

// V3i is a 3D integer vector.
type V3i struct {
	X, Y, Z int
}

// V3f is a 3D float vector.
type V3f struct {
	X, Y, Z float32
}

// Box2i is an integer rectangle. Both corners are inclusive.
type Box2i struct {
	Min, Max V2i
}

// NewBox2i returns the box with the given origin and size.
func NewBox2i(origin, size V2i) Box2i {
	return Box2i{Min: origin, Max: V2i{origin.X + size.X - 1, origin.Y + size.Y - 1}}
}

func (b Box2i) Width() int  { return b.Max.X - b.Min.X + 1 }
func (b Box2i) Height() int { return b.Max.Y - b.Min.Y + 1 }

// Size returns the width and height of b.
func (b Box2i) Size() V2i { return V2i{b.Width(), b.Height()} }

// Box2f is a float rectangle.
type Box2f struct {
	Min, Max V2f
}

// M33f is a row-major 3x3 matrix.
type M33f [9]float32

// M44f is a row-major 4x4 matrix.
type M44f [16]float32

// Rational is a fraction, used for frame rates.
type Rational struct {
	Num   int32
	Denom uint32
}

// Chromaticities are the CIE xy coordinates of the primaries and white point.
type Chromaticities struct {
	Red, Green, Blue, White V2f
}

// TimeCode is an SMPTE time code in its packed form.
type TimeCode struct {
	TimeAndFlags uint32
	UserData     uint32
}

func readV2i(r *xdr.Reader) (V2i, error) {
	x, err := r.ReadInt32()
	if err != nil {
		return V2i{}, err
	}
	y, err := r.ReadInt32()
	return V2i{int(x), int(y)}, err
}

func writeV2i(w *xdr.BufferWriter, v V2i) {
	w.WriteInt32(int32(v.X))
	w.WriteInt32(int32(v.Y))
}

func readV2f(r *xdr.Reader) (V2f, error) {
	x, err := r.ReadFloat32()
	if err != nil {
		return V2f{}, err
	}
	y, err := r.ReadFloat32()
	return V2f{x, y}, err
}

func writeV2f(w *xdr.BufferWriter, v V2f) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
}

func readV3i(r *xdr.Reader) (V3i, error) {
	xy, err := readV2i(r)
	if err != nil {
		return V3i{}, err
	}
	z, err := r.ReadInt32()
	return V3i{xy.X, xy.Y, int(z)}, err
}

func writeV3i(w *xdr.BufferWriter, v V3i) {
	writeV2i(w, V2i{v.X, v.Y})
	w.WriteInt32(int32(v.Z))
}

func readV3f(r *xdr.Reader) (V3f, error) {
	xy, err := readV2f(r)
	if err != nil {
		return V3f{}, err
	}
	z, err := r.ReadFloat32()
	return V3f{xy.X, xy.Y, z}, err
}

func writeV3f(w *xdr.BufferWriter, v V3f) {
	writeV2f(w, V2f{v.X, v.Y})
	w.WriteFloat32(v.Z)
}

func readBox2i(r *xdr.Reader) (Box2i, error) {
	lo, err := readV2i(r)
	if err != nil {
		return Box2i{}, err
	}
	hi, err := readV2i(r)
	return Box2i{lo, hi}, err
}

func writeBox2i(w *xdr.BufferWriter, b Box2i) {
	writeV2i(w, b.Min)
	writeV2i(w, b.Max)
}

func readBox2f(r *xdr.Reader) (Box2f, error) {
	lo, err := readV2f(r)
	if err != nil {
		return Box2f{}, err
	}
	hi, err := readV2f(r)
	return Box2f{lo, hi}, err
}

func writeBox2f(w *xdr.BufferWriter, b Box2f) {
	writeV2f(w, b.Min)
	writeV2f(w, b.Max)
}

func readFloats(r *xdr.Reader, dst []float32) error {
	for i := range dst {
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func writeFloats(w *xdr.BufferWriter, src []float32) {
	for _, v := range src {
		w.WriteFloat32(v)
	}
}

func readChromaticities(r *xdr.Reader) (Chromaticities, error) {
	var f [8]float32
	if err := readFloats(r, f[:]); err != nil {
		return Chromaticities{}, err
	}
	return Chromaticities{
		Red:   V2f{f[0], f[1]},
		Green: V2f{f[2], f[3]},
		Blue:  V2f{f[4], f[5]},
		White: V2f{f[6], f[7]},
	}, nil
}

func writeChromaticities(w *xdr.BufferWriter, c Chromaticities) {
	for _, v := range []V2f{c.Red, c.Green, c.Blue, c.White} {
		writeV2f(w, v)
	}
}
