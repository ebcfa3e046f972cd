package exr

import (
	"bytes"
	"fmt"

	"github.com/fursund/exrs/internal/xdr"
)

// Compression identifies the codec used for the chunks of a layer.
type Compression uint8

const (
	CompressionNone     Compression = 0
	CompressionRLE      Compression = 1
	CompressionZIPS     Compression = 2
	CompressionZIP      Compression = 3
	CompressionPIZ      Compression = 4
	CompressionPXR24    Compression = 5
	CompressionB44      Compression = 6
	CompressionB44A     Compression = 7
	CompressionDWAA     Compression = 8
	CompressionDWAB     Compression = 9
	CompressionHTJ2K256 Compression = 10
	CompressionHTJ2K32  Compression = 11

	// CompressionZSTD is an extension of this package. Other OpenEXR
	// readers do not understand it.
	CompressionZSTD Compression = 12
)

var compressionNames = [...]string{
	"none", "rle", "zips", "zip", "piz", "pxr24", "b44", "b44a", "dwaa", "dwab", "htj2k256", "htj2k32", "zstd",
}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ScanlinesPerChunk returns the number of rows in one scanline block.
func (c Compression) ScanlinesPerChunk() int {
	switch c {
	case CompressionZIP, CompressionPXR24, CompressionZSTD:
		return 16
	case CompressionPIZ, CompressionB44, CompressionB44A, CompressionDWAA, CompressionHTJ2K32:
		return 32
	case CompressionDWAB, CompressionHTJ2K256:
		return 256
	}
	return 1
}

// IsLossy reports whether the codec may change sample values.
func (c Compression) IsLossy() bool {
	switch c {
	case CompressionPXR24, CompressionB44, CompressionB44A, CompressionDWAA, CompressionDWAB:
		return true
	}
	return false
}

// LineOrder is the order in which blocks are stored in a file.
type LineOrder uint8

const (
	LineOrderIncreasing LineOrder = 0
	LineOrderDecreasing LineOrder = 1
	LineOrderRandom     LineOrder = 2
)

func (o LineOrder) String() string {
	switch o {
	case LineOrderIncreasing:
		return "increasing_y"
	case LineOrderDecreasing:
		return "decreasing_y"
	case LineOrderRandom:
		return "random_y"
	}
	return fmt.Sprintf("lineorder(%d)", uint8(o))
}

// EnvMap is the value of the envmap attribute.
type EnvMap uint8

const (
	EnvMapLatLong EnvMap = 0
	EnvMapCube    EnvMap = 1
)

// LevelMode selects which resolution levels a tiled layer stores.
type LevelMode uint8

const (
	LevelModeOne    LevelMode = 0
	LevelModeMipmap LevelMode = 1
	LevelModeRipmap LevelMode = 2
)

// LevelRoundingMode selects how level sizes are rounded when halving.
type LevelRoundingMode uint8

const (
	LevelRoundDown LevelRoundingMode = 0
	LevelRoundUp   LevelRoundingMode = 1
)

// TileDescription is the value of the tiles attribute.
type TileDescription struct {
	XSize        uint32
	YSize        uint32
	Mode         LevelMode
	RoundingMode LevelRoundingMode
}

// AttributeType is the type name stored with every attribute.
type AttributeType string

const (
	AttrTypeBox2i          AttributeType = "box2i"
	AttrTypeBox2f          AttributeType = "box2f"
	AttrTypeChlist         AttributeType = "chlist"
	AttrTypeChromaticities AttributeType = "chromaticities"
	AttrTypeCompression    AttributeType = "compression"
	AttrTypeDouble         AttributeType = "double"
	AttrTypeEnvmap         AttributeType = "envmap"
	AttrTypeFloat          AttributeType = "float"
	AttrTypeFloatVector    AttributeType = "floatvector"
	AttrTypeInt            AttributeType = "int"
	AttrTypeLineOrder      AttributeType = "lineOrder"
	AttrTypeM33f           AttributeType = "m33f"
	AttrTypeM44f           AttributeType = "m44f"
	AttrTypeRational       AttributeType = "rational"
	AttrTypeString         AttributeType = "string"
	AttrTypeStringVector   AttributeType = "stringvector"
	AttrTypeTileDesc       AttributeType = "tiledesc"
	AttrTypeTimecode       AttributeType = "timecode"
	AttrTypeV2i            AttributeType = "v2i"
	AttrTypeV2f            AttributeType = "v2f"
	AttrTypeV3i            AttributeType = "v3i"
	AttrTypeV3f            AttributeType = "v3f"
)

// Attribute is a named, typed header value.
//
// Value holds the Go representation of Type: int32, float32, float64,
// string, []string, []float32, Box2i, Box2f, V2i, V2f, V3i, V3f, M33f,
// M44f, Rational, Chromaticities, TimeCode, Compression, LineOrder,
// EnvMap, TileDescription or []Channel. Attributes of any other type keep
// their encoded bytes as a []byte.
type Attribute struct {
	Name  string
	Type  AttributeType
	Value any
}

// Attributes is an attribute list. Reading preserves file order; writing
// sorts attributes by name.
type Attributes []Attribute

// Get returns the attribute with the given name.
func (a Attributes) Get(name string) (Attribute, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Value returns the value of the named attribute, or nil.
func (a Attributes) Value(name string) any {
	attr, _ := a.Get(name)
	return attr.Value
}

// Put replaces the attribute with the same name, or appends attr.
func (a *Attributes) Put(attr Attribute) {
	for i := range *a {
		if (*a)[i].Name == attr.Name {
			(*a)[i] = attr
			return
		}
	}
	*a = append(*a, attr)
}

// Set stores value under name, deriving the attribute type from the Go type
// of value.
func (a *Attributes) Set(name string, value any) error {
	typ, ok := attributeTypeOf(value)
	if !ok {
		return unsupportedf("attribute %q: no attribute type for %T", name, value)
	}
	a.Put(Attribute{Name: name, Type: typ, Value: value})
	return nil
}

// Delete removes the named attribute and reports whether it was present.
func (a *Attributes) Delete(name string) bool {
	for i := range *a {
		if (*a)[i].Name == name {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a copy of a that shares no slices with it.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for i, attr := range a {
		switch v := attr.Value.(type) {
		case []byte:
			attr.Value = bytes.Clone(v)
		case []string:
			attr.Value = append([]string(nil), v...)
		case []float32:
			attr.Value = append([]float32(nil), v...)
		case []Channel:
			attr.Value = append([]Channel(nil), v...)
		}
		out[i] = attr
	}
	return out
}

func attributeTypeOf(v any) (AttributeType, bool) {
	switch v.(type) {
	case int32:
		return AttrTypeInt, true
	case float32:
		return AttrTypeFloat, true
	case float64:
		return AttrTypeDouble, true
	case string:
		return AttrTypeString, true
	case []string:
		return AttrTypeStringVector, true
	case []float32:
		return AttrTypeFloatVector, true
	case Box2i:
		return AttrTypeBox2i, true
	case Box2f:
		return AttrTypeBox2f, true
	case V2i:
		return AttrTypeV2i, true
	case V2f:
		return AttrTypeV2f, true
	case V3i:
		return AttrTypeV3i, true
	case V3f:
		return AttrTypeV3f, true
	case M33f:
		return AttrTypeM33f, true
	case M44f:
		return AttrTypeM44f, true
	case Rational:
		return AttrTypeRational, true
	case Chromaticities:
		return AttrTypeChromaticities, true
	case TimeCode:
		return AttrTypeTimecode, true
	case Compression:
		return AttrTypeCompression, true
	case LineOrder:
		return AttrTypeLineOrder, true
	case EnvMap:
		return AttrTypeEnvmap, true
	case TileDescription:
		return AttrTypeTileDesc, true
	case []Channel:
		return AttrTypeChlist, true
	}
	return "", false
}

// readAttribute reads one attribute. It returns ok == false when it meets
// the empty name that terminates a header.
func readAttribute(r *xdr.Reader) (attr Attribute, ok bool, err error) {
	name, err := r.ReadString()
	if err != nil {
		return Attribute{}, false, err
	}
	if name == "" {
		return Attribute{}, false, nil
	}
	typ, err := r.ReadString()
	if err != nil {
		return Attribute{}, false, err
	}
	size, err := r.ReadInt32()
	if err != nil {
		return Attribute{}, false, err
	}
	if size < 0 {
		return Attribute{}, false, invalidf("attribute %q has negative size %d", name, size)
	}
	data, err := r.Next(int(size))
	if err != nil {
		return Attribute{}, false, err
	}
	value, err := decodeAttributeValue(AttributeType(typ), data)
	if err != nil {
		return Attribute{}, false, invalidf("attribute %q of type %s: %v", name, typ, err)
	}
	return Attribute{Name: name, Type: AttributeType(typ), Value: value}, true, nil
}

// decodeAttributeValue parses data, which must be consumed completely.
func decodeAttributeValue(typ AttributeType, data []byte) (any, error) {
	r := xdr.NewReader(data)
	var v any
	var err error
	switch typ {
	case AttrTypeInt:
		v, err = r.ReadInt32()
	case AttrTypeFloat:
		v, err = r.ReadFloat32()
	case AttrTypeDouble:
		v, err = r.ReadFloat64()
	case AttrTypeString:
		return string(data), nil
	case AttrTypeStringVector:
		var list []string
		for r.Len() > 0 && err == nil {
			var n int32
			var s []byte
			if n, err = r.ReadInt32(); err == nil {
				s, err = r.Next(int(n))
				list = append(list, string(s))
			}
		}
		v = list
	case AttrTypeFloatVector:
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("size %d is not a multiple of 4", len(data))
		}
		list := make([]float32, len(data)/4)
		err = readFloats(r, list)
		v = list
	case AttrTypeBox2i:
		v, err = readBox2i(r)
	case AttrTypeBox2f:
		v, err = readBox2f(r)
	case AttrTypeV2i:
		v, err = readV2i(r)
	case AttrTypeV2f:
		v, err = readV2f(r)
	case AttrTypeV3i:
		v, err = readV3i(r)
	case AttrTypeV3f:
		v, err = readV3f(r)
	case AttrTypeM33f:
		var m M33f
		err = readFloats(r, m[:])
		v = m
	case AttrTypeM44f:
		var m M44f
		err = readFloats(r, m[:])
		v = m
	case AttrTypeRational:
		var num int32
		var den uint32
		if num, err = r.ReadInt32(); err == nil {
			den, err = r.ReadUint32()
		}
		v = Rational{num, den}
	case AttrTypeChromaticities:
		v, err = readChromaticities(r)
	case AttrTypeTimecode:
		var tc TimeCode
		if tc.TimeAndFlags, err = r.ReadUint32(); err == nil {
			tc.UserData, err = r.ReadUint32()
		}
		v = tc
	case AttrTypeCompression:
		var b byte
		b, err = r.ReadByte()
		v = Compression(b)
	case AttrTypeLineOrder:
		var b byte
		b, err = r.ReadByte()
		v = LineOrder(b)
	case AttrTypeEnvmap:
		var b byte
		b, err = r.ReadByte()
		v = EnvMap(b)
	case AttrTypeTileDesc:
		v, err = readTileDescription(r)
	case AttrTypeChlist:
		v, err = readChannelList(r)
	default:
		return bytes.Clone(data), nil
	}
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d unused bytes", r.Len())
	}
	return v, nil
}

// writeAttribute writes name, type, size and value of attr.
func writeAttribute(w *xdr.BufferWriter, attr Attribute) error {
	w.WriteString(attr.Name)
	w.WriteString(string(attr.Type))
	sizeAt := w.Len()
	w.WriteInt32(0)
	if err := encodeAttributeValue(w, attr); err != nil {
		return err
	}
	w.PutUint32(sizeAt, uint32(w.Len()-sizeAt-4))
	return nil
}

func encodeAttributeValue(w *xdr.BufferWriter, attr Attribute) error {
	mismatch := func() error {
		return invalidf("attribute %q of type %s holds a %T", attr.Name, attr.Type, attr.Value)
	}
	if raw, ok := attr.Value.([]byte); ok {
		if _, known := attributeTypeOf(zeroValue(attr.Type)); known {
			return mismatch()
		}
		w.WriteBytes(raw)
		return nil
	}
	if typ, ok := attributeTypeOf(attr.Value); !ok || typ != attr.Type {
		return mismatch()
	}
	switch v := attr.Value.(type) {
	case int32:
		w.WriteInt32(v)
	case float32:
		w.WriteFloat32(v)
	case float64:
		w.WriteFloat64(v)
	case string:
		w.WriteBytes([]byte(v))
	case []string:
		for _, s := range v {
			w.WriteInt32(int32(len(s)))
			w.WriteBytes([]byte(s))
		}
	case []float32:
		writeFloats(w, v)
	case Box2i:
		writeBox2i(w, v)
	case Box2f:
		writeBox2f(w, v)
	case V2i:
		writeV2i(w, v)
	case V2f:
		writeV2f(w, v)
	case V3i:
		writeV3i(w, v)
	case V3f:
		writeV3f(w, v)
	case M33f:
		writeFloats(w, v[:])
	case M44f:
		writeFloats(w, v[:])
	case Rational:
		w.WriteInt32(v.Num)
		w.WriteUint32(v.Denom)
	case Chromaticities:
		writeChromaticities(w, v)
	case TimeCode:
		w.WriteUint32(v.TimeAndFlags)
		w.WriteUint32(v.UserData)
	case Compression:
		w.WriteByte(byte(v))
	case LineOrder:
		w.WriteByte(byte(v))
	case EnvMap:
		w.WriteByte(byte(v))
	case TileDescription:
		writeTileDescription(w, v)
	case []Channel:
		writeChannelList(w, v)
	}
	return nil
}

// zeroValue returns a value of the Go type used for typ, or nil when typ is
// not decoded by this package.
func zeroValue(typ AttributeType) any {
	switch typ {
	case AttrTypeInt:
		return int32(0)
	case AttrTypeFloat:
		return float32(0)
	case AttrTypeDouble:
		return float64(0)
	case AttrTypeString:
		return ""
	case AttrTypeStringVector:
		return []string(nil)
	case AttrTypeFloatVector:
		return []float32(nil)
	case AttrTypeBox2i:
		return Box2i{}
	case AttrTypeBox2f:
		return Box2f{}
	case AttrTypeV2i:
		return V2i{}
	case AttrTypeV2f:
		return V2f{}
	case AttrTypeV3i:
		return V3i{}
	case AttrTypeV3f:
		return V3f{}
	case AttrTypeM33f:
		return M33f{}
	case AttrTypeM44f:
		return M44f{}
	case AttrTypeRational:
		return Rational{}
	case AttrTypeChromaticities:
		return Chromaticities{}
	case AttrTypeTimecode:
		return TimeCode{}
	case AttrTypeCompression:
		return Compression(0)
	case AttrTypeLineOrder:
		return LineOrder(0)
	case AttrTypeEnvmap:
		return EnvMap(0)
	case AttrTypeTileDesc:
		return TileDescription{}
	case AttrTypeChlist:
		return []Channel(nil)
	}
	return nil
}

func readTileDescription(r *xdr.Reader) (TileDescription, error) {
	var td TileDescription
	var err error
	if td.XSize, err = r.ReadUint32(); err != nil {
		return td, err
	}
	if td.YSize, err = r.ReadUint32(); err != nil {
		return td, err
	}
	mode, err := r.ReadByte()
	td.Mode = LevelMode(mode & 0x0F)
	td.RoundingMode = LevelRoundingMode(mode >> 4)
	return td, err
}

func writeTileDescription(w *xdr.BufferWriter, td TileDescription) {
	w.WriteUint32(td.XSize)
	w.WriteUint32(td.YSize)
	w.WriteByte(byte(td.Mode)&0x0F | byte(td.RoundingMode)<<4)
}
