package exr

import (
	"slices"
	"strings"

	"github.com/fursund/exrs/internal/xdr"
)

const (
	magicNumber = 20000630

	fileVersion = 2

	flagTiled     = 0x200
	flagLongNames = 0x400
	flagDeep      = 0x800
	flagMultipart = 0x1000
	knownFlags    = flagTiled | flagLongNames | flagDeep | flagMultipart

	shortNameLimit = 31
	longNameLimit  = 255
)

// Part type names stored in the type attribute.
const (
	TypeScanline     = "scanlineimage"
	TypeTiled        = "tiledimage"
	TypeDeepScanline = "deepscanline"
	TypeDeepTiled    = "deeptile"
)

// reservedAttributes are the attributes a Header keeps in dedicated fields.
var reservedAttributes = map[string]bool{
	"channels":           true,
	"compression":        true,
	"dataWindow":         true,
	"displayWindow":      true,
	"lineOrder":          true,
	"pixelAspectRatio":   true,
	"screenWindowCenter": true,
	"screenWindowWidth":  true,
	"tiles":              true,
	"name":               true,
	"type":               true,
	"version":            true,
	"chunkCount":         true,
	"maxSamplesPerPixel": true,
}

// IsReservedAttribute reports whether name is stored in a Header field
// rather than in Header.Attributes.
func IsReservedAttribute(name string) bool { return reservedAttributes[name] }

// Header is the parsed header of one part of a file.
type Header struct {
	// Name is the part name. It is empty for single-part files without a
	// name attribute.
	Name string

	// Type is one of the Type constants.
	Type string

	Channels           []Channel
	Compression        Compression
	DataWindow         Box2i
	DisplayWindow      Box2i
	LineOrder          LineOrder
	PixelAspectRatio   float32
	ScreenWindowCenter V2f
	ScreenWindowWidth  float32

	// Tiles is nil for scanline parts.
	Tiles *TileDescription

	// ChunkCount is the declared number of chunks, or 0 if the header
	// does not declare one.
	ChunkCount int

	// Deep marks parts holding deep data. Their pixels cannot be read.
	Deep bool

	// Attributes holds every attribute without a dedicated field, in file
	// order.
	Attributes Attributes
}

// Tiled reports whether the part is stored in tiles.
func (h *Header) Tiled() bool { return h.Tiles != nil }

// headerSet is the result of parsing the header block of a file.
type headerSet struct {
	headers   []*Header
	multipart bool
	end       int // offset of the first offset table
}

// parseHeaders parses magic number, version and headers from the start of
// a file. It returns xdr.ErrShortBuffer when data ends too early, so the
// caller can retry with more data.
func parseHeaders(data []byte, pedantic bool) (*headerSet, error) {
	r := xdr.NewReader(data)
	magic, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, invalidf("not an OpenEXR file")
	}
	version, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if version&0xFF != fileVersion {
		return nil, unsupportedf("file format version %d", version&0xFF)
	}
	flags := version &^ 0xFF
	if flags&^knownFlags != 0 {
		return nil, unsupportedf("version flags %#x", flags&^knownFlags)
	}
	multipart := flags&flagMultipart != 0
	if multipart && flags&flagTiled != 0 {
		return nil, invalidf("multipart file with single-part tiled flag")
	}
	longNames := flags&flagLongNames != 0

	set := &headerSet{multipart: multipart}
	for {
		attrs, err := readAttributeList(r, longNames, pedantic)
		if err != nil {
			return nil, err
		}
		if len(attrs) == 0 {
			if !multipart {
				return nil, invalidf("empty header")
			}
			break
		}
		h, err := newHeader(attrs, multipart, flags&flagTiled != 0, flags&flagDeep != 0)
		if err != nil {
			return nil, err
		}
		set.headers = append(set.headers, h)
		if !multipart {
			break
		}
	}
	if len(set.headers) == 0 {
		return nil, invalidf("file has no parts")
	}
	if multipart {
		seen := make(map[string]bool, len(set.headers))
		for _, h := range set.headers {
			if seen[h.Name] {
				return nil, invalidf("duplicate part name %q", h.Name)
			}
			seen[h.Name] = true
		}
	}
	set.end = r.Pos()
	return set, nil
}

// readAttributeList reads attributes up to and including the terminating
// null byte.
func readAttributeList(r *xdr.Reader, longNames, pedantic bool) (Attributes, error) {
	var attrs Attributes
	for {
		attr, ok, err := readAttribute(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			return attrs, nil
		}
		if len(attr.Name) > longNameLimit || len(attr.Type) > longNameLimit {
			return nil, invalidf("attribute name %.32q... too long", attr.Name)
		}
		if pedantic {
			if !longNames && (len(attr.Name) > shortNameLimit || len(attr.Type) > shortNameLimit) {
				return nil, invalidf("attribute %q: long name without long names flag", attr.Name)
			}
			if _, dup := attrs.Get(attr.Name); dup {
				return nil, invalidf("duplicate attribute %q", attr.Name)
			}
		}
		attrs.Put(attr)
	}
}

// required returns the value of a required attribute with the expected
// Go type.
func required[T any](attrs Attributes, name string) (T, error) {
	var zero T
	attr, ok := attrs.Get(name)
	if !ok {
		return zero, invalidf("missing required attribute %q", name)
	}
	v, ok := attr.Value.(T)
	if !ok {
		return zero, invalidf("attribute %q has type %s", name, attr.Type)
	}
	return v, nil
}

// optional is required for attributes that may be absent.
func optional[T any](attrs Attributes, name string) (T, bool, error) {
	if _, ok := attrs.Get(name); !ok {
		var zero T
		return zero, false, nil
	}
	v, err := required[T](attrs, name)
	return v, err == nil, err
}

// newHeader builds and validates a Header from a parsed attribute list.
func newHeader(attrs Attributes, multipart, tiledFlag, deepFlag bool) (*Header, error) {
	h := &Header{}
	var err error
	if h.Channels, err = required[[]Channel](attrs, "channels"); err != nil {
		return nil, err
	}
	if h.Compression, err = required[Compression](attrs, "compression"); err != nil {
		return nil, err
	}
	if h.DataWindow, err = required[Box2i](attrs, "dataWindow"); err != nil {
		return nil, err
	}
	if h.DisplayWindow, err = required[Box2i](attrs, "displayWindow"); err != nil {
		return nil, err
	}
	if h.LineOrder, err = required[LineOrder](attrs, "lineOrder"); err != nil {
		return nil, err
	}
	if h.PixelAspectRatio, err = required[float32](attrs, "pixelAspectRatio"); err != nil {
		return nil, err
	}
	if h.ScreenWindowCenter, err = required[V2f](attrs, "screenWindowCenter"); err != nil {
		return nil, err
	}
	if h.ScreenWindowWidth, err = required[float32](attrs, "screenWindowWidth"); err != nil {
		return nil, err
	}

	name, hasName, err := optional[string](attrs, "name")
	if err != nil {
		return nil, err
	}
	typ, hasType, err := optional[string](attrs, "type")
	if err != nil {
		return nil, err
	}
	count, hasCount, err := optional[int32](attrs, "chunkCount")
	if err != nil {
		return nil, err
	}
	tiles, hasTiles, err := optional[TileDescription](attrs, "tiles")
	if err != nil {
		return nil, err
	}
	h.Name = name

	switch {
	case multipart:
		if !hasName {
			return nil, invalidf("multipart header without name")
		}
		if !hasType {
			return nil, invalidf("part %q: missing required attribute \"type\"", name)
		}
		if !hasCount {
			return nil, invalidf("part %q: missing required attribute \"chunkCount\"", name)
		}
		switch typ {
		case TypeScanline, TypeTiled, TypeDeepScanline, TypeDeepTiled:
		default:
			return nil, invalidf("part %q: unknown type %q", name, typ)
		}
		h.Type = typ
	case hasType && (typ == TypeDeepScanline || typ == TypeDeepTiled):
		h.Type = typ
	case tiledFlag:
		h.Type = TypeTiled
	default:
		h.Type = TypeScanline
	}
	h.Deep = deepFlag && !multipart || h.Type == TypeDeepScanline || h.Type == TypeDeepTiled
	if h.Deep && h.Type != TypeDeepTiled && h.Type != TypeDeepScanline {
		if tiledFlag {
			h.Type = TypeDeepTiled
		} else {
			h.Type = TypeDeepScanline
		}
	}

	if h.Type == TypeTiled || h.Type == TypeDeepTiled {
		if !hasTiles {
			return nil, invalidf("part %q: tiled part without tiles attribute", name)
		}
		h.Tiles = &tiles
	}
	if hasCount {
		if count < 0 {
			return nil, invalidf("part %q: negative chunkCount %d", name, count)
		}
		h.ChunkCount = int(count)
	}

	for _, attr := range attrs {
		if !reservedAttributes[attr.Name] {
			h.Attributes = append(h.Attributes, attr)
		}
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	if hasCount && h.ChunkCount != h.blockCount() {
		return nil, invalidf("part %q: chunkCount %d, layout has %d chunks", name, h.ChunkCount, h.blockCount())
	}
	return h, nil
}

// maxWindowSize bounds data window dimensions so that size arithmetic
// cannot overflow.
const maxWindowSize = 1 << 30

// validate checks the structural fields of h.
func (h *Header) validate() error {
	dw := h.DataWindow
	if dw.Width() <= 0 || dw.Height() <= 0 {
		return invalidf("dataWindow %v has no pixels", dw)
	}
	if dw.Width() > maxWindowSize || dw.Height() > maxWindowSize {
		return invalidf("dataWindow %v is too large", dw)
	}
	if h.DisplayWindow.Width() <= 0 || h.DisplayWindow.Height() <= 0 {
		return invalidf("displayWindow %v has no pixels", h.DisplayWindow)
	}
	if h.LineOrder > LineOrderRandom {
		return invalidf("unknown lineOrder %d", h.LineOrder)
	}
	if len(h.Channels) == 0 {
		return invalidf("channels: empty channel list")
	}
	if err := validateChannels(h.Channels, dw, h.Tiles != nil); err != nil {
		return err
	}
	if t := h.Tiles; t != nil {
		if t.XSize < 1 || t.YSize < 1 || t.XSize > maxWindowSize || t.YSize > maxWindowSize {
			return invalidf("tiles: size %dx%d", t.XSize, t.YSize)
		}
		if t.Mode > LevelModeRipmap {
			return invalidf("tiles: unknown level mode %d", t.Mode)
		}
		if t.RoundingMode > LevelRoundUp {
			return invalidf("tiles: unknown rounding mode %d", t.RoundingMode)
		}
	}
	return nil
}

// headerAttributes returns the attributes written for h, sorted by name.
func (h *Header) headerAttributes(multipart bool) Attributes {
	attrs := Attributes{
		{Name: "channels", Type: AttrTypeChlist, Value: h.Channels},
		{Name: "compression", Type: AttrTypeCompression, Value: h.Compression},
		{Name: "dataWindow", Type: AttrTypeBox2i, Value: h.DataWindow},
		{Name: "displayWindow", Type: AttrTypeBox2i, Value: h.DisplayWindow},
		{Name: "lineOrder", Type: AttrTypeLineOrder, Value: h.LineOrder},
		{Name: "pixelAspectRatio", Type: AttrTypeFloat, Value: h.PixelAspectRatio},
		{Name: "screenWindowCenter", Type: AttrTypeV2f, Value: h.ScreenWindowCenter},
		{Name: "screenWindowWidth", Type: AttrTypeFloat, Value: h.ScreenWindowWidth},
	}
	if h.Tiles != nil {
		attrs = append(attrs, Attribute{Name: "tiles", Type: AttrTypeTileDesc, Value: *h.Tiles})
	}
	if multipart || h.Name != "" {
		attrs = append(attrs, Attribute{Name: "name", Type: AttrTypeString, Value: h.Name})
	}
	if multipart {
		attrs = append(attrs,
			Attribute{Name: "type", Type: AttrTypeString, Value: h.Type},
			Attribute{Name: "chunkCount", Type: AttrTypeInt, Value: int32(h.blockCount())},
		)
	}
	for _, attr := range h.Attributes {
		if !reservedAttributes[attr.Name] {
			attrs = append(attrs, attr)
		}
	}
	slices.SortStableFunc(attrs, func(a, b Attribute) int { return strings.Compare(a.Name, b.Name) })
	return attrs
}

// writeHeaders serializes magic number, version and all headers.
func writeHeaders(headers []*Header) ([]byte, error) {
	multipart := len(headers) > 1
	lists := make([]Attributes, len(headers))
	flags := uint32(0)
	for i, h := range headers {
		lists[i] = h.headerAttributes(multipart)
		if hasLongNames(lists[i]) {
			flags |= flagLongNames
		}
	}
	if multipart {
		flags |= flagMultipart
	} else if headers[0].Tiles != nil {
		flags |= flagTiled
	}

	w := xdr.NewBufferWriter(1024)
	w.WriteUint32(magicNumber)
	w.WriteUint32(fileVersion | flags)
	for _, attrs := range lists {
		for _, attr := range attrs {
			if len(attr.Name) > longNameLimit || len(attr.Type) > longNameLimit {
				return nil, invalidf("attribute name %.32q... too long", attr.Name)
			}
			if err := writeAttribute(w, attr); err != nil {
				return nil, err
			}
		}
		w.WriteByte(0)
	}
	if multipart {
		w.WriteByte(0)
	}
	return w.Bytes(), nil
}

func hasLongNames(attrs Attributes) bool {
	for _, attr := range attrs {
		if len(attr.Name) > shortNameLimit || len(attr.Type) > shortNameLimit {
			return true
		}
		if channels, ok := attr.Value.([]Channel); ok {
			for _, c := range channels {
				if len(c.Name) > shortNameLimit {
					return true
				}
			}
		}
	}
	return false
}
