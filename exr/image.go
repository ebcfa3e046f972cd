package exr

import (
	"reflect"
)

// imageAttributes are the attributes kept in Image.Attributes. They describe
// the whole file and are written to every part.
var imageAttributes = map[string]bool{
	"chromaticities":  true,
	"timeCode":        true,
	"adoptedNeutral":  true,
	"framesPerSecond": true,
	"owner":           true,
	"comments":        true,
}

// IsImageAttribute reports whether the named attribute belongs to
// Image.Attributes rather than to a layer.
func IsImageAttribute(name string) bool { return imageAttributes[name] }

// Image is a decoded OpenEXR file.
type Image struct {
	DisplayWindow    Box2i
	PixelAspectRatio float32

	// Attributes holds the file level attributes: chromaticities, timeCode,
	// adoptedNeutral, framesPerSecond, owner and comments. When reading they
	// come from the first part of the file.
	Attributes Attributes

	// Layers holds one layer per file part. Names must be unique and
	// non-empty when there is more than one layer.
	Layers []*Layer
}

// Encoding is the chunk layout and compression of a layer.
type Encoding struct {
	Compression Compression
	LineOrder   LineOrder

	// Tiles is nil for scanline layers, which use blocks of
	// Compression.ScanlinesPerChunk() rows.
	Tiles *TileDescription
}

// Layer is one part of a file.
type Layer struct {
	Name       string
	Attributes Attributes

	// Channels must be sorted by name; see SortChannels.
	Channels []Channel

	// DataWindow is the pixel rectangle of the full resolution level.
	DataWindow Box2i

	ScreenWindowCenter V2f
	ScreenWindowWidth  float32

	Encoding Encoding

	// Levels holds the resolution levels in the order of Header.Levels.
	Levels []*Level
}

// Level is one resolution level of a layer.
type Level struct {
	Index  LevelIndex
	Size   V2i
	Pixels PixelStorage
}

// NewImage returns an image holding layers, with the display window of the
// first layer's data window.
func NewImage(layers ...*Layer) *Image {
	img := &Image{PixelAspectRatio: 1, Layers: layers}
	if len(layers) > 0 {
		img.DisplayWindow = layers[0].DataWindow
	}
	return img
}

// header builds the file header of l.
func (l *Layer) header(img *Image, withAttributes bool) *Header {
	h := &Header{
		Name:               l.Name,
		Type:               TypeScanline,
		Channels:           l.Channels,
		Compression:        l.Encoding.Compression,
		DataWindow:         l.DataWindow,
		DisplayWindow:      img.DisplayWindow,
		LineOrder:          l.Encoding.LineOrder,
		PixelAspectRatio:   img.PixelAspectRatio,
		ScreenWindowCenter: l.ScreenWindowCenter,
		ScreenWindowWidth:  l.ScreenWindowWidth,
		Tiles:              l.Encoding.Tiles,
	}
	if h.Tiles != nil {
		h.Type = TypeTiled
	}
	if withAttributes {
		h.Attributes = img.Attributes.Clone()
		for _, attr := range l.Attributes {
			h.Attributes.Put(attr)
		}
	}
	return h
}

// validate checks that img can be written.
func (img *Image) validate() error {
	if len(img.Layers) == 0 {
		return invalidf("image has no layers")
	}
	names := make(map[string]bool, len(img.Layers))
	for _, l := range img.Layers {
		if len(img.Layers) > 1 {
			if l.Name == "" {
				return invalidf("layer without a name in a multi-layer image")
			}
			if names[l.Name] {
				return invalidf("duplicate layer name %q", l.Name)
			}
			names[l.Name] = true
		}
	}
	return nil
}

// validateLevels checks that the levels of l match its header.
func (l *Layer) validateLevels(h *Header) error {
	want := h.Levels()
	if len(l.Levels) != len(want) {
		return invalidf("layer %q: %d levels, layout has %d", l.Name, len(l.Levels), len(want))
	}
	for i, level := range l.Levels {
		if level == nil || level.Pixels == nil {
			return invalidf("layer %q: level %d has no pixels", l.Name, i)
		}
		if level.Index != want[i].Index || level.Size != want[i].Size {
			return invalidf("layer %q: level %d is %v %v, layout has %v %v",
				l.Name, i, level.Index, level.Size, want[i].Index, want[i].Size)
		}
	}
	return nil
}

// Equal reports whether img and o hold the same layers, attributes and
// samples. Samples compare by bit pattern, except that NaNs of the same
// channel type are equal to each other.
func (img *Image) Equal(o *Image) bool {
	if img.DisplayWindow != o.DisplayWindow || img.PixelAspectRatio != o.PixelAspectRatio ||
		!img.Attributes.Equal(o.Attributes) || len(img.Layers) != len(o.Layers) {
		return false
	}
	for i, l := range img.Layers {
		if !l.Equal(o.Layers[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether l and o are equal in the sense of Image.Equal.
func (l *Layer) Equal(o *Layer) bool {
	if l.Name != o.Name || l.DataWindow != o.DataWindow ||
		l.ScreenWindowCenter != o.ScreenWindowCenter || l.ScreenWindowWidth != o.ScreenWindowWidth ||
		!reflect.DeepEqual(l.Channels, o.Channels) || !l.Attributes.Equal(o.Attributes) {
		return false
	}
	a, b := l.Encoding, o.Encoding
	if a.Compression != b.Compression || a.LineOrder != b.LineOrder || (a.Tiles == nil) != (b.Tiles == nil) {
		return false
	}
	if a.Tiles != nil && *a.Tiles != *b.Tiles {
		return false
	}
	if len(l.Levels) != len(o.Levels) {
		return false
	}
	for i, level := range l.Levels {
		other := o.Levels[i]
		if level.Index != other.Index || level.Size != other.Size {
			return false
		}
		if !samplesEqual(l.Channels, level.Size, l.LevelPixels(i), o.LevelPixels(i)) {
			return false
		}
	}
	return true
}

// LevelPixels returns the storage of level i addressed by the indices of
// l.Channels.
func (l *Layer) LevelPixels(i int) PixelStorage {
	return bindStorage(l.Channels, l.Levels[i].Pixels)
}

func samplesEqual(channels []Channel, level V2i, a, b PixelStorage) bool {
	for ch, c := range channels {
		if a.SampleType(ch) != b.SampleType(ch) {
			return false
		}
		size := ChannelSize(c, level)
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				if !a.Get(ch, x, y).Equal(b.Get(ch, x, y)) {
					return false
				}
			}
		}
	}
	return true
}

// Equal reports whether a and b hold the same attributes, ignoring order.
// An empty and a nil list are equal.
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for _, attr := range a {
		other, ok := b.Get(attr.Name)
		if !ok || other.Type != attr.Type || !reflect.DeepEqual(attr.Value, other.Value) {
			return false
		}
	}
	return true
}

// ContainsNaN reports whether any sample of img is a NaN.
func (img *Image) ContainsNaN() bool {
	for _, l := range img.Layers {
		for i, level := range l.Levels {
			pixels := l.LevelPixels(i)
			for ch, c := range l.Channels {
				size := ChannelSize(c, level.Size)
				for y := 0; y < size.Y; y++ {
					for x := 0; x < size.X; x++ {
						if pixels.Get(ch, x, y).IsNaN() {
							return true
						}
					}
				}
			}
		}
	}
	return false
}
