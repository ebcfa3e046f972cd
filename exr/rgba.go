package exr

import (
	"strings"

	"github.com/fursund/exrs/half"
)

// RGBAValue is the component type of a FlatRGBA buffer.
type RGBAValue interface {
	half.Half | float32
}

const (
	slotR = iota
	slotG
	slotB
	slotA
	noSlot = -1
)

var rgbaNames = [...][2]string{
	slotR: {"r", "red"},
	slotG: {"g", "green"},
	slotB: {"b", "blue"},
	slotA: {"a", "alpha"},
}

// rgbaSlot maps a channel name to an RGBA component. exact is set for the
// single upper case letters R, G, B and A.
func rgbaSlot(name string) (slot int, exact bool) {
	lower := strings.ToLower(name)
	for s, names := range rgbaNames {
		if lower == names[0] || lower == names[1] {
			return s, name == strings.ToUpper(names[0])
		}
	}
	return noSlot, false
}

// rgbaSlots returns the component of every channel, or noSlot. When several
// channels name the same component an exact upper case letter wins, then
// the first in channel order.
func rgbaSlots(channels []Channel) []int {
	slots := make([]int, len(channels))
	owner := [4]int{noSlot, noSlot, noSlot, noSlot}
	exact := [4]bool{}
	for i, c := range channels {
		slots[i] = noSlot
		s, ex := rgbaSlot(c.Name)
		if s == noSlot {
			continue
		}
		if owner[s] == noSlot || ex && !exact[s] {
			owner[s], exact[s] = i, ex
		}
	}
	for s, i := range owner {
		if i != noSlot {
			slots[i] = s
		}
	}
	return slots
}

// rgbaSelection returns the channels that map to a component.
func rgbaSelection(channels []Channel) []Channel {
	slots := rgbaSlots(channels)
	var out []Channel
	for i, c := range channels {
		if slots[i] != noSlot {
			out = append(out, c)
		}
	}
	return out
}

type rgbaBinding struct {
	slot   int
	xs, ys int

	// opaque marks an alpha channel of a buffer without alpha.
	opaque bool
}

// FlatRGBA is an interleaved RGBA or RGB pixel buffer. A buffer without an
// alpha component reads as opaque; missing color channels stay zero.
//
// Subsampled channels are expanded when reading: each stored sample fills
// its whole XSampling by YSampling block of pixels.
type FlatRGBA[T RGBAValue] struct {
	Size V2i

	// Channels is 3 for RGB and 4 for RGBA.
	Channels int

	// Samples holds Size.X*Size.Y pixels of Channels components, row by row.
	Samples []T

	bindings []rgbaBinding
}

// NewFlatRGBA allocates a buffer with every color zero and alpha one.
func NewFlatRGBA[T RGBAValue](size V2i, alpha bool) *FlatRGBA[T] {
	p := &FlatRGBA[T]{Size: size, Channels: 3}
	if alpha {
		p.Channels = 4
	}
	p.Samples = make([]T, size.X*size.Y*p.Channels)
	if alpha {
		for i := slotA; i < len(p.Samples); i += 4 {
			p.Samples[i] = one[T]()
		}
	}
	return p
}

// Pixel returns the components of the pixel at x, y.
func (p *FlatRGBA[T]) Pixel(x, y int) (r, g, b, a T) {
	i := (y*p.Size.X + x) * p.Channels
	if p.Channels == 4 {
		return p.Samples[i], p.Samples[i+1], p.Samples[i+2], p.Samples[i+3]
	}
	return p.Samples[i], p.Samples[i+1], p.Samples[i+2], one[T]()
}

// SetPixel stores the components of the pixel at x, y. a is ignored by RGB
// buffers.
func (p *FlatRGBA[T]) SetPixel(x, y int, r, g, b, a T) {
	i := (y*p.Size.X + x) * p.Channels
	p.Samples[i], p.Samples[i+1], p.Samples[i+2] = r, g, b
	if p.Channels == 4 {
		p.Samples[i+3] = a
	}
}

// bound returns a copy of p addressing components through channels. The
// copy shares Samples with p.
func (p *FlatRGBA[T]) bound(channels []Channel) PixelStorage {
	q := *p
	q.bind(channels)
	return &q
}

// bind maps storage channel indices to components.
func (p *FlatRGBA[T]) bind(channels []Channel) {
	slots := rgbaSlots(channels)
	p.bindings = make([]rgbaBinding, len(channels))
	for i, c := range channels {
		bd := rgbaBinding{slot: slots[i], xs: max(c.XSampling, 1), ys: max(c.YSampling, 1)}
		if bd.slot == slotA && p.Channels < 4 {
			bd.slot, bd.opaque = noSlot, true
		}
		p.bindings[i] = bd
	}
}

// SampleType returns the component type of the buffer for every channel.
func (p *FlatRGBA[T]) SampleType(int) PixelType {
	var zero T
	if _, ok := any(zero).(half.Half); ok {
		return PixelTypeHalf
	}
	return PixelTypeFloat
}

// Set stores s in the component channel ch maps to, filling the block of
// pixels a subsampled sample covers. Channels that name no component are
// dropped. A buffer that was never bound to a channel list stores nothing.
func (p *FlatRGBA[T]) Set(ch, x, y int, s Sample) {
	if ch >= len(p.bindings) {
		return
	}
	bd := p.bindings[ch]
	if bd.slot == noSlot {
		return
	}
	v := fromSample[T](s)
	x0, y0 := x*bd.xs, y*bd.ys
	for py := y0; py < min(y0+bd.ys, p.Size.Y); py++ {
		for px := x0; px < min(x0+bd.xs, p.Size.X); px++ {
			p.Samples[(py*p.Size.X+px)*p.Channels+bd.slot] = v
		}
	}
}

// Get returns the component channel ch maps to. Alpha of an RGB buffer is
// one, and other channels without a component read as zero.
func (p *FlatRGBA[T]) Get(ch, x, y int) Sample {
	if ch >= len(p.bindings) {
		return toSample(*new(T))
	}
	bd := p.bindings[ch]
	switch {
	case bd.opaque:
		return toSample(one[T]())
	case bd.slot == noSlot:
		return toSample(*new(T))
	}
	return toSample(p.Samples[(y*bd.ys*p.Size.X+x*bd.xs)*p.Channels+bd.slot])
}

func one[T RGBAValue]() T {
	var v T
	switch p := any(&v).(type) {
	case *half.Half:
		*p = half.One
	case *float32:
		*p = 1
	}
	return v
}

func fromSample[T RGBAValue](s Sample) T {
	var v T
	switch p := any(&v).(type) {
	case *half.Half:
		*p = s.Half()
	case *float32:
		*p = s.Float32()
	}
	return v
}

func toSample[T RGBAValue](v T) Sample {
	switch x := any(v).(type) {
	case half.Half:
		return HalfSample(x)
	case float32:
		return FloatSample(x)
	}
	return Sample{}
}

// CreateFlattenedF16 is a StorageFactory producing *FlatRGBA[half.Half].
func CreateFlattenedF16(req StorageRequest) (PixelStorage, error) {
	return createFlattened[half.Half](req), nil
}

// CreateFlattenedF32 is a StorageFactory producing *FlatRGBA[float32].
func CreateFlattenedF32(req StorageRequest) (PixelStorage, error) {
	return createFlattened[float32](req), nil
}

func createFlattened[T RGBAValue](req StorageRequest) *FlatRGBA[T] {
	alpha := false
	for _, s := range rgbaSlots(req.Channels) {
		alpha = alpha || s == slotA
	}
	p := NewFlatRGBA[T](req.Level.Size, alpha)
	p.bind(req.Channels)
	return p
}

// RGBASampleTypes selects the channels and file sample types written by
// NewRGBALayer. A nil A writes no alpha channel.
type RGBASampleTypes struct {
	R, G, B PixelType
	A       *PixelType
}

// NewRGBALayer returns a single-level layer holding pixels and declaring
// exactly the channels named by types. Encoding.Tiles, if set, must use
// LevelModeOne.
//
// The layer shares the samples of pixels but not its channel binding, so
// one buffer may back several layers with different channel sets.
func NewRGBALayer[T RGBAValue](name string, pixels *FlatRGBA[T], types RGBASampleTypes, enc Encoding) *Layer {
	channels := []Channel{
		NewChannel("R", types.R),
		NewChannel("G", types.G),
		NewChannel("B", types.B),
	}
	if types.A != nil {
		channels = append(channels, NewChannel("A", *types.A))
	}
	SortChannels(channels)
	return &Layer{
		Name:              name,
		Channels:          channels,
		DataWindow:        NewBox2i(V2i{}, pixels.Size),
		ScreenWindowWidth: 1,
		Encoding:          enc,
		Levels: []*Level{{
			Size:   pixels.Size,
			Pixels: pixels.bound(channels),
		}},
	}
}
