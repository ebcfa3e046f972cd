package exr

import (
	"math"

	"github.com/fursund/exrs/half"
)

// PixelStorage holds the samples of one resolution level of a layer.
//
// Channels are addressed by their index in the layer's channel list, and
// x, y are sample coordinates inside the channel's own grid: a channel
// with XSampling 2 has half as many columns as the level. When reading,
// Set is called exactly once per stored sample with a sample of type
// SampleType(channel). Writers only call Get.
//
// Set is called concurrently for different chunks when reading in
// parallel. Chunks never share samples.
type PixelStorage interface {
	SampleType(channel int) PixelType
	Set(channel, x, y int, s Sample)
	Get(channel, x, y int) Sample
}

// channelBinder is storage that addresses samples through channel names.
// Such storage is bound to the layer's channel list before use.
type channelBinder interface {
	bound(channels []Channel) PixelStorage
}

// bindStorage returns store addressed by the indices of channels.
func bindStorage(channels []Channel, store PixelStorage) PixelStorage {
	if b, ok := store.(channelBinder); ok {
		return b.bound(channels)
	}
	return store
}

// StorageRequest describes the storage needed for one resolution level.
type StorageRequest struct {
	// Header is the header of the layer being read.
	Header *Header

	// Channels are the channels selected for reading, sorted by name.
	// Channel indices passed to Set refer to this slice.
	Channels []Channel

	Level LevelInfo
}

// StorageFactory creates the storage for one resolution level.
type StorageFactory func(req StorageRequest) (PixelStorage, error)

// ChannelSize returns the size of the sample grid of channel c in a level
// of the given size.
func ChannelSize(c Channel, level V2i) V2i {
	return V2i{level.X / max(c.XSampling, 1), level.Y / max(c.YSampling, 1)}
}

// Plane is the sample grid of one channel, stored row by row. Exactly one
// of the slices is set, matching Type.
type Plane struct {
	Type PixelType
	Size V2i
	F16  []half.Half
	F32  []float32
	U32  []uint32
}

// NewPlane allocates a zeroed plane.
func NewPlane(t PixelType, size V2i) *Plane {
	p := &Plane{Type: t, Size: size}
	n := size.X * size.Y
	switch t {
	case PixelTypeHalf:
		p.F16 = make([]half.Half, n)
	case PixelTypeFloat:
		p.F32 = make([]float32, n)
	default:
		p.U32 = make([]uint32, n)
	}
	return p
}

func (p *Plane) set(x, y int, s Sample) {
	i := y*p.Size.X + x
	switch p.Type {
	case PixelTypeHalf:
		p.F16[i] = half.Half(s.bits)
	case PixelTypeFloat:
		p.F32[i] = math.Float32frombits(s.bits)
	default:
		p.U32[i] = s.bits
	}
}

func (p *Plane) get(x, y int) Sample {
	i := y*p.Size.X + x
	switch p.Type {
	case PixelTypeHalf:
		return HalfSample(p.F16[i])
	case PixelTypeFloat:
		return FloatSample(p.F32[i])
	}
	return UintSample(p.U32[i])
}

// FlatChannels stores every channel in its own typed plane, in the type the
// channel has in the file.
type FlatChannels struct {
	Planes []*Plane
}

// NewFlatChannels allocates planes for channels in a level of the given
// size.
func NewFlatChannels(channels []Channel, level V2i) *FlatChannels {
	fc := &FlatChannels{Planes: make([]*Plane, len(channels))}
	for i, c := range channels {
		fc.Planes[i] = NewPlane(c.Type, ChannelSize(c, level))
	}
	return fc
}

// CreateFlatChannels is the StorageFactory for FlatChannels.
func CreateFlatChannels(req StorageRequest) (PixelStorage, error) {
	return NewFlatChannels(req.Channels, req.Level.Size), nil
}

// SampleType returns the type of the plane of channel ch.
func (fc *FlatChannels) SampleType(ch int) PixelType { return fc.Planes[ch].Type }

// Set stores s, which has the plane's type, in the plane of channel ch.
func (fc *FlatChannels) Set(ch, x, y int, s Sample) { fc.Planes[ch].set(x, y, s) }

// Get returns a sample of the plane of channel ch.
func (fc *FlatChannels) Get(ch, x, y int) Sample { return fc.Planes[ch].get(x, y) }
