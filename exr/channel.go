package exr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fursund/exrs/compression"
	"github.com/fursund/exrs/internal/xdr"
)

// PixelType is the storage type of a channel's samples.
type PixelType uint32

const (
	PixelTypeUint  PixelType = 0
	PixelTypeHalf  PixelType = 1
	PixelTypeFloat PixelType = 2
)

// Size returns the number of bytes one sample of type t occupies in a file.
func (t PixelType) Size() int {
	if t == PixelTypeHalf {
		return 2
	}
	return 4
}

func (t PixelType) String() string {
	switch t {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	}
	return fmt.Sprintf("pixeltype(%d)", uint32(t))
}

// Channel describes one channel of a layer.
//
// A channel with sampling factors greater than one only stores a sample for
// every XSampling-th column and YSampling-th row of the data window.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int
	YSampling int
}

// NewChannel returns a channel without subsampling.
func NewChannel(name string, t PixelType) Channel {
	return Channel{Name: name, Type: t, XSampling: 1, YSampling: 1}
}

// SortChannels sorts channels by name, the order they have in files.
func SortChannels(channels []Channel) {
	slices.SortFunc(channels, func(a, b Channel) int { return strings.Compare(a.Name, b.Name) })
}

// FindChannel returns the index of the named channel, or -1.
func FindChannel(channels []Channel, name string) int {
	for i, c := range channels {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// validateChannels checks names and sampling factors. channels must be
// sorted.
func validateChannels(channels []Channel, window Box2i, tiled bool) error {
	for i, c := range channels {
		if c.Name == "" {
			return invalidf("channels: empty channel name")
		}
		if i > 0 && channels[i-1].Name >= c.Name {
			if channels[i-1].Name == c.Name {
				return invalidf("channels: duplicate channel %q", c.Name)
			}
			return invalidf("channels: %q and %q are not sorted", channels[i-1].Name, c.Name)
		}
		if c.Type > PixelTypeFloat {
			return invalidf("channel %q: unknown pixel type %d", c.Name, c.Type)
		}
		if c.XSampling < 1 || c.YSampling < 1 {
			return invalidf("channel %q: sampling %dx%d", c.Name, c.XSampling, c.YSampling)
		}
		if tiled && (c.XSampling != 1 || c.YSampling != 1) {
			return invalidf("channel %q: tiled layers cannot be subsampled", c.Name)
		}
		if window.Min.X%c.XSampling != 0 || window.Min.Y%c.YSampling != 0 ||
			window.Width()%c.XSampling != 0 || window.Height()%c.YSampling != 0 {
			return invalidf("channel %q: sampling %dx%d does not divide data window %v",
				c.Name, c.XSampling, c.YSampling, window)
		}
	}
	return nil
}

func readChannelList(r *xdr.Reader) ([]Channel, error) {
	var channels []Channel
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		t, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		linear, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(3); err != nil {
			return nil, err
		}
		xs, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		ys, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		channels = append(channels, Channel{
			Name:      name,
			Type:      PixelType(t),
			PLinear:   linear != 0,
			XSampling: int(xs),
			YSampling: int(ys),
		})
	}
}

func writeChannelList(w *xdr.BufferWriter, channels []Channel) {
	for _, c := range channels {
		w.WriteString(c.Name)
		w.WriteUint32(uint32(c.Type))
		var linear byte
		if c.PLinear {
			linear = 1
		}
		w.WriteBytes([]byte{linear, 0, 0, 0})
		w.WriteInt32(int32(c.XSampling))
		w.WriteInt32(int32(c.YSampling))
	}
	w.WriteByte(0)
}

// codecChannels converts channels to the layout description used by codecs.
func codecChannels(channels []Channel) []compression.Channel {
	out := make([]compression.Channel, len(channels))
	for i, c := range channels {
		out[i] = compression.Channel{
			Name:      c.Name,
			Type:      compression.PixelType(c.Type),
			XSampling: c.XSampling,
			YSampling: c.YSampling,
			Linear:    c.PLinear,
		}
	}
	return out
}
