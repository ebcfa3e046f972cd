package exr

import (
	"encoding/binary"
	"fmt"
)

// channelMapping connects the channels of a file layer with the channels of
// a PixelStorage.
type channelMapping struct {
	// target holds the storage channel of every file channel, or -1 for
	// channels that are not read.
	target []int
}

func newChannelMapping(file, selected []Channel) channelMapping {
	m := channelMapping{target: make([]int, len(file))}
	for i, c := range file {
		m.target[i] = FindChannel(selected, c.Name)
	}
	return m
}

// checkReadStorage verifies that every selected channel can be converted
// to the sample type of store.
func checkReadStorage(m channelMapping, file []Channel, store PixelStorage, lossy bool) error {
	for i, t := range m.target {
		if t < 0 {
			continue
		}
		if err := checkConversion(file[i].Type, store.SampleType(t), lossy); err != nil {
			return fmt.Errorf("channel %q: %w", file[i].Name, err)
		}
	}
	return nil
}

// checkWriteStorage verifies that the samples of store can be converted to
// the file types of channels.
func checkWriteStorage(channels []Channel, store PixelStorage, lossy bool) error {
	for i, c := range channels {
		if err := checkConversion(store.SampleType(i), c.Type, lossy); err != nil {
			return fmt.Errorf("channel %q: %w", c.Name, err)
		}
	}
	return nil
}

// decodeBlock stores the samples of an uncompressed chunk in store. The
// chunk layout is row by row, and within a row channel by channel, each
// channel contributing Size.X/XSampling samples to the rows its YSampling
// selects.
func decodeBlock(data []byte, h *Header, b BlockIndex, m channelMapping, store PixelStorage) error {
	le := binary.LittleEndian
	pos := 0
	for row := 0; row < b.Size.Y; row++ {
		y := b.Position.Y + row
		for ci, c := range h.Channels {
			if y%c.YSampling != 0 {
				continue
			}
			n := b.Size.X / c.XSampling
			size := n * c.Type.Size()
			if pos+size > len(data) {
				return invalidf("chunk %d: data ends in row %d", b.Index, y)
			}
			target := m.target[ci]
			if target < 0 {
				pos += size
				continue
			}
			to := store.SampleType(target)
			sx, sy := b.Position.X/c.XSampling, y/c.YSampling
			for i := 0; i < n; i++ {
				var s Sample
				switch c.Type {
				case PixelTypeHalf:
					s = Sample{PixelTypeHalf, uint32(le.Uint16(data[pos:]))}
					pos += 2
				case PixelTypeFloat:
					s = Sample{PixelTypeFloat, le.Uint32(data[pos:])}
					pos += 4
				default:
					s = Sample{PixelTypeUint, le.Uint32(data[pos:])}
					pos += 4
				}
				store.Set(target, sx+i, sy, s.convert(to))
			}
		}
	}
	if pos != len(data) {
		return invalidf("chunk %d: %d bytes left after decoding", b.Index, len(data)-pos)
	}
	return nil
}

// encodeBlock appends the uncompressed bytes of block b, read from store,
// to dst. Every channel of h must be present in store.
func encodeBlock(dst []byte, h *Header, b BlockIndex, store PixelStorage) []byte {
	le := binary.LittleEndian
	for row := 0; row < b.Size.Y; row++ {
		y := b.Position.Y + row
		for ci, c := range h.Channels {
			if y%c.YSampling != 0 {
				continue
			}
			n := b.Size.X / c.XSampling
			sx, sy := b.Position.X/c.XSampling, y/c.YSampling
			for i := 0; i < n; i++ {
				s := store.Get(ci, sx+i, sy).convert(c.Type)
				if c.Type == PixelTypeHalf {
					dst = le.AppendUint16(dst, uint16(s.bits))
				} else {
					dst = le.AppendUint32(dst, s.bits)
				}
			}
		}
	}
	return dst
}
