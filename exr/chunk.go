package exr

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// maxChunkHeaderSize covers a multipart deep tile: part number, four tile
// coordinates and three 64 bit sizes.
const maxChunkHeaderSize = 4 + 16 + 24

// chunkHeader is the prefix of a chunk in a file.
type chunkHeader struct {
	part   int
	coords ChunkCoords

	// headerSize is the size of the prefix and payload the number of bytes
	// that follow it.
	headerSize int
	payload    int64
}

// readAtFull reads len(buf) bytes at off. Reads cut short by the end of the
// data report truncated; other failures are returned unchanged.
func readAtFull(r io.ReaderAt, buf []byte, off int64) (truncated bool, err error) {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return false, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true, nil
	}
	return false, err
}

// readChunkHeader reads the chunk prefix at offset off of a file of the
// given size and checks that the chunk fits in the file.
func readChunkHeader(r io.ReaderAt, off, size int64, set *headerSet) (chunkHeader, error) {
	if off < 0 || off >= size {
		return chunkHeader{}, invalidf("chunk offset %d outside file", off)
	}
	var buf [maxChunkHeaderSize]byte
	n := int(min(int64(len(buf)), size-off))
	if truncated, err := readAtFull(r, buf[:n], off); err != nil {
		return chunkHeader{}, err
	} else if truncated {
		return chunkHeader{}, invalidf("file truncated at offset %d", off)
	}
	data := buf[:n]
	le := binary.LittleEndian
	pos := 0
	next32 := func() (int32, bool) {
		if pos+4 > len(data) {
			return 0, false
		}
		v := int32(le.Uint32(data[pos:]))
		pos += 4
		return v, true
	}
	next64 := func() (int64, bool) {
		if pos+8 > len(data) {
			return 0, false
		}
		v := int64(le.Uint64(data[pos:]))
		pos += 8
		return v, true
	}
	short := func() (chunkHeader, error) {
		return chunkHeader{}, invalidf("chunk header at offset %d truncated", off)
	}

	var ch chunkHeader
	if set.multipart {
		part, ok := next32()
		if !ok {
			return short()
		}
		if part < 0 || int(part) >= len(set.headers) {
			return chunkHeader{}, invalidf("chunk at offset %d: part %d out of range", off, part)
		}
		ch.part = int(part)
	}
	h := set.headers[ch.part]
	if h.Tiles != nil {
		var c [4]int32
		for i := range c {
			v, ok := next32()
			if !ok {
				return short()
			}
			c[i] = v
		}
		ch.coords = ChunkCoords{
			Tile:  V2i{int(c[0]), int(c[1])},
			Level: LevelIndex{int(c[2]), int(c[3])},
		}
	} else {
		y, ok := next32()
		if !ok {
			return short()
		}
		ch.coords.Y = int(y)
	}
	if h.Deep {
		var sizes [3]int64
		for i := range sizes {
			v, ok := next64()
			if !ok {
				return short()
			}
			sizes[i] = v
		}
		if sizes[0] < 0 || sizes[1] < 0 || sizes[0] > math.MaxInt64-sizes[1] {
			return chunkHeader{}, invalidf("deep chunk at offset %d: bad sizes", off)
		}
		ch.payload = sizes[0] + sizes[1]
	} else {
		s, ok := next32()
		if !ok {
			return short()
		}
		if s < 0 {
			return chunkHeader{}, invalidf("chunk at offset %d: negative size %d", off, s)
		}
		ch.payload = int64(s)
	}
	ch.headerSize = pos
	if ch.payload > size-off-int64(pos) {
		return chunkHeader{}, invalidf("chunk at offset %d: %d bytes past end of file", off, ch.payload-(size-off-int64(pos)))
	}
	return ch, nil
}

// appendChunkHeader appends the prefix of a chunk holding block b of
// header h, stored as part part.
func appendChunkHeader(dst []byte, multipart bool, part int, h *Header, b BlockIndex, payload int) []byte {
	le := binary.LittleEndian
	if multipart {
		dst = le.AppendUint32(dst, uint32(part))
	}
	c := h.coords(b)
	if h.Tiles != nil {
		for _, v := range []int{c.Tile.X, c.Tile.Y, c.Level.X, c.Level.Y} {
			dst = le.AppendUint32(dst, uint32(int32(v)))
		}
	} else {
		dst = le.AppendUint32(dst, uint32(int32(c.Y)))
	}
	return le.AppendUint32(dst, uint32(payload))
}
