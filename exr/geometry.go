package exr

import (
	"math/bits"
	"slices"

	"github.com/fursund/exrs/compression"
)

// LevelIndex identifies a resolution level. Level (0,0) is full resolution;
// mipmap levels have X == Y.
type LevelIndex struct {
	X, Y int
}

// LevelInfo is a resolution level and its size in pixels.
type LevelInfo struct {
	Index LevelIndex
	Size  V2i
}

// BlockIndex identifies one chunk of a layer.
type BlockIndex struct {
	// Layer is the index of the layer in the image or file.
	Layer int

	Level LevelIndex

	// Position is the offset of the block's first pixel inside its level
	// and Size its extent. Edge blocks are truncated to the level.
	Position V2i
	Size     V2i

	// Tile is the tile grid coordinate. Scanline blocks have Tile.X == 0
	// and their block number in Tile.Y.
	Tile V2i

	// Index is the block's position in the offset table of its layer.
	Index int
}

// ChunkCoords are the coordinates stored in a chunk header.
type ChunkCoords struct {
	// Y is the absolute first row of a scanline chunk.
	Y int

	// Tile and Level locate a tile chunk.
	Tile  V2i
	Level LevelIndex
}

// levelSize returns the size of level l of an axis with full size n.
func levelSize(n, l int, rounding LevelRoundingMode) int {
	if l >= bits.UintSize-1 {
		return 1
	}
	s := n >> l
	if rounding == LevelRoundUp && s<<l != n {
		s++
	}
	return max(1, s)
}

// levelCount returns the number of levels of an axis with full size n.
func levelCount(n int, rounding LevelRoundingMode) int {
	if n < 1 {
		return 1
	}
	floorLog := bits.Len(uint(n)) - 1
	if rounding == LevelRoundUp && n&(n-1) != 0 {
		return floorLog + 2
	}
	return floorLog + 1
}

// LevelCounts returns the number of levels along each axis. Mipmapped
// layers report the same count twice.
func (h *Header) LevelCounts() (nx, ny int) {
	t := h.Tiles
	if t == nil || t.Mode == LevelModeOne {
		return 1, 1
	}
	w, ht := h.DataWindow.Width(), h.DataWindow.Height()
	if t.Mode == LevelModeMipmap {
		n := levelCount(max(w, ht), t.RoundingMode)
		return n, n
	}
	return levelCount(w, t.RoundingMode), levelCount(ht, t.RoundingMode)
}

// LevelSize returns the size of a resolution level.
func (h *Header) LevelSize(l LevelIndex) V2i {
	var rounding LevelRoundingMode
	if h.Tiles != nil {
		rounding = h.Tiles.RoundingMode
	}
	return V2i{
		levelSize(h.DataWindow.Width(), l.X, rounding),
		levelSize(h.DataWindow.Height(), l.Y, rounding),
	}
}

// Levels lists the resolution levels of h in offset table order: one level
// for scanline and single-level parts, (l,l) for mipmaps and y-major
// (x,y) pairs for ripmaps.
func (h *Header) Levels() []LevelInfo {
	nx, ny := h.LevelCounts()
	var levels []LevelInfo
	add := func(x, y int) {
		idx := LevelIndex{x, y}
		levels = append(levels, LevelInfo{Index: idx, Size: h.LevelSize(idx)})
	}
	switch {
	case h.Tiles != nil && h.Tiles.Mode == LevelModeRipmap:
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				add(x, y)
			}
		}
	default:
		for l := 0; l < nx; l++ {
			add(l, l)
		}
	}
	return levels
}

// tileGrid returns the number of tile columns and rows covering a level.
func (h *Header) tileGrid(size V2i) (int, int) {
	tw, th := int(h.Tiles.XSize), int(h.Tiles.YSize)
	return (size.X + tw - 1) / tw, (size.Y + th - 1) / th
}

// blockCount returns the number of chunks in the offset table of h without
// enumerating them.
func (h *Header) blockCount() int {
	if h.Tiles == nil {
		spc := h.Compression.ScanlinesPerChunk()
		return (h.DataWindow.Height() + spc - 1) / spc
	}
	n := 0
	for _, l := range h.Levels() {
		cols, rows := h.tileGrid(l.Size)
		n += cols * rows
	}
	return n
}

// Blocks lists every chunk of h in offset table order. Scanline blocks run
// top to bottom; tiles run level by level, row by row.
func (h *Header) Blocks() []BlockIndex {
	blocks := make([]BlockIndex, 0, h.blockCount())
	if h.Tiles == nil {
		spc := h.Compression.ScanlinesPerChunk()
		w, ht := h.DataWindow.Width(), h.DataWindow.Height()
		for y := 0; y < ht; y += spc {
			blocks = append(blocks, BlockIndex{
				Position: V2i{0, y},
				Size:     V2i{w, min(spc, ht-y)},
				Tile:     V2i{0, y / spc},
				Index:    len(blocks),
			})
		}
		return blocks
	}
	tw, th := int(h.Tiles.XSize), int(h.Tiles.YSize)
	for _, l := range h.Levels() {
		cols, rows := h.tileGrid(l.Size)
		for ty := 0; ty < rows; ty++ {
			for tx := 0; tx < cols; tx++ {
				pos := V2i{tx * tw, ty * th}
				blocks = append(blocks, BlockIndex{
					Level:    l.Index,
					Position: pos,
					Size:     V2i{min(tw, l.Size.X-pos.X), min(th, l.Size.Y-pos.Y)},
					Tile:     V2i{tx, ty},
					Index:    len(blocks),
				})
			}
		}
	}
	return blocks
}

// WriteOrder lists the blocks of h in the order they are stored in a file.
// Decreasing line order reverses scanline blocks, and reverses the tile
// rows of every level while keeping columns left to right.
func (h *Header) WriteOrder() []BlockIndex {
	blocks := h.Blocks()
	if h.LineOrder != LineOrderDecreasing {
		return blocks
	}
	if h.Tiles == nil {
		slices.Reverse(blocks)
		return blocks
	}
	out := make([]BlockIndex, 0, len(blocks))
	for start := 0; start < len(blocks); {
		end := start
		for end < len(blocks) && blocks[end].Level == blocks[start].Level {
			end++
		}
		level := blocks[start:end]
		for i := len(level) - 1; i >= 0; {
			row := level[i].Tile.Y
			j := i
			for j > 0 && level[j-1].Tile.Y == row {
				j--
			}
			out = append(out, level[j:i+1]...)
			i = j - 1
		}
		start = end
	}
	return out
}

// BlockAt returns the offset table index of the chunk with coordinates c.
// It reports false when c lies outside the layout of h.
func (h *Header) BlockAt(c ChunkCoords) (int, bool) {
	if h.Tiles == nil {
		spc := h.Compression.ScanlinesPerChunk()
		y := c.Y - h.DataWindow.Min.Y
		if y < 0 || y >= h.DataWindow.Height() || y%spc != 0 {
			return 0, false
		}
		return y / spc, true
	}
	nx, ny := h.LevelCounts()
	if c.Level.X < 0 || c.Level.Y < 0 || c.Level.X >= nx || c.Level.Y >= ny {
		return 0, false
	}
	if h.Tiles.Mode != LevelModeRipmap && c.Level.X != c.Level.Y {
		return 0, false
	}
	index := 0
	for _, l := range h.Levels() {
		cols, rows := h.tileGrid(l.Size)
		if l.Index == c.Level {
			if c.Tile.X < 0 || c.Tile.Y < 0 || c.Tile.X >= cols || c.Tile.Y >= rows {
				return 0, false
			}
			return index + c.Tile.Y*cols + c.Tile.X, true
		}
		index += cols * rows
	}
	return 0, false
}

// coords returns the chunk header coordinates of b.
func (h *Header) coords(b BlockIndex) ChunkCoords {
	if h.Tiles == nil {
		return ChunkCoords{Y: h.DataWindow.Min.Y + b.Position.Y}
	}
	return ChunkCoords{Tile: b.Tile, Level: b.Level}
}

// blockLayout describes the uncompressed layout of b for codecs.
func (h *Header) blockLayout(b BlockIndex, channels []compression.Channel) compression.Block {
	return compression.Block{
		Width:    b.Size.X,
		Height:   b.Size.Y,
		FirstRow: b.Position.Y,
		Channels: channels,
	}
}

// BlockByteSize returns the number of uncompressed bytes in block b.
func (h *Header) BlockByteSize(b BlockIndex) int {
	n := 0
	for row := 0; row < b.Size.Y; row++ {
		y := b.Position.Y + row
		for _, c := range h.Channels {
			if y%c.YSampling != 0 {
				continue
			}
			n += b.Size.X / c.XSampling * c.Type.Size()
		}
	}
	return n
}
