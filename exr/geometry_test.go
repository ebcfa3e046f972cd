package exr

import (
	"testing"
)

func TestLevelSize(t *testing.T) {
	tests := []struct {
		n, l     int
		rounding LevelRoundingMode
		want     int
	}{
		{100, 0, LevelRoundDown, 100},
		{100, 1, LevelRoundDown, 50},
		{100, 3, LevelRoundDown, 12},
		{100, 3, LevelRoundUp, 13},
		{100, 7, LevelRoundDown, 1},
		{100, 7, LevelRoundUp, 1},
		{1, 0, LevelRoundDown, 1},
		{7, 1, LevelRoundUp, 4},
		{7, 2, LevelRoundUp, 2},
		{8, 3, LevelRoundUp, 1},
		{5, 100, LevelRoundDown, 1},
	}
	for _, tt := range tests {
		if got := levelSize(tt.n, tt.l, tt.rounding); got != tt.want {
			t.Errorf("levelSize(%d, %d, %d) = %d, want %d", tt.n, tt.l, tt.rounding, got, tt.want)
		}
	}
}

func TestLevelSizeMatchesFloorFormula(t *testing.T) {
	for n := 1; n <= 300; n++ {
		for l := 0; l < levelCount(n, LevelRoundDown); l++ {
			want := max(1, n/(1<<l))
			if got := levelSize(n, l, LevelRoundDown); got != want {
				t.Fatalf("levelSize(%d, %d) = %d, want %d", n, l, got, want)
			}
		}
	}
}

func TestLevelCount(t *testing.T) {
	tests := []struct {
		n        int
		rounding LevelRoundingMode
		want     int
	}{
		{1, LevelRoundDown, 1},
		{2, LevelRoundDown, 2},
		{3, LevelRoundDown, 2},
		{3, LevelRoundUp, 3},
		{4, LevelRoundUp, 3},
		{100, LevelRoundDown, 7},
		{100, LevelRoundUp, 8},
		{1024, LevelRoundUp, 11},
	}
	for _, tt := range tests {
		if got := levelCount(tt.n, tt.rounding); got != tt.want {
			t.Errorf("levelCount(%d, %d) = %d, want %d", tt.n, tt.rounding, got, tt.want)
		}
	}
}

func tiledHeader(w, h int, td TileDescription) *Header {
	return &Header{
		Type:        TypeTiled,
		Channels:    []Channel{NewChannel("Y", PixelTypeHalf)},
		DataWindow:  NewBox2i(V2i{-3, 2}, V2i{w, h}),
		Tiles:       &td,
		Compression: CompressionNone,
	}
}

func TestLevels(t *testing.T) {
	mip := tiledHeader(10, 4, TileDescription{XSize: 4, YSize: 4, Mode: LevelModeMipmap})
	want := []LevelInfo{
		{LevelIndex{0, 0}, V2i{10, 4}},
		{LevelIndex{1, 1}, V2i{5, 2}},
		{LevelIndex{2, 2}, V2i{2, 1}},
		{LevelIndex{3, 3}, V2i{1, 1}},
	}
	if got := mip.Levels(); !equalLevels(got, want) {
		t.Errorf("mipmap levels = %v, want %v", got, want)
	}

	rip := tiledHeader(4, 3, TileDescription{XSize: 4, YSize: 4, Mode: LevelModeRipmap, RoundingMode: LevelRoundUp})
	want = []LevelInfo{
		{LevelIndex{0, 0}, V2i{4, 3}},
		{LevelIndex{1, 0}, V2i{2, 3}},
		{LevelIndex{2, 0}, V2i{1, 3}},
		{LevelIndex{0, 1}, V2i{4, 2}},
		{LevelIndex{1, 1}, V2i{2, 2}},
		{LevelIndex{2, 1}, V2i{1, 2}},
		{LevelIndex{0, 2}, V2i{4, 1}},
		{LevelIndex{1, 2}, V2i{2, 1}},
		{LevelIndex{2, 2}, V2i{1, 1}},
	}
	if got := rip.Levels(); !equalLevels(got, want) {
		t.Errorf("ripmap levels = %v, want %v", got, want)
	}

	one := tiledHeader(10, 4, TileDescription{XSize: 4, YSize: 4})
	if got := one.Levels(); len(got) != 1 || got[0].Size != (V2i{10, 4}) {
		t.Errorf("single level = %v", got)
	}
}

func equalLevels(a, b []LevelInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkPartition verifies that the blocks of every level cover it exactly
// once and that their indices run from zero.
func checkPartition(t *testing.T, h *Header) {
	t.Helper()
	blocks := h.Blocks()
	if len(blocks) != h.blockCount() {
		t.Fatalf("%d blocks, blockCount %d", len(blocks), h.blockCount())
	}
	covered := make(map[LevelIndex][]int)
	for _, l := range h.Levels() {
		covered[l.Index] = make([]int, l.Size.X*l.Size.Y)
	}
	for i, b := range blocks {
		if b.Index != i {
			t.Fatalf("block %d has index %d", i, b.Index)
		}
		grid, ok := covered[b.Level]
		if !ok {
			t.Fatalf("block %d in unknown level %v", i, b.Level)
		}
		size := h.LevelSize(b.Level)
		for y := b.Position.Y; y < b.Position.Y+b.Size.Y; y++ {
			for x := b.Position.X; x < b.Position.X+b.Size.X; x++ {
				if x < 0 || y < 0 || x >= size.X || y >= size.Y {
					t.Fatalf("block %d covers (%d,%d) outside level %v", i, x, y, size)
				}
				grid[y*size.X+x]++
			}
		}
		index, ok := h.BlockAt(h.coords(b))
		if !ok || index != i {
			t.Fatalf("BlockAt(%+v) = %d, %v, want %d", h.coords(b), index, ok, i)
		}
	}
	for level, grid := range covered {
		for p, n := range grid {
			if n != 1 {
				t.Fatalf("level %v pixel %d covered %d times", level, p, n)
			}
		}
	}
}

func TestBlockPartition(t *testing.T) {
	for _, w := range []int{1, 7, 16, 33} {
		for _, ht := range []int{1, 5, 16, 40} {
			for _, c := range []Compression{CompressionNone, CompressionZIP, CompressionPIZ, CompressionDWAB} {
				h := &Header{
					Channels:    []Channel{NewChannel("Y", PixelTypeHalf)},
					DataWindow:  NewBox2i(V2i{5, -7}, V2i{w, ht}),
					Compression: c,
				}
				checkPartition(t, h)
			}
			for _, td := range corpusTiles[1:] {
				checkPartition(t, tiledHeader(w, ht, *td))
			}
		}
	}
}

func TestWriteOrder(t *testing.T) {
	h := &Header{
		Channels:    []Channel{NewChannel("Y", PixelTypeHalf)},
		DataWindow:  NewBox2i(V2i{}, V2i{4, 40}),
		Compression: CompressionZIP,
		LineOrder:   LineOrderDecreasing,
	}
	order := h.WriteOrder()
	for i, b := range order {
		if b.Index != len(order)-1-i {
			t.Fatalf("decreasing scanline order: position %d holds block %d", i, b.Index)
		}
	}

	h = tiledHeader(8, 8, TileDescription{XSize: 4, YSize: 4, Mode: LevelModeMipmap})
	h.LineOrder = LineOrderDecreasing
	var got []ChunkCoords
	for _, b := range h.WriteOrder() {
		got = append(got, h.coords(b))
	}
	want := []ChunkCoords{
		{Tile: V2i{0, 1}}, {Tile: V2i{1, 1}}, {Tile: V2i{0, 0}}, {Tile: V2i{1, 0}},
		{Level: LevelIndex{1, 1}},
		{Level: LevelIndex{2, 2}},
		{Level: LevelIndex{3, 3}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tiles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tile %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	h.LineOrder = LineOrderRandom
	for i, b := range h.WriteOrder() {
		if b.Index != i {
			t.Fatalf("random line order does not use increasing order")
		}
	}
}

func TestBlockAtRejectsForeignCoordinates(t *testing.T) {
	scan := &Header{
		Channels:    []Channel{NewChannel("Y", PixelTypeHalf)},
		DataWindow:  NewBox2i(V2i{0, 10}, V2i{4, 40}),
		Compression: CompressionZIP,
	}
	for _, y := range []int{9, 11, 50, 27} {
		if _, ok := scan.BlockAt(ChunkCoords{Y: y}); ok {
			t.Errorf("BlockAt(y=%d) accepted", y)
		}
	}
	if i, ok := scan.BlockAt(ChunkCoords{Y: 42}); !ok || i != 2 {
		t.Errorf("BlockAt(y=42) = %d, %v", i, ok)
	}

	mip := tiledHeader(8, 8, TileDescription{XSize: 4, YSize: 4, Mode: LevelModeMipmap})
	for _, c := range []ChunkCoords{
		{Tile: V2i{2, 0}},
		{Tile: V2i{0, -1}},
		{Level: LevelIndex{1, 0}},
		{Level: LevelIndex{4, 4}},
	} {
		if _, ok := mip.BlockAt(c); ok {
			t.Errorf("BlockAt(%+v) accepted", c)
		}
	}
}

func TestBlockByteSize(t *testing.T) {
	h := &Header{
		Channels: []Channel{
			{Name: "A", Type: PixelTypeFloat, XSampling: 2, YSampling: 2},
			{Name: "Y", Type: PixelTypeHalf, XSampling: 1, YSampling: 1},
		},
		DataWindow:  NewBox2i(V2i{}, V2i{8, 6}),
		Compression: CompressionZIP,
	}
	b := h.Blocks()[0]
	// Y: 6 rows of 8 halves; A: 3 rows of 4 floats.
	if got, want := h.BlockByteSize(b), 6*8*2+3*4*4; got != want {
		t.Errorf("BlockByteSize = %d, want %d", got, want)
	}
	if got := h.blockLayout(b, codecChannels(h.Channels)).Size(); got != h.BlockByteSize(b) {
		t.Errorf("codec layout size %d differs from BlockByteSize", got)
	}
}
