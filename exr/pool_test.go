package exr

import (
	"testing"
)

func TestPoolIndex(t *testing.T) {
	tests := []struct{ size, want int }{
		{0, 0},
		{1 << 10, 0},
		{1<<10 + 1, 1},
		{300 << 10, 5},
		{4 << 20, 6},
		{4<<20 + 1, -1},
	}
	for _, tt := range tests {
		if got := poolIndex(tt.size); got != tt.want {
			t.Errorf("poolIndex(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestBufferPoolReuse(t *testing.T) {
	p := newBufferPool()
	buf := p.get(3000)
	if len(buf) != 3000 || cap(buf) != 4<<10 {
		t.Fatalf("len %d cap %d", len(buf), cap(buf))
	}
	p.put(buf)
	again := p.get(2000)
	if len(again) != 2000 || cap(again) != 4<<10 {
		t.Fatalf("len %d cap %d", len(again), cap(again))
	}
	hits, misses := p.stats()
	if hits+misses != 2 || misses < 1 {
		t.Errorf("hits %d misses %d", hits, misses)
	}

	big := p.get(5 << 20)
	if len(big) != 5<<20 {
		t.Fatalf("len %d", len(big))
	}
	p.put(big)
	p.put(make([]byte, 100, 1000))
}
