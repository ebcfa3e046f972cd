package compression

import (
	"container/heap"
	"encoding/binary"
)

// Huffman coding of 16-bit words as used by PIZ.
//
// A coded block starts with five little-endian uint32 values: the smallest
// and largest table symbol, the table length in bytes, the number of data
// bits, and a reserved zero. The code length table follows, six bits per
// symbol with runs of zero lengths folded, then the MSB-first code bits.
// The largest symbol is a run marker: it is followed by an 8-bit count of
// extra copies of the previous word.

const (
	hufEncSize       = 1<<16 + 1
	hufMaxCodeLen    = 58
	hufShortZeroRun  = 59
	hufLongZeroRun   = 63
	hufShortestRun   = 6
	hufLongestRun    = 255 + hufShortestRun
	hufHeaderSize    = 20
	hufFastBits      = 12
	hufMaxRepetition = 255
)

type bitWriter struct {
	out []byte
	c   uint64
	lc  int
}

// write appends the low n bits of v, most significant first.
func (w *bitWriter) write(n int, v uint64) {
	if n > 32 {
		w.write(n-32, v>>32)
		n, v = 32, v&(1<<32-1)
	}
	w.c = w.c<<n | v
	w.lc += n
	for w.lc >= 8 {
		w.lc -= 8
		w.out = append(w.out, byte(w.c>>w.lc))
	}
}

// flush pads the pending bits to a byte and returns the number of bits
// written before padding.
func (w *bitWriter) flush() int {
	n := len(w.out)*8 + w.lc
	if w.lc > 0 {
		w.out = append(w.out, byte(w.c<<(8-w.lc)))
		w.lc = 0
	}
	return n
}

type bitReader struct {
	src []byte
	pos int
	end int
}

func (r *bitReader) left() int { return r.end - r.pos }

func (r *bitReader) bit(i int) uint64 {
	return uint64(r.src[i>>3]>>(7-i&7)) & 1
}

// read consumes n bits. The caller checks that enough bits are left.
func (r *bitReader) read(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<1 | r.bit(r.pos+i)
	}
	r.pos += n
	return v
}

// peekFast returns the next hufFastBits bits, padded with zeros past the
// end of the data.
func (r *bitReader) peekFast() uint32 {
	i := r.pos >> 3
	var v uint32
	for k := 0; k < 3; k++ {
		v <<= 8
		if i+k < len(r.src) {
			v |= uint32(r.src[i+k])
		}
	}
	return v >> (24 - hufFastBits - r.pos&7) & (1<<hufFastBits - 1)
}

// hufHeap orders symbols by frequency, then by value.
type hufHeap struct {
	freq []uint64
	syms []int
}

func (h *hufHeap) Len() int { return len(h.syms) }

func (h *hufHeap) Less(i, j int) bool {
	a, b := h.syms[i], h.syms[j]
	return h.freq[a] < h.freq[b] || h.freq[a] == h.freq[b] && a < b
}

func (h *hufHeap) Swap(i, j int) { h.syms[i], h.syms[j] = h.syms[j], h.syms[i] }
func (h *hufHeap) Push(x any)   { h.syms = append(h.syms, x.(int)) }

func (h *hufHeap) Pop() any {
	x := h.syms[len(h.syms)-1]
	h.syms = h.syms[:len(h.syms)-1]
	return x
}

// hufCodeLengths builds code lengths for the symbols im..iM with non-zero
// frequency. freq is consumed. Merged subtrees are kept as linked lists of
// symbols so every merge lengthens the codes of both lists by one.
func hufCodeLengths(freq []uint64, im, iM int) ([]uint8, bool) {
	lengths := make([]uint8, iM+1)
	link := make([]int, iM+1)
	h := &hufHeap{freq: freq}
	for i := im; i <= iM; i++ {
		link[i] = i
		if freq[i] > 0 {
			h.syms = append(h.syms, i)
		}
	}
	heap.Init(h)
	for h.Len() > 1 {
		mm := heap.Pop(h).(int)
		m := heap.Pop(h).(int)
		freq[m] += freq[mm]
		heap.Push(h, m)
		for j := m; ; j = link[j] {
			lengths[j]++
			if link[j] == j {
				link[j] = mm
				break
			}
		}
		for j := mm; ; j = link[j] {
			lengths[j]++
			if link[j] == j {
				break
			}
		}
	}
	for _, l := range lengths {
		if l > hufMaxCodeLen {
			return nil, false
		}
	}
	return lengths, true
}

// hufCanonicalStarts returns the first code of every length. Longer codes
// take the numerically smaller values.
func hufCanonicalStarts(lengths []uint8) (start, count [hufMaxCodeLen + 1]uint64) {
	for _, l := range lengths {
		count[l]++
	}
	var c uint64
	for l := hufMaxCodeLen; l > 0; l-- {
		start[l] = c
		c = (c + count[l]) >> 1
	}
	return start, count
}

// hufCodes assigns canonical codes in symbol order within each length.
func hufCodes(lengths []uint8) []uint64 {
	start, _ := hufCanonicalStarts(lengths)
	codes := make([]uint64, len(lengths))
	for i, l := range lengths {
		if l > 0 {
			codes[i] = start[l]
			start[l]++
		}
	}
	return codes
}

func hufPackTable(w *bitWriter, lengths []uint8, im, iM int) {
	for i := im; i <= iM; i++ {
		if lengths[i] == 0 {
			run := 1
			for i < iM && run < hufLongestRun && lengths[i+1] == 0 {
				i++
				run++
			}
			switch {
			case run >= hufShortestRun:
				w.write(6, hufLongZeroRun)
				w.write(8, uint64(run-hufShortestRun))
				continue
			case run >= 2:
				w.write(6, uint64(hufShortZeroRun+run-2))
				continue
			}
		}
		w.write(6, uint64(lengths[i]))
	}
}

// hufUnpackTable reads the code lengths of im..iM and returns them with
// the bytes that follow the table.
func hufUnpackTable(src []byte, im, iM int) ([]uint8, []byte, error) {
	lengths := make([]uint8, iM+1)
	r := bitReader{src: src, end: 8 * len(src)}
	for i := im; i <= iM; i++ {
		if r.left() < 6 {
			return nil, nil, ErrCorrupted
		}
		l := int(r.read(6))
		run := 0
		switch {
		case l == hufLongZeroRun:
			if r.left() < 8 {
				return nil, nil, ErrCorrupted
			}
			run = int(r.read(8)) + hufShortestRun
		case l >= hufShortZeroRun:
			run = l - hufShortZeroRun + 2
		default:
			lengths[i] = uint8(l)
			continue
		}
		if i+run > iM+1 {
			return nil, nil, ErrCorrupted
		}
		i += run - 1
	}
	return lengths, src[(r.pos+7)/8:], nil
}

type hufDecoder struct {
	// fast holds symbol<<8 | length for codes of up to hufFastBits bits.
	fast   [1 << hufFastBits]uint32
	start  [hufMaxCodeLen + 1]uint64
	count  [hufMaxCodeLen + 1]uint64
	offset [hufMaxCodeLen + 1]int
	syms   []int
}

func newHufDecoder(lengths []uint8) (*hufDecoder, error) {
	d := &hufDecoder{}
	d.start, d.count = hufCanonicalStarts(lengths)
	d.count[0] = 0
	n := 0
	for l := 1; l <= hufMaxCodeLen; l++ {
		if d.start[l]+d.count[l] > 1<<l {
			return nil, ErrCorrupted
		}
		d.offset[l] = n
		n += int(d.count[l])
	}
	d.syms = make([]int, n)
	next := d.offset
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		d.syms[next[l]] = sym
		code := d.start[l] + uint64(next[l]-d.offset[l])
		next[l]++
		if l <= hufFastBits {
			shift := hufFastBits - int(l)
			for k := code << shift; k < (code+1)<<shift; k++ {
				d.fast[k] = uint32(sym)<<8 | uint32(l)
			}
		}
	}
	return d, nil
}

// next decodes one symbol.
func (d *hufDecoder) next(r *bitReader) (int, bool) {
	if e := d.fast[r.peekFast()]; e != 0 {
		l := int(e & 0xff)
		if l > r.left() {
			return 0, false
		}
		r.pos += l
		return int(e >> 8), true
	}
	var code uint64
	for l := 1; l <= hufMaxCodeLen && l <= r.left(); l++ {
		code = code<<1 | r.bit(r.pos+l-1)
		if l > hufFastBits && code >= d.start[l] && code-d.start[l] < d.count[l] {
			r.pos += l
			return d.syms[d.offset[l]+int(code-d.start[l])], true
		}
	}
	return 0, false
}

// hufCompress codes values and returns the coded block, or nil for no
// values.
func hufCompress(values []uint16) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	freq := make([]uint64, hufEncSize)
	for _, v := range values {
		freq[v]++
	}
	im, iM := 0, 0
	for freq[im] == 0 {
		im++
	}
	for i := im; i < hufEncSize-1; i++ {
		if freq[i] > 0 {
			iM = i
		}
	}
	iM++
	freq[iM] = 1
	lengths, ok := hufCodeLengths(freq, im, iM)
	if !ok {
		return nil, ErrUnsupported
	}
	codes := hufCodes(lengths)

	w := &bitWriter{out: make([]byte, hufHeaderSize, hufHeaderSize+len(values))}
	hufPackTable(w, lengths, im, iM)
	w.flush()
	tableLen := len(w.out) - hufHeaderSize

	send := func(s uint16, run int) {
		sl, rl := int(lengths[s]), int(lengths[iM])
		if sl+rl+8 < sl*run {
			w.write(sl, codes[s])
			w.write(rl, codes[iM])
			w.write(8, uint64(run))
			return
		}
		for ; run >= 0; run-- {
			w.write(sl, codes[s])
		}
	}
	s, run := values[0], 0
	for _, v := range values[1:] {
		if v == s && run < hufMaxRepetition {
			run++
			continue
		}
		send(s, run)
		s, run = v, 0
	}
	send(s, run)
	nBits := w.flush() - 8*(hufHeaderSize+tableLen)

	out := w.out
	binary.LittleEndian.PutUint32(out[0:], uint32(im))
	binary.LittleEndian.PutUint32(out[4:], uint32(iM))
	binary.LittleEndian.PutUint32(out[8:], uint32(tableLen))
	binary.LittleEndian.PutUint32(out[12:], uint32(nBits))
	binary.LittleEndian.PutUint32(out[16:], 0)
	return out, nil
}

// hufUncompress decodes a block made by hufCompress into out, which must
// be filled exactly.
func hufUncompress(src []byte, out []uint16) error {
	if len(src) == 0 {
		if len(out) != 0 {
			return ErrSizeMismatch
		}
		return nil
	}
	if len(src) < hufHeaderSize {
		return ErrCorrupted
	}
	im := binary.LittleEndian.Uint32(src[0:])
	iM := binary.LittleEndian.Uint32(src[4:])
	nBits := uint64(binary.LittleEndian.Uint32(src[12:]))
	if im >= hufEncSize || iM >= hufEncSize || im > iM {
		return ErrCorrupted
	}
	lengths, data, err := hufUnpackTable(src[hufHeaderSize:], int(im), int(iM))
	if err != nil {
		return err
	}
	if nBits > 8*uint64(len(data)) {
		return ErrCorrupted
	}
	d, err := newHufDecoder(lengths)
	if err != nil {
		return err
	}

	rle := int(iM)
	r := bitReader{src: data[:(nBits+7)/8], end: int(nBits)}
	n := 0
	for r.left() > 0 {
		sym, ok := d.next(&r)
		if !ok {
			return ErrCorrupted
		}
		if sym != rle {
			if n == len(out) {
				return ErrSizeMismatch
			}
			out[n] = uint16(sym)
			n++
			continue
		}
		if r.left() < 8 || n == 0 {
			return ErrCorrupted
		}
		run := int(r.read(8))
		if n+run > len(out) {
			return ErrSizeMismatch
		}
		prev := out[n-1]
		for k := 0; k < run; k++ {
			out[n+k] = prev
		}
		n += run
	}
	if n != len(out) {
		return ErrSizeMismatch
	}
	return nil
}
