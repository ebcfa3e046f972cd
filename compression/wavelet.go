package compression

// Haar wavelet used by PIZ. Pairs of 16-bit words become an average and a
// difference. When every word is below 1<<14 plain signed arithmetic
// cannot overflow; otherwise the modular variant is used.

const (
	wavAOffset  = 1 << 15
	wavMOffset  = 1 << 15
	wavModMask  = 1<<16 - 1
	wavMaxFor14 = 1 << 14
)

func wenc14(a, b uint16) (l, h uint16) {
	as, bs := int(int16(a)), int(int16(b))
	return uint16(int16((as + bs) >> 1)), uint16(int16(as - bs))
}

func wdec14(l, h uint16) (a, b uint16) {
	ls, hs := int(int16(l)), int(int16(h))
	ai := ls + (hs & 1) + (hs >> 1)
	return uint16(int16(ai)), uint16(int16(ai - hs))
}

func wenc16(a, b uint16) (l, h uint16) {
	ao := (int(a) + wavAOffset) & wavModMask
	m := (ao + int(b)) >> 1
	d := ao - int(b)
	if d < 0 {
		m = (m + wavMOffset) & wavModMask
	}
	return uint16(m), uint16(d & wavModMask)
}

func wdec16(l, h uint16) (a, b uint16) {
	m, d := int(l), int(h)
	bb := (m - (d >> 1)) & wavModMask
	aa := (d + bb - wavAOffset) & wavModMask
	return uint16(aa), uint16(bb)
}

// wav2Encode transforms an nx by ny grid of words in place. Neighbours in
// x are ox words apart and neighbours in y are oy words apart. mx is the
// largest word in the grid.
func wav2Encode(buf []uint16, nx, ox, ny, oy int, mx uint16) {
	enc := wenc16
	if mx < wavMaxFor14 {
		enc = wenc14
	}
	n := min(nx, ny)
	for p, p2 := 1, 2; p2 <= n; p, p2 = p2, p2<<1 {
		oy1, oy2 := oy*p, oy*p2
		ox1, ox2 := ox*p, ox*p2
		py := 0
		for ; py <= oy*(ny-p2); py += oy2 {
			px := py
			for ; px <= py+ox*(nx-p2); px += ox2 {
				p01, p10 := px+ox1, px+oy1
				p11 := p10 + ox1
				i00, i01 := enc(buf[px], buf[p01])
				i10, i11 := enc(buf[p10], buf[p11])
				buf[px], buf[p10] = enc(i00, i10)
				buf[p01], buf[p11] = enc(i01, i11)
			}
			if nx&p != 0 {
				p10 := px + oy1
				buf[px], buf[p10] = enc(buf[px], buf[p10])
			}
		}
		if ny&p != 0 {
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				p01 := px + ox1
				buf[px], buf[p01] = enc(buf[px], buf[p01])
			}
		}
	}
}

// wav2Decode inverts wav2Encode.
func wav2Decode(buf []uint16, nx, ox, ny, oy int, mx uint16) {
	dec := wdec16
	if mx < wavMaxFor14 {
		dec = wdec14
	}
	n := min(nx, ny)
	p := 1
	for p <= n {
		p <<= 1
	}
	p2 := p >> 1
	for p = p2 >> 1; p >= 1; p, p2 = p>>1, p {
		oy1, oy2 := oy*p, oy*p2
		ox1, ox2 := ox*p, ox*p2
		py := 0
		for ; py <= oy*(ny-p2); py += oy2 {
			px := py
			for ; px <= py+ox*(nx-p2); px += ox2 {
				p01, p10 := px+ox1, px+oy1
				p11 := p10 + ox1
				i00, i10 := dec(buf[px], buf[p10])
				i01, i11 := dec(buf[p01], buf[p11])
				buf[px], buf[p01] = dec(i00, i01)
				buf[p10], buf[p11] = dec(i10, i11)
			}
			if nx&p != 0 {
				p10 := px + oy1
				buf[px], buf[p10] = dec(buf[px], buf[p10])
			}
		}
		if ny&p != 0 {
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				p01 := px + ox1
				buf[px], buf[p01] = dec(buf[px], buf[p01])
			}
		}
	}
}
