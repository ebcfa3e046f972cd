// Package interleave splits byte streams into their even and odd bytes.
//
// The RLE, ZIP and ZIPS codecs store the even-indexed bytes of a block
// followed by the odd-indexed ones, which places the low and high bytes of
// little-endian samples next to their peers.
package interleave

// Split writes the even bytes of src to the first half of dst and the odd
// bytes to the second half. The first half holds (len(src)+1)/2 bytes.
// dst must be as long as src.
func Split(dst, src []byte) {
	half := (len(src) + 1) / 2
	lo, hi := dst[:half], dst[half:len(src)]
	for i := 0; i < len(hi); i++ {
		lo[i] = src[2*i]
		hi[i] = src[2*i+1]
	}
	if len(src)%2 == 1 {
		lo[half-1] = src[len(src)-1]
	}
}

// Merge undoes Split.
func Merge(dst, src []byte) {
	half := (len(src) + 1) / 2
	lo, hi := src[:half], src[half:]
	for i := 0; i < len(hi); i++ {
		dst[2*i] = lo[i]
		dst[2*i+1] = hi[i]
	}
	if len(src)%2 == 1 {
		dst[len(src)-1] = lo[half-1]
	}
}
