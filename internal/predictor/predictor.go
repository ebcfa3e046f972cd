// Package predictor implements the byte predictor applied before the RLE,
// ZIP and ZIPS codecs.
//
// Each byte is replaced by its difference to the previous byte, biased by
// 128 so that smooth data clusters around 0x80.
package predictor

// Encode replaces data with biased differences, in place.
func Encode(data []byte) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] = data[i] - data[i-1] + 128
	}
}

// Decode undoes Encode in place.
func Decode(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = data[i-1] + data[i] - 128
	}
}
