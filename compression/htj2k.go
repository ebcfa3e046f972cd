package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"github.com/mrjoshuak/go-jpeg2000"
)

const (
	htj2kMagic      = 0x4854 // "HT"
	htj2kHeaderSize = 6
)

// HTJ2K is the high throughput JPEG 2000 codec. The chunk bytes are coded
// losslessly as a single 16 bit component: one image row per chunk row when
// every row has the same length, otherwise a single row holding the whole
// chunk. Codestreams with more than one component are not supported.
type HTJ2K struct {
	// BlockSize is the code block size, 32 or 128.
	BlockSize int
}

func (h HTJ2K) Compress(src []byte, b Block) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, ErrSizeMismatch
	}
	width, height := len(src)/2, 1
	if uniformRows(b) && b.Height > 0 && len(src)%(2*b.Height) == 0 {
		width, height = len(src)/(2*b.Height), b.Height
	}
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for i := 0; i < len(src); i += 2 {
		// Gray16 stores samples big-endian
		img.Pix[i] = src[i+1]
		img.Pix[i+1] = src[i]
	}

	var out bytes.Buffer
	out.Write([]byte{htj2kMagic >> 8, htj2kMagic & 0xFF})
	out.Write(binary.BigEndian.AppendUint32(nil, 4)) // channel count plus one map entry
	out.Write(binary.BigEndian.AppendUint16(nil, 1))
	out.Write(binary.BigEndian.AppendUint16(nil, 0))

	blockSize := h.BlockSize
	if blockSize == 0 {
		blockSize = 128
	}
	opts := &jpeg2000.Options{
		Format:         jpeg2000.FormatJ2K,
		Lossless:       true,
		HighThroughput: true,
		HTBlockWidth:   blockSize,
		HTBlockHeight:  blockSize,
		NumResolutions: resolutions(width, height),
		NumLayers:      1,
	}
	if err := jpeg2000.Encode(&out, img, opts); err != nil {
		return nil, fmt.Errorf("htj2k: %w", err)
	}
	return out.Bytes(), nil
}

func (HTJ2K) Decompress(src []byte, _ Block, expectedSize int) ([]byte, error) {
	codestream, channels, err := readHTJ2KHeader(src)
	if err != nil {
		return nil, err
	}
	if channels != 1 {
		return nil, fmt.Errorf("%w: htj2k codestream with %d components", ErrUnsupported, channels)
	}
	img, err := jpeg2000.Decode(bytes.NewReader(codestream))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("%w: htj2k component is not 16 bit", ErrUnsupported)
	}
	r := gray.Bounds()
	if r.Dx()*r.Dy()*2 != expectedSize {
		return nil, ErrSizeMismatch
	}
	dst := make([]byte, 0, expectedSize)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst = binary.LittleEndian.AppendUint16(dst, gray.Gray16At(x, y).Y)
		}
	}
	return dst, nil
}

// readHTJ2KHeader checks the chunk header and returns the codestream and the
// number of channel map entries.
func readHTJ2KHeader(src []byte) ([]byte, int, error) {
	if len(src) < htj2kHeaderSize+2 || binary.BigEndian.Uint16(src) != htj2kMagic {
		return nil, 0, ErrCorrupted
	}
	payload := int(binary.BigEndian.Uint32(src[2:]))
	if payload < 2 || payload > len(src)-htj2kHeaderSize {
		return nil, 0, ErrCorrupted
	}
	count := int(binary.BigEndian.Uint16(src[htj2kHeaderSize:]))
	if 2+2*count > payload {
		return nil, 0, ErrCorrupted
	}
	return src[htj2kHeaderSize+payload:], count, nil
}

func uniformRows(b Block) bool {
	for _, c := range b.Channels {
		if c.YSampling > 1 {
			return false
		}
	}
	return true
}

// resolutions picks a resolution count the image is large enough for.
func resolutions(width, height int) int {
	n := 1
	for d := min(width, height); d >= 2 && n < 6; d /= 2 {
		n++
	}
	return n
}
