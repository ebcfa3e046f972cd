package compression

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd is a zstandard codec. It is not part of the OpenEXR standard and files
// using it can only be read by this package. The bytes are split and
// predicted as for ZIP before being compressed.
type Zstd struct{}

var zstdEncoders = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return enc
	},
}

// zstdMaxDecodedSize caps the output of a single decode.
const zstdMaxDecodedSize = 1 << 32

var zstdDecoders = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(zstdMaxDecodedSize))
		return dec
	},
}

func (Zstd) Compress(src []byte, _ Block) ([]byte, error) {
	enc := zstdEncoders.Get().(*zstd.Encoder)
	defer zstdEncoders.Put(enc)
	return enc.EncodeAll(prepare(src), nil), nil
}

func (Zstd) Decompress(src []byte, _ Block, expectedSize int) ([]byte, error) {
	// A frame declaring another size is rejected before it is inflated.
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, ErrCorrupted
	}
	if h.HasFCS && !h.Skippable && h.FrameContentSize != uint64(expectedSize) {
		return nil, ErrSizeMismatch
	}
	dec := zstdDecoders.Get().(*zstd.Decoder)
	defer zstdDecoders.Put(dec)
	tmp, err := dec.DecodeAll(src, make([]byte, 0, expectedSize))
	if err != nil {
		return nil, ErrCorrupted
	}
	if len(tmp) != expectedSize {
		return nil, ErrSizeMismatch
	}
	return restore(tmp), nil
}
