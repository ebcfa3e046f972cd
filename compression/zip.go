package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// ZIP is the zlib codec used by both ZIPS (one row per chunk) and ZIP
// (sixteen rows per chunk). The bytes are split and predicted as for RLE.
type ZIP struct {
	// Level is a zlib compression level. Zero selects the default.
	Level int
}

func (z ZIP) Compress(src []byte, _ Block) ([]byte, error) {
	return zlibCompress(prepare(src), z.Level)
}

func (ZIP) Decompress(src []byte, _ Block, expectedSize int) ([]byte, error) {
	tmp := make([]byte, expectedSize)
	if err := zlibDecompress(tmp, src); err != nil {
		return nil, err
	}
	return restore(tmp), nil
}

type zlibWriter struct {
	w   *zlib.Writer
	buf bytes.Buffer
}

var zlibWriters = sync.Pool{
	New: func() any {
		zw := &zlibWriter{}
		zw.w, _ = zlib.NewWriterLevel(&zw.buf, zlib.DefaultCompression)
		return zw
	},
}

// zlibCompress deflates src. Writers at the default level are pooled.
func zlibCompress(src []byte, level int) ([]byte, error) {
	if level != 0 && level != zlib.DefaultCompression {
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	zw := zlibWriters.Get().(*zlibWriter)
	defer zlibWriters.Put(zw)
	zw.buf.Reset()
	zw.w.Reset(&zw.buf)
	if _, err := zw.w.Write(src); err != nil {
		return nil, err
	}
	if err := zw.w.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(zw.buf.Bytes()), nil
}

type zlibReader struct {
	r   io.ReadCloser
	src bytes.Reader
}

var zlibReaders = sync.Pool{
	New: func() any { return &zlibReader{} },
}

// zlibDecompress inflates src into dst, which must be filled exactly.
func zlibDecompress(dst, src []byte) error {
	zr := zlibReaders.Get().(*zlibReader)
	defer zlibReaders.Put(zr)
	zr.src.Reset(src)

	if zr.r == nil {
		r, err := zlib.NewReader(&zr.src)
		if err != nil {
			return ErrCorrupted
		}
		zr.r = r
	} else if err := zr.r.(zlib.Resetter).Reset(&zr.src, nil); err != nil {
		return ErrCorrupted
	}

	if _, err := io.ReadFull(zr.r, dst); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return ErrSizeMismatch
		}
		return ErrCorrupted
	}
	// trailing data means the stream holds more than the block
	var one [1]byte
	if n, _ := zr.r.Read(one[:]); n != 0 {
		return ErrSizeMismatch
	}
	return nil
}
