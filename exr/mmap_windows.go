//go:build windows

package exr

import (
	"io"
	"os"
	"syscall"
	"unsafe"
)

// mmapReader reads a file through a read-only file mapping.
type mmapReader struct {
	data   []byte
	file   *os.File
	handle syscall.Handle
}

// newMmapReader maps f. On success the reader owns f and closes it.
func newMmapReader(f *os.File) (*mmapReader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &mmapReader{file: f}, nil
	}
	handle, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, syscall.PAGE_READONLY,
		uint32(size>>32), uint32(size), nil)
	if err != nil {
		return nil, err
	}
	ptr, err := syscall.MapViewOfFile(handle, syscall.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		syscall.CloseHandle(handle)
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(size))
	return &mmapReader{data: data, file: f, handle: handle}, nil
}

func (m *mmapReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the size of the mapped file.
func (m *mmapReader) Size() int64 { return int64(len(m.data)) }

// Close unmaps the file and closes it.
func (m *mmapReader) Close() error {
	if m.data != nil {
		syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0])))
		m.data = nil
	}
	if m.handle != 0 {
		syscall.CloseHandle(m.handle)
		m.handle = 0
	}
	return m.file.Close()
}
