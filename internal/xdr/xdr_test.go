package xdr

import (
	"errors"
	"math"
	"testing"
)

func TestReaderIntegers(t *testing.T) {
	data := []byte{
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0xEF, 0xCD, 0xAB, 0x89, 0x67, 0x45, 0x23, 0x01,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	r := NewReader(data)

	u16, err := r.ReadUint16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadUint16() = %#x, %v", u16, err)
	}
	u32, err := r.ReadUint32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("ReadUint32() = %#x, %v", u32, err)
	}
	u64, err := r.ReadUint64()
	if err != nil || u64 != 0x0123456789ABCDEF {
		t.Fatalf("ReadUint64() = %#x, %v", u64, err)
	}
	i32, err := r.ReadInt32()
	if err != nil || i32 != -1 {
		t.Fatalf("ReadInt32() = %d, %v", i32, err)
	}
	if r.Len() != 0 || r.Pos() != len(data) {
		t.Errorf("Len() = %d, Pos() = %d after reading everything", r.Len(), r.Pos())
	}
	if _, err := r.ReadByte(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("ReadByte() past end: err = %v, want ErrShortBuffer", err)
	}
}

func TestReaderString(t *testing.T) {
	r := NewReader([]byte("channels\x00chlist\x00tail"))
	for _, want := range []string{"channels", "chlist"} {
		s, err := r.ReadString()
		if err != nil || s != want {
			t.Fatalf("ReadString() = %q, %v, want %q", s, err, want)
		}
	}
	pos := r.Pos()
	if _, err := r.ReadString(); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("unterminated string: err = %v", err)
	}
	if r.Pos() != pos {
		t.Errorf("failed ReadString moved position from %d to %d", pos, r.Pos())
	}
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Next(4); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Next(4) err = %v", err)
	}
	if err := r.Skip(-1); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Skip(-1) err = %v", err)
	}
	b, err := r.ReadBytes(2)
	if err != nil || len(b) != 2 || b[1] != 2 {
		t.Fatalf("ReadBytes(2) = %v, %v", b, err)
	}
	b[0] = 9
	if r.data[0] != 1 {
		t.Error("ReadBytes returned an aliasing slice")
	}
	if _, err := r.ReadUint32(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("ReadUint32 with one byte left err = %v", err)
	}
}

func TestBufferWriterRoundTrip(t *testing.T) {
	w := NewBufferWriter(8)
	w.WriteString("dataWindow")
	w.WriteByte(7)
	w.WriteUint16(0xBEEF)
	w.WriteInt32(-42)
	w.WriteUint64(1 << 40)
	w.WriteFloat32(1.5)
	w.WriteFloat64(math.Pi)
	w.WriteInt64(-3)

	r := NewReader(w.Bytes())
	if s, _ := r.ReadString(); s != "dataWindow" {
		t.Errorf("string = %q", s)
	}
	if b, _ := r.ReadByte(); b != 7 {
		t.Errorf("byte = %d", b)
	}
	if v, _ := r.ReadUint16(); v != 0xBEEF {
		t.Errorf("uint16 = %#x", v)
	}
	if v, _ := r.ReadInt32(); v != -42 {
		t.Errorf("int32 = %d", v)
	}
	if v, _ := r.ReadUint64(); v != 1<<40 {
		t.Errorf("uint64 = %d", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Errorf("float32 = %v", v)
	}
	if v, _ := r.ReadFloat64(); v != math.Pi {
		t.Errorf("float64 = %v", v)
	}
	if v, _ := r.ReadInt64(); v != -3 {
		t.Errorf("int64 = %d", v)
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left over", r.Len())
	}
}

func TestBufferWriterPut(t *testing.T) {
	w := NewBufferWriter(0)
	w.WriteUint32(0)
	w.WriteUint32(5)
	w.PutUint32(0, 99)
	r := NewReader(w.Bytes())
	if v, _ := r.ReadUint32(); v != 99 {
		t.Errorf("patched value = %d, want 99", v)
	}
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Len() after Reset = %d", w.Len())
	}
}
