package bitio

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter(8)
	w.WriteBits(0b101, 3)
	w.WriteBits(0b11110000, 8)
	w.WriteBits(0, 1)
	w.WriteBits(0b1, 1)
	data := w.Bytes()

	r := NewReader(data)
	v, err := r.ReadBits(3)
	if err != nil || v != 0b101 {
		t.Fatalf("first field: got %b, err %v", v, err)
	}
	v, err = r.ReadBits(8)
	if err != nil || v != 0b11110000 {
		t.Fatalf("second field: got %b, err %v", v, err)
	}
	v, err = r.ReadBits(1)
	if err != nil || v != 0 {
		t.Fatalf("third field: got %b, err %v", v, err)
	}
	v, err = r.ReadBits(1)
	if err != nil || v != 1 {
		t.Fatalf("fourth field: got %b, err %v", v, err)
	}
}

func TestReadPastEndIsError(t *testing.T) {
	r := NewReader([]byte{0xff})
	if _, err := r.ReadBits(9); err != ErrShortRead {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestWideFields(t *testing.T) {
	w := NewWriter(8)
	w.WriteBits(0x1FFFFFFFFFFFFF, 57) // max safe width
	data := w.Bytes()
	r := NewReader(data)
	v, err := r.ReadBits(57)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x1FFFFFFFFFFFFF {
		t.Fatalf("got %x", v)
	}
}

func TestBitsAvailable(t *testing.T) {
	r := NewReader([]byte{0x00, 0x00})
	if got := r.BitsAvailable(); got != 16 {
		t.Fatalf("got %d", got)
	}
	if _, err := r.ReadBits(4); err != nil {
		t.Fatal(err)
	}
	if got := r.BitsAvailable(); got != 12 {
		t.Fatalf("got %d", got)
	}
}

func TestPeekBitsPadded(t *testing.T) {
	r := NewReader([]byte{0b10110000})
	v, avail := r.PeekBitsPadded(4)
	if v != 0b1011 || avail != 4 {
		t.Fatalf("got %b avail %d", v, avail)
	}
	if err := r.SkipBits(6); err != nil {
		t.Fatal(err)
	}

	// Two real bits left; the rest of the peek is zero padding.
	v, avail = r.PeekBitsPadded(8)
	if avail != 2 {
		t.Fatalf("avail = %d, want 2", avail)
	}
	if v != 0 {
		t.Fatalf("got %b, want zero-padded zeros", v)
	}

	if err := r.SkipBits(2); err != nil {
		t.Fatal(err)
	}
	if _, avail = r.PeekBitsPadded(8); avail != 0 {
		t.Fatalf("avail = %d at end of stream, want 0", avail)
	}
}
