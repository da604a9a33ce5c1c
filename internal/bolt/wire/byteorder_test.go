package wire

import "testing"

func TestUint16RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	PutUint16(buf, 0xBEEF)
	if got := Uint16(buf); got != 0xBEEF {
		t.Fatalf("got %x, want beef", got)
	}
}

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32(buf, 0x6060B017)
	if got := Uint32(buf); got != 0x6060B017 {
		t.Fatalf("got %x, want 6060b017", got)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutUint64(buf, 0x0102030405060708)
	if got := Uint64(buf); got != 0x0102030405060708 {
		t.Fatalf("got %x, want 0102030405060708", got)
	}
}
