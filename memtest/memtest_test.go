package memtest

import "testing"

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := New(0x11223344, 0x55667788)

	if got := m.ReadWord(0, 0); got != 0x11223344 {
		t.Fatalf("ReadWord(0) = %#x, want 0x11223344", got)
	}
	if got := m.ReadWord(4, 0); got != 0x55667788 {
		t.Fatalf("ReadWord(4) = %#x, want 0x55667788", got)
	}

	m.WriteWord(8, 0xdeadbeef, 0)
	if got := m.ReadWord(8, 0); got != 0xdeadbeef {
		t.Fatalf("ReadWord(8) after write = %#x, want 0xdeadbeef", got)
	}
}

func TestMemoryReadPastEndReturnsFillWord(t *testing.T) {
	m := New()
	if got := m.ReadWord(0x1000, 0); got != m.FillWord {
		t.Fatalf("ReadWord past end = %#x, want fill word %#x", got, m.FillWord)
	}
}

func TestMemoryByteAndHalfAccessors(t *testing.T) {
	m := New(0x11223344)

	if got := m.ReadByte(0, 0); got != 0x44 {
		t.Fatalf("ReadByte(0) = %#x, want 0x44", got)
	}
	if got := m.ReadByte(3, 0); got != 0x11 {
		t.Fatalf("ReadByte(3) = %#x, want 0x11", got)
	}
	if got := m.ReadHalf(0, 0); got != 0x3344 {
		t.Fatalf("ReadHalf(0) = %#x, want 0x3344", got)
	}

	m.WriteByte(0, 0xff, 0)
	if got := m.ReadWord(0, 0); got != 0x112233ff {
		t.Fatalf("ReadWord after WriteByte = %#x, want 0x112233ff", got)
	}

	m.WriteHalf(0, 0xaabb, 0)
	if got := m.ReadWord(0, 0); got != 0x1122aabb {
		t.Fatalf("ReadWord after WriteHalf = %#x, want 0x1122aabb", got)
	}
}
