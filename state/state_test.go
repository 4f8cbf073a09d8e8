package state

import "testing"

// Check banking for R8-R12: FIQ gets its own copy, every other mode shares.
func TestBankedR8_12(t *testing.T) {
	s := New()
	s.BankSwitch(Supervisor)
	s.SetGPR(9, 0x1111)
	s.BankSwitch(IRQ)
	if got := s.GPR(9); got != 0x1111 {
		t.Fatalf("R9 should be shared outside FIQ, got %#x", got)
	}
	s.BankSwitch(FIQ)
	s.SetGPR(9, 0x2222)
	if got := s.GPR(9); got != 0x2222 {
		t.Fatalf("FIQ R9 got %#x want %#x", got, 0x2222)
	}
	s.BankSwitch(Supervisor)
	if got := s.GPR(9); got != 0x1111 {
		t.Fatalf("Supervisor R9 clobbered by FIQ bank, got %#x", got)
	}
}

// R13/R14 bank per mode; User and System share.
func TestBankedSPandLR(t *testing.T) {
	s := New()
	s.BankSwitch(User)
	s.SetGPR(13, 0xA000)
	s.BankSwitch(System)
	if got := s.GPR(13); got != 0xA000 {
		t.Fatalf("User/System R13 should share storage, got %#x", got)
	}
	s.BankSwitch(Abort)
	s.SetGPR(13, 0xB000)
	s.BankSwitch(User)
	if got := s.GPR(13); got != 0xA000 {
		t.Fatalf("Abort bank leaked into User R13, got %#x", got)
	}
}

// R0-R7 and R15 never bank.
func TestCommonRegistersShared(t *testing.T) {
	s := New()
	s.BankSwitch(User)
	s.SetGPR(0, 42)
	s.SetGPR(15, 0x8000)
	for _, m := range []Mode{FIQ, IRQ, Supervisor, Abort, Undefined, System} {
		s.BankSwitch(m)
		if got := s.GPR(0); got != 42 {
			t.Fatalf("R0 not shared in mode %#x, got %d", m, got)
		}
		if got := s.GPR(15); got != 0x8000 {
			t.Fatalf("R15 not shared in mode %#x, got %#x", m, got)
		}
	}
}

func TestSPSRAbsentInUserAndSystem(t *testing.T) {
	if HasSPSR(User) || HasSPSR(System) {
		t.Fatalf("User/System must not have an SPSR bank")
	}
	for _, m := range []Mode{FIQ, IRQ, Supervisor, Abort, Undefined} {
		if !HasSPSR(m) {
			t.Fatalf("mode %#x should have an SPSR bank", m)
		}
	}
}

func TestSPSRBanking(t *testing.T) {
	s := New()
	s.BankSwitch(Supervisor)
	s.SetSPSR(0x12345678)
	s.BankSwitch(Abort)
	s.SetSPSR(0x9abcdef0)
	s.BankSwitch(Supervisor)
	if got := s.SPSR(); got != 0x12345678 {
		t.Fatalf("Supervisor SPSR got %#x", got)
	}
}

func TestFlags(t *testing.T) {
	s := New()
	s.SetFlag(BitN, true)
	s.SetFlag(BitC, true)
	if !s.Flag(BitN) || !s.Flag(BitC) {
		t.Fatalf("flags not set")
	}
	if s.Flag(BitZ) || s.Flag(BitV) {
		t.Fatalf("unrelated flags disturbed")
	}
	s.SetFlag(BitN, false)
	if s.Flag(BitN) {
		t.Fatalf("N not cleared")
	}
}

func TestOffsetsAreStableAndDistinct(t *testing.T) {
	seen := map[uintptr]string{}
	check := func(off uintptr, name string) {
		if other, ok := seen[off]; ok {
			t.Fatalf("offset %d used by both %s and %s", off, other, name)
		}
		seen[off] = name
	}
	for r := uint8(0); r < 16; r++ {
		check(GPROffset(User, r), "user-gpr")
	}
	for r := uint8(8); r <= 12; r++ {
		check(GPROffset(FIQ, r), "fiq-gpr")
	}
	check(CPSROffset(), "cpsr")
}
