package jitcpu

import (
	"testing"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/state"
)

// stubAssembler is the same single-byte placeholder backend
// dispatcher's own tests use — enough to exercise compilation and
// caching without a real host encoder.
type stubAssembler struct{}

func one() []byte { return []byte{0x90} }

func (stubAssembler) Prologue(int) []byte                               { return one() }
func (stubAssembler) Epilogue() []byte                                  { return one() }
func (stubAssembler) LoadContext(emit.Operand, emit.ContextSlot) []byte { return one() }
func (stubAssembler) StoreContext(emit.ContextSlot, emit.Operand) []byte {
	return one()
}
func (stubAssembler) FlushPC(emit.Operand) []byte         { return one() }
func (stubAssembler) FlushExchangePC(emit.Operand) []byte { return one() }
func (stubAssembler) LoadImmediate(emit.Operand, uint32) []byte { return one() }
func (stubAssembler) Move(emit.Operand, emit.Operand) []byte    { return one() }
func (stubAssembler) SpillLoad(emit.Operand, int) []byte        { return one() }
func (stubAssembler) SpillStore(int, emit.Operand) []byte       { return one() }
func (stubAssembler) Shift(ir.Class, emit.Operand, emit.Operand, emit.Operand, bool) []byte {
	return one()
}
func (stubAssembler) ALUBinary(ir.Class, emit.Operand, emit.Operand, emit.Operand, bool, bool) []byte {
	return one()
}
func (stubAssembler) ALUUnary(ir.Class, emit.Operand, emit.Operand, bool) []byte { return one() }
func (stubAssembler) CLZ(emit.Operand, emit.Operand) []byte                     { return one() }
func (stubAssembler) QALU(ir.Class, emit.Operand, emit.Operand, emit.Operand) []byte {
	return one()
}
func (stubAssembler) Multiply(emit.Operand, emit.Operand, emit.Operand, emit.Operand, bool, bool) []byte {
	return one()
}
func (stubAssembler) Add64(emit.Operand, emit.Operand, emit.Operand, emit.Operand, emit.Operand, emit.Operand) []byte {
	return one()
}
func (stubAssembler) ClearCarry() []byte { return one() }
func (stubAssembler) SetCarry() []byte   { return one() }
func (stubAssembler) PermuteFlagsToCPSR(emit.Operand, emit.Operand, ir.FlagMask) []byte {
	return one()
}
func (stubAssembler) PermuteStickyToCPSR(emit.Operand, emit.Operand) []byte { return one() }
func (stubAssembler) MemoryFastPathRead(emit.Operand, emit.Operand, ir.MemFlags, emit.FastPathConfig) []byte {
	return one()
}
func (stubAssembler) MemoryFastPathWrite(emit.Operand, emit.Operand, ir.MemFlags, emit.FastPathConfig) []byte {
	return one()
}
func (stubAssembler) MemorySlowPathRead(emit.Operand, emit.Operand, ir.MemFlags) []byte {
	return one()
}
func (stubAssembler) MemorySlowPathWrite(emit.Operand, emit.Operand, ir.MemFlags) []byte {
	return one()
}
func (stubAssembler) CoprocessorRead(emit.Operand, uint8, uint8, uint8, uint8, uint8) []byte {
	return one()
}
func (stubAssembler) CoprocessorWrite(emit.Operand, uint8, uint8, uint8, uint8, uint8) []byte {
	return one()
}
func (stubAssembler) BeginGuard(block.Condition) ([]byte, int, int) { return one(), 0, 1 }
func (stubAssembler) PatchGuard(int, int, int) []byte               { return one() }
func (stubAssembler) ExitNonLinking(int) []byte                     { return one() }
func (stubAssembler) ExitLinking(int) ([]byte, int, int) {
	return []byte{0x90, 0x90, 0x90, 0x90}, 0, 4
}
func (stubAssembler) PatchLink(block.LinkSite, int) []byte { return one() }
func (stubAssembler) UnpatchLink(block.LinkSite) []byte    { return one() }

// fakeMemory serves a fixed little-endian word stream on the Code bus
// and ignores writes; enough for the translator to fetch instructions.
type fakeMemory struct{ words []uint32 }

func (m fakeMemory) ReadByte(addr uint32, bus Bus) uint8 {
	return uint8(m.ReadWord(addr&^3, bus) >> ((addr & 3) * 8))
}
func (m fakeMemory) ReadHalf(addr uint32, bus Bus) uint16 {
	return uint16(m.ReadWord(addr&^3, bus) >> ((addr & 2) * 8))
}
func (m fakeMemory) ReadWord(addr uint32, bus Bus) uint32 {
	idx := addr / 4
	if int(idx) < len(m.words) {
		return m.words[idx]
	}
	return 0xE1A00000 // MOV R0,R0
}
func (m fakeMemory) WriteByte(addr uint32, value uint8, bus Bus)   {}
func (m fakeMemory) WriteHalf(addr uint32, value uint16, bus Bus)  {}
func (m fakeMemory) WriteWord(addr uint32, value uint32, bus Bus)  {}

// fakeCoprocessor never asks to break the basic block and records reset calls.
type fakeCoprocessor struct{ resets int }

func (c *fakeCoprocessor) Read(opc1, crn, crm, opc2 uint8) uint32 { return 0 }
func (c *fakeCoprocessor) Write(opc1, crn, crm, opc2 uint8, value uint32) {}
func (c *fakeCoprocessor) ShouldBreakBasicBlock(opc1, crn, crm, opc2 uint8) bool {
	return false
}
func (c *fakeCoprocessor) Reset() { c.resets++ }

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	desc := Descriptor{
		Model:     ARMv5TE,
		Memory:    fakeMemory{words: []uint32{0xE3A00000, 0xE12FFF1E}}, // MOV R0,#0; BX LR
		Assembler: stubAssembler{},
	}
	c, err := New(desc, nil)
	if err != nil {
		t.Skipf("mmap unavailable in this sandbox: %v", err)
	}
	return c
}

func TestRunCompilesOneBlockFromResetState(t *testing.T) {
	c := newTestCPU(t)

	consumed, err := c.Run(1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if consumed < 1 {
		t.Fatalf("expected at least one cycle consumed, got %d", consumed)
	}
	if c.CachedBlockCount() != 1 {
		t.Fatalf("expected one compiled block, got %d", c.CachedBlockCount())
	}
}

func TestPCModeThumbReadLiveState(t *testing.T) {
	c := newTestCPU(t)
	c.State().SetGPR(15, 0x8000)
	c.State().BankSwitch(state.Supervisor)
	c.State().SetFlag(5, true) // BitT

	if c.PC() != 0x8000 {
		t.Fatalf("PC() = %#x, want 0x8000", c.PC())
	}
	if c.Mode() != uint8(0x13) {
		t.Fatalf("Mode() = %#x, want Supervisor (0x13)", c.Mode())
	}
	if !c.ThumbMode() {
		t.Fatalf("ThumbMode() = false, want true")
	}
}

func TestResetClearsRegistersAndResetsCoprocessors(t *testing.T) {
	c := newTestCPU(t)
	cp := &fakeCoprocessor{}
	c.desc.Coprocessors[0] = cp
	c.State().SetGPR(0, 0xdead)

	c.Reset()

	if c.State().GPR(0) != 0 {
		t.Fatalf("expected R0 cleared after Reset, got %#x", c.State().GPR(0))
	}
	if cp.resets != 1 {
		t.Fatalf("expected coprocessor Reset() called once, got %d", cp.resets)
	}
}

func TestFlushEvictsCompiledBlock(t *testing.T) {
	c := newTestCPU(t)
	if _, err := c.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	c.Flush(0, 0x10)
	if c.CachedBlockCount() != 0 {
		t.Fatalf("expected flush to evict the compiled block, got count %d", c.CachedBlockCount())
	}
}

func TestNewRejectsMismatchedBlockSize(t *testing.T) {
	desc := Descriptor{
		Memory:    fakeMemory{},
		Assembler: stubAssembler{},
		BlockSize: 16,
	}
	if _, err := New(desc, nil); err != ErrUnsupportedBlockSize {
		t.Fatalf("expected ErrUnsupportedBlockSize, got %v", err)
	}
}
