package dispatcher

import (
	"testing"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/ir"
)

// stubAssembler satisfies emit.Assembler with single-byte placeholder
// encodings for every lowering request — enough to exercise the
// dispatcher's compile/cache/run bookkeeping without a real host
// backend.
type stubAssembler struct{}

func one() []byte { return []byte{0x90} }

func (stubAssembler) Prologue(int) []byte                                        { return one() }
func (stubAssembler) Epilogue() []byte                                           { return one() }
func (stubAssembler) LoadContext(emit.Operand, emit.ContextSlot) []byte          { return one() }
func (stubAssembler) StoreContext(emit.ContextSlot, emit.Operand) []byte         { return one() }
func (stubAssembler) FlushPC(emit.Operand) []byte                               { return one() }
func (stubAssembler) FlushExchangePC(emit.Operand) []byte                       { return one() }
func (stubAssembler) LoadImmediate(emit.Operand, uint32) []byte                 { return one() }
func (stubAssembler) Move(emit.Operand, emit.Operand) []byte                    { return one() }
func (stubAssembler) SpillLoad(emit.Operand, int) []byte                        { return one() }
func (stubAssembler) SpillStore(int, emit.Operand) []byte                       { return one() }
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
func (stubAssembler) PatchLink(block.LinkSite, int) []byte   { return one() }
func (stubAssembler) UnpatchLink(block.LinkSite) []byte      { return one() }

// fakeFetcher feeds a fixed instruction stream, falling back to an
// always-NOP word (MOV R0,R0) past the end — same shape as
// translator's own test fixture.
type fakeFetcher struct{ words []uint32 }

func (f fakeFetcher) FetchARM(addr uint32) uint32 {
	idx := addr / 4
	if int(idx) < len(f.words) {
		return f.words[idx]
	}
	return 0xE1A00000
}
func (f fakeFetcher) FetchThumb(addr uint32) uint16 { return 0x46C0 }

type noBreakCoprocessors struct{}

func (noBreakCoprocessors) ShouldBreakBasicBlock(coproc, opc1, crn, crm, opc2 uint8) bool {
	return false
}

type fakeState struct {
	pc    uint32
	mode  uint8
	thumb bool
}

func (s *fakeState) PC() uint32     { return s.pc }
func (s *fakeState) Mode() uint8    { return s.mode }
func (s *fakeState) ThumbMode() bool { return s.thumb }

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(Config{
		CodeBufferSize: 1 << 16,
		Assembler:      stubAssembler{},
		Fetcher:        fakeFetcher{words: []uint32{0xE3A00000, 0xE12FFF1E}}, // MOV R0,#0; BX LR
		Coprocessors:   noBreakCoprocessors{},
	})
	if err != nil {
		t.Skipf("mmap unavailable in this sandbox: %v", err)
	}
	return d
}

func TestRunCompilesAndCachesOneBlock(t *testing.T) {
	d := newTestDispatcher(t)
	state := &fakeState{pc: 0, mode: 0x10, thumb: false}

	consumed, err := d.Run(1, state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if consumed < 1 {
		t.Fatalf("expected at least 1 cycle consumed, got %d", consumed)
	}
	if d.CachedBlockCount() != 1 {
		t.Fatalf("expected exactly one block cached, got %d", d.CachedBlockCount())
	}
}

func TestRunReusesCachedBlockOnSecondCall(t *testing.T) {
	d := newTestDispatcher(t)
	state := &fakeState{pc: 0, mode: 0x10, thumb: false}

	if _, err := d.Run(1, state); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstCount := d.CachedBlockCount()

	if _, err := d.Run(1, state); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if d.CachedBlockCount() != firstCount {
		t.Fatalf("expected no new compilation on cache hit, count changed from %d to %d", firstCount, d.CachedBlockCount())
	}
}

func TestFlushEvictsCachedBlock(t *testing.T) {
	d := newTestDispatcher(t)
	state := &fakeState{pc: 0, mode: 0x10, thumb: false}

	if _, err := d.Run(1, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.CachedBlockCount() != 1 {
		t.Fatalf("expected one cached block before flush")
	}

	d.Flush(0, 0x10)
	if d.CachedBlockCount() != 0 {
		t.Fatalf("expected flush to evict the block in range, got count %d", d.CachedBlockCount())
	}
}
