package emit

import (
	"testing"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/regalloc"
)

// fakeAssembler records which lowering calls were made instead of
// encoding real machine bytes, so tests can assert on Emitter's
// orchestration without needing a concrete host backend.
type fakeAssembler struct {
	calls []string
}

func (f *fakeAssembler) record(name string) []byte {
	f.calls = append(f.calls, name)
	return []byte{0xAA}
}

func (f *fakeAssembler) Prologue(spillSlots int) []byte { return f.record("Prologue") }
func (f *fakeAssembler) Epilogue() []byte               { return f.record("Epilogue") }
func (f *fakeAssembler) LoadContext(dst Operand, slot ContextSlot) []byte {
	return f.record("LoadContext")
}
func (f *fakeAssembler) StoreContext(slot ContextSlot, src Operand) []byte {
	return f.record("StoreContext")
}
func (f *fakeAssembler) FlushPC(target Operand) []byte         { return f.record("FlushPC") }
func (f *fakeAssembler) FlushExchangePC(target Operand) []byte { return f.record("FlushExchangePC") }
func (f *fakeAssembler) LoadImmediate(dst Operand, value uint32) []byte {
	return f.record("LoadImmediate")
}
func (f *fakeAssembler) Move(dst, src Operand) []byte        { return f.record("Move") }
func (f *fakeAssembler) SpillLoad(dst Operand, slot int) []byte { return f.record("SpillLoad") }
func (f *fakeAssembler) SpillStore(slot int, src Operand) []byte { return f.record("SpillStore") }
func (f *fakeAssembler) Shift(cls ir.Class, dst, value, amount Operand, setFlags bool) []byte {
	return f.record("Shift")
}
func (f *fakeAssembler) ALUBinary(cls ir.Class, dst, lhs, rhs Operand, hasDst, setFlags bool) []byte {
	return f.record("ALUBinary")
}
func (f *fakeAssembler) ALUUnary(cls ir.Class, dst, src Operand, setFlags bool) []byte {
	return f.record("ALUUnary")
}
func (f *fakeAssembler) CLZ(dst, src Operand) []byte { return f.record("CLZ") }
func (f *fakeAssembler) QALU(cls ir.Class, dst, lhs, rhs Operand) []byte {
	return f.record("QALU")
}
func (f *fakeAssembler) Multiply(dstLo, dstHi, lhs, rhs Operand, signed, has64 bool) []byte {
	return f.record("Multiply")
}
func (f *fakeAssembler) Add64(dstLo, dstHi, lhsLo, lhsHi, rhsLo, rhsHi Operand) []byte {
	return f.record("Add64")
}
func (f *fakeAssembler) ClearCarry() []byte { return f.record("ClearCarry") }
func (f *fakeAssembler) SetCarry() []byte   { return f.record("SetCarry") }
func (f *fakeAssembler) PermuteFlagsToCPSR(dst, input Operand, mask ir.FlagMask) []byte {
	return f.record("PermuteFlagsToCPSR")
}
func (f *fakeAssembler) PermuteStickyToCPSR(dst, input Operand) []byte {
	return f.record("PermuteStickyToCPSR")
}
func (f *fakeAssembler) MemoryFastPathRead(dst, addr Operand, flags ir.MemFlags, cfg FastPathConfig) []byte {
	return f.record("MemoryFastPathRead")
}
func (f *fakeAssembler) MemoryFastPathWrite(addr, value Operand, flags ir.MemFlags, cfg FastPathConfig) []byte {
	return f.record("MemoryFastPathWrite")
}
func (f *fakeAssembler) MemorySlowPathRead(dst, addr Operand, flags ir.MemFlags) []byte {
	return f.record("MemorySlowPathRead")
}
func (f *fakeAssembler) MemorySlowPathWrite(addr, value Operand, flags ir.MemFlags) []byte {
	return f.record("MemorySlowPathWrite")
}
func (f *fakeAssembler) CoprocessorRead(dst Operand, coproc, opc1, crn, crm, opc2 uint8) []byte {
	return f.record("CoprocessorRead")
}
func (f *fakeAssembler) CoprocessorWrite(src Operand, coproc, opc1, crn, crm, opc2 uint8) []byte {
	return f.record("CoprocessorWrite")
}
func (f *fakeAssembler) BeginGuard(cond block.Condition) ([]byte, int, int) {
	f.calls = append(f.calls, "BeginGuard")
	return []byte{0xEE, 0xEE}, 0, 2
}
func (f *fakeAssembler) PatchGuard(patchOffset, patchSize, skipToOffset int) []byte {
	f.calls = append(f.calls, "PatchGuard")
	return make([]byte, patchSize)
}
func (f *fakeAssembler) ExitNonLinking(length int) []byte { return f.record("ExitNonLinking") }
func (f *fakeAssembler) ExitLinking(length int) ([]byte, int, int) {
	f.calls = append(f.calls, "ExitLinking")
	return []byte{0xAA, 0xBB, 0xCC, 0xDD}, 0, 4
}
func (f *fakeAssembler) PatchLink(site block.LinkSite, targetOffset int) []byte {
	return f.record("PatchLink")
}
func (f *fakeAssembler) UnpatchLink(site block.LinkSite) []byte { return f.record("UnpatchLink") }

func newTestEmitter(t *testing.T) (*Emitter, *fakeAssembler) {
	t.Helper()
	buf, err := NewBuffer(4096)
	if err != nil {
		t.Skipf("mmap unavailable in this sandbox: %v", err)
	}
	t.Cleanup(func() { buf.Close() })
	asm := &fakeAssembler{}
	return New(asm, buf, FastPathConfig{}), asm
}

func TestEmitBlockNonLinkingExitAccountsCycles(t *testing.T) {
	e, asm := newTestEmitter(t)

	b := ir.NewBuilder()
	v := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: v, Reg: 0})
	b.Emit(ir.StoreGPR{Reg: 1, Src: ir.Ref(v)})
	prog := b.Program()

	alloc, err := regalloc.Allocate(prog)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	blk := &block.Block{
		EntryKey:    block.MakeKey(0x1000, 0, false),
		Length:      2,
		MicroBlocks: []block.MicroBlock{{Condition: block.CondAL, Program: prog, Length: 2}},
	}

	if err := e.EmitBlock(blk, []regalloc.Result{alloc}); err != nil {
		t.Fatalf("EmitBlock: %v", err)
	}
	if blk.State != block.Emitted {
		t.Fatalf("expected block.Emitted, got %v", blk.State)
	}
	if asm.calls[len(asm.calls)-1] != "ExitNonLinking" {
		t.Fatalf("expected a non-linking exit since HasBranchTarget is false, got last call %q", asm.calls[len(asm.calls)-1])
	}
	if asm.calls[0] != "LoadContext" || asm.calls[1] != "StoreContext" {
		t.Fatalf("expected LoadContext then StoreContext, got %v", asm.calls[:2])
	}
}

func TestEmitBlockLinkingExitProducesLinkSite(t *testing.T) {
	e, asm := newTestEmitter(t)

	prog := []ir.Op{ir.NOP{}}
	alloc, err := regalloc.Allocate(prog)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	targetKey := block.MakeKey(0x2000, 0, false)
	blk := &block.Block{
		EntryKey:        block.MakeKey(0x1000, 0, false),
		Length:          1,
		MicroBlocks:     []block.MicroBlock{{Condition: block.CondAL, Program: prog, Length: 1}},
		HasBranchTarget: true,
		BranchTarget:    targetKey,
	}

	if err := e.EmitBlock(blk, []regalloc.Result{alloc}); err != nil {
		t.Fatalf("EmitBlock: %v", err)
	}
	if blk.LinkSite.Size != 4 {
		t.Fatalf("expected a 4-byte link site from the fake assembler, got %+v", blk.LinkSite)
	}
	found := false
	for _, c := range asm.calls {
		if c == "ExitLinking" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ExitLinking to be called, got %v", asm.calls)
	}
}

func TestEmitBlockSkipsLinkingExitWhenFastLinkDisabled(t *testing.T) {
	e, asm := newTestEmitter(t)

	prog := []ir.Op{ir.NOP{}}
	alloc, err := regalloc.Allocate(prog)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	blk := &block.Block{
		EntryKey:         block.MakeKey(0x1000, 0, false),
		Length:           1,
		MicroBlocks:      []block.MicroBlock{{Condition: block.CondAL, Program: prog, Length: 1}},
		HasBranchTarget:  true,
		BranchTarget:     block.MakeKey(0x2000, 0, false),
		FastLinkDisabled: true,
	}

	if err := e.EmitBlock(blk, []regalloc.Result{alloc}); err != nil {
		t.Fatalf("EmitBlock: %v", err)
	}
	for _, c := range asm.calls {
		if c == "ExitLinking" {
			t.Fatalf("expected no ExitLinking call when FastLinkDisabled is set, got %v", asm.calls)
		}
	}
}
