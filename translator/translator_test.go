package translator

import (
	"testing"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/ir"
)

type fakeFetcher struct {
	words []uint32
}

func (f fakeFetcher) FetchARM(addr uint32) uint32 {
	idx := addr / 4
	if int(idx) >= len(f.words) {
		return 0xE1A00000 // NOP (MOV R0, R0)
	}
	return f.words[idx]
}

func (f fakeFetcher) FetchThumb(addr uint32) uint16 { return 0 }

func TestTranslateMovImmediateThenAddsThenBX(t *testing.T) {
	// spec.md §8 scenario 1: MOV R0,#0; ADDS R1,R0,#1; BX LR
	fetch := fakeFetcher{words: []uint32{
		0xE3A00000, // MOV R0, #0
		0xE2901001, // ADDS R1, R0, #1
		0xE12FFF1E, // BX LR
	}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("unexpected unimplemented at %#x", result.FailedAt)
	}
	b := result.Block
	if b.Length != 3 {
		t.Fatalf("expected 3 guest instructions, got %d", b.Length)
	}
	if len(b.MicroBlocks) != 1 {
		t.Fatalf("expected single micro-block (all AL), got %d", len(b.MicroBlocks))
	}
	prog := b.MicroBlocks[0].Program
	var sawFlushExchange bool
	for _, op := range prog {
		if op.Class() == ir.ClassFlushExchange {
			sawFlushExchange = true
		}
	}
	if !sawFlushExchange {
		t.Fatalf("expected a FlushExchange from BX, program: %+v", prog)
	}
}

func TestTranslateConditionGroupingSplitsMicroBlocks(t *testing.T) {
	fetch := fakeFetcher{words: []uint32{
		0xE3A00000, // MOV R0, #0  (AL)
		0x03A00001, // MOVEQ R0, #1 (EQ)
		0xE12FFF1E, // BX LR (AL)
	}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("unexpected unimplemented at %#x", result.FailedAt)
	}
	if len(result.Block.MicroBlocks) != 3 {
		t.Fatalf("expected 3 micro-blocks (AL, EQ, AL), got %d", len(result.Block.MicroBlocks))
	}
}

func TestTranslateStopsAtThirtyTwoInstructions(t *testing.T) {
	words := make([]uint32, 0, 40)
	for i := 0; i < 40; i++ {
		words = append(words, 0xE1A00000) // MOV R0, R0 (AL, never branches)
	}
	fetch := fakeFetcher{words: words}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Block.Length != MaxBlockInstructions {
		t.Fatalf("expected cap at %d instructions, got %d", MaxBlockInstructions, result.Block.Length)
	}
}

func TestTranslateSaturatingAddEmitsQAluAndSticky(t *testing.T) {
	// QADD R2, R3, R1 (Rd=2, Rm=3, Rn=1): cond AL, 0001 0000 Rn Rd 0000 0101 Rm.
	fetch := fakeFetcher{words: []uint32{0xE1012053}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("QADD must not be unimplemented, failed at %#x", result.FailedAt)
	}
	prog := result.Block.MicroBlocks[0].Program
	var sawQAdd, sawSticky bool
	for _, op := range prog {
		switch op.Class() {
		case ir.ClassQADD:
			sawQAdd = true
		case ir.ClassUpdateSticky:
			sawSticky = true
		}
	}
	if !sawQAdd {
		t.Fatalf("expected a QADD op, program: %+v", prog)
	}
	if !sawSticky {
		t.Fatalf("expected an UpdateSticky op, program: %+v", prog)
	}
}

func TestTranslateSignedHalfwordMultiply(t *testing.T) {
	// SMULBB R3, R1, R2 (Rd=3, Rm=1, Rs=2, op=11 SMULxy, NHigh=MHigh=0).
	fetch := fakeFetcher{words: []uint32{0xE1630281}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("SMULBB must not be unimplemented, failed at %#x", result.FailedAt)
	}
	prog := result.Block.MicroBlocks[0].Program
	var sawMul bool
	for _, op := range prog {
		if op.Class() == ir.ClassMUL {
			sawMul = true
		}
	}
	if !sawMul {
		t.Fatalf("expected a MUL op, program: %+v", prog)
	}
}

func TestTranslateSingleDataSwapLoadsBeforeStore(t *testing.T) {
	// SWP R2, R3, [R1] (Rn=1, Rd=2, Rm=3, Byte=0).
	fetch := fakeFetcher{words: []uint32{0xE1012093}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("SWP must not be unimplemented, failed at %#x", result.FailedAt)
	}
	prog := result.Block.MicroBlocks[0].Program
	readIdx, writeIdx := -1, -1
	for i, op := range prog {
		switch op.Class() {
		case ir.ClassMemoryRead:
			if readIdx == -1 {
				readIdx = i
			}
		case ir.ClassMemoryWrite:
			if writeIdx == -1 {
				writeIdx = i
			}
		}
	}
	if readIdx == -1 || writeIdx == -1 {
		t.Fatalf("expected both a MemoryRead and a MemoryWrite, program: %+v", prog)
	}
	if readIdx >= writeIdx {
		t.Fatalf("SWP must load before it stores: read at %d, write at %d", readIdx, writeIdx)
	}
}

func TestTranslateBLXImmSwitchesToThumb(t *testing.T) {
	// BLX(imm): cond NV(1111) 101 H(1) imm24(1) -> offset = 1*4+2 = 6.
	fetch := fakeFetcher{words: []uint32{0xFB000001}}
	entry := block.MakeKey(0x1000, 0x10, false)
	result := Translate(entry, fetch, nil)
	if result.Unimplemented {
		t.Fatalf("BLX(imm) must not be unimplemented, failed at %#x", result.FailedAt)
	}
	b := result.Block
	if !b.HasBranchTarget {
		t.Fatalf("expected a known static branch target")
	}
	if !b.BranchTarget.Thumb() {
		t.Fatalf("BLX(imm) must always switch to Thumb state")
	}
	wantTarget := uint32(0x1000+8) + 6 // pcOperand + offset
	if b.BranchTarget.Addr() != wantTarget {
		t.Fatalf("branch target = %#x, want %#x", b.BranchTarget.Addr(), wantTarget)
	}
	prog := b.MicroBlocks[0].Program
	var sawFlushExchange bool
	for _, op := range prog {
		if op.Class() == ir.ClassFlushExchange {
			sawFlushExchange = true
		}
	}
	if !sawFlushExchange {
		t.Fatalf("expected a FlushExchange, program: %+v", prog)
	}
}

func TestTranslateUnimplementedEncodingAbortsBlock(t *testing.T) {
	fetch := fakeFetcher{words: []uint32{
		0xE3A00000,  // MOV R0, #0
		0xE10F0000,  // MRS R0, CPSR (not lifted -> unimplemented)
	}}
	entry := block.MakeKey(0, 0x10, false)
	result := Translate(entry, fetch, nil)
	if !result.Unimplemented {
		t.Fatalf("expected unimplemented encoding to be reported")
	}
}
