/*
 * armjit - Guest instruction translator: lifts ARM/Thumb to IR basic blocks
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package translator lifts a contiguous run of guest ARM/Thumb
// instructions, starting at a block.Key's entry point, into one
// block.Block of IR (spec.md §4.4). It never touches guest memory
// itself: the caller supplies a Fetcher that already knows how to read
// guest code (TCM, page table, slow path — the emitter's concern, not
// this package's).
package translator

import (
	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// MaxBlockInstructions is the translator's hard cap on guest
// instructions per basic block (spec.md §4.4).
const MaxBlockInstructions = 32

// DefaultSpillSlots is unrelated to translation but lives here as the
// one place every later stage agrees on the allocator's default spill
// area size (spec.md §4.6); kept alongside MaxBlockInstructions so the
// two tunables that bound a block's resource use sit together.
const DefaultSpillSlots = 32

// Fetcher supplies guest code bytes to decode. Implementations fetch
// through whatever fast/slow path the memory interface provides;
// translator treats the result as already normalized (no endian
// concerns beyond host-native uint32/uint16).
type Fetcher interface {
	FetchARM(addr uint32) uint32
	FetchThumb(addr uint32) uint16
}

// CoprocessorPolicy lets the translator ask, after lifting an MCR, "does
// this write invalidate assumptions the current block relies on?"
// (spec.md §4.4 "Coprocessor R-transfer").
type CoprocessorPolicy interface {
	ShouldBreakBasicBlock(coproc, opc1, crn, crm, opc2 uint8) bool
}

// Result is what Translate hands back: either a complete block.Block,
// or a partial one plus the reason translation stopped short.
type Result struct {
	Block         *block.Block
	Unimplemented bool // translation hit an encoding with no lifting rule
	FailedAt      uint32
}

type blockBuilder struct {
	key       block.Key
	thumb     bool
	opcodeSz  uint32
	fetch     Fetcher
	coproc    CoprocessorPolicy
	addr      uint32
	count     int
	micro     []block.MicroBlock
	curCond   block.Condition
	curB      *ir.Builder
	curLen    int
	done      bool
	unimpl    bool
	failedAt  uint32
	hasTarget bool
	target    block.Key
	fastLinkOff bool
}

// Translate lifts guest instructions starting at entry into a block.Block.
func Translate(entry block.Key, fetch Fetcher, coproc CoprocessorPolicy) Result {
	thumb := entry.Thumb()
	opcodeSz := uint32(4)
	if thumb {
		opcodeSz = 2
	}
	tb := &blockBuilder{
		key:      entry,
		thumb:    thumb,
		opcodeSz: opcodeSz,
		fetch:    fetch,
		coproc:   coproc,
		addr:     entry.Addr(),
		curCond:  block.CondAL,
		curB:     ir.NewBuilder(),
	}

	for !tb.done && tb.count < MaxBlockInstructions {
		tb.step()
	}
	tb.closeMicroBlock()

	if tb.unimpl && len(tb.micro) == 0 {
		return Result{Unimplemented: true, FailedAt: tb.failedAt}
	}

	b := &block.Block{
		EntryKey:         entry,
		Length:           tb.count,
		MicroBlocks:      tb.micro,
		State:            block.Translated,
		HasBranchTarget:  tb.hasTarget,
		BranchTarget:     tb.target,
		FastLinkDisabled: tb.fastLinkOff,
	}
	return Result{Block: b, Unimplemented: tb.unimpl, FailedAt: tb.failedAt}
}

func (tb *blockBuilder) closeMicroBlock() {
	if tb.curB.Len() == 0 && tb.curLen == 0 {
		return
	}
	tb.micro = append(tb.micro, block.MicroBlock{
		Condition: tb.curCond,
		Program:   tb.curB.Program(),
		Length:    tb.curLen,
	})
	tb.curB = ir.NewBuilder()
	tb.curLen = 0
}

// pcOperand is the pipelined PC value visible to guest code reading R15
// as a data-processing/address operand (spec.md §4.4 "PC model"): the
// real processor has advanced two instructions beyond the one
// executing. Because the translator knows every instruction's real
// address statically, this value is synthesized as a compile-time
// constant rather than round-tripped through the state block's R15
// slot — R15's stored slot is only ever written explicitly (by a
// data-processing instruction targeting it, or by Flush/FlushExchange
// at a block exit).
func (tb *blockBuilder) pcOperand(instrAddr uint32) uint32 {
	return instrAddr + 2*tb.opcodeSz
}

// nextInstructionAddr is the real (non-pipelined) address of the
// instruction immediately following instrAddr — what BL stores into LR
// and what SWI stores into LR_<mode> (spec.md §4.4, §8 scenario 5).
func (tb *blockBuilder) nextInstructionAddr(instrAddr uint32) uint32 {
	return instrAddr + tb.opcodeSz
}

func (tb *blockBuilder) step() {
	addr := tb.addr
	var inst decode.Instruction
	if tb.thumb {
		inst = decode.DecodeThumb(tb.fetch.FetchThumb(addr))
	} else {
		inst = decode.DecodeARM(tb.fetch.FetchARM(addr))
	}

	if inst.Cond() != tb.curCond {
		tb.closeMicroBlock()
		tb.curCond = inst.Cond()
	}

	outcome := tb.lift(inst, addr)
	tb.addr += tb.opcodeSz
	tb.count++
	tb.curLen++

	switch outcome {
	case liftUnimplemented:
		tb.unimpl = true
		tb.failedAt = addr
		tb.done = true
	case liftBreakMicroBlock:
		tb.closeMicroBlock()
	case liftBreakBasicBlock:
		tb.done = true
	case liftContinue:
		// fall through to length check below
	}
	if tb.count >= MaxBlockInstructions {
		tb.done = true
	}
}

type liftOutcome uint8

const (
	liftContinue liftOutcome = iota
	liftBreakMicroBlock
	liftBreakBasicBlock
	liftUnimplemented
)

func (tb *blockBuilder) lift(inst decode.Instruction, addr uint32) liftOutcome {
	switch v := inst.(type) {
	case decode.DataProcessing:
		return tb.liftDataProcessing(v, addr)
	case decode.SingleDataTransfer:
		return tb.liftSingleDataTransfer(v, addr)
	case decode.HalfwordSignedTransfer:
		return tb.liftHalfwordSignedTransfer(v, addr)
	case decode.BlockDataTransfer:
		return tb.liftBlockDataTransfer(v, addr)
	case decode.BranchRelative:
		return tb.liftBranchRelative(v, addr)
	case decode.BranchExchange:
		return tb.liftBranchExchange(v, addr)
	case decode.Multiply:
		return tb.liftMultiply(v, addr)
	case decode.MultiplyLong:
		return tb.liftMultiplyLong(v, addr)
	case decode.CountLeadingZeros:
		return tb.liftCLZ(v, addr)
	case decode.SaturatingAddSub:
		return tb.liftSaturatingAddSub(v, addr)
	case decode.SignedHalfwordMultiply:
		return tb.liftSignedHalfwordMultiply(v, addr)
	case decode.SingleDataSwap:
		return tb.liftSingleDataSwap(v, addr)
	case decode.CoprocessorRegisterTransfer:
		return tb.liftCoprocessor(v)
	case decode.Exception:
		return tb.liftException(v, addr)
	default:
		return liftUnimplemented
	}
}

func (tb *blockBuilder) readGPR(reg uint8, instrAddr uint32) ir.AnyRef {
	if reg == 15 {
		return ir.RefC(ir.ConstU32(tb.pcOperand(instrAddr)))
	}
	v := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.LoadGPR{Res: v, Reg: reg})
	return ir.Ref(v)
}

func (tb *blockBuilder) storeGPR(reg uint8, src ir.AnyRef) {
	tb.curB.Emit(ir.StoreGPR{Reg: reg, Src: src})
}

func (tb *blockBuilder) flushTo(target ir.AnyRef) {
	tb.curB.Emit(ir.Flush{Target: target})
}

func (tb *blockBuilder) flushExchangeTo(target ir.AnyRef) {
	tb.curB.Emit(ir.FlushExchange{Target: target})
}

// blockKeyFor builds the successor key for a statically-known branch
// target, inheriting the current block's guest mode (a direct branch
// never changes processor mode).
func (tb *blockBuilder) blockKeyFor(target uint32, thumb bool) block.Key {
	return block.MakeKey(target, tb.key.Mode(), thumb)
}
