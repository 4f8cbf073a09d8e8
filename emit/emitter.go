/*
 * armjit - Code emitter: opcode-class lowering switch
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

// Package emit lowers one micro-block's optimized, allocated IR into
// native code through a coroutine-less switch on opcode class
// (spec.md §4.7). It owns the three statically-reserved host registers
// (StatePointer, CycleCounter, HostFlagShadow), the flag-bit
// permutation into guest CPSR positions, the TCM/page-table memory fast
// path, inter-block linking, block-exit cycle accounting, and the
// one-time dispatcher thunk. The actual instruction bytes come from an
// Assembler the host architecture supplies; this package never encodes
// a machine instruction itself.
package emit

import (
	"fmt"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/regalloc"
)

// Reserved host register indices, outside the pool regalloc.Allocate
// hands out (spec.md §4.7's three statically-reserved registers).
const (
	RegStatePointer   = -1
	RegCycleCounter   = -2
	RegHostFlagShadow = -3
)

// Emitter lowers one micro-block at a time into a Buffer, using asm to
// encode the host-specific bytes for every lowering decision this
// package makes.
type Emitter struct {
	asm    Assembler
	buf    *Buffer
	memCfg FastPathConfig
}

// New builds an Emitter targeting buf via asm. memCfg configures the
// TCM/page-table fast path every MemoryRead/MemoryWrite consults.
func New(asm Assembler, buf *Buffer, memCfg FastPathConfig) *Emitter {
	return &Emitter{asm: asm, buf: buf, memCfg: memCfg}
}

// EmitDispatcherThunk emits the one-time prologue/epilogue pair (spec.md
// §4.7 "Dispatcher thunk") and returns the prologue's entry offset.
func (e *Emitter) EmitDispatcherThunk() (entryOffset int, err error) {
	code := e.asm.Prologue(regalloc.DefaultSpillSlots)
	offset, err := e.buf.Append(code)
	if err != nil {
		return 0, err
	}
	if _, err := e.buf.Append(e.asm.Epilogue()); err != nil {
		return 0, err
	}
	return offset, nil
}

// EmitBlock lowers every micro-block inside b in order, appending the
// resulting native code to the buffer, and fills in b.Function/FuncBase
// and, when b has a statically known successor, b.LinkSite. b must
// already be in block.Allocated state; on success b transitions to
// block.Emitted.
func (e *Emitter) EmitBlock(b *block.Block, alloc []regalloc.Result) error {
	if len(alloc) != len(b.MicroBlocks) {
		return fmt.Errorf("emit: %d allocations for %d micro-blocks", len(alloc), len(b.MicroBlocks))
	}

	startOffset := e.buf.Used()
	var linkSite block.LinkSite
	haveLinkSite := false

	for i, mb := range b.MicroBlocks {
		if err := e.emitMicroBlock(mb, alloc[i]); err != nil {
			return err
		}
		isLast := i == len(b.MicroBlocks)-1
		if !isLast {
			continue
		}
		if b.HasBranchTarget && !b.FastLinkDisabled {
			code, patchOffset, patchSize := e.asm.ExitLinking(b.Length)
			offset, err := e.buf.Append(code)
			if err != nil {
				return err
			}
			linkSite = block.LinkSite{Offset: offset + patchOffset, Size: patchSize}
			haveLinkSite = true
		} else {
			code := e.asm.ExitNonLinking(b.Length)
			if _, err := e.buf.Append(code); err != nil {
				return err
			}
		}
	}

	b.FuncBase = e.buf.EntryAt(startOffset)
	b.Function = nil // native code lives in the shared Buffer, not per-block
	if haveLinkSite {
		b.LinkSite = linkSite
	}
	b.State = block.Emitted
	return nil
}

// emitMicroBlock lowers one condition-guarded IR program. Condition
// guarding is a branch-if-fails placeholder around the whole
// micro-block when its Condition isn't AL (BeginGuard/PatchGuard);
// individual opcodes may additionally branch internally for the memory
// fast path or a linking exit.
func (e *Emitter) emitMicroBlock(mb block.MicroBlock, alloc regalloc.Result) error {
	if len(alloc.PerOp) != len(mb.Program) {
		return fmt.Errorf("emit: allocation length %d does not match program length %d", len(alloc.PerOp), len(mb.Program))
	}

	var guardPatchOffset, guardPatchSize int
	guarded := mb.Condition != block.CondAL
	if guarded {
		code, patchOffset, patchSize := e.asm.BeginGuard(mb.Condition)
		offset, err := e.buf.Append(code)
		if err != nil {
			return err
		}
		guardPatchOffset = offset + patchOffset
		guardPatchSize = patchSize
	}

	for i, op := range mb.Program {
		// A spill store must land before the op touches the register it
		// frees up, and any spill load must land after that eviction —
		// the freed register is the same one the reload (or the op
		// itself) is about to claim.
		if err := e.emitSpillStore(alloc.PerOp[i]); err != nil {
			return err
		}
		if err := e.emitSpillLoads(alloc.PerOp[i]); err != nil {
			return err
		}
		if err := e.emitOp(op, alloc.PerOp[i]); err != nil {
			return err
		}
	}

	if guarded {
		skipTo := e.buf.Used()
		if err := e.buf.PatchAt(guardPatchOffset, e.asm.PatchGuard(guardPatchOffset, guardPatchSize, skipTo)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitSpillLoads(a regalloc.OpAssignment) error {
	for _, id := range a.SpillLoads {
		loc := locationOf(a, id)
		if loc == nil {
			continue
		}
		slot := spillSlotOf(a, id)
		if _, err := e.buf.Append(e.asm.SpillLoad(operandOf(loc.Location), slot)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitSpillStore(a regalloc.OpAssignment) error {
	if a.SpillStore == nil {
		return nil
	}
	_, err := e.buf.Append(e.asm.SpillStore(a.SpillStore.Location.SpillSlot, operandFromRegister(a)))
	return err
}

// locationOf finds var among a.Reads, returning its post-reload location.
func locationOf(a regalloc.OpAssignment, id ir.VarID) *regalloc.VarLocation {
	for i := range a.Reads {
		if a.Reads[i].Var == id {
			return &a.Reads[i]
		}
	}
	return nil
}

// spillSlotOf is a placeholder lookup kept alongside locationOf: the
// allocator only reports that a reload happened, not the slot it came
// from, since by definition the slot is whatever SpillStore most
// recently wrote for that variable. A real backend tracks this via its
// own slot map keyed by VarID; this package defers that bookkeeping to
// the jitcpu driver that owns the allocator across the whole block.
func spillSlotOf(a regalloc.OpAssignment, id ir.VarID) int {
	if a.SpillStore != nil && a.SpillStore.Var == id {
		return a.SpillStore.Location.SpillSlot
	}
	return 0
}

// operandFromRegister reports the register SpillStore is evicting —
// it is whichever register SpillStore.Var held immediately before this
// opcode, which by construction is the register freed up for the op's
// own reads/write that this OpAssignment reports.
func operandFromRegister(a regalloc.OpAssignment) Operand {
	if a.Write != nil && a.Write.Location.InRegister {
		return Reg(a.Write.Location.Register)
	}
	for _, r := range a.Reads {
		if r.Location.InRegister {
			return Reg(r.Location.Register)
		}
	}
	return Operand{}
}

func operandOf(loc regalloc.Location) Operand {
	if loc.InRegister {
		return Reg(loc.Register)
	}
	return Slot(loc.SpillSlot)
}

// readOperand resolves ref against the assignment's reported read
// locations, or materializes a constant immediate directly.
func readOperand(ref ir.AnyRef, a regalloc.OpAssignment) Operand {
	if ref.IsConstant() {
		return Imm(ref.Constant().Value)
	}
	if ref.IsVariable() {
		if loc := locationOf(a, ref.Variable().ID); loc != nil {
			return operandOf(loc.Location)
		}
	}
	return Operand{}
}

func writeOperand(a regalloc.OpAssignment) (Operand, bool) {
	if a.Write == nil {
		return Operand{}, false
	}
	return operandOf(a.Write.Location), true
}
