/*
 * armjit - Linear-scan register allocator over one micro-block's IR
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

// Package regalloc runs a linear-scan allocator over a single
// micro-block's IR ordering (spec.md §4.6), assigning each SSA variable
// either a host register or a spill slot. It never reorders opcodes:
// allocation decisions are a per-position annotation the emitter
// consumes alongside the (unmodified) opcode stream.
package regalloc

import (
	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/translator"
)

// NumScratchRegisters is how many host general-purpose registers are
// available to the allocator, after excluding the three architecturally
// reserved ones (StatePointer, CycleCounter, HostFlagShadow — spec.md
// §4.7). Grounded on a typical AArch64/x86-64 host ABI's caller-saved
// set sized down by three: 16 total GPRs minus 3 reserved, rounded to a
// conservative 12 to leave headroom for a host frame pointer.
const NumScratchRegisters = 12

// DefaultSpillSlots is the fixed spill area size (spec.md §4.6),
// re-exported from translator to avoid a second source of truth — the
// dispatcher's prologue and this allocator must agree on it.
const DefaultSpillSlots = translator.DefaultSpillSlots

// ErrOutOfResources is returned by Allocate when both the register file
// and the spill area are exhausted at the same program position — a
// deterministic, reported failure per spec.md's documented policy, never
// a panic.
type ErrOutOfResources struct{ Position int }

func (e *ErrOutOfResources) Error() string {
	return "regalloc: out of registers and spill slots"
}

// Location is where one variable lives once allocation completes:
// either a host register (InRegister true) or a spill slot.
type Location struct {
	InRegister bool
	Register   int
	SpillSlot  int
}

// Result is what Allocate hands back for one micro-block: each
// program-order index's operand/result locations and reuse hints. A
// variable's location can migrate across its lifetime (register, then
// spilled, then reloaded into a different register), so the emitter
// must consult PerOp at the position in question rather than caching a
// single location per variable.
type Result struct {
	PerOp []OpAssignment
}

// OpAssignment is the allocator's verdict for one opcode: for every
// variable it reads, where that value lives at this position; for the
// variable it writes (if any), where it is defined.
type OpAssignment struct {
	Reads      []VarLocation
	Write      *VarLocation
	ReuseWrite bool // Write's register is Reads[i]'s register; operand died here
	SpillLoads []ir.VarID // variables reloaded from their spill slot before this op
	SpillStore *VarLocation // a variable evicted to free a register before this op
}

// VarLocation names a variable together with where it lives.
type VarLocation struct {
	Var      ir.VarID
	Location Location
}
