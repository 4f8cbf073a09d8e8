/*
 * armjit - Basic block / micro-block records shared by every later stage
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

// Package block holds the basic-block / micro-block records that flow
// from the translator through the optimizer, allocator, emitter, cache
// and dispatcher. Keeping them in their own package (rather than under
// ir, decode or translator) avoids an import cycle between those stages:
// every stage needs the record shape, none of them owns it.
package block

import "github.com/ironarm/armjit/ir"

// Condition is one of the 14 ARM condition codes plus AL. NV (0b1111) is
// remapped to AL for condition-grouping purposes by the translator
// (spec.md §4.4).
type Condition uint8

const (
	CondEQ Condition = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
)

var condName = [...]string{"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC", "HI", "LS", "GE", "LT", "GT", "LE", "AL"}

func (c Condition) String() string {
	if int(c) < len(condName) {
		return condName[c]
	}
	return "?"
}

// Key packs (address[31:1], mode[4:0], T-flag) into one comparable value
// identifying a guest entry point exactly, as spec.md §3 requires.
type Key uint64

// MakeKey packs an entry point. addr's bit 0 is discarded: it is implied
// by thumb and carries no information (guest PC is always even in ARM
// mode, and Thumb instructions are halfword-aligned so bit 0 of a branch
// target is the mode-switch indicator consumed before the key is built,
// never an address bit).
func MakeKey(addr uint32, mode uint8, thumb bool) Key {
	t := uint64(0)
	if thumb {
		t = 1
	}
	return Key(uint64(addr&^1) | (uint64(mode&0x1f) << 32) | (t << 37))
}

func (k Key) Addr() uint32 { return uint32(k) &^ 1 }
func (k Key) Mode() uint8  { return uint8((uint64(k) >> 32) & 0x1f) }
func (k Key) Thumb() bool  { return (uint64(k)>>37)&1 != 0 }

// MicroBlock is immutable after translation: one guard condition and the
// ordered IR program that runs under it (spec.md §3).
type MicroBlock struct {
	Condition Condition
	Program   []ir.Op
	Length    int // guest instructions covered inside this group
}

// LinkSite names where, inside the host function, the emitter left a
// placeholder relative branch to BranchTarget. The linker overwrites the
// bytes at [Offset, Offset+Size) once the target is known (spec.md §4.7
// "Inter-block linking").
type LinkSite struct {
	Offset int
	Size   int
}

// Block is immutable after compilation (spec.md §3 "Basic Block").
type Block struct {
	EntryKey     Key
	Length       int // guest instructions covered; the cycle debit
	MicroBlocks  []MicroBlock
	Function     []byte // native code; nil until Emitted
	FuncBase     uintptr

	HasBranchTarget bool
	BranchTarget    Key
	LinkSite        LinkSite

	// LinkingBlocks are back-references: keys of predecessor blocks whose
	// direct-jump patch site targets this block. Stored as keys, never
	// pointers, so cycles never escape the cache's arena (spec.md §9).
	LinkingBlocks []Key

	// FastLinkDisabled is set when a coprocessor write inside this block
	// answered "yes" to should_write_break_basic_block (spec.md §4.4,
	// SPEC_FULL §3): direct linking out of this block is refused even
	// though a statically known successor exists. Predecessors may still
	// link into it.
	FastLinkDisabled bool

	State BlockState
}

// BlockState names where in its lifecycle a Block sits (spec.md §4.7
// "State machine: block lifecycle").
type BlockState uint8

const (
	Fresh BlockState = iota
	Translated
	Optimized
	Allocated
	Emitted
	Linked
	Invalidated
)

func (s BlockState) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Translated:
		return "Translated"
	case Optimized:
		return "Optimized"
	case Allocated:
		return "Allocated"
	case Emitted:
		return "Emitted"
	case Linked:
		return "Linked"
	case Invalidated:
		return "Invalidated"
	default:
		return "?"
	}
}
