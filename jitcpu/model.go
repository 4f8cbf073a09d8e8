/*
 * armjit - CPU descriptor: model, memory/coprocessor/TCM/page-table interfaces
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

// Package jitcpu assembles the pipeline packages (translator, optimize,
// regalloc, emit, blockcache, dispatcher) behind the CPU descriptor and
// external interfaces spec.md §6 names, so an embedder constructs one
// CPU value and calls Run(cycle_budget) instead of wiring the pipeline
// by hand.
package jitcpu

import (
	"errors"

	"github.com/ironarm/armjit/emit"
)

// Model names the guest architecture variant (spec.md §6 CPU descriptor).
// The two differ in which opcode classes the decoder accepts (e.g.
// ARMv5TE's CLZ/QADD/QSUB family, BLX) — jitcpu itself is architecture-
// agnostic; Model is carried through to whatever decoder policy the
// embedder's Fetcher/CoprocessorPolicy choose to apply.
type Model uint8

const (
	ARMv4T Model = iota
	ARMv5TE
)

func (m Model) String() string {
	if m == ARMv5TE {
		return "ARMv5TE"
	}
	return "ARMv4T"
}

// Bus selects which of the host's three memory spaces an access targets
// (spec.md §6 memory interface).
type Bus uint8

const (
	BusCode Bus = iota
	BusData
	BusSystem
)

// Memory is the host-provided memory interface (spec.md §6). jitcpu's
// Fetcher adapter calls ReadWord/ReadHalf against BusCode; the emitted
// slow path (once a concrete Assembler exists) would call the rest
// directly.
type Memory interface {
	ReadByte(addr uint32, bus Bus) uint8
	ReadHalf(addr uint32, bus Bus) uint16
	ReadWord(addr uint32, bus Bus) uint32
	WriteByte(addr uint32, value uint8, bus Bus)
	WriteHalf(addr uint32, value uint16, bus Bus)
	WriteWord(addr uint32, value uint32, bus Bus)
}

// Coprocessor is one of the sixteen coprocessor slots a CPU descriptor
// carries (spec.md §6 coprocessor interface). A nil slot means "no
// coprocessor present"; MRC/MCR against an absent coprocessor is a
// guest-visible undefined-instruction exception, not a host error.
type Coprocessor interface {
	Read(opc1, crn, crm, opc2 uint8) uint32
	Write(opc1, crn, crm, opc2 uint8, value uint32)
	ShouldBreakBasicBlock(opc1, crn, crm, opc2 uint8) bool
	Reset()
}

// PageTable is the optional fast-path acceleration structure spec.md §6
// describes: a fixed 2^20-entry array of 4 KiB-page host pointers (or
// nil for "slow path"), indexed by addr>>12. jitcpu exposes it only as
// storage an embedder's concrete Assembler can address directly — no
// package in this module dereferences an entry, since no concrete
// backend ships (see DESIGN.md's emit entry).
type PageTable struct {
	Pages [1 << 20]uintptr
}

// Lookup returns the backing page pointer for addr, or 0 for "slow path".
func (pt *PageTable) Lookup(addr uint32) uintptr {
	return pt.Pages[addr>>12]
}

// Set installs page as the backing pointer for the 4 KiB page containing addr.
func (pt *PageTable) Set(addr uint32, page uintptr) {
	pt.Pages[addr>>12] = page
}

// Descriptor is the CPU descriptor spec.md §6 names for construction:
// `{model, block_size (default 32), memory, coprocessors[0..15]}`.
type Descriptor struct {
	Model        Model
	BlockSize    int // must equal translator.MaxBlockInstructions; see DESIGN.md
	Memory       Memory
	Coprocessors [16]Coprocessor

	InstructionTCM emit.TCMWindow
	DataTCM        emit.TCMWindow
	PageTable      *PageTable

	Assembler   emit.Assembler
	Interpreter Interpreter
	CodeBufferSize int
}

// ErrUnsupportedBlockSize reports a Descriptor.BlockSize that doesn't
// match the translator's fixed basic-block instruction cap. The
// translator package has no parameter for this (spec.md §9's block-size
// default is baked into translator.MaxBlockInstructions); a descriptor
// naming any other value is rejected rather than silently ignored.
var ErrUnsupportedBlockSize = errors.New("jitcpu: block_size must equal translator.MaxBlockInstructions")
