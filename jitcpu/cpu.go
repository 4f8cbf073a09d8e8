/*
 * armjit - CPU: wires translator/optimize/regalloc/emit/blockcache/dispatcher
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

package jitcpu

import (
	"log/slog"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/dispatcher"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/state"
	"github.com/ironarm/armjit/translator"
)

// Interpreter is the one-instruction fallback the dispatcher falls back
// to on a recoverable translation failure (spec.md §7 class 1). Equal to
// dispatcher.Interpreter; re-exported so callers need only import jitcpu.
type Interpreter = dispatcher.Interpreter

// CPU bundles a guest register file with the compile pipeline dispatcher
// behind spec.md §6's external interfaces: construct one with New, then
// drive it with Run(cycle_budget).
type CPU struct {
	state *state.State
	desc  Descriptor
	disp  *dispatcher.Dispatcher
}

// New builds a CPU from desc. desc.Assembler must be supplied by the
// embedder — this module ships no concrete host backend (see
// DESIGN.md's emit/dispatcher entries); desc.CodeBufferSize defaults to
// 1 MiB when zero.
func New(desc Descriptor, logger *slog.Logger) (*CPU, error) {
	if desc.BlockSize != 0 && desc.BlockSize != translator.MaxBlockInstructions {
		return nil, ErrUnsupportedBlockSize
	}
	bufSize := desc.CodeBufferSize
	if bufSize == 0 {
		bufSize = 1 << 20
	}

	c := &CPU{state: state.New(), desc: desc}

	disp, err := dispatcher.New(dispatcher.Config{
		CodeBufferSize: bufSize,
		Assembler:      desc.Assembler,
		MemoryConfig: emit.FastPathConfig{
			InstructionTCM: desc.InstructionTCM,
			DataTCM:        desc.DataTCM,
		},
		Fetcher:      memoryFetcher{mem: desc.Memory},
		Coprocessors: coprocessorPolicy{bank: desc.Coprocessors},
		Interpreter:  desc.Interpreter,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	c.disp = disp
	return c, nil
}

// State exposes the guest register file directly, for an embedder that
// needs to seed registers before the first Run or inspect them after.
func (c *CPU) State() *state.State { return c.state }

// Memory exposes the descriptor's guest memory, for an embedder that
// needs to examine or deposit values outside of compiled code (e.g. a
// console's examine/deposit commands).
func (c *CPU) Memory() Memory { return c.desc.Memory }

// PC implements dispatcher.GuestState.
func (c *CPU) PC() uint32 { return c.state.GPR(15) }

// Mode implements dispatcher.GuestState.
func (c *CPU) Mode() uint8 { return uint8(c.state.CurMode) }

// ThumbMode implements dispatcher.GuestState.
func (c *CPU) ThumbMode() bool { return c.state.Thumb() }

// Run executes guest instructions until the accumulated cycle decrement
// meets or exceeds cycleBudget (spec.md §6 "Run contract"), reading and
// banking CPSR.mode/T from the live register file between block entries.
func (c *CPU) Run(cycleBudget int) (int, error) {
	return c.disp.Run(cycleBudget, c)
}

// Flush invalidates every cached block whose entry address falls in
// [lo, hi) — call this after the embedder writes guest code or data
// that overlaps previously compiled blocks (spec.md §8 "Invalidation
// consistency").
func (c *CPU) Flush(lo, hi uint32) {
	c.disp.Flush(lo, hi)
}

// Reset returns the register file to its power-on state and resets
// every populated coprocessor slot (spec.md §6 coprocessor interface's
// reset()). It does not flush the block cache: compiled code is still
// valid after a register-file reset, since it addresses guest state
// only through the state pointer.
func (c *CPU) Reset() {
	c.state = state.New()
	for _, cp := range c.desc.Coprocessors {
		if cp != nil {
			cp.Reset()
		}
	}
}

// CachedBlockCount reports how many blocks are currently compiled, for
// diagnostics and tests.
func (c *CPU) CachedBlockCount() int {
	return c.disp.CachedBlockCount()
}

// LookupBlock reports the cached block entered at (addr, mode, thumb),
// or nil if it isn't (or is no longer) compiled, for a console's "dump
// block" diagnostic.
func (c *CPU) LookupBlock(addr uint32, mode uint8, thumb bool) *block.Block {
	return c.disp.Lookup(block.MakeKey(addr, mode, thumb))
}

// memoryFetcher adapts a Memory into translator.Fetcher, always
// addressing the Code bus (spec.md §6: "Instruction-TCM applies to
// Code/Data buses").
type memoryFetcher struct{ mem Memory }

func (f memoryFetcher) FetchARM(addr uint32) uint32 {
	return f.mem.ReadWord(addr, BusCode)
}
func (f memoryFetcher) FetchThumb(addr uint32) uint16 {
	return f.mem.ReadHalf(addr, BusCode)
}

// coprocessorPolicy adapts a [16]Coprocessor bank into
// translator.CoprocessorPolicy by indexing on the coprocessor number the
// translator's decoded MCR/MRC carries.
type coprocessorPolicy struct{ bank [16]Coprocessor }

func (p coprocessorPolicy) ShouldBreakBasicBlock(coproc, opc1, crn, crm, opc2 uint8) bool {
	cp := p.bank[coproc]
	if cp == nil {
		return true // undefined-instruction exception always ends the block
	}
	return cp.ShouldBreakBasicBlock(opc1, crn, crm, opc2)
}
