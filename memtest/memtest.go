/*
 * armjit - Fakes for tests: guest memory and a placeholder assembler.
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

// Package memtest provides a fake jitcpu.Memory and a placeholder
// emit.Assembler shared by this module's package tests, so translator,
// dispatcher, jitcpu and console tests don't each redeclare the same
// byte-addressable memory and single-byte-opcode stub.
package memtest

import (
	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/jitcpu"
)

// Memory is a flat, word-addressable little-endian memory backing all
// three buses identically — enough for a translator to fetch guest code
// and for a console/test to examine or deposit values. Reads past the
// end of Words return FillWord (defaulting to an ARM NOP-equivalent,
// MOV R0,R0) instead of faulting, since this module has no guest
// exception model of its own (spec.md's Non-goals).
type Memory struct {
	Words    []uint32
	FillWord uint32
}

// New builds a Memory preloaded with words at address 0, 4, 8, ...
func New(words ...uint32) *Memory {
	return &Memory{Words: words, FillWord: 0xE1A00000}
}

func (m *Memory) wordAt(addr uint32) uint32 {
	idx := addr / 4
	if int(idx) < len(m.Words) {
		return m.Words[idx]
	}
	return m.FillWord
}

func (m *Memory) ReadByte(addr uint32, _ jitcpu.Bus) uint8 {
	return uint8(m.wordAt(addr &^ 3) >> ((addr & 3) * 8))
}

func (m *Memory) ReadHalf(addr uint32, _ jitcpu.Bus) uint16 {
	return uint16(m.wordAt(addr &^ 3) >> ((addr & 2) * 8))
}

func (m *Memory) ReadWord(addr uint32, _ jitcpu.Bus) uint32 {
	return m.wordAt(addr)
}

func (m *Memory) WriteByte(addr uint32, value uint8, bus jitcpu.Bus) {
	shift := (addr & 3) * 8
	word := m.wordAt(addr &^ 3)
	word = (word &^ (0xff << shift)) | (uint32(value) << shift)
	m.WriteWord(addr&^3, word, bus)
}

func (m *Memory) WriteHalf(addr uint32, value uint16, bus jitcpu.Bus) {
	shift := (addr & 2) * 8
	word := m.wordAt(addr &^ 3)
	word = (word &^ (0xffff << shift)) | (uint32(value) << shift)
	m.WriteWord(addr&^3, word, bus)
}

func (m *Memory) WriteWord(addr uint32, value uint32, _ jitcpu.Bus) {
	idx := int(addr / 4)
	for idx >= len(m.Words) {
		m.Words = append(m.Words, m.FillWord)
	}
	m.Words[idx] = value
}

// StubAssembler is a placeholder emit.Assembler: every lowering emits a
// single fixed-size filler sequence, enough to exercise compilation and
// caching without a real host encoder (no concrete backend ships in
// this module; see DESIGN.md's emit entry).
type StubAssembler struct{}

func fill() []byte { return []byte{0x90} }

func (StubAssembler) Prologue(int) []byte                               { return fill() }
func (StubAssembler) Epilogue() []byte                                  { return fill() }
func (StubAssembler) LoadContext(emit.Operand, emit.ContextSlot) []byte { return fill() }
func (StubAssembler) StoreContext(emit.ContextSlot, emit.Operand) []byte {
	return fill()
}
func (StubAssembler) FlushPC(emit.Operand) []byte         { return fill() }
func (StubAssembler) FlushExchangePC(emit.Operand) []byte { return fill() }
func (StubAssembler) LoadImmediate(emit.Operand, uint32) []byte { return fill() }
func (StubAssembler) Move(emit.Operand, emit.Operand) []byte    { return fill() }
func (StubAssembler) SpillLoad(emit.Operand, int) []byte        { return fill() }
func (StubAssembler) SpillStore(int, emit.Operand) []byte       { return fill() }
func (StubAssembler) Shift(ir.Class, emit.Operand, emit.Operand, emit.Operand, bool) []byte {
	return fill()
}
func (StubAssembler) ALUBinary(ir.Class, emit.Operand, emit.Operand, emit.Operand, bool, bool) []byte {
	return fill()
}
func (StubAssembler) ALUUnary(ir.Class, emit.Operand, emit.Operand, bool) []byte { return fill() }
func (StubAssembler) CLZ(emit.Operand, emit.Operand) []byte                     { return fill() }
func (StubAssembler) QALU(ir.Class, emit.Operand, emit.Operand, emit.Operand) []byte {
	return fill()
}
func (StubAssembler) Multiply(emit.Operand, emit.Operand, emit.Operand, emit.Operand, bool, bool) []byte {
	return fill()
}
func (StubAssembler) Add64(emit.Operand, emit.Operand, emit.Operand, emit.Operand, emit.Operand, emit.Operand) []byte {
	return fill()
}
func (StubAssembler) ClearCarry() []byte { return fill() }
func (StubAssembler) SetCarry() []byte   { return fill() }
func (StubAssembler) PermuteFlagsToCPSR(emit.Operand, emit.Operand, ir.FlagMask) []byte {
	return fill()
}
func (StubAssembler) PermuteStickyToCPSR(emit.Operand, emit.Operand) []byte { return fill() }
func (StubAssembler) MemoryFastPathRead(emit.Operand, emit.Operand, ir.MemFlags, emit.FastPathConfig) []byte {
	return fill()
}
func (StubAssembler) MemoryFastPathWrite(emit.Operand, emit.Operand, ir.MemFlags, emit.FastPathConfig) []byte {
	return fill()
}
func (StubAssembler) MemorySlowPathRead(emit.Operand, emit.Operand, ir.MemFlags) []byte {
	return fill()
}
func (StubAssembler) MemorySlowPathWrite(emit.Operand, emit.Operand, ir.MemFlags) []byte {
	return fill()
}
func (StubAssembler) CoprocessorRead(emit.Operand, uint8, uint8, uint8, uint8, uint8) []byte {
	return fill()
}
func (StubAssembler) CoprocessorWrite(emit.Operand, uint8, uint8, uint8, uint8, uint8) []byte {
	return fill()
}
func (StubAssembler) BeginGuard(block.Condition) ([]byte, int, int) { return fill(), 0, 1 }
func (StubAssembler) PatchGuard(int, int, int) []byte               { return fill() }
func (StubAssembler) ExitNonLinking(int) []byte                     { return fill() }
func (StubAssembler) ExitLinking(int) ([]byte, int, int) {
	return []byte{0x90, 0x90, 0x90, 0x90}, 0, 4
}
func (StubAssembler) PatchLink(block.LinkSite, int) []byte { return fill() }
func (StubAssembler) UnpatchLink(block.LinkSite) []byte    { return fill() }
