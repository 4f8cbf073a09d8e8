/*
 * armjit - Code emitter: host backend abstraction
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

package emit

import (
	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/ir"
)

// OperandKind discriminates an Operand's storage.
type OperandKind uint8

const (
	OperandRegister OperandKind = iota
	OperandSpillSlot
	OperandImmediate
)

// Operand names where one IR variable (or constant) lives for the
// duration of a single opcode's lowering — the emitter's translation of
// a regalloc.Location/ir.AnyRef pair into something an Assembler can
// reference directly, without needing to know about ir.Variable or
// regalloc.Result itself.
type Operand struct {
	Kind OperandKind
	Reg  int
	Slot int
	Imm  uint32
}

// Reg builds a register operand.
func Reg(r int) Operand { return Operand{Kind: OperandRegister, Reg: r} }

// Slot builds a spill-slot operand.
func Slot(s int) Operand { return Operand{Kind: OperandSpillSlot, Slot: s} }

// Imm builds an unsigned-immediate operand.
func Imm(v uint32) Operand { return Operand{Kind: OperandImmediate, Imm: v} }

// ContextSlot names one field of the guest-state struct StatePointer
// addresses.
type ContextSlot struct {
	GPR  uint8 // valid when Kind == ContextGPR
	Kind ContextKind
}

// ContextKind discriminates which region of guest state a ContextSlot names.
type ContextKind uint8

const (
	ContextGPR ContextKind = iota
	ContextCPSR
	ContextSPSR
)

// GPRSlot names a general register context slot.
func GPRSlot(reg uint8) ContextSlot { return ContextSlot{Kind: ContextGPR, GPR: reg} }

// CPSRSlot names the CPSR context slot.
func CPSRSlot() ContextSlot { return ContextSlot{Kind: ContextCPSR} }

// SPSRSlot names the current mode's banked SPSR context slot.
func SPSRSlot() ContextSlot { return ContextSlot{Kind: ContextSPSR} }

// Assembler is the per-host-architecture backend: it turns one lowering
// request into native machine code bytes. This mirrors the original
// lunatic JIT's split between an arch-independent frontend/IR and a
// `backend.hpp`-shaped per-architecture encoder (arm64/x86_64 in
// original_source/src/backend/); armjit carries the same seam as a Go
// interface so a concrete amd64 or arm64 encoder can be dropped in
// without touching Emitter's orchestration logic. No concrete
// implementation ships in this package — see DESIGN.md's "Known scope
// boundary" entry for the emit package.
type Assembler interface {
	// Prologue emits the one-time dispatcher thunk: save callee-saved
	// host registers, reserve the spill area, move the two incoming
	// arguments into StatePointer and CycleCounter.
	Prologue(spillSlots int) []byte

	// LoadContext/StoreContext read and write the guest-state struct
	// StatePointer addresses (GPRs, CPSR, SPSR) — the lowering of
	// LoadGPR/StoreGPR/LoadCPSR/StoreCPSR/LoadSPSR/StoreSPSR.
	LoadContext(dst Operand, slot ContextSlot) []byte
	StoreContext(slot ContextSlot, src Operand) []byte
	// FlushPC/FlushExchangePC store a new guest PC (and, for exchange,
	// fold the target's bit 0 into CPSR.T) into guest state, per the
	// glossary's "Flush: compute the next guest PC accounting for the
	// two-instruction pipeline."
	FlushPC(target Operand) []byte
	FlushExchangePC(target Operand) []byte
	// Epilogue emits the dispatcher thunk's return sequence: restore
	// callee-saved registers and return CycleCounter to the caller.
	Epilogue() []byte

	// LoadImmediate materializes a constant into dst.
	LoadImmediate(dst Operand, value uint32) []byte
	// Move copies src into dst, both already-resident operands.
	Move(dst, src Operand) []byte
	// SpillLoad reloads a variable from its spill slot into a register.
	SpillLoad(dst Operand, slot int) []byte
	// SpillStore evicts a register-resident variable into its spill slot.
	SpillStore(slot int, src Operand) []byte

	// Shift lowers LSL/LSR/ASR/ROR; setFlags requests the host carry be
	// left holding the shifted-out bit.
	Shift(cls ir.Class, dst, value, amount Operand, setFlags bool) []byte
	// ALUBinary lowers AND/BIC/EOR/SUB/RSB/ADD/ADC/SBC/RSC/ORR. dst may
	// be the zero Operand when the result is a dropped compare (CMP-class).
	ALUBinary(cls ir.Class, dst, lhs, rhs Operand, hasDst, setFlags bool) []byte
	// ALUUnary lowers MOV/MVN.
	ALUUnary(cls ir.Class, dst, src Operand, setFlags bool) []byte
	// CLZ counts leading zeros of src into dst.
	CLZ(dst, src Operand) []byte
	// QALU lowers QADD/QSUB, leaving the host overflow flag set on
	// saturation for a following UpdateSticky to consume.
	QALU(cls ir.Class, dst, lhs, rhs Operand) []byte
	// Multiply lowers MUL (dstHi's zero value means a 32-bit product).
	Multiply(dstLo, dstHi, lhs, rhs Operand, signed, has64 bool) []byte
	// Add64 lowers a 64-bit accumulate (UMLAL/SMLAL lifted to ADD64).
	Add64(dstLo, dstHi, lhsLo, lhsHi, rhsLo, rhsHi Operand) []byte

	// ClearCarry/SetCarry force the host carry flag to a known value
	// ahead of an opcode that consumes it (ADC/SBC/RSC).
	ClearCarry() []byte
	SetCarry() []byte
	// PermuteFlagsToCPSR extracts whichever of mask's bits the most
	// recent flag-setting opcode produced from host flag positions into
	// guest CPSR bit positions (N=31,Z=30,C=29,V=28), ORed into dst which
	// already holds the unaffected CPSR bits.
	PermuteFlagsToCPSR(dst Operand, input Operand, mask ir.FlagMask) []byte
	// PermuteStickyToCPSR ORs a 1 into bit 28 (Q) of dst when the host
	// overflow flag is set from the preceding QALU.
	PermuteStickyToCPSR(dst Operand, input Operand) []byte

	// MemoryFastPathRead/Write attempt the TCM/page-table fast path
	// (spec.md §4.7 "Memory fast path"); cfg carries the checks needed to
	// fall through to SlowPathCall when no fast path applies.
	MemoryFastPathRead(dst, addr Operand, flags ir.MemFlags, cfg FastPathConfig) []byte
	MemoryFastPathWrite(addr, value Operand, flags ir.MemFlags, cfg FastPathConfig) []byte
	// MemorySlowPathRead/Write save caller-saved host registers, marshal the
	// host calling convention (memory object, address, bus, value for
	// writes), call the host read/write function, and restore registers.
	MemorySlowPathRead(dst, addr Operand, flags ir.MemFlags) []byte
	MemorySlowPathWrite(addr, value Operand, flags ir.MemFlags) []byte

	// CoprocessorRead/Write call through to the coprocessor interface
	// (spec.md §6) for MRC/MCR.
	CoprocessorRead(dst Operand, coproc, opc1, crn, crm, opc2 uint8) []byte
	CoprocessorWrite(src Operand, coproc, opc1, crn, crm, opc2 uint8) []byte

	// BeginGuard emits a conditional branch-if-fails placeholder ahead of
	// a micro-block whose block.Condition is not AL: when the guest
	// condition doesn't hold, execution must skip the micro-block's
	// entire lowered program. The skip distance isn't known until that
	// program is lowered, so this returns a patchable placeholder the
	// same way ExitLinking does; the caller later overwrites it via
	// PatchGuard once the skip-to offset is known.
	BeginGuard(cond block.Condition) (code []byte, patchOffset int, patchSize int)
	// PatchGuard overwrites a BeginGuard placeholder so that failing the
	// condition skips forward to skipToOffset (an absolute offset into
	// the same code buffer).
	PatchGuard(patchOffset, patchSize, skipToOffset int) []byte

	// ExitNonLinking subtracts length from CycleCounter and returns to
	// the dispatcher thunk's epilogue.
	ExitNonLinking(length int) []byte
	// ExitLinking subtracts length from CycleCounter, then — leaving
	// size bytes at the returned offset for the linker to later overwrite
	// with a direct jump once the target is compiled — falls back to the
	// epilogue when the counter is exhausted or the target is absent.
	// The returned offset/size becomes the block's block.LinkSite.
	ExitLinking(length int) (code []byte, patchOffset int, patchSize int)
	// PatchLink overwrites a previously emitted ExitLinking patch site
	// (identified by its LinkSite) with a direct jump to targetOffset,
	// or restores it to the epilogue-fallback form when unpatching.
	PatchLink(site block.LinkSite, targetOffset int) []byte
	UnpatchLink(site block.LinkSite) []byte
}

// FastPathConfig bundles the two TCM windows and the page-table pointer
// an emitted memory access consults before falling to the slow path
// (spec.md §6 "External interfaces").
type FastPathConfig struct {
	InstructionTCM TCMWindow
	DataTCM        TCMWindow
	PageTableBase  Operand // host pointer to the 2^20-entry table, as a resident operand
}

// TCMWindow mirrors spec.md §6's `{enable, enable_read, base, limit}`
// tightly-coupled-memory config struct.
type TCMWindow struct {
	Enable     bool
	EnableRead bool
	Base       uint32
	Limit      uint32
}

// Contains reports whether addr falls within this window's [base,limit).
func (w TCMWindow) Contains(addr uint32) bool {
	return w.Enable && addr >= w.Base && addr < w.Limit
}
