/*
 * armjit - Guest instruction decoder: bit-pattern dispatch, ARM and Thumb
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

// Package decode is pure bit-pattern dispatch (spec.md §4.3): it never
// touches guest state or memory, it only turns a raw 32-bit ARM word or
// 16-bit Thumb halfword into a strongly-typed record naming one of the
// shapes spec.md §4.3 lists. The translator is the client that walks
// these records and decides what IR to emit.
package decode

import "github.com/ironarm/armjit/block"

// Shape is the decoded instruction's class tag, driving the translator's
// dispatch the same way ir.Class drives the optimizer's and emitter's.
type Shape uint8

const (
	ShapeUndefined Shape = iota
	ShapeDataProcessing
	ShapeMultiply
	ShapeMultiplyLong
	ShapeSingleDataSwap
	ShapeHalfwordSignedTransfer
	ShapeSingleDataTransfer
	ShapeBlockDataTransfer
	ShapeBranchRelative
	ShapeBranchExchange
	ShapeMoveStatusRegister
	ShapeMoveRegisterStatus
	ShapeCountLeadingZeros
	ShapeSaturatingAddSub
	ShapeSignedHalfwordMultiply
	ShapeCoprocessorRegisterTransfer
	ShapeException
	ShapeThumbBranchLinkSuffix
)

// Instruction is the sealed decoded-record interface; every concrete type
// below is one of spec.md §4.3's named shapes.
type Instruction interface {
	Shape() Shape
	Cond() block.Condition
}

type base struct {
	cond block.Condition
}

func (b base) Cond() block.Condition { return b.cond }

// ALU opcode field values (bits 24:21 of a DataProcessing word), named to
// match the ARM ARM's mnemonic-to-field table.
const (
	AluAND = iota
	AluEOR
	AluSUB
	AluRSB
	AluADD
	AluADC
	AluSBC
	AluRSC
	AluTST
	AluTEQ
	AluCMP
	AluCMN
	AluORR
	AluMOV
	AluBIC
	AluMVN
)

// ShiftKind names operand-2's shift type field (bits 6:5).
type ShiftKind uint8

const (
	ShiftLSL ShiftKind = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// Operand2 models a DataProcessing/MSR instruction's second operand: an
// 8-bit rotated immediate, or a register optionally shifted by either an
// immediate or another register.
type Operand2 struct {
	IsImmediate bool
	// Immediate form.
	ImmRotated uint32 // already rotated per the 4-bit rotate field
	// Register form.
	Rm           uint8
	Shift        ShiftKind
	ShiftIsReg   bool
	ShiftAmount  uint8 // valid when !ShiftIsReg
	ShiftReg     uint8 // valid when ShiftIsReg (low byte of Rs used)
}

type DataProcessing struct {
	base
	Opcode uint8 // one of Alu*
	S      bool
	Rn     uint8
	Rd     uint8
	Op2    Operand2
}

func (d DataProcessing) Shape() Shape { return ShapeDataProcessing }

type Multiply struct {
	base
	Accumulate bool
	SetFlags   bool
	Rd         uint8
	Rn         uint8 // accumulate operand
	Rs, Rm     uint8
}

func (d Multiply) Shape() Shape { return ShapeMultiply }

type MultiplyLong struct {
	base
	Signed     bool
	Accumulate bool
	SetFlags   bool
	RdHi, RdLo uint8
	Rs, Rm     uint8
}

func (d MultiplyLong) Shape() Shape { return ShapeMultiplyLong }

type SingleDataSwap struct {
	base
	Byte   bool
	Rn, Rd, Rm uint8
}

func (d SingleDataSwap) Shape() Shape { return ShapeSingleDataSwap }

// HalfwordSignedTransfer covers LDRH/STRH/LDRSB/LDRSH and their
// register/immediate-offset, pre/post, up/down variants.
type HalfwordSignedTransfer struct {
	base
	Load        bool
	PreIndex    bool
	Up          bool
	WriteBack   bool
	ImmOffset   bool
	Rn, Rd      uint8
	OffsetImm   uint8 // valid when ImmOffset
	OffsetReg   uint8 // valid when !ImmOffset
	Half        bool
	Signed      bool
}

func (d HalfwordSignedTransfer) Shape() Shape { return ShapeHalfwordSignedTransfer }

type SingleDataTransfer struct {
	base
	Load      bool
	Byte      bool
	PreIndex  bool
	Up        bool
	WriteBack bool
	// Translation is the post-indexed 'T' variant (LDRT/STRT/LDRBT/
	// STRBT): ARM encodes this by setting W=1 on a post-indexed
	// transfer. The backend this spec was distilled from has no such
	// path (spec.md §9 Open Questions); the translator fails fast on it.
	Translation bool
	Rn, Rd      uint8
	Offset      Operand2 // register-offset reuses Operand2's shifted-register form; IsImmediate means a 12-bit immediate offset held in ImmRotated
}

func (d SingleDataTransfer) Shape() Shape { return ShapeSingleDataTransfer }

type BlockDataTransfer struct {
	base
	Load      bool
	PreIndex  bool
	Up        bool
	UserMode  bool // S-bit: user-bank transfer / restore CPSR from SPSR on LDM w/ R15
	WriteBack bool
	Rn        uint8
	RegList   uint16
}

func (d BlockDataTransfer) Shape() Shape { return ShapeBlockDataTransfer }

type BranchRelative struct {
	base
	Link   bool
	Exchange bool // BLX(imm): always switches to Thumb state, unlike B/BL
	Offset int32 // sign-extended, already scaled to bytes (x4 for ARM, x2 for Thumb); BLX(imm) additionally folds in its H bit
}

func (d BranchRelative) Shape() Shape { return ShapeBranchRelative }

type BranchExchange struct {
	base
	Link bool // BLX(reg): ARMv5 only
	Rm   uint8
}

func (d BranchExchange) Shape() Shape { return ShapeBranchExchange }

// MoveStatusRegister is MRS: Rd = CPSR or SPSR.
type MoveStatusRegister struct {
	base
	FromSPSR bool
	Rd       uint8
}

func (d MoveStatusRegister) Shape() Shape { return ShapeMoveStatusRegister }

// MoveRegisterStatus is MSR: CPSR/SPSR (optionally only flag bits) = Op2.
type MoveRegisterStatus struct {
	base
	ToSPSR   bool
	FlagsOnly bool // 'f' field mask: only bits 31:24 (N,Z,C,V,Q) written
	Op2      Operand2
}

func (d MoveRegisterStatus) Shape() Shape { return ShapeMoveRegisterStatus }

type CountLeadingZeros struct {
	base
	Rd, Rm uint8
}

func (d CountLeadingZeros) Shape() Shape { return ShapeCountLeadingZeros }

type SaturatingAddSub struct {
	base
	Subtract bool
	Doubled  bool // QDADD/QDSUB: rhs doubled and saturated first
	Rn, Rd, Rm uint8
}

func (d SaturatingAddSub) Shape() Shape { return ShapeSaturatingAddSub }

// SignedHalfwordMultiply covers the SMLAxy/SMULxy/SMLAWy/SMULWy family.
type SignedHalfwordMultiply struct {
	base
	Rd, Rn, Rs, Rm uint8
	NHigh, MHigh   bool // which half of Rs (NHigh, y bit) / Rm (MHigh, x bit) feeds the multiply
	Accumulate     bool
	WideForm       bool // SMLAWy/SMULWy: Rm full 32-bit x Rs half, >>16
}

func (d SignedHalfwordMultiply) Shape() Shape { return ShapeSignedHalfwordMultiply }

type CoprocessorRegisterTransfer struct {
	base
	ToCoprocessor bool // MCR if true, MRC if false
	Opc1          uint8
	CRn, CRm      uint8
	Rd            uint8
	CoprocNum     uint8
	Opc2          uint8
}

func (d CoprocessorRegisterTransfer) Shape() Shape { return ShapeCoprocessorRegisterTransfer }

// Exception covers SWI and the decoder's undefined-instruction trap.
type Exception struct {
	base
	Undefined bool // true for an undefined-instruction trap, false for SWI
	Comment   uint32
}

func (d Exception) Shape() Shape { return ShapeException }

// ThumbBranchLinkSuffix is the second halfword of a Thumb BL/BLX pair.
type ThumbBranchLinkSuffix struct {
	base
	Exchange bool // BLX suffix vs BL suffix
	OffsetLow uint32 // 11-bit low half, already shifted into place
}

func (d ThumbBranchLinkSuffix) Shape() Shape { return ShapeThumbBranchLinkSuffix }

type Undefined struct{ base }

func (d Undefined) Shape() Shape { return ShapeUndefined }

func bit(w uint32, n uint) bool   { return (w>>n)&1 != 0 }
func bits5(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & ((1 << (hi - lo + 1)) - 1)
}
