package decode

import "github.com/ironarm/armjit/block"

// DecodeThumb turns one 16-bit Thumb halfword into a decoded Instruction,
// reusing the same ARM-shaped records where the Thumb encoding is just a
// compressed form of an ARM one (spec.md §4.3 notes Thumb lifting re-uses
// the ARM IR-synthesis rules through a canonicalizing decode step). Thumb
// instructions are always unconditional at the decode level; the
// conditional-branch opcode carries its own 4-bit condition field and is
// the only shape where Cond() is not CondAL.
func DecodeThumb(half uint16) Instruction {
	b := base{cond: block.CondAL}
	h := uint32(half)

	switch {
	case bits5(h, 15, 11) == 0b00011:
		// Add/subtract: register or 3-bit immediate form.
		opc := AluADD
		if bit(h, 9) {
			opc = AluSUB
		}
		rhs := Operand2{Rm: uint8(bits5(h, 8, 6))}
		if bit(h, 10) {
			rhs = Operand2{IsImmediate: true, ImmRotated: bits5(h, 8, 6)}
		}
		return DataProcessing{base: b, Opcode: uint8(opc), S: true, Rn: uint8(bits5(h, 5, 3)), Rd: uint8(bits5(h, 2, 0)), Op2: rhs}

	case bits5(h, 15, 13) == 0b000:
		// Shift by immediate (MOV Rd, Rm, <shift> #imm5).
		sh := ShiftKind(bits5(h, 12, 11))
		amt := uint8(bits5(h, 10, 6))
		return DataProcessing{
			base: b, Opcode: uint8(AluMOV), S: true, Rd: uint8(bits5(h, 2, 0)),
			Op2: Operand2{Rm: uint8(bits5(h, 5, 3)), Shift: sh, ShiftAmount: amt},
		}

	case bits5(h, 15, 13) == 0b001:
		// MOV/CMP/ADD/SUB Rd, #imm8.
		opcSel := bits5(h, 12, 11)
		rd := uint8(bits5(h, 10, 8))
		imm := bits5(h, 7, 0)
		var opc int
		switch opcSel {
		case 0:
			opc = AluMOV
		case 1:
			opc = AluCMP
		case 2:
			opc = AluADD
		default:
			opc = AluSUB
		}
		return DataProcessing{base: b, Opcode: uint8(opc), S: true, Rn: rd, Rd: rd, Op2: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 10) == 0b010000:
		// ALU operations, Rd = Rd OP Rm. Most map straight onto
		// DataProcessing with the destination doubling as Rn; the six
		// that don't fit ARM's 16-opcode dataprocessing field (register-
		// controlled shifts, NEG, MUL) are rewritten into the ARM shape
		// that has equivalent semantics.
		op := bits5(h, 9, 6)
		rd := uint8(bits5(h, 2, 0))
		rm := uint8(bits5(h, 5, 3))
		switch op {
		case 0b0010, 0b0011, 0b0100, 0b0111: // LSL, LSR, ASR, ROR (register-controlled)
			kind := map[uint32]ShiftKind{0b0010: ShiftLSL, 0b0011: ShiftLSR, 0b0100: ShiftASR, 0b0111: ShiftROR}[op]
			return DataProcessing{base: b, Opcode: AluMOV, S: true, Rd: rd, Op2: Operand2{Rm: rd, Shift: kind, ShiftIsReg: true, ShiftReg: rm}}
		case 0b1001: // NEG Rd, Rm == RSB Rd, Rm, #0
			return DataProcessing{base: b, Opcode: AluRSB, S: true, Rn: rm, Rd: rd, Op2: Operand2{IsImmediate: true, ImmRotated: 0}}
		case 0b1101: // MUL Rd, Rm
			return Multiply{base: b, SetFlags: true, Rd: rd, Rs: rd, Rm: rm}
		default:
			opc, ok := thumbALUOpcode[op]
			if !ok {
				return Undefined{b}
			}
			return DataProcessing{base: b, Opcode: uint8(opc), S: true, Rn: rd, Rd: rd, Op2: Operand2{Rm: rm}}
		}

	case bits5(h, 15, 10) == 0b010001:
		// Hi-register ops and BX/BLX.
		op := bits5(h, 9, 8)
		h1 := bit(h, 7)
		rm := uint8(bits5(h, 6, 3))
		rdLow := uint8(bits5(h, 2, 0))
		rd := rdLow
		if h1 {
			rd += 8
		}
		switch op {
		case 0b00:
			return DataProcessing{base: b, Opcode: AluADD, Rn: rd, Rd: rd, Op2: Operand2{Rm: rm}}
		case 0b01:
			return DataProcessing{base: b, Opcode: AluCMP, S: true, Rn: rd, Rd: rd, Op2: Operand2{Rm: rm}}
		case 0b10:
			return DataProcessing{base: b, Opcode: AluMOV, Rd: rd, Op2: Operand2{Rm: rm}}
		default:
			return BranchExchange{base: b, Link: bit(h, 7), Rm: rm}
		}

	case bits5(h, 15, 11) == 0b01001:
		// LDR Rd, [PC, #imm8*4] (PC-relative literal load).
		rd := uint8(bits5(h, 10, 8))
		imm := bits5(h, 7, 0) * 4
		return SingleDataTransfer{base: b, Load: true, PreIndex: true, Up: true, Rn: 15, Rd: rd, Offset: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 12) == 0b0101:
		// Load/store with register offset, word/byte/halfword/signed.
		rm := uint8(bits5(h, 8, 6))
		rn := uint8(bits5(h, 5, 3))
		rd := uint8(bits5(h, 2, 0))
		op := bits5(h, 11, 9)
		switch op {
		case 0b000: // STR
			return SingleDataTransfer{base: b, Load: false, PreIndex: true, Up: true, Rn: rn, Rd: rd, Offset: Operand2{Rm: rm}}
		case 0b010: // STRB
			return SingleDataTransfer{base: b, Load: false, Byte: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Offset: Operand2{Rm: rm}}
		case 0b100: // LDR
			return SingleDataTransfer{base: b, Load: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Offset: Operand2{Rm: rm}}
		case 0b110: // LDRB
			return SingleDataTransfer{base: b, Load: true, Byte: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Offset: Operand2{Rm: rm}}
		case 0b001: // STRH
			return HalfwordSignedTransfer{base: b, Load: false, PreIndex: true, Up: true, Rn: rn, Rd: rd, Half: true, OffsetReg: rm}
		case 0b011: // LDRSB
			return HalfwordSignedTransfer{base: b, Load: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Signed: true, OffsetReg: rm}
		case 0b101: // LDRH
			return HalfwordSignedTransfer{base: b, Load: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Half: true, OffsetReg: rm}
		default: // 0b111: LDRSH
			return HalfwordSignedTransfer{base: b, Load: true, PreIndex: true, Up: true, Rn: rn, Rd: rd, Half: true, Signed: true, OffsetReg: rm}
		}

	case bits5(h, 15, 13) == 0b011:
		// Load/store word/byte with 5-bit immediate offset.
		byteForm := bit(h, 12)
		load := bit(h, 11)
		imm := bits5(h, 10, 6)
		if !byteForm {
			imm *= 4
		}
		rn := uint8(bits5(h, 5, 3))
		rd := uint8(bits5(h, 2, 0))
		return SingleDataTransfer{base: b, Load: load, Byte: byteForm, PreIndex: true, Up: true, Rn: rn, Rd: rd, Offset: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 12) == 0b1000:
		// LDRH/STRH with 5-bit immediate offset (halfword, x2 scaled).
		load := bit(h, 11)
		imm := bits5(h, 10, 6) * 2
		rn := uint8(bits5(h, 5, 3))
		rd := uint8(bits5(h, 2, 0))
		return HalfwordSignedTransfer{base: b, Load: load, PreIndex: true, Up: true, Rn: rn, Rd: rd, Half: true, ImmOffset: true, OffsetImm: uint8(imm)}

	case bits5(h, 15, 12) == 0b1001:
		// SP-relative load/store.
		load := bit(h, 11)
		rd := uint8(bits5(h, 10, 8))
		imm := bits5(h, 7, 0) * 4
		return SingleDataTransfer{base: b, Load: load, PreIndex: true, Up: true, Rn: 13, Rd: rd, Offset: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 12) == 0b1010:
		// ADD Rd, PC/SP, #imm8*4 (address generation).
		rd := uint8(bits5(h, 10, 8))
		imm := bits5(h, 7, 0) * 4
		rn := uint8(15)
		if bit(h, 11) {
			rn = 13
		}
		return DataProcessing{base: b, Opcode: AluADD, Rn: rn, Rd: rd, Op2: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 8) == 0b10110000:
		// ADD/SUB SP, #imm7*4.
		imm := bits5(h, 6, 0) * 4
		opc := AluADD
		if bit(h, 7) {
			opc = AluSUB
		}
		return DataProcessing{base: b, Opcode: uint8(opc), Rn: 13, Rd: 13, Op2: Operand2{IsImmediate: true, ImmRotated: imm}}

	case bits5(h, 15, 12) == 0b1011 && bits5(h, 10, 9) == 0b10:
		// PUSH/POP, with the LR/PC extra-register bit folded into RegList.
		load := bit(h, 11)
		regs := uint16(bits5(h, 7, 0))
		if bit(h, 8) {
			if load {
				regs |= 1 << 15 // POP {..., PC}
			} else {
				regs |= 1 << 14 // PUSH {..., LR}
			}
		}
		return BlockDataTransfer{base: b, Load: load, PreIndex: !load, Up: load, WriteBack: true, Rn: 13, RegList: regs}

	case bits5(h, 15, 12) == 0b1100:
		// LDMIA/STMIA Rn!, {regs}.
		load := bit(h, 11)
		rn := uint8(bits5(h, 10, 8))
		return BlockDataTransfer{base: b, Load: load, PreIndex: false, Up: true, WriteBack: true, Rn: rn, RegList: uint16(bits5(h, 7, 0))}

	case bits5(h, 15, 12) == 0b1101 && bits5(h, 11, 8) != 0b1111:
		// Conditional branch.
		cond := block.Condition(bits5(h, 11, 8))
		imm8 := int32(int8(bits5(h, 7, 0)))
		return BranchRelative{base: base{cond: cond}, Offset: imm8 * 2}

	case bits5(h, 15, 8) == 0b11011111:
		// SWI.
		return Exception{base: b, Comment: bits5(h, 7, 0)}

	case bits5(h, 15, 11) == 0b11100:
		// Unconditional branch.
		imm11 := int32(h & 0x7ff)
		imm11 = (imm11 << 21) >> 21
		return BranchRelative{base: b, Offset: imm11 * 2}

	case bits5(h, 15, 11) == 0b11110:
		// BL/BLX prefix: upper 11 bits of a 22-bit signed offset.
		return ThumbBranchLinkSuffix{base: b, Exchange: false, OffsetLow: (h & 0x7ff) << 12}

	case bits5(h, 15, 11) == 0b11111:
		// BL suffix.
		return ThumbBranchLinkSuffix{base: b, Exchange: false, OffsetLow: (h & 0x7ff) << 1}

	case bits5(h, 15, 11) == 0b11101:
		// BLX suffix (ARMv5T): low bit forced 0, target stays ARM mode.
		return ThumbBranchLinkSuffix{base: b, Exchange: true, OffsetLow: (h & 0x7ff) << 1}
	}

	return Undefined{b}
}

var thumbALUOpcode = map[uint32]int{
	0b0000: AluAND, 0b0001: AluEOR, 0b0101: AluADC, 0b0110: AluSBC,
	0b1000: AluTST, 0b1010: AluCMP, 0b1011: AluCMN,
	0b1100: AluORR, 0b1110: AluBIC, 0b1111: AluMVN,
}
