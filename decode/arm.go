package decode

import "github.com/ironarm/armjit/block"

// DecodeARM turns one 32-bit ARM word into a typed Instruction record.
// This is pure bit-pattern dispatch: no guest state, no memory, no side
// effects (spec.md §4.3). The top-level discriminator is bits 27:25, with
// sub-discrimination inside the 000 ("miscellaneous"/"multiplies and
// extra load-store") and 111 (coprocessor/SWI) spaces, matching spec.md's
// description of the real ARM encoding tree.
func DecodeARM(word uint32) Instruction {
	condField := bits5(word, 31, 28)
	if condField == 0xf {
		// ARMv5TE "NV" space: a disjoint encoding table from every other
		// condition, not just AL with the same shapes. BLX(imm) is the
		// only NV-space shape spec.md §4.4 requires; decode it before any
		// top-level dispatch, or a BLX(imm) word would alias onto an
		// ordinary AL BranchRelative/B and mistranslate bit24 (BLX(imm)'s
		// H bit) as BL's Link bit.
		return decodeUnconditional(word)
	}
	cond := block.Condition(condField)
	b := base{cond: cond}

	top := bits5(word, 27, 25)
	switch top {
	case 0b000, 0b001:
		if top == 0b000 {
			if inst, ok := decodeMiscOr000(word, b); ok {
				return inst
			}
		}
		return decodeDataProcessing(word, b, top == 0b001)
	case 0b010:
		return decodeSingleDataTransfer(word, b, false)
	case 0b011:
		if bit(word, 4) {
			return Undefined{b} // media/undefined extension space, not modeled
		}
		return decodeSingleDataTransfer(word, b, true)
	case 0b100:
		return decodeBlockDataTransfer(word, b)
	case 0b101:
		return decodeBranchRelative(word, b)
	case 0b110:
		return Undefined{b} // coprocessor data transfer (LDC/STC): out of scope, no coprocessor memory ops in spec.md
	case 0b111:
		if bit(word, 24) {
			return Exception{base: b, Undefined: false, Comment: word & 0x00ffffff}
		}
		return decodeCoprocessor(word, b)
	}
	return Undefined{b}
}

// decodeMiscOr000 handles the 27:25==000 subspace shared by Multiply,
// MultiplyLong, SingleDataSwap, BranchExchange, HalfwordSignedTransfer,
// MoveStatusRegister/MoveRegisterStatus, CountLeadingZeros and the
// saturating add/sub and signed-halfword-multiply families. Returns
// ok=false when the word is actually a plain register-operand2
// DataProcessing instruction, the fallback the caller applies.
func decodeMiscOr000(word uint32, b base) (Instruction, bool) {
	bits7_4 := bits5(word, 7, 4)

	// Branch and Exchange / BLX(reg): cond 0001 0010 1111 1111 1111 oo01 Rm
	if word&0x0ffffff0 == 0x012fff10 {
		return BranchExchange{base: b, Link: false, Rm: uint8(word & 0xf)}, true
	}
	if word&0x0ffffff0 == 0x012fff30 {
		return BranchExchange{base: b, Link: true, Rm: uint8(word & 0xf)}, true
	}

	// Multiply / MultiplyLong: bits7:4==1001.
	if bits7_4 == 0b1001 {
		switch bits5(word, 27, 23) {
		case 0b00000:
			return Multiply{
				base:       b,
				Accumulate: bit(word, 21),
				SetFlags:   bit(word, 20),
				Rd:         uint8(bits5(word, 19, 16)),
				Rn:         uint8(bits5(word, 15, 12)),
				Rs:         uint8(bits5(word, 11, 8)),
				Rm:         uint8(word & 0xf),
			}, true
		case 0b00001:
			return MultiplyLong{
				base:       b,
				Signed:     bit(word, 22),
				Accumulate: bit(word, 21),
				SetFlags:   bit(word, 20),
				RdHi:       uint8(bits5(word, 19, 16)),
				RdLo:       uint8(bits5(word, 15, 12)),
				Rs:         uint8(bits5(word, 11, 8)),
				Rm:         uint8(word & 0xf),
			}, true
		case 0b00010:
			return SingleDataSwap{
				base: b,
				Byte: bit(word, 22),
				Rn:   uint8(bits5(word, 19, 16)),
				Rd:   uint8(bits5(word, 15, 12)),
				Rm:   uint8(word & 0xf),
			}, true
		}
	}

	// MRS/MSR: opcode field TST/TEQ/CMP/CMN (8-11) with S=0 means status
	// register move, not a flag-setting compare. bits7_4==0000 is required
	// too (SBZ in the real encoding): CLZ(0001), QADD-family(0101), and
	// SMLAxy(bit7=1) all coincidentally land their bit22/21 sub-fields in
	// the same TST..CMN opField range, so without this they'd never reach
	// their own checks below.
	opField := bits5(word, 24, 21)
	sBit := bit(word, 20)
	if !sBit && opField >= AluTST && opField <= AluCMN && bits7_4 == 0b0000 {
		if opField == AluTST || opField == AluCMP {
			// MRS: opcode TST(8)->CPSR, CMP(10)->SPSR in the canonical
			// encoding (bit22 R field actually carries this; opField
			// merely disambiguates from a flag-setting compare).
			return MoveStatusRegister{base: b, FromSPSR: bit(word, 22), Rd: uint8(bits5(word, 15, 12))}, true
		}
		// MSR register form: opcode TEQ(9)->CPSR, CMN(11)->SPSR.
		op2 := decodeOperand2(word, false)
		return MoveRegisterStatus{
			base:      b,
			ToSPSR:    bit(word, 22),
			FlagsOnly: bits5(word, 19, 16) != 0b1111,
			Op2:       op2,
		}, true
	}

	// Count leading zeros (ARMv5): cond 0001 0110 1111 Rd 1111 0001 Rm.
	if word&0x0ff00ff0 == 0x01600010 {
		return CountLeadingZeros{base: b, Rd: uint8(bits5(word, 15, 12)), Rm: uint8(word & 0xf)}, true
	}

	// Saturating add/sub (ARMv5TE): cond 0001 0Q00 Rn Rd 0000 0101 Rm family.
	if bits5(word, 27, 23) == 0b00010 && !sBit && bits7_4 == 0b0101 {
		op := bits5(word, 22, 21)
		return SaturatingAddSub{
			base:     b,
			Subtract: op&0b01 != 0,
			Doubled:  op&0b10 != 0,
			Rn:       uint8(bits5(word, 19, 16)),
			Rd:       uint8(bits5(word, 15, 12)),
			Rm:       uint8(word & 0xf),
		}, true
	}

	// Signed halfword multiply family (ARMv5TE): cond 0001 0oo0 Rd Rn Rs 1 y x 0 Rm.
	// op(22,21): 00=SMLAxy (always accumulate), 01=SMLAWy/SMULWy (wide;
	// bit5 here is the accumulate selector, not an "x" half-select - Rm
	// enters whole, not halved), 10=SMLALxy (64-bit accumulate into
	// RdHi:RdLo, which this shape has no field for), 11=SMULxy.
	if bits5(word, 27, 23) == 0b00010 && !sBit && bit(word, 7) && !bit(word, 4) {
		op := bits5(word, 22, 21)
		if op == 0b10 {
			return nil, false
		}
		wide := op == 0b01
		accumulate := op == 0b00 || (wide && !bit(word, 5))
		return SignedHalfwordMultiply{
			base:       b,
			Rd:         uint8(bits5(word, 19, 16)),
			Rn:         uint8(bits5(word, 15, 12)),
			Rs:         uint8(bits5(word, 11, 8)),
			Rm:         uint8(word & 0xf),
			NHigh:      bit(word, 6),
			MHigh:      !wide && bit(word, 5),
			Accumulate: accumulate,
			WideForm:   wide,
		}, true
	}

	// Halfword/signed data transfer: bit7=1, bit4=1, bits6:5 != 00.
	if bit(word, 7) && bit(word, 4) && bits5(word, 6, 5) != 0 {
		imm := bit(word, 22)
		sh := bits5(word, 6, 5)
		t := HalfwordSignedTransfer{
			base:      b,
			Load:      bit(word, 20),
			PreIndex:  bit(word, 24),
			Up:        bit(word, 23),
			WriteBack: bit(word, 21) || !bit(word, 24),
			ImmOffset: imm,
			Rn:        uint8(bits5(word, 19, 16)),
			Rd:        uint8(bits5(word, 15, 12)),
			Half:      sh == 0b01 || sh == 0b11,
			Signed:    sh == 0b10 || sh == 0b11,
		}
		if imm {
			t.OffsetImm = uint8(bits5(word, 11, 8)<<4 | (word & 0xf))
		} else {
			t.OffsetReg = uint8(word & 0xf)
		}
		return t, true
	}

	return nil, false
}

func decodeOperand2(word uint32, immediateSpace bool) Operand2 {
	if immediateSpace {
		rot := bits5(word, 11, 8) * 2
		imm := word & 0xff
		return Operand2{IsImmediate: true, ImmRotated: rotl32(imm, rot)}
	}
	op := Operand2{
		Rm:    uint8(word & 0xf),
		Shift: ShiftKind(bits5(word, 6, 5)),
	}
	if bit(word, 4) {
		op.ShiftIsReg = true
		op.ShiftReg = uint8(bits5(word, 11, 8))
	} else {
		op.ShiftAmount = uint8(bits5(word, 11, 7))
	}
	return op
}

func rotl32(v, amt uint32) uint32 {
	amt &= 31
	if amt == 0 {
		return v
	}
	return (v << amt) | (v >> (32 - amt))
}

func decodeDataProcessing(word uint32, b base, immediate bool) Instruction {
	return DataProcessing{
		base:   b,
		Opcode: uint8(bits5(word, 24, 21)),
		S:      bit(word, 20),
		Rn:     uint8(bits5(word, 19, 16)),
		Rd:     uint8(bits5(word, 15, 12)),
		Op2:    decodeOperand2(word, immediate),
	}
}

func decodeSingleDataTransfer(word uint32, b base, registerOffset bool) Instruction {
	pre := bit(word, 24)
	w := bit(word, 21)
	offset := decodeOperand2(word, false)
	if !registerOffset {
		offset = Operand2{IsImmediate: true, ImmRotated: word & 0xfff}
	}
	return SingleDataTransfer{
		base:        b,
		Load:        bit(word, 20),
		Byte:        bit(word, 22),
		PreIndex:    pre,
		Up:          bit(word, 23),
		WriteBack:   (pre && w) || !pre,
		Translation: !pre && w,
		Rn:          uint8(bits5(word, 19, 16)),
		Rd:          uint8(bits5(word, 15, 12)),
		Offset:      offset,
	}
}

func decodeBlockDataTransfer(word uint32, b base) Instruction {
	return BlockDataTransfer{
		base:      b,
		Load:      bit(word, 20),
		PreIndex:  bit(word, 24),
		Up:        bit(word, 23),
		UserMode:  bit(word, 22),
		WriteBack: bit(word, 21),
		Rn:        uint8(bits5(word, 19, 16)),
		RegList:   uint16(word & 0xffff),
	}
}

func decodeBranchRelative(word uint32, b base) Instruction {
	imm24 := int32(word & 0x00ffffff)
	imm24 = (imm24 << 8) >> 8 // sign extend 24 -> 32
	return BranchRelative{base: b, Link: bit(word, 24), Offset: imm24 * 4}
}

// decodeUnconditional handles the ARMv5TE "NV" condition space
// (cond field == 1111), a separate encoding table from the conditional
// one. The only NV-space shape spec.md §4.4 requires is BLX(imm); every
// other NV encoding (CDP2/MCRR/PLD/SETEND and the rest of the ARMv6+
// unconditional extension space) has no lifting rule in this module, so
// it decodes as Undefined rather than being reinterpreted as whatever
// AL-conditioned shape happens to share its bit pattern.
func decodeUnconditional(word uint32) Instruction {
	b := base{cond: block.CondAL}
	if bits5(word, 27, 25) == 0b101 {
		// BLX(imm): cond 1111 101H imm24. H (bit24) contributes the
		// missing low bit spec.md §4.4 requires ("adds 2 to the target");
		// the instruction always switches to Thumb state, which the
		// translator applies via Exchange rather than Offset's sign bit.
		imm24 := int32(word & 0x00ffffff)
		imm24 = (imm24 << 8) >> 8 // sign extend 24 -> 32
		offset := imm24 * 4
		if bit(word, 24) {
			offset += 2
		}
		return BranchRelative{base: b, Link: true, Exchange: true, Offset: offset}
	}
	return Undefined{b}
}

func decodeCoprocessor(word uint32, b base) Instruction {
	if !bit(word, 4) {
		return Undefined{b} // CDP: coprocessor data processing, not modeled (spec.md scope: MRC/MCR only)
	}
	return CoprocessorRegisterTransfer{
		base:          b,
		ToCoprocessor: !bit(word, 20),
		Opc1:          uint8(bits5(word, 23, 21)),
		CRn:           uint8(bits5(word, 19, 16)),
		Rd:            uint8(bits5(word, 15, 12)),
		CoprocNum:     uint8(bits5(word, 11, 8)),
		Opc2:          uint8(bits5(word, 7, 5)),
		CRm:           uint8(word & 0xf),
	}
}
