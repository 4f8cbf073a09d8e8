package translator

import (
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// liftSaturatingAddSub implements QADD/QSUB/QDADD/QDSUB (ARMv5TE):
// Rd = Rm +/- Rn, saturating to the signed 32-bit range and sticking Q
// in CPSR on saturation (spec.md §3 "the full pipeline wiring, not just
// the opcode's existence"). The doubled (QDADD/QDSUB) forms first
// saturate Rn*2 as its own QAlu, so a double saturation sticks Q twice
// independently, matching the ARM ARM's two-step definition.
func (tb *blockBuilder) liftSaturatingAddSub(s decode.SaturatingAddSub, addr uint32) liftOutcome {
	lhs := tb.readGPR(s.Rm, addr)
	rhs := tb.readGPR(s.Rn, addr)

	if s.Doubled {
		doubled := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.QAlu{Cls: ir.ClassQADD, Res: doubled, Lhs: rhs, Rhs: rhs})
		tb.emitStickyUpdate()
		rhs = ir.Ref(doubled)
	}

	cls := ir.ClassQADD
	if s.Subtract {
		cls = ir.ClassQSUB
	}
	res := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.QAlu{Cls: cls, Res: res, Lhs: lhs, Rhs: rhs})
	tb.emitStickyUpdate()
	tb.storeGPR(s.Rd, ir.Ref(res))
	return liftContinue
}

// signedHalfword sign-extends the low or high 16-bit half of reg into a
// 32-bit value, matching original_source's ASR-only (high half) vs.
// LSL-then-ASR (low half) sign-extraction pattern.
func (tb *blockBuilder) signedHalfword(reg ir.AnyRef, high bool) ir.AnyRef {
	if high {
		res := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.Shift{Cls: ir.ClassASR, Res: res, Value: reg, Amount: ir.RefC(ir.ConstU32(16))})
		return ir.Ref(res)
	}
	shl := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.Shift{Cls: ir.ClassLSL, Res: shl, Value: reg, Amount: ir.RefC(ir.ConstU32(16))})
	res := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.Shift{Cls: ir.ClassASR, Res: res, Value: ir.Ref(shl), Amount: ir.RefC(ir.ConstU32(16))})
	return ir.Ref(res)
}

// liftSignedHalfwordMultiply implements the SMLAxy/SMULxy/SMLAWy/SMULWy
// family (ARMv5TE): a signed 16x16 multiply (or, for the wide Wy forms,
// a full 32-bit Rm times a sign-extended 16-bit Rs half, right-shifted
// 16), with an optional 32-bit accumulate that sticks Q in CPSR on
// overflow (spec.md §3). Grounded on original_source's
// frontend/translator/handle/signed_halfword_multiply.cpp for the
// sign-extraction and accumulate+sticky sequence; original_source's own
// ARM decode table never actually reaches that handler (it stubs the
// shape out as Undefined — see DESIGN.md), so the wide forms, which
// original_source's handler doesn't cover either, are lifted straight
// from the ARM ARM's (Rm * Rs<y>) >> 16 definition instead.
func (tb *blockBuilder) liftSignedHalfwordMultiply(m decode.SignedHalfwordMultiply, addr uint32) liftOutcome {
	rm := tb.readGPR(m.Rm, addr)
	rs := tb.readGPR(m.Rs, addr)

	var product *ir.Variable
	if m.WideForm {
		// Wy forms multiply the full 32-bit Rm by a sign-extended 16-bit
		// Rs half; unlike the narrow forms, Rm is never halved.
		rhs := tb.signedHalfword(rs, m.NHigh)
		lo := tb.curB.Fresh(ir.U32, "")
		hi := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.MUL{ResLo: lo, ResHi: hi, Lhs: rm, Rhs: rhs, Signed: true})
		// Bits 47:16 of the 64-bit product, reassembled into one 32-bit
		// word: the low 16 bits of hi shifted up, OR'd with the high 16
		// bits of lo shifted down.
		hiShifted := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.Shift{Cls: ir.ClassLSL, Res: hiShifted, Value: ir.Ref(hi), Amount: ir.RefC(ir.ConstU32(16))})
		loShifted := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.Shift{Cls: ir.ClassLSR, Res: loShifted, Value: ir.Ref(lo), Amount: ir.RefC(ir.ConstU32(16))})
		product = tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.AluBinary{Cls: ir.ClassORR, Res: product, Lhs: ir.Ref(hiShifted), Rhs: ir.Ref(loShifted)})
	} else {
		lhs := tb.signedHalfword(rm, m.MHigh)
		rhs := tb.signedHalfword(rs, m.NHigh)
		product = tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.MUL{ResLo: product, Lhs: lhs, Rhs: rhs, Signed: true})
	}

	if !m.Accumulate {
		tb.storeGPR(m.Rd, ir.Ref(product))
		return liftContinue
	}

	acc := tb.readGPR(m.Rn, addr)
	sum := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.AluBinary{Cls: ir.ClassADD, Res: sum, Lhs: ir.Ref(product), Rhs: acc, UpdateHostFlags: true})
	tb.emitStickyUpdate()
	tb.storeGPR(m.Rd, ir.Ref(sum))
	return liftContinue
}

// liftSingleDataSwap implements SWP/SWPB (spec.md §3): an atomic (this
// core is single-threaded, so simply sequential) read-then-write at the
// base register's address. The load is always emitted before the store
// and is never elided even when Rd is otherwise dead, since the store
// must observe the pre-store value. Grounded on original_source's
// single_data_swap.cpp, including its Rd==PC bailout.
func (tb *blockBuilder) liftSingleDataSwap(s decode.SingleDataSwap, addr uint32) liftOutcome {
	if s.Rd == 15 {
		return liftUnimplemented
	}

	address := tb.readGPR(s.Rn, addr)
	source := tb.readGPR(s.Rm, addr)

	loadFlags := ir.MemWord | ir.MemRotate
	storeFlags := ir.MemFlags(ir.MemWord)
	if s.Byte {
		loadFlags = ir.MemByte
		storeFlags = ir.MemByte
	}

	tmp := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.MemoryRead{Res: tmp, Addr: address, Flags: loadFlags})
	tb.curB.Emit(ir.MemoryWrite{Addr: address, Value: source, Flags: storeFlags})
	tb.storeGPR(s.Rd, ir.Ref(tmp))
	return liftContinue
}
