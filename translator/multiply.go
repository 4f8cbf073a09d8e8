package translator

import (
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// liftMultiply implements MUL/MLA (spec.md §4.4): a 32-bit product, plus
// a 32-bit ADD of Rn for the MLA form.
func (tb *blockBuilder) liftMultiply(m decode.Multiply, addr uint32) liftOutcome {
	lhs := tb.readGPR(m.Rs, addr)
	rhs := tb.readGPR(m.Rm, addr)
	lo := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.MUL{ResLo: lo, Lhs: lhs, Rhs: rhs, Signed: false})

	result := ir.Ref(lo)
	if m.Accumulate {
		acc := tb.readGPR(m.Rn, addr)
		sum := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.AluBinary{Cls: ir.ClassADD, Res: sum, Lhs: ir.Ref(lo), Rhs: acc})
		result = ir.Ref(sum)
	}
	if m.SetFlags {
		tb.emitFlagUpdate(ir.FlagNZ)
	}
	tb.storeGPR(m.Rd, result)
	return liftContinue
}

// liftMultiplyLong implements UMULL/UMLAL/SMULL/SMLAL (spec.md §4.4): a
// 64-bit product via MUL(ResHi), then ADD64 for the accumulating forms.
func (tb *blockBuilder) liftMultiplyLong(m decode.MultiplyLong, addr uint32) liftOutcome {
	lhs := tb.readGPR(m.Rs, addr)
	rhs := tb.readGPR(m.Rm, addr)
	lo := tb.curB.Fresh(ir.U32, "")
	hi := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.MUL{ResLo: lo, ResHi: hi, Lhs: lhs, Rhs: rhs, Signed: m.Signed})

	resLo, resHi := lo, hi
	if m.Accumulate {
		accLo := tb.readGPR(m.RdLo, addr)
		accHi := tb.readGPR(m.RdHi, addr)
		sumLo := tb.curB.Fresh(ir.U32, "")
		sumHi := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.ADD64{
			ResLo: sumLo, ResHi: sumHi,
			LhsLo: ir.Ref(lo), LhsHi: ir.Ref(hi),
			RhsLo: accLo, RhsHi: accHi,
		})
		resLo, resHi = sumLo, sumHi
	}
	if m.SetFlags {
		tb.emitFlagUpdate(ir.FlagNZ)
	}
	tb.storeGPR(m.RdLo, ir.Ref(resLo))
	tb.storeGPR(m.RdHi, ir.Ref(resHi))
	return liftContinue
}

// liftCLZ implements CLZ (ARMv5): Rd = count of leading zero bits in Rm.
func (tb *blockBuilder) liftCLZ(c decode.CountLeadingZeros, addr uint32) liftOutcome {
	src := tb.readGPR(c.Rm, addr)
	res := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.CLZ{Res: res, Src: src})
	tb.storeGPR(c.Rd, ir.Ref(res))
	return liftContinue
}
