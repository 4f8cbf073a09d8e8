package translator

import (
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// liftCoprocessor implements MRC/MCR (spec.md §4.4): after an MCR, the
// translator asks the coprocessor policy whether this write invalidates
// assumptions the block's fast-dispatch linking relies on.
func (tb *blockBuilder) liftCoprocessor(c decode.CoprocessorRegisterTransfer) liftOutcome {
	if c.ToCoprocessor {
		src := tb.readGPR(c.Rd, 0)
		tb.curB.Emit(ir.MCR{Coproc: c.CoprocNum, Opc1: c.Opc1, CRn: c.CRn, CRm: c.CRm, Opc2: c.Opc2, Src: src})
		if tb.coproc != nil && tb.coproc.ShouldBreakBasicBlock(c.CoprocNum, c.Opc1, c.CRn, c.CRm, c.Opc2) {
			tb.fastLinkOff = true
			return liftBreakMicroBlock
		}
		return liftContinue
	}
	res := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.MRC{Res: res, Coproc: c.CoprocNum, Opc1: c.Opc1, CRn: c.CRn, CRm: c.CRm, Opc2: c.Opc2})
	tb.storeGPR(c.Rd, ir.Ref(res))
	return liftContinue
}
