package translator

import (
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// liftBranchRelative implements B/BL and BLX(imm) (spec.md §4.4):
// target = PC + offset (PC here is the pipelined operand value); BL and
// BLX(imm) both store the real next instruction address into LR.
// BLX(imm) additionally always switches to Thumb state, unlike B/BL
// which never change mode.
func (tb *blockBuilder) liftBranchRelative(br decode.BranchRelative, addr uint32) liftOutcome {
	target := tb.pcOperand(addr) + uint32(br.Offset)
	if br.Link {
		tb.storeGPR(14, ir.RefC(ir.ConstU32(tb.nextInstructionAddr(addr))))
	}
	if br.Exchange {
		// Forcing bit 0 of the target drives FlushExchange's "fold bit 0
		// into CPSR.T" rule to land on Thumb unconditionally, the same
		// mechanism BX/BLX(reg) uses for a register target whose bit 0
		// is live data rather than always 1.
		tb.flushExchangeTo(ir.RefC(ir.ConstU32(target | 1)))
		tb.rememberStaticSuccessor(target, true)
		return liftBreakBasicBlock
	}
	tb.flushTo(ir.RefC(ir.ConstU32(target)))
	tb.rememberStaticSuccessor(target, tb.thumb)
	return liftBreakBasicBlock
}

// liftBranchExchange implements BX/BLX(reg) (spec.md §4.4): the target
// register's bit 0 selects ARM/Thumb mode via FlushExchange.
func (tb *blockBuilder) liftBranchExchange(bx decode.BranchExchange, addr uint32) liftOutcome {
	target := tb.readGPR(bx.Rm, addr)
	if bx.Link {
		tb.storeGPR(14, ir.RefC(ir.ConstU32(tb.nextInstructionAddr(addr))))
	}
	tb.flushExchangeTo(target)
	return liftBreakBasicBlock
}

// liftException implements SWI/undefined-instruction entry (spec.md
// §4.4): bank CPSR to SPSR_<new mode>, switch mode with IRQs masked, set
// LR_<new mode> to the return address, branch to the exception vector.
func (tb *blockBuilder) liftException(ex decode.Exception, addr uint32) liftOutcome {
	const (
		modeSupervisor = 0x13
		modeUndefined  = 0x1b
		vectorSWI      = 0x08
		vectorUndef    = 0x04
	)
	newMode := uint32(modeSupervisor)
	vector := uint32(vectorSWI)
	if ex.Undefined {
		newMode = modeUndefined
		vector = vectorUndef
	}

	cpsr := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.LoadCPSR{Res: cpsr})
	tb.curB.Emit(ir.StoreSPSR{Src: ir.Ref(cpsr)})

	retAddr := tb.nextInstructionAddr(addr)
	tb.storeGPR(14, ir.RefC(ir.ConstU32(retAddr)))

	const bitI = uint32(1) << 7
	// Mode field replacement: clear the low 5 bits then OR in newMode and
	// the I-bit (IRQs masked on exception entry).
	cleared := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.AluBinary{Cls: ir.ClassAND, Res: cleared, Lhs: ir.Ref(cpsr), Rhs: ir.RefC(ir.ConstU32(^uint32(0x1f)))})
	withMode := tb.curB.Fresh(ir.U32, "")
	tb.curB.Emit(ir.AluBinary{Cls: ir.ClassORR, Res: withMode, Lhs: ir.Ref(cleared), Rhs: ir.RefC(ir.ConstU32(newMode | bitI))})
	tb.curB.Emit(ir.StoreCPSR{Src: ir.Ref(withMode)})

	tb.flushTo(ir.RefC(ir.ConstU32(vector)))
	return liftBreakBasicBlock
}

func (tb *blockBuilder) rememberStaticSuccessor(target uint32, thumb bool) {
	tb.hasTarget = true
	tb.target = tb.blockKeyFor(target, thumb)
}
