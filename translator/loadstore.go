package translator

import (
	"github.com/ironarm/armjit/decode"
	"github.com/ironarm/armjit/ir"
)

// liftSingleDataTransfer implements spec.md §4.4's "Load/store word/byte"
// rule: address = base ± offset, write-back stores the updated base,
// Rotate handles misaligned word reads, Signed/Half sign/zero-extend.
func (tb *blockBuilder) liftSingleDataTransfer(s decode.SingleDataTransfer, addr uint32) liftOutcome {
	if s.Translation {
		return liftUnimplemented
	}
	base := tb.readGPR(s.Rn, addr)
	offset, _ := tb.synthesizeOperand2(s.Offset, addr, false)

	var effective, writeBackAddr ir.AnyRef
	if s.PreIndex {
		effective = tb.addOffset(base, offset, s.Up)
		writeBackAddr = effective
	} else {
		effective = base
		writeBackAddr = tb.addOffset(base, offset, s.Up)
	}

	flags := ir.MemWord
	if s.Byte {
		flags = ir.MemByte
	} else {
		flags |= ir.MemRotate
	}

	if s.Load {
		res := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.MemoryRead{Res: res, Addr: effective, Flags: flags})
		if s.WriteBack {
			tb.storeGPR(s.Rn, writeBackAddr)
		}
		if s.Rd == 15 {
			tb.flushTo(ir.Ref(res))
			return liftBreakBasicBlock
		}
		tb.storeGPR(s.Rd, ir.Ref(res))
		return liftContinue
	}

	val := tb.readGPR(s.Rd, addr)
	tb.curB.Emit(ir.MemoryWrite{Addr: effective, Value: val, Flags: flags})
	if s.WriteBack {
		tb.storeGPR(s.Rn, writeBackAddr)
	}
	return liftContinue
}

// liftHalfwordSignedTransfer implements LDRH/STRH/LDRSB/LDRSH, including
// the ARMv4T misaligned-signed-halfword degrade-to-signed-byte rule
// (spec.md §4.4).
func (tb *blockBuilder) liftHalfwordSignedTransfer(h decode.HalfwordSignedTransfer, addr uint32) liftOutcome {
	base := tb.readGPR(h.Rn, addr)
	var offset ir.AnyRef
	if h.ImmOffset {
		offset = ir.RefC(ir.ConstU32(uint32(h.OffsetImm)))
	} else {
		offset = tb.readGPR(h.OffsetReg, addr)
	}

	effective := base
	var writeBackAddr ir.AnyRef
	if h.PreIndex {
		effective = tb.addOffset(base, offset, h.Up)
		writeBackAddr = effective
	} else {
		writeBackAddr = tb.addOffset(base, offset, h.Up)
	}

	var flags ir.MemFlags
	switch {
	case h.Half && h.Signed:
		flags = ir.MemHalf | ir.MemSigned | ir.MemARMv4T
	case h.Half:
		flags = ir.MemHalf
	case h.Signed:
		flags = ir.MemByte | ir.MemSigned
	default:
		flags = ir.MemByte
	}

	if h.Load {
		res := tb.curB.Fresh(ir.U32, "")
		tb.curB.Emit(ir.MemoryRead{Res: res, Addr: effective, Flags: flags})
		tb.storeGPR(h.Rd, ir.Ref(res))
	} else {
		val := tb.readGPR(h.Rd, addr)
		tb.curB.Emit(ir.MemoryWrite{Addr: effective, Value: val, Flags: flags})
	}

	if h.WriteBack {
		tb.storeGPR(h.Rn, writeBackAddr)
	}
	return liftContinue
}

func (tb *blockBuilder) addOffset(base, offset ir.AnyRef, up bool) ir.AnyRef {
	res := tb.curB.Fresh(ir.U32, "")
	cls := ir.ClassADD
	if !up {
		cls = ir.ClassSUB
	}
	tb.curB.Emit(ir.AluBinary{Cls: cls, Res: res, Lhs: base, Rhs: offset})
	return ir.Ref(res)
}

// liftBlockDataTransfer implements LDM/STM (spec.md §4.4): precompute the
// transfer base per the four addressing modes, walk the register list in
// ascending order, flush on a loaded R15, reload CPSR from SPSR on the
// ARMv5 '^' + LDM + R15 combination.
func (tb *blockBuilder) liftBlockDataTransfer(bd decode.BlockDataTransfer, addr uint32) liftOutcome {
	n := popcount16(bd.RegList)
	base := tb.readGPR(bd.Rn, addr)

	// Lowest transferred address, expressed relative to base, matching
	// the four addressing-mode combinations (IA/IB/DA/DB).
	var startOffset int32
	if !bd.Up {
		startOffset = -int32(n) * 4
		if bd.PreIndex {
			// DB: decrement before
		} else {
			startOffset += 4 // DA: decrement after
		}
	} else {
		if bd.PreIndex {
			startOffset = 4 // IB: increment before
		}
	}

	cur := tb.addConstOffset(base, startOffset)
	finalOffset := int32(n) * 4
	if !bd.Up {
		finalOffset = -finalOffset
	}

	loadedPC := false
	var pcVar *ir.Variable
	for reg := uint8(0); reg < 16; reg++ {
		if bd.RegList&(1<<reg) == 0 {
			continue
		}
		if bd.Load {
			res := tb.curB.Fresh(ir.U32, "")
			tb.curB.Emit(ir.MemoryRead{Res: res, Addr: cur, Flags: ir.MemWord})
			if reg == 15 {
				loadedPC = true
				pcVar = res
			} else {
				tb.storeGPR(reg, ir.Ref(res))
			}
		} else {
			val := tb.readGPR(reg, addr)
			tb.curB.Emit(ir.MemoryWrite{Addr: cur, Value: val, Flags: ir.MemWord})
		}
		cur = tb.addConstOffset(cur, 4)
	}

	if bd.WriteBack {
		newBase := tb.addConstOffset(base, finalOffset)
		tb.storeGPR(bd.Rn, newBase)
	}

	if loadedPC {
		if bd.UserMode {
			spsr := tb.curB.Fresh(ir.U32, "")
			tb.curB.Emit(ir.LoadSPSR{Res: spsr})
			tb.curB.Emit(ir.StoreCPSR{Src: ir.Ref(spsr)})
		}
		tb.flushExchangeTo(ir.Ref(pcVar))
		return liftBreakBasicBlock
	}
	return liftContinue
}

func (tb *blockBuilder) addConstOffset(base ir.AnyRef, off int32) ir.AnyRef {
	if off == 0 {
		return base
	}
	res := tb.curB.Fresh(ir.U32, "")
	cls := ir.ClassADD
	amt := off
	if off < 0 {
		cls = ir.ClassSUB
		amt = -off
	}
	tb.curB.Emit(ir.AluBinary{Cls: cls, Res: res, Lhs: base, Rhs: ir.RefC(ir.ConstU32(uint32(amt)))})
	return ir.Ref(res)
}

func popcount16(v uint16) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}
