/*
 * armjit - Code emitter: per-opcode-class lowering
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
	"fmt"

	"github.com/ironarm/armjit/ir"
	"github.com/ironarm/armjit/regalloc"
)

// emitOp is the coroutine-less switch on opcode class spec.md §4.7
// calls for. Each case resolves its IR operands to Operands via the
// OpAssignment the allocator produced for this position, then asks asm
// to encode the native lowering.
func (e *Emitter) emitOp(op ir.Op, a regalloc.OpAssignment) error {
	switch v := op.(type) {

	case ir.LoadGPR:
		dst, _ := writeOperand(a)
		return e.append(e.asm.LoadContext(dst, GPRSlot(v.Reg)))

	case ir.StoreGPR:
		src := readOperand(v.Src, a)
		return e.append(e.asm.StoreContext(GPRSlot(v.Reg), src))

	case ir.LoadSPSR:
		dst, _ := writeOperand(a)
		return e.append(e.asm.LoadContext(dst, SPSRSlot()))

	case ir.StoreSPSR:
		src := readOperand(v.Src, a)
		return e.append(e.asm.StoreContext(SPSRSlot(), src))

	case ir.LoadCPSR:
		dst, _ := writeOperand(a)
		return e.append(e.asm.LoadContext(dst, CPSRSlot()))

	case ir.StoreCPSR:
		src := readOperand(v.Src, a)
		return e.append(e.asm.StoreContext(CPSRSlot(), src))

	case ir.ClearCarry:
		return e.append(e.asm.ClearCarry())

	case ir.SetCarry:
		return e.append(e.asm.SetCarry())

	case ir.UpdateFlags:
		dst, _ := writeOperand(a)
		input := readOperand(ir.Ref(v.Input.V), a)
		return e.append(e.asm.PermuteFlagsToCPSR(dst, input, v.Mask))

	case ir.UpdateSticky:
		dst, _ := writeOperand(a)
		input := readOperand(ir.Ref(v.Input.V), a)
		return e.append(e.asm.PermuteStickyToCPSR(dst, input))

	case ir.Shift:
		dst, _ := writeOperand(a)
		value := readOperand(v.Value, a)
		amount := readOperand(v.Amount, a)
		return e.append(e.asm.Shift(v.Cls, dst, value, amount, v.UpdateHostFlags))

	case ir.AluBinary:
		dst, hasDst := writeOperand(a)
		lhs := readOperand(v.Lhs, a)
		rhs := readOperand(v.Rhs, a)
		return e.append(e.asm.ALUBinary(v.Cls, dst, lhs, rhs, hasDst, v.UpdateHostFlags))

	case ir.AluUnary:
		dst, _ := writeOperand(a)
		src := readOperand(v.Src, a)
		return e.append(e.asm.ALUUnary(v.Cls, dst, src, v.UpdateHostFlags))

	case ir.CLZ:
		dst, _ := writeOperand(a)
		src := readOperand(v.Src, a)
		return e.append(e.asm.CLZ(dst, src))

	case ir.QAlu:
		dst, _ := writeOperand(a)
		lhs := readOperand(v.Lhs, a)
		rhs := readOperand(v.Rhs, a)
		return e.append(e.asm.QALU(v.Cls, dst, lhs, rhs))

	case ir.MUL:
		lo, _ := writeOperand(a)
		var hi Operand
		if v.ResHi != nil {
			if loc := locationOf(a, v.ResHi.ID); loc != nil {
				hi = operandOf(loc.Location)
			}
		}
		lhs := readOperand(v.Lhs, a)
		rhs := readOperand(v.Rhs, a)
		return e.append(e.asm.Multiply(lo, hi, lhs, rhs, v.Signed, v.ResHi != nil))

	case ir.ADD64:
		lo, _ := writeOperand(a)
		var hi Operand
		if loc := locationOf(a, v.ResHi.ID); loc != nil {
			hi = operandOf(loc.Location)
		}
		lhsLo := readOperand(v.LhsLo, a)
		lhsHi := readOperand(v.LhsHi, a)
		rhsLo := readOperand(v.RhsLo, a)
		rhsHi := readOperand(v.RhsHi, a)
		return e.append(e.asm.Add64(lo, hi, lhsLo, lhsHi, rhsLo, rhsHi))

	case ir.MemoryRead:
		dst, _ := writeOperand(a)
		addr := readOperand(v.Addr, a)
		return e.append(e.asm.MemoryFastPathRead(dst, addr, v.Flags, e.memCfg))

	case ir.MemoryWrite:
		addr := readOperand(v.Addr, a)
		value := readOperand(v.Value, a)
		return e.append(e.asm.MemoryFastPathWrite(addr, value, v.Flags, e.memCfg))

	case ir.Flush:
		target := readOperand(v.Target, a)
		return e.append(e.asm.FlushPC(target))

	case ir.FlushExchange:
		target := readOperand(v.Target, a)
		return e.append(e.asm.FlushExchangePC(target))

	case ir.MRC:
		dst, _ := writeOperand(a)
		return e.append(e.asm.CoprocessorRead(dst, v.Coproc, v.Opc1, v.CRn, v.CRm, v.Opc2))

	case ir.MCR:
		src := readOperand(v.Src, a)
		return e.append(e.asm.CoprocessorWrite(src, v.Coproc, v.Opc1, v.CRn, v.CRm, v.Opc2))

	case ir.NOP:
		return nil

	default:
		return fmt.Errorf("emit: unhandled opcode class %v", op.Class())
	}
}

func (e *Emitter) append(code []byte) error {
	_, err := e.buf.Append(code)
	return err
}
