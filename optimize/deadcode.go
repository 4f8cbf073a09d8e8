package optimize

import "github.com/ironarm/armjit/ir"

// deadCodeElision implements spec.md §4.5(d): identity simplifications
// first (shift-by-zero, ADD #0 without flags, redundant MOV var,var),
// then a liveness pass dropping any opcode whose result has no
// downstream reader and no flag side effect.
func deadCodeElision(prog []ir.Op) []ir.Op {
	return pruneDead(identitySimplify(prog))
}

func identitySimplify(prog []ir.Op) []ir.Op {
	var subs []subPair
	out := make([]ir.Op, 0, len(prog))

	for _, raw := range prog {
		op := applySubs(raw, subs)
		switch v := op.(type) {
		case ir.Shift:
			if (v.Cls == ir.ClassLSL || v.Cls == ir.ClassLSR || v.Cls == ir.ClassASR) &&
				v.Amount.IsConstant() && v.Amount.Constant().Value&0xff == 0 && !v.UpdateHostFlags {
				if v.Res != nil && v.Value.IsVariable() && v.Value.Variable().Type == v.Res.Type {
					subs = append(subs, subPair{old: v.Res, new: v.Value.Variable()})
					continue
				}
			}
		case ir.AluBinary:
			if v.Cls == ir.ClassADD && !v.UpdateHostFlags && v.Rhs.IsConstant() && v.Rhs.Constant().Value == 0 {
				if v.Res != nil && v.Lhs.IsVariable() && v.Lhs.Variable().Type == v.Res.Type {
					subs = append(subs, subPair{old: v.Res, new: v.Lhs.Variable()})
					continue
				}
			}
		case ir.AluUnary:
			if v.Cls == ir.ClassMOV && !v.UpdateHostFlags && v.Src.IsVariable() && v.Res != nil &&
				v.Src.Variable().ID == v.Res.ID {
				continue // MOV var, var: already an identity, drop outright
			}
		}
		out = append(out, op)
	}
	return out
}

func hasFlagSideEffect(op ir.Op) bool {
	switch v := op.(type) {
	case ir.AluBinary:
		return v.UpdateHostFlags
	case ir.AluUnary:
		return v.UpdateHostFlags
	case ir.Shift:
		return v.UpdateHostFlags
	default:
		return false
	}
}

// hasSideEffect reports whether op must be kept even with an unused (or
// absent) result: state/memory writes, pipeline control, coprocessor
// writes, and explicit flag-carry opcodes are never dead by definition.
func hasSideEffect(op ir.Op) bool {
	switch op.(type) {
	case ir.StoreGPR, ir.StoreSPSR, ir.StoreCPSR, ir.MemoryWrite,
		ir.Flush, ir.FlushExchange, ir.MCR, ir.ClearCarry, ir.SetCarry:
		return true
	default:
		return false
	}
}

func pruneDead(prog []ir.Op) []ir.Op {
	used := make(map[ir.VarID]bool)
	keep := make([]bool, len(prog))

	for i := len(prog) - 1; i >= 0; i-- {
		op := prog[i]
		res := op.Result()
		if res != nil && !used[res.ID] && !hasFlagSideEffect(op) && !hasSideEffect(op) {
			keep[i] = false
			continue
		}
		keep[i] = true
		markReads(op, used)
	}

	out := make([]ir.Op, 0, len(prog))
	for i, op := range prog {
		if keep[i] {
			out = append(out, op)
		}
	}
	return out
}

// markReads records every variable op reads into used. There is no
// generic "list all operand variables" accessor on ir.Op, so this walks
// the small set of concrete opcode shapes that can appear in a
// translated micro-block.
func markReads(op ir.Op, used map[ir.VarID]bool) {
	mark := func(ref ir.AnyRef) {
		if ref.IsVariable() {
			used[ref.Variable().ID] = true
		}
	}
	markVar := func(r ir.VarRef) {
		if r.V != nil {
			used[r.V.ID] = true
		}
	}
	switch v := op.(type) {
	case ir.StoreGPR:
		mark(v.Src)
	case ir.StoreSPSR:
		mark(v.Src)
	case ir.StoreCPSR:
		mark(v.Src)
	case ir.UpdateFlags:
		markVar(v.Input)
	case ir.UpdateSticky:
		markVar(v.Input)
	case ir.Shift:
		mark(v.Value)
		mark(v.Amount)
	case ir.AluBinary:
		mark(v.Lhs)
		mark(v.Rhs)
	case ir.AluUnary:
		mark(v.Src)
	case ir.CLZ:
		mark(v.Src)
	case ir.QAlu:
		mark(v.Lhs)
		mark(v.Rhs)
	case ir.MUL:
		mark(v.Lhs)
		mark(v.Rhs)
	case ir.ADD64:
		mark(v.LhsLo)
		mark(v.LhsHi)
		mark(v.RhsLo)
		mark(v.RhsHi)
	case ir.MemoryRead:
		mark(v.Addr)
	case ir.MemoryWrite:
		mark(v.Addr)
		mark(v.Value)
	case ir.Flush:
		mark(v.Target)
	case ir.FlushExchange:
		mark(v.Target)
	case ir.MCR:
		mark(v.Src)
	}
}
