package optimize

import "github.com/ironarm/armjit/ir"

type subPair struct{ old, new *ir.Variable }

func applySubs(op ir.Op, subs []subPair) ir.Op {
	for _, p := range subs {
		if np, ok := ir.Repoint(op, p.old, p.new); ok {
			op = np
		}
	}
	return op
}

// contextLoadElision implements spec.md §4.5(b): a forward pass that
// removes a LoadGPR/LoadCPSR whose value is already known from the most
// recent Store to the same target, repointing downstream readers onto
// that value directly (or emitting a residual MOV when the stored value
// is a constant, or repointing would cross a data-type mismatch).
func contextLoadElision(prog []ir.Op) []ir.Op {
	gprTable := map[uint8]ir.AnyRef{}
	var cpsrVal ir.AnyRef
	haveCPSR := false
	var subs []subPair
	out := make([]ir.Op, 0, len(prog))

	for _, raw := range prog {
		op := applySubs(raw, subs)
		switch v := op.(type) {
		case ir.LoadGPR:
			val, ok := gprTable[v.Reg]
			if !ok {
				out = append(out, op)
				continue
			}
			if val.IsVariable() && val.Variable().Type == v.Res.Type {
				subs = append(subs, subPair{old: v.Res, new: val.Variable()})
				continue
			}
			out = append(out, ir.AluUnary{Cls: ir.ClassMOV, Res: v.Res, Src: val})
		case ir.LoadCPSR:
			if !haveCPSR {
				out = append(out, op)
				continue
			}
			if cpsrVal.IsVariable() && cpsrVal.Variable().Type == v.Res.Type {
				subs = append(subs, subPair{old: v.Res, new: cpsrVal.Variable()})
				continue
			}
			out = append(out, ir.AluUnary{Cls: ir.ClassMOV, Res: v.Res, Src: cpsrVal})
		case ir.StoreGPR:
			gprTable[v.Reg] = v.Src
			out = append(out, op)
		case ir.StoreCPSR:
			cpsrVal = v.Src
			haveCPSR = true
			out = append(out, op)
		default:
			out = append(out, op)
		}
	}
	return out
}

// contextStoreElision implements spec.md §4.5(c): a backward walk that
// deletes a StoreGPR/StoreCPSR when a later store (already seen, since
// we walk in reverse) targets the same GPR id or CPSR — a dead write
// that the final flush to guest state will never observe.
func contextStoreElision(prog []ir.Op) []ir.Op {
	seenGPR := map[uint8]bool{}
	seenCPSR := false
	keep := make([]bool, len(prog))
	for i := len(prog) - 1; i >= 0; i-- {
		switch v := prog[i].(type) {
		case ir.StoreGPR:
			if seenGPR[v.Reg] {
				keep[i] = false
				continue
			}
			seenGPR[v.Reg] = true
			keep[i] = true
		case ir.StoreCPSR:
			if seenCPSR {
				keep[i] = false
				continue
			}
			seenCPSR = true
			keep[i] = true
		default:
			keep[i] = true
		}
	}
	out := make([]ir.Op, 0, len(prog))
	for i, op := range prog {
		if keep[i] {
			out = append(out, op)
		}
	}
	return out
}
