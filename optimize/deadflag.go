package optimize

import "github.com/ironarm/armjit/ir"

// producedFlags is which host flag bits a flag-producing opcode sets,
// used by deadFlagElision to know when a later UpdateFlags no longer
// needs an earlier producer's bits (spec.md §4.5(e)).
func producedFlags(op ir.Op) ir.FlagMask {
	switch v := op.(type) {
	case ir.AluBinary:
		switch v.Cls {
		case ir.ClassADD, ir.ClassADC, ir.ClassSUB, ir.ClassSBC, ir.ClassRSB, ir.ClassRSC:
			return ir.FlagNZCV
		default: // AND, BIC, EOR, ORR: logical ops leave V unaffected
			return ir.FlagNZC
		}
	case ir.AluUnary: // MOV, MVN
		return ir.FlagNZC
	case ir.Shift:
		return ir.FlagC
	default:
		return 0
	}
}

// deadFlagElision implements spec.md §4.5(e): a backward walk over
// UpdateFlags/UpdateSticky that masks out flag bits already supplied by
// a later (already-visited) instance of the same kind, dropping the
// opcode entirely (repointing its result to its input) when nothing is
// left; and clears update_host_flags on a producer whose bits are not
// consumed before being overwritten by an earlier (further back)
// producer of the same bits.
func deadFlagElision(prog []ir.Op) []ir.Op {
	cpsrClaimed := ir.FlagMask(0) // bits already finally supplied to CPSR by a later UpdateFlags
	hostNeeded := ir.FlagMask(0) // host flag bits a not-yet-satisfied UpdateFlags still wants

	keep := make([]bool, len(prog))
	rewritten := make([]ir.Op, len(prog))
	var subs []subPair

	for i := len(prog) - 1; i >= 0; i-- {
		op := prog[i]
		switch v := op.(type) {
		case ir.UpdateFlags:
			eff := v.Mask &^ cpsrClaimed
			cpsrClaimed |= v.Mask
			hostNeeded |= eff
			if eff == 0 {
				keep[i] = false
				if v.Res != nil && v.Input.V != nil {
					subs = append(subs, subPair{old: v.Res, new: v.Input.V})
				}
				continue
			}
			keep[i] = true
			if eff == v.Mask {
				rewritten[i] = op
			} else {
				rewritten[i] = ir.UpdateFlags{Res: v.Res, Input: v.Input, Mask: eff}
			}
		case ir.UpdateSticky:
			eff := ir.FlagQ &^ cpsrClaimed
			cpsrClaimed |= ir.FlagQ
			hostNeeded |= eff
			if eff == 0 {
				keep[i] = false
				if v.Res != nil && v.Input.V != nil {
					subs = append(subs, subPair{old: v.Res, new: v.Input.V})
				}
				continue
			}
			keep[i] = true
			rewritten[i] = op
		default:
			keep[i] = true
			if produced := producedFlags(op); produced != 0 {
				if hostNeeded&produced == 0 {
					rewritten[i] = clearHostFlags(op)
				} else {
					rewritten[i] = op
				}
				hostNeeded &^= produced
			} else {
				rewritten[i] = op
			}
		}
	}

	out := make([]ir.Op, 0, len(prog))
	for i, op := range rewritten {
		if keep[i] {
			out = append(out, applySubs(op, subs))
		}
	}
	return out
}

func clearHostFlags(op ir.Op) ir.Op {
	switch v := op.(type) {
	case ir.AluBinary:
		v.UpdateHostFlags = false
		return v
	case ir.AluUnary:
		v.UpdateHostFlags = false
		return v
	case ir.Shift:
		v.UpdateHostFlags = false
		return v
	default:
		return op
	}
}
