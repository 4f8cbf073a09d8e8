package regalloc

import "github.com/ironarm/armjit/ir"

// Allocate runs linear-scan over prog (spec.md §4.6) and returns, for
// every program position, where each operand lives and where the
// opcode's result is defined. It never reorders or mutates prog.
func Allocate(prog []ir.Op) (Result, error) {
	vars := collectVars(prog)
	lastUse := computeLastUse(prog, vars)

	inReg := map[ir.VarID]int{}
	spilled := map[ir.VarID]int{}
	free := make([]int, NumScratchRegisters)
	for i := range free {
		free[i] = i
	}
	slotUsed := make([]bool, DefaultSpillSlots)

	popReg := func() (int, bool) {
		if len(free) == 0 {
			return 0, false
		}
		r := free[len(free)-1]
		free = free[:len(free)-1]
		return r, true
	}
	pushReg := func(r int) { free = append(free, r) }
	allocSlot := func() (int, bool) {
		for i, used := range slotUsed {
			if !used {
				slotUsed[i] = true
				return i, true
			}
		}
		return 0, false
	}

	// spillVictim evicts a register-resident variable not read by the
	// current opcode, freeing its register for the caller. Reports
	// failure when every in-register variable is needed by this opcode
	// (nothing safe to evict) or the spill area is full.
	spillVictim := func(reads []*ir.Variable, pos int) (*VarLocation, int, bool) {
		readSet := map[ir.VarID]bool{}
		for _, v := range reads {
			readSet[v.ID] = true
		}
		for _, v := range vars {
			r, ok := inReg[v.ID]
			if !ok || readSet[v.ID] {
				continue
			}
			slot, ok := allocSlot()
			if !ok {
				return nil, 0, false
			}
			delete(inReg, v.ID)
			spilled[v.ID] = slot
			loc := VarLocation{Var: v.ID, Location: Location{SpillSlot: slot}}
			return &loc, r, true
		}
		return nil, 0, false
	}

	assignments := make([]OpAssignment, len(prog))

	for i, op := range prog {
		for _, v := range vars {
			if lastUse[v.ID] < i {
				if r, ok := inReg[v.ID]; ok {
					pushReg(r)
					delete(inReg, v.ID)
				}
			}
		}

		var assign OpAssignment
		var reads []*ir.Variable
		for _, v := range vars {
			if op.Reads(v) {
				reads = append(reads, v)
			}
		}

		for _, v := range reads {
			if r, ok := inReg[v.ID]; ok {
				assign.Reads = append(assign.Reads, VarLocation{Var: v.ID, Location: Location{InRegister: true, Register: r}})
				continue
			}
			r, ok := popReg()
			if !ok {
				victim, freedReg, ok := spillVictim(reads, i)
				if !ok {
					return Result{}, &ErrOutOfResources{Position: i}
				}
				assign.SpillStore = victim
				r = freedReg
			}
			if _, wasSpilled := spilled[v.ID]; wasSpilled {
				assign.SpillLoads = append(assign.SpillLoads, v.ID)
				delete(spilled, v.ID)
			}
			inReg[v.ID] = r
			assign.Reads = append(assign.Reads, VarLocation{Var: v.ID, Location: Location{InRegister: true, Register: r}})
		}

		if res := op.Result(); res != nil {
			reused := false
			for _, v := range reads {
				if lastUse[v.ID] == i {
					if r, ok := inReg[v.ID]; ok {
						inReg[res.ID] = r
						assign.Write = &VarLocation{Var: res.ID, Location: Location{InRegister: true, Register: r}}
						assign.ReuseWrite = true
						reused = true
						break
					}
				}
			}
			if !reused {
				r, ok := popReg()
				if !ok {
					victim, freedReg, ok2 := spillVictim(reads, i)
					if !ok2 {
						return Result{}, &ErrOutOfResources{Position: i}
					}
					assign.SpillStore = victim
					r = freedReg
				}
				inReg[res.ID] = r
				assign.Write = &VarLocation{Var: res.ID, Location: Location{InRegister: true, Register: r}}
			}
		}

		assignments[i] = assign
	}

	return Result{PerOp: assignments}, nil
}

func collectVars(prog []ir.Op) []*ir.Variable {
	seen := map[ir.VarID]bool{}
	var vars []*ir.Variable
	for _, op := range prog {
		if res := op.Result(); res != nil && !seen[res.ID] {
			seen[res.ID] = true
			vars = append(vars, res)
		}
	}
	return vars
}

// computeLastUse finds each variable's last-use index (spec.md §4.6
// "Setup"), the largest position at which it is read or written. Uses
// ir.Op's Reads/Writes directly rather than a type switch per opcode
// shape: the allocator only needs to know "does this position touch
// this variable," which is exactly what the sealed interface exposes.
func computeLastUse(prog []ir.Op, vars []*ir.Variable) map[ir.VarID]int {
	last := make(map[ir.VarID]int, len(vars))
	for _, v := range vars {
		last[v.ID] = -1
	}
	for i, op := range prog {
		for _, v := range vars {
			if op.Reads(v) || op.Writes(v) {
				last[v.ID] = i
			}
		}
	}
	return last
}
