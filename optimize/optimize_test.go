package optimize

import (
	"testing"

	"github.com/ironarm/armjit/ir"
)

// TestConstantPropagationEndToEnd mirrors spec.md §8 scenario 6:
// MOV R0,#5; MOV R1,#7; ADD R2,R0,R1 folds to at most three opcodes
// storing 5, 7, 12 with every intermediate LoadGPR removed and no ADD
// opcode surviving to allocation time.
func TestConstantPropagationEndToEnd(t *testing.T) {
	b := ir.NewBuilder()
	r0 := b.Fresh(ir.U32, "")
	b.Emit(ir.AluUnary{Cls: ir.ClassMOV, Res: r0, Src: ir.RefC(ir.ConstU32(5))})
	b.Emit(ir.StoreGPR{Reg: 0, Src: ir.Ref(r0)})

	r1 := b.Fresh(ir.U32, "")
	b.Emit(ir.AluUnary{Cls: ir.ClassMOV, Res: r1, Src: ir.RefC(ir.ConstU32(7))})
	b.Emit(ir.StoreGPR{Reg: 1, Src: ir.Ref(r1)})

	lhs := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: lhs, Reg: 0})
	rhs := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: rhs, Reg: 1})
	r2 := b.Fresh(ir.U32, "")
	b.Emit(ir.AluBinary{Cls: ir.ClassADD, Res: r2, Lhs: ir.Ref(lhs), Rhs: ir.Ref(rhs)})
	b.Emit(ir.StoreGPR{Reg: 2, Src: ir.Ref(r2)})

	out := MicroBlock(b.Program())

	for _, op := range out {
		if op.Class() == ir.ClassLoadGPR {
			t.Fatalf("expected no surviving LoadGPR, found one in %+v", out)
		}
		if op.Class() == ir.ClassADD {
			t.Fatalf("expected no surviving ADD opcode, found one in %+v", out)
		}
	}
	stores := map[uint8]uint32{}
	for _, op := range out {
		if s, ok := op.(ir.StoreGPR); ok {
			// walk the (already-folded) program to resolve the constant the
			// stored variable carries
			for _, o2 := range out {
				if mv, ok := o2.(ir.AluUnary); ok && mv.Res != nil && s.Src.IsVariable() && mv.Res.ID == s.Src.Variable().ID {
					stores[s.Reg] = mv.Src.Constant().Value
				}
			}
		}
	}
	want := map[uint8]uint32{0: 5, 1: 7, 2: 12}
	for reg, v := range want {
		if stores[reg] != v {
			t.Fatalf("R%d: want %d, got %d (stores=%v)", reg, v, stores[reg], stores)
		}
	}
}

func TestShiftByZeroIsIdentity(t *testing.T) {
	b := ir.NewBuilder()
	src := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: src, Reg: 0})
	res := b.Fresh(ir.U32, "")
	b.Emit(ir.Shift{Cls: ir.ClassLSL, Res: res, Value: ir.Ref(src), Amount: ir.RefC(ir.ConstU32(0))})
	b.Emit(ir.StoreGPR{Reg: 1, Src: ir.Ref(res)})

	out := MicroBlock(b.Program())
	for _, op := range out {
		if op.Class() == ir.ClassLSL {
			t.Fatalf("expected LSL #0 to be eliminated, found %+v in %+v", op, out)
		}
	}
}

func TestDeadStoreElision(t *testing.T) {
	b := ir.NewBuilder()
	v1 := b.Fresh(ir.U32, "")
	b.Emit(ir.AluUnary{Cls: ir.ClassMOV, Res: v1, Src: ir.RefC(ir.ConstU32(1))})
	b.Emit(ir.StoreGPR{Reg: 0, Src: ir.Ref(v1)})
	v2 := b.Fresh(ir.U32, "")
	b.Emit(ir.AluUnary{Cls: ir.ClassMOV, Res: v2, Src: ir.RefC(ir.ConstU32(2))})
	b.Emit(ir.StoreGPR{Reg: 0, Src: ir.Ref(v2)})

	out := MicroBlock(b.Program())
	count := 0
	for _, op := range out {
		if s, ok := op.(ir.StoreGPR); ok && s.Reg == 0 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the dead first store to R0 to be elided, got %d stores: %+v", count, out)
	}
}

func TestDeadFlagElisionDropsSupersededUpdate(t *testing.T) {
	b := ir.NewBuilder()
	cpsr0 := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadCPSR{Res: cpsr0})
	v1 := b.Fresh(ir.U32, "")
	b.Emit(ir.UpdateFlags{Res: v1, Input: ir.RefVar(cpsr0), Mask: ir.FlagNZCV})
	v2 := b.Fresh(ir.U32, "")
	b.Emit(ir.UpdateFlags{Res: v2, Input: ir.RefVar(v1), Mask: ir.FlagNZCV})
	b.Emit(ir.StoreCPSR{Src: ir.Ref(v2)})

	out := MicroBlock(b.Program())
	count := 0
	for _, op := range out {
		if op.Class() == ir.ClassUpdateFlags {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the fully-superseded first UpdateFlags to be dropped, got %d: %+v", count, out)
	}
}
