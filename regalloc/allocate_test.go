package regalloc

import (
	"testing"

	"github.com/ironarm/armjit/ir"
)

func TestAllocateSimpleChainReusesRegisters(t *testing.T) {
	b := ir.NewBuilder()
	a := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: a, Reg: 0})
	c := b.Fresh(ir.U32, "")
	b.Emit(ir.LoadGPR{Res: c, Reg: 1})
	sum := b.Fresh(ir.U32, "")
	b.Emit(ir.AluBinary{Cls: ir.ClassADD, Res: sum, Lhs: ir.Ref(a), Rhs: ir.Ref(c)})
	b.Emit(ir.StoreGPR{Reg: 2, Src: ir.Ref(sum)})

	res, err := Allocate(b.Program())
	if err != nil {
		t.Fatalf("unexpected allocation failure: %v", err)
	}
	if len(res.PerOp) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(res.PerOp))
	}
	addAssign := res.PerOp[2]
	if addAssign.Write == nil || !addAssign.Write.Location.InRegister {
		t.Fatalf("expected ADD's result to land in a register: %+v", addAssign)
	}
}

func TestAllocateFailsDeterministicallyWhenExhausted(t *testing.T) {
	b := ir.NewBuilder()
	// Every load's result stays unread until a later fold, so every one
	// of them is simultaneously live by the time the loads are done —
	// enough of them exhausts both the register file and the spill area
	// before that point is even reached.
	total := NumScratchRegisters + DefaultSpillSlots + 2
	var live []*ir.Variable
	for i := 0; i < total; i++ {
		v := b.Fresh(ir.U32, "")
		b.Emit(ir.LoadGPR{Res: v, Reg: uint8(i % 16)})
		live = append(live, v)
	}
	for i, v := range live {
		b.Emit(ir.StoreGPR{Reg: uint8(i % 16), Src: ir.Ref(v)})
	}

	_, err := Allocate(b.Program())
	if err == nil {
		t.Fatalf("expected allocation to fail deterministically once registers and spill slots are exhausted")
	}
}
