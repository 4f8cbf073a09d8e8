package ir

// Class is the stable discriminant every pass and the emitter switch on.
// It is also the safe-downcast tag spec.md §4.2 requires.
type Class uint8

const (
	ClassLoadGPR Class = iota
	ClassStoreGPR
	ClassLoadSPSR
	ClassStoreSPSR
	ClassLoadCPSR
	ClassStoreCPSR
	ClassClearCarry
	ClassSetCarry
	ClassUpdateFlags
	ClassUpdateSticky
	ClassLSL
	ClassLSR
	ClassASR
	ClassROR
	ClassAND
	ClassBIC
	ClassEOR
	ClassSUB
	ClassRSB
	ClassADD
	ClassADC
	ClassSBC
	ClassRSC
	ClassORR
	ClassMOV
	ClassMVN
	ClassCLZ
	ClassQADD
	ClassQSUB
	ClassMUL
	ClassADD64
	ClassMemoryRead
	ClassMemoryWrite
	ClassFlush
	ClassFlushExchange
	ClassMRC
	ClassMCR
	ClassNOP
)

var className = map[Class]string{
	ClassLoadGPR: "LoadGPR", ClassStoreGPR: "StoreGPR",
	ClassLoadSPSR: "LoadSPSR", ClassStoreSPSR: "StoreSPSR",
	ClassLoadCPSR: "LoadCPSR", ClassStoreCPSR: "StoreCPSR",
	ClassClearCarry: "ClearCarry", ClassSetCarry: "SetCarry",
	ClassUpdateFlags: "UpdateFlags", ClassUpdateSticky: "UpdateSticky",
	ClassLSL: "LSL", ClassLSR: "LSR", ClassASR: "ASR", ClassROR: "ROR",
	ClassAND: "AND", ClassBIC: "BIC", ClassEOR: "EOR", ClassSUB: "SUB",
	ClassRSB: "RSB", ClassADD: "ADD", ClassADC: "ADC", ClassSBC: "SBC",
	ClassRSC: "RSC", ClassORR: "ORR", ClassMOV: "MOV", ClassMVN: "MVN",
	ClassCLZ: "CLZ", ClassQADD: "QADD", ClassQSUB: "QSUB",
	ClassMUL: "MUL", ClassADD64: "ADD64",
	ClassMemoryRead: "MemoryRead", ClassMemoryWrite: "MemoryWrite",
	ClassFlush: "Flush", ClassFlushExchange: "FlushExchange",
	ClassMRC: "MRC", ClassMCR: "MCR", ClassNOP: "NOP",
}

func (c Class) String() string { return className[c] }

// FlagMask selects a subset of {N,Z,C,V,Q} for UpdateFlags/UpdateSticky and
// for dead-flag elision bookkeeping (spec.md §4.5(e)).
type FlagMask uint8

const (
	FlagN FlagMask = 1 << iota
	FlagZ
	FlagC
	FlagV
	FlagQ
)

const FlagNZCV = FlagN | FlagZ | FlagC | FlagV
const FlagNZC = FlagN | FlagZ | FlagC
const FlagNZ = FlagN | FlagZ

// MemFlags selects memory access width/signedness/rotation behavior
// (spec.md §3 "Memory: MemoryRead/Write with flag bits").
type MemFlags uint8

const (
	MemByte MemFlags = 1 << iota
	MemHalf
	MemWord
	MemSigned
	MemRotate
	MemARMv4T
)

// Op is the sealed interface every IR opcode implements. It is sealed by
// the unexported repointSelf method: only types in this package can
// satisfy it, which is what lets every pass switch on Class() exhaustively.
type Op interface {
	Class() Class
	// Result returns the variable this opcode defines, or nil if it
	// defines none (a pure side-effect or a dropped compare-class write).
	Result() *Variable
	// Reads reports whether this opcode consumes v as an operand.
	Reads(v *Variable) bool
	// Writes reports whether this opcode defines v.
	Writes(v *Variable) bool
	repointSelf(old, new *Variable) Op
}

// Repoint rewrites references to old into references to new across a
// single opcode. It only succeeds when the two variables share a data
// type (spec.md §4.2); callers must not call this across mismatched
// types and expect semantic preservation.
func Repoint(op Op, old, new *Variable) (Op, bool) {
	if old.Type != new.Type {
		return op, false
	}
	return op.repointSelf(old, new), true
}

// ---- State I/O ----

type LoadGPR struct {
	Res *Variable
	Reg uint8
}

func (o LoadGPR) Class() Class            { return ClassLoadGPR }
func (o LoadGPR) Result() *Variable       { return o.Res }
func (o LoadGPR) Reads(v *Variable) bool  { return false }
func (o LoadGPR) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o LoadGPR) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	return o
}

type StoreGPR struct {
	Reg uint8
	Src AnyRef
}

func (o StoreGPR) Class() Class      { return ClassStoreGPR }
func (o StoreGPR) Result() *Variable { return nil }
func (o StoreGPR) Reads(v *Variable) bool {
	return o.Src.readsVar(v)
}
func (o StoreGPR) Writes(v *Variable) bool { return false }
func (o StoreGPR) repointSelf(old, new *Variable) Op {
	o.Src = o.Src.repointed(old, new)
	return o
}

type LoadSPSR struct{ Res *Variable }

func (o LoadSPSR) Class() Class            { return ClassLoadSPSR }
func (o LoadSPSR) Result() *Variable       { return o.Res }
func (o LoadSPSR) Reads(v *Variable) bool  { return false }
func (o LoadSPSR) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o LoadSPSR) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	return o
}

type StoreSPSR struct{ Src AnyRef }

func (o StoreSPSR) Class() Class            { return ClassStoreSPSR }
func (o StoreSPSR) Result() *Variable       { return nil }
func (o StoreSPSR) Reads(v *Variable) bool  { return o.Src.readsVar(v) }
func (o StoreSPSR) Writes(v *Variable) bool { return false }
func (o StoreSPSR) repointSelf(old, new *Variable) Op {
	o.Src = o.Src.repointed(old, new)
	return o
}

type LoadCPSR struct{ Res *Variable }

func (o LoadCPSR) Class() Class            { return ClassLoadCPSR }
func (o LoadCPSR) Result() *Variable       { return o.Res }
func (o LoadCPSR) Reads(v *Variable) bool  { return false }
func (o LoadCPSR) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o LoadCPSR) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	return o
}

type StoreCPSR struct{ Src AnyRef }

func (o StoreCPSR) Class() Class            { return ClassStoreCPSR }
func (o StoreCPSR) Result() *Variable       { return nil }
func (o StoreCPSR) Reads(v *Variable) bool  { return o.Src.readsVar(v) }
func (o StoreCPSR) Writes(v *Variable) bool { return false }
func (o StoreCPSR) repointSelf(old, new *Variable) Op {
	o.Src = o.Src.repointed(old, new)
	return o
}

// ---- Flags ----

type ClearCarry struct{}

func (o ClearCarry) Class() Class            { return ClassClearCarry }
func (o ClearCarry) Result() *Variable       { return nil }
func (o ClearCarry) Reads(v *Variable) bool  { return false }
func (o ClearCarry) Writes(v *Variable) bool { return false }
func (o ClearCarry) repointSelf(old, new *Variable) Op { return o }

type SetCarry struct{}

func (o SetCarry) Class() Class            { return ClassSetCarry }
func (o SetCarry) Result() *Variable       { return nil }
func (o SetCarry) Reads(v *Variable) bool  { return false }
func (o SetCarry) Writes(v *Variable) bool { return false }
func (o SetCarry) repointSelf(old, new *Variable) Op { return o }

// UpdateFlags reads a CPSR value (Input), folds in whichever of Mask's
// bits the most recent host-flag-setting opcode produced, and defines a
// new CPSR value (Res). The translator chains
// LoadCPSR -> UpdateFlags -> StoreCPSR.
type UpdateFlags struct {
	Res   *Variable
	Input VarRef
	Mask  FlagMask
}

func (o UpdateFlags) Class() Class      { return ClassUpdateFlags }
func (o UpdateFlags) Result() *Variable { return o.Res }
func (o UpdateFlags) Reads(v *Variable) bool {
	return o.Input.V != nil && o.Input.V.ID == v.ID
}
func (o UpdateFlags) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o UpdateFlags) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	o.Input = o.Input.repointed(old, new)
	return o
}

// UpdateSticky ORs a 1 into Q when the preceding saturating opcode
// overflowed host-side.
type UpdateSticky struct {
	Res   *Variable
	Input VarRef
}

func (o UpdateSticky) Class() Class      { return ClassUpdateSticky }
func (o UpdateSticky) Result() *Variable { return o.Res }
func (o UpdateSticky) Reads(v *Variable) bool {
	return o.Input.V != nil && o.Input.V.ID == v.ID
}
func (o UpdateSticky) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o UpdateSticky) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	o.Input = o.Input.repointed(old, new)
	return o
}

// ---- Shifts ----

type Shift struct {
	Cls             Class // LSL, LSR, ASR, or ROR
	Res             *Variable
	Value           AnyRef
	Amount          AnyRef
	UpdateHostFlags bool // update host carry with the shifted-out bit
}

func (o Shift) Class() Class      { return o.Cls }
func (o Shift) Result() *Variable { return o.Res }
func (o Shift) Reads(v *Variable) bool {
	return o.Value.readsVar(v) || o.Amount.readsVar(v)
}
func (o Shift) Writes(v *Variable) bool { return o.Res != nil && o.Res.ID == v.ID }
func (o Shift) repointSelf(old, new *Variable) Op {
	if o.Res != nil && o.Res.ID == old.ID {
		o.Res = new
	}
	o.Value = o.Value.repointed(old, new)
	o.Amount = o.Amount.repointed(old, new)
	return o
}

// ---- ALU ----

// AluBinary covers AND, BIC, EOR, SUB, RSB, ADD, ADC, SBC, RSC, ORR. Res is
// nil for compare-class uses (CMP/CMN/TST/TEQ lift to an AluBinary whose
// result is dropped but whose UpdateHostFlags still fires, per spec.md
// §4.4 "drop result if destination is a compare class").
type AluBinary struct {
	Cls             Class
	Res             *Variable
	Lhs             AnyRef
	Rhs             AnyRef
	UpdateHostFlags bool
}

func (o AluBinary) Class() Class      { return o.Cls }
func (o AluBinary) Result() *Variable { return o.Res }
func (o AluBinary) Reads(v *Variable) bool {
	return o.Lhs.readsVar(v) || o.Rhs.readsVar(v)
}
func (o AluBinary) Writes(v *Variable) bool { return o.Res != nil && o.Res.ID == v.ID }
func (o AluBinary) repointSelf(old, new *Variable) Op {
	if o.Res != nil && o.Res.ID == old.ID {
		o.Res = new
	}
	o.Lhs = o.Lhs.repointed(old, new)
	o.Rhs = o.Rhs.repointed(old, new)
	return o
}

// AluUnary covers MOV and MVN.
type AluUnary struct {
	Cls             Class
	Res             *Variable
	Src             AnyRef
	UpdateHostFlags bool
}

func (o AluUnary) Class() Class            { return o.Cls }
func (o AluUnary) Result() *Variable       { return o.Res }
func (o AluUnary) Reads(v *Variable) bool  { return o.Src.readsVar(v) }
func (o AluUnary) Writes(v *Variable) bool { return o.Res != nil && o.Res.ID == v.ID }
func (o AluUnary) repointSelf(old, new *Variable) Op {
	if o.Res != nil && o.Res.ID == old.ID {
		o.Res = new
	}
	o.Src = o.Src.repointed(old, new)
	return o
}

type CLZ struct {
	Res *Variable
	Src AnyRef
}

func (o CLZ) Class() Class            { return ClassCLZ }
func (o CLZ) Result() *Variable       { return o.Res }
func (o CLZ) Reads(v *Variable) bool  { return o.Src.readsVar(v) }
func (o CLZ) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o CLZ) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	o.Src = o.Src.repointed(old, new)
	return o
}

// QAlu covers QADD and QSUB: saturating add/sub that additionally leaves
// the host overflow flag set on saturation, consumed by a following
// UpdateSticky.
type QAlu struct {
	Cls Class // ClassQADD or ClassQSUB
	Res *Variable
	Lhs AnyRef
	Rhs AnyRef
}

func (o QAlu) Class() Class      { return o.Cls }
func (o QAlu) Result() *Variable { return o.Res }
func (o QAlu) Reads(v *Variable) bool {
	return o.Lhs.readsVar(v) || o.Rhs.readsVar(v)
}
func (o QAlu) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o QAlu) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	o.Lhs = o.Lhs.repointed(old, new)
	o.Rhs = o.Rhs.repointed(old, new)
	return o
}

// ---- Multiply ----

// MUL produces a 32-bit result (ResHi nil) or a 64-bit product
// (ResHi non-nil), per spec.md §3 "optional 64-bit result_hi".
type MUL struct {
	ResLo  *Variable
	ResHi  *Variable
	Lhs    AnyRef
	Rhs    AnyRef
	Signed bool
}

func (o MUL) Class() Class      { return ClassMUL }
func (o MUL) Result() *Variable { return o.ResLo }
func (o MUL) Reads(v *Variable) bool {
	return o.Lhs.readsVar(v) || o.Rhs.readsVar(v)
}
func (o MUL) Writes(v *Variable) bool {
	return o.ResLo.ID == v.ID || (o.ResHi != nil && o.ResHi.ID == v.ID)
}
func (o MUL) repointSelf(old, new *Variable) Op {
	if o.ResLo.ID == old.ID {
		o.ResLo = new
	}
	if o.ResHi != nil && o.ResHi.ID == old.ID {
		o.ResHi = new
	}
	o.Lhs = o.Lhs.repointed(old, new)
	o.Rhs = o.Rhs.repointed(old, new)
	return o
}

// ADD64 accumulates a prior 64-bit product into a 64-bit running total,
// lifting the accumulating long multiply forms (UMLAL/SMLAL).
type ADD64 struct {
	ResLo, ResHi         *Variable
	LhsLo, LhsHi         AnyRef
	RhsLo, RhsHi         AnyRef
}

func (o ADD64) Class() Class      { return ClassADD64 }
func (o ADD64) Result() *Variable { return o.ResLo }
func (o ADD64) Reads(v *Variable) bool {
	return o.LhsLo.readsVar(v) || o.LhsHi.readsVar(v) ||
		o.RhsLo.readsVar(v) || o.RhsHi.readsVar(v)
}
func (o ADD64) Writes(v *Variable) bool {
	return o.ResLo.ID == v.ID || o.ResHi.ID == v.ID
}
func (o ADD64) repointSelf(old, new *Variable) Op {
	if o.ResLo.ID == old.ID {
		o.ResLo = new
	}
	if o.ResHi.ID == old.ID {
		o.ResHi = new
	}
	o.LhsLo = o.LhsLo.repointed(old, new)
	o.LhsHi = o.LhsHi.repointed(old, new)
	o.RhsLo = o.RhsLo.repointed(old, new)
	o.RhsHi = o.RhsHi.repointed(old, new)
	return o
}

// ---- Memory ----

type MemoryRead struct {
	Res   *Variable
	Addr  AnyRef
	Flags MemFlags
}

func (o MemoryRead) Class() Class            { return ClassMemoryRead }
func (o MemoryRead) Result() *Variable       { return o.Res }
func (o MemoryRead) Reads(v *Variable) bool  { return o.Addr.readsVar(v) }
func (o MemoryRead) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o MemoryRead) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	o.Addr = o.Addr.repointed(old, new)
	return o
}

type MemoryWrite struct {
	Addr  AnyRef
	Value AnyRef
	Flags MemFlags
}

func (o MemoryWrite) Class() Class      { return ClassMemoryWrite }
func (o MemoryWrite) Result() *Variable { return nil }
func (o MemoryWrite) Reads(v *Variable) bool {
	return o.Addr.readsVar(v) || o.Value.readsVar(v)
}
func (o MemoryWrite) Writes(v *Variable) bool { return false }
func (o MemoryWrite) repointSelf(old, new *Variable) Op {
	o.Addr = o.Addr.repointed(old, new)
	o.Value = o.Value.repointed(old, new)
	return o
}

// ---- Pipeline ----

type Flush struct{ Target AnyRef }

func (o Flush) Class() Class            { return ClassFlush }
func (o Flush) Result() *Variable       { return nil }
func (o Flush) Reads(v *Variable) bool  { return o.Target.readsVar(v) }
func (o Flush) Writes(v *Variable) bool { return false }
func (o Flush) repointSelf(old, new *Variable) Op {
	o.Target = o.Target.repointed(old, new)
	return o
}

type FlushExchange struct{ Target AnyRef }

func (o FlushExchange) Class() Class            { return ClassFlushExchange }
func (o FlushExchange) Result() *Variable       { return nil }
func (o FlushExchange) Reads(v *Variable) bool  { return o.Target.readsVar(v) }
func (o FlushExchange) Writes(v *Variable) bool { return false }
func (o FlushExchange) repointSelf(old, new *Variable) Op {
	o.Target = o.Target.repointed(old, new)
	return o
}

// ---- Coprocessor ----

type MRC struct {
	Res                        *Variable
	Coproc, Opc1, CRn, CRm, Opc2 uint8
}

func (o MRC) Class() Class            { return ClassMRC }
func (o MRC) Result() *Variable       { return o.Res }
func (o MRC) Reads(v *Variable) bool  { return false }
func (o MRC) Writes(v *Variable) bool { return o.Res.ID == v.ID }
func (o MRC) repointSelf(old, new *Variable) Op {
	if o.Res.ID == old.ID {
		o.Res = new
	}
	return o
}

type MCR struct {
	Coproc, Opc1, CRn, CRm, Opc2 uint8
	Src                          AnyRef
}

func (o MCR) Class() Class            { return ClassMCR }
func (o MCR) Result() *Variable       { return nil }
func (o MCR) Reads(v *Variable) bool  { return o.Src.readsVar(v) }
func (o MCR) Writes(v *Variable) bool { return false }
func (o MCR) repointSelf(old, new *Variable) Op {
	o.Src = o.Src.repointed(old, new)
	return o
}

// ---- NOP ----

type NOP struct{}

func (o NOP) Class() Class            { return ClassNOP }
func (o NOP) Result() *Variable       { return nil }
func (o NOP) Reads(v *Variable) bool  { return false }
func (o NOP) Writes(v *Variable) bool { return false }
func (o NOP) repointSelf(old, new *Variable) Op { return o }
