/*
 * armjit - IR data model: variables, constants, tagged operand references
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

// Package ir is the strongly-typed SSA intermediate representation that
// sits between the decoder/translator and the optimizer/allocator/emitter.
// Every value is modeled as a sum type (present/absent, variable/constant)
// per spec.md §9's "Optional arguments" design note; never as a sentinel
// pointer.
package ir

// DataType drives how a 32-bit storage word is interpreted, chiefly by
// MUL's signedness. All guest values are 32 bits wide regardless of type.
type DataType uint8

const (
	U32 DataType = iota
	S32
)

func (d DataType) String() string {
	if d == S32 {
		return "s32"
	}
	return "u32"
}

// VarID is a dense integer identifying a Variable uniquely within one
// basic block's IR (spec.md §3 "IR Variable").
type VarID uint32

// Variable is immutable once created: SSA means exactly one Opcode in a
// micro-block ever defines it (spec.md §3 invariant).
type Variable struct {
	ID    VarID
	Type  DataType
	Label string // optional debug label, never semantically meaningful
}

// NewVariable builds a Variable; callers obtain fresh, block-unique ids
// from a Builder (see builder.go), never by hand.
func NewVariable(id VarID, t DataType, label string) *Variable {
	return &Variable{ID: id, Type: t, Label: label}
}

// Constant is a 32-bit immediate carrying a data-type tag (spec.md §3).
type Constant struct {
	Value uint32
	Type  DataType
}

// ConstU32 builds an unsigned 32-bit constant.
func ConstU32(v uint32) Constant { return Constant{Value: v, Type: U32} }

// ConstS32 builds a signed 32-bit constant (stored as its bit pattern).
func ConstS32(v int32) Constant { return Constant{Value: uint32(v), Type: S32} }

// RefKind discriminates an AnyRef's payload.
type RefKind uint8

const (
	RefNull RefKind = iota
	RefVariable
	RefConstant
)

// AnyRef is the tagged argument sum type: Null | Variable | Constant
// (spec.md §3 "IR AnyRef / VarRef"). The zero value is RefNull.
type AnyRef struct {
	kind  RefKind
	v     *Variable
	c     Constant
}

// Null is the absent-operand AnyRef.
var Null = AnyRef{kind: RefNull}

// Ref wraps a Variable as an AnyRef.
func Ref(v *Variable) AnyRef { return AnyRef{kind: RefVariable, v: v} }

// RefC wraps a Constant as an AnyRef.
func RefC(c Constant) AnyRef { return AnyRef{kind: RefConstant, c: c} }

func (a AnyRef) Kind() RefKind   { return a.kind }
func (a AnyRef) IsNull() bool    { return a.kind == RefNull }
func (a AnyRef) IsVariable() bool { return a.kind == RefVariable }
func (a AnyRef) IsConstant() bool { return a.kind == RefConstant }

// Variable returns the referenced Variable; nil unless Kind()==RefVariable.
func (a AnyRef) Variable() *Variable { return a.v }

// Constant returns the referenced Constant; zero value unless
// Kind()==RefConstant.
func (a AnyRef) Constant() Constant { return a.c }

// Type reports the operand's data type. Panics on a Null ref: callers must
// check IsNull first, same contract as dereferencing a Variable pointer.
func (a AnyRef) Type() DataType {
	switch a.kind {
	case RefVariable:
		return a.v.Type
	case RefConstant:
		return a.c.Type
	default:
		panic("ir: Type() on a Null AnyRef")
	}
}

// readsVar reports whether this AnyRef is a reference to v.
func (a AnyRef) readsVar(v *Variable) bool {
	return a.kind == RefVariable && a.v.ID == v.ID
}

// repointed returns a's value with references to old rewritten to new; a
// itself if it doesn't reference old.
func (a AnyRef) repointed(old, new *Variable) AnyRef {
	if a.kind == RefVariable && a.v.ID == old.ID {
		return Ref(new)
	}
	return a
}

// VarRef is the Variable-only refinement of AnyRef, used by operands that
// the emitter and allocator require to be a register-resident value (e.g.
// a load/store's base address, a shift's destination) rather than
// permitting a folded-away constant.
type VarRef struct {
	V *Variable
}

// RefVar wraps a Variable as a VarRef.
func RefVar(v *Variable) VarRef { return VarRef{V: v} }

func (r VarRef) ID() VarID { return r.V.ID }

func (r VarRef) repointed(old, new *Variable) VarRef {
	if r.V != nil && r.V.ID == old.ID {
		return VarRef{V: new}
	}
	return r
}
