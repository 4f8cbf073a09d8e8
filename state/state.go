/*
 * armjit - Guest register state: banked GPRs, CPSR/SPSR, byte-offset layout
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

// Package state defines the guest CPU register file that emitted code
// addresses directly through constant byte offsets from a state base
// pointer. The layout is frozen: reordering fields changes every offset
// the emitter has baked into compiled blocks.
package state

// Mode is a processor mode. Values match the CPSR mode[4:0] field so a
// decoded CPSR can be masked and compared directly against these constants.
type Mode uint8

const (
	User       Mode = 0x10
	FIQ        Mode = 0x11
	IRQ        Mode = 0x12
	Supervisor Mode = 0x13
	Abort      Mode = 0x17
	Undefined  Mode = 0x1b
	System     Mode = 0x1f
)

// modeIndex maps a Mode to a dense 0..5 slot for banked-register tables.
// User and System share R13/R14 storage (index 0) per spec.md §3.
var modeIndex = map[Mode]int{
	User:       0,
	FIQ:        1,
	IRQ:        2,
	Supervisor: 3,
	Abort:      4,
	Undefined:  5,
	System:     0,
}

const numBankedModes = 6 // FIQ, IRQ, Svc, Abort, Und, {User,System}

// CPSR bit positions. Matches native host ALU flag placement used by the
// emitter's bit-permutation step (spec.md §4.7 "Flag propagation").
const (
	BitN = 31
	BitZ = 30
	BitC = 29
	BitV = 28
	BitQ = 27
	BitI = 7
	BitF = 6
	BitT = 5
)

// State is the frozen guest register block. Every field here has a stable
// byte offset computed once in init() and published through Offset*.
type State struct {
	// Common region: shared across all modes.
	R [16]uint32 // R0-R15; R8-R12 here hold the "all other modes" bank, R13/R14 are overwritten on mode switch from the banked copies below

	// FIQ-only bank for R8-R12 (spec.md §3: "R8-R12 are banked between FIQ and all-other-modes").
	R8_12FIQ [5]uint32

	// Per-mode R13 (SP) and R14 (LR) banks, indexed by modeIndex. User and
	// System share index 0.
	R13Bank [numBankedModes]uint32
	R14Bank [numBankedModes]uint32

	CPSR uint32

	// SPSR exists for every mode except User and System; stored densely by
	// modeIndex, slot 0 (User/System) is unused but kept to keep the offset
	// table O(1) without a branch.
	SPSRBank [numBankedModes]uint32

	CurMode Mode
}

// field offsets, computed once so the emitter can bake them into native
// load/store instructions as constant displacements from a state pointer.
var (
	offR        uintptr
	offR8_12FIQ uintptr
	offR13Bank  uintptr
	offR14Bank  uintptr
	offCPSR     uintptr
	offSPSR     uintptr
	offCurMode  uintptr
)

func init() {
	var s State
	base := offsetOf(&s)
	offR = offsetOf(&s.R) - base
	offR8_12FIQ = offsetOf(&s.R8_12FIQ) - base
	offR13Bank = offsetOf(&s.R13Bank) - base
	offR14Bank = offsetOf(&s.R14Bank) - base
	offCPSR = offsetOf(&s.CPSR) - base
	offSPSR = offsetOf(&s.SPSRBank) - base
	offCurMode = offsetOf(&s.CurMode) - base
}

// New returns a state block with CPSR in User mode, T=0, all flags clear.
func New() *State {
	s := &State{CurMode: User}
	s.CPSR = uint32(User)
	return s
}

// GPROffset returns the byte offset of register reg (0-15) as banked for
// mode. This is what the emitter bakes into fast-path load/store code.
func GPROffset(mode Mode, reg uint8) uintptr {
	switch {
	case reg <= 7 || reg == 15:
		return offR + uintptr(reg)*4
	case reg >= 8 && reg <= 12:
		if mode == FIQ {
			return offR8_12FIQ + uintptr(reg-8)*4
		}
		return offR + uintptr(reg)*4
	case reg == 13:
		return offR13Bank + uintptr(modeIndex[mode])*4
	case reg == 14:
		return offR14Bank + uintptr(modeIndex[mode])*4
	default:
		panic("state: register out of range")
	}
}

// CPSROffset returns the byte offset of CPSR.
func CPSROffset() uintptr { return offCPSR }

// SPSROffset returns the byte offset of SPSR for mode. Callers must not
// invoke this for User or System mode (no SPSR exists there); the
// translator enforces this at lift time (spec.md §3).
func SPSROffset(mode Mode) uintptr {
	return offSPSR + uintptr(modeIndex[mode])*4
}

// HasSPSR reports whether mode banks an SPSR.
func HasSPSR(mode Mode) bool {
	return mode != User && mode != System
}

// GPR reads register reg as banked for the state's current mode.
func (s *State) GPR(reg uint8) uint32 {
	return *(*uint32)(addByteOffset(s, GPROffset(s.CurMode, reg)))
}

// SetGPR writes register reg as banked for the state's current mode.
func (s *State) SetGPR(reg uint8, v uint32) {
	*(*uint32)(addByteOffset(s, GPROffset(s.CurMode, reg))) = v
}

// Flag reads one CPSR condition bit.
func (s *State) Flag(bit uint) bool {
	return s.CPSR&(1<<bit) != 0
}

// SetFlag writes one CPSR condition bit.
func (s *State) SetFlag(bit uint, v bool) {
	if v {
		s.CPSR |= 1 << bit
	} else {
		s.CPSR &^= 1 << bit
	}
}

// Thumb reports whether the T bit is set.
func (s *State) Thumb() bool { return s.Flag(BitT) }

// SPSR reads the saved PSR for the state's current mode. Panics if the
// current mode has no SPSR bank (programmer error: translator must not
// emit LoadSPSR for User/System).
func (s *State) SPSR() uint32 {
	if !HasSPSR(s.CurMode) {
		panic("state: no SPSR in User/System mode")
	}
	return s.SPSRBank[modeIndex[s.CurMode]]
}

// SetSPSR writes the saved PSR for the state's current mode.
func (s *State) SetSPSR(v uint32) {
	if !HasSPSR(s.CurMode) {
		panic("state: no SPSR in User/System mode")
	}
	s.SPSRBank[modeIndex[s.CurMode]] = v
}

// BankSwitch changes CurMode, which changes which byte offset GPR/SPSR
// resolve to on the next access. It performs no copying: the banked
// storage already held the other mode's values at rest.
func (s *State) BankSwitch(newMode Mode) {
	s.CurMode = newMode
}
