/*
 * armjit - Console command implementations.
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

package console

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ironarm/armjit/jitcpu"
)

func parseHex32(word string) (uint32, error) {
	if word == "" {
		return 0, errors.New("expected a hex value")
	}
	v, err := strconv.ParseUint(word, 16, 32)
	if err != nil {
		return 0, errors.New("not a hex value: " + word)
	}
	return uint32(v), nil
}

func parseInt(word string, def int) (int, error) {
	if word == "" {
		return def, nil
	}
	v, err := strconv.Atoi(word)
	if err != nil {
		return 0, errors.New("not a number: " + word)
	}
	return v, nil
}

// examine <addr> prints the data-bus word at addr.
func examine(l *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	addr, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	value := cpu.Memory().ReadWord(addr, jitcpu.BusData)
	fmt.Printf("%08x: %08x\n", addr, value)
	return false, nil
}

// deposit <addr> <value> writes value to the data bus at addr.
func deposit(l *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	addr, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	value, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	cpu.Memory().WriteWord(addr, value, jitcpu.BusData)
	return false, nil
}

// step runs exactly one guest instruction's worth of cycle budget.
func step(_ *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	consumed, err := cpu.Run(1)
	if err != nil {
		return false, err
	}
	fmt.Printf("stepped, %d cycles consumed, pc=%08x\n", consumed, cpu.PC())
	return false, nil
}

// run [cycles] executes until the cycle budget is met; cycles defaults
// to a large budget so "run" alone behaves like free-run. With active
// breakpoints, it single-steps instead so it can stop as soon as PC
// lands on one.
func run(l *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	budget, err := parseInt(l.getWord(), 1<<30)
	if err != nil {
		return false, err
	}

	if len(breakpoints) == 0 {
		consumed, err := cpu.Run(budget)
		if err != nil {
			return false, err
		}
		fmt.Printf("ran %d cycles, pc=%08x\n", consumed, cpu.PC())
		return false, nil
	}

	total := 0
	for total < budget {
		consumed, err := cpu.Run(1)
		if err != nil {
			return false, err
		}
		total += consumed
		if breakpoints[cpu.PC()] {
			fmt.Printf("breakpoint hit at %08x, %d cycles consumed\n", cpu.PC(), total)
			return false, nil
		}
	}
	fmt.Printf("ran %d cycles, pc=%08x\n", total, cpu.PC())
	return false, nil
}

// reset restores the register file to its power-on state.
func reset(_ *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	cpu.Reset()
	fmt.Println("reset")
	return false, nil
}

// flush <lo> <hi> evicts cached blocks whose entry address falls in
// [lo, hi) — for testing invalidation after a simulated code write.
func flush(l *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	lo, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	hi, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	cpu.Flush(lo, hi)
	return false, nil
}

// dump regs|cache|block <addr> reports register-file, dispatcher, or
// single cached-block diagnostics.
func dump(l *cmdLine, cpu *jitcpu.CPU) (bool, error) {
	switch word := l.getWord(); word {
	case "cache":
		fmt.Printf("cached blocks: %d\n", cpu.CachedBlockCount())
	case "regs", "":
		fmt.Printf("pc=%08x mode=%02x thumb=%v\n", cpu.PC(), cpu.Mode(), cpu.ThumbMode())
		for r := uint8(0); r < 16; r++ {
			fmt.Printf("r%-2d=%08x ", r, cpu.State().GPR(r))
			if r%4 == 3 {
				fmt.Println()
			}
		}
	case "block":
		addr, err := parseHex32(l.getWord())
		if err != nil {
			return false, err
		}
		b := cpu.LookupBlock(addr, cpu.Mode(), cpu.ThumbMode())
		if b == nil {
			return false, errors.New("dump block: not cached")
		}
		fmt.Printf("entry=%08x length=%d state=%s microblocks=%d linked-from=%d\n",
			addr, b.Length, b.State, len(b.MicroBlocks), len(b.LinkingBlocks))
	default:
		return false, errors.New("dump: expected regs, cache, or block <addr>")
	}
	return false, nil
}

// breakpoints is the set of guest addresses "run" single-steps up to
// instead of free-running. The dispatcher's Run contract (spec.md §6)
// is a pure cycle-budget loop with no external breakpoint hook, so the
// console implements breaking by stepping one cycle at a time and
// checking PC itself rather than threading a breakpoint set through
// the dispatcher.
var breakpoints = map[uint32]bool{}

// breakAt <addr> toggles a breakpoint at addr; called twice on the same
// address removes it.
func breakAt(l *cmdLine, _ *jitcpu.CPU) (bool, error) {
	addr, err := parseHex32(l.getWord())
	if err != nil {
		return false, err
	}
	if breakpoints[addr] {
		delete(breakpoints, addr)
		fmt.Printf("breakpoint cleared at %08x\n", addr)
	} else {
		breakpoints[addr] = true
		fmt.Printf("breakpoint set at %08x\n", addr)
	}
	return false, nil
}

// quit ends the console loop.
func quit(_ *cmdLine, _ *jitcpu.CPU) (bool, error) {
	return true, nil
}
