/*
 * armjit - Micro-block optimizer: constant propagation, context load/store
 * elision, dead code and dead flag elision
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

// Package optimize runs the five ordered micro-block passes spec.md §4.5
// describes: constant propagation, forward context load/store elision,
// backward context store elision, forward dead code elision, and
// backward dead flag elision. Each pass takes a []ir.Op and returns a
// rewritten []ir.Op; Block runs all five in order over every micro-block
// of a block.Block.
package optimize

import (
	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/ir"
)

// maxFixpointRounds bounds how many times the five-pass sequence repeats
// on one micro-block. Constant propagation only sees values that context
// load elision has already repointed into scope (spec.md §4.5(a) folds
// a register's value, §4.5(b) is what makes a register's value visible
// as a single variable in the first place), so one application of
// a→b→c→d→e is not enough to reach scenario 6's fully-folded result in
// general; re-running the ordered sequence until a round removes no opcode gets
// there without reordering the passes spec.md §4.5 lists.
const maxFixpointRounds = 4

// Block optimizes every micro-block of b in place and marks it Optimized.
func Block(b *block.Block) {
	for i := range b.MicroBlocks {
		b.MicroBlocks[i].Program = MicroBlock(b.MicroBlocks[i].Program)
	}
	b.State = block.Optimized
}

// MicroBlock runs the five passes (spec.md §4.5(a)-(e), in order) on a
// single program, repeating the sequence until a round leaves the
// program length unchanged or maxFixpointRounds is reached. Exposed directly for callers
// (tests, REPL single-stepping) that don't have a full block.Block.
func MicroBlock(prog []ir.Op) []ir.Op {
	for round := 0; round < maxFixpointRounds; round++ {
		before := len(prog)
		prog = constantPropagation(prog)
		prog = contextLoadElision(prog)
		prog = contextStoreElision(prog)
		prog = deadCodeElision(prog)
		prog = deadFlagElision(prog)
		if len(prog) == before {
			break
		}
	}
	return prog
}
