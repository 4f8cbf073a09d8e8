/*
 * armjit - Dispatcher: compile-or-lookup, run, and cycle-budget accounting
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

// Package dispatcher drives the single-threaded, cooperative run loop
// (spec.md §5, §6 "Run contract"): for each iteration it reads the
// guest's T-flag, builds a block.Key, looks the block up in the cache
// or runs the full Translate→Optimize→Allocate→Emit pipeline to build
// one, then "enters" it — tracked here as cycle-budget bookkeeping,
// since this package ships no concrete Assembler to actually jump into
// native code (see DESIGN.md's dispatcher entry).
package dispatcher

import (
	"errors"
	"log/slog"

	"github.com/ironarm/armjit/block"
	"github.com/ironarm/armjit/blockcache"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/optimize"
	"github.com/ironarm/armjit/regalloc"
	"github.com/ironarm/armjit/translator"
)

// GuestState is the minimal slice of processor state the dispatcher's
// run loop reads directly; everything else is the emitted code's
// concern via StatePointer.
type GuestState interface {
	PC() uint32
	Mode() uint8
	ThumbMode() bool
}

// Interpreter provides the one-instruction fallback the dispatcher uses
// when translation hits an unimplemented encoding (spec.md §4.7 failure
// semantics table, "Unimplemented encoding"): "the dispatcher may
// interpret exactly one instruction then resume."
type Interpreter interface {
	// StepOne interprets exactly one guest instruction at addr and
	// reports the number of cycles it consumed.
	StepOne(addr uint32) (cyclesConsumed int, err error)
}

// ErrInvariantViolation reports a class-(3) fatal compiler failure
// (spec.md §7): out of registers/spill slots, or any other internal
// invariant violation. Policy: abort compiling this block, surface the
// error, and never cache it.
type ErrInvariantViolation struct {
	Key   block.Key
	Cause error
}

func (e *ErrInvariantViolation) Error() string {
	return "dispatcher: compiler invariant violation for " + keyString(e.Key) + ": " + e.Cause.Error()
}
func (e *ErrInvariantViolation) Unwrap() error { return e.Cause }

// ErrCodeBufferExhaustedTwice reports that the code buffer ran out of
// room even after one reset-and-retry (spec.md §4.7, "a second failure
// is fatal").
var ErrCodeBufferExhaustedTwice = errors.New("dispatcher: code buffer exhausted twice for the same block")

func keyString(k block.Key) string {
	return "0x" + itohex(uint64(k))
}

func itohex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Dispatcher owns the code buffer, block cache, and compile pipeline
// (spec.md §5's "shared mutable resources" owned exclusively by the
// dispatcher). It is not safe for concurrent use — the guest model is
// single-threaded and cooperative.
type Dispatcher struct {
	cache    *blockcache.Cache
	buf      *emit.Buffer
	asm      emit.Assembler
	memCfg   emit.FastPathConfig
	fetch    translator.Fetcher
	coproc   translator.CoprocessorPolicy
	interp   Interpreter
	log      *slog.Logger
	thunkOff int
}

// Config bundles a Dispatcher's fixed dependencies at construction.
type Config struct {
	CodeBufferSize int
	Assembler      emit.Assembler
	MemoryConfig   emit.FastPathConfig
	Fetcher        translator.Fetcher
	Coprocessors   translator.CoprocessorPolicy
	Interpreter    Interpreter
	Logger         *slog.Logger
}

// New builds a Dispatcher and emits its one-time dispatcher thunk.
func New(cfg Config) (*Dispatcher, error) {
	buf, err := emit.NewBuffer(cfg.CodeBufferSize)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		cache:  blockcache.New(nil),
		buf:    buf,
		asm:    cfg.Assembler,
		memCfg: cfg.MemoryConfig,
		fetch:  cfg.Fetcher,
		coproc: cfg.Coprocessors,
		interp: cfg.Interpreter,
		log:    log,
	}
	e := emit.New(d.asm, d.buf, d.memCfg)
	off, err := e.EmitDispatcherThunk()
	if err != nil {
		return nil, err
	}
	d.thunkOff = off
	return d, nil
}

// Run executes guest instructions until the accumulated cycle decrement
// meets or exceeds cycleBudget, then returns the number of cycles
// actually consumed (spec.md §6 "Run contract"). state supplies the
// live PC/mode/T-flag the block-key is built from between block entries.
func (d *Dispatcher) Run(cycleBudget int, state GuestState) (int, error) {
	consumed := 0
	for consumed < cycleBudget {
		key := block.MakeKey(state.PC(), state.Mode(), state.ThumbMode())
		blk := d.cache.Lookup(key)
		if blk == nil {
			var err error
			blk, err = d.compile(key)
			if err != nil {
				if cycles, ok := d.recoverFromUnimplemented(err, state.PC()); ok {
					consumed += cycles
					continue
				}
				return consumed, err
			}
		}
		consumed += blk.Length
		d.log.Debug("entered block", "key", keyString(key), "length", blk.Length)
	}
	return consumed, nil
}

// recoverFromUnimplemented applies the class-(1) policy: one interpreted
// instruction, then resume compiling from the next address. Returns
// ok=false for any error this policy doesn't cover (classes 2/3).
func (d *Dispatcher) recoverFromUnimplemented(err error, pc uint32) (cycles int, ok bool) {
	var unimpl *ErrUnimplementedEncoding
	if !errors.As(err, &unimpl) || d.interp == nil {
		return 0, false
	}
	cycles, stepErr := d.interp.StepOne(unimpl.FailedAt)
	if stepErr != nil {
		return 0, false
	}
	return cycles, true
}

// ErrUnimplementedEncoding reports a class-(1) recoverable translation
// failure (spec.md §7): the decoder/translator hit an encoding with no
// lifting rule.
type ErrUnimplementedEncoding struct {
	Key      block.Key
	FailedAt uint32
}

func (e *ErrUnimplementedEncoding) Error() string {
	return "dispatcher: unimplemented encoding at 0x" + itohex(uint64(e.FailedAt))
}

// compile runs the full Translate → Optimize → Allocate → Emit pipeline
// for key, inserts the result into the cache, and returns it. A
// class-(2) code-buffer exhaustion is retried exactly once after a
// buffer reset; a second failure is fatal (spec.md §4.7).
func (d *Dispatcher) compile(key block.Key) (*block.Block, error) {
	blk, err := d.compileOnce(key)
	if err == nil {
		return blk, nil
	}
	if !errors.Is(err, errCodeBufferExhausted) {
		return nil, err
	}
	d.log.Warn("code buffer exhausted, resetting", "key", keyString(key))
	if err := d.resetBuffer(); err != nil {
		return nil, err
	}
	blk, err = d.compileOnce(key)
	if err != nil {
		if errors.Is(err, errCodeBufferExhausted) {
			return nil, ErrCodeBufferExhaustedTwice
		}
		return nil, err
	}
	return blk, nil
}

var errCodeBufferExhausted = errors.New("dispatcher: code buffer exhausted")

func (d *Dispatcher) compileOnce(key block.Key) (*block.Block, error) {
	result := translator.Translate(key, d.fetch, d.coproc)
	if result.Block == nil {
		return nil, &ErrUnimplementedEncoding{Key: key, FailedAt: result.FailedAt}
	}
	blk := result.Block

	optimize.Block(blk)

	allocs := make([]regalloc.Result, len(blk.MicroBlocks))
	for i, mb := range blk.MicroBlocks {
		a, err := regalloc.Allocate(mb.Program)
		if err != nil {
			return nil, &ErrInvariantViolation{Key: key, Cause: err}
		}
		allocs[i] = a
	}
	blk.State = block.Allocated

	e := emit.New(d.asm, d.buf, d.memCfg)
	if err := e.EmitBlock(blk, allocs); err != nil {
		if errors.Is(err, emit.ErrBufferExhausted) {
			return nil, errCodeBufferExhausted
		}
		return nil, &ErrInvariantViolation{Key: key, Cause: err}
	}

	d.cache.Insert(blk)
	blk.State = block.Linked

	if result.Unimplemented {
		d.log.Debug("partial block cached", "key", keyString(key), "failed_at", result.FailedAt)
	}
	return blk, nil
}

// resetBuffer implements spec.md §4.7's recovery: drop the cache (every
// cached block's native code lives in the buffer being reset),
// re-flip to Writable, rewind, and re-emit the dispatcher thunk.
func (d *Dispatcher) resetBuffer() error {
	d.cache = blockcache.New(nil)
	if err := d.buf.MakeWritable(); err != nil {
		return err
	}
	d.buf.Reset()
	e := emit.New(d.asm, d.buf, d.memCfg)
	off, err := e.EmitDispatcherThunk()
	if err != nil {
		return err
	}
	d.thunkOff = off
	return nil
}

// Flush invalidates every cached block whose entry address falls in
// [lo, hi) — guest code was written there (spec.md §4.7, §8
// "Invalidation consistency").
func (d *Dispatcher) Flush(lo, hi uint32) {
	d.cache.Flush(lo, hi)
}

// CachedBlockCount reports how many blocks are currently cached, for
// diagnostics and tests.
func (d *Dispatcher) CachedBlockCount() int {
	return d.cache.Len()
}

// Lookup reports the cached block entered at key, or nil if it isn't
// (or is no longer) compiled, for console/diagnostic introspection.
func (d *Dispatcher) Lookup(key block.Key) *block.Block {
	return d.cache.Lookup(key)
}
