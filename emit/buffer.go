/*
 * armjit - Code emitter: writable/executable code buffer typestate
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

package emit

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrBufferExhausted is returned by Append when the buffer lacks room
// for the requested code — the emit-layer half of spec.md §4.7's
// "Code buffer exhausted" failure, which the dispatcher's compile
// retry policy distinguishes from other emission failures via
// errors.Is.
var ErrBufferExhausted = errors.New("emit: code buffer exhausted")

// bufferState is the code buffer's typestate (spec.md §9 "Writeable/
// Executable toggling"): Writable exposes Emit, Executable exposes
// Enter. A transition performs the mmap/mprotect cache-coherence
// dance exactly once; the compiler half of the JIT never runs
// concurrently with the dispatcher half, so no locking is needed here
// (spec.md §5 "single-threaded, cooperative").
type bufferState int

const (
	stateWritable bufferState = iota
	stateExecutable
)

// Buffer is the mmap'd region backing every compiled block's native
// code. It starts Writable (RW, no exec) and flips to Executable (RX,
// no write) once the dispatcher is about to run it; flipping back to
// Writable to append more code invalidates every previously issued
// pointer's "still directly callable" assumption, per spec.md §5 — the
// dispatcher must have drained in-flight compiler work first.
type Buffer struct {
	mem   []byte
	used  int
	state bufferState
}

// NewBuffer reserves size bytes of anonymous memory for the code
// buffer, starting Writable. size is typically the dispatcher's
// configured code-cache budget (spec.md §4.7 "Code buffer exhausted"
// triggers a full reset once this is used up).
func NewBuffer(size int) (*Buffer, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("emit: mmap code buffer: %w", err)
	}
	return &Buffer{mem: mem, state: stateWritable}, nil
}

// Close releases the underlying mapping. Safe to call once after the
// buffer is no longer needed.
func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}

// Cap reports the buffer's total capacity in bytes.
func (b *Buffer) Cap() int { return len(b.mem) }

// Used reports how many bytes have been emitted so far.
func (b *Buffer) Used() int { return b.used }

// Remaining reports how much space is left before the buffer is
// exhausted (spec.md §4.7 failure-semantics table, "Code buffer
// exhausted").
func (b *Buffer) Remaining() int { return len(b.mem) - b.used }

// Append copies code into the buffer at its current write position
// and returns the byte offset it was written at. Must only be called
// while the buffer is Writable; returns an error if the buffer lacks
// room rather than growing the mapping — growth would relocate every
// block already patched to point into it.
func (b *Buffer) Append(code []byte) (offset int, err error) {
	if b.state != stateWritable {
		return 0, fmt.Errorf("emit: Append called on a non-writable buffer")
	}
	if len(code) > b.Remaining() {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferExhausted, len(code), b.Remaining())
	}
	offset = b.used
	copy(b.mem[offset:], code)
	b.used += len(code)
	return offset, nil
}

// PatchAt overwrites bytes at an already-emitted offset — used by the
// linker to rewrite a block's tail branch once its target's address is
// known (spec.md §4.7 "Inter-block linking"). Only valid while the
// buffer is Writable.
func (b *Buffer) PatchAt(offset int, code []byte) error {
	if b.state != stateWritable {
		return fmt.Errorf("emit: PatchAt called on a non-writable buffer")
	}
	if offset < 0 || offset+len(code) > b.used {
		return fmt.Errorf("emit: patch at %d (len %d) out of the emitted range [0,%d)", offset, len(code), b.used)
	}
	copy(b.mem[offset:], code)
	return nil
}

// MakeExecutable transitions Writable → Executable: mprotect to
// RX and, on architectures where I$ and D$ are not coherent, this is
// the mandatory instruction-cache invalidation point spec.md §5 calls
// out as "the only portability-critical side effect visible to the
// host OS." Go's runtime and the host kernel keep i-cache coherence on
// every platform this package targets (amd64, arm64 via mprotect), so
// no explicit cache-flush syscall is issued beyond the protection
// change itself.
func (b *Buffer) MakeExecutable() error {
	if b.state == stateExecutable {
		return nil
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("emit: mprotect RX: %w", err)
	}
	b.state = stateExecutable
	return nil
}

// MakeWritable transitions Executable → Writable: mprotect back to RW
// so the compiler can append or patch more blocks. Per spec.md §5, the
// caller must have drained any in-flight compiled-block execution
// first — this method performs no draining of its own.
func (b *Buffer) MakeWritable() error {
	if b.state == stateWritable {
		return nil
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("emit: mprotect RW: %w", err)
	}
	b.state = stateWritable
	return nil
}

// Reset drops every emitted block and rewinds the write position to
// the start — spec.md §4.7's "Code buffer exhausted" recovery: drop
// cache, re-emit the dispatcher prologue, recompile the current block
// once.
func (b *Buffer) Reset() {
	b.used = 0
}

// EntryAt returns a function pointer usable by the host's calling
// convention for the block emitted at offset, valid only while the
// buffer is Executable. The conversion from a byte slice to a callable
// address is inherently unsafe and platform-specific; the dispatcher
// package wraps this behind a typed thunk signature.
func (b *Buffer) EntryAt(offset int) uintptr {
	return uintptr(unsafe.Pointer(&b.mem[0])) + uintptr(offset)
}
