/*
 * armjit - Basic-block cache: keyed lookup, insertion, and invalidation
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

// Package blockcache owns the keyed arena of compiled blocks (spec.md
// §4.7, §9 "Cyclic ownership"): lookup by block.Key, insertion, the
// linker's patch-site bookkeeping, and address-range invalidation that
// propagates to every predecessor a direct link points at.
package blockcache

import (
	"log/slog"
	"sync"

	"github.com/ironarm/armjit/block"
)

// Linker patches a predecessor block's direct-jump site once its target
// is known or changes address (spec.md §4.7 "Inter-block linking"). The
// emitter supplies the concrete implementation (it alone knows how to
// encode a relative branch into the target's native code).
type Linker interface {
	// Patch overwrites pred's LinkSite with a relative branch to target's
	// FuncBase. Called once at insertion time for every waiting
	// predecessor, and again should the target's address ever change.
	Patch(pred *block.Block, target *block.Block)
	// Unpatch restores pred's LinkSite to its un-linked (return-to-
	// dispatcher) form, called during invalidation.
	Unpatch(pred *block.Block)
}

// Cache is the block arena. Safe for concurrent lookup/insert from
// multiple dispatcher instances sharing one guest address space;
// spec.md's Non-goals exclude multi-core guest concurrency, but the
// cache itself still needs a lock since a background invalidation
// (self-modifying code) can race a foreground lookup.
type Cache struct {
	mu     sync.RWMutex
	blocks map[block.Key]*block.Block
	linker Linker
}

// New builds an empty Cache. linker may be nil in tests that never
// exercise inter-block linking.
func New(linker Linker) *Cache {
	return &Cache{blocks: make(map[block.Key]*block.Block), linker: linker}
}

// Lookup returns the compiled block for key, or nil on a cache miss —
// the dispatcher's signal to run the full
// Decoder→Translator→Optimizer→Allocator→Emitter pipeline.
func (c *Cache) Lookup(key block.Key) *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[key]
}

// Insert adds a newly emitted block to the cache and links any blocks
// already present whose static successor is b's key (spec.md §4.7
// "linking_blocks"), then links b itself into its own branch target's
// LinkingBlocks if that target is already cached.
func (c *Cache) Insert(b *block.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[b.EntryKey] = b
	slog.Debug("block entered cache", "event", "block_compiled",
		"addr", b.EntryKey.Addr(), "thumb", b.EntryKey.Thumb())

	for _, existing := range c.blocks {
		if existing == b || !existing.HasBranchTarget || existing.FastLinkDisabled {
			continue
		}
		if existing.BranchTarget == b.EntryKey {
			b.LinkingBlocks = append(b.LinkingBlocks, existing.EntryKey)
			if c.linker != nil {
				c.linker.Patch(existing, b)
				slog.Debug("patched predecessor into new block", "event", "block_linked",
					"pred", existing.EntryKey.Addr(), "addr", b.EntryKey.Addr())
			}
		}
	}
	if b.HasBranchTarget && !b.FastLinkDisabled {
		if target, ok := c.blocks[b.BranchTarget]; ok {
			target.LinkingBlocks = append(target.LinkingBlocks, b.EntryKey)
			if c.linker != nil {
				c.linker.Patch(b, target)
				slog.Debug("patched new block into cached target", "event", "block_linked",
					"addr", b.EntryKey.Addr(), "target", target.EntryKey.Addr())
			}
		}
	}
}

// Flush invalidates every block whose EntryKey's address falls in
// [lo, hi), and recursively invalidates every predecessor linked to one
// of those blocks — a direct-jump patch site into an invalidated block
// must never run (spec.md §4.7 "block lifecycle", §9 "Cyclic
// ownership"). Used when guest code in that range is written, or when
// the executable-code buffer is reset.
func (c *Cache) Flush(lo, hi uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toInvalidate []block.Key
	for key, b := range c.blocks {
		addr := key.Addr()
		if addr >= lo && addr < hi {
			toInvalidate = append(toInvalidate, key)
			_ = b
		}
	}
	for len(toInvalidate) > 0 {
		key := toInvalidate[len(toInvalidate)-1]
		toInvalidate = toInvalidate[:len(toInvalidate)-1]
		b, ok := c.blocks[key]
		if !ok {
			continue
		}
		c.invalidateLocked(b, &toInvalidate)
	}
}

// invalidateLocked removes b from the cache, unpatches its own link
// site, and queues every predecessor that links into b for the same
// treatment — predecessors would otherwise jump straight into freed or
// stale native code.
func (c *Cache) invalidateLocked(b *block.Block, queue *[]block.Key) {
	if b.State == block.Invalidated {
		return
	}
	b.State = block.Invalidated
	delete(c.blocks, b.EntryKey)
	slog.Debug("block invalidated", "event", "block_invalidated", "addr", b.EntryKey.Addr())
	if c.linker != nil {
		c.linker.Unpatch(b)
	}
	for _, predKey := range b.LinkingBlocks {
		if pred, ok := c.blocks[predKey]; ok && pred.State != block.Invalidated {
			*queue = append(*queue, predKey)
		}
	}
}

// Len reports how many blocks are currently cached, for test assertions
// and the console's cache-stats command.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}
