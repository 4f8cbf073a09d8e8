/*
 * armjit - Wrapper for slog
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

// Package logging wraps slog for the JIT's lifecycle events: blocks
// compiled, invalidated, linked, and dispatcher faults. One process-wide
// handler, same shape as a conventional application log line.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler formats records as a single timestamped line and can optionally
// echo every line to stderr regardless of level, useful when driving the
// console REPL interactively.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

// blockEventTags maps the "event" attr value a block-lifecycle log line
// carries (spec.md §4.7: compiled, invalidated, linked) to a bracketed
// tag, so those lines stand out from ordinary ones at a glance instead
// of reading identically to any other slog.Info call.
var blockEventTags = map[string]string{
	"block_compiled":    "[COMPILED]",
	"block_invalidated": "[INVALIDATED]",
	"block_linked":      "[LINKED]",
}

func blockEventTag(r slog.Record) (string, bool) {
	tag, found := "", false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "event" {
			tag, found = blockEventTags[a.Value.String()]
			return false
		}
		return true
	})
	return tag, found
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level}
	if tag, ok := blockEventTag(r); ok {
		strs = append(strs, tag)
	}
	strs = append(strs, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, a.Key+"="+a.Value.String())
		return true
	})
	b := []byte(strings.Join(strs, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if h.debug || r.Level > slog.LevelDebug {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// SetDebug toggles whether debug-level lines are echoed to stderr as well
// (info and above are always echoed), wired to the console's "debug
// on/off" command.
func (h *Handler) SetDebug(debug bool) { h.debug = debug }

// NewHandler builds a Handler writing to file, honoring opts.Level for
// slog's own filtering.
func NewHandler(file io.Writer, opts *slog.HandlerOptions, debug bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out: file,
		h: slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

// New builds a ready-to-use *slog.Logger over a Handler, the call site
// every other package in this module uses (spec.md's ambient logging
// concern — block lifecycle, dispatcher faults, coprocessor breaks).
func New(file io.Writer, level slog.Level, debug bool) *slog.Logger {
	return slog.New(NewHandler(file, &slog.HandlerOptions{Level: level}, debug))
}
