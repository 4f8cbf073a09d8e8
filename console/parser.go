/*
 * armjit - Console command parser.
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

// Package console implements the interactive REPL: a small command-word
// grammar with abbreviation matching, driving a jitcpu.CPU directly
// (run/step/reset/examine/deposit/flush/dump/break), line-edited with
// github.com/peterh/liner the same way rcornwell-S370's command/reader
// drove its channel/device console.
package console

import (
	"errors"
	"unicode"

	"github.com/ironarm/armjit/jitcpu"
)

type cmd struct {
	name     string
	min      int // minimum unambiguous prefix length
	process  func(*cmdLine, *jitcpu.CPU) (bool, error)
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "examine", min: 1, process: examine},
	{name: "deposit", min: 1, process: deposit},
	{name: "step", min: 2, process: step},
	{name: "run", min: 1, process: run},
	{name: "reset", min: 3, process: reset},
	{name: "flush", min: 2, process: flush},
	{name: "dump", min: 2, process: dump},
	{name: "break", min: 3, process: breakAt},
	{name: "quit", min: 1, process: quit},
}

// ProcessCommand executes one command line against cpu. The bool return
// reports whether the console should exit.
func ProcessCommand(commandLine string, cpu *jitcpu.CPU) (bool, error) {
	line := cmdLine{line: commandLine}
	word := line.getWord()

	match := matchList(word)
	switch len(match) {
	case 0:
		if word == "" {
			return false, nil
		}
		return false, errors.New("command not found: " + word)
	case 1:
		return match[0].process(&line, cpu)
	default:
		return false, errors.New("ambiguous command: " + word)
	}
}

// CompleteCmd returns the set of command names matching the command
// word typed so far, for liner's tab completion.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	word := line.getWord()
	if !line.isEOL() {
		return nil
	}
	matches := []string{}
	for _, m := range cmdList {
		if matchCommand(m, word) {
			matches = append(matches, m.name)
		}
	}
	return matches
}

func matchCommand(m cmd, word string) bool {
	if len(word) == 0 || len(word) > len(m.name) {
		return false
	}
	if word != m.name[:len(word)] {
		return false
	}
	return len(word) >= m.min
}

func matchList(word string) []cmd {
	if word == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, word) {
			match = append(match, m)
		}
	}
	return match
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

func (l *cmdLine) skipSpace() {
	for !l.isEOL() && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

// getWord returns the next whitespace-delimited token, or "" at end of line.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}
