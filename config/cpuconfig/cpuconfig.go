/*
 * armjit - CPU descriptor configuration.
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

// Package cpuconfig registers the config-file directives that build a
// jitcpu.Descriptor: CPU (model, block size), ITCM/DTCM (TCM window
// base/limit/enable), PAGETABLE (the optional fast-path lookup
// structure), and COPROC (wiring a named coprocessor model, added by a
// host package's own init(), into one of the 16 coprocessor slots)
// (spec.md §6, SPEC_FULL.md §1).
package cpuconfig

import (
	"errors"
	"strconv"
	"strings"

	config "github.com/ironarm/armjit/config/configparser"
	"github.com/ironarm/armjit/emit"
	"github.com/ironarm/armjit/jitcpu"
)

// Pending accumulates descriptor fields as the config file is read. A
// process only ever configures one CPU, so this mirrors debugconfig's
// single process-wide handler rather than threading a builder value
// through every registered callback.
type Pending struct {
	Model            jitcpu.Model
	BlockSize        int
	InstructionTCM   emit.TCMWindow
	DataTCM          emit.TCMWindow
	PageTableEnabled bool
	Coprocessors     [16]jitcpu.Coprocessor
}

var pending = Pending{BlockSize: 32}

// Current returns the descriptor fields read so far. Call once, after
// config.LoadConfigFile, to finish assembling a jitcpu.Descriptor.
func Current() Pending { return pending }

// CoprocessorFactory builds a fresh jitcpu.Coprocessor for a model name
// a COPROC directive can select.
type CoprocessorFactory func() jitcpu.Coprocessor

var coprocessorModels = map[string]CoprocessorFactory{}

// RegisterCoprocessorModel lets a host package add a named coprocessor
// model without this package, or the JIT core, knowing about it ahead
// of time - the config file's COPROC directive is the only thing that
// ties a model name to a slot.
func RegisterCoprocessorModel(name string, factory CoprocessorFactory) {
	coprocessorModels[strings.ToUpper(name)] = factory
}

func init() {
	config.RegisterModel("CPU", config.TypeOptions, setCPU)
	config.RegisterModel("ITCM", config.TypeOptions, setITCM)
	config.RegisterModel("DTCM", config.TypeOptions, setDTCM)
	config.RegisterSwitch("PAGETABLE", setPageTable)
	config.RegisterModel("COPROC", config.TypeOptions, setCoproc)
}

// setCPU implements "CPU <ARMv4T|ARMv5TE> [BLOCKSIZE=<n>]".
func setCPU(_ uint32, value string, options []config.Option) error {
	switch strings.ToUpper(value) {
	case "ARMV4T":
		pending.Model = jitcpu.ARMv4T
	case "ARMV5TE":
		pending.Model = jitcpu.ARMv5TE
	default:
		return errors.New("cpu: unknown model " + value)
	}
	for _, opt := range options {
		if strings.ToUpper(opt.Name) != "BLOCKSIZE" {
			continue
		}
		n, err := strconv.Atoi(opt.EqualOpt)
		if err != nil {
			return errors.New("cpu: invalid BLOCKSIZE " + opt.EqualOpt)
		}
		pending.BlockSize = n
	}
	return nil
}

// setITCM implements "ITCM <base> [LIMIT=<hex limit address>] [ENABLE] [READONLY]".
func setITCM(addr uint32, value string, options []config.Option) error {
	w, err := parseTCMWindow(addr, options)
	if err != nil {
		return err
	}
	pending.InstructionTCM = w
	return nil
}

// setDTCM implements "DTCM <base> [LIMIT=<hex limit address>] [ENABLE] [READONLY]".
func setDTCM(addr uint32, value string, options []config.Option) error {
	w, err := parseTCMWindow(addr, options)
	if err != nil {
		return err
	}
	pending.DataTCM = w
	return nil
}

func parseTCMWindow(base uint32, options []config.Option) (emit.TCMWindow, error) {
	w := emit.TCMWindow{Base: base}
	for _, opt := range options {
		switch strings.ToUpper(opt.Name) {
		case "LIMIT":
			limit, err := strconv.ParseUint(opt.EqualOpt, 16, 32)
			if err != nil {
				return w, errors.New("tcm: invalid LIMIT " + opt.EqualOpt)
			}
			w.Limit = uint32(limit)
		case "ENABLE":
			w.Enable = true
		case "READONLY":
			w.Enable = true
			w.EnableRead = true
		}
	}
	return w, nil
}

func setPageTable(_ uint32, _ string, _ []config.Option) error {
	pending.PageTableEnabled = true
	return nil
}

// setCoproc implements "COPROC <slot 0-15> <modelname>": the slot is the
// directive's leading address, the model name is the first bare option
// token (the grammar has no second positional string, only options).
func setCoproc(addr uint32, _ string, options []config.Option) error {
	if addr > 15 {
		return errors.New("coproc: slot out of range 0-15")
	}
	if len(options) == 0 {
		return errors.New("coproc: missing model name")
	}
	factory, ok := coprocessorModels[strings.ToUpper(options[0].Name)]
	if !ok {
		return errors.New("coproc: unknown model " + options[0].Name)
	}
	pending.Coprocessors[addr] = factory()
	return nil
}
