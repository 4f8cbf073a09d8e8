/*
 * armjit - Main process.
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

package main

import (
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/ironarm/armjit/config/configparser"
	"github.com/ironarm/armjit/config/debugconfig"
	"github.com/ironarm/armjit/console"
	"github.com/ironarm/armjit/jitcpu"
	"github.com/ironarm/armjit/logging"
	"github.com/ironarm/armjit/memtest"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			slog.Error("can't create log file", "file", *optLogFile, "error", err)
			os.Exit(1)
		}
	}

	handler := logging.NewHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	debugconfig.SetHandler(handler)

	logger.Info("armjit started")

	if *optConfig != "" {
		if err := configparser.LoadConfigFile(*optConfig); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}

	// No concrete host-ISA Assembler ships in this module (see
	// DESIGN.md's emit entry) — the dispatcher never jumps into the
	// emitted bytes, only accounts cycles and caches blocks, so the
	// placeholder backend is safe to run interactively.
	desc := jitcpu.Descriptor{
		Model:     jitcpu.ARMv5TE,
		Memory:    memtest.New(),
		Assembler: memtest.StubAssembler{},
	}
	cpu, err := jitcpu.New(desc, logger)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	console.Run(cpu)

	logger.Info("armjit shutting down")
}
