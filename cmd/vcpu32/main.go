/*
 * VCPU32 - Main process.
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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"

	config "github.com/rcornwell/vcpu32/config/configparser"
	"github.com/rcornwell/vcpu32/emu/core"
	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/trap"
	logger "github.com/rcornwell/vcpu32/util/logger"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Model description file")
	optImage := getopt.StringLong("image", 'i', "", "Program image loaded at RAM offset 0")
	optPDC := getopt.StringLong("pdc", 'p', "", "PDC ROM image")
	optSteps := getopt.IntLong("steps", 'n', 0, "Instructions to retire (0 = run until BRK)")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror all log levels to stderr")
	optInteractive := getopt.BoolLong("interactive", 't', "Start the interactive prompt")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	handler := logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	Logger.Info("VCPU32 started")

	cfg := core.DefaultConfig()
	if *optConfig != "" {
		registerConfigModels(&cfg)
		if err := config.LoadConfigFile(*optConfig); err != nil {
			Logger.Error("loading config file", "error", err)
			os.Exit(1)
		}
	}

	c := core.New(cfg)

	if *optImage != "" {
		if err := loadImage(c, *optImage, 0); err != nil {
			Logger.Error("loading program image", "error", err)
			os.Exit(1)
		}
	}
	if *optPDC != "" {
		if err := loadImage(c, *optPDC, cfg.PDC.StartAddr); err != nil {
			Logger.Error("loading PDC image", "error", err)
			os.Exit(1)
		}
	}

	if *optInteractive {
		runInteractive(c)
		return
	}

	ctx := context.Background()
	if *optSteps > 0 {
		retired := c.InstrStep(ctx, *optSteps)
		Logger.Info("run complete", "retired", retired, "cycles", c.Cycles())
	} else {
		runUntilBreak(ctx, c)
	}
	printState(c)
}

// runUntilBreak steps one instruction at a time until the pending
// trap is Break, or the machine appears stuck (no forward progress
// over a large number of instructions, which would indicate a program
// with no BRK at all rather than a genuine hang - InstrStep itself
// already guards against a single stuck instruction).
func runUntilBreak(ctx context.Context, c *core.Core) {
	const maxInstrs = 10_000_000
	for i := 0; i < maxInstrs; i++ {
		if c.InstrStep(ctx, 1) == 0 {
			Logger.Warn("instruction did not retire within the cycle budget")
			return
		}
		if c.GetReg(cpu.RegClassControl, cpu.CrTemp1) == trap.Break {
			return
		}
	}
	Logger.Warn("stopped: no BRK observed after maxInstrs instructions", "maxInstrs", maxInstrs)
}

func loadImage(c *core.Core, path string, base uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ram := c.Router().RAM
	for i := 0; i+4 <= len(data); i += 4 {
		word := uint32(data[i])<<24 | uint32(data[i+1])<<16 | uint32(data[i+2])<<8 | uint32(data[i+3])
		ram.Poke(base+uint32(i), word)
	}
	return nil
}

func printState(c *core.Core) {
	fmt.Println("-- final register state --")
	for i := uint32(0); i < cpu.NumGReg; i++ {
		fmt.Printf("  g%d = %#010x\n", i, c.GetReg(cpu.RegClassGeneral, i))
	}
	fmt.Printf("  cycles=%d instrs=%d\n", c.Cycles(), c.Instrs())
}

// runInteractive offers a small liner-backed prompt: step/run/reg/reset/quit.
// Disassembly, breakpoints and textual formatting are deliberately not
// part of this surface.
func runInteractive(c *core.Core) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	ctx := context.Background()
	fmt.Println("vcpu32 interactive mode - step [n] | run | reg <class> <id> | reset | quit")
	for {
		input, err := line.Prompt("vcpu32> ")
		if err != nil {
			break
		}
		line.AppendHistory(input)
		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "step":
			n := 1
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil {
					n = v
				}
			}
			retired := c.InstrStep(ctx, n)
			fmt.Printf("retired %d instruction(s)\n", retired)
		case "run":
			runUntilBreak(ctx, c)
			printState(c)
		case "reg":
			if len(fields) != 3 {
				fmt.Println("usage: reg <class> <id>")
				continue
			}
			class, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("bad class:", fields[1])
				continue
			}
			id, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("bad id:", fields[2])
				continue
			}
			fmt.Printf("%#010x\n", c.GetReg(cpu.RegClass(class), uint32(id)))
		case "reset":
			c.Reset()
			fmt.Println("reset")
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
