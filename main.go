package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/config"
	"github.com/lookbusy1344/pipeline-sim/executor"
	"github.com/lookbusy1344/pipeline-sim/fsrun"
	"github.com/lookbusy1344/pipeline-sim/gui"
	"github.com/lookbusy1344/pipeline-sim/loader"
	"github.com/lookbusy1344/pipeline-sim/pipeline"
	"github.com/lookbusy1344/pipeline-sim/tui"
)

// Exit codes, per SPEC_FULL.md's expanded Driver section.
const (
	exitOK              = 0
	exitArgumentError   = 1
	exitImageError      = 2
	exitDivergenceError = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pipeline-sim", flag.ContinueOnError)
	var (
		debugMode  = fs.Bool("debug", false, "enable diagnostic logging")
		debugShort = fs.Bool("d", false, "shorthand for -debug")
		tuiMode    = fs.Bool("tui", false, "show the live pipeline latch viewer (NF/WF only)")
		guiMode    = fs.Bool("gui", false, "show the final-state summary window")
		configPath = fs.String("config", "", "path to a TOML config file (default: platform config path)")
		maxCycles  = fs.Uint64("max-cycles", 0, "override the divergence cycle cap (0: use config default)")
		dumpImage  = fs.Bool("dump-image", false, "print the loaded memory image and exit")
	)
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return exitArgumentError
	}

	if fs.NArg() != 2 {
		printUsage(fs)
		return exitArgumentError
	}
	imagePath := fs.Arg(0)
	mode := strings.ToUpper(fs.Arg(1))
	if mode != "FS" && mode != "NF" && mode != "WF" {
		fmt.Fprintf(os.Stderr, "invalid mode %q: must be FS, NF, or WF\n", fs.Arg(1))
		return exitArgumentError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitArgumentError
	}

	logger := log.New(io.Discard, "", 0)
	if *debugMode || *debugShort {
		logger = log.New(os.Stderr, "[pipeline-sim] ", log.LstdFlags)
	}

	mem, count, err := loader.Load(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", err)
		return exitImageError
	}
	if *dumpImage {
		dumpLoadedImage(os.Stdout, mem, count)
		return exitOK
	}

	cycleCap := cfg.Execution.MaxCycles
	if *maxCycles > 0 {
		cycleCap = *maxCycles
	}
	if cycleCap < pipeline.DefaultMaxCycles {
		cycleCap = pipeline.DefaultMaxCycles
	}

	state := archstate.New()
	state.Mem = mem
	exec := executor.New(state, logger)

	var timing *gui.Timing

	switch mode {
	case "FS":
		if err := fsrun.Run(state, exec); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitDivergenceError
		}

	case "NF", "WF":
		eng := pipeline.New(state, exec, mode == "WF", logger)
		eng.MaxCycles = cycleCap

		if *debugMode || *debugShort {
			eng.OnCycle = func(snap pipeline.Snapshot) {
				l := snap.Latches
				logger.Printf("cycle %d: IF[%s] ID[%s] EX[%s] MEM[%s] WB[%s] stalls=%d flushes=%d",
					snap.Cycle, l[pipeline.IF].Inst, l[pipeline.ID].Inst, l[pipeline.EX].Inst,
					l[pipeline.MEM].Inst, l[pipeline.WB].Inst, snap.Stalls, snap.Flushes)
			}
		}

		var t *tui.TUI
		if *tuiMode {
			t = tui.New(state)
			eng.OnCycle = t.OnCycle
		}

		runErr := make(chan error, 1)
		go func() { runErr <- eng.Run() }()

		if t != nil {
			if err := t.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
			}
		}

		if err := <-runErr; err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitDivergenceError
		}
		if t != nil {
			t.StopFeeding()
		}

		timing = &gui.Timing{Mode: mode, Cycles: eng.Cycles, Stalls: eng.Stalls, Flushes: eng.Flushes}
	}

	state.Report(os.Stdout)
	if mode != "FS" {
		fmt.Printf("Cycles: %d\nStalls: %d\nFlushes: %d\n", timing.Cycles, timing.Stalls, timing.Flushes)
	}

	if *guiMode {
		gui.Show(state, timing)
	}

	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func dumpLoadedImage(w io.Writer, mem [archstate.MemWords]uint32, count int) {
	for i := 0; i < count; i++ {
		fmt.Fprintf(w, "0x%04X: 0x%08X\n", i*4, mem[i])
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `pipeline-sim: cycle-accurate ISA simulator

Usage:
  pipeline-sim [flags] <image-path> <FS|NF|WF>

Modes:
  FS   functional-only: executes instructions with no timing model
  NF   pipeline timing without forwarding (stall on any pending producer)
  WF   pipeline timing with forwarding (load-use stall only)

Flags:
`)
	fs.PrintDefaults()
}
