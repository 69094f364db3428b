// Package gui implements the post-run final-state summary window, adapted
// from the teacher's live debugger GUI
// (_examples/lookbusy1344-arm_emulator/debugger/gui.go) into a single static
// report: once a run completes, it shows the final register file, changed
// memory words, instruction-class counters, and (for the pipeline engines)
// timing stats.
package gui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/lookbusy1344/pipeline-sim/archstate"
)

// Timing carries the pipeline timing counters for runs that went through
// the pipeline engine; it is nil for a functional-only (FS) run.
type Timing struct {
	Mode    string
	Cycles  uint64
	Stalls  uint64
	Flushes uint64
}

// Show builds and runs a final-state summary window for state. It blocks
// until the window is closed.
func Show(state *archstate.State, timing *Timing) {
	myApp := app.New()
	win := myApp.NewWindow("pipeline-sim: final state")

	registerView := widget.NewTextGrid()
	registerView.SetText(renderRegisters(state))

	memoryView := widget.NewTextGrid()
	memoryView.SetText(renderMemory(state))

	countersView := widget.NewTextGrid()
	countersView.SetText(renderCounters(state, timing))

	tabs := container.NewAppTabs(
		container.NewTabItem("Registers", container.NewScroll(registerView)),
		container.NewTabItem("Memory", container.NewScroll(memoryView)),
		container.NewTabItem("Counters", container.NewScroll(countersView)),
	)

	win.SetContent(tabs)
	win.Resize(fyne.NewSize(720, 480))
	win.ShowAndRun()
}

func renderRegisters(state *archstate.State) string {
	var sb strings.Builder
	sb.WriteString("Registers:\n")
	sb.WriteString("──────────────────────────\n")
	for i := 0; i < archstate.NumRegs; i++ {
		if i == 0 || state.RegWritten[i] || state.R[i] != 0 {
			sb.WriteString(fmt.Sprintf("R%-2d: 0x%08X  (%d)\n", i, uint32(state.R[i]), state.R[i]))
		}
	}
	sb.WriteString(fmt.Sprintf("\nPC:  0x%08X\n", state.PC))
	return sb.String()
}

func renderMemory(state *archstate.State) string {
	var sb strings.Builder
	sb.WriteString("Changed memory words:\n")
	sb.WriteString("──────────────────────────\n")
	any := false
	for i, changed := range state.MemChanged {
		if changed {
			any = true
			sb.WriteString(fmt.Sprintf("MEM[0x%04X]: 0x%08X\n", i*4, state.Mem[i]))
		}
	}
	if !any {
		sb.WriteString("(none)\n")
	}
	return sb.String()
}

func renderCounters(state *archstate.State, timing *Timing) string {
	var sb strings.Builder
	c := state.Counters
	sb.WriteString("Instruction counters:\n")
	sb.WriteString("──────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total:           %d\n", c.Total))
	sb.WriteString(fmt.Sprintf("Arithmetic:      %d\n", c.Arithmetic))
	sb.WriteString(fmt.Sprintf("Logical:         %d\n", c.Logical))
	sb.WriteString(fmt.Sprintf("MemoryAccess:    %d\n", c.MemoryAccess))
	sb.WriteString(fmt.Sprintf("ControlTransfer: %d\n", c.ControlTransfer))

	if timing != nil {
		sb.WriteString(fmt.Sprintf("\nTiming (%s):\n", timing.Mode))
		sb.WriteString("──────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Cycles:  %d\n", timing.Cycles))
		sb.WriteString(fmt.Sprintf("Stalls:  %d\n", timing.Stalls))
		sb.WriteString(fmt.Sprintf("Flushes: %d\n", timing.Flushes))
	}

	return sb.String()
}
