// Package tui implements the live pipeline latch viewer: a per-cycle view
// of the five pipeline stages plus the register file and timing counters,
// adapted from the teacher's debugger TUI
// (_examples/lookbusy1344-arm_emulator/debugger/tui.go) from a
// command-driven single-instruction debugger into a passive viewer driven
// by pipeline.Engine.OnCycle.
package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/pipeline"
)

// TUI renders a live view of one pipeline.Engine run.
type TUI struct {
	App   *tview.Application
	State *archstate.State

	MainLayout   *tview.Flex
	LatchView    *tview.TextView
	RegisterView *tview.TextView
	CountersView *tview.TextView

	snapshots chan pipeline.Snapshot
	done      chan struct{}
}

// New builds a TUI bound to state for register rendering. Set an Engine's
// OnCycle to the TUI's OnCycle method to feed it before Run.
func New(state *archstate.State) *TUI {
	t := &TUI{
		App:       tview.NewApplication(),
		State:     state,
		snapshots: make(chan pipeline.Snapshot, 256),
		done:      make(chan struct{}),
	}
	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()
	return t
}

func (t *TUI) initializeViews() {
	t.LatchView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.LatchView.SetBorder(true).SetTitle(" Pipeline Latches ")

	t.RegisterView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.CountersView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.CountersView.SetBorder(true).SetTitle(" Timing ")
}

func (t *TUI) buildLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 0, 2, false).
		AddItem(t.CountersView, 5, 0, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LatchView, 0, 2, false).
		AddItem(right, 0, 1, false)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEscape:
			t.App.Stop()
			return nil
		}
		return event
	})
}

// OnCycle is an pipeline.Engine.OnCycle callback: it queues the snapshot for
// the render goroutine. Non-blocking: a full channel drops the snapshot
// rather than stall the engine, since the viewer only needs the latest state.
func (t *TUI) OnCycle(snap pipeline.Snapshot) {
	select {
	case t.snapshots <- snap:
	default:
	}
}

// Run starts the TUI event loop. It returns once the application is closed
// (Ctrl-C/Esc); StopFeeding does not close the application.
func (t *TUI) Run() error {
	go t.pump()
	return t.App.SetRoot(t.MainLayout, true).Run()
}

// StopFeeding signals the render pump to stop; snapshots still queued are
// not rendered. Call once the engine's Run has returned.
func (t *TUI) StopFeeding() {
	close(t.done)
}

func (t *TUI) pump() {
	for {
		select {
		case snap := <-t.snapshots:
			t.render(snap)
		case <-t.done:
			return
		}
	}
}

func (t *TUI) render(snap pipeline.Snapshot) {
	t.App.QueueUpdateDraw(func() {
		t.renderLatches(snap)
		t.renderRegisters()
		t.renderCounters(snap)
	})
}

func (t *TUI) renderLatches(snap pipeline.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Cycle %d[white]\n\n", snap.Cycle)
	for stage := pipeline.IF; stage <= pipeline.WB; stage++ {
		latch := snap.Latches[stage]
		if !latch.Valid {
			fmt.Fprintf(&b, "%-3s  (bubble)\n", stage)
			continue
		}
		fmt.Fprintf(&b, "%-3s  0x%08X: %s\n", stage, latch.PC, latch.Inst)
	}
	t.LatchView.SetText(b.String())
}

func (t *TUI) renderRegisters() {
	var b strings.Builder
	for i := 0; i < archstate.NumRegs; i += 4 {
		for j := 0; j < 4 && i+j < archstate.NumRegs; j++ {
			fmt.Fprintf(&b, "R%-2d=%-12d", i+j, t.State.Read(uint8(i+j)))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nPC=0x%08X", t.State.PC)
	t.RegisterView.SetText(b.String())
}

func (t *TUI) renderCounters(snap pipeline.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycles:  %d\n", snap.Cycle)
	fmt.Fprintf(&b, "Stalls:  %d\n", snap.Stalls)
	fmt.Fprintf(&b, "Flushes: %d\n", snap.Flushes)
	t.CountersView.SetText(b.String())
}
