// Package pipeline implements the 5-stage in-order pipeline timing engine,
// in its two variants (NF: stall-on-any-pending-producer, WF: EX/MEM
// forwarding plus load-use stall). Both variants share this one Engine type;
// Engine.Forwarding selects which hazard-detection and operand-resolution
// rules apply, mirroring the teacher's single-VM-with-interchangeable-
// handlers structure rather than two parallel engines.
package pipeline

import (
	"fmt"
	"io"
	"log"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/executor"
	"github.com/lookbusy1344/pipeline-sim/isa"
)

// DefaultMaxCycles is the divergence cap (§4.5): "a hard cycle cap
// (>= 200,000) protects against divergence and is fatal."
const DefaultMaxCycles = 200_000

// Snapshot is a point-in-time, by-value copy of the engine's latches and
// counters, handed to OnCycle. It carries copies only, matching §5's
// "latches... never references into the register file."
type Snapshot struct {
	Cycle   uint64
	Latches [int(numStages)]Latch
	Stalls  uint64
	Flushes uint64
}

// Engine drives the five latches (IF, ID, EX, MEM, WB) through one cycle at
// a time. The Functional Executor is invoked only at WB; the engine itself
// never writes architectural registers, memory, or PC (§3 invariant 3).
type Engine struct {
	State      *archstate.State
	Exec       *executor.Executor
	Forwarding bool
	Log        *log.Logger
	MaxCycles  uint64

	// OnCycle, if set, is invoked once per cycle after the latches have
	// advanced, for tracing (--debug) and the live TUI viewer.
	OnCycle func(Snapshot)

	latches [int(numStages)]Latch
	fetchPC uint32

	haltFetched    bool
	fetchExhausted bool

	Cycles  uint64
	Stalls  uint64
	Flushes uint64
}

// New returns an Engine over state, driven by exec. forwarding selects the
// WF variant (true) or the NF variant (false).
func New(state *archstate.State, exec *executor.Executor, forwarding bool, logger *log.Logger) *Engine {
	e := &Engine{
		State:      state,
		Exec:       exec,
		Forwarding: forwarding,
		Log:        logger,
		MaxCycles:  DefaultMaxCycles,
	}
	for i := range e.latches {
		e.latches[i] = bubble()
	}
	return e
}

// Run drives the engine to completion: until HALT has retired and the
// pipeline has drained, or fetch has run off the end of memory and drained,
// or the divergence cap is hit (a fatal error, per §4.5/§7).
func (e *Engine) Run() error {
	// The first instruction occupies IF during cycle 1, so it is fetched
	// before the first step rather than at the end of it.
	if e.Cycles == 0 {
		e.latches[IF] = e.fetch()
	}
	for {
		if e.Cycles >= e.MaxCycles {
			return fmt.Errorf("divergence: exceeded %d cycles without completion", e.MaxCycles)
		}
		if !e.step() {
			return nil
		}
	}
}

// step executes one cycle's five phases in the fixed order of §4.5:
// retire (WB), resolve memory (MEM), execute (EX), hazard-detect (ID),
// advance & fetch. It returns false once the pipeline should stop.
func (e *Engine) step() bool {
	e.Cycles++

	retiredHalt := e.retireStage()
	e.resolveMemoryStage()
	e.executeStage()
	stall := e.hazardDetectStage()

	ex := e.latches[EX]
	branchTaken := ex.Valid && ex.BranchTaken
	var branchTarget uint32
	if branchTaken {
		branchTarget = ex.BranchTarget
	}

	e.advance(stall, branchTaken, branchTarget)

	if e.OnCycle != nil {
		e.OnCycle(e.Snapshot())
	}

	if retiredHalt {
		// HALT only ever reaches WB after halt_fetched stopped further
		// fetches four cycles earlier, so nothing trails it.
		return false
	}
	if e.fetchExhausted && e.allBubbles() {
		return false
	}
	return true
}

// retireStage invokes the Functional Executor on a valid, non-bubble WB
// latch. It is the only place architectural state is mutated.
func (e *Engine) retireStage() (retiredHalt bool) {
	wb := e.latches[WB]
	if !wb.Valid || wb.Inst.Opcode == isa.NOP {
		return false
	}
	e.Exec.Commit(wb.Inst, wb.PC)
	return wb.Inst.Opcode == isa.HALT
}

// resolveMemoryStage computes the loaded word for a LDW in MEM, making it
// available this same cycle for MEM->EX forwarding. It does not mutate
// architectural memory: the authoritative, state-mutating read happens
// again (harmlessly, since reads have no side effect) when this instruction
// retires at WB. See DESIGN.md for why this split keeps the executor the
// sole mutator of architectural state.
func (e *Engine) resolveMemoryStage() {
	mem := &e.latches[MEM]
	if !mem.Valid || mem.Inst.Opcode != isa.LDW {
		return
	}
	addr := uint32(mem.ALUResult)
	if addr%4 == 0 && addr < archstate.MemWords*4 {
		mem.LoadVal = int32(e.State.ReadMem(addr / 4))
	} else {
		mem.LoadVal = 0
	}
}

// executeStage computes the EX latch's ALU/address result and, for
// branches and JR, resolves the branch decision and target. Under the WF
// variant, operand reads go through readOperand's forwarding mux.
func (e *Engine) executeStage() {
	ex := &e.latches[EX]
	if !ex.Valid {
		return
	}
	mem := &e.latches[MEM]
	wb := &e.latches[WB]
	inst := ex.Inst
	rs := e.readOperand(inst.Rs, mem, wb)

	switch inst.Opcode {
	case isa.ADD:
		ex.ALUResult = rs + e.readOperand(inst.Rt, mem, wb)
	case isa.SUB:
		ex.ALUResult = rs - e.readOperand(inst.Rt, mem, wb)
	case isa.MUL:
		ex.ALUResult = rs * e.readOperand(inst.Rt, mem, wb)
	case isa.OR:
		ex.ALUResult = rs | e.readOperand(inst.Rt, mem, wb)
	case isa.AND:
		ex.ALUResult = rs & e.readOperand(inst.Rt, mem, wb)
	case isa.XOR:
		ex.ALUResult = rs ^ e.readOperand(inst.Rt, mem, wb)
	case isa.ADDI:
		ex.ALUResult = rs + inst.Imm
	case isa.SUBI:
		ex.ALUResult = rs - inst.Imm
	case isa.MULI:
		ex.ALUResult = rs * inst.Imm
	case isa.ORI:
		ex.ALUResult = rs | inst.Imm
	case isa.ANDI:
		ex.ALUResult = rs & inst.Imm
	case isa.XORI:
		ex.ALUResult = rs ^ inst.Imm
	case isa.LDW, isa.STW:
		ex.ALUResult = rs + inst.Imm
		if inst.Opcode == isa.STW {
			ex.StoreVal = e.readOperand(inst.Rt, mem, wb)
		}
	case isa.BZ:
		ex.BranchTaken = rs == 0
		ex.BranchTarget = ex.PC + uint32(inst.Imm*4)
	case isa.BEQ:
		rt := e.readOperand(inst.Rt, mem, wb)
		ex.BranchTaken = rs == rt
		ex.BranchTarget = ex.PC + uint32(inst.Imm*4)
	case isa.JR:
		ex.BranchTaken = true
		ex.BranchTarget = uint32(rs)
	}
}

// readOperand resolves a source register's value. Under WF, it applies the
// MEM->EX and WB->EX forwarding priority (MEM wins); R0 is never a
// forwarding source, and only producers that write a register participate
// (branches, STW, HALT, NOP never forward). Under NF, it is a plain
// register-file read, which — because retireStage already ran this cycle —
// naturally observes a same-cycle WB write-through without any explicit
// forwarding hardware (§4.6's "write-half-cycle / read-half-cycle"
// convention).
func (e *Engine) readOperand(reg uint8, mem, wb *Latch) int32 {
	if reg == 0 {
		return 0
	}
	if e.Forwarding {
		if d, writes := mem.destReg(); writes && d == reg {
			return mem.producedValue()
		}
		if d, writes := wb.destReg(); writes && d == reg {
			return wb.producedValue()
		}
	}
	return e.State.Read(reg)
}

// hazardDetectStage determines whether this cycle must stall, per the
// active variant's rule (§4.6 or §4.7).
func (e *Engine) hazardDetectStage() bool {
	id := e.latches[ID]
	if !id.Valid || id.Inst.Opcode == isa.NOP {
		return false
	}
	ex := e.latches[EX]
	if e.Forwarding {
		return e.loadUseHazard(id, ex)
	}
	mem := e.latches[MEM]
	return e.rawHazard(id, ex, mem)
}

// rawHazard implements the NF stall rule (§4.6): stall if a non-zero source
// register of the ID instruction matches the destination of a
// register-writing instruction currently in EX or MEM. WB is not
// considered (see readOperand's doc comment).
func (e *Engine) rawHazard(id, ex, mem Latch) bool {
	for _, src := range isa.SourceRegs(id.Inst) {
		if src == 0 {
			continue
		}
		if d, writes := ex.destReg(); writes && d == src {
			return true
		}
		if d, writes := mem.destReg(); writes && d == src {
			return true
		}
	}
	return false
}

// loadUseHazard implements the WF stall rule (§4.7): stall only when EX
// holds a LDW whose destination matches a source of the ID instruction.
func (e *Engine) loadUseHazard(id, ex Latch) bool {
	if !ex.Valid || ex.Inst.Opcode != isa.LDW {
		return false
	}
	dest, writes := ex.destReg()
	if !writes {
		return false
	}
	for _, src := range isa.SourceRegs(id.Inst) {
		if src != 0 && src == dest {
			return true
		}
	}
	return false
}

// advance shifts the latches per the stall/flush decision and fetches into
// IF (§4.5 step 5). Flush takes priority: a taken branch in EX squashes IF
// and ID this cycle regardless of any hazard signal from ID, since that
// instruction is being discarded anyway.
func (e *Engine) advance(stall, branchTaken bool, branchTarget uint32) {
	var next [int(numStages)]Latch

	switch {
	case branchTaken:
		e.Flushes += 2
		squashedIF, squashedID := e.latches[IF], e.latches[ID]
		next[WB] = e.latches[MEM]
		next[MEM] = e.latches[EX]
		next[EX] = bubble()
		next[ID] = bubble()
		// A HALT squashed out of IF/ID here never reaches WB, so the
		// fetch suppression it set must lift or fetching never resumes.
		if squashedHalt(squashedIF) || squashedHalt(squashedID) {
			e.haltFetched = false
		}
		e.fetchPC = branchTarget
		next[IF] = e.fetch()

	case stall:
		e.Stalls++
		next[WB] = e.latches[MEM]
		next[MEM] = e.latches[EX]
		next[EX] = bubble()
		next[ID] = e.latches[ID]
		next[IF] = e.latches[IF]

	default:
		next[WB] = e.latches[MEM]
		next[MEM] = e.latches[EX]
		next[EX] = e.latches[ID]
		next[ID] = e.latches[IF]
		next[IF] = e.fetch()
	}

	e.latches = next
}

// fetch returns the next IF latch: a bubble once HALT has entered IF or
// fetch has run past the end of memory, otherwise the decoded instruction
// at fetchPC.
func (e *Engine) fetch() Latch {
	if e.haltFetched || e.fetchExhausted {
		return bubble()
	}
	if e.fetchPC >= archstate.MemWords*4 {
		e.fetchExhausted = true
		return bubble()
	}

	word := e.State.ReadMem(e.fetchPC / 4)
	inst := isa.Decode(word)
	if inst.Class == isa.ClassInvalid {
		e.Exec.Logf("decode: unknown opcode in word 0x%08X at pc=0x%08X, treated as NOP", word, e.fetchPC)
	}

	l := Latch{Valid: true, Inst: inst, PC: e.fetchPC}
	if inst.Opcode == isa.HALT {
		e.haltFetched = true
	}
	e.fetchPC += 4
	return l
}

// squashedHalt reports whether a latch being discarded by a flush was a
// fetched-but-not-yet-retired HALT.
func squashedHalt(l Latch) bool {
	return l.Valid && l.Inst.Opcode == isa.HALT
}

func (e *Engine) allBubbles() bool {
	for _, l := range e.latches {
		if l.Valid && l.Inst.Opcode != isa.NOP {
			return false
		}
	}
	return true
}

// Snapshot returns a by-value copy of the current latches and counters.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Cycle:   e.Cycles,
		Latches: e.latches,
		Stalls:  e.Stalls,
		Flushes: e.Flushes,
	}
}

// ReportTiming writes the NF/WF timing surface described in §6: total
// stalls and total clock cycles, plus total flushes.
func (e *Engine) ReportTiming(w io.Writer) {
	fmt.Fprintf(w, "Cycles: %d\n", e.Cycles)
	fmt.Fprintf(w, "Stalls: %d\n", e.Stalls)
	fmt.Fprintf(w, "Flushes: %d\n", e.Flushes)
}
