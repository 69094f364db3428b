// Package executor implements the Functional Executor: the single commit
// entry point that is the sole mutator of architectural registers, memory,
// and PC (§4.4). It is used directly by the FS read-execute loop and by the
// WB stage of either pipeline variant.
package executor

import (
	"log"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/isa"
)

// Executor commits decoded instructions against a shared architectural
// State. Diagnostics (unaligned access, out-of-bounds access, unknown
// opcode) are non-fatal in normal operation: they are logged and execution
// continues, per §7.
type Executor struct {
	State  *archstate.State
	Log    *log.Logger
	Halted bool
}

// New returns an Executor over state. logger may be the discard logger when
// --debug is not set; see the config/CLI wiring in main.go.
func New(state *archstate.State, logger *log.Logger) *Executor {
	return &Executor{State: state, Log: logger}
}

// Commit executes one decoded instruction against architectural state. pc is
// the byte address the instruction was fetched from; it is threaded
// explicitly (rather than implied by State.PC) so that pipelined retirement
// — where the architectural PC trails the pipeline's own fetch PC — and the
// FS loop — where they coincide — share this one code path. See
// SPEC_FULL.md "Functional Executor (expanded)".
func (e *Executor) Commit(inst isa.Instruction, pc uint32) {
	s := e.State

	switch inst.Opcode {
	case isa.ADD:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)+s.Read(inst.Rt))
	case isa.SUB:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)-s.Read(inst.Rt))
	case isa.MUL:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)*s.Read(inst.Rt))
	case isa.ADDI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)+inst.Imm)
	case isa.SUBI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)-inst.Imm)
	case isa.MULI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)*inst.Imm)

	case isa.OR:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)|s.Read(inst.Rt))
	case isa.AND:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)&s.Read(inst.Rt))
	case isa.XOR:
		s.WriteReg(inst.Rd, s.Read(inst.Rs)^s.Read(inst.Rt))
	case isa.ORI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)|inst.Imm)
	case isa.ANDI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)&inst.Imm)
	case isa.XORI:
		s.WriteReg(inst.Rt, s.Read(inst.Rs)^inst.Imm)

	case isa.LDW:
		addr := uint32(s.Read(inst.Rs) + inst.Imm)
		if val, ok := e.readWord(addr); ok {
			s.WriteReg(inst.Rt, int32(val))
		} else {
			s.WriteReg(inst.Rt, 0)
		}

	case isa.STW:
		addr := uint32(s.Read(inst.Rs) + inst.Imm)
		e.writeWord(addr, uint32(s.Read(inst.Rt)))

	case isa.BZ:
		s.PC = pc + 4
		if s.Read(inst.Rs) == 0 {
			s.PC = pc + uint32(inst.Imm*4)
		}
		s.Counters.ControlTransfer++
		s.Counters.Total++
		return

	case isa.BEQ:
		s.PC = pc + 4
		if s.Read(inst.Rs) == s.Read(inst.Rt) {
			s.PC = pc + uint32(inst.Imm*4)
		}
		s.Counters.ControlTransfer++
		s.Counters.Total++
		return

	case isa.JR:
		s.PC = uint32(s.Read(inst.Rs))
		s.Counters.ControlTransfer++
		s.Counters.Total++
		return

	case isa.HALT:
		s.PC = pc + 4
		e.Halted = true
		s.Counters.ControlTransfer++
		s.Counters.Total++
		return

	case isa.NOP:
		// No architectural effect and not counted at all (§4.4).
		return

	default:
		e.logf("commit: unknown opcode 0x%02X at pc=0x%08X, treated as NOP", uint8(inst.Opcode), pc)
		return
	}

	s.PC = pc + 4

	switch {
	case isa.IsArithmetic(inst.Opcode):
		s.Counters.Arithmetic++
	case isa.IsLogical(inst.Opcode):
		s.Counters.Logical++
	case isa.IsMemoryAccess(inst.Opcode):
		s.Counters.MemoryAccess++
	}
	s.Counters.Total++
}

// readWord performs the LDW alignment/bounds check and returns (value, ok).
// On failure it logs a diagnostic and returns (0, false); the caller reads 0
// per §7's "behavior is implementation-defined (read 0 / suppress store)".
func (e *Executor) readWord(addr uint32) (uint32, bool) {
	if addr%4 != 0 {
		e.logf("unaligned LDW address 0x%08X", addr)
		return 0, false
	}
	if addr >= archstate.MemWords*4 {
		e.logf("out-of-bounds LDW address 0x%08X", addr)
		return 0, false
	}
	return e.State.ReadMem(addr / 4), true
}

// writeWord performs the STW alignment/bounds check, logging and suppressing
// the store on failure.
func (e *Executor) writeWord(addr uint32, value uint32) {
	if addr%4 != 0 {
		e.logf("unaligned STW address 0x%08X", addr)
		return
	}
	if addr >= archstate.MemWords*4 {
		e.logf("out-of-bounds STW address 0x%08X", addr)
		return
	}
	e.State.WriteMem(addr/4, value)
}

func (e *Executor) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// Logf emits a diagnostic through the executor's logger. It is exported so
// callers outside this package (the FS loop, the pipeline engine's decode
// stage) can report decode-time diagnostics — e.g. an unknown opcode — with
// the same discard-unless-debug behavior as commit-time diagnostics.
func (e *Executor) Logf(format string, args ...any) {
	e.logf(format, args...)
}
