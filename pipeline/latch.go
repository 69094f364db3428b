package pipeline

import "github.com/lookbusy1344/pipeline-sim/isa"

// Stage indexes the five pipeline latches (§4.5).
type Stage int

const (
	IF Stage = iota
	ID
	EX
	MEM
	WB
	numStages
)

func (s Stage) String() string {
	return [...]string{"IF", "ID", "EX", "MEM", "WB"}[s]
}

// Latch is the per-stage pipeline register described in §3: the decoded
// instruction, a valid flag (false means bubble/NOP), the PC of the carried
// instruction, an ALU/address result, a data-to-store value, and the
// branch-taken flag/target. Latches carry copies of decoded instructions and
// pre-read operand values, never references into the register file (§5).
type Latch struct {
	Valid bool
	Inst  isa.Instruction
	PC    uint32

	// ALUResult holds the arithmetic/logical result for R/I-class ops, and
	// the computed effective address for LDW/STW, once the EX phase runs.
	ALUResult int32

	// StoreVal is the register value to be stored by STW, captured (with
	// forwarding, in WF mode) at the EX phase.
	StoreVal int32

	// LoadVal holds the word read from memory for LDW, once the MEM phase
	// runs; it is the value forwarded to a consumer in EX the same cycle.
	LoadVal int32

	BranchTaken  bool
	BranchTarget uint32
}

// bubble is a zero-value latch with an explicit NOP opcode, matching the
// "bubbles have valid=false and an opcode tag equal to NOP" invariant.
func bubble() Latch {
	return Latch{Inst: isa.Instruction{Opcode: isa.NOP}}
}

// destReg reports the destination register this latch's instruction would
// write, honoring the invariant that only latches still valid can be
// forwarding/hazard producers.
func (l Latch) destReg() (reg uint8, writes bool) {
	if !l.Valid {
		return 0, false
	}
	return isa.DestReg(l.Inst)
}

// producedValue returns the value this latch would write to its
// destination register, for forwarding. It must only be called when
// destReg reports writes == true.
func (l Latch) producedValue() int32 {
	if l.Inst.Opcode == isa.LDW {
		return l.LoadVal
	}
	return l.ALUResult
}
