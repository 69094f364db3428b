// Package fsrun implements the FS (functional-only) mode: a read-execute
// loop that feeds the Decoder into the Functional Executor until HALT,
// with no pipeline timing modeled at all.
package fsrun

import (
	"fmt"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/executor"
	"github.com/lookbusy1344/pipeline-sim/isa"
)

// maxInstructions is the divergence cap: Run returns an error once this many
// instructions have executed without reaching HALT.
const maxInstructions = 200_000

// Run executes state's loaded program to completion via exec, starting at
// state.PC (expected to be 0 for a freshly loaded image). A fetch past the
// end of memory ends the run without error. It returns an error only on
// divergence; decode/execution diagnostics are non-fatal and surface
// through exec's logger.
func Run(state *archstate.State, exec *executor.Executor) error {
	for i := 0; i < maxInstructions; i++ {
		if state.PC >= archstate.MemWords*4 {
			exec.Logf("fetch out of bounds at pc=0x%08X, stopping", state.PC)
			return nil
		}

		word := state.Mem[state.PC/4]
		inst := isa.Decode(word)
		if inst.Class == isa.ClassInvalid {
			exec.Logf("decode: unknown opcode in word 0x%08X at pc=0x%08X, treated as NOP", word, state.PC)
		}

		pc := state.PC
		exec.Commit(inst, pc)

		if inst.Opcode == isa.HALT {
			return nil
		}
	}
	return fmt.Errorf("divergence: exceeded %d instructions without HALT", maxInstructions)
}
