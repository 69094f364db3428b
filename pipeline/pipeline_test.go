package pipeline

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/pipeline-sim/archstate"
	"github.com/lookbusy1344/pipeline-sim/executor"
	"github.com/lookbusy1344/pipeline-sim/isa"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func assemble(insts []isa.Instruction) [archstate.MemWords]uint32 {
	var mem [archstate.MemWords]uint32
	for i, inst := range insts {
		mem[i] = isa.Encode(inst)
	}
	return mem
}

func runEngine(t *testing.T, mem [archstate.MemWords]uint32, forwarding bool) (*archstate.State, *Engine) {
	t.Helper()
	s := archstate.New()
	s.Mem = mem
	exec := executor.New(s, discardLogger())
	eng := New(s, exec, forwarding, discardLogger())
	require.NoError(t, eng.Run())
	return s, eng
}

var s1Program = []isa.Instruction{
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 5},
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 2, Imm: 7},
	{Opcode: isa.ADD, Class: isa.ClassR, Rs: 1, Rt: 2, Rd: 3},
	{Opcode: isa.HALT, Class: isa.ClassI},
}

// TestS1FunctionalEquivalence checks spec.md S1's functional results
// (§8 testable property 2: FS/NF/WF must agree) and the WF cycle count the
// scenario specifies. See DESIGN.md for why this test does not assert the
// scenario's NF stall count: reusing R1 two instructions later and R2 one
// instruction later is itself a RAW hazard under the no-forwarding stall
// rule (§4.6), so a correct NF implementation must stall there — the
// NF-mode "Stalls = 0" in spec.md's S1 narrative does not survive applying
// the same rule that produces S2's NF stall count of 2.
func TestS1FunctionalEquivalence(t *testing.T) {
	mem := assemble(s1Program)

	nfState, nfEng := runEngine(t, mem, false)
	wfState, wfEng := runEngine(t, mem, true)

	require.Equal(t, int32(5), nfState.Read(1))
	require.Equal(t, int32(7), nfState.Read(2))
	require.Equal(t, int32(12), nfState.Read(3))
	require.Equal(t, nfState.R, wfState.R)
	require.Equal(t, nfState.PC, wfState.PC)
	require.Equal(t, nfState.Counters, wfState.Counters)

	require.Equal(t, uint64(0), wfEng.Stalls)
	require.Equal(t, uint64(8), wfEng.Cycles)

	require.GreaterOrEqual(t, nfEng.Cycles, wfEng.Cycles)
}

var s2Program = []isa.Instruction{
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 5},
	{Opcode: isa.ADD, Class: isa.ClassR, Rs: 1, Rt: 1, Rd: 2},
	{Opcode: isa.HALT, Class: isa.ClassI},
}

// TestS2RAWRequiresStall mirrors spec.md scenario S2.
func TestS2RAWRequiresStall(t *testing.T) {
	mem := assemble(s2Program)

	nfState, nfEng := runEngine(t, mem, false)
	wfState, wfEng := runEngine(t, mem, true)

	require.Equal(t, int32(5), nfState.Read(1))
	require.Equal(t, int32(10), nfState.Read(2))
	require.Equal(t, nfState.R, wfState.R)

	require.Equal(t, uint64(2), nfEng.Stalls)
	require.Equal(t, uint64(0), wfEng.Stalls)
}

var s3Program = []isa.Instruction{
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 0},
	{Opcode: isa.STW, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 0},
	{Opcode: isa.LDW, Class: isa.ClassI, Rs: 0, Rt: 2, Imm: 0},
	{Opcode: isa.ADD, Class: isa.ClassR, Rs: 2, Rt: 2, Rd: 3},
	{Opcode: isa.HALT, Class: isa.ClassI},
}

// TestS3LoadUseStall mirrors spec.md scenario S3.
func TestS3LoadUseStall(t *testing.T) {
	mem := assemble(s3Program)

	nfState, nfEng := runEngine(t, mem, false)
	wfState, wfEng := runEngine(t, mem, true)

	require.Equal(t, int32(0), nfState.Read(2))
	require.Equal(t, int32(0), nfState.Read(3))
	require.Equal(t, nfState.R, wfState.R)

	require.Equal(t, uint64(1), wfEng.Stalls)
	require.GreaterOrEqual(t, nfEng.Stalls, uint64(2))
}

// s4Program mirrors spec.md scenario S4: a decrement loop that exits via a
// taken BZ and otherwise re-enters the loop via an (always-taken, per §4.4)
// JR back to the loop top.
//
//	ADDI R1, R0, 3   ; R1 = 3
//	ADDI R4, R0, 8   ; R4 = address of the loop top (SUBI, below)
//	SUBI R1, R1, 1   ; loop top
//	BZ   R1, 2       ; exit to HALT once R1 == 0
//	JR   R4          ; otherwise jump back to the loop top
//	HALT
var s4Program = []isa.Instruction{
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 3},
	{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 4, Imm: 8},
	{Opcode: isa.SUBI, Class: isa.ClassI, Rs: 1, Rt: 1, Imm: 1},
	{Opcode: isa.BZ, Class: isa.ClassI, Rs: 1, Imm: 2},
	{Opcode: isa.JR, Class: isa.ClassI, Rs: 4},
	{Opcode: isa.HALT, Class: isa.ClassI},
}

func TestS4TakenBackwardBranch(t *testing.T) {
	mem := assemble(s4Program)

	for _, forwarding := range []bool{false, true} {
		state, eng := runEngine(t, mem, forwarding)
		require.Equal(t, int32(0), state.Read(1))
		require.Equal(t, uint32(24), state.PC)
		// R1 decrements 3 -> 2 -> 1 -> 0: two loop iterations re-enter via
		// the always-taken JR, and the third BZ evaluation takes the exit,
		// for three taken branches total, each costing a 2-slot flush.
		require.Equal(t, uint64(3)*2, eng.Flushes)
	}
}

// TestJRSkipsToHaltAtExpectedAddress mirrors spec.md scenario S5.
func TestJRSkipsToHaltAtExpectedAddress(t *testing.T) {
	insts := []isa.Instruction{
		{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 1, Imm: 12},
		{Opcode: isa.JR, Class: isa.ClassI, Rs: 1},
		{Opcode: isa.HALT, Class: isa.ClassI},
		{Opcode: isa.ADDI, Class: isa.ClassI, Rs: 0, Rt: 2, Imm: 99},
		{Opcode: isa.HALT, Class: isa.ClassI},
	}
	mem := assemble(insts)

	for _, forwarding := range []bool{false, true} {
		state, _ := runEngine(t, mem, forwarding)
		require.Equal(t, int32(12), state.Read(1))
		require.Equal(t, int32(99), state.Read(2))
		require.Equal(t, uint32(20), state.PC)
	}
}

func TestUnalignedStoreDoesNotHaltAbnormally(t *testing.T) {
	insts := []isa.Instruction{
		{Opcode: isa.STW, Class: isa.ClassI, Rs: 0, Rt: 0, Imm: 1},
		{Opcode: isa.HALT, Class: isa.ClassI},
	}
	mem := assemble(insts)

	for _, forwarding := range []bool{false, true} {
		state, _ := runEngine(t, mem, forwarding)
		for i := range state.MemChanged {
			require.False(t, state.MemChanged[i])
		}
	}
}
