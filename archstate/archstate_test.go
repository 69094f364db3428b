package archstate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestR0WritesSuppressed(t *testing.T) {
	s := New()
	s.WriteReg(0, 42)
	require.Equal(t, int32(0), s.Read(0), "R0 must always read as 0")
	require.False(t, s.RegWritten[0], "R0 must never be marked written")
}

func TestWriteRegMarksWritten(t *testing.T) {
	s := New()
	s.WriteReg(3, -7)
	require.Equal(t, int32(-7), s.Read(3))
	require.True(t, s.RegWritten[3])
}

func TestWriteMemMarksChanged(t *testing.T) {
	s := New()
	s.WriteMem(10, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), s.ReadMem(10))
	require.True(t, s.MemChanged[10])
	require.False(t, s.MemChanged[11])
}

func TestReportOmitsUnwrittenZeroRegisters(t *testing.T) {
	s := New()
	s.WriteReg(1, 5)
	s.PC = 8

	var buf bytes.Buffer
	s.Report(&buf)
	out := buf.String()

	require.Contains(t, out, "R1  = 5")
	require.NotContains(t, out, "R2 ")
	require.Contains(t, out, "PC: 0x00000008")
}

func TestReportListsChangedMemoryByByteAddress(t *testing.T) {
	s := New()
	s.WriteMem(2, 99)

	var buf bytes.Buffer
	s.Report(&buf)
	require.Contains(t, buf.String(), "MEM[0x0008] = 0x00000063")
}
