package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/pipeline-sim/archstate"
)

func writeImage(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.hex")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestLoadParsesWordsInOrder(t *testing.T) {
	path := writeImage(t, []string{"0x04000005", "0X04010007", "00800802"})
	mem, count, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, uint32(0x04000005), mem[0])
	require.Equal(t, uint32(0x04010007), mem[1])
	require.Equal(t, uint32(0x00800802), mem[2])
	require.Equal(t, uint32(0), mem[3])
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := writeImage(t, []string{"0x44000011", "", "   ", "0x44000011"})
	_, count, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestLoadUnreadableFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.hex"))
	require.ErrorIs(t, err, ErrImageUnreadable)
}

func TestLoadMalformedLine(t *testing.T) {
	path := writeImage(t, []string{"not-hex"})
	_, _, err := Load(path)
	require.ErrorIs(t, err, ErrImageMalformed)
}

func TestLoadTooLarge(t *testing.T) {
	lines := make([]string, archstate.MemWords+1)
	for i := range lines {
		lines[i] = "0x44000011"
	}
	path := writeImage(t, lines)
	_, _, err := Load(path)
	require.ErrorIs(t, err, ErrImageTooLarge)
}
