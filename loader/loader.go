// Package loader implements the Image Loader (§4.1): it parses an ASCII
// memory image file, one hexadecimal 32-bit word per line, into the
// simulator's 1024-word memory array.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lookbusy1344/pipeline-sim/archstate"
)

// Sentinel errors for the three fatal Image Loader failures (§7). Wrap with
// %w so callers can both test with errors.Is and print a specific line/file.
var (
	ErrImageUnreadable = errors.New("image-unreadable")
	ErrImageTooLarge   = errors.New("image-too-large")
	ErrImageMalformed  = errors.New("image-malformed")
)

// Load reads the memory image at path and returns the populated memory
// array plus the count of words actually present (remaining words are
// zero). Blank lines are skipped rather than treated as malformed,
// matching the original trace-reader's behavior.
func Load(path string) (mem [archstate.MemWords]uint32, count int, err error) {
	f, openErr := os.Open(path) // #nosec G304 -- path is an explicit CLI argument
	if openErr != nil {
		return mem, 0, fmt.Errorf("%w: %s: %v", ErrImageUnreadable, path, openErr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if count >= archstate.MemWords {
			return mem, count, fmt.Errorf("%w: %s has more than %d words", ErrImageTooLarge, path, archstate.MemWords)
		}

		word, parseErr := parseHexWord(line)
		if parseErr != nil {
			return mem, count, fmt.Errorf("%w: %s line %d: %v", ErrImageMalformed, path, lineNum, parseErr)
		}

		mem[count] = word
		count++
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return mem, count, fmt.Errorf("%w: %s: %v", ErrImageUnreadable, path, scanErr)
	}

	return mem, count, nil
}

func parseHexWord(line string) (uint32, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("not a valid hex word: %q", line)
	}
	return uint32(v), nil
}
