package zmachine

import (
	"context"
	"time"

	"github.com/ifzm/mxyzptlk/zerr"
)

// stubTerminal/stubPlayer/stubStorage are no-op implementations of the
// capability seam, enough to construct a ZMachine for tests that only
// exercise decoding or in-memory state, not actual I/O.

type stubTerminal struct{}

func (stubTerminal) Print(window int, text string, style TextStyle, fg, bg Color) {}
func (stubTerminal) SetCursor(line, col int)                                      {}
func (stubTerminal) SplitWindow(lines int)                                        {}
func (stubTerminal) EraseWindow(window int)                                       {}
func (stubTerminal) SetColor(window int, fg, bg Color)                            {}
func (stubTerminal) ShowStatus(place string, score, moves int, timeBased bool)    {}
func (stubTerminal) Bell()                                                        {}

type stubPlayer struct {
	line string
	char uint8
}

func (p stubPlayer) ReadLine(ctx context.Context, maxChars int, timeout time.Duration, preloaded string) (string, bool, *zerr.RuntimeError) {
	return p.line, false, nil
}
func (p stubPlayer) ReadChar(ctx context.Context, timeout time.Duration) (uint8, bool, *zerr.RuntimeError) {
	return p.char, false, nil
}

type stubStorage struct {
	saved map[string][]byte
}

func (s *stubStorage) WriteSaveFile(name string, data []byte) *zerr.RuntimeError {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[name] = append([]byte(nil), data...)
	return nil
}
func (s *stubStorage) ReadSaveFile(name string) ([]byte, *zerr.RuntimeError) {
	data, ok := s.saved[name]
	if !ok {
		return nil, zerr.Fatalf(zerr.FileError, "no such save file %q", name)
	}
	return data, nil
}

const (
	testInitialPC       = 0x100
	testDictionaryBase  = 0x40
	testObjectTableBase = 0x50
	testGlobalTableBase = 0x70
)

// newTestStory builds a minimal, otherwise-empty story image of the
// given version with
// program bytes placed at testInitialPC, large enough to host a header,
// an empty dictionary, an empty object table and the global table.
func newTestStory(version uint8, program []byte) []byte {
	size := testInitialPC + len(program) + 0x400
	b := make([]uint8, size)
	b[0] = version

	putWord := func(off int, v uint16) {
		b[off] = byte(v >> 8)
		b[off+1] = byte(v)
	}
	putWord(0x06, testInitialPC)
	putWord(0x08, testDictionaryBase)
	putWord(0x0a, testObjectTableBase)
	putWord(0x0c, testGlobalTableBase)
	putWord(0x0e, uint16(size)) // static mark = end of image, all dynamic
	putWord(0x18, 0)            // no abbreviations table

	// Empty dictionary: 0 separators, entry length 0, 0 entries.
	b[testDictionaryBase] = 0
	b[testDictionaryBase+1] = 0
	putWord(testDictionaryBase+2, 0)

	copy(b[testInitialPC:], program)
	return b
}

func newTestMachine(version uint8, program []byte) *ZMachine {
	story := newTestStory(version, program)
	z, err := Load(story, stubTerminal{}, stubPlayer{}, &stubStorage{}, PolicyIgnore)
	if err != nil {
		panic(err) // test fixture construction; a failure here is a test bug
	}
	return z
}
