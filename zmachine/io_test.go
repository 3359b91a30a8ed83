package zmachine

import (
	"testing"

	"github.com/ifzm/mxyzptlk/zstring"
)

type recordingTerminal struct {
	stubTerminal
	place     string
	score     int
	moves     int
	gotStatus bool
}

func (r *recordingTerminal) ShowStatus(place string, score, moves int, timeBased bool) {
	r.place = place
	r.score = score
	r.moves = moves
	r.gotStatus = true
}

func TestShowStatusV3RendersScoreAndMoves(t *testing.T) {
	story := newTestStory(3, []byte{0x00})
	term := &recordingTerminal{}
	z, err := Load(story, term, stubPlayer{}, &stubStorage{}, PolicyIgnore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// global 16 (the current location) left at 0 so showStatus skips the
	// object lookup; globals 17/18 hold score and move count.
	if werr := z.writeVariable(17, 42, false); werr != nil {
		t.Fatalf("unexpected error: %v", werr)
	}
	if werr := z.writeVariable(18, 7, false); werr != nil {
		t.Fatalf("unexpected error: %v", werr)
	}

	if serr := z.showStatus(); serr != nil {
		t.Fatalf("unexpected error: %v", serr)
	}
	if !term.gotStatus {
		t.Fatal("expected ShowStatus to be called")
	}
	if term.score != 42 || term.moves != 7 {
		t.Fatalf("expected score 42 moves 7, got score %d moves %d", term.score, term.moves)
	}
}

func TestShowStatusV4IsNoop(t *testing.T) {
	story := newTestStory(4, []byte{0x00})
	term := &recordingTerminal{}
	z, err := Load(story, term, stubPlayer{}, &stubStorage{}, PolicyIgnore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if serr := z.showStatus(); serr != nil {
		t.Fatalf("unexpected error: %v", serr)
	}
	if term.gotStatus {
		t.Fatal("expected v4+ showStatus to be a no-op")
	}
}

func TestReadCharReturnsPlayerInput(t *testing.T) {
	z := newTestMachine(5, []byte{0x00})
	z.player = stubPlayer{char: 'q'}
	frame, ferr := z.callStack.peek()
	if ferr != nil {
		t.Fatalf("unexpected error: %v", ferr)
	}
	// readChar's result-store byte follows the instruction in the
	// bytecode, same as any other store-result opcode.
	if werr := z.Mem.WriteByte(frame.pc, 16); werr != nil {
		t.Fatalf("unexpected error: %v", werr)
	}

	opcode := &Opcode{Count: VAR, Number: 22, Operands: []Operand{{Type: smallConstant, value: 1}}}
	if err := z.readChar(opcode, frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := globalValue(t, z, 16); got != uint16('q') {
		t.Fatalf("expected global 16 = 'q', got %d", got)
	}
}

func TestOpRandomPositiveDrawsInRange(t *testing.T) {
	z := newTestMachine(3, []byte{0x00})
	for i := 0; i < 20; i++ {
		v := z.opRandom(6)
		if v < 1 || v > 6 {
			t.Fatalf("expected a draw in [1,6], got %d", v)
		}
	}
}

func TestOpRandomNegativeSeedsPredictableCycle(t *testing.T) {
	z := newTestMachine(3, []byte{0x00})
	if v := z.opRandom(-3); v != 0 {
		t.Fatalf("expected seeding call to return 0, got %d", v)
	}
	want := []uint16{1, 2, 3, 1, 2, 3}
	for i, w := range want {
		if got := z.rng.Random(3); got != w {
			t.Fatalf("draw %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestOpSoundEffectWithNoPlayerIsNoop(t *testing.T) {
	z := newTestMachine(5, []byte{0x00})
	opcode := &Opcode{Count: VAR, Number: 21, Operands: []Operand{{Type: smallConstant, value: 3}}}
	if err := z.opSoundEffect(opcode); err != nil {
		t.Fatalf("expected sound_effect with no sound engine to be a silent no-op, got %v", err)
	}
}

func TestOpEncodeTextRoundTripsThroughDecode(t *testing.T) {
	z := newTestMachine(3, []byte{0x00})

	const srcBuf = uint32(0x200)
	const codedBuf = uint32(0x210)
	word := "hello"
	for i := 0; i < len(word); i++ {
		if err := z.Mem.WriteByte(srcBuf+uint32(i), word[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	opcode := &Opcode{
		Count:  VAR,
		Number: 28,
		Operands: []Operand{
			{Type: largeConstant, value: uint16(srcBuf)},
			{Type: smallConstant, value: uint16(len(word))},
			{Type: smallConstant, value: 0},
			{Type: largeConstant, value: uint16(codedBuf)},
		},
	}
	if err := z.opEncodeText(opcode); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, _, derr := zstring.Decode(z.Mem, codedBuf, z.Alphabets, z.Mem.AbbreviationsBase())
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if decoded != word {
		t.Fatalf("expected round-tripped text %q, got %q", word, decoded)
	}
}
