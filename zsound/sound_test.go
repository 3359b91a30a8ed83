package zsound

import (
	"testing"

	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/ziff"
)

type fakePlayer struct {
	playing    bool
	lastData   []byte
	lastVolume uint8
	lastRepeat uint8
	stopped    bool
	volume     uint8
}

func (f *fakePlayer) IsPlaying() bool { return f.playing }
func (f *fakePlayer) PlaySound(data []byte, volume uint8, repeats uint8) *zerr.RuntimeError {
	f.playing = true
	f.lastData = data
	f.lastVolume = volume
	f.lastRepeat = repeats
	return nil
}
func (f *fakePlayer) StopSound()           { f.playing = false; f.stopped = true }
func (f *fakePlayer) ChangeVolume(v uint8) { f.volume = v }

func testBlorb() *ziff.Blorb {
	return &ziff.Blorb{
		Index: []ziff.ResourceIndex{{Usage: "Snd ", Number: 3, Start: 100}},
		Loops: []ziff.LoopEntry{{Number: 3, Repeats: 4}},
		Sounds: map[uint32][]byte{
			100: []byte("fake-audio"),
		},
	}
}

func TestEngineNilPlayerIsNoop(t *testing.T) {
	e := NewEngine(nil, testBlorb())
	if e.Count() != 1 {
		t.Fatalf("expected 1 resolvable effect, got %d", e.Count())
	}
	if err := e.Play(3, 8, nil); err != nil {
		t.Fatalf("expected nil error with a nil player, got %v", err)
	}
	if e.IsPlaying() {
		t.Fatal("expected IsPlaying false with a nil player")
	}
	e.Stop()
	e.ChangeVolume(5) // must not panic
}

func TestPlayUsesEffectLoopCountByDefault(t *testing.T) {
	p := &fakePlayer{}
	e := NewEngine(p, testBlorb())

	if err := e.Play(3, 8, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.lastRepeat != 4 {
		t.Fatalf("expected the Blorb Loop count (4) when repeats is nil, got %d", p.lastRepeat)
	}
	if e.CurrentEffect() != 3 {
		t.Fatalf("expected current effect 3, got %d", e.CurrentEffect())
	}
}

func TestPlayExplicitRepeatsOverridesLoopCount(t *testing.T) {
	p := &fakePlayer{}
	e := NewEngine(p, testBlorb())

	two := uint8(2)
	if err := e.Play(3, 8, &two); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.lastRepeat != 2 {
		t.Fatalf("expected explicit repeat count 2, got %d", p.lastRepeat)
	}
}

func TestPlay255MeansLoopForever(t *testing.T) {
	p := &fakePlayer{}
	e := NewEngine(p, testBlorb())

	forever := uint8(255)
	if err := e.Play(3, 8, &forever); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.lastRepeat != 0 {
		t.Fatalf("expected host repeat count 0 for loop-forever, got %d", p.lastRepeat)
	}
}

func TestPlayUnknownEffectIsSilentlyIgnored(t *testing.T) {
	p := &fakePlayer{}
	e := NewEngine(p, testBlorb())

	if err := e.Play(404, 8, nil); err != nil {
		t.Fatalf("expected nil error for an unresolvable effect, got %v", err)
	}
	if p.playing {
		t.Fatal("expected no playback for an unresolvable effect")
	}
}

func TestStopResetsCurrentEffect(t *testing.T) {
	p := &fakePlayer{}
	e := NewEngine(p, testBlorb())
	_ = e.Play(3, 8, nil)
	e.Stop()
	if e.CurrentEffect() != 0 {
		t.Fatalf("expected current effect reset to 0 after Stop, got %d", e.CurrentEffect())
	}
	if !p.stopped {
		t.Fatal("expected the underlying player's StopSound to be called")
	}
}
