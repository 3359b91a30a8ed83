// Package zsound implements the sound_effect opcode's engine: a table
// of numbered effects loaded from a Blorb resource file, handed off to
// a host-provided Player for actual playback. Grounded on the original
// interpreter's sound::Engine, restructured around the teacher's
// error-returning style instead of Result<(), RuntimeError>.
package zsound

import (
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/ziff"
)

// Effect is one playable sound, resolved from a Blorb resource.
type Effect struct {
	Number  uint32
	Repeats uint32 // from the Blorb Loop chunk; 0 means "loop forever"
	Data    []byte
}

// Player is the host playback capability: everything sound_effect
// needs from a real audio backend.
type Player interface {
	IsPlaying() bool
	PlaySound(data []byte, volume uint8, repeats uint8) *zerr.RuntimeError
	StopSound()
	ChangeVolume(volume uint8)
}

// Engine owns the effect table and forwards playback requests to the
// host Player. A nil Player is valid: every method becomes a no-op,
// which is how a headless conformance run exercises sound_effect
// without a real audio device.
type Engine struct {
	player  Player
	effects map[uint32]Effect
	current uint32
}

// NewEngine loads effects from a parsed Blorb resource file.
func NewEngine(player Player, blorb *ziff.Blorb) *Engine {
	e := &Engine{player: player, effects: map[uint32]Effect{}}
	if blorb == nil {
		return e
	}
	for _, idx := range blorb.Index {
		if idx.Usage != "Snd " {
			continue
		}
		data := blorb.Sounds[idx.Start]
		if data == nil {
			continue
		}
		e.effects[idx.Number] = Effect{Number: idx.Number, Repeats: blorb.RepeatsFor(idx.Number), Data: data}
	}
	return e
}

func (e *Engine) CurrentEffect() uint32 { return e.current }

func (e *Engine) IsPlaying() bool {
	if e.player == nil {
		return false
	}
	return e.player.IsPlaying()
}

// Play starts effect, per the sound_effect opcode's repeats argument:
// 255 means loop forever (encoded as host repeat count 0), an absent
// repeats argument falls back to the effect's own Blorb Loop count, and
// a missing effect number is silently ignored (Standard 9.1 leaves this
// implementation-defined; the original interpreter logs and continues).
func (e *Engine) Play(effect uint16, volume uint8, repeats *uint8) *zerr.RuntimeError {
	if e.player == nil {
		return nil
	}
	sound, ok := e.effects[uint32(effect)]
	if !ok {
		return nil
	}

	r := uint8(1)
	switch {
	case repeats != nil && *repeats == 255:
		r = 0
	case repeats != nil:
		r = *repeats
	case sound.Repeats == 0:
		r = 0
	default:
		r = uint8(sound.Repeats)
	}

	e.current = effect
	return e.player.PlaySound(sound.Data, volume, r)
}

func (e *Engine) Stop() {
	if e.player != nil {
		e.player.StopSound()
	}
	e.current = 0
}

func (e *Engine) ChangeVolume(volume uint8) {
	if e.player != nil {
		e.player.ChangeVolume(volume)
	}
}

// Count returns how many resolvable effects the Blorb supplied.
func (e *Engine) Count() int { return len(e.effects) }
