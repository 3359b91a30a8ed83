package zmachine

import (
	"context"
	"strings"
	"time"

	"github.com/ifzm/mxyzptlk/dictionary"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zstring"
)

// showStatus renders the v3 implicit status line (the object named by
// global 0, plus either score/turns or a clock, Standard 8.2). Versions
// 4+ are expected to draw their own status bar from window 1, so this
// is a no-op there.
func (z *ZMachine) showStatus() *zerr.RuntimeError {
	if z.Mem.Version > 3 {
		return nil
	}
	locationId, err := z.readVariable(16, false)
	if err != nil {
		return err
	}
	var place string
	if locationId != 0 {
		obj, err := z.objects.Get(locationId)
		if err != nil {
			return err
		}
		place = obj.Name
	}
	score, err := z.readVariable(17, false)
	if err != nil {
		return err
	}
	moves, err := z.readVariable(18, false)
	if err != nil {
		return err
	}
	timeBased := z.Mem.Flags1()&0x02 != 0
	z.term.ShowStatus(place, int(signed16(score)), int(moves), timeBased)
	return nil
}

// terminatingChars returns the set of characters (beyond newline) that
// end a read, parsed from the story's terminating-characters table
// (v5+, Standard 7.5.4). Byte 255 is a shorthand for "every function
// key terminates".
func (z *ZMachine) terminatingChars() []uint8 {
	terms := []uint8{'\n'}
	if z.Mem.Version < 5 {
		return terms
	}
	base := z.Mem.TerminatingCharsBase()
	if base == 0 {
		return terms
	}
	for ptr := uint32(base); ; ptr++ {
		b := z.Mem.MustReadByte(ptr)
		if b == 0 {
			break
		}
		if b == 255 {
			for c := uint8(129); c <= 154; c++ {
				terms = append(terms, c)
			}
			terms = append(terms, 252, 253, 254)
			break
		}
		if (b >= 129 && b <= 154) || (b >= 252 && b <= 254) {
			terms = append(terms, b)
		}
	}
	return terms
}

// read implements sread (v1-4) and aread (v5+): Standard 7.5 / 10.7.
func (z *ZMachine) read(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	if z.Mem.Version <= 3 {
		if err := z.showStatus(); err != nil {
			return err
		}
	}
	z.screen.Flush()

	textBufferAddr, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}
	var parseBufferAddr uint16
	if len(opcode.Operands) > 1 {
		v, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		parseBufferAddr = v
	}

	var timeout time.Duration
	var routine uint16
	if len(opcode.Operands) > 3 {
		t, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		r, err := z.operand(opcode, 3)
		if err != nil {
			return err
		}
		timeout = time.Duration(t) * 100 * time.Millisecond
		routine = r
	}

	maxChars, err := z.Mem.ReadByte(uint32(textBufferAddr))
	if err != nil {
		return err
	}
	var preloaded string
	textStart := uint32(textBufferAddr) + 1
	if z.Mem.Version >= 5 {
		existing, err := z.Mem.ReadByte(textStart)
		if err != nil {
			return err
		}
		buf := make([]byte, existing)
		for i := range buf {
			buf[i] = z.Mem.MustReadByte(textStart + 1 + uint32(i))
		}
		preloaded = string(buf)
		textStart++
	}

	text, timedOut, rerr := z.player.ReadLine(context.Background(), int(maxChars), timeout, preloaded)
	if rerr != nil {
		return rerr
	}
	if timedOut && routine != 0 {
		// A timed-out read with an interrupt routine hands control to the
		// story; this interpreter doesn't re-enter read after the
		// interrupt returns with a non-zero value (Standard 7.5.5 is
		// satisfied enough for v5 games that just tick a clock display).
		return nil
	}

	text = strings.ToLower(text)
	if len(text) > int(maxChars) {
		text = text[:maxChars]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < 32 || c > 126 {
			c = ' '
		}
		if err := z.Mem.WriteByte(textStart+uint32(i), c); err != nil {
			return err
		}
	}
	if z.Mem.Version >= 5 {
		if err := z.Mem.WriteByte(uint32(textBufferAddr)+1, uint8(len(text))); err != nil {
			return err
		}
	} else {
		if err := z.Mem.WriteByte(textStart+uint32(len(text)), 0); err != nil {
			return err
		}
	}

	if parseBufferAddr != 0 {
		if err := z.tokenise(uint32(textBufferAddr), uint32(parseBufferAddr), z.dict, false); err != nil {
			return err
		}
	}

	if z.Mem.Version >= 5 {
		return z.storeResult(frame, '\n')
	}
	return nil
}

func (z *ZMachine) readChar(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	var timeout time.Duration
	if len(opcode.Operands) > 2 {
		t, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		timeout = time.Duration(t) * 100 * time.Millisecond
	}
	z.screen.Flush()
	chr, _, err := z.player.ReadChar(context.Background(), timeout)
	if err != nil {
		return err
	}
	return z.storeResult(frame, uint16(chr))
}

// opRandom implements the random opcode (Standard 2.4): a positive
// argument draws uniformly from [1, n]; zero reseeds from entropy;
// negative seeds the predictable cycling generator with |n|.
func (z *ZMachine) opRandom(n int16) uint16 {
	switch {
	case n > 0:
		return z.rng.Random(uint16(n))
	case n == 0:
		z.rng.Seed(0)
		return 0
	default:
		z.rng.Predictable(uint16(-n))
		return 0
	}
}

func (z *ZMachine) opSoundEffect(opcode *Opcode) *zerr.RuntimeError {
	if z.sound == nil {
		return nil
	}
	number, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}
	effect := uint16(2)
	if len(opcode.Operands) > 1 {
		if effect, err = z.operand(opcode, 1); err != nil {
			return err
		}
	}
	var volume uint8 = 8
	var repeatsArg *uint8
	if len(opcode.Operands) > 2 {
		v, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		volume = uint8(v & 0xff)
		r := uint8(v >> 8)
		repeatsArg = &r
	}

	switch effect {
	case 1: // prepare - nothing to preload, the whole sound is already resident
		return nil
	case 3:
		z.sound.Stop()
		return nil
	case 4: // unload
		return nil
	}
	return z.sound.Play(number, volume, repeatsArg)
}

// opTokenise implements the VAR tokenise opcode, which lets a story
// re-run the parser's word-splitting against an explicit buffer (and
// optionally a non-default dictionary), separately from sread/aread.
func (z *ZMachine) opTokenise(opcode *Opcode) *zerr.RuntimeError {
	textBuffer, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}
	parseBuffer, err := z.operand(opcode, 1)
	if err != nil {
		return err
	}
	dict := z.dict
	if len(opcode.Operands) > 2 {
		d, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		if d != 0 {
			if dict, err = dictionary.Parse(z.Mem, d, z.Mem.Version, z.Alphabets, z.Mem.AbbreviationsBase()); err != nil {
				return err
			}
		}
	}
	flag := false
	if len(opcode.Operands) > 3 {
		f, err := z.operand(opcode, 3)
		if err != nil {
			return err
		}
		flag = f != 0
	}
	return z.tokenise(uint32(textBuffer), uint32(parseBuffer), dict, flag)
}

// opEncodeText implements the VAR encode_text opcode: Z-encode up to
// length characters of zscii text starting at position `from` within
// the source buffer, and write the resulting 4 (v3) or 6 (v4+) bytes to
// coded-buffer (Standard 15's encode_text entry).
func (z *ZMachine) opEncodeText(opcode *Opcode) *zerr.RuntimeError {
	bufAddr, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}
	length, err := z.operand(opcode, 1)
	if err != nil {
		return err
	}
	from, err := z.operand(opcode, 2)
	if err != nil {
		return err
	}
	codedAddr, err := z.operand(opcode, 3)
	if err != nil {
		return err
	}

	raw := make([]byte, length)
	for i := range raw {
		raw[i] = z.Mem.MustReadByte(uint32(bufAddr) + uint32(from) + uint32(i))
	}
	encoded := zstring.EncodeWords(string(raw), z.Mem.Version, z.Alphabets)
	for i, b := range encoded {
		if err := z.Mem.WriteByte(uint32(codedAddr)+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}
