package zmachine

import (
	"github.com/ifzm/mxyzptlk/dictionary"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zstring"
)

type token struct {
	bytes    []byte
	start    uint32
	dictAddr uint16
}

func tokeniseWord(z *ZMachine, raw []byte, start uint32, dict *dictionary.Dictionary) token {
	encoded := zstring.EncodeWords(string(raw), z.Mem.Version, z.Alphabets)
	return token{bytes: raw, start: start, dictAddr: dict.Find(encoded)}
}

// tokenise splits the text in textBuffer (as already written by
// sread/aread, or by the caller directly for the tokenise opcode) into
// words at spaces and the dictionary's declared separator characters,
// looks each one up, and writes the parse buffer (Standard 13.1/13.2).
// Grounded on the teacher's Tokenise, generalized to thread errors.
func (z *ZMachine) tokenise(textBuffer, parseBuffer uint32, dict *dictionary.Dictionary, leaveUnrecognizedBlank bool) *zerr.RuntimeError {
	start := textBuffer + 1
	var charCount uint32
	if z.Mem.Version >= 5 {
		b, err := z.Mem.ReadByte(start)
		if err != nil {
			return err
		}
		charCount = uint32(b)
		start++
	}

	var tokens []token
	wordStart := start
	pos := start
	flush := func(end uint32) *zerr.RuntimeError {
		if end <= wordStart {
			return nil
		}
		raw := make([]byte, end-wordStart)
		for i := range raw {
			b, err := z.Mem.ReadByte(wordStart + uint32(i))
			if err != nil {
				return err
			}
			raw[i] = b
		}
		tokens = append(tokens, tokeniseWord(z, raw, wordStart, dict))
		return nil
	}

	for {
		var b uint8
		var atEnd bool
		if z.Mem.Version < 5 {
			v, err := z.Mem.ReadByte(pos)
			if err != nil {
				return err
			}
			b = v
			atEnd = b == 0
		} else {
			atEnd = pos-start >= charCount
			if !atEnd {
				v, err := z.Mem.ReadByte(pos)
				if err != nil {
					return err
				}
				b = v
			}
		}
		if atEnd {
			if err := flush(pos); err != nil {
				return err
			}
			break
		}

		isSeparator := false
		for _, sep := range dict.Separators {
			if b == sep {
				isSeparator = true
				break
			}
		}

		if b == ' ' {
			if err := flush(pos); err != nil {
				return err
			}
			wordStart = pos + 1
		} else if isSeparator {
			if err := flush(pos); err != nil {
				return err
			}
			tokens = append(tokens, tokeniseWord(z, []byte{b}, pos, dict))
			wordStart = pos + 1
		}
		pos++
	}

	maxWords, err := z.Mem.ReadByte(parseBuffer)
	if err != nil {
		return err
	}
	if len(tokens) > int(maxWords) {
		tokens = tokens[:maxWords]
	}

	if err := z.Mem.WriteByte(parseBuffer+1, uint8(len(tokens))); err != nil {
		return err
	}
	ptr := parseBuffer + 2
	for _, t := range tokens {
		dictAddr := t.dictAddr
		if dictAddr == 0 && leaveUnrecognizedBlank {
			ptr += 4
			continue
		}
		if err := z.Mem.WriteWord(ptr, dictAddr); err != nil {
			return err
		}
		if err := z.Mem.WriteByte(ptr+2, uint8(len(t.bytes))); err != nil {
			return err
		}
		if err := z.Mem.WriteByte(ptr+3, uint8(t.start-textBuffer)); err != nil {
			return err
		}
		ptr += 4
	}
	return nil
}
