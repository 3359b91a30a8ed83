// Package zstring implements the ZSCII text codec: three 5-bit
// Z-characters packed per 16-bit word, alphabet shifting, abbreviation
// expansion and the optional extended Unicode translation table.
// Grounded on the teacher's zstring package, generalized to thread
// errors instead of panicking and to support custom (v5+) alphabets.
package zstring

import (
	"encoding/binary"
	"strings"

	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zerr"
)

var a0Default = [26]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1Default = [26]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}

// a2Default row 0 is the newline (alphabet-2, z-char 7 per spec.md S4.2).
var a2Default = [26]byte{'\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')', ' '}

// Alphabets holds the three 26-entry alphabet tables in effect for a
// story, which are custom on v5+ when the header's alphabet table
// address (Memory.AltCharSetBase) is non-zero.
type Alphabets struct {
	A0, A1, A2 [26]byte
}

// LoadAlphabets returns the default tables, or the story's custom
// tables if it provides them (v5+ only).
func LoadAlphabets(mem *zcore.Memory, altCharSetBase uint16) *Alphabets {
	a := &Alphabets{A0: a0Default, A1: a1Default, A2: a2Default}
	if altCharSetBase == 0 {
		return a
	}
	for i := 0; i < 26; i++ {
		a.A0[i] = mem.MustReadByte(uint32(altCharSetBase) + uint32(i))
		a.A1[i] = mem.MustReadByte(uint32(altCharSetBase) + 26 + uint32(i))
		a.A2[i] = mem.MustReadByte(uint32(altCharSetBase) + 52 + uint32(i))
	}
	// Row 0 of alphabet 2 is always newline, even with a custom table.
	a.A2[0] = '\n'
	return a
}

const maxAbbreviationDepth = 1

// Decode reads a Z-string starting at addr and returns the decoded
// text plus the number of bytes consumed (always a multiple of 2).
func Decode(mem *zcore.Memory, addr uint32, alphabets *Alphabets, abbreviationsBase uint16) (string, uint32, *zerr.RuntimeError) {
	return decode(mem, addr, alphabets, abbreviationsBase, 0)
}

func decode(mem *zcore.Memory, addr uint32, alphabets *Alphabets, abbreviationsBase uint16, depth int) (string, uint32, *zerr.RuntimeError) {
	var zchars []uint8
	ptr := addr
	for {
		word, err := mem.ReadWord(ptr)
		if err != nil {
			return "", 0, err
		}
		ptr += 2
		zchars = append(zchars, uint8((word>>10)&0x1f), uint8((word>>5)&0x1f), uint8(word&0x1f))
		if word&0x8000 != 0 {
			break
		}
	}

	var out strings.Builder
	shift := 0 // non-persistent alphabet shift for the next character only
	for i := 0; i < len(zchars); i++ {
		zc := zchars[i]
		alphabet := shift
		shift = 0

		switch {
		case zc == 0:
			out.WriteByte(' ')
		case zc >= 1 && zc <= 3:
			if depth >= maxAbbreviationDepth {
				return "", 0, zerr.Recoverablef(zerr.InvalidAbbreviation, "abbreviation trigger inside an abbreviation expansion")
			}
			if i+1 >= len(zchars) {
				return "", 0, zerr.Recoverablef(zerr.InvalidAbbreviation, "truncated abbreviation escape at end of string")
			}
			i++
			x := zchars[i]
			expansion, err := expandAbbreviation(mem, alphabets, abbreviationsBase, zc, x, depth)
			if err != nil {
				return "", 0, err
			}
			out.WriteString(expansion)
		case zc == 4:
			shift = 1
		case zc == 5:
			shift = 2
		case alphabet == 2 && zc == 6:
			if i+2 >= len(zchars) {
				return "", 0, zerr.Recoverablef(zerr.InvalidInstruction, "truncated ZSCII literal at end of string")
			}
			code := (uint16(zchars[i+1]) << 5) | uint16(zchars[i+2])
			i += 2
			out.WriteRune(zsciiLiteralToRune(uint8(code), mem))
		default:
			out.WriteByte(alphabetChar(alphabets, alphabet, zc))
		}
	}

	return out.String(), ptr - addr, nil
}

func alphabetChar(a *Alphabets, alphabet int, zc uint8) byte {
	switch alphabet {
	case 1:
		return a.A1[zc-6]
	case 2:
		return a.A2[zc-6]
	default:
		return a.A0[zc-6]
	}
}

// zsciiLiteralToRune decodes the 10-bit ZSCII literal: 32-126 are
// ASCII; 155-251 are the optional extended table; everything else is
// '?' (spec.md S4.2).
func zsciiLiteralToRune(code uint8, mem *zcore.Memory) rune {
	if code >= 32 && code <= 126 {
		return rune(code)
	}
	if code >= 155 && code <= 251 {
		if r, ok := ZsciiToUnicode(code, mem); ok {
			return r
		}
	}
	return '?'
}

func expandAbbreviation(mem *zcore.Memory, alphabets *Alphabets, abbreviationsBase uint16, z, x uint8, depth int) (string, *zerr.RuntimeError) {
	if abbreviationsBase == 0 {
		return "", zerr.Recoverablef(zerr.InvalidAbbreviation, "story has no abbreviation table")
	}
	abbrIx := 32*(uint16(z)-1) + uint16(x)
	entryAddr := uint32(abbreviationsBase) + 2*uint32(abbrIx)
	wordAddr, err := mem.ReadWord(entryAddr)
	if err != nil {
		return "", err
	}
	strAddr := uint32(wordAddr) * 2
	text, _, err := decode(mem, strAddr, alphabets, abbreviationsBase, depth+1)
	return text, err
}

// Encode lowercases and Z-char-encodes s for dictionary lookup,
// truncating or padding (with Z-char 5) to 6 Z-chars (v3) or 9 (v4+)
// and setting bit 15 on the last word.
func Encode(s string, version uint8, alphabets *Alphabets) []uint16 {
	zchars := make([]uint8, 0, 9)
	for _, r := range strings.ToLower(s) {
		zchars = append(zchars, encodeRune(byte(r), alphabets)...)
	}

	target := 6
	if version >= 4 {
		target = 9
	}
	if len(zchars) > target {
		zchars = zchars[:target]
	}
	for len(zchars) < target {
		zchars = append(zchars, 5)
	}

	words := make([]uint16, target/3)
	for i := range words {
		words[i] = uint16(zchars[i*3])<<10 | uint16(zchars[i*3+1])<<5 | uint16(zchars[i*3+2])
	}
	words[len(words)-1] |= 0x8000
	return words
}

func indexOf(table [26]byte, c byte) int {
	for i, t := range table {
		if t == c {
			return i
		}
	}
	return -1
}

// encodeRune converts one input byte into the Z-chars needed to
// reproduce it: a direct alphabet-0 index, a 4-shift plus alphabet-1
// index, a 5-shift plus alphabet-2 index, or a two-part ZSCII literal
// for anything else.
func encodeRune(c byte, alphabets *Alphabets) []uint8 {
	if c == ' ' {
		return []uint8{0}
	}
	if ix := indexOf(alphabets.A0, c); ix >= 0 {
		return []uint8{uint8(ix + 6)}
	}
	if ix := indexOf(alphabets.A1, c); ix >= 0 {
		return []uint8{4, uint8(ix + 6)}
	}
	if ix := indexOf(alphabets.A2, c); ix >= 0 {
		return []uint8{5, uint8(ix + 6)}
	}

	code := uint16(c)
	return []uint8{5, 6, uint8(code >> 5), uint8(code & 0x1f)}
}

// EncodeWords encodes s and returns its raw big-endian bytes, as used
// by dictionary lookups that compare against the on-disk byte layout.
func EncodeWords(s string, version uint8, alphabets *Alphabets) []uint8 {
	words := Encode(s, version, alphabets)
	out := make([]uint8, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], w)
	}
	return out
}
