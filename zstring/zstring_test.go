package zstring

import (
	"encoding/binary"
	"testing"

	"github.com/ifzm/mxyzptlk/zcore"
)

// newStory builds a minimal story image of the given version and size,
// entirely dynamic memory, for tests that only need Decode/Encode
// against a backing Memory.
func newStory(version uint8, size int) (b []uint8, mem *zcore.Memory) {
	b = make([]uint8, size)
	b[0] = version
	binary.BigEndian.PutUint16(b[0x0e:0x10], uint16(size)) // static mark = end of image
	return b, zcore.Load(b)
}

func putWords(b []uint8, addr int, words ...uint16) {
	for i, w := range words {
		binary.BigEndian.PutUint16(b[addr+i*2:addr+i*2+2], w)
	}
}

func TestDecodeEncodedWordIsLowercase(t *testing.T) {
	b, mem := newStory(3, 0x40)
	alphabets := &Alphabets{A0: a0Default, A1: a1Default, A2: a2Default}
	encoded := Encode("There", 3, alphabets)
	putWords(b, 0x20, encoded...)

	str, n, err := Decode(mem, 0x20, alphabets, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if str != "there" { // Encode lowercases; plain encode/decode never round-trips case
		t.Fatalf("expected %q, got %q", "there", str)
	}
	if n != uint32(len(encoded))*2 {
		t.Fatalf("expected %d bytes read, got %d", len(encoded)*2, n)
	}
}

func TestEncodeDecodeZsciiLiteral(t *testing.T) {
	b, mem := newStory(3, 0x40)
	alphabets := &Alphabets{A0: a0Default, A1: a1Default, A2: a2Default}

	encoded := Encode(">", 3, alphabets)
	putWords(b, 0x20, encoded...)

	str, _, err := Decode(mem, 0x20, alphabets, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if str != ">" {
		t.Fatalf("expected %q, got %q", ">", str)
	}
}

func TestEncodePadsAndTruncates(t *testing.T) {
	alphabets := &Alphabets{A0: a0Default, A1: a1Default, A2: a2Default}

	short := Encode("hi", 3, alphabets)
	if len(short) != 2 { // v3 always encodes to 6 z-chars = 2 words
		t.Fatalf("expected 2 words for v3 encoding, got %d", len(short))
	}

	long := Encode("abcdefghij", 3, alphabets)
	if len(long) != 2 {
		t.Fatalf("v3 encoding should truncate to 2 words, got %d", len(long))
	}

	v5 := Encode("hi", 5, alphabets)
	if len(v5) != 3 { // v4+ encodes to 9 z-chars = 3 words
		t.Fatalf("expected 3 words for v5 encoding, got %d", len(v5))
	}
}

func TestDecodeAbbreviation(t *testing.T) {
	b, mem := newStory(3, 0x100)
	alphabets := &Alphabets{A0: a0Default, A1: a1Default, A2: a2Default}

	const abbrTableBase = 0x40
	const abbrTextAddr = 0x60

	abbreviated := Encode("hello", 3, alphabets)
	putWords(b, abbrTextAddr, abbreviated...)
	// abbreviation 0 (z=1, x=0) points at abbrTextAddr, word-address form.
	putWords(b, abbrTableBase, uint16(abbrTextAddr/2))

	// Z-chars: abbreviation trigger 1, index 0, then padding; bit 15 set.
	word := uint16(1)<<10 | uint16(0)<<5 | uint16(5)
	word |= 0x8000
	putWords(b, 0x20, word)

	str, _, err := Decode(mem, 0x20, alphabets, abbrTableBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if str != "hello" {
		t.Fatalf("expected %q, got %q", "hello", str)
	}
}

func TestLoadAlphabetsDefaultWhenNoAltBase(t *testing.T) {
	_, mem := newStory(3, 0x40)
	a := LoadAlphabets(mem, 0)
	if a.A0 != a0Default || a.A1 != a1Default || a.A2 != a2Default {
		t.Fatal("expected default alphabets when altCharSetBase is 0")
	}
}

func TestLoadAlphabetsCustom(t *testing.T) {
	const altBase = 0x40
	b, mem := newStory(5, 0x100)

	var custom [78]byte
	for i := range custom {
		custom[i] = byte('a' + i%26)
	}
	copy(b[altBase:altBase+78], custom[:])

	a := LoadAlphabets(mem, altBase)
	if a.A0[0] != custom[0] || a.A1[0] != custom[26] {
		t.Fatal("expected custom alphabet tables to be loaded from altCharSetBase")
	}
	if a.A2[0] != '\n' {
		t.Fatal("row 0 of alphabet 2 must always be newline, even with a custom table")
	}
}
