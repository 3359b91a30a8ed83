package dictionary_test

import (
	"testing"

	"github.com/ifzm/mxyzptlk/dictionary"
	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zstring"
)

func buildDict() *zcore.Memory {
	b := make([]uint8, 0x100)
	b[0] = 3
	b[0x0e], b[0x0f] = 0x01, 0x00

	const base = 0x40
	b[base] = 3       // 3 separators
	b[base+1] = '.'   // separators
	b[base+2] = ','
	b[base+3] = '"'
	b[base+4] = 7 // entry length (4-byte word + 3 data bytes)
	b[base+5], b[base+6] = 0, 2 // 2 entries, sorted ascending

	alphabets := zstring.LoadAlphabets(nil, 0)
	e0 := zstring.EncodeWords("go", 3, alphabets)
	e1 := zstring.EncodeWords("north", 3, alphabets)

	entryPtr := base + 7
	copy(b[entryPtr:], e0)
	entryPtr += 7
	copy(b[entryPtr:], e1)

	return zcore.Load(b)
}

func TestDictionaryFind(t *testing.T) {
	alphabets := zstring.LoadAlphabets(nil, 0)
	mem := buildDict()
	dict, err := dictionary.Parse(mem, 0x40, 3, alphabets, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(dict.Separators) != 3 {
		t.Fatalf("expected 3 separators, got %d", len(dict.Separators))
	}

	north := zstring.EncodeWords("north", 3, alphabets)
	if addr := dict.Find(north); addr == 0 {
		t.Error("expected to find 'north' in the dictionary")
	}

	missing := zstring.EncodeWords("zzzzzz", 3, alphabets)
	if addr := dict.Find(missing); addr != 0 {
		t.Errorf("expected 'zzzzzz' to be absent, got address %d", addr)
	}
}
