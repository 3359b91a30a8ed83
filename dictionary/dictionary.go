// Package dictionary parses the story's word dictionary (input word
// separators, encoded entries and their attached data bytes) and
// looks words up by their encoded Z-character form. Grounded on the
// teacher's dictionary package, generalized to route through
// zcore.Memory and to binary search the sorted entry table instead of
// scanning it linearly.
package dictionary

import (
	"bytes"
	"sort"

	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zstring"
)

// Entry is one parsed dictionary word.
type Entry struct {
	Address uint32
	Encoded []uint8
	Decoded string
	Data    []uint8
}

// Dictionary is the story's parsed word table. Entries are kept
// sorted ascending by their encoded bytes (13.2 of the Standard),
// which lets Find binary search instead of scanning.
type Dictionary struct {
	Separators  []uint8
	EntryLength uint8
	entries     []Entry
	sorted      bool
}

// Parse reads the dictionary starting at base.
func Parse(mem *zcore.Memory, base uint16, version uint8, alphabets *zstring.Alphabets, abbreviationsBase uint16) (*Dictionary, *zerr.RuntimeError) {
	ptr := uint32(base)
	numSeparators := mem.MustReadByte(ptr)
	separators := make([]uint8, numSeparators)
	for i := range separators {
		separators[i] = mem.MustReadByte(ptr + 1 + uint32(i))
	}

	entryLength := mem.MustReadByte(ptr + 1 + uint32(numSeparators))
	count := int16(mem.MustReadWord(ptr + 2 + uint32(numSeparators)))

	encodedWordLength := uint32(4)
	if version > 3 {
		encodedWordLength = 6
	}

	entryPtr := ptr + 4 + uint32(numSeparators)
	// A negative count means entries are present but NOT sorted,
	// per 13.3; Find falls back to a linear scan in that case.
	sorted := count >= 0
	n := int(count)
	if n < 0 {
		n = -n
	}

	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		encoded := mem.ReadSlice(entryPtr, entryPtr+encodedWordLength)
		decoded, _, err := zstring.Decode(mem, entryPtr, alphabets, abbreviationsBase)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{
			Address: entryPtr,
			Encoded: append([]uint8(nil), encoded...),
			Decoded: decoded,
			Data:    mem.ReadSlice(entryPtr+encodedWordLength, entryPtr+uint32(entryLength)),
		}
		entryPtr += uint32(entryLength)
	}

	return &Dictionary{Separators: separators, EntryLength: entryLength, entries: entries, sorted: sorted}, nil
}

// Find looks up a word by its encoded Z-character bytes, returning
// its address or 0 if absent. Binary search is used whenever the
// story declares its entries sorted (the common case); an explicitly
// unsorted dictionary falls back to a linear scan.
func (d *Dictionary) Find(encoded []uint8) uint16 {
	if !d.sorted {
		for _, e := range d.entries {
			if bytes.Equal(e.Encoded, encoded) {
				return uint16(e.Address)
			}
		}
		return 0
	}

	ix := sort.Search(len(d.entries), func(i int) bool {
		return bytes.Compare(d.entries[i].Encoded, encoded) >= 0
	})
	if ix < len(d.entries) && bytes.Equal(d.entries[ix].Encoded, encoded) {
		return uint16(d.entries[ix].Address)
	}
	return 0
}

func (d *Dictionary) Len() int { return len(d.entries) }

func (d *Dictionary) At(ix int) Entry { return d.entries[ix] }
