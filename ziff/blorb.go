package ziff

import (
	"encoding/binary"

	"github.com/ifzm/mxyzptlk/zerr"
)

// ResourceIndex is one "RIdx" entry: a resource's usage class ("Snd " /
// "Pict" / "Exec"), its number as referenced from the story, and the
// byte offset of its chunk within the Blorb file.
type ResourceIndex struct {
	Usage  string
	Number uint32
	Start  uint32
}

// LoopEntry maps a sound number to how many times it repeats when
// triggered with effect 1 and no explicit repeat count (Standard
// sound_effect / Blorb "Loop" chunk).
type LoopEntry struct {
	Number  uint32
	Repeats uint32
}

// Blorb is a parsed "IFRS" resource file: the sound/picture index, any
// loop counts, and the raw sound chunk bytes keyed by file offset (so
// they can be cross-referenced against a ResourceIndex.Start).
type Blorb struct {
	Index  []ResourceIndex
	Loops  []LoopEntry
	Sounds map[uint32][]byte
}

// ParseBlorb reads a Blorb resource file. Only the chunks this
// interpreter's sound support needs (RIdx, Loop, OGGV/AIFF sound data)
// are decoded; picture and executable resources are indexed but not
// extracted, since the supported story versions never render graphics.
func ParseBlorb(data []byte) (*Blorb, *zerr.RuntimeError) {
	form, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if form.Type != "IFRS" {
		return nil, zerr.Fatalf(zerr.BlorbMissingChunk, "not a Blorb resource file (sub-form %q)", form.Type)
	}

	b := &Blorb{Sounds: map[uint32][]byte{}}
	offset := uint32(12)
	for _, c := range form.Chunks {
		chunkStart := offset
		offset += 8 + uint32(len(c.Data))
		if len(c.Data)%2 == 1 {
			offset++
		}

		switch c.ID {
		case "RIdx":
			b.Index, err = parseRIdx(c.Data)
			if err != nil {
				return nil, err
			}
		case "Loop":
			b.Loops = parseLoop(c.Data)
		case "OGGV", "AIFF", "FORM":
			b.Sounds[chunkStart] = c.Data
		}
	}
	return b, nil
}

func parseRIdx(data []byte) ([]ResourceIndex, *zerr.RuntimeError) {
	if len(data) < 4 {
		return nil, zerr.Fatalf(zerr.BlorbRIdxEntrySize, "RIdx chunk too short")
	}
	n := binary.BigEndian.Uint32(data[0:4])
	entries := make([]ResourceIndex, 0, n)
	for i := uint32(0); i < n; i++ {
		off := 4 + 12*i
		if int(off+12) > len(data) {
			return nil, zerr.Fatalf(zerr.BlorbRIdxEntrySize, "RIdx entry %d overruns chunk", i)
		}
		entries = append(entries, ResourceIndex{
			Usage:  string(data[off : off+4]),
			Number: binary.BigEndian.Uint32(data[off+4 : off+8]),
			Start:  binary.BigEndian.Uint32(data[off+8 : off+12]),
		})
	}
	return entries, nil
}

func parseLoop(data []byte) []LoopEntry {
	entries := make([]LoopEntry, 0, len(data)/8)
	for off := 0; off+8 <= len(data); off += 8 {
		entries = append(entries, LoopEntry{
			Number:  binary.BigEndian.Uint32(data[off : off+4]),
			Repeats: binary.BigEndian.Uint32(data[off+4 : off+8]),
		})
	}
	return entries
}

// SoundData returns the raw audio bytes for the given sound effect
// number, or nil if the Blorb has no matching "Snd " resource.
func (b *Blorb) SoundData(number uint32) []byte {
	for _, idx := range b.Index {
		if idx.Usage == "Snd " && idx.Number == number {
			return b.Sounds[idx.Start]
		}
	}
	return nil
}

// RepeatsFor returns the loop count registered for a sound number, or
// 1 (play once) if no Loop entry names it.
func (b *Blorb) RepeatsFor(number uint32) uint32 {
	for _, l := range b.Loops {
		if l.Number == number {
			return l.Repeats
		}
	}
	return 1
}
