// Package ziff implements the generic IFF chunk container used by both
// Blorb resource files and Quetzal save files, plus the two concrete
// formats built on top of it. Grounded on the teacher's approach of one
// package per file format, generalized from the original interpreter's
// chunk walker (which read/wrote everything through raw byte-offset
// arithmetic) into typed chunk values.
package ziff

import (
	"encoding/binary"

	"github.com/ifzm/mxyzptlk/zerr"
)

// Chunk is one IFF data chunk: a four-byte id, then its payload.
type Chunk struct {
	ID   string
	Data []byte
}

// Form is a parsed top-level "FORM" container: a four-byte form type
// (e.g. "IFZS", "IFRS") followed by a sequence of chunks.
type Form struct {
	Type   string
	Chunks []Chunk
}

// Parse reads an IFF FORM from raw bytes.
func Parse(data []byte) (*Form, *zerr.RuntimeError) {
	if len(data) < 12 || string(data[0:4]) != "FORM" {
		return nil, zerr.Fatalf(zerr.IFFInvalidChunkId, "not an IFF FORM")
	}
	length := binary.BigEndian.Uint32(data[4:8])
	formType := string(data[8:12])
	end := 8 + int(length)
	if end > len(data) {
		end = len(data)
	}

	f := &Form{Type: formType}
	offset := 12
	for offset+8 <= end {
		id := string(data[offset : offset+4])
		chunkLen := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		dataStart := offset + 8
		dataEnd := dataStart + int(chunkLen)
		if dataEnd > len(data) {
			return nil, zerr.Fatalf(zerr.IFFInvalidChunkId, "chunk %s length %d overruns file", id, chunkLen)
		}
		f.Chunks = append(f.Chunks, Chunk{ID: id, Data: data[dataStart:dataEnd]})
		offset = dataEnd
		if chunkLen%2 == 1 {
			offset++ // pad byte, not counted in chunk length
		}
	}
	return f, nil
}

// Find returns the first chunk with the given id, or nil.
func (f *Form) Find(id string) []byte {
	for _, c := range f.Chunks {
		if c.ID == id {
			return c.Data
		}
	}
	return nil
}

// Bytes serializes the form back to an IFF FORM byte stream, padding
// odd-length chunks per the IFF convention.
func (f *Form) Bytes() []byte {
	var body []byte
	body = append(body, []byte(f.Type)...)
	for _, c := range f.Chunks {
		body = append(body, []byte(c.ID)...)
		var lenBytes [4]byte
		binary.BigEndian.PutUint32(lenBytes[:], uint32(len(c.Data)))
		body = append(body, lenBytes[:]...)
		body = append(body, c.Data...)
		if len(c.Data)%2 == 1 {
			body = append(body, 0)
		}
	}

	out := []byte("FORM")
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(body)))
	out = append(out, lenBytes[:]...)
	out = append(out, body...)
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func put24(v uint32) []byte {
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func get24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
