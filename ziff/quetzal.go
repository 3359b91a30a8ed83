package ziff

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/ifzm/mxyzptlk/zerr"
)

// quetzalLog is the package's structured logger, named after the
// original interpreter's app::quetzal log target; silent by default
// so parsing a save file in a test doesn't spam stdout.
var quetzalLog = zap.NewNop()

// EnableLogging switches EncodeQuetzal/DecodeQuetzal's logger from a
// no-op to a development logger.
func EnableLogging(enabled bool) {
	if !enabled {
		quetzalLog = zap.NewNop()
		return
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		quetzalLog = zap.NewNop()
		return
	}
	quetzalLog = l.Named("quetzal")
}

// SaveImage is everything a Quetzal "IFZS" file captures, independent
// of the zmachine package's own Frame/CallStack types so this package
// stays free of an import cycle.
type SaveImage struct {
	Release      uint16
	Serial       [6]byte
	Checksum     uint16
	PC           uint32
	DynamicMem   []byte // the running dynamic memory at save time
	OriginalMem  []byte // the untouched dynamic memory from story load, for CMem's XOR delta
	Frames       []StackFrame
}

// StackFrame mirrors one Quetzal "Stks" entry: a caller return address,
// the packed flags/result/argcount byte triple, locals and the
// evaluation stack accumulated since the call.
type StackFrame struct {
	ReturnAddress  uint32
	Flags          uint8 // bit 4 set => the call discards its result (call_vn/call_1n/...)
	ResultVariable uint8
	ArgsSupplied   uint8
	Locals         []uint16
	EvalStack      []uint16
}

// EncodeQuetzal builds a Quetzal "IFZS" save file. Dynamic memory is
// stored compressed (CMem): XORed against the story's original dynamic
// memory, then run-length encoded wherever that XOR produces zero runs,
// exactly as the Quetzal standard's "use CMem whenever it's smaller"
// recommendation assumes.
func EncodeQuetzal(img SaveImage) []byte {
	form := &Form{Type: "IFZS"}

	ifhd := make([]byte, 13)
	binary.BigEndian.PutUint16(ifhd[0:2], img.Release)
	copy(ifhd[2:8], img.Serial[:])
	binary.BigEndian.PutUint16(ifhd[8:10], img.Checksum)
	copy(ifhd[10:13], put24(img.PC))
	form.Chunks = append(form.Chunks, Chunk{ID: "IFhd", Data: ifhd})

	form.Chunks = append(form.Chunks, Chunk{ID: "CMem", Data: compressCMem(img.OriginalMem, img.DynamicMem)})

	var stks []byte
	for _, sf := range img.Frames {
		stks = append(stks, encodeStackFrame(sf)...)
	}
	form.Chunks = append(form.Chunks, Chunk{ID: "Stks", Data: stks})

	out := form.Bytes()
	quetzalLog.Debug("encoded save image", zap.Int("frames", len(img.Frames)), zap.Int("bytes", len(out)))
	return out
}

// DecodeQuetzal parses a Quetzal file previously produced by
// EncodeQuetzal (or any conforming Quetzal writer using CMem; UMem is
// accepted too since some interpreters prefer uncompressed saves).
func DecodeQuetzal(data []byte, originalMem []byte) (*SaveImage, *zerr.RuntimeError) {
	form, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if form.Type != "IFZS" {
		return nil, zerr.Fatalf(zerr.Quetzal, "not a Quetzal save file (sub-form %q)", form.Type)
	}

	ifhd := form.Find("IFhd")
	if len(ifhd) < 13 {
		return nil, zerr.Fatalf(zerr.IFhdChunkLength, "IFhd chunk missing or too short")
	}
	img := &SaveImage{
		Release:  binary.BigEndian.Uint16(ifhd[0:2]),
		Checksum: binary.BigEndian.Uint16(ifhd[8:10]),
		PC:       get24(ifhd[10:13]),
	}
	copy(img.Serial[:], ifhd[2:8])

	if umem := form.Find("UMem"); umem != nil {
		img.DynamicMem = append([]byte(nil), umem...)
	} else if cmem := form.Find("CMem"); cmem != nil {
		img.DynamicMem = decompressCMem(originalMem, cmem)
	} else {
		return nil, zerr.Fatalf(zerr.BlorbMissingChunk, "save file has neither CMem nor UMem chunk")
	}

	stks := form.Find("Stks")
	if stks == nil {
		return nil, zerr.Fatalf(zerr.Quetzal, "save file is missing its Stks chunk")
	}
	frames, derr := decodeStackFrames(stks)
	if derr != nil {
		return nil, derr
	}
	img.Frames = frames

	quetzalLog.Debug("decoded save image", zap.Int("frames", len(frames)), zap.Uint16("release", img.Release))
	return img, nil
}

// compressCMem XORs current against original byte-for-byte (original's
// tail is treated as zero if current is longer) and run-length encodes
// zero runs as a 0x00 byte followed by a count byte (run length - 1, so
// runs of one or two zero bytes cost two bytes and longer runs shrink).
func compressCMem(original, current []byte) []byte {
	var out []byte
	zeroRun := 0
	flush := func() {
		for zeroRun > 0 {
			n := zeroRun
			if n > 256 {
				n = 256
			}
			out = append(out, 0, byte(n-1))
			zeroRun -= n
		}
	}
	for i, b := range current {
		var orig byte
		if i < len(original) {
			orig = original[i]
		}
		x := b ^ orig
		if x == 0 {
			zeroRun++
			continue
		}
		flush()
		out = append(out, x)
	}
	flush()
	return out
}

func decompressCMem(original, compressed []byte) []byte {
	out := make([]byte, len(original))
	copy(out, original)

	pos := 0
	for i := 0; i < len(compressed); i++ {
		if compressed[i] == 0 && i+1 < len(compressed) {
			runLen := int(compressed[i+1]) + 1
			i++
			pos += runLen
			continue
		}
		if pos < len(out) {
			out[pos] ^= compressed[i]
		} else {
			out = append(out, compressed[i])
		}
		pos++
	}
	return out
}

func encodeStackFrame(sf StackFrame) []byte {
	data := make([]byte, 6)
	copy(data[0:3], put24(sf.ReturnAddress))
	data[3] = sf.Flags
	data[4] = sf.ResultVariable
	data[5] = sf.ArgsSupplied

	var stackLen [2]byte
	binary.BigEndian.PutUint16(stackLen[:], uint16(len(sf.EvalStack)))
	data = append(data, stackLen[:]...)

	for _, l := range sf.Locals {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], l)
		data = append(data, b[:]...)
	}
	for _, v := range sf.EvalStack {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], v)
		data = append(data, b[:]...)
	}
	return data
}

func decodeStackFrames(data []byte) ([]StackFrame, *zerr.RuntimeError) {
	var frames []StackFrame
	pos := 0
	for len(data)-pos > 1 {
		if pos+8 > len(data) {
			return nil, zerr.Fatalf(zerr.Quetzal, "truncated Stks chunk")
		}
		sf := StackFrame{
			ReturnAddress:  get24(data[pos : pos+3]),
			Flags:          data[pos+3],
			ResultVariable: data[pos+4],
			ArgsSupplied:   data[pos+5],
		}
		stackLen := int(binary.BigEndian.Uint16(data[pos+6 : pos+8]))
		pos += 8

		localCount := int(sf.Flags & 0x0f)
		if pos+localCount*2 > len(data) {
			return nil, zerr.Fatalf(zerr.Quetzal, "truncated locals in Stks chunk")
		}
		sf.Locals = make([]uint16, localCount)
		for i := range sf.Locals {
			sf.Locals[i] = binary.BigEndian.Uint16(data[pos : pos+2])
			pos += 2
		}

		if pos+stackLen*2 > len(data) {
			return nil, zerr.Fatalf(zerr.Quetzal, "truncated evaluation stack in Stks chunk")
		}
		sf.EvalStack = make([]uint16, stackLen)
		for i := range sf.EvalStack {
			sf.EvalStack[i] = binary.BigEndian.Uint16(data[pos : pos+2])
			pos += 2
		}

		frames = append(frames, sf)
	}
	return frames, nil
}
