package ziff

import "testing"

func TestQuetzalRoundTrip(t *testing.T) {
	original := make([]byte, 64)
	for i := range original {
		original[i] = byte(i)
	}

	current := append([]byte(nil), original...)
	current[10] = 0xff // a single changed byte amid long unchanged runs
	current[40] = 0x01

	img := SaveImage{
		Release:     7,
		Serial:      [6]byte{'2', '6', '0', '7', '3', '0'},
		Checksum:    0x1234,
		PC:          0x4abc,
		DynamicMem:  current,
		OriginalMem: original,
		Frames: []StackFrame{
			{ReturnAddress: 0x1000, Flags: 3, ResultVariable: 0, ArgsSupplied: 1, Locals: []uint16{1, 2, 3}, EvalStack: []uint16{9}},
			{ReturnAddress: 0x2000, Flags: 0x10, ResultVariable: 0, ArgsSupplied: 0},
		},
	}

	encoded := EncodeQuetzal(img)
	decoded, err := DecodeQuetzal(encoded, original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decoded.Release != img.Release || decoded.Checksum != img.Checksum || decoded.PC != img.PC {
		t.Fatalf("header mismatch: got %+v", decoded)
	}
	if decoded.Serial != img.Serial {
		t.Fatalf("serial mismatch: got %v want %v", decoded.Serial, img.Serial)
	}
	if len(decoded.DynamicMem) != len(current) {
		t.Fatalf("dynamic memory length mismatch: got %d want %d", len(decoded.DynamicMem), len(current))
	}
	for i := range current {
		if decoded.DynamicMem[i] != current[i] {
			t.Fatalf("dynamic memory byte %d mismatch: got %#x want %#x", i, decoded.DynamicMem[i], current[i])
		}
	}

	if len(decoded.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(decoded.Frames))
	}
	if decoded.Frames[0].ReturnAddress != 0x1000 || len(decoded.Frames[0].Locals) != 3 || decoded.Frames[0].EvalStack[0] != 9 {
		t.Fatalf("frame 0 mismatch: %+v", decoded.Frames[0])
	}
	if decoded.Frames[1].ReturnAddress != 0x2000 || decoded.Frames[1].Flags != 0x10 {
		t.Fatalf("frame 1 mismatch: %+v", decoded.Frames[1])
	}
}

func TestDecodeQuetzalRejectsWrongSubform(t *testing.T) {
	f := &Form{Type: "IFRS"} // a Blorb, not a Quetzal save
	_, err := DecodeQuetzal(f.Bytes(), nil)
	if err == nil {
		t.Fatal("expected an error decoding a non-IFZS form as Quetzal")
	}
}

func TestDecodeQuetzalRejectsMissingStks(t *testing.T) {
	f := &Form{Type: "IFZS", Chunks: []Chunk{
		{ID: "IFhd", Data: make([]byte, 13)},
		{ID: "CMem", Data: nil},
	}}
	_, err := DecodeQuetzal(f.Bytes(), make([]byte, 16))
	if err == nil {
		t.Fatal("expected an error for a save file missing its Stks chunk")
	}
}

func TestCompressCMemZeroRunLongerThan256(t *testing.T) {
	original := make([]byte, 600)
	current := make([]byte, 600)
	current[599] = 7 // force a trailing non-zero byte after a >256 zero run

	compressed := compressCMem(original, current)
	restored := decompressCMem(original, compressed)
	if len(restored) != len(current) {
		t.Fatalf("length mismatch: got %d want %d", len(restored), len(current))
	}
	for i := range current {
		if restored[i] != current[i] {
			t.Fatalf("byte %d mismatch: got %#x want %#x", i, restored[i], current[i])
		}
	}
}
