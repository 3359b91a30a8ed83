package ziff

import (
	"bytes"
	"testing"
)

func TestFormRoundTrip(t *testing.T) {
	f := &Form{
		Type: "TEST",
		Chunks: []Chunk{
			{ID: "One ", Data: []byte{1, 2, 3}}, // odd length, needs a pad byte
			{ID: "Two ", Data: []byte{4, 5, 6, 7}},
		},
	}

	encoded := f.Bytes()
	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != "TEST" {
		t.Fatalf("expected type TEST, got %q", parsed.Type)
	}
	if len(parsed.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(parsed.Chunks))
	}
	if !bytes.Equal(parsed.Find("One "), []byte{1, 2, 3}) {
		t.Fatalf("chunk One  mismatch: %v", parsed.Find("One "))
	}
	if !bytes.Equal(parsed.Find("Two "), []byte{4, 5, 6, 7}) {
		t.Fatalf("chunk Two  mismatch: %v", parsed.Find("Two "))
	}
}

func TestParseRejectsNonIFF(t *testing.T) {
	_, err := Parse([]byte("not an iff file at all"))
	if err == nil {
		t.Fatal("expected an error for non-FORM input")
	}
}

func TestFindMissingChunkReturnsNil(t *testing.T) {
	f := &Form{Type: "TEST"}
	if f.Find("Nope") != nil {
		t.Fatal("expected nil for a missing chunk id")
	}
}
