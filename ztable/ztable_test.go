package ztable_test

import (
	"testing"

	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/ztable"
)

func testMemory() *zcore.Memory {
	b := make([]uint8, 0x100)
	b[0] = 5
	b[0x0e], b[0x0f] = 0x01, 0x00
	return zcore.Load(b)
}

func TestScanTableByte(t *testing.T) {
	mem := testMemory()
	mem.WriteByte(0x40, 1)
	mem.WriteByte(0x41, 2)
	mem.WriteByte(0x42, 3)

	if addr := ztable.ScanTable(mem, 3, 0x40, 3, 1); addr != 0x42 {
		t.Errorf("expected match at 0x42, got 0x%x", addr)
	}
	if addr := ztable.ScanTable(mem, 9, 0x40, 3, 1); addr != 0 {
		t.Errorf("expected no match, got 0x%x", addr)
	}
}

func TestCopyTableZeroesOnNilDestination(t *testing.T) {
	mem := testMemory()
	mem.WriteByte(0x40, 0xaa)
	mem.WriteByte(0x41, 0xbb)

	if err := ztable.CopyTable(mem, 0x40, 0, 2); err != nil {
		t.Fatal(err)
	}
	if b, _ := mem.ReadByte(0x40); b != 0 {
		t.Errorf("expected zeroed byte, got %x", b)
	}
}

func TestCopyTableNonOverlapping(t *testing.T) {
	mem := testMemory()
	mem.WriteByte(0x40, 1)
	mem.WriteByte(0x41, 2)
	mem.WriteByte(0x42, 3)

	if err := ztable.CopyTable(mem, 0x40, 0x50, 3); err != nil {
		t.Fatal(err)
	}
	b0, _ := mem.ReadByte(0x50)
	b1, _ := mem.ReadByte(0x51)
	b2, _ := mem.ReadByte(0x52)
	if b0 != 1 || b1 != 2 || b2 != 3 {
		t.Errorf("copy mismatch: %d %d %d", b0, b1, b2)
	}
}

func TestPrintTable(t *testing.T) {
	mem := testMemory()
	for i, c := range []byte("abcdef") {
		mem.WriteByte(0x40+uint32(i), c)
	}
	if got := ztable.PrintTable(mem, 0x40, 3, 2, 0); got != "abc\ndef" {
		t.Errorf("unexpected print_table output: %q", got)
	}
}
