// Package ztable implements the three generic table opcodes
// (print_table, scan_table, copy_table) that operate directly on raw
// memory ranges rather than any structured type. Grounded on the
// teacher's ztable package, generalized to route through
// zcore.Memory's write protection.
package ztable

import (
	"strings"

	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zerr"
)

// PrintTable renders a width x height block of characters starting at
// baddr, skipping `skip` extra bytes between rows (print_table).
func PrintTable(mem *zcore.Memory, baddr uint32, width uint16, height uint16, skip uint16) string {
	var s strings.Builder
	for row := uint16(0); row < height; row++ {
		if row != 0 {
			s.WriteByte('\n')
		}
		rowStart := baddr + uint32(row)*(uint32(width)+uint32(skip))
		for col := uint16(0); col < width; col++ {
			s.WriteByte(mem.MustReadByte(rowStart + uint32(col)))
		}
	}
	return s.String()
}

// ScanTable searches length fields of baddr for test, comparing a word
// when form's top bit is set and a byte otherwise, stepping form's low
// 7 bits between fields, and returns the address of the first match or
// 0 (scan_table).
func ScanTable(mem *zcore.Memory, test uint16, baddr uint32, length uint16, form uint16) uint32 {
	fieldSize := form & 0x7f
	checkWord := form&0x80 != 0
	if fieldSize == 0 {
		return 0
	}

	ptr := baddr
	for i := uint16(0); i < length; i++ {
		if checkWord {
			if mem.MustReadWord(ptr) == test {
				return ptr
			}
		} else if uint16(mem.MustReadByte(ptr)) == test {
			return ptr
		}
		ptr += uint32(fieldSize)
	}

	return 0
}

// CopyTable copies |size| bytes from first to second. second == 0
// zeros |size| bytes of first instead. A negative size permits overlapping
// source/destination ranges to clobber each other as the copy
// proceeds (moving forward byte by byte); a non-negative size copies
// via a temporary buffer so overlap never corrupts the source
// (copy_table, 15/copy_table in the Standard).
func CopyTable(mem *zcore.Memory, first uint32, second uint32, size int16) *zerr.RuntimeError {
	count := uint32(size)
	if size < 0 {
		count = uint32(-int32(size))
	}

	if second == 0 {
		for i := uint32(0); i < count; i++ {
			if err := mem.WriteByte(first+i, 0); err != nil {
				return err
			}
		}
		return nil
	}

	if size >= 0 {
		tmp := make([]uint8, count)
		for i := uint32(0); i < count; i++ {
			tmp[i] = mem.MustReadByte(first + i)
		}
		for i := uint32(0); i < count; i++ {
			if err := mem.WriteByte(second+i, tmp[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for i := uint32(0); i < count; i++ {
		if err := mem.WriteByte(second+i, mem.MustReadByte(first+i)); err != nil {
			return err
		}
	}
	return nil
}
