// Package zcore implements the Z-machine's banked memory model: a
// byte-addressable story image split into dynamic, static and high
// memory, plus typed access to the header fields the rest of the
// interpreter needs. Grounded on the teacher's zcore.Core, generalized
// to enforce the bank write-protection rules the original only left as
// a TODO.
package zcore

import (
	"encoding/binary"

	"github.com/ifzm/mxyzptlk/zerr"
)

// Header byte offsets, see spec.md S6.
const (
	offVersion          = 0x00
	offFlags1           = 0x01
	offRelease          = 0x02
	offHighMark         = 0x04
	offInitialPC        = 0x06
	offDictionary       = 0x08
	offObjectTable      = 0x0a
	offGlobalTable      = 0x0c
	offStaticMark       = 0x0e
	offFlags2           = 0x10
	offSerial           = 0x12
	offAbbreviations    = 0x18
	offFileLength       = 0x1a
	offChecksum         = 0x1c
	offInterpNumber     = 0x1e
	offInterpVersion    = 0x1f
	offScreenLines      = 0x20
	offScreenColumns    = 0x21
	offScreenWidthUnits = 0x22
	offScreenHeightU    = 0x24
	offFontWidth        = 0x26
	offFontHeight       = 0x27
	offRoutinesOffset   = 0x28
	offStringsOffset    = 0x2a
	offDefaultBG        = 0x2c
	offDefaultFG        = 0x2d
	offTerminatingChars = 0x2e
	offStream3Width     = 0x30
	offRevision         = 0x32
	offAltCharSet       = 0x34
	offExtensionTable   = 0x36
	offPlayerLogin      = 0x38
	offInformVersion    = 0x3c

	HeaderSize = 0x40
)

// Memory is the VM's addressable story image, banked into dynamic,
// static and high memory per spec.md S3.
type Memory struct {
	bytes       []uint8
	StaticMark  uint32
	HighMark    uint32
	Version     uint8
	dynamicOnly bool
}

// Load partitions a raw story file into the banked memory model and
// stamps the interpreter-owned header fields (S6). The interpreter
// claims to be an "IBM PC"-class terminal supporting standard 1.1,
// matching the teacher's LoadCore.
func Load(bytes []uint8) *Memory {
	m := &Memory{bytes: bytes, Version: bytes[offVersion]}
	m.StaticMark = uint32(binary.BigEndian.Uint16(bytes[offStaticMark : offStaticMark+2]))
	m.HighMark = uint32(binary.BigEndian.Uint16(bytes[offHighMark : offHighMark+2]))

	bytes[offInterpNumber] = 6 // IBM PC, closest match to a text terminal
	bytes[offInterpVersion] = 'F'

	bytes[offScreenLines] = 25
	bytes[offScreenColumns] = 80
	binary.BigEndian.PutUint16(bytes[offScreenWidthUnits:offScreenWidthUnits+2], 80)
	binary.BigEndian.PutUint16(bytes[offScreenHeightU:offScreenHeightU+2], 25)
	bytes[offFontWidth] = 1
	bytes[offFontHeight] = 1

	bytes[offRevision] = 1
	bytes[offRevision+1] = 1

	if bytes[offVersion] <= 3 {
		bytes[offFlags1] |= 0b0010_0000 // split-screen available
	} else {
		// colours(0x01) + bold(0x04) + italic(0x08) + split-screen(0x20); no pictures/fixed-default/timed-input
		bytes[offFlags1] |= 0b0010_1101
	}

	return m
}

func (m *Memory) Length() uint32 { return uint32(len(m.bytes)) }

// FileLength returns the declared story length from the header,
// scaled by the version-dependent divisor (S6).
func (m *Memory) FileLength() uint32 {
	raw := uint32(binary.BigEndian.Uint16(m.bytes[offFileLength : offFileLength+2]))
	switch {
	case m.Version <= 3:
		return raw * 2
	case m.Version <= 5:
		return raw * 4
	default:
		return raw * 8
	}
}

// Checksum sums bytes 0x40..FileLength mod 2^16 (S4.1, verify opcode).
func (m *Memory) Checksum() uint16 {
	var sum uint16
	length := m.FileLength()
	if length == 0 || length > uint32(len(m.bytes)) {
		length = uint32(len(m.bytes))
	}
	for i := uint32(HeaderSize); i < length; i++ {
		sum += uint16(m.bytes[i])
	}
	return sum
}

func (m *Memory) HeaderChecksum() uint16 {
	return binary.BigEndian.Uint16(m.bytes[offChecksum : offChecksum+2])
}

func (m *Memory) bounds(addr uint32, size uint32) *zerr.RuntimeError {
	if addr+size > uint32(len(m.bytes)) {
		return zerr.Recoverablef(zerr.InvalidAddress, "address 0x%x+%d exceeds story length 0x%x", addr, size, len(m.bytes))
	}
	return nil
}

// ReadByte reads one byte from anywhere in the image. Reads are never
// bank-restricted - only writes are (S4.1).
func (m *Memory) ReadByte(addr uint32) (uint8, *zerr.RuntimeError) {
	if err := m.bounds(addr, 1); err != nil {
		return 0, err
	}
	return m.bytes[addr], nil
}

// MustReadByte panics-free convenience for call sites that have
// already bounds-checked (decoder hot path); out-of-range addresses
// still return 0 rather than corrupting memory.
func (m *Memory) MustReadByte(addr uint32) uint8 {
	if addr >= uint32(len(m.bytes)) {
		return 0
	}
	return m.bytes[addr]
}

func (m *Memory) ReadWord(addr uint32) (uint16, *zerr.RuntimeError) {
	if err := m.bounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(m.bytes[addr : addr+2]), nil
}

func (m *Memory) MustReadWord(addr uint32) uint16 {
	if addr+2 > uint32(len(m.bytes)) {
		return 0
	}
	return binary.BigEndian.Uint16(m.bytes[addr : addr+2])
}

// ReadSlice returns a read-only view; callers must not retain it past
// the next write (may alias WriteByte/WriteWord targets).
func (m *Memory) ReadSlice(start, end uint32) []uint8 {
	if end > uint32(len(m.bytes)) {
		end = uint32(len(m.bytes))
	}
	if start > end {
		start = end
	}
	return m.bytes[start:end]
}

// writableRange reports whether the byte at addr may be written: it
// must fall in dynamic memory, and if it is a header byte it must be
// one of the small set of interpreter-owned fields.
func (m *Memory) writableRange(addr uint32) bool {
	if addr >= m.StaticMark {
		return false
	}
	if addr >= HeaderSize {
		return true
	}
	switch {
	case addr == offFlags1:
		return true
	case addr == offFlags2 || addr == offFlags2+1:
		return true
	case addr >= offInterpNumber && addr <= offInterpVersion:
		return true
	case addr >= offRevision && addr < offRevision+2:
		return true
	default:
		return false
	}
}

func (m *Memory) WriteByte(addr uint32, v uint8) *zerr.RuntimeError {
	if err := m.bounds(addr, 1); err != nil {
		return err
	}
	if !m.writableRange(addr) {
		return zerr.Recoverablef(zerr.IllegalMemoryAccess, "write to read-only address 0x%x", addr)
	}
	m.bytes[addr] = v
	return nil
}

// WriteWord writes big-endian and is equivalent to two adjacent byte
// writes (S4.1); it is not atomic with respect to a concurrent reader,
// but the VM is single-threaded so that never matters in practice.
func (m *Memory) WriteWord(addr uint32, v uint16) *zerr.RuntimeError {
	if err := m.WriteByte(addr, uint8(v>>8)); err != nil {
		return err
	}
	return m.WriteByte(addr+1, uint8(v))
}

// DynamicImage returns a copy of the dynamic memory bank, used by the
// IFF codec for save/restore and undo.
func (m *Memory) DynamicImage() []uint8 {
	out := make([]uint8, m.StaticMark)
	copy(out, m.bytes[:m.StaticMark])
	return out
}

// SetDynamicImage overwrites dynamic memory wholesale (restore path).
// The header bytes 0x00-0x3F are restored too, except the interpreter
// number and version bytes, which keep their current values.
func (m *Memory) SetDynamicImage(data []uint8) *zerr.RuntimeError {
	if uint32(len(data)) != m.StaticMark {
		return zerr.Recoverablef(zerr.Restore, "dynamic memory size mismatch: got %d want %d", len(data), m.StaticMark)
	}
	interpNum, interpVer := m.bytes[offInterpNumber], m.bytes[offInterpVersion]
	copy(m.bytes[:m.StaticMark], data)
	m.bytes[offInterpNumber] = interpNum
	m.bytes[offInterpVersion] = interpVer
	return nil
}

func (m *Memory) h16(off uint32) uint16 { return binary.BigEndian.Uint16(m.bytes[off : off+2]) }

func (m *Memory) Flags1() uint8                { return m.bytes[offFlags1] }
func (m *Memory) Release() uint16              { return m.h16(offRelease) }
func (m *Memory) InitialPC() uint16            { return m.h16(offInitialPC) }
func (m *Memory) DictionaryBase() uint16       { return m.h16(offDictionary) }
func (m *Memory) ObjectTableBase() uint16      { return m.h16(offObjectTable) }
func (m *Memory) GlobalTableBase() uint16      { return m.h16(offGlobalTable) }
func (m *Memory) AbbreviationsBase() uint16    { return m.h16(offAbbreviations) }
func (m *Memory) RoutinesOffset() uint16       { return m.h16(offRoutinesOffset) }
func (m *Memory) StringsOffset() uint16        { return m.h16(offStringsOffset) }
func (m *Memory) TerminatingCharsBase() uint16 { return m.h16(offTerminatingChars) }
func (m *Memory) ExtensionTableBase() uint16   { return m.h16(offExtensionTable) }
func (m *Memory) AltCharSetBase() uint16       { return m.h16(offAltCharSet) }
func (m *Memory) Serial() string               { return string(m.bytes[offSerial : offSerial+6]) }

func (m *Memory) ExtensionTableEntry(n uint16) uint16 {
	base := m.ExtensionTableBase()
	if base == 0 {
		return 0
	}
	count := m.h16(uint32(base))
	if n == 0 || n > count {
		return 0
	}
	off := uint32(base) + 2*uint32(n)
	return m.h16(off)
}

func (m *Memory) SetDefaultColors(bg, fg uint8) {
	m.bytes[offDefaultBG] = bg
	m.bytes[offDefaultFG] = fg
}

// PackedAddress widens a packed routine or string address to a byte
// address per the version-dependent multiplier in spec.md S3.
func (m *Memory) PackedAddress(packed uint32, isString bool) uint32 {
	switch {
	case m.Version < 4:
		return 2 * packed
	case m.Version < 6:
		return 4 * packed
	case m.Version < 8:
		offset := uint32(m.RoutinesOffset())
		if isString {
			offset = uint32(m.StringsOffset())
		}
		return 4*packed + 8*offset
	default: // v8
		return 8 * packed
	}
}
