package zobject

import "github.com/ifzm/mxyzptlk/zerr"

// Property is a decoded property table entry, or the synthetic
// zero-valued entry representing a missing property whose value is
// drawn from the object table's default-properties section.
type Property struct {
	Id                   uint8
	Length               uint8
	DataAddress          uint32
	PropertyHeaderLength uint8
	Address              uint32
	defaultWord          uint16
	isDefault            bool
}

// Byte returns the property's first data byte, or its default-table
// value truncated to a byte if the object doesn't define it.
func (t *Tree) Byte(p Property) uint8 {
	if p.isDefault {
		return uint8(p.defaultWord)
	}
	return t.Mem.MustReadByte(p.DataAddress)
}

// Word returns the property's value as a word: for a 1-byte property
// that's the single byte; for longer properties it's the first two
// bytes, matching get_prop's behavior per spec.md S4.6.
func (t *Tree) Word(p Property) uint16 {
	if p.isDefault {
		return p.defaultWord
	}
	if p.Length == 1 {
		return uint16(t.Mem.MustReadByte(p.DataAddress))
	}
	return t.Mem.MustReadWord(p.DataAddress)
}

// PropertyLength computes a property's length given the address of
// its first data byte (the get_prop_len opcode's contract): it works
// backward to the size byte(s) that precede the data.
func (t *Tree) PropertyLength(dataAddr uint32) uint16 {
	if dataAddr == 0 {
		return 0
	}
	prevByte := t.Mem.MustReadByte(dataAddr - 1)
	if t.Version <= 3 {
		return uint16(prevByte>>5) + 1
	}
	if prevByte&0x80 != 0 {
		if prevByte&0x3f == 0 {
			return 64
		}
		return uint16(prevByte & 0x3f)
	}
	return uint16((prevByte>>6)&1) + 1
}

func (t *Tree) propertyAt(addr uint32) Property {
	sizeByte := t.Mem.MustReadByte(addr)
	var length, id, headerLen uint8 = (sizeByte >> 5) + 1, sizeByte & 0x1f, 1

	if t.Version >= 4 {
		if sizeByte>>7 == 1 {
			length = t.Mem.MustReadByte(addr+1) & 0x3f
			if length == 0 {
				length = 64
			}
			id = sizeByte & 0x3f
			headerLen = 2
		} else {
			length = ((sizeByte >> 6) & 1) + 1
			id = sizeByte & 0x3f
		}
	}

	return Property{
		Id:                   id,
		Length:               length,
		PropertyHeaderLength: headerLen,
		Address:              addr,
		DataAddress:          addr + uint32(headerLen),
	}
}

func (t *Tree) firstPropertyAddr(o *Object) uint32 {
	nameLength := t.Mem.MustReadByte(uint32(o.PropertyPointer))
	return uint32(o.PropertyPointer) + 1 + uint32(nameLength)*2
}

// Property returns o's property, or the story's default value for
// propertyId if o doesn't define it (spec.md S5).
func (t *Tree) Property(o *Object, propertyId uint8) Property {
	addr := t.firstPropertyAddr(o)
	for t.Mem.MustReadByte(addr) != 0 {
		p := t.propertyAt(addr)
		if p.Id == propertyId {
			return p
		}
		if p.Id < propertyId {
			break // properties are stored in descending id order
		}
		addr += uint32(p.PropertyHeaderLength) + uint32(p.Length)
	}

	defaultAddr := uint32(t.Base) + 2*uint32(propertyId-1)
	return Property{Id: propertyId, isDefault: true, defaultWord: t.Mem.MustReadWord(defaultAddr)}
}

// GetByAddress decodes the property whose data starts at dataAddr,
// used by get_prop_addr/get_next_prop callers that already hold an
// address instead of an id.
func (t *Tree) GetByAddress(dataAddr uint32) Property {
	length := t.PropertyLength(dataAddr)
	headerLen := uint32(1)
	if dataAddr >= 2 {
		sizeByte := t.Mem.MustReadByte(dataAddr - 2)
		if t.Version >= 4 && sizeByte>>7 == 1 {
			headerLen = 2
		}
	}
	addr := dataAddr - headerLen
	sizeByte := t.Mem.MustReadByte(addr)
	id := sizeByte & 0x1f
	if t.Version >= 4 {
		id = sizeByte & 0x3f
	}
	return Property{Id: id, Length: uint8(length), PropertyHeaderLength: uint8(headerLen), Address: addr, DataAddress: dataAddr}
}

// Address returns the byte address of propertyId's data on o, or 0 if
// o doesn't define it (get_prop_addr).
func (t *Tree) Address(o *Object, propertyId uint8) uint32 {
	p := t.Property(o, propertyId)
	if p.isDefault {
		return 0
	}
	return p.DataAddress
}

// Next returns the id of the property following propertyId on o, or
// the first property if propertyId is 0, or 0 if propertyId was the
// last (get_next_prop).
func (t *Tree) Next(o *Object, propertyId uint8) (uint8, *zerr.RuntimeError) {
	if propertyId == 0 {
		addr := t.firstPropertyAddr(o)
		if t.Mem.MustReadByte(addr) == 0 {
			return 0, nil
		}
		return t.propertyAt(addr).Id, nil
	}

	p := t.Property(o, propertyId)
	if p.isDefault {
		return 0, zerr.Recoverablef(zerr.InvalidObjectProperty, "object %d has no property %d", o.Id, propertyId)
	}
	nextAddr := p.DataAddress + uint32(p.Length)
	if t.Mem.MustReadByte(nextAddr) == 0 {
		return 0, nil
	}
	return t.propertyAt(nextAddr).Id, nil
}

// Set overwrites propertyId's value on o. Properties longer than two
// bytes can only be modified via storeb/storew at their data address
// directly, matching the Standard's put_prop contract.
func (t *Tree) Set(o *Object, propertyId uint8, value uint16) *zerr.RuntimeError {
	p := t.Property(o, propertyId)
	if p.isDefault {
		return zerr.Recoverablef(zerr.InvalidObjectProperty, "object %d has no property %d to set", o.Id, propertyId)
	}
	switch p.Length {
	case 1:
		return t.Mem.WriteByte(p.DataAddress, uint8(value))
	case 2:
		return t.Mem.WriteWord(p.DataAddress, value)
	default:
		return zerr.Recoverablef(zerr.InvalidObjectPropertySize, "property %d on object %d has length %d, can't put_prop", propertyId, o.Id, p.Length)
	}
}
