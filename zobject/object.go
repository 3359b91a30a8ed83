// Package zobject implements the object tree: the parent/sibling/child
// triples, 32- or 48-bit attribute flags and variable-length property
// tables attached to each numbered object. Grounded on the teacher's
// zobject package, generalized to route through zcore.Memory and to
// return errors instead of panicking.
package zobject

import (
	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zstring"
)

// Object is a decoded view of one object table entry. Parent, Sibling
// and Child are always widened to uint16 even on v3, where they're
// stored as single bytes.
type Object struct {
	BaseAddress     uint32
	Id              uint16
	Name            string
	Attributes      uint64 // top 32 bits on v3, top 48 on v4+
	Parent          uint16
	Sibling         uint16
	Child           uint16
	PropertyPointer uint16
}

// Tree is a handle onto a story's object table, bundling the memory
// image with the header fields and text tables object decoding needs.
type Tree struct {
	Mem               *zcore.Memory
	Base              uint16
	Version           uint8
	Alphabets         *zstring.Alphabets
	AbbreviationsBase uint16
}

// MaxAttribute returns the highest valid attribute number (31 on v3,
// 47 on v4+), per spec.md S5.
func (t *Tree) MaxAttribute() uint16 {
	if t.Version <= 3 {
		return 31
	}
	return 47
}

func (t *Tree) recordBase(id uint16) uint32 {
	if t.Version >= 4 {
		return uint32(t.Base) + 63*2 + uint32(id-1)*14
	}
	return uint32(t.Base) + 31*2 + uint32(id-1)*9
}

// Get decodes object id from the tree. Id 0 is never a valid object
// (it's used as the "no parent/sibling/child" sentinel) and is
// rejected with a recoverable error rather than the teacher's panic.
func (t *Tree) Get(id uint16) (*Object, *zerr.RuntimeError) {
	if id == 0 {
		return nil, zerr.Recoverablef(zerr.InvalidObjectTree, "object 0 does not exist")
	}

	base := t.recordBase(id)
	var propertyPtr uint16
	o := &Object{Id: id, BaseAddress: base}

	if t.Version >= 4 {
		propertyPtr = t.Mem.MustReadWord(base + 12)
		o.Attributes = (uint64(t.Mem.MustReadWord(base)) << 48) | (uint64(t.Mem.MustReadWord(base+2)) << 32) | (uint64(t.Mem.MustReadWord(base+4)) << 16)
		o.Parent = t.Mem.MustReadWord(base + 6)
		o.Sibling = t.Mem.MustReadWord(base + 8)
		o.Child = t.Mem.MustReadWord(base + 10)
	} else {
		propertyPtr = t.Mem.MustReadWord(base + 7)
		o.Attributes = (uint64(t.Mem.MustReadWord(base)) << 48) | (uint64(t.Mem.MustReadWord(base+2)) << 32)
		o.Parent = uint16(t.Mem.MustReadByte(base + 4))
		o.Sibling = uint16(t.Mem.MustReadByte(base + 5))
		o.Child = uint16(t.Mem.MustReadByte(base + 6))
	}
	o.PropertyPointer = propertyPtr

	nameLength := t.Mem.MustReadByte(uint32(propertyPtr))
	if nameLength > 0 {
		name, _, err := zstring.Decode(t.Mem, uint32(propertyPtr)+1, t.Alphabets, t.AbbreviationsBase)
		if err != nil {
			return nil, err
		}
		o.Name = name
	}

	return o, nil
}

func (o *Object) TestAttribute(attribute uint16) bool {
	mask := uint64(1) << (63 - attribute)
	return o.Attributes&mask == mask
}

func (t *Tree) setAttributeBits(o *Object) *zerr.RuntimeError {
	if err := t.Mem.WriteWord(o.BaseAddress, uint16(o.Attributes>>48)); err != nil {
		return err
	}
	if err := t.Mem.WriteWord(o.BaseAddress+2, uint16(o.Attributes>>32)); err != nil {
		return err
	}
	if t.Version >= 4 {
		return t.Mem.WriteWord(o.BaseAddress+4, uint16(o.Attributes>>16))
	}
	return nil
}

func (t *Tree) SetAttribute(o *Object, attribute uint16) *zerr.RuntimeError {
	if attribute > t.MaxAttribute() {
		return zerr.Recoverablef(zerr.InvalidObjectAttribute, "attribute %d out of range for version %d", attribute, t.Version)
	}
	o.Attributes |= uint64(1) << (63 - attribute)
	return t.setAttributeBits(o)
}

func (t *Tree) ClearAttribute(o *Object, attribute uint16) *zerr.RuntimeError {
	if attribute > t.MaxAttribute() {
		return zerr.Recoverablef(zerr.InvalidObjectAttribute, "attribute %d out of range for version %d", attribute, t.Version)
	}
	o.Attributes &^= uint64(1) << (63 - attribute)
	return t.setAttributeBits(o)
}

func (t *Tree) SetParent(o *Object, parent uint16) *zerr.RuntimeError {
	o.Parent = parent
	if t.Version >= 4 {
		return t.Mem.WriteWord(o.BaseAddress+6, parent)
	}
	return t.Mem.WriteByte(o.BaseAddress+4, uint8(parent))
}

func (t *Tree) SetSibling(o *Object, sibling uint16) *zerr.RuntimeError {
	o.Sibling = sibling
	if t.Version >= 4 {
		return t.Mem.WriteWord(o.BaseAddress+8, sibling)
	}
	return t.Mem.WriteByte(o.BaseAddress+5, uint8(sibling))
}

func (t *Tree) SetChild(o *Object, child uint16) *zerr.RuntimeError {
	o.Child = child
	if t.Version >= 4 {
		return t.Mem.WriteWord(o.BaseAddress+10, child)
	}
	return t.Mem.WriteByte(o.BaseAddress+6, uint8(child))
}

// Remove detaches id from its parent's sibling chain, repairing
// whichever link pointed at it. Removing an object with no parent is
// a no-op (spec.md S5, insert_obj/remove_obj idempotency).
func (t *Tree) Remove(id uint16) *zerr.RuntimeError {
	object, err := t.Get(id)
	if err != nil {
		return err
	}
	if object.Parent == 0 {
		return nil
	}

	parent, err := t.Get(object.Parent)
	if err != nil {
		return err
	}

	if parent.Child == object.Id {
		if err := t.SetChild(parent, object.Sibling); err != nil {
			return err
		}
	} else {
		currId := parent.Child
		for currId != 0 {
			curr, err := t.Get(currId)
			if err != nil {
				return err
			}
			if curr.Sibling == object.Id {
				if err := t.SetSibling(curr, object.Sibling); err != nil {
					return err
				}
				break
			}
			currId = curr.Sibling
		}
	}

	return t.SetParent(object, 0)
}

// Insert moves id to become the first child of newParent, removing it
// from any previous location first. Inserting into the object it's
// already the first child of is a no-op.
func (t *Tree) Insert(id uint16, newParent uint16) *zerr.RuntimeError {
	if id == newParent {
		return zerr.Recoverablef(zerr.InvalidObjectTree, "object %d cannot become its own parent", id)
	}
	object, err := t.Get(id)
	if err != nil {
		return err
	}
	destination, err := t.Get(newParent)
	if err != nil {
		return err
	}
	if object.Parent == destination.Id && destination.Child == object.Id {
		return nil
	}

	if err := t.Remove(id); err != nil {
		return err
	}

	destination, err = t.Get(newParent)
	if err != nil {
		return err
	}
	if err := t.SetSibling(object, destination.Child); err != nil {
		return err
	}
	if err := t.SetParent(object, destination.Id); err != nil {
		return err
	}
	return t.SetChild(destination, object.Id)
}
