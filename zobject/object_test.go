package zobject_test

import (
	"testing"

	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zobject"
	"github.com/ifzm/mxyzptlk/zstring"
)

// buildV3Story constructs a minimal v3 story image with a 3-object
// tree rooted at object 1 (children 2 and 3), sized just large enough
// to hold the default-properties section, the object records and two
// small property tables.
func buildV3Story() *zcore.Memory {
	b := make([]uint8, 0x100)
	b[0] = 3 // version
	b[0x0e] = 0x01
	b[0x0f] = 0x00 // static memory base = 0x100 (all of it dynamic)

	const tableBase = 0x40
	objBase := tableBase + 31*2 // 0x7e

	// Object 1: attributes 2,3,19 set; parent 0, sibling 0, child 2.
	b[objBase+0] = 0x30
	b[objBase+2] = 0x10
	b[objBase+4] = 0  // parent
	b[objBase+5] = 0  // sibling
	b[objBase+6] = 2  // child
	b[objBase+7] = 0xa0 >> 8
	b[objBase+8] = 0xa0 & 0xff

	// Object 2: parent 1, sibling 3, child 0.
	o2 := objBase + 9
	b[o2+4] = 1
	b[o2+5] = 3
	b[o2+6] = 0
	b[o2+7] = 0xb0 >> 8
	b[o2+8] = 0xb0 & 0xff

	// Object 3: parent 1, sibling 0, child 0.
	o3 := o2 + 9
	b[o3+4] = 1
	b[o3+5] = 0
	b[o3+6] = 0
	b[o3+7] = 0xc0 >> 8
	b[o3+8] = 0xc0 & 0xff

	// Object 1's property table: no name, property 6 (len 1) = 0x85.
	b[0xa0] = 0
	b[0xa1] = (0 << 5) | 6
	b[0xa2] = 0x85
	b[0xa3] = 0

	// Object 2's property table: no name, no properties.
	b[0xb0] = 0
	b[0xb1] = 0

	// Object 3's property table: no name, property 11 (len 2) = 0x88e5.
	b[0xc0] = 0
	b[0xc1] = (1 << 5) | 11
	b[0xc2] = 0x88
	b[0xc3] = 0xe5
	b[0xc4] = 0

	return zcore.Load(b)
}

func newV3Tree() *zobject.Tree {
	return &zobject.Tree{Mem: buildV3Story(), Base: 0x40, Version: 3, Alphabets: zstring.LoadAlphabets(nil, 0)}
}

func TestZerothObjectRejected(t *testing.T) {
	tree := newV3Tree()
	if _, err := tree.Get(0); err == nil {
		t.Error("expected an error retrieving object 0")
	}
}

func TestObjectTreeStructure(t *testing.T) {
	tree := newV3Tree()

	obj1, err := tree.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if obj1.Child != 2 || obj1.Parent != 0 {
		t.Errorf("unexpected tree shape: parent=%d child=%d", obj1.Parent, obj1.Child)
	}

	obj2, err := tree.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if obj2.Parent != 1 || obj2.Sibling != 3 {
		t.Errorf("unexpected object 2: parent=%d sibling=%d", obj2.Parent, obj2.Sibling)
	}
}

func TestPropertyRetrieval(t *testing.T) {
	tree := newV3Tree()
	obj1, _ := tree.Get(1)
	obj3, _ := tree.Get(3)

	prop6 := tree.Property(obj1, 6)
	if prop6.Length != 1 || tree.Byte(prop6) != 0x85 {
		t.Errorf("property 6 wrong: length=%d value=%x", prop6.Length, tree.Byte(prop6))
	}

	prop11 := tree.Property(obj3, 11)
	if prop11.Length != 2 || tree.Word(prop11) != 0x88e5 {
		t.Errorf("property 11 wrong: length=%d value=%x", prop11.Length, tree.Word(prop11))
	}

	missing := tree.Property(obj1, 9)
	if tree.Word(missing) != 0 {
		t.Errorf("expected zero default for undefined property, got %x", tree.Word(missing))
	}
}

func TestAttributes(t *testing.T) {
	tree := newV3Tree()
	obj1, _ := tree.Get(1)

	if obj1.TestAttribute(1) || obj1.TestAttribute(4) || obj1.TestAttribute(10) {
		t.Error("attributes 1,4,10 should not be set")
	}
	if !(obj1.TestAttribute(2) && obj1.TestAttribute(3) && obj1.TestAttribute(19)) {
		t.Error("attributes 2,3,19 should be set")
	}

	if err := tree.SetAttribute(obj1, 10); err != nil {
		t.Fatal(err)
	}
	if !obj1.TestAttribute(10) {
		t.Error("setting attribute 10 did not take effect")
	}

	if err := tree.ClearAttribute(obj1, 10); err != nil {
		t.Fatal(err)
	}
	if obj1.TestAttribute(10) {
		t.Error("clearing attribute 10 did not take effect")
	}

	if err := tree.SetAttribute(obj1, 40); err == nil {
		t.Error("expected an error setting an out-of-range v3 attribute")
	}
}

func TestInsertRemoveIdempotency(t *testing.T) {
	tree := newV3Tree()

	// Move object 3 under object 2; it should become 2's only child.
	if err := tree.Insert(3, 2); err != nil {
		t.Fatal(err)
	}
	obj2, _ := tree.Get(2)
	obj3, _ := tree.Get(3)
	if obj2.Child != 3 || obj3.Parent != 2 {
		t.Errorf("insert did not reparent: obj2.Child=%d obj3.Parent=%d", obj2.Child, obj3.Parent)
	}

	// Re-inserting into the same place must be a no-op, not an error.
	if err := tree.Insert(3, 2); err != nil {
		t.Fatal(err)
	}

	// Removing twice must also be a no-op.
	if err := tree.Remove(3); err != nil {
		t.Fatal(err)
	}
	if err := tree.Remove(3); err != nil {
		t.Fatal(err)
	}
	obj3, _ = tree.Get(3)
	if obj3.Parent != 0 {
		t.Errorf("object 3 should have no parent after removal, got %d", obj3.Parent)
	}
}
