package zmachine

import "testing"

func globalValue(t *testing.T, z *ZMachine, variable uint8) uint16 {
	t.Helper()
	v, err := z.Mem.ReadWord(uint32(z.Mem.GlobalTableBase()) + 2*(uint32(variable)-16))
	if err != nil {
		t.Fatalf("unexpected error reading global %d: %v", variable, err)
	}
	return v
}

func TestExecuteAddStoresResult(t *testing.T) {
	// 2OP:20 (add) 5 3 -> global 16 (variable byte 0x10)
	z := newTestMachine(3, []byte{0x14, 5, 3, 0x10})

	if err := z.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := globalValue(t, z, 16); got != 8 {
		t.Fatalf("expected global 16 = 8, got %d", got)
	}
}

func TestExecuteSubWithNegativeResult(t *testing.T) {
	// 2OP:21 (sub) 3 5 -> global 16; signed arithmetic, result is -2.
	z := newTestMachine(3, []byte{0x15, 3, 5, 0x10})

	if err := z.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := int16(globalValue(t, z, 16)); got != -2 {
		t.Fatalf("expected global 16 = -2, got %d", got)
	}
}

func TestExecuteDivByZeroIsRecoverable(t *testing.T) {
	// 2OP:23 (div) 5 0 -> global 16
	z := newTestMachine(3, []byte{0x17, 5, 0, 0x10})

	err := z.Step()
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
	if !err.Recoverable {
		t.Fatal("division by zero should be recoverable, not fatal")
	}
	if !err.HasNextAddress() {
		t.Fatal("expected a next address so the error policy can resume past the instruction")
	}
}

func TestExecuteStoreWritesVariableDirectly(t *testing.T) {
	// 2OP:13 (store) variable 20, value 99 - no store-result byte of its own.
	z := newTestMachine(3, []byte{0x0d, 20, 99})

	if err := z.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := globalValue(t, z, 20); got != 99 {
		t.Fatalf("expected global 20 = 99, got %d", got)
	}
}

func TestExecuteJeBranchTaken(t *testing.T) {
	// 2OP:1 (je) 5 5 -> branch (single-byte, branch-on-true, offset 10)
	z := newTestMachine(3, []byte{0x01, 5, 5, 0xca})

	if err := z.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, ferr := z.callStack.peek()
	if ferr != nil {
		t.Fatalf("unexpected error: %v", ferr)
	}
	want := uint32(testInitialPC) + 4 + 10 - 2
	if frame.pc != want {
		t.Fatalf("expected pc %#x after a taken branch, got %#x", want, frame.pc)
	}
}

func TestExecuteJeBranchNotTaken(t *testing.T) {
	// 2OP:1 (je) 5 6 -> condition false, branch not taken, pc just advances
	// past the branch byte with no jump.
	z := newTestMachine(3, []byte{0x01, 5, 6, 0xca})

	if err := z.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, ferr := z.callStack.peek()
	if ferr != nil {
		t.Fatalf("unexpected error: %v", ferr)
	}
	want := uint32(testInitialPC) + 4
	if frame.pc != want {
		t.Fatalf("expected pc %#x after a non-taken branch, got %#x", want, frame.pc)
	}
}

func TestExecuteThrowUnwindsToTargetFrame(t *testing.T) {
	z := newTestMachine(3, []byte{0x00})
	// Simulate two nested calls beyond the initial frame.
	z.callStack.push(&Frame{pc: testInitialPC})
	z.callStack.push(&Frame{pc: testInitialPC, storesResult: true, resultVariable: 16})

	if depth := z.callStack.depth(); depth != 3 {
		t.Fatalf("expected 3 frames before throw, got %d", depth)
	}

	opcode := &Opcode{
		Count:  OP2,
		Number: 28, // throw
		Operands: []Operand{
			{Type: smallConstant, value: 77},
			{Type: smallConstant, value: 1}, // target stack depth
		},
	}
	if err := z.execute(opcode); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// throw pops frames down to depth b, then itself returns from that
	// frame, so the final depth is b-1.
	if depth := z.callStack.depth(); depth != 0 {
		t.Fatalf("expected throw to leave depth 0, got %d", depth)
	}
}

func TestExecuteUnimplementedInstructionIsFatal(t *testing.T) {
	// 2OP opcode number 31 doesn't exist in the Standard's 2OP set.
	z := newTestMachine(3, []byte{0x1f, 0, 0})

	err := z.Step()
	if err == nil {
		t.Fatal("expected an error for an unimplemented 2OP instruction")
	}
	if err.Recoverable {
		t.Fatalf("expected a fatal error, got a recoverable one: %v", err)
	}
}
