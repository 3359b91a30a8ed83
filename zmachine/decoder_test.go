package zmachine

import "testing"

func TestParseOpcodeLongForm2OP(t *testing.T) {
	// 2OP:20 (add), long form, both operands small constants: 0x14 05 03
	z := newTestMachine(3, []byte{0x14, 5, 3})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Form != longForm || op.Count != OP2 || op.Number != 0x14 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if len(op.Operands) != 2 || op.Operands[0].value != 5 || op.Operands[1].value != 3 {
		t.Fatalf("unexpected operands: %+v", op.Operands)
	}
}

func TestParseOpcodeLongFormVariableOperand(t *testing.T) {
	// top bit of operand 1's type bit set means variable: opcode byte
	// 0x54 = 0b01_010100 -> bit6=1 (op1 variable), bit5=0 (op2 small const)
	z := newTestMachine(3, []byte{0x54, 2, 7})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Operands[0].Type != variableOp {
		t.Fatalf("expected operand 0 to be variable-typed, got %+v", op.Operands[0])
	}
	if op.Operands[1].Type != smallConstant {
		t.Fatalf("expected operand 1 to be a small constant, got %+v", op.Operands[1])
	}
}

func TestParseOpcodeShortForm0OP(t *testing.T) {
	// 0OP:176 (rtrue): form bits 10, operand type bits 11 (omitted), opcode 0
	z := newTestMachine(3, []byte{0xb0})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Form != shortForm || op.Count != OP0 || op.Number != 0 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if len(op.Operands) != 0 {
		t.Fatalf("expected no operands, got %+v", op.Operands)
	}
}

func TestParseOpcodeShortForm1OPLargeConstant(t *testing.T) {
	// 1OP:arbitrary with a large-constant operand: form 10, type 00, number 5
	z := newTestMachine(3, []byte{0x85, 0x01, 0x00})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Count != OP1 || len(op.Operands) != 1 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if op.Operands[0].Type != largeConstant || op.Operands[0].value != 0x0100 {
		t.Fatalf("unexpected operand: %+v", op.Operands[0])
	}
}

func TestParseOpcodeVariableForm2OP(t *testing.T) {
	// VAR form but bit5=0 means 2OP semantics, opcode number from low 5 bits.
	// 0xc1 = 0b11_0_00001 -> form=11 (var), count bit=0 (2OP), number=1 (je)
	// type byte: 0x5f = 0b01_01_11_11 -> op0=small,op1=small,rest omitted
	z := newTestMachine(3, []byte{0xc1, 0x5f, 10, 20})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Form != varForm || op.Count != OP2 || op.Number != 1 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if len(op.Operands) != 2 || op.Operands[0].value != 10 || op.Operands[1].value != 20 {
		t.Fatalf("unexpected operands: %+v", op.Operands)
	}
}

func TestParseOpcodeVariableFormVAR(t *testing.T) {
	// call_vs (opcode byte 0xe0 = 0b111_00000): form=11, count bit=1 -> VAR,
	// number = low 5 bits = 0. Type byte 0x0f -> two large-constant
	// operands then omitted, so decoding stops after the second.
	z := newTestMachine(3, []byte{0xe0, 0x0f, 0x01, 0x00, 0x00, 0x05})

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Form != varForm || op.Count != VAR || op.Number != 0 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if len(op.Operands) != 2 {
		t.Fatalf("expected decoding to stop at the first omitted operand, got %+v", op.Operands)
	}
	if op.Operands[0].value != 0x0100 || op.Operands[1].value != 0x0005 {
		t.Fatalf("unexpected operand values: %+v", op.Operands)
	}
}

func TestParseOpcodeExtendedForm(t *testing.T) {
	// Extended form is only valid in v5+: opcode byte 0xbe, ext number, type byte.
	z := newTestMachine(5, []byte{0xbe, 0x09, 0xff}) // ext 9 = save_undo, no operands (0xff = all omitted)

	op, err := z.ParseOpcode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Form != extForm || op.Count != EXT || op.Number != 9 {
		t.Fatalf("unexpected opcode: %+v", op)
	}
	if len(op.Operands) != 0 {
		t.Fatalf("expected no operands, got %+v", op.Operands)
	}
}

func TestOperandValueResolvesVariable(t *testing.T) {
	z := newTestMachine(3, []byte{0x00})
	frame, err := z.callStack.peek()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame.push(42)

	op := Operand{Type: variableOp, value: 0} // variable 0 = stack top
	v, verr := op.Value(z)
	if verr != nil {
		t.Fatalf("unexpected error: %v", verr)
	}
	if v != 42 {
		t.Fatalf("expected 42 from the evaluation stack, got %d", v)
	}
}
