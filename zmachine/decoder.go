package zmachine

import "github.com/ifzm/mxyzptlk/zerr"

// OperandType is the 2-bit tag on an instruction's operand describing
// how to interpret its following bytes.
type OperandType int

const (
	largeConstant OperandType = 0b00
	smallConstant OperandType = 0b01
	variableOp    OperandType = 0b10
	omitted       OperandType = 0b11
)

// OpcodeForm is one of the four on-disk instruction encodings
// (S4.3): long (2OP, 1-byte opcode), short (0OP/1OP), variable
// (2OP/VAR) or extended (v5+ EXT).
type OpcodeForm int

const (
	longForm  OpcodeForm = 0b00
	extForm   OpcodeForm = 0b01
	shortForm OpcodeForm = 0b10
	varForm   OpcodeForm = 0b11
)

type OperandCount int

const (
	OP0 OperandCount = iota
	OP1
	OP2
	VAR
	EXT
)

// Operand is one decoded instruction operand; Value resolves a
// variable-typed operand to its current contents.
type Operand struct {
	Type  OperandType
	value uint16
}

func (o Operand) Value(z *ZMachine) (uint16, *zerr.RuntimeError) {
	switch o.Type {
	case largeConstant, smallConstant:
		return o.value, nil
	case variableOp:
		return z.readVariable(uint8(o.value), false)
	default:
		return 0, nil
	}
}

// VariableNumber returns the raw variable number of a variable-typed
// operand, used by opcodes (inc, dec, store, load, pull...) that
// operate on a variable indirectly rather than reading its value.
func (o Operand) VariableNumber() uint8 { return uint8(o.value) }

// Opcode is one fully decoded instruction: its form, operand count,
// number and operands, ready for the executor to dispatch on.
type Opcode struct {
	Form     OpcodeForm
	Count    OperandCount
	Number   uint8
	Operands []Operand
	at       uint32 // address the opcode byte was read from, for diagnostics
}

func parseVariableOperands(z *ZMachine, frame *Frame, opcode *Opcode) *zerr.RuntimeError {
	typeByte, err := z.readIncPC(frame)
	if err != nil {
		return err
	}

	var typeByte2 uint8
	maxOperands := 4
	// VAR opcodes 236 (call_vs2) and 250 (call_vn2) take up to 8
	// operands via a second type byte; in the VAR form these are opcode
	// numbers 12 and 26.
	if opcode.Count == VAR && (opcode.Number == 12 || opcode.Number == 26) {
		typeByte2, err = z.readIncPC(frame)
		if err != nil {
			return err
		}
		maxOperands = 8
	}

	for i := 0; i < maxOperands; i++ {
		var t OperandType
		if i < 4 {
			t = OperandType((typeByte >> (2 * (3 - i))) & 0b11)
		} else {
			t = OperandType((typeByte2 >> (2 * (7 - i))) & 0b11)
		}
		if t == omitted {
			break
		}

		switch t {
		case smallConstant, variableOp:
			v, err := z.readIncPC(frame)
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, Operand{Type: t, value: uint16(v)})
		case largeConstant:
			v, err := z.readHalfWordIncPC(frame)
			if err != nil {
				return err
			}
			opcode.Operands = append(opcode.Operands, Operand{Type: t, value: v})
		}
	}
	return nil
}

// ParseOpcode decodes the instruction at the current frame's pc,
// advancing it past the opcode byte(s), operand type byte(s) and
// operands but not past any store/branch/text bytes that follow
// (those are form-dependent and decoded by the executor per opcode).
// Grounded on the teacher's zmachine/opcode.go ParseOpcode.
func (z *ZMachine) ParseOpcode() (Opcode, *zerr.RuntimeError) {
	frame, err := z.callStack.peek()
	if err != nil {
		return Opcode{}, err
	}
	at := frame.pc
	opcodeByte, err := z.readIncPC(frame)
	if err != nil {
		return Opcode{}, err
	}

	opcode := Opcode{Form: OpcodeForm(opcodeByte >> 6), at: at}

	switch {
	case opcodeByte == 0xbe && z.Version() >= 5:
		numberByte, err := z.readIncPC(frame)
		if err != nil {
			return Opcode{}, err
		}
		opcode.Number = numberByte
		opcode.Form = extForm
		opcode.Count = EXT
		if err := parseVariableOperands(z, frame, &opcode); err != nil {
			return Opcode{}, err
		}

	case opcode.Form == varForm:
		opcode.Number = opcodeByte & 0b1_1111
		opcode.Count = VAR
		if (opcodeByte>>5)&1 == 0 {
			opcode.Count = OP2
		}
		if err := parseVariableOperands(z, frame, &opcode); err != nil {
			return Opcode{}, err
		}

	case opcode.Form == shortForm:
		opcode.Number = opcodeByte & 0b1111
		operandType := OperandType((opcodeByte >> 4) & 0b11)
		switch operandType {
		case largeConstant:
			v, err := z.readHalfWordIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.Operands = append(opcode.Operands, Operand{Type: operandType, value: v})
			opcode.Count = OP1
		case smallConstant, variableOp:
			v, err := z.readIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.Operands = append(opcode.Operands, Operand{Type: operandType, value: uint16(v)})
			opcode.Count = OP1
		case omitted:
			opcode.Count = OP0
		}

	default: // long form, always 2OP
		opcode.Number = opcodeByte & 0b1_1111
		opcode.Form = longForm
		opcode.Count = OP2

		op1Type, op2Type := smallConstant, smallConstant
		if (opcodeByte>>6)&1 == 1 {
			op1Type = variableOp
		}
		if (opcodeByte>>5)&1 == 1 {
			op2Type = variableOp
		}
		for _, t := range []OperandType{op1Type, op2Type} {
			v, err := z.readIncPC(frame)
			if err != nil {
				return Opcode{}, err
			}
			opcode.Operands = append(opcode.Operands, Operand{Type: t, value: uint16(v)})
		}
	}

	return opcode, nil
}
