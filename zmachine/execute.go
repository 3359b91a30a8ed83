package zmachine

import (
	"strings"

	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zstring"
	"github.com/ifzm/mxyzptlk/ztable"
)

// execute dispatches a decoded instruction. Grounded on the teacher's
// zmachine.go StepMachine switch, restructured to return errors rather
// than panic and extended to cover the full opcode set spec.md S4.6
// requires (abbreviations, custom alphabets, save/restore via real
// Quetzal, timed reads, sound, Unicode and true-colour extensions).
func (z *ZMachine) execute(opcode *Opcode) *zerr.RuntimeError {
	frame, err := z.callStack.peek()
	if err != nil {
		return err
	}

	switch opcode.Count {
	case OP0:
		return z.executeOP0(opcode, frame)
	case OP1:
		return z.executeOP1(opcode, frame)
	case OP2:
		return z.executeOP2(opcode, frame)
	case VAR:
		return z.executeVAR(opcode, frame)
	case EXT:
		return z.executeEXT(opcode, frame)
	}
	return zerr.Fatalf(zerr.InvalidInstruction, "unknown operand count form")
}

func (z *ZMachine) operand(opcode *Opcode, i int) (uint16, *zerr.RuntimeError) {
	return opcode.Operands[i].Value(z)
}

func (z *ZMachine) storeResult(frame *Frame, value uint16) *zerr.RuntimeError {
	dest, err := z.readIncPC(frame)
	if err != nil {
		return err
	}
	return z.writeVariable(dest, value, false)
}

func (z *ZMachine) executeOP0(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	switch opcode.Number {
	case 0: // rtrue
		return z.retValue(1)
	case 1: // rfalse
		return z.retValue(0)
	case 2: // print
		text, n, err := zstring.Decode(z.Mem, frame.pc, z.Alphabets, z.Mem.AbbreviationsBase())
		if err != nil {
			return err
		}
		frame.pc += n
		return z.appendText(text)
	case 3: // print_ret
		text, n, err := zstring.Decode(z.Mem, frame.pc, z.Alphabets, z.Mem.AbbreviationsBase())
		if err != nil {
			return err
		}
		frame.pc += n
		if err := z.appendText(text); err != nil {
			return err
		}
		if err := z.appendText("\n"); err != nil {
			return err
		}
		return z.retValue(1)
	case 4: // nop
		return nil
	case 5: // save (v1-3 branch on success; v4+ stores; see persistence.go)
		return z.opSave(opcode, frame)
	case 6: // restore
		return z.opRestore(opcode, frame)
	case 7: // restart
		return z.opRestart()
	case 8: // ret_popped
		v, err := z.readVariable(0, false)
		if err != nil {
			return err
		}
		return z.retValue(v)
	case 9: // pop (v1-4) / catch (v5+, stores current frame depth)
		if z.Mem.Version >= 5 {
			return z.storeResult(frame, uint16(z.callStack.depth()))
		}
		_, err := z.readVariable(0, false)
		return err
	case 10: // quit
		z.quit = true
		return nil
	case 11: // new_line
		if err := z.appendText("\n"); err != nil {
			return err
		}
		z.screen.Flush()
		return nil
	case 12: // show_status (v3)
		return z.showStatus()
	case 13: // verify (branch on checksum match)
		return z.handleBranch(frame, z.Mem.Checksum() == z.Mem.HeaderChecksum())
	case 15: // piracy (branch, always "genuine")
		return z.handleBranch(frame, true)
	}
	return zerr.Fatalf(zerr.UnimplementedInstruction, "unimplemented 0OP instruction %d", opcode.Number)
}

func (z *ZMachine) executeOP1(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	a, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}

	switch opcode.Number {
	case 0: // jz
		return z.handleBranch(frame, a == 0)
	case 1: // get_sibling
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		if err := z.storeResult(frame, obj.Sibling); err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Sibling != 0)
	case 2: // get_child
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		if err := z.storeResult(frame, obj.Child); err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Child != 0)
	case 3: // get_parent
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.storeResult(frame, obj.Parent)
	case 4: // get_prop_len
		return z.storeResult(frame, z.objects.PropertyLength(uint32(a)))
	case 5: // inc
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		return z.writeVariable(uint8(a), uint16(signed16(v)+1), true)
	case 6: // dec
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		return z.writeVariable(uint8(a), uint16(signed16(v)-1), true)
	case 7: // print_addr
		text, _, err := zstring.Decode(z.Mem, uint32(a), z.Alphabets, z.Mem.AbbreviationsBase())
		if err != nil {
			return err
		}
		return z.appendText(text)
	case 8: // call_1s
		return z.call(opcode, function)
	case 9: // remove_obj
		return z.removeObject(a)
	case 10: // print_obj
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.appendText(obj.Name)
	case 11: // ret
		return z.retValue(a)
	case 12: // jump
		frame.pc = uint32(int32(frame.pc) + int32(signed16(a)) - 2)
		return nil
	case 13: // print_paddr
		text, _, err := zstring.Decode(z.Mem, z.Mem.PackedAddress(uint32(a), true), z.Alphabets, z.Mem.AbbreviationsBase())
		if err != nil {
			return err
		}
		return z.appendText(text)
	case 14: // load
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		return z.storeResult(frame, v)
	case 15: // not (v1-4) / call_1n (v5+)
		if z.Mem.Version >= 5 {
			return z.call(opcode, procedure)
		}
		return z.storeResult(frame, ^a)
	}
	return zerr.Fatalf(zerr.UnimplementedInstruction, "unimplemented 1OP instruction %d", opcode.Number)
}

func (z *ZMachine) executeOP2(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	a, err := z.operand(opcode, 0)
	if err != nil {
		return err
	}
	b, err := z.operand(opcode, 1)
	if err != nil {
		return err
	}

	switch opcode.Number {
	case 1: // je (2-4 operands; all forms decode at least 2)
		if a == b {
			return z.handleBranch(frame, true)
		}
		for i := 2; i < len(opcode.Operands); i++ {
			v, err := z.operand(opcode, i)
			if err != nil {
				return err
			}
			if a == v {
				return z.handleBranch(frame, true)
			}
		}
		return z.handleBranch(frame, false)
	case 2: // jl
		return z.handleBranch(frame, signed16(a) < signed16(b))
	case 3: // jg
		return z.handleBranch(frame, signed16(a) > signed16(b))
	case 4: // dec_chk
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		nv := signed16(v) - 1
		if err := z.writeVariable(uint8(a), uint16(nv), true); err != nil {
			return err
		}
		return z.handleBranch(frame, nv < signed16(b))
	case 5: // inc_chk
		v, err := z.readVariable(uint8(a), true)
		if err != nil {
			return err
		}
		nv := signed16(v) + 1
		if err := z.writeVariable(uint8(a), uint16(nv), true); err != nil {
			return err
		}
		return z.handleBranch(frame, nv > signed16(b))
	case 6: // jin
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, obj.Parent == b)
	case 7: // test
		return z.handleBranch(frame, a&b == b)
	case 8: // or
		return z.storeResult(frame, a|b)
	case 9: // and
		return z.storeResult(frame, a&b)
	case 10: // test_attr
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, obj.TestAttribute(b))
	case 11: // set_attr
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.objects.SetAttribute(obj, b)
	case 12: // clear_attr
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.objects.ClearAttribute(obj, b)
	case 13: // store
		return z.writeVariable(uint8(a), b, true)
	case 14: // insert_obj
		return z.objects.Insert(a, b)
	case 15: // loadw
		v, err := z.Mem.ReadWord(uint32(a) + 2*uint32(b))
		if err != nil {
			return err
		}
		return z.storeResult(frame, v)
	case 16: // loadb
		v, err := z.Mem.ReadByte(uint32(a) + uint32(b))
		if err != nil {
			return err
		}
		return z.storeResult(frame, uint16(v))
	case 17: // get_prop
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.storeResult(frame, z.objects.Word(z.objects.Property(obj, uint8(b))))
	case 18: // get_prop_addr
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.storeResult(frame, uint16(z.objects.Address(obj, uint8(b))))
	case 19: // get_next_prop
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		next, err := z.objects.Next(obj, uint8(b))
		if err != nil {
			return err
		}
		return z.storeResult(frame, uint16(next))
	case 20: // add
		return z.storeResult(frame, uint16(signed16(a)+signed16(b)))
	case 21: // sub
		return z.storeResult(frame, uint16(signed16(a)-signed16(b)))
	case 22: // mul
		return z.storeResult(frame, uint16(signed16(a)*signed16(b)))
	case 23: // div
		if signed16(b) == 0 {
			return zerr.Recoverablef(zerr.DivideByZero, "division by zero").SetNextAddress(frame.pc + 1)
		}
		return z.storeResult(frame, uint16(signed16(a)/signed16(b)))
	case 24: // mod
		if signed16(b) == 0 {
			return zerr.Recoverablef(zerr.DivideByZero, "division by zero").SetNextAddress(frame.pc + 1)
		}
		return z.storeResult(frame, uint16(signed16(a)%signed16(b)))
	case 25: // call_2s
		return z.call(opcode, function)
	case 26: // call_2n
		return z.call(opcode, procedure)
	case 27: // set_colour
		z.screen.SetColor(z.screen.ResolveColor(a, true), z.screen.ResolveColor(b, false))
		return nil
	case 28: // throw
		for z.callStack.depth() > int(b) {
			if _, err := z.callStack.pop(); err != nil {
				return err
			}
		}
		return z.retValue(a)
	}
	return zerr.Fatalf(zerr.UnimplementedInstruction, "unimplemented 2OP instruction %d", opcode.Number)
}

func (z *ZMachine) executeVAR(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	switch opcode.Number {
	case 0: // call / call_vs
		return z.call(opcode, function)
	case 1: // storew
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		v, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		return z.Mem.WriteWord(uint32(a)+2*uint32(b), v)
	case 2: // storeb
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		v, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		return z.Mem.WriteByte(uint32(a)+uint32(b), uint8(v))
	case 3: // put_prop
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		v, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		obj, err := z.objects.Get(a)
		if err != nil {
			return err
		}
		return z.objects.Set(obj, uint8(b), v)
	case 4: // sread / aread
		return z.read(opcode, frame)
	case 5: // print_char
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.appendText(string(rune(a)))
	case 6: // print_num
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.appendText(signedString(signed16(a)))
	case 7: // random
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.storeResult(frame, z.opRandom(signed16(a)))
	case 8: // push
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.writeVariable(0, a, false)
	case 9: // pull
		if z.Mem.Version == 6 {
			v, err := z.readVariable(0, false)
			if err != nil {
				return err
			}
			return z.storeResult(frame, v)
		}
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		v, err := z.readVariable(0, false)
		if err != nil {
			return err
		}
		return z.writeVariable(uint8(a), v, true)
	case 10: // split_window
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		z.screen.SplitWindow(int(a))
		return nil
	case 11: // set_window
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		z.screen.SetWindow(int(a))
		return nil
	case 12: // call_vs2
		return z.call(opcode, function)
	case 13: // erase_window
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		z.screen.EraseWindow(int(signed16(a)))
		return nil
	case 14: // erase_line
		return nil // a single-terminal-line interpreter has no partial-line erase to perform
	case 15: // set_cursor
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		z.screen.SetCursor(int(a), int(b))
		return nil
	case 16: // get_cursor
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		if err := z.Mem.WriteWord(uint32(a), uint16(z.screen.windows[UpperWindow].cursorLine)); err != nil {
			return err
		}
		return z.Mem.WriteWord(uint32(a)+2, uint16(z.screen.windows[UpperWindow].cursorCol))
	case 17: // set_text_style
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		z.screen.SetTextStyle(TextStyle(a))
		return nil
	case 18: // buffer_mode
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		z.screen.SetBufferMode(a != 0)
		return nil
	case 19: // output_stream
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		var table uint32
		if len(opcode.Operands) > 1 {
			t, err := z.operand(opcode, 1)
			if err != nil {
				return err
			}
			table = uint32(t)
		}
		return z.selectOutputStream(signed16(a), table)
	case 20: // input_stream
		return nil // command-script playback is not wired to a host source
	case 21: // sound_effect
		return z.opSoundEffect(opcode)
	case 22: // read_char
		return z.readChar(opcode, frame)
	case 23: // scan_table
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		c, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		form := uint16(0x82)
		if len(opcode.Operands) > 3 {
			f, err := z.operand(opcode, 3)
			if err != nil {
				return err
			}
			form = f
		}
		addr := ztable.ScanTable(z.Mem, a, uint32(b), c, form)
		if err := z.storeResult(frame, uint16(addr)); err != nil {
			return err
		}
		return z.handleBranch(frame, addr != 0)
	case 24: // not
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.storeResult(frame, ^a)
	case 25: // call_vn
		return z.call(opcode, procedure)
	case 26: // call_vn2
		return z.call(opcode, procedure)
	case 27: // tokenise
		return z.opTokenise(opcode)
	case 28: // encode_text
		return z.opEncodeText(opcode)
	case 29: // copy_table
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		c, err := z.operand(opcode, 2)
		if err != nil {
			return err
		}
		return ztable.CopyTable(z.Mem, uint32(a), uint32(b), int16(c))
	case 30: // print_table
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		b, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		height := uint16(1)
		var skip uint16
		if len(opcode.Operands) > 2 {
			h, err := z.operand(opcode, 2)
			if err != nil {
				return err
			}
			height = h
		}
		if len(opcode.Operands) > 3 {
			s, err := z.operand(opcode, 3)
			if err != nil {
				return err
			}
			skip = s
		}
		return z.appendText(ztable.PrintTable(z.Mem, uint32(a), b, height, skip))
	case 31: // check_arg_count
		a, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.handleBranch(frame, int(a) <= frame.numArgsPassed)
	}
	return zerr.Fatalf(zerr.UnimplementedInstruction, "unimplemented VAR instruction %d", opcode.Number)
}

// executeEXT covers the "extended" instruction form introduced in v5
// (opcode byte 0xBE). Only the opcodes meaningful to a text-only v3-8
// interpreter are handled; the v6 graphical windowing opcodes
// (draw_picture, picture_data, erase_picture, set_margins) have no
// text-terminal equivalent and fall through to unimplemented.
func (z *ZMachine) executeEXT(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	switch opcode.Number {
	case 0: // save
		return z.opSave(opcode, frame)
	case 1: // restore
		return z.opRestore(opcode, frame)
	case 2: // log_shift
		number, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		places, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		shift := signed16(places)
		if shift < -15 || shift > 15 {
			return zerr.Recoverablef(zerr.InvalidShift, "log_shift by %d out of range", shift).SetNextAddress(frame.pc + 1)
		}
		var result uint16
		if shift >= 0 {
			result = number << uint(shift)
		} else {
			result = number >> uint(-shift)
		}
		return z.storeResult(frame, result)
	case 3: // art_shift
		number, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		places, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		shift := signed16(places)
		if shift < -15 || shift > 15 {
			return zerr.Recoverablef(zerr.InvalidShift, "art_shift by %d out of range", shift).SetNextAddress(frame.pc + 1)
		}
		var result int16
		if shift >= 0 {
			result = signed16(number) << uint(shift)
		} else {
			result = signed16(number) >> uint(-shift)
		}
		return z.storeResult(frame, uint16(result))
	case 4: // set_font
		font, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.storeResult(frame, uint16(z.screen.SetFont(Font(font))))
	case 9: // save_undo
		return z.opSaveUndo(frame)
	case 10: // restore_undo
		return z.opRestoreUndo(frame)
	case 11: // print_unicode
		chr, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		return z.appendText(string(rune(chr)))
	case 12: // check_unicode
		chr, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		result := uint16(0)
		switch {
		case chr == '\n' || (chr >= 0x20 && chr <= 0x7e):
			result = 0x03 // can both print and read back this character
		case chr <= 0xff:
			if _, ok := zstring.ZsciiToUnicode(uint8(chr), z.Mem); ok {
				result = 0x03
			}
		}
		return z.storeResult(frame, result)
	case 13: // set_true_colour
		fg, err := z.operand(opcode, 0)
		if err != nil {
			return err
		}
		bg, err := z.operand(opcode, 1)
		if err != nil {
			return err
		}
		z.screen.SetColor(trueColour(fg, z.screen.windows[z.screen.active].foreground), trueColour(bg, z.screen.windows[z.screen.active].background))
		return nil
	}
	return zerr.Fatalf(zerr.UnimplementedInstruction, "unimplemented EXT instruction %d", opcode.Number)
}

// trueColour decodes set_true_colour's 15-bit 5-5-5 BGR value (Standard
// 8.3.7); -1 (0xffff) keeps whatever colour was already set and -2
// (0xfffe) requests the default.
func trueColour(v uint16, current Color) Color {
	switch int16(v) {
	case -1:
		return current
	case -2:
		return colorWhite
	}
	r := uint8((v & 0x1f) << 3)
	g := uint8(((v >> 5) & 0x1f) << 3)
	b := uint8(((v >> 10) & 0x1f) << 3)
	return Color{R: r, G: g, B: b}
}

func signedString(v int16) string {
	var s strings.Builder
	if v < 0 {
		s.WriteByte('-')
		v = -v
	}
	s.WriteString(uintToString(uint16(v)))
	return s.String()
}

func uintToString(v uint16) string {
	if v == 0 {
		return "0"
	}
	var digits [5]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}
