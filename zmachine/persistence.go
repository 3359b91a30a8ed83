package zmachine

import (
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/ziff"
)

const defaultSaveName = "story.qzl"

// captureQuetzal snapshots the running machine into a ziff.SaveImage.
// instructionAddress is the address execution should resume at after a
// successful restore, i.e. the address right after the save opcode.
func (z *ZMachine) captureQuetzal(instructionAddress uint32) ziff.SaveImage {
	var frames []ziff.StackFrame
	for _, f := range z.callStack.frames {
		flags := uint8(len(f.locals))
		if !f.storesResult {
			flags |= 0x10
		}
		frames = append(frames, ziff.StackFrame{
			ReturnAddress:  f.returnAddress,
			Flags:          flags,
			ResultVariable: f.resultVariable,
			ArgsSupplied:   byte(0xff >> (8 - uint(f.numArgsPassed))),
			Locals:         append([]uint16(nil), f.locals...),
			EvalStack:      append([]uint16(nil), f.evalStack...),
		})
	}

	var serial [6]byte
	copy(serial[:], z.Mem.Serial())

	return ziff.SaveImage{
		Release:     z.Mem.Release(),
		Serial:      serial,
		Checksum:    z.Mem.HeaderChecksum(),
		PC:          instructionAddress,
		DynamicMem:  z.Mem.DynamicImage(),
		OriginalMem: z.originalDynamicMem,
		Frames:      frames,
	}
}

func (z *ZMachine) restoreQuetzal(img *ziff.SaveImage) *zerr.RuntimeError {
	if err := z.Mem.SetDynamicImage(img.DynamicMem); err != nil {
		return err
	}

	frames := make([]*Frame, 0, len(img.Frames))
	for _, sf := range img.Frames {
		frames = append(frames, &Frame{
			pc:             sf.ReturnAddress,
			locals:         append([]uint16(nil), sf.Locals...),
			evalStack:      append([]uint16(nil), sf.EvalStack...),
			routineType:    routineTypeFromFlags(sf.Flags),
			numArgsPassed:  countArgs(sf.ArgsSupplied),
			resultVariable: sf.ResultVariable,
			storesResult:   sf.Flags&0x10 == 0,
			returnAddress:  sf.ReturnAddress,
		})
	}
	if len(frames) == 0 {
		frames = append(frames, &Frame{pc: img.PC})
	} else {
		frames[len(frames)-1].pc = img.PC
	}
	z.callStack = CallStack{frames: frames}
	return nil
}

func routineTypeFromFlags(flags uint8) RoutineType {
	if flags&0x10 != 0 {
		return procedure
	}
	return function
}

func countArgs(suppliedMask uint8) int {
	n := 0
	for suppliedMask&1 != 0 {
		n++
		suppliedMask >>= 1
	}
	return n
}

// saveResumeAddress computes where execution should continue after a
// successful restore, as though this save's branch/store had already
// indicated success (Standard 6.1.2): V4+ encodes save as a store, so
// the resume point is simply the byte after the operands, where the
// destination variable lives. V1-3 encodes it as a branch, so a
// successful restore must land exactly where a taken branch would -
// offsets 0/1 (the return-0/return-1 shorthand) can't be expressed as
// a bare PC and fall back to the instruction boundary.
func (z *ZMachine) saveResumeAddress(frame *Frame) (uint32, *zerr.RuntimeError) {
	if z.Mem.Version >= 4 {
		return frame.pc + 1, nil
	}

	b1, err := z.Mem.ReadByte(frame.pc)
	if err != nil {
		return 0, err
	}
	branchOnTrue := b1&0x80 != 0
	singleByte := b1&0x40 != 0
	offset := int32(b1 & 0x3f)
	branchLen := uint32(1)

	if !singleByte {
		b2, err := z.Mem.ReadByte(frame.pc + 1)
		if err != nil {
			return 0, err
		}
		branchLen = 2
		raw := uint16(b1&0x3f)<<8 | uint16(b2)
		offset = int32(int16(raw<<2) >> 2)
	}

	after := frame.pc + branchLen
	if !branchOnTrue {
		return after, nil
	}
	switch offset {
	case 0, 1:
		return after, nil
	default:
		return uint32(int32(after) + offset - 2), nil
	}
}

// opSave implements the save opcode for every version: V1-3 branches on
// success, V4+ stores 0 (failed) or 1 (succeeded). The image's PC is
// always the address execution would resume at if the save succeeded,
// computed before the branch/store bytes of *this* invocation are
// consumed (Standard 6.1.2), never a mid-instruction address.
func (z *ZMachine) opSave(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	resumeAt, err := z.saveResumeAddress(frame)
	if err != nil {
		return err
	}

	ok := false
	if z.storage != nil {
		img := z.captureQuetzal(resumeAt)
		data := ziff.EncodeQuetzal(img)
		if err := z.storage.WriteSaveFile(defaultSaveName, data); err == nil {
			ok = true
		}
	}

	if z.Mem.Version < 4 {
		return z.handleBranch(frame, ok)
	}
	return z.storeResult(frame, boolToUint16(ok))
}

// opRestore implements the restore opcode; success replaces the whole
// machine state (dynamic memory and call stack) so the V1-3 branch and
// the V4+ store never actually execute against the pre-restore frame -
// the restored PC takes over instead, matching Standard 6.1.2. For V4+
// the restored PC points at the original save instruction's store
// destination byte, so the restore itself must still write 2 there
// (the "restored", as opposed to "saved", result) before resuming.
func (z *ZMachine) opRestore(opcode *Opcode, frame *Frame) *zerr.RuntimeError {
	if z.storage == nil {
		if z.Mem.Version < 4 {
			return z.handleBranch(frame, false)
		}
		return z.storeResult(frame, 0)
	}

	data, err := z.storage.ReadSaveFile(defaultSaveName)
	if err != nil || data == nil {
		if z.Mem.Version < 4 {
			return z.handleBranch(frame, false)
		}
		return z.storeResult(frame, 0)
	}

	img, derr := ziff.DecodeQuetzal(data, z.originalDynamicMem)
	if derr != nil {
		if z.Mem.Version < 4 {
			return z.handleBranch(frame, false)
		}
		return z.storeResult(frame, 0)
	}
	if err := z.restoreQuetzal(img); err != nil {
		return err
	}
	if z.Mem.Version < 4 {
		return nil
	}
	restored, err := z.callStack.peek()
	if err != nil {
		return err
	}
	return z.storeResult(restored, 2)
}

// opRestart resets dynamic memory to its as-loaded state and starts a
// fresh call stack at the story's initial PC (Standard 6.1.3). The
// header fields zcore.Load stamped (screen size, capability flags) come
// back with originalDynamicMem, which was captured after Load; only the
// interpreter number and version bytes are kept by SetDynamicImage itself.
func (z *ZMachine) opRestart() *zerr.RuntimeError {
	if err := z.Mem.SetDynamicImage(z.originalDynamicMem); err != nil {
		return err
	}
	z.callStack = CallStack{}
	z.callStack.push(&Frame{pc: uint32(z.Mem.InitialPC())})
	z.streams = OutputStreams{Screen: true}
	return nil
}

func (z *ZMachine) opSaveUndo(frame *Frame) *zerr.RuntimeError {
	z.undo = append(z.undo, undoState{
		dynamicMemory: z.Mem.DynamicImage(),
		callStack:     z.callStack.copy(),
	})
	return z.storeResult(frame, 1)
}

func (z *ZMachine) opRestoreUndo(frame *Frame) *zerr.RuntimeError {
	if len(z.undo) == 0 {
		return z.storeResult(frame, 0)
	}
	state := z.undo[len(z.undo)-1]
	z.undo = z.undo[:len(z.undo)-1]

	if err := z.Mem.SetDynamicImage(state.dynamicMemory); err != nil {
		return err
	}
	z.callStack = *state.callStack
	restored, err := z.callStack.peek()
	if err != nil {
		return err
	}
	return z.storeResult(restored, 2)
}
