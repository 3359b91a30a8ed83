package zmachine

import "github.com/ifzm/mxyzptlk/zerr"

// RoutineType distinguishes a routine called for its return value
// from one called and discarded (call_*n opcodes, v5+), which
// determines whether retValue writes a result variable on return.
type RoutineType int

const (
	function RoutineType = iota
	procedure
)

// Frame is one call stack entry: the return PC, this routine's
// locals, its private evaluation stack, and enough bookkeeping to
// implement check_arg_count and to serialize as a Quetzal Stks chunk.
// Grounded on the teacher's CallStackFrame, with the warnOnce/*ZMachine
// plumbing replaced by plain error returns.
type Frame struct {
	pc              uint32
	evalStack       []uint16
	locals          []uint16
	routineType     RoutineType
	numArgsPassed   int
	resultVariable  uint8
	storesResult    bool
	returnAddress   uint32 // address of the call instruction, for Quetzal
}

func (f *Frame) push(v uint16) { f.evalStack = append(f.evalStack, v) }

func (f *Frame) pop() (uint16, *zerr.RuntimeError) {
	if len(f.evalStack) == 0 {
		return 0, zerr.Fatalf(zerr.StackUnderflow, "attempt to pop from an empty evaluation stack")
	}
	v := f.evalStack[len(f.evalStack)-1]
	f.evalStack = f.evalStack[:len(f.evalStack)-1]
	return v, nil
}

func (f *Frame) peek() (uint16, *zerr.RuntimeError) {
	if len(f.evalStack) == 0 {
		return 0, zerr.Fatalf(zerr.StackUnderflow, "attempt to peek an empty evaluation stack")
	}
	return f.evalStack[len(f.evalStack)-1], nil
}

// CallStack is the full chain of active frames, innermost (deepest
// call) last.
type CallStack struct {
	frames []*Frame
}

func (s *CallStack) push(f *Frame) { s.frames = append(s.frames, f) }

func (s *CallStack) pop() (*Frame, *zerr.RuntimeError) {
	if len(s.frames) == 0 {
		return nil, zerr.Fatalf(zerr.FrameUnderflow, "attempt to return with no active routine")
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

func (s *CallStack) peek() (*Frame, *zerr.RuntimeError) {
	if len(s.frames) == 0 {
		return nil, zerr.Fatalf(zerr.NoFrame, "no active routine frame")
	}
	return s.frames[len(s.frames)-1], nil
}

func (s *CallStack) depth() int { return len(s.frames) }

// copy deep-copies the stack for save_undo/restore_undo.
func (s *CallStack) copy() *CallStack {
	out := &CallStack{frames: make([]*Frame, len(s.frames))}
	for i, f := range s.frames {
		nf := *f
		nf.evalStack = append([]uint16(nil), f.evalStack...)
		nf.locals = append([]uint16(nil), f.locals...)
		out.frames[i] = &nf
	}
	return out
}
