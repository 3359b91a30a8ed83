// Package zmachine implements the virtual machine itself: the
// fetch-decode-execute loop, variable and stack routing, routine
// call/return, branching, the object tree and dictionary glue, and
// output stream routing. Grounded on the teacher's zmachine package,
// generalized to thread *zerr.RuntimeError through every fallible
// operation instead of panicking, and to route text through the
// Terminal/Player capability seam instead of bubbletea channels.
package zmachine

import (
	"go.uber.org/zap"

	"github.com/ifzm/mxyzptlk/dictionary"
	"github.com/ifzm/mxyzptlk/zcore"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zobject"
	"github.com/ifzm/mxyzptlk/zsound"
	"github.com/ifzm/mxyzptlk/zstring"
	"github.com/ifzm/mxyzptlk/ztable"
)

// OutputStreams tracks which of the four output streams (Standard
// 7.1) are currently selected; more than one can be active at once,
// except stream 3 which suppresses every other stream while active.
type OutputStreams struct {
	Screen     bool
	Transcript bool
	Memory     bool
	memStack   []memoryStream
}

type memoryStream struct {
	table uint32
	ptr   uint32
}

// ErrorPolicy governs what happens when a recoverable *zerr.RuntimeError
// reaches the top of the step loop (spec.md S7): Strict stops the
// machine and surfaces the error, Ignore silently resumes at the
// error's NextAddress.
type ErrorPolicy int

const (
	PolicyIgnore ErrorPolicy = iota
	PolicyStrict
)

// ZMachine is the whole interpreter state for one running story.
type ZMachine struct {
	Mem                *zcore.Memory
	Alphabets          *zstring.Alphabets
	dict               *dictionary.Dictionary
	objects            *zobject.Tree
	originalDynamicMem []byte

	callStack CallStack
	streams   OutputStreams
	screen    *ScreenModel
	rng       *RNG
	sound     *zsound.Engine
	undo      []undoState

	term    Terminal
	player  Player
	storage Storage
	policy  ErrorPolicy
	warned  map[zerr.Code]bool

	quit    bool
	quitErr *zerr.RuntimeError
}

type undoState struct {
	dynamicMemory []uint8
	callStack     *CallStack
}

// Colour name constants matching the Standard's default palette
// (Standard 8.3.2: default is usually black-on-white or similar,
// interpreter-chosen).
const (
	Black = 2
	White = 9
)

// SupportedVersions are the story file versions this interpreter
// implements. v1/v2 (pre-dictionary-shortcuts) and v6 (the graphical
// windowing model) are out of scope per spec.md S1's Non-goals.
var SupportedVersions = map[uint8]bool{3: true, 4: true, 5: true, 7: true, 8: true}

// Load builds a ZMachine from a raw story file and the host's
// terminal/player implementations.
func Load(storyFile []uint8, term Terminal, player Player, storage Storage, policy ErrorPolicy) (*ZMachine, *zerr.RuntimeError) {
	if len(storyFile) < zcore.HeaderSize || !SupportedVersions[storyFile[0]] {
		return nil, zerr.Fatalf(zerr.UnsupportedVersion, "story file version %d is not supported", storyFile[0])
	}

	mem := zcore.Load(storyFile)
	mem.SetDefaultColors(Black, White)

	alphabets := zstring.LoadAlphabets(mem, altCharSetBase(mem))

	dict, err := dictionary.Parse(mem, mem.DictionaryBase(), mem.Version, alphabets, mem.AbbreviationsBase())
	if err != nil {
		return nil, err
	}

	z := &ZMachine{
		Mem:                mem,
		Alphabets:          alphabets,
		dict:               dict,
		originalDynamicMem: mem.DynamicImage(),
		objects:   &zobject.Tree{Mem: mem, Base: mem.ObjectTableBase(), Version: mem.Version, Alphabets: alphabets, AbbreviationsBase: mem.AbbreviationsBase()},
		streams:   OutputStreams{Screen: true},
		rng:       NewRNG(),
		term:      term,
		player:    player,
		storage:   storage,
		policy:    policy,
		warned:    map[zerr.Code]bool{},
	}
	z.screen = newScreenModel(term, 80, colorWhite, colorBlack)

	z.callStack.push(&Frame{pc: uint32(mem.InitialPC())})

	logger.Info("story loaded", zap.Uint8("version", mem.Version), zap.Uint16("release", mem.Release()))

	return z, nil
}

func altCharSetBase(mem *zcore.Memory) uint16 {
	if mem.Version < 5 {
		return 0
	}
	return mem.AltCharSetBase()
}

func (z *ZMachine) Version() uint8 { return z.Mem.Version }

// SetSoundEngine attaches a sound engine built from the story's Blorb
// resource file, if one was supplied alongside the story. Without a
// Blorb, sound_effect is accepted and silently ignored.
func (z *ZMachine) SetSoundEngine(e *zsound.Engine) { z.sound = e }

func (z *ZMachine) readIncPC(frame *Frame) (uint8, *zerr.RuntimeError) {
	v, err := z.Mem.ReadByte(frame.pc)
	if err != nil {
		return 0, err
	}
	frame.pc++
	return v, nil
}

func (z *ZMachine) readHalfWordIncPC(frame *Frame) (uint16, *zerr.RuntimeError) {
	v, err := z.Mem.ReadWord(frame.pc)
	if err != nil {
		return 0, err
	}
	frame.pc += 2
	return v, nil
}

// readVariable resolves variable number 0 (evaluation stack), 1-15
// (routine locals) or 16+ (globals). indirect matters only for
// variable 0: the seven opcodes with an indirect variable operand
// (inc, dec, inc_chk, dec_chk, load, store, pull) read/write the top
// of stack in place rather than popping it (Standard 4.2.2, 6.3.4).
func (z *ZMachine) readVariable(variable uint8, indirect bool) (uint16, *zerr.RuntimeError) {
	frame, err := z.callStack.peek()
	if err != nil {
		return 0, err
	}

	switch {
	case variable == 0:
		if indirect {
			return frame.peek()
		}
		return frame.pop()
	case variable < 16:
		if int(variable-1) >= len(frame.locals) {
			return 0, zerr.Fatalf(zerr.InvalidLocalVariable, "local variable %d does not exist in this frame", variable)
		}
		return frame.locals[variable-1], nil
	default:
		return z.Mem.ReadWord(uint32(z.Mem.GlobalTableBase()) + 2*(uint32(variable)-16))
	}
}

func (z *ZMachine) writeVariable(variable uint8, value uint16, indirect bool) *zerr.RuntimeError {
	frame, err := z.callStack.peek()
	if err != nil {
		return err
	}

	switch {
	case variable == 0:
		if indirect {
			if _, err := frame.pop(); err != nil {
				return err
			}
		}
		frame.push(value)
		return nil
	case variable < 16:
		if int(variable-1) >= len(frame.locals) {
			return zerr.Fatalf(zerr.InvalidLocalVariable, "local variable %d does not exist in this frame", variable)
		}
		frame.locals[variable-1] = value
		return nil
	default:
		return z.Mem.WriteWord(uint32(z.Mem.GlobalTableBase())+2*(uint32(variable)-16), value)
	}
}

// call invokes the routine named by the first operand. routineType
// distinguishes call_*s (value returned and stored) from call_*n
// (value discarded, v5+). A call to address 0 is the Standard's
// special case: it returns false immediately without pushing a frame.
func (z *ZMachine) call(opcode *Opcode, routineType RoutineType) *zerr.RuntimeError {
	addr, err := opcode.Operands[0].Value(z)
	if err != nil {
		return err
	}
	routineAddress := z.Mem.PackedAddress(uint32(addr), false)

	callerFrame, err := z.callStack.peek()
	if err != nil {
		return err
	}

	if routineAddress == 0 {
		if routineType == function {
			dest, err := z.readIncPC(callerFrame)
			if err != nil {
				return err
			}
			return z.writeVariable(dest, 0, false)
		}
		return nil
	}

	localCount, err := z.Mem.ReadByte(routineAddress)
	if err != nil {
		return err
	}
	routineAddress++

	locals := make([]uint16, localCount)
	for i := 0; i < int(localCount); i++ {
		if i+1 < len(opcode.Operands) {
			v, err := opcode.Operands[i+1].Value(z)
			if err != nil {
				return err
			}
			locals[i] = v
		} else if z.Mem.Version < 5 {
			v, err := z.Mem.ReadWord(routineAddress)
			if err != nil {
				return err
			}
			locals[i] = v
		}
		if z.Mem.Version < 5 {
			routineAddress += 2
		}
	}

	var resultVar uint8
	storesResult := routineType == function
	if storesResult {
		resultVar, err = z.readIncPC(callerFrame)
		if err != nil {
			return err
		}
	}

	z.callStack.push(&Frame{
		pc:             routineAddress,
		locals:         locals,
		routineType:    routineType,
		numArgsPassed:  len(opcode.Operands) - 1,
		resultVariable: resultVar,
		storesResult:   storesResult,
		returnAddress:  opcode.at,
	})
	return nil
}

// retValue pops the current frame and, if its caller expects a
// result, stores val in the caller-supplied result variable.
func (z *ZMachine) retValue(val uint16) *zerr.RuntimeError {
	frame, err := z.callStack.pop()
	if err != nil {
		return err
	}
	if frame.storesResult {
		return z.writeVariable(frame.resultVariable, val, false)
	}
	return nil
}

// handleBranch decodes the branch byte(s) following an instruction
// and, if result matches the branch's sense, either returns from the
// current routine (offsets 0/1, Standard 4.7.1) or jumps frame.pc.
func (z *ZMachine) handleBranch(frame *Frame, result bool) *zerr.RuntimeError {
	b1, err := z.readIncPC(frame)
	if err != nil {
		return err
	}

	branchOnTrue := b1&0x80 != 0
	singleByte := b1&0x40 != 0
	offset := int32(b1 & 0x3f)

	if !singleByte {
		b2, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		raw := uint16(b1&0x3f)<<8 | uint16(b2)
		offset = int32(int16(raw<<2) >> 2)
	}

	if result != branchOnTrue {
		return nil
	}
	switch offset {
	case 0:
		return z.retValue(0)
	case 1:
		return z.retValue(1)
	default:
		frame.pc = uint32(int32(frame.pc) + offset - 2)
		return nil
	}
}

// appendText routes decoded text to whichever output streams are
// selected (Standard 7.1): stream 3 (memory) takes exclusive priority
// over streams 1/2 while active.
func (z *ZMachine) appendText(s string) *zerr.RuntimeError {
	if z.streams.Memory {
		top := &z.streams.memStack[len(z.streams.memStack)-1]
		for i := 0; i < len(s); i++ {
			if err := z.Mem.WriteByte(top.ptr, s[i]); err != nil {
				return err
			}
			top.ptr++
		}
		return nil
	}

	if z.streams.Screen {
		z.screen.Print(s)
	}
	_ = z.streams.Transcript // stream 2's on/off state is tracked, but no transcript is written
	return nil
}

func (z *ZMachine) selectOutputStream(n int16, table uint32) *zerr.RuntimeError {
	switch {
	case n == 1:
		z.streams.Screen = true
	case n == -1:
		z.streams.Screen = false
	case n == 2:
		z.streams.Transcript = true
	case n == -2:
		z.streams.Transcript = false
	case n == 3:
		z.streams.Memory = true
		z.streams.memStack = append(z.streams.memStack, memoryStream{table: table, ptr: table + 2})
	case n == -3:
		if len(z.streams.memStack) == 0 {
			return zerr.Recoverablef(zerr.Stream3Table, "output_stream -3 with no active memory stream")
		}
		top := z.streams.memStack[len(z.streams.memStack)-1]
		z.streams.memStack = z.streams.memStack[:len(z.streams.memStack)-1]
		if len(z.streams.memStack) == 0 {
			z.streams.Memory = false
		}
		length := top.ptr - top.table - 2
		if err := z.Mem.WriteWord(top.table, uint16(length)); err != nil {
			return err
		}
	case n == 4 || n == -4:
		// Stream 4 (command script recording/playback) is not wired to
		// a host sink in this interpreter; accepted as a no-op.
	}
	return nil
}

// Run drives the fetch-decode-execute loop until a quit instruction or
// an error the policy does not resume from. It has no separate
// cancellation hook for the host.
func (z *ZMachine) Run() *zerr.RuntimeError {
	logger.Debug("run starting")
	for !z.quit {
		if err := z.Step(); err != nil {
			if !err.Recoverable || z.policy == PolicyStrict {
				logger.Error("fatal error", zap.String("code", err.Code.String()), zap.String("message", err.Message))
				return err
			}
			if !z.warned[err.Code] {
				z.warned[err.Code] = true
				logger.Warn("recoverable error", zap.String("code", err.Code.String()), zap.String("message", err.Message))
			}
			if err.HasNextAddress() {
				frame, ferr := z.callStack.peek()
				if ferr != nil {
					return err
				}
				frame.pc = err.NextAddress
			}
		}
	}
	z.screen.Flush()
	logger.Debug("run finished")
	return z.quitErr
}

// Step decodes and executes one instruction.
func (z *ZMachine) Step() *zerr.RuntimeError {
	opcode, err := z.ParseOpcode()
	if err != nil {
		return err
	}
	return z.execute(&opcode)
}

func (z *ZMachine) moveObject(objId uint16, newParent uint16) *zerr.RuntimeError {
	return z.objects.Insert(objId, newParent)
}

func (z *ZMachine) removeObject(objId uint16) *zerr.RuntimeError {
	return z.objects.Remove(objId)
}

// signed16 views a raw word as the Standard's 2's-complement signed
// 16-bit value, used by every signed arithmetic/comparison opcode.
func signed16(v uint16) int16 { return int16(v) }

func boolToUint16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
