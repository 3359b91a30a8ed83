// Package zerr defines the tagged-variant error type shared by every
// subsystem of the interpreter (memory, text, objects, executor, IFF,
// sound). Errors partition into fatal and recoverable; a recoverable
// error carries the address execution would resume at if the host's
// error policy chooses to continue.
package zerr

import "fmt"

// Code identifies the kind of failure. The set mirrors the original
// Rust interpreter's ErrorCode enum so every distinct failure mode keeps
// its own identity instead of collapsing into a handful of buckets.
type Code int

const (
	Unknown Code = iota
	BlorbMissingChunk
	BlorbLoopEntrySize
	BlorbRIdxEntrySize
	ConfigError
	DivideByZero
	FileError
	FileExists
	FrameUnderflow
	IFFInvalidChunkId
	IFhdChunkLength
	IllegalMemoryAccess
	Interpreter
	InvalidAbbreviation
	InvalidAddress
	InvalidColor
	InvalidFile
	InvalidFilename
	InvalidInput
	InvalidInstruction
	InvalidLocalVariable
	InvalidObjectAttribute
	InvalidObjectTree
	InvalidObjectProperty
	InvalidObjectPropertySize
	InvalidOutputStream
	InvalidRoutine
	InvalidShift
	InvalidSoundEffect
	InvalidWindow
	NoFrame
	NoReadInterrupt
	NoSoundInterrupt
	Quetzal
	ReadNothing
	ReadNoTerminator
	Restore
	ReturnNoCaller
	Save
	Stream3Table
	SoundConversion
	SoundPlayback
	StackUnderflow
	Transcript
	UndoNoState
	UnimplementedInstruction
	UnsupportedVersion
)

var names = map[Code]string{
	Unknown:                   "Unknown",
	BlorbMissingChunk:         "BlorbMissingChunk",
	BlorbLoopEntrySize:        "BlorbLoopEntrySize",
	BlorbRIdxEntrySize:        "BlorbRIdxEntrySize",
	ConfigError:               "ConfigError",
	DivideByZero:              "DivideByZero",
	FileError:                 "FileError",
	FileExists:                "FileExists",
	FrameUnderflow:            "FrameUnderflow",
	IFFInvalidChunkId:         "IFFInvalidChunkId",
	IFhdChunkLength:           "IFhdChunkLength",
	IllegalMemoryAccess:       "IllegalMemoryAccess",
	Interpreter:               "Interpreter",
	InvalidAbbreviation:       "InvalidAbbreviation",
	InvalidAddress:            "InvalidAddress",
	InvalidColor:              "InvalidColor",
	InvalidFile:               "InvalidFile",
	InvalidFilename:           "InvalidFilename",
	InvalidInput:              "InvalidInput",
	InvalidInstruction:        "InvalidInstruction",
	InvalidLocalVariable:      "InvalidLocalVariable",
	InvalidObjectAttribute:    "InvalidObjectAttribute",
	InvalidObjectTree:         "InvalidObjectTree",
	InvalidObjectProperty:     "InvalidObjectProperty",
	InvalidObjectPropertySize: "InvalidObjectPropertySize",
	InvalidOutputStream:       "InvalidOutputStream",
	InvalidRoutine:            "InvalidRoutine",
	InvalidShift:              "InvalidShift",
	InvalidSoundEffect:        "InvalidSoundEffect",
	InvalidWindow:             "InvalidWindow",
	NoFrame:                   "NoFrame",
	NoReadInterrupt:           "NoReadInterrupt",
	NoSoundInterrupt:          "NoSoundInterrupt",
	Quetzal:                   "Quetzal",
	ReadNothing:               "ReadNothing",
	ReadNoTerminator:          "ReadNoTerminator",
	Restore:                   "Restore",
	ReturnNoCaller:            "ReturnNoCaller",
	Save:                      "Save",
	Stream3Table:              "Stream3Table",
	SoundConversion:           "SoundConversion",
	SoundPlayback:             "SoundPlayback",
	StackUnderflow:            "StackUnderflow",
	Transcript:                "Transcript",
	UndoNoState:               "UndoNoState",
	UnimplementedInstruction:  "UnimplementedInstruction",
	UnsupportedVersion:        "UnsupportedVersion",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "Unknown"
}

// RuntimeError is the single error type every subsystem returns.
// Fatal errors unwind to the interpreter's top level; recoverable
// errors carry NextAddress so a host-chosen policy can resume there.
type RuntimeError struct {
	Code        Code
	Message     string
	Recoverable bool
	NextAddress uint32
	hasNext     bool
}

func (e *RuntimeError) Error() string {
	kind := "Fatal"
	if e.Recoverable {
		kind = "Recoverable"
	}
	return fmt.Sprintf("%s error - [%s]: %s", kind, e.Code, e.Message)
}

// HasNextAddress reports whether NextAddress was set by SetNextAddress.
func (e *RuntimeError) HasNextAddress() bool { return e.hasNext }

// SetNextAddress records where execution would resume if the host's
// error policy ignores this error.
func (e *RuntimeError) SetNextAddress(addr uint32) *RuntimeError {
	e.NextAddress = addr
	e.hasNext = true
	return e
}

// Fatalf builds a fatal, unrecoverable error.
func Fatalf(code Code, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Recoverablef builds a recoverable error. Callers almost always chain
// SetNextAddress immediately so the interpreter loop knows where to
// resume under an ignore/warn policy.
func Recoverablef(code Code, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...), Recoverable: true}
}
