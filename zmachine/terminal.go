package zmachine

import (
	"context"
	"time"

	"github.com/ifzm/mxyzptlk/zerr"
)

// Terminal is the output capability seam (spec.md S9): everything the
// VM knows how to say to a screen, independent of how it's actually
// drawn. Grounded on the teacher's main.go, which instead pushed ad
// hoc values (strings, StatusBar, ScreenModel) down a raw channel;
// here that's replaced with an explicit interface so a headless
// driver (cmd/conformance) and an interactive one (cmd/mxyzptlk) can
// share the same VM core.
type Terminal interface {
	// Print emits text to window (LowerWindow or UpperWindow) styled
	// per the VM's current text style and colours.
	Print(window int, text string, style TextStyle, fg, bg Color)
	SetCursor(line, col int)
	SplitWindow(lines int)
	// EraseWindow clears window, or both windows when window == -1.
	EraseWindow(window int)
	SetColor(window int, fg, bg Color)
	// ShowStatus renders the v3 status bar (show_status / the implicit
	// status line shown before every read on version <= 3).
	ShowStatus(place string, score, moves int, timeBased bool)
	Bell()
}

// Player is the input capability seam: everything the VM needs to ask
// a human (or a script) for text or a keystroke.
type Player interface {
	// ReadLine blocks for a line of input, pre-seeded with preloaded
	// (v5+ input buffers may already contain characters). If timeout
	// is non-zero and elapses first, timedOut is true and text holds
	// whatever had been typed so far.
	ReadLine(ctx context.Context, maxChars int, timeout time.Duration, preloaded string) (text string, timedOut bool, err *zerr.RuntimeError)
	// ReadChar blocks for a single keystroke (read_char).
	ReadChar(ctx context.Context, timeout time.Duration) (chr uint8, timedOut bool, err *zerr.RuntimeError)
}

// Storage is the save-file capability seam: save/restore/save_undo need
// somewhere durable to put bytes, which a headless conformance runner
// and an interactive terminal provide very differently.
type Storage interface {
	WriteSaveFile(name string, data []byte) *zerr.RuntimeError
	ReadSaveFile(name string) ([]byte, *zerr.RuntimeError)
}
