package zmachine

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// TextStyle is the bitmask passed to set_text_style (S4.7, Standard
// 8.7): the four bits combine, except Roman always clears the rest.
type TextStyle int

const (
	Roman        TextStyle = 0b0000_0000
	ReverseVideo TextStyle = 0b0000_0001
	Bold         TextStyle = 0b0000_0010
	Italic       TextStyle = 0b0000_0100
	FixedPitch   TextStyle = 0b0000_1000
)

// Font mirrors set_font's font numbers (Standard 8.8.1). Only Normal
// and FixedPitch are meaningfully distinct in a text terminal.
type Font uint16

const (
	FontNormal     Font = 1
	FontPicture    Font = 2
	FontCharGraphs Font = 3
	FontFixedPitch Font = 4
)

// Color is a 24-bit RGB value, as produced by ResolveColor / trueColour
// from either a named colour number or set_true_colour's 5-5-5 value.
type Color struct{ R, G, B uint8 }

var (
	colorBlack     = Color{0, 0, 0}
	colorRed       = Color{255, 0, 0}
	colorGreen     = Color{0, 255, 0}
	colorYellow    = Color{255, 255, 0}
	colorBlue      = Color{0, 0, 255}
	colorMagenta   = Color{255, 0, 255}
	colorCyan      = Color{0, 255, 255}
	colorWhite     = Color{255, 255, 255}
	colorLightGrey = Color{192, 192, 192}
	colorMedGrey   = Color{128, 128, 128}
	colorDarkGrey  = Color{64, 64, 64}
)

// window indices, spec.md S4.7: 0 is the lower, scrolling, buffered
// main window; 1 is the upper, fixed, cursor-addressable window.
const (
	LowerWindow = 0
	UpperWindow = 1
)

// windowState is the VM-visible state of one of the two text windows.
type windowState struct {
	foreground, background               Color
	defaultForeground, defaultBackground Color
	style                                 TextStyle
	cursorLine, cursorCol                 int
	font                                  Font
}

// ScreenModel is the VM's bookkeeping of windowing/style/colour state;
// actual glyph rendering is delegated to a Terminal. Grounded on the
// teacher's ScreenModel, generalized with real buffering/word-wrap and
// split-window height tracking (the teacher only stamped the struct
// fields and never implemented wrap or scroll).
type ScreenModel struct {
	active      int
	splitHeight int
	buffered    bool
	width       int
	windows     [2]windowState
	pending     strings.Builder // unwrapped text queued for window 0
	term        Terminal
}

func newScreenModel(term Terminal, width int, fg, bg Color) *ScreenModel {
	s := &ScreenModel{active: LowerWindow, buffered: true, width: width, term: term}
	for i := range s.windows {
		s.windows[i] = windowState{
			foreground: fg, background: bg,
			defaultForeground: fg, defaultBackground: bg,
			style: Roman, cursorLine: 1, cursorCol: 1, font: FontNormal,
		}
	}
	return s
}

// Print routes text to the active window. Window 0 queues raw text
// and only word-wraps it at Flush time (on a newline, a read request
// or quit); window 1 is unbuffered and cursor-addressable (Standard
// 8.7.2.3: buffer_mode only affects the lower window).
func (s *ScreenModel) Print(text string) {
	if s.active == LowerWindow && s.buffered {
		s.pending.WriteString(text)
		return
	}

	w := &s.windows[s.active]
	s.term.Print(s.active, text, w.style, w.foreground, w.background)
	if s.active == UpperWindow {
		lines := strings.Split(text, "\n")
		w.cursorLine += len(lines) - 1
		if len(lines) > 1 {
			w.cursorCol = 1
		}
		w.cursorCol += len(lines[len(lines)-1])
	}
}

// Flush word-wraps and emits any text queued for window 0.
func (s *ScreenModel) Flush() {
	if s.pending.Len() == 0 {
		return
	}
	text := s.pending.String()
	s.pending.Reset()
	w := &s.windows[LowerWindow]
	s.term.Print(LowerWindow, wordwrap.String(text, s.width), w.style, w.foreground, w.background)
}

func (s *ScreenModel) SetWindow(window int) {
	s.Flush()
	s.active = window
}

// SplitWindow sets the upper window's height in lines; 0 unsplits it
// (Standard 8.6.1).
func (s *ScreenModel) SplitWindow(lines int) {
	s.splitHeight = lines
	s.term.SplitWindow(lines)
}

func (s *ScreenModel) EraseWindow(window int) {
	s.term.EraseWindow(window)
	if window == UpperWindow || window == -1 {
		s.windows[UpperWindow].cursorLine, s.windows[UpperWindow].cursorCol = 1, 1
	}
}

// SetCursor moves the upper window's cursor (lower window cursor
// positioning is not a legal operation, Standard 8.7.2.2).
func (s *ScreenModel) SetCursor(line, col int) {
	s.windows[UpperWindow].cursorLine = line
	s.windows[UpperWindow].cursorCol = col
	s.term.SetCursor(line, col)
}

func (s *ScreenModel) SetTextStyle(style TextStyle) {
	w := &s.windows[s.active]
	if style == Roman {
		w.style = Roman
	} else {
		w.style |= style
	}
}

func (s *ScreenModel) SetBufferMode(on bool) { s.buffered = on }

// ResolveColor maps a set_colour colour number (Standard 8.3.1) to an
// RGB value, honoring CURRENT(0) and DEFAULT(1) special cases.
func (s *ScreenModel) ResolveColor(n uint16, foreground bool) Color {
	w := &s.windows[s.active]
	switch n {
	case 0:
		if foreground {
			return w.foreground
		}
		return w.background
	case 1:
		if foreground {
			return w.defaultForeground
		}
		return w.defaultBackground
	case 2:
		return colorBlack
	case 3:
		return colorRed
	case 4:
		return colorGreen
	case 5:
		return colorYellow
	case 6:
		return colorBlue
	case 7:
		return colorMagenta
	case 8:
		return colorCyan
	case 9:
		return colorWhite
	case 10:
		return colorLightGrey
	case 11:
		return colorMedGrey
	case 12:
		return colorDarkGrey
	default:
		return colorBlack
	}
}

func (s *ScreenModel) SetColor(fg, bg Color) {
	w := &s.windows[s.active]
	w.foreground, w.background = fg, bg
	s.term.SetColor(s.active, fg, bg)
}

// SetFont switches the active window's font, reporting the previous
// font on success or 0 if the requested font isn't available (Standard
// 8.8.1). A text-only terminal only ever has Normal and FixedPitch.
func (s *ScreenModel) SetFont(f Font) Font {
	if f != FontNormal && f != FontFixedPitch {
		return 0
	}
	w := &s.windows[s.active]
	old := w.font
	w.font = f
	return old
}
