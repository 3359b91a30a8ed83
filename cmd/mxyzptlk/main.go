// Command mxyzptlk is the interactive terminal front end: a bubbletea
// program that drives a zmachine.ZMachine on its own goroutine and
// bridges the VM's Terminal/Player/Storage capability seams onto the
// TUI's render loop. Grounded on the teacher's main.go, restructured
// around the new synchronous interface seam instead of the teacher's
// raw channel-of-any protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ifzm/mxyzptlk/internal/zconfig"
	"github.com/ifzm/mxyzptlk/selectstoryui"
	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/ziff"
	"github.com/ifzm/mxyzptlk/zmachine"
	"github.com/ifzm/mxyzptlk/zsound"
	"github.com/muesli/reflow/wordwrap"
)

var (
	romFilePath string
	configPath  string
	cfg         zconfig.Config
)

func init() {
	defaultConfig := "mxyzptlk.yaml"
	if home, err := os.UserHomeDir(); err == nil {
		defaultConfig = filepath.Join(home, ".mxyzptlk", "config.yml")
	}
	flag.StringVar(&romFilePath, "rom", "", "path to a z-machine story file")
	flag.StringVar(&configPath, "config", defaultConfig, "path to a runtime configuration file")
	flag.Parse()

	loaded, err := zconfig.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}
	cfg = loaded
	zmachine.EnableLogging(cfg.Logging)
	ziff.EnableLogging(cfg.Logging)
}

func colorToLipgloss(c zmachine.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// keyToZChar maps a bubbletea key message to a Z-machine input
// character code (Standard 3.8, 10.5.2.1: cursor keys, function keys,
// keypad and mouse clicks all have reserved codes above 128).
func keyToZChar(msg tea.KeyMsg) uint8 {
	switch msg.Type {
	case tea.KeyUp:
		return 129
	case tea.KeyDown:
		return 130
	case tea.KeyLeft:
		return 131
	case tea.KeyRight:
		return 132
	case tea.KeyF1:
		return 133
	case tea.KeyF2:
		return 134
	case tea.KeyF3:
		return 135
	case tea.KeyF4:
		return 136
	case tea.KeyF5:
		return 137
	case tea.KeyF6:
		return 138
	case tea.KeyF7:
		return 139
	case tea.KeyF8:
		return 140
	case tea.KeyF9:
		return 141
	case tea.KeyF10:
		return 142
	case tea.KeyF11:
		return 143
	case tea.KeyF12:
		return 144
	case tea.KeyEscape:
		return 27
	case tea.KeyEnter:
		return 13
	case tea.KeyBackspace, tea.KeyDelete:
		return 8
	default:
		return 0
	}
}

func isValidTerminator(code uint8, terminators []uint8) bool {
	return code != 0 && slices.Contains(terminators, code)
}

// readRequest/readResult carry a blocking Player call across the
// goroutine boundary between z.Run() and the bubbletea Update loop.
type readRequest struct {
	char      bool
	maxChars  int
	preloaded string
}

type readResult struct {
	text     string
	chr      uint8
	timedOut bool
}

// bridge implements Terminal, Player and Storage by mutating shared,
// mutex-guarded UI state and nudging the bubbletea program to
// re-render; ReadLine/ReadChar block the VM goroutine on a channel
// filled in by Update when the user finishes typing.
type bridge struct {
	mu sync.Mutex

	program *tea.Program

	status struct {
		place     string
		score     int
		moves     int
		timeBased bool
	}
	lower strings.Builder

	upperHeight int
	upperText   []string
	upperStyle  []lipgloss.Style

	requests chan readRequest
	results  chan readResult

	romPath string
}

func newBridge(romPath string) *bridge {
	return &bridge{romPath: romPath, requests: make(chan readRequest), results: make(chan readResult)}
}

type refreshMsg struct{}

func (b *bridge) notify() {
	if b.program != nil {
		b.program.Send(refreshMsg{})
	}
}

func (b *bridge) Print(window int, text string, style zmachine.TextStyle, fg, bg zmachine.Color) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := lipgloss.NewStyle().
		Foreground(colorToLipgloss(fg)).
		Background(colorToLipgloss(bg)).
		Bold(style&zmachine.Bold != 0).
		Italic(style&zmachine.Italic != 0).
		Reverse(style&zmachine.ReverseVideo != 0)

	if window == zmachine.UpperWindow {
		for _, line := range strings.Split(text, "\n") {
			if len(b.upperText) > 0 {
				row := 0
				b.upperText[row] = line
				b.upperStyle[row] = s
			}
		}
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.lower.WriteString(s.Render(line))
	}
	b.notify()
}

func (b *bridge) SetCursor(line, col int) {}

func (b *bridge) SplitWindow(lines int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lines == b.upperHeight {
		return
	}
	b.upperHeight = lines
	if len(b.upperText) < lines {
		for len(b.upperText) < lines {
			b.upperText = append(b.upperText, "")
			b.upperStyle = append(b.upperStyle, lipgloss.NewStyle())
		}
	} else {
		b.upperText = b.upperText[:lines]
		b.upperStyle = b.upperStyle[:lines]
	}
	b.notify()
}

func (b *bridge) EraseWindow(window int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if window == zmachine.LowerWindow || window == -1 || window == -2 {
		b.lower.Reset()
	}
	if window == zmachine.UpperWindow || window == -1 || window == -2 {
		for i := range b.upperText {
			b.upperText[i] = ""
		}
	}
	b.notify()
}

func (b *bridge) SetColor(window int, fg, bg zmachine.Color) {}

func (b *bridge) ShowStatus(place string, score, moves int, timeBased bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.place, b.status.score, b.status.moves, b.status.timeBased = place, score, moves, timeBased
	b.notify()
}

func (b *bridge) Bell() { fmt.Print("\a") }

func (b *bridge) ReadLine(ctx context.Context, maxChars int, timeout time.Duration, preloaded string) (string, bool, *zerr.RuntimeError) {
	b.requests <- readRequest{maxChars: maxChars, preloaded: preloaded}
	if timeout > 0 {
		select {
		case r := <-b.results:
			return r.text, r.timedOut, nil
		case <-time.After(timeout):
			return "", true, nil
		case <-ctx.Done():
			return "", false, zerr.Fatalf(zerr.InvalidInput, "read cancelled")
		}
	}
	select {
	case r := <-b.results:
		return r.text, r.timedOut, nil
	case <-ctx.Done():
		return "", false, zerr.Fatalf(zerr.InvalidInput, "read cancelled")
	}
}

func (b *bridge) ReadChar(ctx context.Context, timeout time.Duration) (uint8, bool, *zerr.RuntimeError) {
	b.requests <- readRequest{char: true}
	if timeout > 0 {
		select {
		case r := <-b.results:
			return r.chr, r.timedOut, nil
		case <-time.After(timeout):
			return 0, true, nil
		case <-ctx.Done():
			return 0, false, zerr.Fatalf(zerr.InvalidInput, "read cancelled")
		}
	}
	select {
	case r := <-b.results:
		return r.chr, r.timedOut, nil
	case <-ctx.Done():
		return 0, false, zerr.Fatalf(zerr.InvalidInput, "read cancelled")
	}
}

func (b *bridge) saveFilePath(name string) string {
	if name == "" {
		name = defaultSaveFilename(b.romPath)
	}
	return name
}

func (b *bridge) WriteSaveFile(name string, data []byte) *zerr.RuntimeError {
	if err := os.WriteFile(b.saveFilePath(name), data, 0o644); err != nil {
		return zerr.Fatalf(zerr.FileError, "writing save file: %s", err)
	}
	return nil
}

func (b *bridge) ReadSaveFile(name string) ([]byte, *zerr.RuntimeError) {
	data, err := os.ReadFile(b.saveFilePath(name))
	if err != nil {
		return nil, zerr.Fatalf(zerr.FileError, "reading save file: %s", err)
	}
	return data, nil
}

func defaultSaveFilename(romPath string) string {
	if romPath == "" {
		return "story.qzl"
	}
	base := filepath.Base(romPath)
	ext := filepath.Ext(base)
	if len(ext) >= 2 && (ext[1] == 'z' || ext[1] == 'Z') {
		base = base[:len(base)-len(ext)]
	}
	return base + ".qzl"
}

// bellPlayer is the fallback sound_effect backend: it can't really
// play Blorb audio on a text terminal, so it rings the bell once per
// PlaySound call and only remembers whether a sound was started since
// the last StopSound, matching the teacher's ad hoc effect 1/2 beep
// handling generalized to any effect.
type bellPlayer struct{ playing bool }

func (p *bellPlayer) IsPlaying() bool { return p.playing }
func (p *bellPlayer) PlaySound(data []byte, volume uint8, repeats uint8) *zerr.RuntimeError {
	fmt.Print("\a")
	p.playing = true
	return nil
}
func (p *bellPlayer) StopSound()            { p.playing = false }
func (p *bellPlayer) ChangeVolume(v uint8) {}

type runState int

const (
	stateRunning runState = iota
	stateWaitingLine
	stateWaitingChar
)

type storyModel struct {
	b            *bridge
	z            *zmachine.ZMachine
	romBytes     []byte
	romPath      string
	width, height int
	state        runState
	pendingReq   readRequest
	input        textinput.Model
	runErr       string
	done         bool
}

func newStoryModel(romBytes []byte, romPath string) storyModel {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 200
	ti.Prompt = ""

	b := newBridge(romPath)
	z, err := zmachine.Load(romBytes, b, b, b, cfg.ErrorHandling.Policy())
	m := storyModel{b: b, romBytes: romBytes, romPath: romPath, input: ti}
	if err != nil {
		m.runErr = err.Error()
		return m
	}
	m.z = z
	if blorb, berr := loadSiblingBlorb(romPath); berr == nil && blorb != nil {
		z.SetSoundEngine(zsound.NewEngine(&bellPlayer{}, blorb))
	}
	return m
}

func loadSiblingBlorb(romPath string) (*ziff.Blorb, error) {
	if romPath == "" {
		return nil, nil
	}
	candidate := strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".blorb"
	data, err := os.ReadFile(candidate)
	if err != nil {
		return nil, nil
	}
	blorb, zerr := ziff.ParseBlorb(data)
	if zerr != nil {
		return nil, nil
	}
	return blorb, nil
}

func runInterpreter(z *zmachine.ZMachine) tea.Cmd {
	return func() tea.Msg {
		err := z.Run()
		return runFinishedMsg{err}
	}
}

type runFinishedMsg struct{ err *zerr.RuntimeError }

func (m storyModel) Init() tea.Cmd {
	if m.z == nil {
		return tea.Quit
	}
	return tea.Batch(waitForRequest(m.b), runInterpreter(m.z), tea.SetWindowTitle(filepath.Base(m.romPath)))
}

func waitForRequest(b *bridge) tea.Cmd {
	return func() tea.Msg {
		req := <-b.requests
		return req
	}
}

func (m storyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case refreshMsg:
		return m, nil

	case readRequest:
		m.pendingReq = msg
		if msg.char {
			m.state = stateWaitingChar
		} else {
			m.state = stateWaitingLine
			m.input.SetValue(msg.preloaded)
			m.input.CharLimit = msg.maxChars
		}
		return m, nil

	case runFinishedMsg:
		m.done = true
		if msg.err != nil {
			m.runErr = msg.err.Error()
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateWaitingChar:
			m.state = stateRunning
			chr := keyToZChar(msg)
			if chr == 0 && len(msg.Runes) > 0 {
				chr = uint8(msg.Runes[0])
			}
			m.b.results <- readResult{chr: chr}
			return m, waitForRequest(m.b)

		case stateWaitingLine:
			if msg.Type == tea.KeyEnter {
				text := m.input.Value()
				m.b.lower.WriteString(text + "\n")
				m.state = stateRunning
				m.b.results <- readResult{text: text}
				m.input.SetValue("")
				return m, waitForRequest(m.b)
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m storyModel) View() string {
	if m.runErr != "" {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true)
		return fmt.Sprintf("\n%s\n\n%s\n", errStyle.Render("Z-machine error:"), m.runErr)
	}
	if m.width == 0 {
		return "Loading story..."
	}

	m.b.mu.Lock()
	statusLine := ""
	if m.b.status.place != "" {
		statusLine = formatStatusLine(m.width, m.b.status.place, m.b.status.score, m.b.status.moves, m.b.status.timeBased)
	}
	var upper strings.Builder
	for i, line := range m.b.upperText {
		upper.WriteString(m.b.upperStyle[i].Render(line))
		upper.WriteByte('\n')
	}
	lower := m.b.lower.String()
	m.b.mu.Unlock()

	var s strings.Builder
	if statusLine != "" {
		s.WriteString(lipgloss.NewStyle().Reverse(true).Render(statusLine))
		s.WriteByte('\n')
	}
	s.WriteString(upper.String())

	lowerHeight := m.height - strings.Count(statusLine, "\n") - 1 - len(m.b.upperText)
	if lowerHeight < 3 {
		lowerHeight = 3
	}
	wrapped := wordwrap.String(lower, m.width)
	lines := strings.Split(wrapped, "\n")
	if len(lines) > lowerHeight-1 {
		lines = lines[len(lines)-lowerHeight+1:]
	}
	s.WriteString(strings.Join(lines, "\n"))

	if m.state == stateWaitingLine {
		s.WriteString("\n" + m.input.View())
	}
	return s.String()
}

func formatStatusLine(width int, place string, score, moves int, timeBased bool) string {
	right := fmt.Sprintf("Score: %d    Moves: %d", score, moves)
	if timeBased {
		right = fmt.Sprintf("Time: %02d:%02d", score, moves)
	}
	if len(right) >= width {
		return right[:width]
	}
	if len(place)+len(right)+1 >= width {
		return place[:width-len(right)-1] + " " + right
	}
	return place + strings.Repeat(" ", width-len(place)-len(right)) + right
}

func main() {
	var model tea.Model
	if romFilePath != "" {
		data, err := os.ReadFile(romFilePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "reading story file:", err)
			os.Exit(1)
		}
		m := newStoryModel(data, romFilePath)
		model = m
	} else {
		model = selectstoryui.NewUIModel(func(data []byte, path string) tea.Model {
			return newStoryModel(data, path)
		})
	}

	p := tea.NewProgram(model)
	if sm, ok := model.(storyModel); ok && sm.b != nil {
		sm.b.program = p
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error running program:", err)
		os.Exit(1)
	}
}
