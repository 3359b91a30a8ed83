// Command conformance headlessly runs every story file in a directory
// far enough to reach its first input prompt, recording whatever text
// it printed and whether it got there without a fatal error. Grounded
// on the teacher's cmd/gametest, restructured around the new
// Terminal/Player capability seam instead of the teacher's
// channel-of-any output protocol and goroutine-recover pattern.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zmachine"
)

// Result captures the outcome of running a single story to its first
// input prompt.
type Result struct {
	Filename     string   `json:"filename"`
	Version      uint8    `json:"version"`
	Success      bool     `json:"success"`
	PanicMessage string   `json:"panic_message,omitempty"`
	StackTrace   string   `json:"stack_trace,omitempty"`
	FirstScreen  []string `json:"first_screen,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func main() {
	storiesDir := flag.String("stories", "stories", "directory of z-machine story files")
	outputDir := flag.String("output", "testdata", "directory to write results to")
	singleGame := flag.String("game", "", "test a single story file instead of a whole directory")
	flag.Parse()

	if *singleGame != "" {
		r := runGame(*singleGame)
		printResult(r)
		return
	}
	runDirectory(*storiesDir, *outputDir)
}

func runDirectory(storiesDir, outputDir string) {
	if _, err := os.Stat(storiesDir); os.IsNotExist(err) {
		fmt.Printf("stories directory not found: %s (run storyfetch first)\n", storiesDir)
		os.Exit(1)
	}

	entries, err := os.ReadDir(storiesDir)
	if err != nil {
		fmt.Printf("failed to read stories directory: %v\n", err)
		os.Exit(1)
	}

	var games []string
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if len(ext) == 3 && ext[1] == 'z' && ext[2] >= '1' && ext[2] <= '8' {
			games = append(games, filepath.Join(storiesDir, name))
		}
	}
	if len(games) == 0 {
		fmt.Printf("no story files found in %s\n", storiesDir)
		os.Exit(1)
	}
	fmt.Printf("found %d stories to test\n", len(games))

	var results []Result
	for i, path := range games {
		r := runGame(path)
		results = append(results, r)
		status := "ok"
		if !r.Success {
			status = "FAIL"
		}
		fmt.Printf("[%d/%d] %-4s %s\n", i+1, len(games), status, r.Filename)
		if !r.Success && r.ErrorMessage != "" {
			fmt.Printf("       %s\n", r.ErrorMessage)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Printf("failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	resultsPath := filepath.Join(outputDir, "results.json")
	if data, err := json.MarshalIndent(results, "", "  "); err == nil {
		if err := os.WriteFile(resultsPath, data, 0o644); err != nil {
			fmt.Printf("failed to write results: %v\n", err)
		} else {
			fmt.Printf("\nresults written to %s\n", resultsPath)
		}
	}

	var passed, failed int
	for _, r := range results {
		if r.Success {
			passed++
		} else {
			failed++
		}
	}
	fmt.Printf("\npassed: %d, failed: %d, total: %d\n", passed, failed, len(results))
}

func printResult(r Result) {
	fmt.Printf("story: %s\n", r.Filename)
	fmt.Printf("version: %d\n", r.Version)
	fmt.Printf("success: %v\n", r.Success)
	if r.PanicMessage != "" {
		fmt.Printf("panic: %s\n%s\n", r.PanicMessage, r.StackTrace)
	}
	if r.ErrorMessage != "" {
		fmt.Printf("error: %s\n", r.ErrorMessage)
	}
	fmt.Printf("first screen:\n%s\n", strings.Join(r.FirstScreen, "\n"))
}

// recordingTerminal buffers every Print call as plain text; colour
// and styling are irrelevant to a conformance pass so they're dropped.
type recordingTerminal struct {
	lines []string
	cur   strings.Builder
}

func (t *recordingTerminal) Print(window int, text string, style zmachine.TextStyle, fg, bg zmachine.Color) {
	for _, r := range text {
		if r == '\n' {
			t.lines = append(t.lines, t.cur.String())
			t.cur.Reset()
			continue
		}
		t.cur.WriteRune(r)
	}
}
func (t *recordingTerminal) SetCursor(line, col int)         {}
func (t *recordingTerminal) SplitWindow(lines int)           {}
func (t *recordingTerminal) EraseWindow(window int)          {}
func (t *recordingTerminal) SetColor(window int, fg, bg zmachine.Color) {}
func (t *recordingTerminal) ShowStatus(place string, score, moves int, timeBased bool) {
	t.lines = append(t.lines, fmt.Sprintf("[status: %s  score/hr=%d  moves/min=%d]", place, score, moves))
}
func (t *recordingTerminal) Bell() {}

func (t *recordingTerminal) screen() []string {
	lines := append([]string(nil), t.lines...)
	if t.cur.Len() > 0 {
		lines = append(lines, t.cur.String())
	}
	return lines
}

// autoQuitPlayer answers the first read request it sees with "quit"
// (or, for read_char, the 'q' keystroke), which is enough to make
// almost every story print its opening screen and then exit cleanly
// without needing a real human at the keyboard.
type autoQuitPlayer struct {
	reached chan struct{}
	once    bool
}

func newAutoQuitPlayer() *autoQuitPlayer {
	return &autoQuitPlayer{reached: make(chan struct{}, 1)}
}

func (p *autoQuitPlayer) signal() {
	if !p.once {
		p.once = true
		p.reached <- struct{}{}
	}
}

func (p *autoQuitPlayer) ReadLine(ctx context.Context, maxChars int, timeout time.Duration, preloaded string) (string, bool, *zerr.RuntimeError) {
	p.signal()
	return "quit", false, nil
}

func (p *autoQuitPlayer) ReadChar(ctx context.Context, timeout time.Duration) (uint8, bool, *zerr.RuntimeError) {
	p.signal()
	return 'q', false, nil
}

// discardStorage rejects every save/restore so runs stay deterministic
// and don't touch the filesystem.
type discardStorage struct{}

func (discardStorage) WriteSaveFile(name string, data []byte) *zerr.RuntimeError {
	return zerr.Fatalf(zerr.FileError, "save disabled in conformance runs")
}
func (discardStorage) ReadSaveFile(name string) ([]byte, *zerr.RuntimeError) {
	return nil, zerr.Fatalf(zerr.FileError, "restore disabled in conformance runs")
}

func runGame(path string) (result Result) {
	result.Filename = filepath.Base(path)

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.PanicMessage = fmt.Sprintf("%v", r)
			result.StackTrace = string(debug.Stack())
		}
	}()

	storyBytes, err := os.ReadFile(path)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("reading file: %v", err)
		return
	}
	if len(storyBytes) < 64 {
		result.ErrorMessage = "file too small to be a valid story"
		return
	}
	result.Version = storyBytes[0]

	term := &recordingTerminal{}
	player := newAutoQuitPlayer()
	z, zerr := zmachine.Load(storyBytes, term, player, discardStorage{}, zmachine.PolicyIgnore)
	if zerr != nil {
		result.ErrorMessage = zerr.Error()
		return
	}

	done := make(chan *struct{ err error }, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &struct{ err error }{fmt.Errorf("panic in Run: %v", r)}
				return
			}
		}()
		if rerr := z.Run(); rerr != nil {
			done <- &struct{ err error }{rerr}
			return
		}
		done <- &struct{ err error }{nil}
	}()

	select {
	case outcome := <-done:
		result.FirstScreen = term.screen()
		if outcome.err != nil {
			result.ErrorMessage = outcome.err.Error()
			return
		}
		result.Success = true
	case <-player.reached:
		select {
		case outcome := <-done:
			result.FirstScreen = term.screen()
			if outcome.err != nil {
				result.ErrorMessage = outcome.err.Error()
				return
			}
			result.Success = true
		case <-time.After(5 * time.Second):
			result.FirstScreen = term.screen()
			result.ErrorMessage = "timeout after reaching first input prompt"
		}
	case <-time.After(5 * time.Second):
		result.FirstScreen = term.screen()
		result.ErrorMessage = "timeout waiting for first input prompt"
	}
	return
}
