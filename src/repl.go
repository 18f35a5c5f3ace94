package sifzz

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	replPrompt          = "sifzz> "
	replContinuePrompt  = "...> "
	replMaxHistoryLines = 1000
)

// Prompt colors by terminal background
const (
	promptColorDark  = "\x1b[93m" // bright yellow
	promptColorLight = "\x1b[33m" // dark brown
)

// REPL reads entries interactively and runs them in one host, so variables,
// lists and functions persist between entries
type REPL struct {
	host        *Host
	history     *replHistory
	historyPath string
	color       string
	buffer      []string
}

// NewREPL creates a REPL for host. background is the term_background setting
// ("auto", "dark" or "light").
func NewREPL(host *Host, background string) *REPL {
	r := &REPL{
		host:        host,
		history:     &replHistory{},
		historyPath: replHistoryPath(),
		color:       promptColorDark,
	}
	if background == "light" {
		r.color = promptColorLight
	}
	return r
}

// SetHistoryPath changes where history is loaded from and saved to; an
// empty path disables persistence
func (r *REPL) SetHistoryPath(path string) {
	r.historyPath = path
}

// History returns the entries recorded so far, oldest first
func (r *REPL) History() []string {
	return append([]string(nil), r.history.entries...)
}

// prompt returns the prompt for the next line given what is buffered
func (r *REPL) prompt() string {
	if len(r.buffer) > 0 {
		return replContinuePrompt
	}
	return replPrompt
}

// feed adds one input line. It returns the complete entry once every block
// opened in the buffer is closed, and quit when the user asked to leave.
func (r *REPL) feed(line string) (entry string, ready, quit bool) {
	trimmed := strings.TrimSpace(line)
	if len(r.buffer) == 0 {
		switch strings.ToLower(trimmed) {
		case "exit", "quit":
			return "", false, true
		case "":
			return "", false, false
		}
	}
	r.buffer = append(r.buffer, line)
	if blockBalance(r.buffer) > 0 {
		return "", false, false
	}
	entry = strings.Join(r.buffer, "\n")
	r.buffer = nil
	return entry, true, false
}

// execute runs one complete entry in entryCtx. Only an explicit exit or the
// end of the session context stops the REPL; an interrupted entry does not.
func (r *REPL) execute(ctx, entryCtx context.Context, entry string) error {
	err := r.host.Run(entryCtx, entry, "<repl>")
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExit):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled):
		r.host.logger.Notice("Interrupted")
		return nil
	default:
		r.host.logger.Error("%v", err)
		return nil
	}
}

// Run reads entries line by line from in until EOF, exit or quit. It is used
// when input is not a terminal.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r.loadHistory()
	defer r.saveHistory()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, r.prompt())
	for scanner.Scan() {
		entry, ready, quit := r.feed(scanner.Text())
		if quit {
			return nil
		}
		if ready {
			r.history.Add(entry)
			if err := r.execute(ctx, ctx, entry); err != nil {
				return ignoreExit(err)
			}
		}
		fmt.Fprint(out, r.prompt())
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

// RunTerminal runs the REPL on the process terminal with line editing and
// history. The terminal leaves raw mode while an entry runs, so Ctrl-C
// interrupts the entry and ask reads normally.
func (r *REPL) RunTerminal(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return r.Run(ctx, os.Stdin, r.host.Out())
	}

	r.loadHistory()
	defer r.saveHistory()

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	terminal := term.NewTerminal(screen, "")
	terminal.History = r.history

	fmt.Fprintf(os.Stdout, "Sifzz %s interactive mode. Type exit or quit to leave.\n", Version)
	for {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("entering raw mode: %w", err)
		}
		if w, h, err := term.GetSize(fd); err == nil {
			_ = terminal.SetSize(w, h)
		}
		terminal.SetPrompt(r.color + r.prompt() + colorReset)
		line, err := terminal.ReadLine()
		_ = term.Restore(fd, oldState)

		if errors.Is(err, io.EOF) {
			if len(r.buffer) > 0 {
				r.buffer = nil
				fmt.Fprintln(os.Stdout)
				continue
			}
			fmt.Fprintln(os.Stdout)
			return nil
		}
		if err != nil && !errors.Is(err, term.ErrPasteIndicator) {
			return fmt.Errorf("reading input: %w", err)
		}

		entry, ready, quit := r.feed(line)
		if quit {
			return nil
		}
		if !ready {
			continue
		}

		entryCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = r.execute(ctx, entryCtx, entry)
		stop()
		if err != nil {
			return ignoreExit(err)
		}
	}
}

func ignoreExit(err error) error {
	if errors.Is(err, ErrExit) {
		return nil
	}
	return err
}

// replHistory is a bounded history stored oldest first. It satisfies
// term.History.
type replHistory struct {
	entries []string
}

func (h *replHistory) Add(entry string) {
	if strings.TrimSpace(entry) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > replMaxHistoryLines {
		h.entries = h.entries[len(h.entries)-replMaxHistoryLines:]
	}
}

func (h *replHistory) Len() int { return len(h.entries) }

func (h *replHistory) At(idx int) string {
	return h.entries[len(h.entries)-1-idx]
}

// replHistoryPath returns ~/.sifzz/repl-history.yaml
func replHistoryPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "repl-history.yaml")
}

func (r *REPL) loadHistory() {
	if r.historyPath == "" {
		return
	}
	content, err := os.ReadFile(r.historyPath)
	if err != nil {
		return
	}
	var entries []string
	if err := yaml.Unmarshal(content, &entries); err != nil {
		r.host.logger.WarnCat(CatSystem, "Ignoring unreadable history %s: %v", r.historyPath, err)
		return
	}
	for _, e := range entries {
		r.history.Add(e)
	}
}

func (r *REPL) saveHistory() {
	if r.historyPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyPath), 0o755); err != nil {
		return
	}
	content, err := yaml.Marshal(r.history.entries)
	if err != nil {
		return
	}
	_ = os.WriteFile(r.historyPath, content, 0o644)
}
