package guipack

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
	"github.com/fyne-io/terminal"

	sifzz "github.com/stuffzez/sifzz/src"
)

// console connects a terminal widget to the host: script output is shown
// in it and ask reads lines typed into it
type console struct {
	term    *terminal.Terminal
	keysIn  *io.PipeReader
	keysOut *io.PipeWriter
	showIn  *io.PipeReader
	showOut *io.PipeWriter
}

func (p *Pack) addConsole(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	p.mu.Lock()
	if p.console != nil {
		p.mu.Unlock()
		c.LogWarn(sifzz.CatGUI, "A console is already open")
		return nil
	}
	p.mu.Unlock()

	con := &console{term: terminal.New()}
	con.keysIn, con.keysOut = io.Pipe()
	con.showIn, con.showOut = io.Pipe()

	logger := c.Logger()
	go func() {
		if err := con.term.RunWithConnection(con.keysOut, con.showIn); err != nil {
			logger.ErrorCat(sifzz.CatGUI, "Terminal error: %v", err)
		}
	}()

	display := &crlfWriter{w: con.showOut}
	c.Host().SetOutput(display)
	c.Host().SetInput(newLineReader(con.keysIn, display))

	p.mu.Lock()
	p.console = con
	p.mu.Unlock()
	place(canvas, newSizedWidget(con.term, size(c, 3, 4)), coords(c, 1, 2), size(c, 3, 4))
	return nil
}

func (con *console) Close() error {
	con.keysOut.Close()
	con.showOut.Close()
	return nil
}

// crlfWriter turns \n into \r\n for the terminal
type crlfWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (cw *crlfWriter) Write(b []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\r\n")
	if _, err := io.WriteString(cw.w, text); err != nil {
		return 0, err
	}
	return len(b), nil
}

// lineReader turns raw key bytes into newline-terminated lines, echoing
// what is typed and handling backspace, Ctrl-U and Ctrl-C
type lineReader struct {
	keys    io.Reader
	echo    io.Writer
	pending bytes.Buffer
}

func newLineReader(keys io.Reader, echo io.Writer) *lineReader {
	return &lineReader{keys: keys, echo: echo}
}

func (lr *lineReader) Read(p []byte) (int, error) {
	if lr.pending.Len() == 0 {
		line, err := lr.readLine()
		if err != nil && line == "" {
			return 0, err
		}
		lr.pending.WriteString(line)
		lr.pending.WriteByte('\n')
	}
	return lr.pending.Read(p)
}

func (lr *lineReader) readLine() (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := lr.keys.Read(buf)
		if err != nil {
			return string(line), err
		}
		if n == 0 {
			continue
		}

		b := buf[0]
		switch {
		case b == '\r' || b == '\n':
			io.WriteString(lr.echo, "\n")
			return string(line), nil
		case b == 0x7F || b == 0x08:
			if len(line) > 0 {
				_, size := utf8.DecodeLastRune(line)
				line = line[:len(line)-size]
				io.WriteString(lr.echo, "\b \b")
			}
		case b == 0x03:
			io.WriteString(lr.echo, "^C\n")
			return "", nil
		case b == 0x15:
			for range utf8.RuneCount(line) {
				io.WriteString(lr.echo, "\b \b")
			}
			line = line[:0]
		case b >= 32 && b < 127:
			line = append(line, b)
			lr.echo.Write([]byte{b})
		case b >= 0xC0:
			seq := []byte{b}
			remaining := 1
			if b >= 0xF0 {
				remaining = 3
			} else if b >= 0xE0 {
				remaining = 2
			}
			for i := 0; i < remaining; i++ {
				if n, err := lr.keys.Read(buf); err != nil || n == 0 {
					break
				}
				seq = append(seq, buf[0])
			}
			line = append(line, seq...)
			lr.echo.Write(seq)
		}
	}
}

// sizedWidget wraps a canvas object and enforces a minimum size
type sizedWidget struct {
	widget.BaseWidget
	wrapped fyne.CanvasObject
	minSize fyne.Size
}

func newSizedWidget(wrapped fyne.CanvasObject, minSize fyne.Size) *sizedWidget {
	s := &sizedWidget{wrapped: wrapped, minSize: minSize}
	s.ExtendBaseWidget(s)
	return s
}

func (s *sizedWidget) CreateRenderer() fyne.WidgetRenderer {
	return &sizedWidgetRenderer{widget: s}
}

func (s *sizedWidget) MinSize() fyne.Size {
	return s.minSize
}

type sizedWidgetRenderer struct {
	widget *sizedWidget
}

func (r *sizedWidgetRenderer) Layout(size fyne.Size) {
	r.widget.wrapped.Resize(size)
	r.widget.wrapped.Move(fyne.NewPos(0, 0))
}

func (r *sizedWidgetRenderer) MinSize() fyne.Size {
	return r.widget.minSize
}

func (r *sizedWidgetRenderer) Refresh() {
	r.widget.wrapped.Refresh()
}

func (r *sizedWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.widget.wrapped}
}

func (r *sizedWidgetRenderer) Destroy() {}
