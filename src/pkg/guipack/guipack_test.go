package guipack

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifzz "github.com/stuffzez/sifzz/src"
)

// fakeDialogs records messages and answers every question with answer
type fakeDialogs struct {
	shown  []string
	answer bool
}

func (d *fakeDialogs) Message(kind DialogKind, title, text string) {
	d.shown = append(d.shown, string(kind)+"|"+title+"|"+text)
}

func (d *fakeDialogs) YesNo(title, question string) bool {
	d.shown = append(d.shown, "yesno|"+title+"|"+question)
	return d.answer
}

func newHost(t *testing.T, dialogs Dialogs) (*sifzz.Host, *Pack, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cfg := sifzz.DefaultConfig()
	cfg.Stdout = out
	cfg.Stderr = errOut
	h := sifzz.New(cfg)
	p := New(test.NewTempApp(t), dialogs)
	require.NoError(t, h.LoadExtension(p))
	t.Cleanup(func() { _ = h.Close() })
	return h, p, out, errOut
}

func run(t *testing.T, h *sifzz.Host, src string) {
	t.Helper()
	require.NoError(t, h.Run(context.Background(), src, "gui.sfzz"))
}

func TestWidgetsNeedAWindow(t *testing.T) {
	h, _, _, errOut := newHost(t, &fakeDialogs{})
	run(t, h, `add label "Hi" at x 1 y 2
start gui`)
	assert.Equal(t, 2, strings.Count(errOut.String(), "Create a window first!"))
}

func TestLabelsAndEntries(t *testing.T) {
	h, p, _, errOut := newHost(t, &fakeDialogs{})
	run(t, h, `create window "Demo" width 300 height 200
add label "Name:" at x 10 y 10
add entry at x 80 y 10 store in name
update label "Name:" to "Your name:"
update label "Missing" to "x"`)

	assert.Contains(t, errOut.String(), "Label 'Missing' not found!")
	v, ok := h.Env().Get("name")
	require.True(t, ok)
	assert.Equal(t, "", v)

	require.Len(t, p.canvas.Objects, 2)
	label := p.canvas.Objects[0].(*widget.Label)
	assert.Equal(t, "Your name:", label.Text)
	assert.Equal(t, float32(10), label.Position().X)

	entry := p.canvas.Objects[1].(*widget.Entry)
	test.Type(entry, "Ada")
	run(t, h, "wait 0 seconds")
	v, _ = h.Env().Get("name")
	assert.Equal(t, "Ada", v)

	run(t, h, "clear entry name\nget entry nope")
	assert.Equal(t, "", entry.Text)
	v, _ = h.Env().Get("name")
	assert.Equal(t, "", v)
	assert.Contains(t, errOut.String(), "Entry field 'nope' not found!")
}

func TestButtonRunsItsCommandThroughTheQueue(t *testing.T) {
	h, p, out, _ := newHost(t, &fakeDialogs{})
	run(t, h, `set clicks to 0
create window "Counter" width 200 height 100
add button "Count" at x 5 y 5 and run "increase clicks" on click
add checkbox "Loud" at x 5 y 40 store in loud`)

	button := p.canvas.Objects[0].(*widget.Button)
	check := p.canvas.Objects[1].(*widget.Check)
	test.Tap(button)
	test.Tap(button)
	test.Tap(check)

	// nothing changes until the script lets the queue run
	v, _ := h.Env().Get("clicks")
	assert.Equal(t, int64(0), v)

	run(t, h, "wait 0 seconds\nsay clicks\nsay loud")
	assert.Equal(t, "2\nTrue\n", out.String())
}

func TestDropdown(t *testing.T) {
	h, p, _, errOut := newHost(t, &fakeDialogs{})
	run(t, h, `create list sizes
add "small" to sizes
add "large" to sizes
create list nothing
create window "Pick" width 200 height 100
add dropdown at x 5 y 5 options sizes store in size
add dropdown at x 5 y 40 options nothing store in other
add dropdown at x 5 y 80 options absent store in other`)

	assert.Contains(t, errOut.String(), "List 'nothing' is empty!")
	assert.Contains(t, errOut.String(), "List 'absent' not found!")
	v, _ := h.Env().Get("size")
	assert.Equal(t, "small", v)

	require.Len(t, p.canvas.Objects, 1)
	sel := p.canvas.Objects[0].(*widget.Select)
	sel.SetSelected("large")
	run(t, h, "wait 0 seconds")
	v, _ = h.Env().Get("size")
	assert.Equal(t, "large", v)
}

func TestDialogs(t *testing.T) {
	dialogs := &fakeDialogs{answer: true}
	h, _, _, _ := newHost(t, dialogs)
	run(t, h, `show error "Oops" "Something broke"
show message "Hi" "Hello there"
ask yes/no "Quit" "Really quit?" store in sure`)

	assert.Equal(t, []string{
		"error|Oops|Something broke",
		"message|Hi|Hello there",
		"yesno|Quit|Really quit?",
	}, dialogs.shown)
	v, _ := h.Env().Get("sure")
	assert.Equal(t, true, v)
}

func TestStartGUIReturnsWhenTheWindowCloses(t *testing.T) {
	h, p, out, _ := newHost(t, &fakeDialogs{})
	run(t, h, `create window "Quit" width 100 height 100
add button "Done" at x 1 y 1 and run "close window" on click`)

	button := p.canvas.Objects[0].(*widget.Button)
	test.Tap(button)
	run(t, h, "start gui\nsay \"closed\"")
	assert.Equal(t, "closed\n", out.String())
	assert.Nil(t, p.window)
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &crlfWriter{w: &buf}
	n, err := io.WriteString(w, "a\nb\r\nc")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "a\r\nb\r\nc", buf.String())
}

func TestLineReader(t *testing.T) {
	keys := "hel\x7flo\rwipe\x15ok\n\x03caf\xc3\xa9\x08\xc3\xa9\r"
	var echo bytes.Buffer
	lr := newLineReader(strings.NewReader(keys), &echo)

	data, err := io.ReadAll(lr)
	require.NoError(t, err)
	assert.Equal(t, "helo\nok\n\ncafé\n", string(data))
	assert.True(t, strings.HasPrefix(echo.String(), "hel\b \blo\n"))
	assert.Contains(t, echo.String(), "^C\n")
}
