// Package guipack adds windows, widgets and dialogs to Sifzz scripts.
//
// Statements run on the script goroutine and hand widget work to the fyne
// main thread with fyne.DoAndWait. Widget callbacks run on the fyne thread
// and never touch the environment directly: they post messages to the host
// queue, which "start gui" serves until the window closes.
package guipack

import (
	"fmt"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	sifzz "github.com/stuffzez/sifzz/src"
)

// Pack is the GUI extension unit. It drives a single window.
type Pack struct {
	app     fyne.App
	dialogs Dialogs

	mu      sync.Mutex
	window  fyne.Window
	canvas  *fyne.Container
	labels  map[string]*widget.Label
	entries map[string]*widget.Entry
	closed  chan struct{}
	once    *sync.Once
	console *console
}

// New creates the GUI pack on app. A nil dialogs uses native dialogs.
func New(app fyne.App, dialogs Dialogs) *Pack {
	if dialogs == nil {
		dialogs = NativeDialogs{}
	}
	return &Pack{
		app:     app,
		dialogs: dialogs,
		labels:  make(map[string]*widget.Label),
		entries: make(map[string]*widget.Entry),
	}
}

func (*Pack) Name() string        { return "gui" }
func (*Pack) Description() string { return "Windows, widgets and dialogs" }

func (p *Pack) Commands(*sifzz.Host) []sifzz.Command {
	return []sifzz.Command{
		{Pattern: `create window "([^"]+)" width (\d+) height (\d+)$`, Description: "Open the script window", Handler: p.createWindow},
		{Pattern: `close window$`, Description: "Close the script window", Handler: p.closeWindow},
		{Pattern: `start gui$`, Description: "Handle widget events until the window closes", Handler: p.startGUI},
		{Pattern: `add label "([^"]+)" at x (\d+) y (\d+)$`, Description: "Place a text label", Handler: p.addLabel},
		{Pattern: `add button "([^"]+)" at x (\d+) y (\d+) and run "([^"]+)" on click$`, Description: "Place a button that runs a statement", Handler: p.addButton},
		{Pattern: `add entry at x (\d+) y (\d+) store in (\w+)$`, Description: "Place a one-line text field bound to a variable", Handler: p.addEntry},
		{Pattern: `add text box at x (\d+) y (\d+) width (\d+) height (\d+) store in (\w+)$`, Description: "Place a multi-line text field bound to a variable", Handler: p.addTextBox},
		{Pattern: `add checkbox "([^"]+)" at x (\d+) y (\d+) store in (\w+)$`, Description: "Place a checkbox bound to a variable", Handler: p.addCheckbox},
		{Pattern: `add dropdown at x (\d+) y (\d+) options (\w+) store in (\w+)$`, Description: "Place a choice of the items of a list", Handler: p.addDropdown},
		{Pattern: `add console at x (\d+) y (\d+) width (\d+) height (\d+)$`, Description: "Place a terminal showing say/ask", Handler: p.addConsole},
		{Pattern: `update label "([^"]+)" to "([^"]*)"$`, Description: "Change a label's text", Handler: p.updateLabel},
		{Pattern: `get entry (\w+)$`, Description: "Copy a text field into its variable", Handler: p.getEntry},
		{Pattern: `clear entry (\w+)$`, Description: "Empty a text field and its variable", Handler: p.clearEntry},
		{Pattern: `show (message|error|warning) "([^"]+)" "([^"]+)"$`, Description: "Show a dialog", Handler: p.showDialog},
		{Pattern: `ask yes/no "([^"]+)" "([^"]+)" store in (\w+)$`, Description: "Ask a yes/no question", Handler: p.askYesNo},
	}
}

func coords(c *sifzz.Context, xi, yi int) fyne.Position {
	x, _ := strconv.Atoi(c.Arg(xi))
	y, _ := strconv.Atoi(c.Arg(yi))
	return fyne.NewPos(float32(x), float32(y))
}

func size(c *sifzz.Context, wi, hi int) fyne.Size {
	w, _ := strconv.Atoi(c.Arg(wi))
	h, _ := strconv.Atoi(c.Arg(hi))
	return fyne.NewSize(float32(w), float32(h))
}

// requireWindow returns the canvas, or logs and returns nil when no window
// has been created
func (p *Pack) requireWindow(c *sifzz.Context) *fyne.Container {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		c.LogWarn(sifzz.CatGUI, "Create a window first!")
		return nil
	}
	return p.canvas
}

// place adds obj to the canvas at pos, at its minimum size unless sz is set
func place(canvas *fyne.Container, obj fyne.CanvasObject, pos fyne.Position, sz fyne.Size) {
	fyne.DoAndWait(func() {
		if sz.IsZero() {
			sz = obj.MinSize()
		}
		obj.Resize(sz)
		obj.Move(pos)
		canvas.Add(obj)
		canvas.Refresh()
	})
}

func (p *Pack) createWindow(c *sifzz.Context) error {
	title := c.Arg(1)
	sz := size(c, 2, 3)

	p.mu.Lock()
	if p.window != nil {
		p.mu.Unlock()
		c.LogWarn(sifzz.CatGUI, "A window is already open")
		return nil
	}
	closed := make(chan struct{})
	once := &sync.Once{}
	p.closed, p.once = closed, once
	p.mu.Unlock()

	var win fyne.Window
	canvas := container.NewWithoutLayout()
	fyne.DoAndWait(func() {
		win = p.app.NewWindow(title)
		win.SetContent(canvas)
		win.Resize(sz)
		win.SetOnClosed(func() { once.Do(func() { close(closed) }) })
		win.Show()
	})

	p.mu.Lock()
	p.window, p.canvas = win, canvas
	p.mu.Unlock()
	c.Logger().InfoCat(sifzz.CatGUI, "Created window '%s' (%dx%d)", title, int(sz.Width), int(sz.Height))
	return nil
}

func (p *Pack) closeWindow(c *sifzz.Context) error {
	p.mu.Lock()
	win, once, closed := p.window, p.once, p.closed
	p.window, p.canvas = nil, nil
	p.labels = make(map[string]*widget.Label)
	p.entries = make(map[string]*widget.Entry)
	p.mu.Unlock()
	if win == nil {
		return nil
	}
	fyne.DoAndWait(win.Close)
	once.Do(func() { close(closed) })
	c.Logger().InfoCat(sifzz.CatGUI, "Window closed")
	return nil
}

func (p *Pack) startGUI(c *sifzz.Context) error {
	if p.requireWindow(c) == nil {
		return nil
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	c.Logger().InfoCat(sifzz.CatGUI, "Starting GUI event loop...")
	return c.Host().Serve(c.Context(), closed)
}

func (p *Pack) addLabel(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	text := c.Arg(1)
	label := widget.NewLabel(text)
	place(canvas, label, coords(c, 2, 3), fyne.Size{})
	p.mu.Lock()
	p.labels[text] = label
	p.mu.Unlock()
	return nil
}

func (p *Pack) addButton(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	text, command := c.Arg(1), c.Arg(4)
	logger := c.Logger()
	button := widget.NewButton(text, func() {
		logger.InfoCat(sifzz.CatGUI, "Button '%s' clicked, executing: %s", text, command)
		c.Post(sifzz.Message{Source: "gui", Command: command})
	})
	place(canvas, button, coords(c, 2, 3), fyne.Size{})
	return nil
}

// bindEntry makes edits to entry update the variable name
func (p *Pack) bindEntry(c *sifzz.Context, entry *widget.Entry, name string) {
	entry.OnChanged = func(text string) {
		c.Post(sifzz.Message{Source: "gui", Apply: func(env *sifzz.Environment) { env.Set(name, text) }})
	}
	c.Env.Set(name, "")
	p.mu.Lock()
	p.entries[name] = entry
	p.mu.Unlock()
}

func (p *Pack) addEntry(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	entry := widget.NewEntry()
	p.bindEntry(c, entry, c.Arg(3))
	place(canvas, entry, coords(c, 1, 2), fyne.NewSize(200, entry.MinSize().Height))
	return nil
}

func (p *Pack) addTextBox(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	entry := widget.NewMultiLineEntry()
	p.bindEntry(c, entry, c.Arg(5))
	place(canvas, entry, coords(c, 1, 2), size(c, 3, 4))
	return nil
}

func (p *Pack) addCheckbox(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	text, name := c.Arg(1), c.Arg(4)
	logger := c.Logger()
	check := widget.NewCheck(text, func(on bool) {
		logger.InfoCat(sifzz.CatGUI, "Checkbox '%s' is now: %t", text, on)
		c.Post(sifzz.Message{Source: "gui", Apply: func(env *sifzz.Environment) { env.Set(name, on) }})
	})
	c.Env.Set(name, false)
	place(canvas, check, coords(c, 2, 3), fyne.Size{})
	return nil
}

func (p *Pack) addDropdown(c *sifzz.Context) error {
	canvas := p.requireWindow(c)
	if canvas == nil {
		return nil
	}
	listName, name := c.Arg(3), c.Arg(4)
	items, ok := c.Env.List(listName)
	if !ok {
		c.LogWarn(sifzz.CatGUI, fmt.Sprintf("List '%s' not found!", listName))
		return nil
	}
	if len(items) == 0 {
		c.LogWarn(sifzz.CatGUI, fmt.Sprintf("List '%s' is empty!", listName))
		return nil
	}
	options := make([]string, len(items))
	for i, item := range items {
		options[i] = sifzz.FormatValue(item)
	}
	choices := make(map[string]interface{}, len(items))
	for i, item := range items {
		if _, seen := choices[options[i]]; !seen {
			choices[options[i]] = item
		}
	}

	sel := widget.NewSelect(options, func(choice string) {
		value := choices[choice]
		c.Post(sifzz.Message{Source: "gui", Apply: func(env *sifzz.Environment) { env.Set(name, value) }})
	})
	c.Env.Set(name, items[0])
	fyne.DoAndWait(func() { sel.Selected = options[0] })
	place(canvas, sel, coords(c, 1, 2), fyne.Size{})
	return nil
}

func (p *Pack) updateLabel(c *sifzz.Context) error {
	old, text := c.Arg(1), c.Arg(2)
	p.mu.Lock()
	label, ok := p.labels[old]
	if ok && old != text {
		delete(p.labels, old)
		p.labels[text] = label
	}
	p.mu.Unlock()
	if !ok {
		c.LogWarn(sifzz.CatGUI, fmt.Sprintf("Label '%s' not found!", old))
		return nil
	}
	fyne.DoAndWait(func() { label.SetText(text) })
	return nil
}

func (p *Pack) entry(c *sifzz.Context, name string) *widget.Entry {
	p.mu.Lock()
	entry, ok := p.entries[name]
	p.mu.Unlock()
	if !ok {
		c.LogWarn(sifzz.CatGUI, fmt.Sprintf("Entry field '%s' not found!", name))
		return nil
	}
	return entry
}

func (p *Pack) getEntry(c *sifzz.Context) error {
	name := c.Arg(1)
	entry := p.entry(c, name)
	if entry == nil {
		return nil
	}
	var text string
	fyne.DoAndWait(func() { text = entry.Text })
	c.Env.Set(name, text)
	return nil
}

func (p *Pack) clearEntry(c *sifzz.Context) error {
	name := c.Arg(1)
	entry := p.entry(c, name)
	if entry == nil {
		return nil
	}
	fyne.DoAndWait(func() { entry.SetText("") })
	c.Env.Set(name, "")
	return nil
}

func (p *Pack) showDialog(c *sifzz.Context) error {
	p.dialogs.Message(DialogKind(c.Arg(1)), c.Arg(2), c.Arg(3))
	return nil
}

func (p *Pack) askYesNo(c *sifzz.Context) error {
	answer := p.dialogs.YesNo(c.Arg(1), c.Arg(2))
	c.Env.Set(c.Arg(3), answer)
	answerText := "No"
	if answer {
		answerText = "Yes"
	}
	c.Logger().InfoCat(sifzz.CatGUI, "User answered: %s", answerText)
	return nil
}

// Close closes the window if the script left it open
func (p *Pack) Close() error {
	p.mu.Lock()
	win, once, closed, con := p.window, p.once, p.closed, p.console
	p.window, p.console = nil, nil
	p.mu.Unlock()
	if win != nil {
		fyne.Do(win.Close)
		once.Do(func() { close(closed) })
	}
	if con != nil {
		return con.Close()
	}
	return nil
}
