package guipack

import (
	"github.com/sqweek/dialog"
)

// DialogKind selects the icon of a message dialog
type DialogKind string

const (
	KindMessage DialogKind = "message"
	KindError   DialogKind = "error"
	KindWarning DialogKind = "warning"
)

// Dialogs shows modal dialogs. Calls block until the user answers.
type Dialogs interface {
	Message(kind DialogKind, title, text string)
	YesNo(title, question string) bool
}

// NativeDialogs uses the operating system's dialog boxes
type NativeDialogs struct{}

func (NativeDialogs) Message(kind DialogKind, title, text string) {
	b := dialog.Message("%s", text).Title(title)
	switch kind {
	case KindError:
		b.Error()
	default:
		// no separate warning icon natively
		b.Info()
	}
}

func (NativeDialogs) YesNo(title, question string) bool {
	return dialog.Message("%s", question).Title(title).YesNo()
}
