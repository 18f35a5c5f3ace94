// Package filepack adds text file statements to Sifzz. Paths may be quoted
// text or any expression producing text.
package filepack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	sifzz "github.com/stuffzez/sifzz/src"
)

// Pack is the file extension unit
type Pack struct{}

// New creates the file pack
func New() *Pack { return &Pack{} }

func (*Pack) Name() string        { return "file" }
func (*Pack) Description() string { return "Read, write and delete text files" }

func (p *Pack) Commands(*sifzz.Host) []sifzz.Command {
	return []sifzz.Command{
		{
			Pattern:     `read file (.+?) and store in (\w+)$`,
			Description: "Read a whole file into a variable (empty when it cannot be read)",
			Handler:     p.read,
		},
		{
			Pattern:     `save (.+) to file (.+)$`,
			Description: "Write text or a variable to a file, replacing it",
			Handler: func(c *sifzz.Context) error {
				return p.store(c, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
			},
		},
		{
			Pattern:     `append (.+) to file (.+)$`,
			Description: "Add text or a variable to the end of a file",
			Handler: func(c *sifzz.Context) error {
				return p.store(c, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
			},
		},
		{
			Pattern:     `delete file (.+)$`,
			Description: "Delete a file",
			Handler:     p.remove,
		},
	}
}

func (*Pack) Values(*sifzz.Host) []sifzz.ValueForm {
	return []sifzz.ValueForm{
		{
			Pattern:     `file (.+) exists`,
			Description: "True when the file exists",
			Eval: func(c *sifzz.Context) (interface{}, error) {
				_, err := os.Stat(c.EvalString(c.Arg(1)))
				return err == nil, nil
			},
		},
	}
}

func (*Pack) read(c *sifzz.Context) error {
	name := c.EvalString(c.Arg(1))
	data, err := os.ReadFile(name)
	if err != nil {
		c.Env.Set(c.Arg(2), "")
		if errors.Is(err, fs.ErrNotExist) {
			c.LogWarn(sifzz.CatIO, fmt.Sprintf("File '%s' not found", name))
			return nil
		}
		c.LogWarn(sifzz.CatIO, fmt.Sprintf("Error reading file: %v", err))
		return nil
	}
	c.Env.Set(c.Arg(2), string(data))
	c.Logger().DebugCat(sifzz.CatIO, "read %d bytes from %s", len(data), name)
	return nil
}

// store writes the evaluated first group to the file named by the second.
// A bare name that is not a variable is an error rather than literal text.
func (*Pack) store(c *sifzz.Context, flags int) error {
	what := c.Arg(1)
	name := c.EvalString(c.Arg(2))
	if isIdentifier(what) && !c.Env.Has(what) {
		c.LogWarn(sifzz.CatIO, fmt.Sprintf("Variable '%s' not found", what))
		return nil
	}
	content := c.EvalString(what)

	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		c.LogWarn(sifzz.CatIO, fmt.Sprintf("Error writing file: %v", err))
		return nil
	}
	_, err = f.WriteString(content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		c.LogWarn(sifzz.CatIO, fmt.Sprintf("Error writing file: %v", err))
	}
	return nil
}

func (*Pack) remove(c *sifzz.Context) error {
	name := c.EvalString(c.Arg(1))
	if err := os.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.LogWarn(sifzz.CatIO, fmt.Sprintf("File '%s' not found", name))
			return nil
		}
		c.LogWarn(sifzz.CatIO, fmt.Sprintf("Error deleting file: %v", err))
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
