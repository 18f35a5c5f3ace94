package sifzz

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScriptPack is an extension unit defined in YAML. Each command's run body
// is Sifzz source; $0..$9 are replaced by the captured groups.
//
//	name: greetings
//	description: Friendly greetings
//	commands:
//	  - pattern: 'greet (\w+)'
//	    description: Greet someone
//	    run: |
//	      say "Hello, " + "$1"
type ScriptPack struct {
	PackName string          `yaml:"name"`
	Summary  string          `yaml:"description"`
	Entries  []ScriptCommand `yaml:"commands"`
	Path     string          `yaml:"-"`
}

// ScriptCommand is one pattern of a script pack
type ScriptCommand struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
	Run         string `yaml:"run"`
}

// Name implements Extension
func (p *ScriptPack) Name() string { return p.PackName }

// Description implements Describer
func (p *ScriptPack) Description() string { return p.Summary }

// Commands implements Extension
func (p *ScriptPack) Commands(*Host) []Command {
	cmds := make([]Command, 0, len(p.Entries))
	for _, entry := range p.Entries {
		body := entry.Run
		cmds = append(cmds, Command{
			Pattern:     entry.Pattern,
			Description: entry.Description,
			Handler: func(c *Context) error {
				return c.RunSource(substituteGroups(body, c.Groups))
			},
		})
	}
	return cmds
}

// ParseScriptPack decodes a pack manifest; name is used when the manifest has none
func ParseScriptPack(data []byte, name string) (*ScriptPack, error) {
	pack := &ScriptPack{}
	if err := yaml.Unmarshal(data, pack); err != nil {
		return nil, fmt.Errorf("parsing pack: %w", err)
	}
	if pack.PackName == "" {
		pack.PackName = name
	}
	if pack.PackName == "" {
		return nil, fmt.Errorf("pack has no name")
	}
	if len(pack.Entries) == 0 {
		return nil, fmt.Errorf("pack %s defines no commands", pack.PackName)
	}
	for i, entry := range pack.Entries {
		if strings.TrimSpace(entry.Pattern) == "" {
			return nil, fmt.Errorf("pack %s: command %d has no pattern", pack.PackName, i+1)
		}
		if _, err := regexp.Compile(entry.Pattern); err != nil {
			return nil, fmt.Errorf("pack %s: bad pattern %q: %w", pack.PackName, entry.Pattern, err)
		}
	}
	return pack, nil
}

// LoadScriptPack reads one manifest file
func LoadScriptPack(path string) (*ScriptPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pack: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pack, err := ParseScriptPack(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pack.Path = path
	return pack, nil
}

// LoadScriptPacks reads every *.yaml / *.yml manifest in dir in name order,
// skipping files that start with "_". A missing directory is not an error.
// Packs that fail to load are reported and left out.
func LoadScriptPacks(dir string) ([]*ScriptPack, []error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, []error{fmt.Errorf("reading module directory: %w", err)}
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var packs []*ScriptPack
	var errs []error
	for _, name := range names {
		pack, err := LoadScriptPack(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		packs = append(packs, pack)
	}
	return packs, errs
}

// LoadModuleDir loads every script pack in dir into the host. Failures are
// logged as warnings and do not stop the others.
func (h *Host) LoadModuleDir(dir string) int {
	packs, errs := LoadScriptPacks(dir)
	for _, err := range errs {
		h.logger.WarnCat(CatModule, "Failed to load module: %v", err)
	}
	loaded := 0
	for _, pack := range packs {
		if err := h.LoadExtension(pack); err != nil {
			h.logger.WarnCat(CatModule, "Failed to load module %s: %v", pack.Path, err)
			continue
		}
		loaded++
		h.logger.DebugCat(CatModule, "Loaded module %s from %s", pack.PackName, pack.Path)
	}
	return loaded
}
