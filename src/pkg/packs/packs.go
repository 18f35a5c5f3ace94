// Package packs maps the extension names used in the config file to the
// built-in capability packs
package packs

import (
	"fmt"
	"time"

	sifzz "github.com/stuffzez/sifzz/src"
	"github.com/stuffzez/sifzz/src/pkg/filepack"
	"github.com/stuffzez/sifzz/src/pkg/mathpack"
	"github.com/stuffzez/sifzz/src/pkg/soundpack"
	"github.com/stuffzez/sifzz/src/pkg/webpack"
)

// Names lists the packs that can be named in the extensions setting
var Names = []string{"math", "file", "web", "sound"}

// New builds one pack by name
func New(name string, cfg *sifzz.UserConfig) (sifzz.Extension, error) {
	switch name {
	case "math":
		return mathpack.New(), nil
	case "file":
		return filepack.New(), nil
	case "web":
		timeout := webpack.DefaultTimeout
		if cfg != nil && cfg.HTTPTimeout > 0 {
			timeout = time.Duration(cfg.HTTPTimeout * float64(time.Second))
		}
		return webpack.New(timeout), nil
	case "sound":
		return soundpack.New(), nil
	}
	return nil, fmt.Errorf("unknown extension %q", name)
}

// Load builds the packs named in cfg.Extensions, in order, and loads them
// into host. Unknown names and load failures are logged and skipped.
func Load(host *sifzz.Host, cfg *sifzz.UserConfig) int {
	loaded := 0
	for _, name := range cfg.Extensions {
		ext, err := New(name, cfg)
		if err != nil {
			host.Logger().WarnCat(sifzz.CatModule, "Skipping extension: %v", err)
			continue
		}
		if err := host.LoadExtension(ext); err != nil {
			host.Logger().WarnCat(sifzz.CatModule, "Failed to load extension %s: %v", name, err)
			continue
		}
		host.Logger().DebugCat(sifzz.CatModule, "Loaded extension %s", name)
		loaded++
	}
	return loaded
}
