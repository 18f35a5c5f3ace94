// Command sifzz-gui runs a Sifzz script with the GUI pack loaded. fyne owns
// the main thread; the script runs on its own goroutine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/stuffzez/sifzz"
	"github.com/stuffzez/sifzz/src/pkg/guipack"
	"github.com/stuffzez/sifzz/src/pkg/packs"
)

func main() {
	var debug bool
	var configPath string
	status := 0

	root := &cobra.Command{
		Use:          "sifzz-gui [flags] script[.sfzz]",
		Short:        "Run a Sifzz script with windows and widgets",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			status = run(args[0], configPath, debug)
		},
	}
	root.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	root.Flags().StringVar(&configPath, "config", "", "config file (default ~/.sifzz/config.yaml)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(status)
}

func run(script, configPath string, debug bool) int {
	path := script
	if _, err := os.Stat(path); err != nil && filepath.Ext(path) == "" {
		path += sifzz.FileExtension
	}
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Script file not found: %s\n", script)
		return 1
	}

	if configPath == "" {
		configPath = sifzz.DefaultConfigPath()
	}
	cfg, err := sifzz.LoadUserConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if debug {
		cfg.Debug = true
	}

	fyneApp := app.NewWithID("io.github.stuffzez.sifzz")
	host := sifzz.New(cfg.EngineConfig())
	packs.Load(host, cfg)
	if err := host.LoadExtension(guipack.New(fyneApp, nil)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.ModuleDir != "" {
		host.LoadModuleDir(cfg.ModuleDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	done := make(chan int, 1)
	go func() {
		defer fyne.Do(fyneApp.Quit)
		done <- runScript(ctx, runCtx, host, string(source), path)
	}()

	fyneApp.Run()

	// the app also ends when its last window closes; stop the script then
	cancelRun()
	select {
	case status := <-done:
		return status
	case <-time.After(2 * time.Second):
		return 0
	}
}

// runScript runs source in runCtx. Only an interrupt of sigCtx counts as a
// failure; runCtx is also cancelled when the app ends first.
func runScript(sigCtx, runCtx context.Context, host *sifzz.Host, source, path string) int {
	defer func() {
		if err := host.Close(); err != nil {
			host.Logger().Warn("%v", err)
		}
	}()
	err := host.Run(runCtx, source, path)
	switch {
	case err == nil, errors.Is(err, sifzz.ErrExit):
		return 0
	case sigCtx.Err() != nil:
		return 130
	case runCtx.Err() != nil:
		return 0
	default:
		host.Logger().Error("%v", err)
		return 1
	}
}
