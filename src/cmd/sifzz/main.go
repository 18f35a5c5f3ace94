package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stuffzez/sifzz"
	"github.com/stuffzez/sifzz/src/pkg/packs"
)

// ANSI color codes for terminal output
const (
	colorYellow = "\x1b[93m"
	colorReset  = "\x1b[0m"
)

// exitCode carries a process exit status out of a cobra command
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

type options struct {
	debug      bool
	categories []string
	logFormat  string
	configPath string
	moduleDir  string
	install    string
	noPacks    bool
	html       bool
}

func main() {
	opts := &options{}
	root := newRootCommand(opts)
	err := root.Execute()

	var code exitCode
	switch {
	case err == nil:
		os.Exit(0)
	case errors.As(err, &code):
		os.Exit(int(code))
	default:
		errorPrintf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "sifzz [flags] [script[.sfzz]]",
		Short:         "Run Sifzz scripts",
		Long:          "sifzz runs a script file, a script piped on stdin, or an interactive prompt.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug output")
	flags.StringSliceVar(&opts.categories, "debug-category", nil, "limit debug output to these categories")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.sifzz/config.yaml)")
	flags.StringVar(&opts.moduleDir, "modules", "", "directory holding script packs")
	flags.BoolVar(&opts.noPacks, "no-packs", false, "load no extension packs")
	root.Flags().StringVarP(&opts.install, "install-module", "i", "", "download a script pack into the module directory")

	commands := &cobra.Command{
		Use:   "commands",
		Short: "List every statement form and extension pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommands(cmd, opts)
		},
	}
	commands.Flags().BoolVar(&opts.html, "html", false, "render the reference as HTML")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the interpreter version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sifzz %s\n", sifzz.Version)
		},
	}

	root.AddCommand(commands, version)
	return root
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command, opts *options) (*sifzz.UserConfig, error) {
	path := opts.configPath
	if path == "" {
		path = sifzz.DefaultConfigPath()
	}
	cfg, err := sifzz.LoadUserConfig(path)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	if cmd.Flags().Changed("debug-category") {
		for _, name := range opts.categories {
			if _, ok := sifzz.ParseCategory(name); !ok {
				return nil, fmt.Errorf("unknown debug category %q", name)
			}
		}
		cfg.DebugCategories = opts.categories
	}
	if opts.logFormat != "" {
		if opts.logFormat != "text" && opts.logFormat != "json" {
			return nil, fmt.Errorf("log format must be text or json, got %q", opts.logFormat)
		}
		cfg.LogFormat = opts.logFormat
	}
	if opts.moduleDir != "" {
		cfg.ModuleDir = opts.moduleDir
	}
	if opts.noPacks {
		cfg.Extensions = nil
	}
	return cfg, nil
}

// newHost creates a host with the configured packs and script packs loaded
func newHost(cfg *sifzz.UserConfig) *sifzz.Host {
	host := sifzz.New(cfg.EngineConfig())
	packs.Load(host, cfg)
	if cfg.ModuleDir != "" {
		host.LoadModuleDir(cfg.ModuleDir)
	}
	return host
}

func runRoot(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	if opts.install != "" {
		return installModule(cmd.Context(), cfg, opts.install)
	}

	var source, filename string
	switch {
	case len(args) > 0:
		filename = findScriptFile(args[0])
		if filename == "" {
			errorPrintf("Error: Script file not found: %s\n", args[0])
			if filepath.Ext(args[0]) == "" {
				errorPrintf("Also tried: %s%s\n", args[0], sifzz.FileExtension)
			}
			return exitCode(1)
		}
		content, err := os.ReadFile(filename)
		if err != nil {
			errorPrintf("Error reading script file: %v\n", err)
			return exitCode(1)
		}
		source = string(content)
	case stdinRedirected():
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			errorPrintf("Error reading from stdin: %v\n", err)
			return exitCode(1)
		}
		source, filename = string(content), "<stdin>"
	default:
		return runREPL(cfg)
	}

	host := newHost(cfg)
	defer host.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = host.Run(ctx, source, filename)
	switch {
	case err == nil, errors.Is(err, sifzz.ErrExit):
		return nil
	case ctx.Err() != nil:
		return exitCode(130)
	default:
		errorPrintf("Error: %v\n", err)
		return exitCode(1)
	}
}

func runREPL(cfg *sifzz.UserConfig) error {
	host := newHost(cfg)
	defer host.Close()
	repl := sifzz.NewREPL(host, cfg.TermBackground)
	return repl.RunTerminal(context.Background())
}

func installModule(ctx context.Context, cfg *sifzz.UserConfig, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dir := cfg.ModuleDir
	if dir == "" {
		dir = "modules"
	}
	installer := sifzz.NewInstaller(cfg.InstallURL, dir, nil)
	if cfg.HTTPTimeout > 0 {
		installer.Client.Timeout = time.Duration(cfg.HTTPTimeout * float64(time.Second))
	}
	path, err := installer.Install(ctx, name)
	if err != nil {
		errorPrintf("Error: %v\n", err)
		return exitCode(1)
	}
	fmt.Printf("Installed %s to %s\n", name, path)
	return nil
}

func runCommands(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	host := newHost(cfg)
	defer host.Close()

	reference := host.CommandReference()
	if opts.html {
		html, err := sifzz.RenderHTML(reference)
		if err != nil {
			return err
		}
		reference = html
	}
	fmt.Fprint(cmd.OutOrStdout(), reference)
	return nil
}

func stdinRedirected() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

func findScriptFile(filename string) string {
	if _, err := os.Stat(filename); err == nil {
		return filename
	}
	if filepath.Ext(filename) == "" {
		withExt := filename + sifzz.FileExtension
		if _, err := os.Stat(withExt); err == nil {
			return withExt
		}
	}
	return ""
}

// stderrSupportsColor checks if stderr is a terminal that supports color output
func stderrSupportsColor() bool {
	info, err := os.Stderr.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// errorPrintf prints an error message to stderr, using color if supported
func errorPrintf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if stderrSupportsColor() {
		fmt.Fprintf(os.Stderr, "%s%s%s", colorYellow, message, colorReset)
	} else {
		fmt.Fprint(os.Stderr, message)
	}
}
