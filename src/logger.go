package sifzz

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message (higher value = higher severity)
type LogLevel int

const (
	LevelTrace  LogLevel = iota // Detailed tracing (requires enabled + category)
	LevelInfo                   // Informational messages (requires enabled + category)
	LevelDebug                  // Development debugging (requires enabled + category)
	LevelNotice                 // Notable events (always shown)
	LevelWarn                   // Warnings (always shown)
	LevelError                  // Runtime errors (always shown)
	LevelFatal                  // Load failures (always shown)
)

// LogCategory represents the subsystem generating the message
type LogCategory string

const (
	CatNone     LogCategory = ""         // Uncategorized
	CatParse    LogCategory = "parse"    // Block structure and headers
	CatCommand  LogCategory = "command"  // Statement dispatch
	CatVariable LogCategory = "variable" // Variable store
	CatList     LogCategory = "list"     // List store
	CatMath     LogCategory = "math"     // Arithmetic mutation
	CatFlow     LogCategory = "flow"     // if / loops / calls
	CatEval     LogCategory = "eval"     // Expression and condition evaluation
	CatIO       LogCategory = "io"       // say / ask / files
	CatModule   LogCategory = "module"   // Extension loading and dispatch
	CatSystem   LogCategory = "system"   // Host, config, installer
	CatNet      LogCategory = "net"      // Web pack
	CatSound    LogCategory = "sound"    // Sound pack
	CatGUI      LogCategory = "gui"      // GUI pack
)

// AllCategories lists every category that can be enabled for debug output
var AllCategories = []LogCategory{
	CatParse, CatCommand, CatVariable, CatList, CatMath, CatFlow, CatEval,
	CatIO, CatModule, CatSystem, CatNet, CatSound, CatGUI,
}

// ANSI color codes for terminal output
const (
	colorYellow = "\x1b[93m" // Bright yellow foreground
	colorReset  = "\x1b[0m"  // Reset to default
)

// Logger handles logging for Sifzz. It is safe for concurrent use, so
// background goroutines in extensions may log directly.
type Logger struct {
	mu                sync.Mutex
	enabled           bool
	enabledCategories map[LogCategory]bool
	out               io.Writer
	errOut            io.Writer
	colorEnabled      bool
	// json, when set, replaces the text rendering with one JSON object per record
	json *zerolog.Logger
}

// stderrSupportsColor checks if stderr is a terminal that supports color output
func stderrSupportsColor() bool {
	stderrInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	if (stderrInfo.Mode() & os.ModeCharDevice) == 0 {
		return false
	}

	// https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}

	if term := os.Getenv("TERM"); term == "dumb" {
		return false
	}

	return true
}

// NewLogger creates a new logger writing debug output to stdout and
// warnings/errors to stderr
func NewLogger(enabled bool) *Logger {
	return &Logger{
		enabled:           enabled,
		enabledCategories: make(map[LogCategory]bool),
		out:               os.Stdout,
		errOut:            os.Stderr,
		colorEnabled:      stderrSupportsColor(),
	}
}

// SetOutput redirects the logger. Color is only kept when errOut is the process stderr.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if out != nil {
		l.out = out
	}
	if errOut != nil {
		l.errOut = errOut
		if errOut != io.Writer(os.Stderr) {
			l.colorEnabled = false
		}
	}
	if l.json != nil {
		jl := zerolog.New(l.errOut).With().Timestamp().Logger()
		l.json = &jl
	}
}

// UseJSON switches the logger to structured JSON lines on the error writer
func (l *Logger) UseJSON() {
	l.mu.Lock()
	defer l.mu.Unlock()
	jl := zerolog.New(l.errOut).With().Timestamp().Logger()
	l.json = &jl
}

// SetEnabled enables or disables debug logging
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// IsEnabled reports whether debug logging is on
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// EnableCategory enables debug logging for a specific category
func (l *Logger) EnableCategory(cat LogCategory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabledCategories[cat] = true
}

// DisableCategory disables debug logging for a specific category
func (l *Logger) DisableCategory(cat LogCategory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.enabledCategories, cat)
}

// EnableAllCategories enables all categories for debug logging
func (l *Logger) EnableAllCategories() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cat := range AllCategories {
		l.enabledCategories[cat] = true
	}
}

// IsCategoryEnabled checks if a category is enabled
func (l *Logger) IsCategoryEnabled(cat LogCategory) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabledCategories[cat]
}

func (l *Logger) shouldLog(level LogLevel, cat LogCategory) bool {
	switch level {
	case LevelFatal, LevelError, LevelWarn, LevelNotice:
		return true
	case LevelDebug, LevelInfo, LevelTrace:
		return l.enabled && (cat == CatNone || l.enabledCategories[cat])
	default:
		return false
	}
}

// Log is the unified logging method
func (l *Logger) Log(level LogLevel, cat LogCategory, message string, position *SourcePosition, context []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.shouldLog(level, cat) {
		return
	}

	if l.json != nil {
		l.logJSON(level, cat, message, position)
		return
	}

	catSuffix := ""
	if cat != CatNone {
		catSuffix = fmt.Sprintf(":%s", cat)
	}

	var prefix string
	switch level {
	case LevelTrace:
		prefix = fmt.Sprintf("[TRACE%s]", catSuffix)
	case LevelInfo:
		prefix = fmt.Sprintf("[INFO%s]", catSuffix)
	case LevelDebug:
		prefix = fmt.Sprintf("[DEBUG%s]", catSuffix)
	case LevelNotice:
		prefix = fmt.Sprintf("[Sifzz%s NOTICE]", catSuffix)
	case LevelWarn:
		prefix = fmt.Sprintf("[Sifzz%s WARN]", catSuffix)
	case LevelError, LevelFatal:
		prefix = fmt.Sprintf("[Sifzz%s ERROR]", catSuffix)
	}

	output := fmt.Sprintf("%s %s", prefix, message)

	if position != nil {
		filename := position.Filename
		if filename == "" {
			filename = "<script>"
		}
		output += fmt.Sprintf("\n  at line %d in %s", position.Line, filename)
		if len(context) > 0 {
			output += l.formatSourceContext(position, context)
		}
	}

	isLowSeverity := level == LevelTrace || level == LevelInfo || level == LevelDebug
	l.writeOutput(isLowSeverity, output)
}

func (l *Logger) writeOutput(isDebug bool, output string) {
	if isDebug {
		_, _ = fmt.Fprintln(l.out, output)
		return
	}
	if l.colorEnabled {
		_, _ = fmt.Fprintf(l.errOut, "%s%s%s\n", colorYellow, output, colorReset)
	} else {
		_, _ = fmt.Fprintln(l.errOut, output)
	}
}

func (l *Logger) logJSON(level LogLevel, cat LogCategory, message string, position *SourcePosition) {
	var ev *zerolog.Event
	switch level {
	case LevelTrace:
		ev = l.json.Trace()
	case LevelInfo, LevelNotice:
		ev = l.json.Info()
	case LevelDebug:
		ev = l.json.Debug()
	case LevelWarn:
		ev = l.json.Warn()
	default:
		// zerolog's Fatal would exit the process
		ev = l.json.Error()
	}
	if level == LevelNotice {
		ev = ev.Bool("notice", true)
	}
	if cat != CatNone {
		ev = ev.Str("category", string(cat))
	}
	if position != nil {
		ev = ev.Str("file", position.Filename).Int("line", position.Line).Str("source", position.OriginalText)
	}
	ev.Msg(message)
}

// Fatal logs a fatal error message
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Log(LevelFatal, CatNone, fmt.Sprintf(format, args...), nil, nil)
}

// Error logs an error message (no position)
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LevelError, CatNone, fmt.Sprintf(format, args...), nil, nil)
}

// ErrorCat logs a categorized error message
func (l *Logger) ErrorCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelError, cat, fmt.Sprintf(format, args...), nil, nil)
}

// Warn logs a warning message (no position)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Log(LevelWarn, CatNone, fmt.Sprintf(format, args...), nil, nil)
}

// WarnCat logs a categorized warning message
func (l *Logger) WarnCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelWarn, cat, fmt.Sprintf(format, args...), nil, nil)
}

// Notice logs a notable event - always shown, less severe than warning
func (l *Logger) Notice(format string, args ...interface{}) {
	l.Log(LevelNotice, CatNone, fmt.Sprintf(format, args...), nil, nil)
}

// NoticeCat logs a categorized notice message
func (l *Logger) NoticeCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelNotice, cat, fmt.Sprintf(format, args...), nil, nil)
}

// Debug logs a debug message (no position)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(LevelDebug, CatNone, fmt.Sprintf(format, args...), nil, nil)
}

// DebugCat logs a categorized debug message
func (l *Logger) DebugCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelDebug, cat, fmt.Sprintf(format, args...), nil, nil)
}

// InfoCat logs a categorized informational message
func (l *Logger) InfoCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelInfo, cat, fmt.Sprintf(format, args...), nil, nil)
}

// TraceCat logs a categorized trace message
func (l *Logger) TraceCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelTrace, cat, fmt.Sprintf(format, args...), nil, nil)
}

// WarnWithPosition logs a warning tied to a script line
func (l *Logger) WarnWithPosition(cat LogCategory, message string, position *SourcePosition, context []string) {
	l.Log(LevelWarn, cat, message, position, context)
}

// ErrorWithPosition logs an error with position information
func (l *Logger) ErrorWithPosition(cat LogCategory, message string, position *SourcePosition, context []string) {
	l.Log(LevelError, cat, message, position, context)
}

// UnknownCommand logs an unrecognized statement (always visible, non-fatal)
func (l *Logger) UnknownCommand(line string, position *SourcePosition, context []string) {
	l.Log(LevelWarn, CatCommand, fmt.Sprintf("Unknown command: %s", line), position, context)
}

// ModuleError logs a failing extension handler
func (l *Logger) ModuleError(unit string, err error, position *SourcePosition) {
	l.Log(LevelError, CatModule, fmt.Sprintf("Module command failed (%s): %v", unit, err), position, nil)
}

// formatSourceContext formats source context with line numbers
func (l *Logger) formatSourceContext(position *SourcePosition, context []string) string {
	var message strings.Builder
	message.WriteString("\n")

	contextStart := max(0, position.Line-2)
	contextEnd := min(len(context), position.Line+1)

	for i := contextStart; i < contextEnd; i++ {
		lineNum := i + 1
		prefix := " "
		if lineNum == position.Line {
			prefix = ">"
		}
		message.WriteString(fmt.Sprintf("\n  %s %3d | %s", prefix, lineNum, context[i]))
	}

	return message.String()
}
