// Package sifzz is an interpreter for Sifzz, a line-oriented scripting
// language for beginners, that can be embedded in Go programs.
//
// This package re-exports the public API from the implementation in src/.
//
// Basic usage:
//
//	host := sifzz.New(nil)
//	defer host.Close()
//	err := host.Run(ctx, "set x to 5\nsay x * 2", "example.sfzz")
package sifzz

import (
	impl "github.com/stuffzez/sifzz/src"
)

// =============================================================================
// CORE TYPES
// =============================================================================

// Host owns one environment and the extension units loaded into it.
type Host = impl.Host

// Config holds interpreter settings.
type Config = impl.Config

// Environment holds variables, lists and functions.
type Environment = impl.Environment

// SourcePosition locates a line in a script.
type SourcePosition = impl.SourcePosition

// ScriptError is an error tied to a script position.
type ScriptError = impl.ScriptError

// Logger is the leveled, categorised logger.
type Logger = impl.Logger

// LogCategory names a logging subsystem.
type LogCategory = impl.LogCategory

// =============================================================================
// EXTENSIONS
// =============================================================================

// Extension contributes statement patterns.
type Extension = impl.Extension

// FunctionProvider contributes expression functions.
type FunctionProvider = impl.FunctionProvider

// ValueProvider contributes expression value forms.
type ValueProvider = impl.ValueProvider

// Describer gives a unit a description.
type Describer = impl.Describer

// Command is one statement pattern.
type Command = impl.Command

// ExprFunc is a function callable as name(args).
type ExprFunc = impl.ExprFunc

// ValueForm is an expression-level pattern.
type ValueForm = impl.ValueForm

// Context is passed to extension handlers.
type Context = impl.Context

// Handler runs a matched command.
type Handler = impl.Handler

// Message is work posted to the execution thread.
type Message = impl.Message

// CommandInfo describes a registered pattern.
type CommandInfo = impl.CommandInfo

// ScriptPack is an extension unit defined in YAML.
type ScriptPack = impl.ScriptPack

// =============================================================================
// TOOLING
// =============================================================================

// UserConfig is the per-user settings file.
type UserConfig = impl.UserConfig

// Installer downloads script packs.
type Installer = impl.Installer

// REPL is the interactive prompt.
type REPL = impl.REPL

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	Version           = impl.Version
	FileExtension     = impl.FileExtension
	DefaultInstallURL = impl.DefaultInstallURL
)

var (
	ErrExit             = impl.ErrExit
	ErrCallDepth        = impl.ErrCallDepth
	ErrModuleNotFound   = impl.ErrModuleNotFound
	ErrInstallForbidden = impl.ErrInstallForbidden
)

// =============================================================================
// CONSTRUCTORS AND HELPERS
// =============================================================================

var (
	New               = impl.New
	DefaultConfig     = impl.DefaultConfig
	NewInstaller      = impl.NewInstaller
	NewREPL           = impl.NewREPL
	LoadUserConfig    = impl.LoadUserConfig
	DefaultUserConfig = impl.DefaultUserConfig
	DefaultConfigPath = impl.DefaultConfigPath
	ConfigDir         = impl.ConfigDir
	ParseCategory     = impl.ParseCategory
	ParseScriptPack   = impl.ParseScriptPack
	LoadScriptPack    = impl.LoadScriptPack
	LoadScriptPacks   = impl.LoadScriptPacks
	RenderHTML        = impl.RenderHTML
	FormatValue       = impl.FormatValue
	Truthy            = impl.Truthy
	ToFloat           = impl.ToFloat
	ToInt             = impl.ToInt
	FindBlockEnd      = impl.FindBlockEnd
	IsTerminator      = impl.IsTerminator
)
