package sifzz

import (
	"sort"
)

// Function is a stored function body
type Function struct {
	Name     string
	Start    int // first body line
	End      int // terminator line, exclusive
	Body     []*Node
	Position *SourcePosition
}

// Environment holds all state of a run: one flat variable namespace, a
// separate list namespace, the function table, and the loop control flags.
// It is passed explicitly to every execution call.
type Environment struct {
	variables map[string]interface{}
	lists     map[string][]interface{}
	functions map[string]*Function

	breakRequested    bool
	continueRequested bool
}

// NewEnvironment creates an empty environment
func NewEnvironment() *Environment {
	return &Environment{
		variables: make(map[string]interface{}),
		lists:     make(map[string][]interface{}),
		functions: make(map[string]*Function),
	}
}

// Get returns a variable's value
func (e *Environment) Get(name string) (interface{}, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// Set stores a variable
func (e *Environment) Set(name string, value interface{}) {
	e.variables[name] = normalize(value)
}

// Has reports whether a variable exists
func (e *Environment) Has(name string) bool {
	_, ok := e.variables[name]
	return ok
}

// Delete removes a variable
func (e *Environment) Delete(name string) {
	delete(e.variables, name)
}

// VariableNames returns the variable names, longest first so substitution
// never replaces a prefix of a longer name
func (e *Environment) VariableNames() []string {
	names := make([]string, 0, len(e.variables))
	for name := range e.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// List returns a snapshot copy of a list
func (e *Environment) List(name string) ([]interface{}, bool) {
	items, ok := e.lists[name]
	if !ok {
		return nil, false
	}
	out := make([]interface{}, len(items))
	copy(out, items)
	return out, true
}

// HasList reports whether a list exists
func (e *Environment) HasList(name string) bool {
	_, ok := e.lists[name]
	return ok
}

// CreateList makes an empty list, replacing any existing one
func (e *Environment) CreateList(name string) {
	e.lists[name] = []interface{}{}
}

// SetList replaces a list's contents
func (e *Environment) SetList(name string, items []interface{}) {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = normalize(item)
	}
	e.lists[name] = out
}

// Append adds a value to the end of an existing list
func (e *Environment) Append(name string, value interface{}) bool {
	items, ok := e.lists[name]
	if !ok {
		return false
	}
	e.lists[name] = append(items, normalize(value))
	return true
}

// RemoveValue removes the first element equal to value
func (e *Environment) RemoveValue(name string, value interface{}) bool {
	items, ok := e.lists[name]
	if !ok {
		return false
	}
	for i, item := range items {
		if valuesEqual(item, value) {
			e.lists[name] = append(items[:i:i], items[i+1:]...)
			return true
		}
	}
	return false
}

// ClearList empties an existing list
func (e *Environment) ClearList(name string) bool {
	if _, ok := e.lists[name]; !ok {
		return false
	}
	e.lists[name] = []interface{}{}
	return true
}

// ListNames returns the list names in sorted order
func (e *Environment) ListNames() []string {
	names := make([]string, 0, len(e.lists))
	for name := range e.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefineFunction stores fn, silently replacing an earlier definition
func (e *Environment) DefineFunction(fn *Function) {
	e.functions[fn.Name] = fn
}

// LookupFunction finds a function by exact name
func (e *Environment) LookupFunction(name string) (*Function, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

// RequestBreak sets the break flag
func (e *Environment) RequestBreak() { e.breakRequested = true }

// RequestContinue sets the continue flag
func (e *Environment) RequestContinue() { e.continueRequested = true }

// resetLoopFlags clears both flags at loop and iteration entry
func (e *Environment) resetLoopFlags() {
	e.breakRequested = false
	e.continueRequested = false
}

// consumeBreak reports and clears a pending break
func (e *Environment) consumeBreak() bool {
	if e.breakRequested {
		e.breakRequested = false
		return true
	}
	return false
}

func (e *Environment) interrupted() bool {
	return e.breakRequested || e.continueRequested
}
