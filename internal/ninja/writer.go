// Package ninja writes build graphs in the ninja build file syntax.
package ninja

import (
	"io"
	"sort"
	"strings"
)

// Writer emits ninja declarations. The first write error is sticky and
// reported by Err; later calls are no-ops.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Err returns the first error encountered while writing.
func (w *Writer) Err() error { return w.err }

func (w *Writer) line(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s+"\n")
}

// Newline writes an empty line.
func (w *Writer) Newline() { w.line("") }

// Comment writes a comment line.
func (w *Writer) Comment(text string) { w.line("# " + text) }

// Variable writes "key = value" at the given indentation depth. Empty values
// are omitted.
func (w *Writer) Variable(key, value string, indent int) {
	if value == "" {
		return
	}
	w.line(strings.Repeat("  ", indent) + key + " = " + value)
}

// Rule declares a rule.
func (w *Writer) Rule(name, command, description string) {
	w.line("rule " + name)
	w.Variable("command", command, 1)
	w.Variable("description", description, 1)
	w.Newline()
}

// Build declares a build edge. Paths are escaped; variable values are
// escaped for '$' only so that they remain plain strings to ninja.
func (w *Writer) Build(outputs []string, rule string, inputs, implicit, implicitOutputs []string, vars map[string]string) {
	var b strings.Builder
	b.WriteString("build ")
	b.WriteString(joinPaths(outputs))
	if len(implicitOutputs) > 0 {
		b.WriteString(" | ")
		b.WriteString(joinPaths(implicitOutputs))
	}
	b.WriteString(": ")
	b.WriteString(rule)
	if len(inputs) > 0 {
		b.WriteString(" ")
		b.WriteString(joinPaths(inputs))
	}
	if len(implicit) > 0 {
		b.WriteString(" | ")
		b.WriteString(joinPaths(implicit))
	}
	w.line(b.String())

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.Variable(k, EscapeValue(vars[k]), 1)
	}
	w.Newline()
}

// Default declares the default targets.
func (w *Writer) Default(paths ...string) {
	w.line("default " + joinPaths(paths))
}

// EscapePath escapes a path for use in a build line.
func EscapePath(p string) string {
	return pathEscaper.Replace(p)
}

// EscapeValue escapes a variable value.
func EscapeValue(v string) string {
	return strings.ReplaceAll(v, "$", "$$")
}

var pathEscaper = strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:", "\n", "$\n")

func joinPaths(paths []string) string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = EscapePath(p)
	}
	return strings.Join(escaped, " ")
}
