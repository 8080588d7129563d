// Package scripting runs form field format actions, the small
// JavaScript snippets AcroForm producers attach to fields to turn a
// stored value into display text.
package scripting

import "context"

// Engine executes document scripts.
type Engine interface {
	// Execute runs a script. Cancelling ctx interrupts a running
	// script, including infinite loops.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterFields exposes getField to scripts so format actions can
	// read sibling field values.
	RegisterFields(src FieldSource) error
}

// FieldSource resolves form fields by name for scripts.
type FieldSource interface {
	Field(name string) (FieldProxy, bool)
}

// FieldProxy is one field exposed to scripts.
type FieldProxy interface {
	Value() string
	SetValue(value string)
}
