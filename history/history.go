// Package history is a linear undo/redo stack over editor mutations.
// Entries hold closures so the manager stays agnostic of what changed.
package history

import (
	"github.com/pdfpage/editkit/observability"
)

// Entry is one reversible operation.
type Entry struct {
	Label string
	Undo  func()
	Redo  func()
}

// Manager keeps the undo and redo stacks. Committing clears the redo
// stack; there are no history branches.
type Manager struct {
	undo     []Entry
	redo     []Entry
	maxDepth int
	log      observability.Logger
}

// DefaultDepth bounds how many operations stay undoable.
const DefaultDepth = 100

// New returns an empty manager. maxDepth <= 0 uses DefaultDepth.
func New(maxDepth int, log observability.Logger) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultDepth
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Manager{maxDepth: maxDepth, log: log}
}

// Commit pushes a reversible operation. Continuous gestures must call
// this exactly once, on the terminal event, never per move frame.
func (m *Manager) Commit(label string, undo, redo func()) {
	if undo == nil || redo == nil {
		m.log.Warn("history commit dropped, nil closure", observability.String("label", label))
		return
	}
	m.undo = append(m.undo, Entry{Label: label, Undo: undo, Redo: redo})
	if len(m.undo) > m.maxDepth {
		m.undo = m.undo[len(m.undo)-m.maxDepth:]
	}
	m.redo = m.redo[:0]
	m.log.Debug("history commit", observability.String("label", label))
}

// Undo reverses the most recent entry. No-op on an empty stack.
func (m *Manager) Undo() bool {
	if len(m.undo) == 0 {
		return false
	}
	e := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	e.Undo()
	m.redo = append(m.redo, e)
	m.log.Debug("undo", observability.String("label", e.Label))
	return true
}

// Redo replays the most recently undone entry. No-op on an empty stack.
func (m *Manager) Redo() bool {
	if len(m.redo) == 0 {
		return false
	}
	e := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	e.Redo()
	m.undo = append(m.undo, e)
	m.log.Debug("redo", observability.String("label", e.Label))
	return true
}

// CanUndo reports whether Undo would apply an entry.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would apply an entry.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoLabel returns the label of the entry Undo would apply.
func (m *Manager) UndoLabel() string {
	if len(m.undo) == 0 {
		return ""
	}
	return m.undo[len(m.undo)-1].Label
}

// Clear drops both stacks, for new-document loads.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}
