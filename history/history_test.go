package history

import "testing"

func TestUndoRedoRoundTrip(t *testing.T) {
	m := New(0, nil)
	value := 0
	set := func(v int) (func(), func()) {
		prev := value
		return func() { value = prev }, func() { value = v }
	}

	undo1, redo1 := set(1)
	value = 1
	m.Commit("set 1", undo1, redo1)
	undo2, redo2 := set(2)
	value = 2
	m.Commit("set 2", undo2, redo2)

	if !m.Undo() || value != 1 {
		t.Fatalf("after undo: value = %d", value)
	}
	if !m.Redo() || value != 2 {
		t.Fatalf("after redo: value = %d", value)
	}
}

func TestEmptyStacksAreNoOps(t *testing.T) {
	m := New(0, nil)
	if m.Undo() {
		t.Error("Undo on empty stack returned true")
	}
	if m.Redo() {
		t.Error("Redo on empty stack returned true")
	}
	if m.CanUndo() || m.CanRedo() {
		t.Error("empty manager reports available entries")
	}
}

func TestCommitClearsRedo(t *testing.T) {
	m := New(0, nil)
	noop := func() {}
	m.Commit("a", noop, noop)
	m.Commit("b", noop, noop)
	m.Undo()
	if !m.CanRedo() {
		t.Fatal("redo should be available")
	}
	m.Commit("c", noop, noop)
	if m.CanRedo() {
		t.Error("commit did not clear redo stack")
	}
	if m.UndoLabel() != "c" {
		t.Errorf("UndoLabel = %q", m.UndoLabel())
	}
}

func TestDepthLimit(t *testing.T) {
	m := New(3, nil)
	noop := func() {}
	for i := 0; i < 10; i++ {
		m.Commit("op", noop, noop)
	}
	count := 0
	for m.Undo() {
		count++
	}
	if count != 3 {
		t.Errorf("undoable entries = %d, want 3", count)
	}
}

func TestNilClosureDropped(t *testing.T) {
	m := New(0, nil)
	m.Commit("bad", nil, func() {})
	if m.CanUndo() {
		t.Error("entry with nil undo accepted")
	}
}

func TestClear(t *testing.T) {
	m := New(0, nil)
	noop := func() {}
	m.Commit("a", noop, noop)
	m.Undo()
	m.Clear()
	if m.CanUndo() || m.CanRedo() {
		t.Error("Clear left entries behind")
	}
}
