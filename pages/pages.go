// Package pages tracks display order, rotation, and deletion state for
// every page of the loaded document, decoupled from the source order.
package pages

import (
	"fmt"
	"sort"

	"github.com/pdfpage/editkit/observability"
)

// Descriptor is one page's registry entry.
type Descriptor struct {
	// SourceIndex identifies the page in the original document. It is
	// assigned once and never changes.
	SourceIndex int
	// DisplayIndex is the page's current visual position.
	DisplayIndex int
	// Rotation is the user-applied rotation in degrees, always one of
	// 0, 90, 180, 270, on top of the page's intrinsic rotation.
	Rotation int
	// Deleted pages are excluded from export and visible grids but
	// stay registered so undo can bring them back.
	Deleted bool
}

// Registry is the ordered set of page descriptors. Mutations keep the
// source-index permutation invariant: every source index appears in
// exactly one descriptor at all times.
type Registry struct {
	descriptors []Descriptor // ordered by DisplayIndex
	log         observability.Logger
}

// New creates a registry of pageCount pages in source order.
func New(pageCount int, log observability.Logger) *Registry {
	if log == nil {
		log = observability.NopLogger{}
	}
	r := &Registry{log: log}
	r.descriptors = make([]Descriptor, pageCount)
	for i := range r.descriptors {
		r.descriptors[i] = Descriptor{SourceIndex: i, DisplayIndex: i}
	}
	return r
}

// Len returns the total descriptor count including deleted pages.
func (r *Registry) Len() int { return len(r.descriptors) }

// At returns the descriptor at displayIndex.
func (r *Registry) At(displayIndex int) (Descriptor, error) {
	if displayIndex < 0 || displayIndex >= len(r.descriptors) {
		return Descriptor{}, fmt.Errorf("pages: display index %d out of range [0,%d)", displayIndex, len(r.descriptors))
	}
	return r.descriptors[displayIndex], nil
}

// BySource returns the descriptor owning sourceIndex.
func (r *Registry) BySource(sourceIndex int) (Descriptor, error) {
	for _, d := range r.descriptors {
		if d.SourceIndex == sourceIndex {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("pages: no descriptor for source index %d", sourceIndex)
}

// Reorder moves the page at from to position to and renumbers all
// display indices contiguously. Called repeatedly during a drag; only
// the gesture's final state is committed to history by the caller.
func (r *Registry) Reorder(from, to int) error {
	n := len(r.descriptors)
	if from < 0 || from >= n {
		return fmt.Errorf("pages: reorder from %d out of range [0,%d)", from, n)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("pages: reorder to %d out of range [0,%d)", to, n)
	}
	if from == to {
		return nil
	}
	d := r.descriptors[from]
	rest := append(r.descriptors[:from:from], r.descriptors[from+1:]...)
	r.descriptors = append(rest[:to:to], append([]Descriptor{d}, rest[to:]...)...)
	r.renumber()
	r.mustHold()
	return nil
}

// Rotate adds deltaDegrees to the page's rotation. Only quarter-turn
// multiples are legal; anything else is a programming error and panics.
func (r *Registry) Rotate(displayIndex, deltaDegrees int) error {
	if deltaDegrees%90 != 0 {
		panic(fmt.Sprintf("pages: rotation delta %d is not a multiple of 90", deltaDegrees))
	}
	if displayIndex < 0 || displayIndex >= len(r.descriptors) {
		return fmt.Errorf("pages: display index %d out of range [0,%d)", displayIndex, len(r.descriptors))
	}
	d := &r.descriptors[displayIndex]
	d.Rotation = ((d.Rotation+deltaDegrees)%360 + 360) % 360
	r.mustHold()
	return nil
}

// ToggleDelete flips the page's deleted flag. Display indices of other
// pages stay unchanged so drag targets remain stable; Compact renumbers
// explicitly when the caller wants contiguous numbering.
func (r *Registry) ToggleDelete(displayIndex int) error {
	if displayIndex < 0 || displayIndex >= len(r.descriptors) {
		return fmt.Errorf("pages: display index %d out of range [0,%d)", displayIndex, len(r.descriptors))
	}
	d := &r.descriptors[displayIndex]
	d.Deleted = !d.Deleted
	r.log.Debug("page delete toggled",
		observability.Int("source", d.SourceIndex),
		observability.Bool("deleted", d.Deleted))
	r.mustHold()
	return nil
}

// Compact renumbers display indices contiguously across all
// descriptors, deleted ones included.
func (r *Registry) Compact() { r.renumber() }

// Visible returns non-deleted descriptors in display order. Export
// consumes exactly this sequence.
func (r *Registry) Visible() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if !d.Deleted {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayIndex < out[j].DisplayIndex
	})
	return out
}

// All returns every descriptor, deleted included, in display order.
func (r *Registry) All() []Descriptor {
	out := append([]Descriptor(nil), r.descriptors...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayIndex < out[j].DisplayIndex
	})
	return out
}

// Snapshot captures registry state for history entries.
func (r *Registry) Snapshot() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}

// Restore replaces registry state with a previously captured snapshot.
func (r *Registry) Restore(snap []Descriptor) {
	r.descriptors = append([]Descriptor(nil), snap...)
	r.mustHold()
}

func (r *Registry) renumber() {
	for i := range r.descriptors {
		r.descriptors[i].DisplayIndex = i
	}
}

// mustHold panics if the source-index permutation invariant is broken.
// Every mutation path funnels through here; a violation means registry
// code is wrong, not that input was bad.
func (r *Registry) mustHold() {
	seen := make(map[int]bool, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.SourceIndex < 0 || d.SourceIndex >= len(r.descriptors) || seen[d.SourceIndex] {
			panic(fmt.Sprintf("pages: source index invariant violated at %d", d.SourceIndex))
		}
		seen[d.SourceIndex] = true
		if d.Rotation%90 != 0 || d.Rotation < 0 || d.Rotation >= 360 {
			panic(fmt.Sprintf("pages: rotation %d out of domain", d.Rotation))
		}
	}
}
