package pages

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sourceOrder(r *Registry) []int {
	var out []int
	for _, d := range r.All() {
		out = append(out, d.SourceIndex)
	}
	return out
}

func TestNewRegistry(t *testing.T) {
	r := New(3, nil)
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
	for i := 0; i < 3; i++ {
		d, err := r.At(i)
		if err != nil {
			t.Fatal(err)
		}
		if d.SourceIndex != i || d.DisplayIndex != i || d.Rotation != 0 || d.Deleted {
			t.Errorf("descriptor %d: %+v", i, d)
		}
	}
}

func TestReorder(t *testing.T) {
	r := New(4, nil)
	if err := r.Reorder(0, 2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 0, 3}, sourceOrder(r)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	// moving it back restores the original ordering
	if err := r.Reorder(2, 0); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3}, sourceOrder(r)); diff != "" {
		t.Errorf("inverse (-want +got):\n%s", diff)
	}
}

func TestReorderOutOfRange(t *testing.T) {
	r := New(2, nil)
	if err := r.Reorder(5, 0); err == nil {
		t.Error("from out of range accepted")
	}
	if err := r.Reorder(0, -1); err == nil {
		t.Error("to out of range accepted")
	}
}

func TestRotateCyclic(t *testing.T) {
	r := New(1, nil)
	for i := 0; i < 4; i++ {
		if err := r.Rotate(0, 90); err != nil {
			t.Fatal(err)
		}
	}
	d, _ := r.At(0)
	if d.Rotation != 0 {
		t.Errorf("rotation after four quarter turns = %d", d.Rotation)
	}
	if err := r.Rotate(0, -90); err != nil {
		t.Fatal(err)
	}
	d, _ = r.At(0)
	if d.Rotation != 270 {
		t.Errorf("rotation after -90 = %d", d.Rotation)
	}
}

func TestRotateRejectsNonQuarter(t *testing.T) {
	r := New(1, nil)
	defer func() {
		if recover() == nil {
			t.Error("45 degree rotation did not panic")
		}
	}()
	_ = r.Rotate(0, 45)
}

func TestToggleDeleteKeepsDisplayIndex(t *testing.T) {
	r := New(3, nil)
	if err := r.ToggleDelete(1); err != nil {
		t.Fatal(err)
	}
	vis := r.Visible()
	if len(vis) != 2 {
		t.Fatalf("visible = %d", len(vis))
	}
	// display indices stay stable until an explicit compact
	if vis[0].DisplayIndex != 0 || vis[1].DisplayIndex != 2 {
		t.Errorf("visible indices: %+v", vis)
	}
	// un-delete brings the page back
	if err := r.ToggleDelete(1); err != nil {
		t.Fatal(err)
	}
	if len(r.Visible()) != 3 {
		t.Error("un-delete did not restore page")
	}
}

func TestCompactRenumbers(t *testing.T) {
	r := New(3, nil)
	_ = r.ToggleDelete(0)
	r.Compact()
	for i, d := range r.All() {
		if d.DisplayIndex != i {
			t.Errorf("descriptor %d has display index %d", i, d.DisplayIndex)
		}
	}
}

func TestPermutationInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 8
	r := New(n, nil)
	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			_ = r.Reorder(rng.Intn(n), rng.Intn(n))
		case 1:
			_ = r.Rotate(rng.Intn(n), 90*(1+rng.Intn(3)))
		case 2:
			_ = r.ToggleDelete(rng.Intn(n))
		}
		seen := make(map[int]bool)
		for _, d := range r.All() {
			if seen[d.SourceIndex] {
				t.Fatalf("step %d: duplicate source index %d", i, d.SourceIndex)
			}
			seen[d.SourceIndex] = true
		}
		if len(seen) != n {
			t.Fatalf("step %d: %d source indices, want %d", i, len(seen), n)
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	r := New(3, nil)
	_ = r.Reorder(0, 2)
	_ = r.Rotate(0, 90)
	snap := r.Snapshot()

	_ = r.ToggleDelete(1)
	_ = r.Reorder(1, 0)
	r.Restore(snap)

	if diff := cmp.Diff(snap, r.Snapshot()); diff != "" {
		t.Errorf("restored state (-want +got):\n%s", diff)
	}
}

func TestBySource(t *testing.T) {
	r := New(3, nil)
	_ = r.Reorder(2, 0)
	d, err := r.BySource(2)
	if err != nil {
		t.Fatal(err)
	}
	if d.DisplayIndex != 0 {
		t.Errorf("source 2 display index = %d", d.DisplayIndex)
	}
	if _, err := r.BySource(9); err == nil {
		t.Error("unknown source index accepted")
	}
}
