package element

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pdfpage/editkit/coords"
)

func testStore() *Store {
	n := 0
	return NewStore(
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithIDSource(func() string { n++; return fmt.Sprintf("el-%d", n) }),
	)
}

func textSpec(page int) Element {
	return Element{
		Kind:      KindText,
		PageIndex: page,
		Bounds:    Bounds{X: 10, Y: 20, Width: 100, Height: 24},
		Text:      &TextProps{Content: "hello", FontFamily: "Helvetica", FontSize: 14},
	}
}

func TestAddAssignsIDAndDefaults(t *testing.T) {
	s := testStore()
	id := s.Add(textSpec(0))
	if id != "el-1" {
		t.Fatalf("id = %q", id)
	}
	el, ok := s.Get(id)
	if !ok {
		t.Fatal("element not stored")
	}
	if !el.Visible || el.Opacity != 1 {
		t.Errorf("defaults: visible=%v opacity=%v", el.Visible, el.Opacity)
	}
	if el.CreatedAt.IsZero() || !el.CreatedAt.Equal(el.UpdatedAt) {
		t.Errorf("timestamps: %v %v", el.CreatedAt, el.UpdatedAt)
	}
}

func TestUpdateUnknownIDIsSilent(t *testing.T) {
	s := testStore()
	s.Update("missing", func(e *Element) { e.Bounds.X = 99 })
	if s.Len() != 0 {
		t.Error("phantom element created")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := testStore()
	id := s.Add(textSpec(0))
	s.Remove(id)
	s.Remove(id)
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
	if got := s.ForPage(0); len(got) != 0 {
		t.Errorf("ForPage = %v", got)
	}
}

func TestZOrderIsInsertionOrder(t *testing.T) {
	s := testStore()
	a := s.Add(textSpec(2))
	b := s.Add(textSpec(2))
	c := s.Add(textSpec(2))
	ids := pageIDs(s, 2)
	want := []string{a, b, c}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("paint order (-want +got):\n%s", diff)
	}

	s.BringToFront(a)
	if ids := pageIDs(s, 2); ids[len(ids)-1] != a {
		t.Errorf("after BringToFront: %v", ids)
	}
	s.SendToBack(c)
	if ids := pageIDs(s, 2); ids[0] != c {
		t.Errorf("after SendToBack: %v", ids)
	}
}

func pageIDs(s *Store, page int) []string {
	var ids []string
	for _, el := range s.ForPage(page) {
		ids = append(ids, el.ID)
	}
	return ids
}

func TestUpdateMovesAcrossPages(t *testing.T) {
	s := testStore()
	id := s.Add(textSpec(0))
	s.Update(id, func(e *Element) { e.PageIndex = 3 })
	if got := s.ForPage(0); len(got) != 0 {
		t.Errorf("page 0 still has %d elements", len(got))
	}
	got := s.ForPage(3)
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("page 3: %v", got)
	}
}

func TestForPageReturnsCopies(t *testing.T) {
	s := testStore()
	id := s.Add(Element{
		Kind:      KindDraw,
		PageIndex: 0,
		Draw: &DrawProps{
			Points:      []coords.Point{{X: 1, Y: 1}},
			StrokeWidth: 2,
		},
	})
	view := s.ForPage(0)
	view[0].Draw.Points[0].X = 999
	el, _ := s.Get(id)
	if el.Draw.Points[0].X != 1 {
		t.Error("caller mutation leaked into store")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := testStore()
	a := s.Add(textSpec(0))
	s.Add(textSpec(1))
	before := s.Snapshot()

	s.Update(a, func(e *Element) { e.Text.Content = "changed" })
	s.Remove(a)
	s.Restore(before)

	el, ok := s.Get(a)
	if !ok {
		t.Fatal("restore lost element")
	}
	if el.Text.Content != "hello" {
		t.Errorf("content = %q", el.Text.Content)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("state after restore (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := testStore()
	id := s.Add(textSpec(0))
	snap := s.Snapshot()
	s.Update(id, func(e *Element) { e.Text.Content = "after" })
	if snap.Elements[id].Text.Content != "hello" {
		t.Error("snapshot shares state with live store")
	}
}
