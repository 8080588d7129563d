package editor

import (
	"context"
	"testing"
	"time"

	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/export"
	"github.com/pdfpage/editkit/filters"
	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/surface"
	"github.com/pdfpage/editkit/writer"
)

func fixturePDF(t *testing.T, n int) []byte {
	t.Helper()
	objs := map[raw.ObjectRef]raw.Object{}
	next := 1
	alloc := func(obj raw.Object) raw.ObjectRef {
		ref := raw.ObjectRef{Num: next}
		next++
		objs[ref] = obj
		return ref
	}

	pagesRef := raw.ObjectRef{Num: 900}
	kids := raw.NewArray()
	for i := 0; i < n; i++ {
		data, err := filters.FlateEncode([]byte("0 0 0 rg 20 20 40 40 re f"))
		if err != nil {
			t.Fatal(err)
		}
		cd := raw.Dict()
		cd.Set("Filter", raw.Name("FlateDecode"))
		contentRef := alloc(&raw.StreamObj{Dict: cd, Data: data})

		page := raw.Dict()
		page.Set("Type", raw.Name("Page"))
		page.Set("Parent", raw.Ref(pagesRef))
		mb := raw.NewArray()
		for _, v := range [4]float64{0, 0, 200, 100} {
			mb.Items = append(mb.Items, raw.Real(v))
		}
		page.Set("MediaBox", mb)
		page.Set("Contents", raw.Ref(contentRef))
		kids.Items = append(kids.Items, raw.Ref(alloc(page)))
	}

	pagesDict := raw.Dict()
	pagesDict.Set("Type", raw.Name("Pages"))
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", raw.Int(int64(n)))
	objs[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(pagesRef))
	catRef := alloc(catalog)

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(catRef))
	out, err := writer.Serialize(&raw.Document{Objects: objs, Trailer: trailer, Version: "1.7"}, writer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func openSession(t *testing.T, n int) *Session {
	t.Helper()
	s, err := Open(fixturePDF(t, n), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenBuildsRegistry(t *testing.T) {
	s := openSession(t, 3)
	if s.Pages().Len() != 3 {
		t.Fatalf("registry len = %d, want 3", s.Pages().Len())
	}
	if s.Document().PageCount() != 3 {
		t.Fatalf("page count = %d, want 3", s.Document().PageCount())
	}
}

func TestRotatePageUndoRedo(t *testing.T) {
	s := openSession(t, 2)
	if err := s.RotatePage(1, 90); err != nil {
		t.Fatal(err)
	}
	d, _ := s.Pages().At(1)
	if d.Rotation != 90 {
		t.Fatalf("rotation = %d, want 90", d.Rotation)
	}
	if !s.Undo() {
		t.Fatal("Undo returned false")
	}
	d, _ = s.Pages().At(1)
	if d.Rotation != 0 {
		t.Errorf("rotation after undo = %d, want 0", d.Rotation)
	}
	if !s.Redo() {
		t.Fatal("Redo returned false")
	}
	d, _ = s.Pages().At(1)
	if d.Rotation != 90 {
		t.Errorf("rotation after redo = %d, want 90", d.Rotation)
	}
}

func TestReorderPagesUndo(t *testing.T) {
	s := openSession(t, 3)
	if err := s.ReorderPages(0, 2); err != nil {
		t.Fatal(err)
	}
	d, _ := s.Pages().At(2)
	if d.SourceIndex != 0 {
		t.Fatalf("source at display 2 = %d, want 0", d.SourceIndex)
	}
	s.Undo()
	d, _ = s.Pages().At(0)
	if d.SourceIndex != 0 {
		t.Errorf("source at display 0 after undo = %d, want 0", d.SourceIndex)
	}
}

func TestRenderDisplayPageAppliesRotation(t *testing.T) {
	s := openSession(t, 1)
	sf, err := s.RenderDisplayPage(context.Background(), 0, 1)
	if err != nil || sf == nil {
		t.Fatalf("render: %v, surface %v", err, sf)
	}
	w0 := sf.Image.Bounds().Dx()
	h0 := sf.Image.Bounds().Dy()

	if err := s.RotatePage(0, 90); err != nil {
		t.Fatal(err)
	}
	sf, err = s.RenderDisplayPage(context.Background(), 0, 1)
	if err != nil || sf == nil {
		t.Fatalf("render rotated: %v", err)
	}
	if sf.Image.Bounds().Dx() != h0 || sf.Image.Bounds().Dy() != w0 {
		t.Errorf("rotated surface = %dx%d, want %dx%d",
			sf.Image.Bounds().Dx(), sf.Image.Bounds().Dy(), h0, w0)
	}
}

func TestSurfaceInvalidatesRenderer(t *testing.T) {
	s := openSession(t, 1)
	if sf, err := s.RenderDisplayPage(context.Background(), 0, 1); err != nil || sf == nil {
		t.Fatalf("prime cache: %v", err)
	}
	if s.Renderer().CacheLen() == 0 {
		t.Fatal("cache not primed")
	}
	ctrl := s.Surface()
	ctrl.SetTool(surface.ToolRectangle)
	ctrl.PointerDown(0, 10, 10)
	ctrl.PointerMove(60, 60)
	ctrl.PointerUp(60, 60)
	if s.Renderer().CacheLen() != 0 {
		t.Error("committing a shape did not invalidate the page cache")
	}
}

func TestExportRunsFormatScripts(t *testing.T) {
	s := openSession(t, 1)
	s.Elements().Add(element.Element{
		Kind:      element.KindFormField,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 10, Y: 10, Width: 120, Height: 24},
		FormField: &element.FormFieldProps{
			FieldType: element.FieldText,
			Name:      "amount",
			Value:     "7",
			Script:    `event.value = event.value + ".00";`,
		},
	})
	data, err := s.Export(context.Background(), export.Options{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty export")
	}
}
