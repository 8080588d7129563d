package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/render"
)

type stubEngine struct {
	result Result
	last   Input
}

func (s *stubEngine) Name() string { return "stub" }
func (s *stubEngine) Recognize(_ context.Context, in Input) (Result, error) {
	s.last = in
	res := s.result
	res.InputID = in.ID
	return res, nil
}

func testSurface(w, h int) *render.Surface {
	return &render.Surface{
		Image:       image.NewRGBA(image.Rect(0, 0, w, h)),
		SourceIndex: 3,
		Scale:       2,
	}
}

func TestInputFromSurface(t *testing.T) {
	in, err := InputFromSurface(testSurface(100, 60), WithLanguages("eng"), WithDPI(144))
	if err != nil {
		t.Fatal(err)
	}
	if in.ID != "page-3" || in.PageIndex != 3 || in.Scale != 2 {
		t.Fatalf("input = %+v", in)
	}
	if in.Format != ImageFormatPNG {
		t.Fatalf("format = %q", in.Format)
	}
	if got := in.Languages; !cmp.Equal(got, []string{"eng"}) {
		t.Fatalf("languages = %v", got)
	}
	if in.DPI != 144 {
		t.Fatalf("dpi = %d", in.DPI)
	}
	img, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 60 {
		t.Fatalf("decoded %dx%d", b.Dx(), b.Dy())
	}
}

func TestInputFromSurfaceRejectsBadSurfaces(t *testing.T) {
	if _, err := InputFromSurface(nil); err == nil {
		t.Fatal("nil surface accepted")
	}
	failed := testSurface(10, 10)
	failed.Failed = true
	failed.Reason = "render failed"
	if _, err := InputFromSurface(failed); err == nil {
		t.Fatal("failed surface accepted")
	}
	rotated := testSurface(10, 10)
	rotated.Rotation = 90
	if _, err := InputFromSurface(rotated); err == nil {
		t.Fatal("rotated surface accepted")
	}
}

func TestDefaultEngineIsNoop(t *testing.T) {
	old := DefaultEngine()
	t.Cleanup(func() { SetDefaultEngine(old) })

	SetDefaultEngine(noopEngine{})
	res, err := DefaultEngine().Recognize(context.Background(), Input{ID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.InputID != "a" || res.PlainText != "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestPrefillCreatesTextElements(t *testing.T) {
	store := element.NewStore()
	in, err := InputFromSurface(testSurface(200, 100))
	if err != nil {
		t.Fatal(err)
	}
	result := Result{
		Blocks: []TextBlock{{
			Lines: []TextLine{
				{Text: "Invoice 42", Bounds: Region{X: 20, Y: 10, Width: 120, Height: 24}, Confidence: 0.95},
				{Text: "  ", Bounds: Region{X: 20, Y: 40, Width: 10, Height: 24}, Confidence: 0.9},
				{Text: "smudge", Bounds: Region{X: 20, Y: 70, Width: 60, Height: 24}, Confidence: 0.2},
			},
		}},
	}
	ids, err := Prefill(store, in, result, PrefillOptions{MinConfidence: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("created %d elements, want 1", len(ids))
	}
	el, ok := store.Get(ids[0])
	if !ok {
		t.Fatal("element not in store")
	}
	if el.Kind != element.KindText || el.PageIndex != 3 {
		t.Fatalf("element = %+v", el)
	}
	// Pixel boxes at scale 2 halve back into page units.
	want := element.Bounds{X: 10, Y: 5, Width: 60, Height: 12}
	if diff := cmp.Diff(want, el.Bounds); diff != "" {
		t.Fatalf("bounds mismatch (-want +got):\n%s", diff)
	}
	if el.Text == nil || el.Text.Content != "Invoice 42" {
		t.Fatalf("text = %+v", el.Text)
	}
}

func TestPrefillRequiresScale(t *testing.T) {
	if _, err := Prefill(element.NewStore(), Input{}, Result{}, PrefillOptions{}); err == nil {
		t.Fatal("zero scale accepted")
	}
}

func TestRecognizeSurfaceRoundTrip(t *testing.T) {
	eng := &stubEngine{result: Result{PlainText: "hello"}}
	in, err := InputFromSurface(testSurface(50, 50))
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.Recognize(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.InputID != "page-3" || res.PlainText != "hello" {
		t.Fatalf("result = %+v", res)
	}
	if eng.last.Format != ImageFormatPNG {
		t.Fatalf("engine saw format %q", eng.last.Format)
	}
}
