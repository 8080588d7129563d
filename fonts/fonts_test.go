package fonts

import (
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestResolveBase(t *testing.T) {
	cases := []struct {
		family       string
		bold, italic bool
		want         string
	}{
		{"Helvetica", false, false, "Helvetica"},
		{"Helvetica", true, false, "Helvetica-Bold"},
		{"Arial", false, true, "Helvetica-Oblique"},
		{"Times New Roman", false, false, "Times-Roman"},
		{"Times New Roman", true, true, "Times-BoldItalic"},
		{"Courier New", true, false, "Courier-Bold"},
		{"", false, false, "Helvetica"},
	}
	for _, c := range cases {
		if got := ResolveBase(c.family, c.bold, c.italic); got != c.want {
			t.Errorf("ResolveBase(%q, %v, %v) = %q, want %q", c.family, c.bold, c.italic, got, c.want)
		}
	}
}

func TestMeasureString(t *testing.T) {
	// Helvetica space is 278/1000 em.
	if w := MeasureString("Helvetica", " ", 1000); w != 278 {
		t.Errorf("space width = %v", w)
	}
	// Courier is monospaced at 600.
	if w := MeasureString("Courier", "abc", 10); w != 18 {
		t.Errorf("courier width = %v", w)
	}
	// Bold runs wider than regular for the same text.
	reg := MeasureString("Helvetica", "import", 12)
	bold := MeasureString("Helvetica-Bold", "import", 12)
	if bold <= reg {
		t.Errorf("bold %v not wider than regular %v", bold, reg)
	}
}

func TestAdvanceOutsideASCII(t *testing.T) {
	m := MetricsFor("Times-Roman")
	if m.Advance('é') != 500 {
		t.Errorf("fallback advance = %v", m.Advance('é'))
	}
}

func TestLineHeight(t *testing.T) {
	if LineHeight(10) != 12 {
		t.Errorf("LineHeight(10) = %v", LineHeight(10))
	}
}

func TestShapeTextEmptyInput(t *testing.T) {
	glyphs, err := ShapeText(nil, "abc")
	if err != nil || glyphs != nil {
		t.Errorf("got %v, %v", glyphs, err)
	}
	glyphs, err = ShapeText([]byte{1, 2, 3, 4}, "")
	if err != nil || glyphs != nil {
		t.Errorf("got %v, %v", glyphs, err)
	}
}

func TestShapeTextRealFace(t *testing.T) {
	glyphs, err := ShapeText(goregular.TTF, "Hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(glyphs) != 5 {
		t.Fatalf("got %d glyphs, want 5", len(glyphs))
	}
	for _, g := range glyphs {
		if g.XAdvance <= 0 {
			t.Fatalf("glyph %d has advance %v", g.ID, g.XAdvance)
		}
	}
}

func TestRegisterFaceRejectsGarbage(t *testing.T) {
	if err := RegisterFace("Broken", []byte{1, 2, 3, 4}); err == nil {
		t.Fatal("garbage font accepted")
	}
	if err := RegisterFace("", goregular.TTF); err == nil {
		t.Fatal("empty family accepted")
	}
}

func TestMeasureUsesRegisteredFace(t *testing.T) {
	if err := RegisterFace("Go Custom", goregular.TTF); err != nil {
		t.Fatal(err)
	}
	shaped := Measure("Go Custom", "Helvetica", "Hello, world", 12)
	if shaped <= 0 {
		t.Fatalf("shaped width = %v", shaped)
	}
	want, err := MeasureShaped(goregular.TTF, "Hello, world", 12)
	if err != nil {
		t.Fatal(err)
	}
	if shaped != want {
		t.Fatalf("Measure = %v, MeasureShaped = %v", shaped, want)
	}
	// Lookup is case-insensitive.
	if got := Measure("go custom", "Helvetica", "Hello, world", 12); got != want {
		t.Fatalf("lowercase lookup = %v, want %v", got, want)
	}
}

func TestMeasureFallsBackToMetrics(t *testing.T) {
	got := Measure("No Such Family", "Helvetica", "abc", 10)
	if want := MeasureString("Helvetica", "abc", 10); got != want {
		t.Fatalf("Measure = %v, want metric fallback %v", got, want)
	}
}
