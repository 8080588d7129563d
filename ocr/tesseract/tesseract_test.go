//go:build cgo

package tesseract

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/pdfpage/editkit/ocr"
)

func word(text string, x, y, w, h float64) ocr.TextWord {
	return ocr.TextWord{Text: text, Bounds: ocr.Region{X: x, Y: y, Width: w, Height: h}, Confidence: 0.9}
}

func TestGroupLines(t *testing.T) {
	words := []ocr.TextWord{
		word("world", 60, 10, 50, 20),
		word("hello", 0, 12, 50, 20),
		word("below", 0, 60, 50, 20),
	}
	lines := groupLines(words)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text != "hello world" {
		t.Fatalf("first line = %q", lines[0].Text)
	}
	if lines[1].Text != "below" {
		t.Fatalf("second line = %q", lines[1].Text)
	}
	b := lines[0].Bounds
	if b.X != 0 || b.Width != 110 {
		t.Fatalf("line bounds = %+v", b)
	}
}

func TestGroupLinesEmpty(t *testing.T) {
	if got := groupLines(nil); got != nil {
		t.Fatalf("got %v", got)
	}
}

func TestClip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	out, err := clip(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("nil region should pass through")
	}

	out, err = clip(data, &ocr.Region{X: 10, Y: 10, Width: 30, Height: 20})
	if err != nil {
		t.Fatal(err)
	}
	cropped, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := cropped.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Fatalf("cropped %dx%d", b.Dx(), b.Dy())
	}

	if _, err := clip(data, &ocr.Region{X: 500, Y: 500, Width: 10, Height: 10}); err == nil {
		t.Fatal("out-of-bounds region accepted")
	}
}
