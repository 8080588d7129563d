//go:build cgo

// Package tesseract backs the ocr engine contract with the gosseract
// client. Importing it installs the engine as the process default.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/pdfpage/editkit/ocr"
)

func init() {
	ocr.SetDefaultEngine(New())
}

// Engine recognizes text through a tesseract installation. A fresh
// client is created per input so engines are safe to share.
type Engine struct {
	newClient func() *gosseract.Client
}

// New returns a tesseract-backed engine.
func New() *Engine {
	return &Engine{newClient: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs OCR on a single input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.newClient()
	defer c.Close()
	return e.recognize(c, in)
}

// RecognizeBatch processes inputs sequentially, checking the context
// between pages.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognize(c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	payload, err := clip(in.Image, in.Region)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(payload); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)

	words := readWords(c)
	lines := groupLines(words)
	var block ocr.TextBlock
	if len(lines) > 0 {
		block = ocr.TextBlock{
			Text:       plain,
			Bounds:     union(lineBounds(lines)),
			Lines:      lines,
			Confidence: average(lines),
		}
	} else {
		block = ocr.TextBlock{Text: plain}
	}

	res := ocr.Result{
		InputID:   in.ID,
		PlainText: plain,
		Blocks:    []ocr.TextBlock{block},
	}
	if len(in.Languages) > 0 {
		res.Language = in.Languages[0]
	}
	return res, nil
}

func readWords(c *gosseract.Client) []ocr.TextWord {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}
	words := make([]ocr.TextWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.TextWord{
			Text: b.Word,
			Bounds: ocr.Region{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return words
}

// groupLines buckets words by vertical overlap: a word joins the
// current line when its box overlaps the line's span by at least half
// the smaller height. The bucketing matches how the per-line prefill
// wants results shaped.
func groupLines(words []ocr.TextWord) []ocr.TextLine {
	if len(words) == 0 {
		return nil
	}
	sorted := append([]ocr.TextWord(nil), words...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Bounds.Y != sorted[j].Bounds.Y {
			return sorted[i].Bounds.Y < sorted[j].Bounds.Y
		}
		return sorted[i].Bounds.X < sorted[j].Bounds.X
	})

	var lines []ocr.TextLine
	var current []ocr.TextWord
	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.Slice(current, func(i, j int) bool { return current[i].Bounds.X < current[j].Bounds.X })
		texts := make([]string, 0, len(current))
		var sum float64
		for _, w := range current {
			texts = append(texts, w.Text)
			sum += w.Confidence
		}
		bounds := make([]ocr.Region, 0, len(current))
		for _, w := range current {
			bounds = append(bounds, w.Bounds)
		}
		lines = append(lines, ocr.TextLine{
			Text:       strings.Join(texts, " "),
			Bounds:     union(bounds),
			Words:      append([]ocr.TextWord(nil), current...),
			Confidence: sum / float64(len(current)),
		})
		current = nil
	}
	for _, w := range sorted {
		if len(current) > 0 && !sameLine(union(wordBounds(current)), w.Bounds) {
			flush()
		}
		current = append(current, w)
	}
	flush()
	return lines
}

func sameLine(a, b ocr.Region) bool {
	top := math.Max(a.Y, b.Y)
	bottom := math.Min(a.Y+a.Height, b.Y+b.Height)
	overlap := bottom - top
	return overlap >= math.Min(a.Height, b.Height)*0.5
}

func wordBounds(words []ocr.TextWord) []ocr.Region {
	out := make([]ocr.Region, 0, len(words))
	for _, w := range words {
		out = append(out, w.Bounds)
	}
	return out
}

func lineBounds(lines []ocr.TextLine) []ocr.Region {
	out := make([]ocr.Region, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Bounds)
	}
	return out
}

func union(regions []ocr.Region) ocr.Region {
	if len(regions) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, r := range regions {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.Width)
		maxY = math.Max(maxY, r.Y+r.Height)
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func average(lines []ocr.TextLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}

// clip crops the encoded image to region before handing it to
// tesseract. A nil or empty region passes the payload through.
func clip(data []byte, region *ocr.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	rect := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
