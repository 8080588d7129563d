package ocr

import (
	"fmt"
	"strings"

	"github.com/pdfpage/editkit/element"
)

// PrefillOptions tunes how recognition results become text elements.
type PrefillOptions struct {
	// MinConfidence drops lines below this score. Zero keeps all.
	MinConfidence float64
	// FontFamily for the created elements; empty means Helvetica.
	FontFamily string
	// Color for the created elements; zero value is black.
	Color element.RGB
}

// Prefill converts the lines of result into editable text elements on
// the page the input was rendered from. Recognized pixel boxes are
// divided by the render scale so the elements land over the original
// glyphs. It returns the ids of the created elements.
func Prefill(store *element.Store, input Input, result Result, opts PrefillOptions) ([]string, error) {
	if store == nil {
		return nil, fmt.Errorf("ocr: nil store")
	}
	if input.Scale <= 0 {
		return nil, fmt.Errorf("ocr: input has no render scale")
	}
	family := opts.FontFamily
	if family == "" {
		family = "Helvetica"
	}
	var ids []string
	for _, block := range result.Blocks {
		for _, line := range block.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			if opts.MinConfidence > 0 && line.Confidence < opts.MinConfidence {
				continue
			}
			b := scaleRegion(line.Bounds, 1/input.Scale)
			ids = append(ids, store.Add(element.Element{
				Kind:      element.KindText,
				PageIndex: input.PageIndex,
				Bounds: element.Bounds{
					X:      b.X,
					Y:      b.Y,
					Width:  b.Width,
					Height: b.Height,
				},
				Text: &element.TextProps{
					Content:    text,
					FontFamily: family,
					FontSize:   fontSizeFor(b.Height),
					Color:      opts.Color,
					Alignment:  element.AlignLeft,
				},
			}))
		}
	}
	return ids, nil
}

func scaleRegion(r Region, factor float64) Region {
	return Region{
		X:      r.X * factor,
		Y:      r.Y * factor,
		Width:  r.Width * factor,
		Height: r.Height * factor,
	}
}

// fontSizeFor picks a size whose ascent roughly fills the line box.
func fontSizeFor(lineHeight float64) float64 {
	size := lineHeight * 0.85
	if size < 4 {
		size = 4
	}
	return size
}
