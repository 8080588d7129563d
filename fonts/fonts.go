// Package fonts resolves overlay text styles to the standard 14 base
// fonts and measures strings against their built-in metrics. Custom
// embedded fonts are measured by shaping instead, see shaper.go.
package fonts

// ResolveBase maps a family plus style flags to a standard base font
// name. Unknown families fall back to Helvetica.
func ResolveBase(family string, bold, italic bool) string {
	switch normalizeFamily(family) {
	case "times":
		switch {
		case bold && italic:
			return "Times-BoldItalic"
		case bold:
			return "Times-Bold"
		case italic:
			return "Times-Italic"
		default:
			return "Times-Roman"
		}
	case "courier":
		switch {
		case bold && italic:
			return "Courier-BoldOblique"
		case bold:
			return "Courier-Bold"
		case italic:
			return "Courier-Oblique"
		default:
			return "Courier"
		}
	default:
		switch {
		case bold && italic:
			return "Helvetica-BoldOblique"
		case bold:
			return "Helvetica-Bold"
		case italic:
			return "Helvetica-Oblique"
		default:
			return "Helvetica"
		}
	}
}

func normalizeFamily(family string) string {
	switch family {
	case "Times", "Times New Roman", "Times-Roman", "serif", "times":
		return "times"
	case "Courier", "Courier New", "monospace", "courier":
		return "courier"
	default:
		return "helvetica"
	}
}

// Metrics holds glyph widths in thousandths of the em for the printable
// ASCII range.
type Metrics struct {
	widths       [95]int16 // runes 0x20..0x7E
	defaultWidth int16
}

// Advance returns the width of r in thousandths of the em.
func (m *Metrics) Advance(r rune) float64 {
	if r >= 0x20 && r <= 0x7E {
		return float64(m.widths[r-0x20])
	}
	return float64(m.defaultWidth)
}

// MetricsFor returns the width table for a standard base font.
// Oblique and italic cuts reuse their upright table; for Helvetica and
// Courier the widths are identical, for Times they are close enough
// for layout estimation.
func MetricsFor(baseFont string) *Metrics {
	switch baseFont {
	case "Helvetica-Bold", "Helvetica-BoldOblique":
		return &helveticaBold
	case "Times-Roman", "Times-Italic":
		return &timesRoman
	case "Times-Bold", "Times-BoldItalic":
		return &timesBold
	case "Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique":
		return &courier
	default:
		return &helvetica
	}
}

// MeasureString returns the rendered width of s at the given size.
func MeasureString(baseFont, s string, size float64) float64 {
	m := MetricsFor(baseFont)
	total := 0.0
	for _, r := range s {
		total += m.Advance(r)
	}
	return total * size / 1000
}

// LineHeight is the default leading for overlay text.
func LineHeight(size float64) float64 { return size * 1.2 }

var helvetica = Metrics{defaultWidth: 556, widths: [95]int16{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}}

var helveticaBold = Metrics{defaultWidth: 611, widths: [95]int16{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
	975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
	333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
}}

var timesRoman = Metrics{defaultWidth: 500, widths: [95]int16{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
}}

var timesBold = Metrics{defaultWidth: 500, widths: [95]int16{
	250, 333, 555, 500, 500, 1000, 833, 278, 333, 333, 500, 570, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570, 570, 570, 500,
	930, 722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944, 722, 778,
	611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667, 333, 278, 333, 581, 500,
	333, 500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833, 556, 500,
	556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444, 394, 220, 394, 520,
}}

var courier = func() Metrics {
	m := Metrics{defaultWidth: 600}
	for i := range m.widths {
		m.widths[i] = 600
	}
	return m
}()
