package fonts

import (
	"bytes"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph is one positioned glyph produced by shaping.
type ShapedGlyph struct {
	ID       int
	Cluster  int
	XAdvance float64 // thousandths of the em
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// ShapeText shapes text against an embedded TrueType or OpenType font
// and returns positioned glyphs with advances in thousandths of the em.
func ShapeText(fontFile []byte, text string) ([]ShapedGlyph, error) {
	if len(fontFile) == 0 || text == "" {
		return nil, nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(fontFile))
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	script := detectScript(runes)

	// Shape at em = 1000 so advances come out in text-space units.
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      face,
		Size:      fixed.Int26_6(1000 * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	}
	output := (&shaping.HarfbuzzShaper{}).Shape(input)

	glyphs := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		glyphs = append(glyphs, ShapedGlyph{
			ID:       int(g.GlyphID),
			Cluster:  int(g.ClusterIndex),
			XAdvance: float64(g.XAdvance) / 64.0,
			YAdvance: float64(g.YAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		})
	}
	return glyphs, nil
}

// MeasureShaped returns the advance width of text in an embedded font
// at the given size.
func MeasureShaped(fontFile []byte, text string, size float64) (float64, error) {
	glyphs, err := ShapeText(fontFile, text)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, g := range glyphs {
		total += g.XAdvance
	}
	return total * size / 1000, nil
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best := language.Latin
	max := 0
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown {
			continue
		}
		counts[s]++
		if counts[s] > max {
			max = counts[s]
			best = s
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
