package fonts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	gofont "github.com/go-text/typesetting/font"
)

// faces holds embedded fonts registered for the session, keyed by
// lowercased family name.
var faces = struct {
	sync.RWMutex
	m map[string][]byte
}{m: make(map[string][]byte)}

// RegisterFace registers an embedded TrueType or OpenType font under
// family. Text styled with that family is then measured by shaping the
// actual outlines instead of the core-14 metric tables.
func RegisterFace(family string, fontFile []byte) error {
	if family == "" {
		return fmt.Errorf("fonts: empty family name")
	}
	if _, err := gofont.ParseTTF(bytes.NewReader(fontFile)); err != nil {
		return fmt.Errorf("fonts: parse %s: %w", family, err)
	}
	faces.Lock()
	faces.m[strings.ToLower(family)] = fontFile
	faces.Unlock()
	return nil
}

// Face returns the registered font file for family.
func Face(family string) ([]byte, bool) {
	faces.RLock()
	defer faces.RUnlock()
	file, ok := faces.m[strings.ToLower(family)]
	return file, ok
}

// Measure returns the rendered width of text at size. Families with a
// registered face are measured by shaping; everything else uses the
// base font's metric table.
func Measure(family, baseFont, text string, size float64) float64 {
	if file, ok := Face(family); ok {
		if w, err := MeasureShaped(file, text, size); err == nil {
			return w
		}
	}
	return MeasureString(baseFont, text, size)
}
