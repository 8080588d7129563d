package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/observability"
)

// drawOverlay paints the page's elements in paint order. A failure in
// one element is logged and the rest keep drawing.
func drawOverlay(img *image.RGBA, ov coords.Matrix, scale float64, els []element.Element, log observability.Logger) {
	for _, el := range els {
		if !el.Visible {
			continue
		}
		if err := drawElement(img, ov, scale, el); err != nil {
			log.Warn("overlay element skipped",
				observability.String("id", el.ID),
				observability.String("kind", string(el.Kind)),
				observability.Error("err", err))
		}
	}
}

func drawElement(img *image.RGBA, ov coords.Matrix, scale float64, el element.Element) error {
	m := ov
	if el.Rotation != 0 {
		cx := el.Bounds.X + el.Bounds.Width/2
		cy := el.Bounds.Y + el.Bounds.Height/2
		spin := coords.Mul(coords.Translate(cx, cy),
			coords.Mul(coords.RotateDegrees(el.Rotation), coords.Translate(-cx, -cy)))
		m = coords.Mul(ov, spin)
	}
	switch el.Kind {
	case element.KindText:
		drawTextElement(img, m, el)
	case element.KindShape:
		drawShapeElement(img, m, scale, el)
	case element.KindDraw:
		drawFreehand(img, m, scale, el)
	case element.KindImage:
		return drawImageElement(img, m, el)
	case element.KindSignature:
		return drawSignatureElement(img, m, scale, el)
	case element.KindHighlight:
		drawHighlightElement(img, m, el)
	case element.KindStamp:
		drawStampElement(img, m, scale, el)
	case element.KindFormField:
		drawFormFieldElement(img, m, scale, el)
	case element.KindStickyNote:
		drawNoteElement(img, m, el)
	}
	return nil
}

func alpha(el element.Element, base float64) uint8 {
	a := el.Opacity * base
	if a > 1 {
		a = 1
	}
	if a < 0 {
		a = 0
	}
	return uint8(a*255 + 0.5)
}

func rgba(c element.RGB, a uint8) color.RGBA {
	// premultiplied alpha, as image.RGBA expects
	f := float64(a) / 255
	return color.RGBA{
		R: uint8(clamp01(c.R)*f*255 + 0.5),
		G: uint8(clamp01(c.G)*f*255 + 0.5),
		B: uint8(clamp01(c.B)*f*255 + 0.5),
		A: a,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func boundsQuad(m coords.Matrix, b element.Bounds) []coords.Point {
	return []coords.Point{
		m.Apply(coords.Point{X: b.X, Y: b.Y}),
		m.Apply(coords.Point{X: b.X + b.Width, Y: b.Y}),
		m.Apply(coords.Point{X: b.X + b.Width, Y: b.Y + b.Height}),
		m.Apply(coords.Point{X: b.X, Y: b.Y + b.Height}),
	}
}

// drawTextElement draws content with the built-in bitmap face. Glyphs
// are axis-aligned; only their anchor follows the element transform.
func drawTextElement(img *image.RGBA, m coords.Matrix, el element.Element) {
	if el.Text == nil || el.Text.Content == "" {
		return
	}
	col := rgba(el.Text.Color, alpha(el, 1))
	origin := m.Apply(coords.Point{X: el.Bounds.X, Y: el.Bounds.Y})
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	lineH := face.Metrics().Height.Ceil()
	for i, line := range strings.Split(el.Text.Content, "\n") {
		d.Dot = fixed.P(int(origin.X+0.5), int(origin.Y+0.5)+face.Ascent+i*lineH)
		d.DrawString(line)
	}
}

func drawShapeElement(img *image.RGBA, m coords.Matrix, scale float64, el element.Element) {
	if el.Shape == nil {
		return
	}
	sp := el.Shape
	strokeCol := rgba(sp.StrokeColor, alpha(el, 1))
	width := sp.StrokeWidth * scale
	if width < 1 {
		width = 1
	}
	b := el.Bounds
	switch sp.Kind {
	case element.ShapeRectangle:
		quad := boundsQuad(m, b)
		if sp.FillColor != nil {
			fillPolygons(img, [][]coords.Point{quad}, rgba(*sp.FillColor, alpha(el, 1)))
		}
		strokePolyline(img, append(quad, quad[0]), width, strokeCol)
	case element.ShapeCircle:
		pts := ellipsePoints(m, b)
		if sp.FillColor != nil {
			fillPolygons(img, [][]coords.Point{pts}, rgba(*sp.FillColor, alpha(el, 1)))
		}
		strokePolyline(img, append(pts, pts[0]), width, strokeCol)
	case element.ShapeLine:
		p := m.Apply(coords.Point{X: b.X, Y: b.Y})
		q := m.Apply(coords.Point{X: b.X + b.Width, Y: b.Y + b.Height})
		strokePolyline(img, []coords.Point{p, q}, width, strokeCol)
	case element.ShapeArrow:
		p := m.Apply(coords.Point{X: b.X, Y: b.Y})
		q := m.Apply(coords.Point{X: b.X + b.Width, Y: b.Y + b.Height})
		strokePolyline(img, []coords.Point{p, q}, width, strokeCol)
		drawArrowHead(img, p, q, width, strokeCol)
	}
}

func ellipsePoints(m coords.Matrix, b element.Bounds) []coords.Point {
	const segments = 48
	cx, cy := b.X+b.Width/2, b.Y+b.Height/2
	rx, ry := b.Width/2, b.Height/2
	pts := make([]coords.Point, 0, segments)
	for i := 0; i < segments; i++ {
		t := 2 * math.Pi * float64(i) / segments
		pts = append(pts, m.Apply(coords.Point{X: cx + rx*math.Cos(t), Y: cy + ry*math.Sin(t)}))
	}
	return pts
}

func drawArrowHead(img *image.RGBA, p, q coords.Point, width float64, col color.RGBA) {
	dx, dy := q.X-p.X, q.Y-p.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	ux, uy := dx/dist, dy/dist
	size := 6 * width
	if size > dist/2 {
		size = dist / 2
	}
	base := coords.Point{X: q.X - ux*size, Y: q.Y - uy*size}
	nx, ny := -uy*size/2, ux*size/2
	head := []coords.Point{
		q,
		{X: base.X + nx, Y: base.Y + ny},
		{X: base.X - nx, Y: base.Y - ny},
	}
	fillPolygons(img, [][]coords.Point{head}, col)
}

func drawFreehand(img *image.RGBA, m coords.Matrix, scale float64, el element.Element) {
	if el.Draw == nil || len(el.Draw.Points) < 2 {
		return
	}
	width := el.Draw.StrokeWidth * scale
	if width < 1 {
		width = 1
	}
	pts := make([]coords.Point, len(el.Draw.Points))
	for i, p := range el.Draw.Points {
		pts[i] = m.Apply(p)
	}
	strokePolyline(img, pts, width, rgba(el.Draw.StrokeColor, alpha(el, 1)))
}

func drawImageElement(img *image.RGBA, m coords.Matrix, el element.Element) error {
	if el.Image == nil || len(el.Image.Data) == 0 {
		return nil
	}
	src, err := decodeOverlayImage(el.Image.Data, el.Image.Format)
	if err != nil {
		return err
	}
	return blitInto(img, m, el.Bounds, src)
}

func decodeOverlayImage(data []byte, format string) (image.Image, error) {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Decode(bytes.NewReader(data))
	default:
		return png.Decode(bytes.NewReader(data))
	}
}

// blitInto maps src onto the element bounds through the overlay
// transform.
func blitInto(img *image.RGBA, m coords.Matrix, b element.Bounds, src image.Image) error {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 {
		return nil
	}
	// source pixel -> element box -> device
	local := coords.Mul(coords.Translate(b.X, b.Y), coords.Matrix{b.Width / sw, 0, 0, b.Height / sh, 0, 0})
	full := coords.Mul(m, local)
	aff := f64.Aff3{full[0], full[2], full[4], full[1], full[3], full[5]}
	xdraw.ApproxBiLinear.Transform(img, aff, src, sb, xdraw.Over, nil)
	return nil
}

func drawSignatureElement(img *image.RGBA, m coords.Matrix, scale float64, el element.Element) error {
	if el.Signature == nil {
		return nil
	}
	sig := el.Signature
	switch sig.Mode {
	case element.SignatureDrawn:
		col := rgba(element.RGB{}, alpha(el, 1))
		width := 2 * scale
		for _, stroke := range sig.Strokes {
			if len(stroke) < 2 {
				continue
			}
			pts := make([]coords.Point, len(stroke))
			for i, p := range stroke {
				pts[i] = m.Apply(coords.Point{X: el.Bounds.X + p.X, Y: el.Bounds.Y + p.Y})
			}
			strokePolyline(img, pts, width, col)
		}
		return nil
	case element.SignatureUploaded:
		src, err := decodeOverlayImage(sig.Image, sig.Format)
		if err != nil {
			return err
		}
		return blitInto(img, m, el.Bounds, src)
	default: // typed
		text := el
		text.Text = &element.TextProps{Content: sig.TypedText, FontFamily: sig.FontFamily}
		drawTextElement(img, m, text)
		return nil
	}
}

func drawHighlightElement(img *image.RGBA, m coords.Matrix, el element.Element) {
	if el.Highlight == nil {
		return
	}
	quad := boundsQuad(m, el.Bounds)
	fillPolygons(img, [][]coords.Point{quad}, rgba(el.Highlight.Color, alpha(el, 0.35)))
}

func drawStampElement(img *image.RGBA, m coords.Matrix, scale float64, el element.Element) {
	if el.Stamp == nil {
		return
	}
	col := rgba(el.Stamp.Color, alpha(el, 1))
	quad := boundsQuad(m, el.Bounds)
	strokePolyline(img, append(quad, quad[0]), 2*scale, col)
	label := el
	label.Text = &element.TextProps{Content: el.Stamp.Label, Color: el.Stamp.Color}
	inset := label
	inset.Bounds.X += 4
	inset.Bounds.Y += 4
	drawTextElement(img, m, inset)
}

func drawFormFieldElement(img *image.RGBA, m coords.Matrix, scale float64, el element.Element) {
	if el.FormField == nil {
		return
	}
	border := rgba(element.RGB{R: 0.29, G: 0.43, B: 0.71}, alpha(el, 1))
	quad := boundsQuad(m, el.Bounds)
	strokePolyline(img, append(quad, quad[0]), scale, border)
	if el.FormField.Value != "" {
		val := el
		val.Text = &element.TextProps{Content: el.FormField.Value, Color: element.RGB{R: 0.1, G: 0.1, B: 0.1}}
		val.Bounds.X += 3
		val.Bounds.Y += 3
		drawTextElement(img, m, val)
	}
}

func drawNoteElement(img *image.RGBA, m coords.Matrix, el element.Element) {
	if el.Note == nil {
		return
	}
	fill := el.Note.Color
	if fill == (element.RGB{}) {
		fill = element.RGB{R: 1, G: 0.92, B: 0.45}
	}
	quad := boundsQuad(m, el.Bounds)
	fillPolygons(img, [][]coords.Point{quad}, rgba(fill, alpha(el, 1)))
	body := el
	body.Text = &element.TextProps{Content: el.Note.Content, Color: element.RGB{R: 0.2, G: 0.2, B: 0.1}}
	body.Bounds.X += 3
	body.Bounds.Y += 3
	drawTextElement(img, m, body)
}
