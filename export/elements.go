package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/fonts"
	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/raw"
)

// pageResources assigns overlay resource names into the page's resource
// dictionary. Names carry an EK prefix so they cannot collide with the
// source document's own entries.
type pageResources struct {
	o     *out
	page  *raw.DictObj
	fonts map[string]string // base font -> resource name
	gs    map[string]string // rounded alpha -> resource name
	nImg  int
}

func newPageResources(o *out, page *raw.DictObj) *pageResources {
	return &pageResources{
		o:     o,
		page:  page,
		fonts: make(map[string]string),
		gs:    make(map[string]string),
	}
}

func (rs *pageResources) dict() *raw.DictObj {
	if v, ok := rs.page.Get("Resources"); ok {
		switch t := v.(type) {
		case *raw.DictObj:
			return t
		case *raw.RefObj:
			if d, ok := rs.o.objects[t.Ref].(*raw.DictObj); ok {
				return d
			}
		}
	}
	d := raw.Dict()
	rs.page.Set("Resources", d)
	return d
}

func (rs *pageResources) subDict(key string) *raw.DictObj {
	res := rs.dict()
	if v, ok := res.Get(key); ok {
		switch t := v.(type) {
		case *raw.DictObj:
			return t
		case *raw.RefObj:
			if d, ok := rs.o.objects[t.Ref].(*raw.DictObj); ok {
				return d
			}
		}
	}
	d := raw.Dict()
	res.Set(key, d)
	return d
}

// font returns the resource name for a standard base font, registering
// it on first use.
func (rs *pageResources) font(baseFont string) string {
	if name, ok := rs.fonts[baseFont]; ok {
		return name
	}
	name := fmt.Sprintf("EKF%d", len(rs.fonts)+1)
	rs.fonts[baseFont] = name
	rs.subDict("Font").Set(name, raw.Ref(rs.o.alloc(standardFont(baseFont))))
	return name
}

// alpha returns an ExtGState resource name carrying the given constant
// fill and stroke alpha.
func (rs *pageResources) alpha(a float64) string {
	key := fmt.Sprintf("%.2f", a)
	if name, ok := rs.gs[key]; ok {
		return name
	}
	name := fmt.Sprintf("EKG%d", len(rs.gs)+1)
	rs.gs[key] = name
	g := raw.Dict()
	g.Set("Type", raw.Name("ExtGState"))
	g.Set("ca", raw.Real(a))
	g.Set("CA", raw.Real(a))
	rs.subDict("ExtGState").Set(name, raw.Ref(rs.o.alloc(g)))
	return name
}

// image registers an image XObject and returns its resource name.
func (rs *pageResources) image(ref raw.ObjectRef) string {
	rs.nImg++
	name := fmt.Sprintf("EKX%d", rs.nImg)
	rs.subDict("XObject").Set(name, raw.Ref(ref))
	return name
}

// overlayMatrix maps element space (top-left origin, y down, intrinsic
// display orientation) into the page's PDF user space.
func overlayMatrix(src document.Page) coords.Matrix {
	x0, y0, x1, y1 := src.MediaBox[0], src.MediaBox[1], src.MediaBox[2], src.MediaBox[3]
	switch src.Rotate {
	case 90:
		return coords.Matrix{0, 1, 1, 0, x0, y0}
	case 180:
		return coords.Matrix{-1, 0, 0, 1, x1, y0}
	case 270:
		return coords.Matrix{0, -1, -1, 0, x1, y1}
	default:
		return coords.Matrix{1, 0, 0, -1, x0, y1}
	}
}

// elementMatrix is overlayMatrix plus the element's own rotation about
// its bounds center.
func elementMatrix(base coords.Matrix, el element.Element) coords.Matrix {
	if el.Rotation == 0 {
		return base
	}
	cx := el.Bounds.X + el.Bounds.Width/2
	cy := el.Bounds.Y + el.Bounds.Height/2
	spin := coords.Mul(coords.Translate(cx, cy),
		coords.Mul(coords.RotateDegrees(el.Rotation), coords.Translate(-cx, -cy)))
	return coords.Mul(base, spin)
}

// flipY undoes the element-space y flip so glyphs draw upright.
var flipY = coords.Matrix{1, 0, 0, -1, 0, 0}

// buildOverlay draws the page's elements in paint order. Interactive
// form fields become widget dictionaries instead of page content unless
// Flatten is set. A single bad element is skipped, not fatal.
func (e *Engine) buildOverlay(rs *pageResources, src document.Page, els []element.Element, opts Options) ([]contentstream.Operation, []*raw.DictObj, error) {
	em := contentstream.NewEmitter()
	base := overlayMatrix(src)
	var widgets []*raw.DictObj
	for _, el := range els {
		if !el.Visible {
			continue
		}
		if el.Kind == element.KindFormField && !opts.Flatten {
			widgets = append(widgets, e.fieldWidget(base, el, opts))
			continue
		}
		if err := e.emitElement(em, rs, base, el, opts); err != nil {
			e.log.Warn("skipping element",
				observability.String("element_id", el.ID),
				observability.String("kind", string(el.Kind)),
				observability.Error("error", err))
		}
	}
	return em.Ops(), widgets, nil
}

func (e *Engine) emitElement(em *contentstream.Emitter, rs *pageResources, base coords.Matrix, el element.Element, opts Options) error {
	m := elementMatrix(base, el)
	em.Save()
	opacity := el.Opacity
	if el.Kind == element.KindHighlight {
		opacity *= 0.35
	}
	if opacity < 1 {
		em.SetExtGState(rs.alpha(opacity))
	}
	em.Concat(m)

	var err error
	switch el.Kind {
	case element.KindText:
		err = emitText(em, rs, el.Bounds, *el.Text)
	case element.KindShape:
		err = emitShape(em, el.Bounds, *el.Shape)
	case element.KindDraw:
		err = emitPolyline(em, el.Bounds, el.Draw.Points, el.Draw.StrokeColor, el.Draw.StrokeWidth)
	case element.KindImage:
		err = e.emitImage(em, rs, el.Bounds, *el.Image)
	case element.KindSignature:
		err = e.emitSignature(em, rs, el.Bounds, *el.Signature)
	case element.KindHighlight:
		c := el.Highlight.Color
		em.SetFillRGB(c.R, c.G, c.B)
		em.Rect(el.Bounds.X, el.Bounds.Y, el.Bounds.Width, el.Bounds.Height)
		em.Fill()
	case element.KindStamp:
		err = emitStamp(em, rs, el.Bounds, *el.Stamp)
	case element.KindFormField:
		err = e.emitFlatField(em, rs, el.Bounds, *el.FormField, opts)
	case element.KindStickyNote:
		err = emitNote(em, rs, el.Bounds, *el.Note)
	default:
		err = fmt.Errorf("unknown element kind %q", el.Kind)
	}
	em.Restore()
	return err
}

// upright positions the text matrix at the baseline anchor with the y
// flip cancelled.
func upright(m *contentstream.Emitter, x, y float64) {
	m.SetTextMatrix(coords.Mul(coords.Translate(x, y), flipY))
}

func emitText(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.TextProps) error {
	if p.Content == "" {
		return nil
	}
	size := p.FontSize
	if size <= 0 {
		size = 16
	}
	base := fonts.ResolveBase(p.FontFamily, p.Bold, p.Italic)
	name := rs.font(base)
	lh := fonts.LineHeight(size)
	ascent := size * 0.8
	em.SetFillRGB(p.Color.R, p.Color.G, p.Color.B)
	for i, line := range strings.Split(p.Content, "\n") {
		x := b.X
		w := fonts.Measure(p.FontFamily, base, line, size)
		switch p.Alignment {
		case element.AlignCenter:
			x = b.X + (b.Width-w)/2
		case element.AlignRight:
			x = b.X + b.Width - w
		}
		y := b.Y + ascent + lh*float64(i)
		em.BeginText()
		em.SetFont(name, size)
		upright(em, x, y)
		em.ShowText([]byte(line))
		em.EndText()
		if p.Underline && line != "" {
			em.SetStrokeRGB(p.Color.R, p.Color.G, p.Color.B)
			em.SetLineWidth(size / 16)
			em.MoveTo(x, y+size*0.12)
			em.LineTo(x+w, y+size*0.12)
			em.Stroke()
		}
	}
	return nil
}

func emitShape(em *contentstream.Emitter, b element.Bounds, p element.ShapeProps) error {
	sw := p.StrokeWidth
	if sw <= 0 {
		sw = 1
	}
	em.SetLineWidth(sw)
	em.SetStrokeRGB(p.StrokeColor.R, p.StrokeColor.G, p.StrokeColor.B)
	filled := p.FillColor != nil
	if filled {
		em.SetFillRGB(p.FillColor.R, p.FillColor.G, p.FillColor.B)
	}
	switch p.Kind {
	case element.ShapeRectangle:
		em.Rect(b.X, b.Y, b.Width, b.Height)
		paintPath(em, filled)
	case element.ShapeCircle:
		em.Ellipse(b.X, b.Y, b.Width, b.Height)
		paintPath(em, filled)
	case element.ShapeLine:
		em.SetLineCap(1)
		em.MoveTo(b.X, b.Y)
		em.LineTo(b.X+b.Width, b.Y+b.Height)
		em.Stroke()
	case element.ShapeArrow:
		em.SetLineCap(1)
		emitArrow(em, b, p.StrokeColor, sw)
	default:
		return fmt.Errorf("unknown shape kind %q", p.Kind)
	}
	return nil
}

func paintPath(em *contentstream.Emitter, filled bool) {
	if filled {
		em.FillStroke()
	} else {
		em.Stroke()
	}
}

// emitArrow draws the shaft plus a filled triangular head at the end
// point, shortening the shaft so the stroke does not poke through the
// tip.
func emitArrow(em *contentstream.Emitter, b element.Bounds, c element.RGB, sw float64) {
	x1, y1 := b.X, b.Y
	x2, y2 := b.X+b.Width, b.Y+b.Height
	angle := math.Atan2(y2-y1, x2-x1)
	head := math.Max(8, sw*4)
	bx := x2 - head*0.8*math.Cos(angle)
	by := y2 - head*0.8*math.Sin(angle)
	em.MoveTo(x1, y1)
	em.LineTo(bx, by)
	em.Stroke()
	spread := math.Pi / 7
	em.SetFillRGB(c.R, c.G, c.B)
	em.MoveTo(x2, y2)
	em.LineTo(x2-head*math.Cos(angle-spread), y2-head*math.Sin(angle-spread))
	em.LineTo(x2-head*math.Cos(angle+spread), y2-head*math.Sin(angle+spread))
	em.ClosePath()
	em.Fill()
}

func emitPolyline(em *contentstream.Emitter, b element.Bounds, pts []coords.Point, c element.RGB, sw float64) error {
	if len(pts) < 2 {
		return fmt.Errorf("stroke has %d points", len(pts))
	}
	if sw <= 0 {
		sw = 1
	}
	em.SetStrokeRGB(c.R, c.G, c.B)
	em.SetLineWidth(sw)
	em.SetLineCap(1)
	em.SetLineJoin(1)
	em.MoveTo(b.X+pts[0].X, b.Y+pts[0].Y)
	for _, p := range pts[1:] {
		em.LineTo(b.X+p.X, b.Y+p.Y)
	}
	em.Stroke()
	return nil
}

// placeImage maps the XObject unit square onto the element bounds,
// flipping y so the image draws upright in element space.
func placeImage(em *contentstream.Emitter, b element.Bounds, name string) {
	em.Concat(coords.Matrix{b.Width, 0, 0, -b.Height, b.X, b.Y + b.Height})
	em.XObject(name)
}

func (e *Engine) emitImage(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.ImageProps) error {
	ref, err := imageXObject(rs.o, p.Data, p.Format)
	if err != nil {
		return err
	}
	placeImage(em, b, rs.image(ref))
	return nil
}

func (e *Engine) emitSignature(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.SignatureProps) error {
	switch p.Mode {
	case element.SignatureDrawn:
		if len(p.Strokes) == 0 {
			return fmt.Errorf("drawn signature has no strokes")
		}
		em.SetStrokeRGB(0, 0, 0.4)
		em.SetLineWidth(1.5)
		em.SetLineCap(1)
		em.SetLineJoin(1)
		for _, stroke := range p.Strokes {
			if len(stroke) < 2 {
				continue
			}
			em.MoveTo(b.X+stroke[0].X, b.Y+stroke[0].Y)
			for _, pt := range stroke[1:] {
				em.LineTo(b.X+pt.X, b.Y+pt.Y)
			}
			em.Stroke()
		}
		return nil
	case element.SignatureTyped:
		size := b.Height * 0.6
		base := fonts.ResolveBase(p.FontFamily, false, true)
		name := rs.font(base)
		em.SetFillRGB(0, 0, 0.4)
		em.BeginText()
		em.SetFont(name, size)
		upright(em, b.X, b.Y+b.Height*0.75)
		em.ShowText([]byte(p.TypedText))
		em.EndText()
		return nil
	case element.SignatureUploaded:
		ref, err := imageXObject(rs.o, p.Image, p.Format)
		if err != nil {
			return err
		}
		placeImage(em, b, rs.image(ref))
		return nil
	default:
		return fmt.Errorf("unknown signature mode %q", p.Mode)
	}
}

func emitStamp(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.StampProps) error {
	c := p.Color
	em.SetStrokeRGB(c.R, c.G, c.B)
	em.SetLineWidth(2)
	em.Rect(b.X+1, b.Y+1, b.Width-2, b.Height-2)
	em.Stroke()
	size := b.Height * 0.5
	base := fonts.ResolveBase("helvetica", true, false)
	w := fonts.MeasureString(base, p.Label, size)
	if w > b.Width-8 && w > 0 {
		size *= (b.Width - 8) / w
		w = fonts.MeasureString(base, p.Label, size)
	}
	em.SetFillRGB(c.R, c.G, c.B)
	em.BeginText()
	em.SetFont(rs.font(base), size)
	upright(em, b.X+(b.Width-w)/2, b.Y+(b.Height+size*0.7)/2)
	em.ShowText([]byte(p.Label))
	em.EndText()
	return nil
}

func emitNote(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.NoteProps) error {
	c := p.Color
	if c == (element.RGB{}) {
		c = element.RGB{R: 1, G: 0.92, B: 0.45}
	}
	em.SetFillRGB(c.R, c.G, c.B)
	em.Rect(b.X, b.Y, b.Width, b.Height)
	em.Fill()
	if p.Content == "" {
		return nil
	}
	const size = 10.0
	lh := fonts.LineHeight(size)
	maxLines := int((b.Height - 8) / lh)
	base := fonts.ResolveBase("helvetica", false, false)
	name := rs.font(base)
	em.SetFillRGB(0.2, 0.2, 0.2)
	for i, line := range strings.Split(p.Content, "\n") {
		if i >= maxLines {
			break
		}
		em.BeginText()
		em.SetFont(name, size)
		upright(em, b.X+4, b.Y+4+size*0.8+lh*float64(i))
		em.ShowText([]byte(line))
		em.EndText()
	}
	return nil
}

// fieldValue applies the field's format script when a formatter is
// configured. A failing script keeps the raw value.
func (e *Engine) fieldValue(f element.FormFieldProps, opts Options) string {
	if f.Script == "" || opts.FieldFormatter == nil {
		return f.Value
	}
	v, err := opts.FieldFormatter(f)
	if err != nil {
		e.log.Warn("field format script failed",
			observability.String("field", f.Name),
			observability.Error("error", err))
		return f.Value
	}
	return v
}

func (e *Engine) emitFlatField(em *contentstream.Emitter, rs *pageResources, b element.Bounds, p element.FormFieldProps, opts Options) error {
	em.SetStrokeRGB(0.29, 0.44, 0.86)
	em.SetLineWidth(1)
	em.Rect(b.X+0.5, b.Y+0.5, b.Width-1, b.Height-1)
	em.Stroke()
	value := e.fieldValue(p, opts)
	if p.FieldType == element.FieldCheckbox {
		if isChecked(value) {
			em.SetStrokeRGB(0.1, 0.1, 0.1)
			em.SetLineWidth(1.5)
			em.MoveTo(b.X+b.Width*0.25, b.Y+b.Height*0.5)
			em.LineTo(b.X+b.Width*0.45, b.Y+b.Height*0.72)
			em.LineTo(b.X+b.Width*0.78, b.Y+b.Height*0.28)
			em.Stroke()
		}
		return nil
	}
	if value == "" {
		return nil
	}
	size := math.Min(12, b.Height*0.6)
	base := fonts.ResolveBase("helvetica", false, false)
	em.SetFillRGB(0.1, 0.1, 0.1)
	em.BeginText()
	em.SetFont(rs.font(base), size)
	upright(em, b.X+3, b.Y+(b.Height+size*0.7)/2)
	em.ShowText([]byte(value))
	em.EndText()
	return nil
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "on", "checked", "1":
		return true
	}
	return false
}

// fieldWidget builds an interactive widget annotation for the field.
// The rectangle is the element's bounds mapped to PDF space, ignoring
// element rotation since widgets are axis aligned.
func (e *Engine) fieldWidget(base coords.Matrix, el element.Element, opts Options) *raw.DictObj {
	b := el.Bounds
	corners := []coords.Point{
		base.Apply(coords.Point{X: b.X, Y: b.Y}),
		base.Apply(coords.Point{X: b.X + b.Width, Y: b.Y}),
		base.Apply(coords.Point{X: b.X + b.Width, Y: b.Y + b.Height}),
		base.Apply(coords.Point{X: b.X, Y: b.Y + b.Height}),
	}
	llx, lly := corners[0].X, corners[0].Y
	urx, ury := corners[0].X, corners[0].Y
	for _, c := range corners[1:] {
		llx = math.Min(llx, c.X)
		lly = math.Min(lly, c.Y)
		urx = math.Max(urx, c.X)
		ury = math.Max(ury, c.Y)
	}

	f := *el.FormField
	w := raw.Dict()
	w.Set("Type", raw.Name("Annot"))
	w.Set("Subtype", raw.Name("Widget"))
	w.Set("Rect", rectArray([4]float64{llx, lly, urx, ury}))
	w.Set("T", &raw.StringObj{Bytes: []byte(f.Name)})
	w.Set("F", raw.Int(4)) // print flag
	value := e.fieldValue(f, opts)
	switch f.FieldType {
	case element.FieldCheckbox:
		w.Set("FT", raw.Name("Btn"))
		state := "Off"
		if isChecked(value) {
			state = "Yes"
		}
		w.Set("V", raw.Name(state))
		w.Set("AS", raw.Name(state))
	case element.FieldSignature:
		w.Set("FT", raw.Name("Sig"))
	default:
		w.Set("FT", raw.Name("Tx"))
		if value != "" {
			w.Set("V", &raw.StringObj{Bytes: []byte(value)})
		}
		w.Set("DA", &raw.StringObj{Bytes: []byte("/Helv 0 Tf 0 g")})
	}
	return w
}
