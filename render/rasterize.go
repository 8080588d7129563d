package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/fonts"
	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/raw"
)

// graphicsState is the subset of the PDF graphics state the rasterizer
// tracks.
type graphicsState struct {
	ctm       coords.Matrix
	fill      color.RGBA
	stroke    color.RGBA
	lineWidth float64
	fontSize  float64
	charSpace float64
	leading   float64
}

// rasterizer interprets content stream operations onto an RGBA buffer.
// Text is greeked: each show operation inks its advance box instead of
// shaping real glyphs, which keeps page geometry faithful at tile
// scale.
type rasterizer struct {
	img   *image.RGBA
	gs    graphicsState
	stack []graphicsState
	log   observability.Logger

	doc       *document.Document
	resources *raw.DictObj

	path    [][]coords.Point // flattened subpaths in device space
	current []coords.Point

	// text object state
	inText bool
	tm     coords.Matrix
	tlm    coords.Matrix

	formDepth int
}

func newRasterizer(img *image.RGBA, base coords.Matrix, log observability.Logger) *rasterizer {
	return &rasterizer{
		img: img,
		gs: graphicsState{
			ctm:       base,
			fill:      color.RGBA{0, 0, 0, 255},
			stroke:    color.RGBA{0, 0, 0, 255},
			lineWidth: 1,
		},
		log: log,
	}
}

func (r *rasterizer) withDocument(doc *document.Document, resources *raw.DictObj) *rasterizer {
	r.doc = doc
	r.resources = resources
	return r
}

const cancelCheckInterval = 256

func (r *rasterizer) run(ctx context.Context, ops []contentstream.Operation) error {
	for i, op := range ops {
		if i%cancelCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		r.apply(op)
	}
	return nil
}

// apply dispatches one operation. Unknown operators are ignored, as the
// imaging model requires.
func (r *rasterizer) apply(op contentstream.Operation) {
	switch op.Operator {
	case "q":
		r.stack = append(r.stack, r.gs)
	case "Q":
		if n := len(r.stack); n > 0 {
			r.gs = r.stack[n-1]
			r.stack = r.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op); ok {
			r.gs.ctm = coords.Mul(r.gs.ctm, m)
		}
	case "w":
		if v, ok := op.Float(0); ok {
			r.gs.lineWidth = v
		}
	case "g":
		if v, ok := op.Float(0); ok {
			r.gs.fill = grayRGBA(v)
		}
	case "G":
		if v, ok := op.Float(0); ok {
			r.gs.stroke = grayRGBA(v)
		}
	case "rg":
		if c, ok := rgbOperands(op); ok {
			r.gs.fill = c
		}
	case "RG":
		if c, ok := rgbOperands(op); ok {
			r.gs.stroke = c
		}
	case "k":
		if c, ok := cmykOperands(op); ok {
			r.gs.fill = c
		}
	case "K":
		if c, ok := cmykOperands(op); ok {
			r.gs.stroke = c
		}
	case "m":
		x, _ := op.Float(0)
		y, _ := op.Float(1)
		r.flushSubpath()
		r.current = append(r.current, r.device(x, y))
	case "l":
		x, _ := op.Float(0)
		y, _ := op.Float(1)
		r.current = append(r.current, r.device(x, y))
	case "c":
		r.curve(op, 0, 2, 4)
	case "v":
		// first control point coincides with the current point
		r.curveV(op)
	case "y":
		r.curve(op, 0, 2, 2)
	case "re":
		x, _ := op.Float(0)
		y, _ := op.Float(1)
		w, _ := op.Float(2)
		h, _ := op.Float(3)
		r.flushSubpath()
		r.path = append(r.path, []coords.Point{
			r.device(x, y), r.device(x+w, y), r.device(x+w, y+h), r.device(x, y+h), r.device(x, y),
		})
	case "h":
		r.closeSubpath()
	case "f", "F", "f*":
		r.flushSubpath()
		r.fillPath(r.gs.fill)
		r.path = nil
	case "B", "B*", "b", "b*":
		if op.Operator[0] == 'b' {
			r.closeSubpath()
		}
		r.flushSubpath()
		r.fillPath(r.gs.fill)
		r.strokePath()
		r.path = nil
	case "S":
		r.flushSubpath()
		r.strokePath()
		r.path = nil
	case "s":
		r.closeSubpath()
		r.flushSubpath()
		r.strokePath()
		r.path = nil
	case "n":
		r.flushSubpath()
		r.path = nil
	case "W", "W*":
		// clipping is not applied at tile scale
	case "BT":
		r.inText = true
		r.tm = coords.Identity()
		r.tlm = r.tm
	case "ET":
		r.inText = false
	case "Tf":
		if v, ok := op.Float(1); ok {
			r.gs.fontSize = v
		}
	case "TL":
		if v, ok := op.Float(0); ok {
			r.gs.leading = v
		}
	case "Tc":
		if v, ok := op.Float(0); ok {
			r.gs.charSpace = v
		}
	case "Td":
		tx, _ := op.Float(0)
		ty, _ := op.Float(1)
		r.tlm = coords.Mul(r.tlm, coords.Translate(tx, ty))
		r.tm = r.tlm
	case "TD":
		tx, _ := op.Float(0)
		ty, _ := op.Float(1)
		r.gs.leading = -ty
		r.tlm = coords.Mul(r.tlm, coords.Translate(tx, ty))
		r.tm = r.tlm
	case "Tm":
		if m, ok := matrixOperands(op); ok {
			r.tlm = m
			r.tm = m
		}
	case "T*":
		r.tlm = coords.Mul(r.tlm, coords.Translate(0, -r.gs.leading))
		r.tm = r.tlm
	case "Tj":
		if s, ok := op.String(0); ok {
			r.showText(s)
		}
	case "'":
		r.tlm = coords.Mul(r.tlm, coords.Translate(0, -r.gs.leading))
		r.tm = r.tlm
		if s, ok := op.String(0); ok {
			r.showText(s)
		}
	case "\"":
		r.tlm = coords.Mul(r.tlm, coords.Translate(0, -r.gs.leading))
		r.tm = r.tlm
		if s, ok := op.String(2); ok {
			r.showText(s)
		}
	case "TJ":
		r.showTextArray(op)
	case "Do":
		if name, ok := op.Name(0); ok {
			r.doXObject(name)
		}
	}
}

func matrixOperands(op contentstream.Operation) (coords.Matrix, bool) {
	var m coords.Matrix
	for i := 0; i < 6; i++ {
		v, ok := op.Float(i)
		if !ok {
			return coords.Matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

func rgbOperands(op contentstream.Operation) (color.RGBA, bool) {
	rr, ok1 := op.Float(0)
	g, ok2 := op.Float(1)
	b, ok3 := op.Float(2)
	if !ok1 || !ok2 || !ok3 {
		return color.RGBA{}, false
	}
	return color.RGBA{clamp8(rr), clamp8(g), clamp8(b), 255}, true
}

func cmykOperands(op contentstream.Operation) (color.RGBA, bool) {
	c, ok1 := op.Float(0)
	m, ok2 := op.Float(1)
	y, ok3 := op.Float(2)
	k, ok4 := op.Float(3)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return color.RGBA{}, false
	}
	return color.RGBA{
		clamp8((1 - c) * (1 - k)),
		clamp8((1 - m) * (1 - k)),
		clamp8((1 - y) * (1 - k)),
		255,
	}, true
}

func grayRGBA(v float64) color.RGBA {
	g := clamp8(v)
	return color.RGBA{g, g, g, 255}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

func (r *rasterizer) device(x, y float64) coords.Point {
	return r.gs.ctm.Apply(coords.Point{X: x, Y: y})
}

const bezierSteps = 12

func (r *rasterizer) curve(op contentstream.Operation, c1, c2, end int) {
	if len(r.current) == 0 {
		return
	}
	p0 := r.current[len(r.current)-1]
	x1, _ := op.Float(c1)
	y1, _ := op.Float(c1 + 1)
	x2, _ := op.Float(c2)
	y2, _ := op.Float(c2 + 1)
	x3, _ := op.Float(end)
	y3, _ := op.Float(end + 1)
	p1 := r.device(x1, y1)
	p2 := r.device(x2, y2)
	p3 := r.device(x3, y3)
	if op.Operator == "y" {
		p2 = p3
	}
	r.appendBezier(p0, p1, p2, p3)
}

func (r *rasterizer) curveV(op contentstream.Operation) {
	if len(r.current) == 0 {
		return
	}
	p0 := r.current[len(r.current)-1]
	x2, _ := op.Float(0)
	y2, _ := op.Float(1)
	x3, _ := op.Float(2)
	y3, _ := op.Float(3)
	p2 := r.device(x2, y2)
	p3 := r.device(x3, y3)
	r.appendBezier(p0, p0, p2, p3)
}

func (r *rasterizer) appendBezier(p0, p1, p2, p3 coords.Point) {
	for i := 1; i <= bezierSteps; i++ {
		t := float64(i) / bezierSteps
		u := 1 - t
		x := u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X
		y := u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y
		r.current = append(r.current, coords.Point{X: x, Y: y})
	}
}

func (r *rasterizer) closeSubpath() {
	if len(r.current) > 1 {
		r.current = append(r.current, r.current[0])
	}
}

func (r *rasterizer) flushSubpath() {
	if len(r.current) > 0 {
		r.path = append(r.path, r.current)
		r.current = nil
	}
}

func (r *rasterizer) fillPath(col color.RGBA) {
	fillPolygons(r.img, r.path, col)
}

func (r *rasterizer) strokePath() {
	w := r.gs.lineWidth * matrixScale(r.gs.ctm)
	if w < 1 {
		w = 1
	}
	for _, sub := range r.path {
		strokePolyline(r.img, sub, w, r.gs.stroke)
	}
}

// matrixScale approximates the uniform scale factor of m.
func matrixScale(m coords.Matrix) float64 {
	sx := math.Hypot(m[0], m[1])
	sy := math.Hypot(m[2], m[3])
	return (sx + sy) / 2
}

// showText greeks one string: the advance box is filled with a faded
// fill color so the page reads as text without glyph shaping.
func (r *rasterizer) showText(s []byte) {
	if !r.inText || r.gs.fontSize <= 0 || len(s) == 0 {
		return
	}
	width := fonts.MeasureString("Helvetica", string(s), r.gs.fontSize)
	width += r.gs.charSpace * float64(len(s))
	trm := coords.Mul(r.gs.ctm, r.tm)
	// ink between the baseline and a nominal x-height
	quad := [][]coords.Point{{
		trm.Apply(coords.Point{X: 0, Y: 0}),
		trm.Apply(coords.Point{X: width, Y: 0}),
		trm.Apply(coords.Point{X: width, Y: r.gs.fontSize * 0.62}),
		trm.Apply(coords.Point{X: 0, Y: r.gs.fontSize * 0.62}),
	}}
	c := r.gs.fill
	c.A = 160
	fillPolygons(r.img, quad, c)
	r.tm = coords.Mul(r.tm, coords.Translate(width, 0))
}

func (r *rasterizer) showTextArray(op contentstream.Operation) {
	if len(op.Operands) != 1 {
		return
	}
	arr, ok := op.Operands[0].(*raw.ArrayObj)
	if !ok {
		return
	}
	for _, el := range arr.Items {
		switch v := el.(type) {
		case *raw.StringObj:
			r.showText(v.Bytes)
		case *raw.NumberObj:
			adj := v.F
			if v.IsInt {
				adj = float64(v.I)
			}
			r.tm = coords.Mul(r.tm, coords.Translate(-adj/1000*r.gs.fontSize, 0))
		}
	}
}

const maxFormDepth = 8

// doXObject paints an image XObject, or recurses into a form XObject.
func (r *rasterizer) doXObject(name string) {
	if r.doc == nil || r.resources == nil {
		return
	}
	xobjs, ok := raw.DictValue[*raw.DictObj](r.resources, "XObject")
	if !ok {
		if resolved, found := r.resources.Get("XObject"); found {
			xobjs, ok = r.doc.Raw().Resolve(resolved).(*raw.DictObj)
		}
		if !ok {
			return
		}
	}
	entry, ok := xobjs.Get(name)
	if !ok {
		return
	}
	stream, ok := r.doc.Raw().Resolve(entry).(*raw.StreamObj)
	if !ok {
		return
	}
	subtype, _ := raw.NameValue(stream.Dict, "Subtype")
	switch subtype {
	case "Image":
		r.drawImageXObject(stream)
	case "Form":
		r.drawFormXObject(stream)
	}
}

func (r *rasterizer) drawFormXObject(stream *raw.StreamObj) {
	if r.formDepth >= maxFormDepth {
		return
	}
	data, err := r.doc.DecodeStream(stream)
	if err != nil {
		r.log.Warn("form xobject decode failed", observability.Error("err", err))
		return
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		r.log.Warn("form xobject parse failed", observability.Error("err", err))
		return
	}
	saved := r.gs
	savedRes := r.resources
	if m, ok := rectMatrix(stream.Dict); ok {
		r.gs.ctm = coords.Mul(r.gs.ctm, m)
	}
	if res, ok := stream.Dict.Get("Resources"); ok {
		if rd, ok := r.doc.Raw().Resolve(res).(*raw.DictObj); ok {
			r.resources = rd
		}
	}
	r.formDepth++
	for _, op := range ops {
		r.apply(op)
	}
	r.formDepth--
	r.gs = saved
	r.resources = savedRes
}

func rectMatrix(dict *raw.DictObj) (coords.Matrix, bool) {
	arr, ok := raw.DictValue[*raw.ArrayObj](dict, "Matrix")
	if !ok || len(arr.Items) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i, el := range arr.Items {
		n, ok := el.(*raw.NumberObj)
		if !ok {
			return coords.Matrix{}, false
		}
		if n.IsInt {
			m[i] = float64(n.I)
		} else {
			m[i] = n.F
		}
	}
	return m, true
}

// drawImageXObject decodes the sample data and maps the image's unit
// square through the CTM.
func (r *rasterizer) drawImageXObject(stream *raw.StreamObj) {
	src, err := r.decodeImage(stream)
	if err != nil {
		r.log.Warn("image xobject skipped", observability.Error("err", err))
		return
	}
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w == 0 || h == 0 {
		return
	}
	// image space: (0,0) is the top-left sample, unit square maps
	// through the CTM
	m := coords.Mul(r.gs.ctm, coords.Matrix{1 / w, 0, 0, -1 / h, 0, 1})
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.ApproxBiLinear.Transform(r.img, aff, src, b, xdraw.Over, nil)
}

func (r *rasterizer) decodeImage(stream *raw.StreamObj) (image.Image, error) {
	filter, _ := raw.NameValue(stream.Dict, "Filter")
	if filter == "DCTDecode" {
		return jpeg.Decode(bytes.NewReader(stream.Data))
	}
	data, err := r.doc.DecodeStream(stream)
	if err != nil {
		return nil, err
	}
	w := raw.IntValue(stream.Dict, "Width", 0)
	h := raw.IntValue(stream.Dict, "Height", 0)
	bpc := raw.IntValue(stream.Dict, "BitsPerComponent", 8)
	cs, _ := raw.NameValue(stream.Dict, "ColorSpace")
	if w <= 0 || h <= 0 || bpc != 8 {
		return nil, errors.New("render: unsupported image geometry")
	}
	switch cs {
	case "DeviceRGB":
		if int64(len(data)) < int64(w*h*3) {
			return nil, errors.New("render: short RGB sample data")
		}
		img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		for i := int64(0); i < int64(w*h); i++ {
			img.Pix[i*4] = data[i*3]
			img.Pix[i*4+1] = data[i*3+1]
			img.Pix[i*4+2] = data[i*3+2]
			img.Pix[i*4+3] = 255
		}
		return img, nil
	case "DeviceGray":
		if int64(len(data)) < int64(w*h) {
			return nil, errors.New("render: short gray sample data")
		}
		img := image.NewGray(image.Rect(0, 0, int(w), int(h)))
		copy(img.Pix, data[:w*h])
		return img, nil
	default:
		return nil, errors.New("render: unsupported color space " + cs)
	}
}

// fillPolygons scan-fills subpaths with the even-odd-free nonzero rule
// provided by the vector rasterizer.
func fillPolygons(img *image.RGBA, subpaths [][]coords.Point, col color.RGBA) {
	if len(subpaths) == 0 {
		return
	}
	b := img.Bounds()
	ras := vector.NewRasterizer(b.Dx(), b.Dy())
	any := false
	for _, sub := range subpaths {
		if len(sub) < 2 {
			continue
		}
		ras.MoveTo(float32(sub[0].X), float32(sub[0].Y))
		for _, p := range sub[1:] {
			ras.LineTo(float32(p.X), float32(p.Y))
		}
		ras.ClosePath()
		any = true
	}
	if !any {
		return
	}
	ras.Draw(img, b, image.NewUniform(col), image.Point{})
}

// strokePolyline draws each segment as a filled quad of the given
// width plus square joints, an adequate stroker for screen tiles.
func strokePolyline(img *image.RGBA, pts []coords.Point, width float64, col color.RGBA) {
	if len(pts) < 2 {
		return
	}
	half := width / 2
	var quads [][]coords.Point
	for i := 0; i < len(pts)-1; i++ {
		p, q := pts[i], pts[i+1]
		dx, dy := q.X-p.X, q.Y-p.Y
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			continue
		}
		nx, ny := -dy/dist*half, dx/dist*half
		quads = append(quads, []coords.Point{
			{X: p.X + nx, Y: p.Y + ny},
			{X: q.X + nx, Y: q.Y + ny},
			{X: q.X - nx, Y: q.Y - ny},
			{X: p.X - nx, Y: p.Y - ny},
		})
	}
	// square the interior joints so adjacent quads do not leave gaps
	for i := 1; i < len(pts)-1; i++ {
		p := pts[i]
		quads = append(quads, []coords.Point{
			{X: p.X - half, Y: p.Y - half},
			{X: p.X + half, Y: p.Y - half},
			{X: p.X + half, Y: p.Y + half},
			{X: p.X - half, Y: p.Y + half},
		})
	}
	fillPolygons(img, quads, col)
}
