package surface

import (
	"math"

	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/observability"
)

// handle identifies which resize grip a pointer-down hit.
type handle int

const (
	handleNone handle = iota
	handleNW
	handleNE
	handleSW
	handleSE
)

// handleHitRadius is the grip hit distance in page units.
const handleHitRadius = 6.0

// PointerDown begins a gesture at pt (page-space units, top-left
// origin) on the page with the given source index.
func (c *Controller) PointerDown(pageSourceIndex int, x, y float64) {
	if c.active != nil {
		// a second down before up indicates a lost event; reset
		c.cancelGesture()
	}
	if c.editingID != "" {
		c.CommitTextEdit(c.currentEditContent())
	}
	pt := point{X: x, Y: y}
	switch c.tool {
	case ToolSelect:
		c.selectDown(pageSourceIndex, pt)
	case ToolDraw:
		c.drawDown(pageSourceIndex, pt)
	case ToolRectangle, ToolCircle, ToolLine, ToolArrow:
		c.shapeDown(pageSourceIndex, pt)
	case ToolText:
		c.textDown(pageSourceIndex, pt)
	case ToolSignature, ToolStamp, ToolFormField, ToolStickyNote:
		c.placeDown(pageSourceIndex, pt)
	case ToolImage:
		// image placement waits for file bytes, see PlaceImage
	}
}

// PointerMove advances the active gesture. Moves are visual-only; no
// history entry is written until PointerUp.
func (c *Controller) PointerMove(x, y float64) {
	g := c.active
	if g == nil {
		return
	}
	pt := point{X: x, Y: y}
	switch g.kind {
	case gestureCreateShape:
		c.store.Update(g.elementID, func(e *element.Element) {
			e.Bounds = dragBounds(e.Shape, g.start, pt)
		})
	case gestureDrawPath:
		c.store.Update(g.elementID, func(e *element.Element) {
			e.Draw.Points = append(e.Draw.Points, coords.Point{X: pt.X, Y: pt.Y})
			e.Bounds = pathBounds(e.Draw.Points)
		})
	case gestureMove:
		dx, dy := pt.X-g.start.X, pt.Y-g.start.Y
		for id, orig := range g.origins {
			b := orig
			b.X += dx
			b.Y += dy
			c.store.Update(id, func(e *element.Element) { e.Bounds = b })
		}
	case gestureResize:
		orig := g.origins[g.elementID]
		c.store.Update(g.elementID, func(e *element.Element) {
			e.Bounds = resizeBounds(orig, g.handle, pt)
		})
	case gestureMarquee:
		// selection preview resolves on pointer-up
	}
	g.last = pt
	c.invalidate(g.page)
}

// PointerUp ends the active gesture, committing at most one history
// entry.
func (c *Controller) PointerUp(x, y float64) {
	g := c.active
	if g == nil {
		return
	}
	c.active = nil
	pt := point{X: x, Y: y}
	switch g.kind {
	case gestureCreateShape:
		el, ok := c.store.Get(g.elementID)
		if !ok {
			return
		}
		lineLike := el.Shape != nil && (el.Shape.Kind == element.ShapeLine || el.Shape.Kind == element.ShapeArrow)
		// Box shapes need both dimensions above the minimum; a 3x10
		// sliver is still an accidental drag.
		tooSmall := el.Bounds.Width <= MinShapeSize || el.Bounds.Height <= MinShapeSize
		if lineLike {
			tooSmall = math.Hypot(el.Bounds.Width, el.Bounds.Height) < MinShapeSize
		}
		if tooSmall {
			// an accidental click, not a shape
			c.store.Restore(g.before)
			c.invalidate(g.page)
			c.log.Debug("shape below minimum size discarded",
				observability.String("id", g.elementID))
			return
		}
		c.selectOnly(g.elementID)
		c.commitGesture("add "+string(c.tool), g)
	case gestureDrawPath:
		el, ok := c.store.Get(g.elementID)
		if !ok || len(el.Draw.Points) < 2 {
			c.store.Restore(g.before)
			c.invalidate(g.page)
			return
		}
		c.commitGesture("freehand draw", g)
	case gestureMove:
		if g.start == pt {
			return // click without drag; selection already updated
		}
		c.commitGesture("move", g)
	case gestureResize:
		c.commitGesture("resize", g)
	case gestureMarquee:
		c.clearSelection()
		r := normRect(g.start, pt)
		for _, el := range c.store.ForPage(g.page) {
			if el.Locked || !el.Visible {
				continue
			}
			if rectsIntersect(r, el.Bounds) {
				c.selection[el.ID] = true
			}
		}
	}
}

func (c *Controller) selectDown(page int, pt point) {
	hit, h := c.hitTest(page, pt)
	if hit == "" {
		c.clearSelection()
		c.active = &gesture{kind: gestureMarquee, page: page, start: pt, last: pt}
		return
	}
	if !c.selection[hit] {
		c.selectOnly(hit)
	}
	g := &gesture{
		page:    page,
		start:   pt,
		last:    pt,
		before:  c.store.Snapshot(),
		origins: make(map[string]element.Bounds),
	}
	if h != handleNone {
		g.kind = gestureResize
		g.elementID = hit
		g.handle = h
		if el, ok := c.store.Get(hit); ok {
			g.origins[hit] = el.Bounds
		}
	} else {
		g.kind = gestureMove
		for id := range c.selection {
			if el, ok := c.store.Get(id); ok && !el.Locked {
				g.moveIDs = append(g.moveIDs, id)
				g.origins[id] = el.Bounds
			}
		}
	}
	c.active = g
}

func (c *Controller) shapeDown(page int, pt point) {
	kind := map[Tool]element.ShapeKind{
		ToolRectangle: element.ShapeRectangle,
		ToolCircle:    element.ShapeCircle,
		ToolLine:      element.ShapeLine,
		ToolArrow:     element.ShapeArrow,
	}[c.tool]
	before := c.store.Snapshot()
	id := c.store.Add(element.Element{
		Kind:      element.KindShape,
		PageIndex: page,
		Bounds:    element.Bounds{X: pt.X, Y: pt.Y},
		Shape: &element.ShapeProps{
			Kind:        kind,
			StrokeColor: c.defaults.StrokeColor,
			StrokeWidth: c.defaults.StrokeWidth,
			FillColor:   copyFill(c.defaults.FillColor),
		},
	})
	c.active = &gesture{
		kind:      gestureCreateShape,
		page:      page,
		elementID: id,
		start:     pt,
		last:      pt,
		before:    before,
	}
}

// drawDown creates the path element eagerly so an interrupted stroke
// leaves a harmless element instead of vanishing.
func (c *Controller) drawDown(page int, pt point) {
	before := c.store.Snapshot()
	id := c.store.Add(element.Element{
		Kind:      element.KindDraw,
		PageIndex: page,
		Bounds:    element.Bounds{X: pt.X, Y: pt.Y},
		Draw: &element.DrawProps{
			Points:      []coords.Point{{X: pt.X, Y: pt.Y}},
			StrokeColor: c.defaults.StrokeColor,
			StrokeWidth: c.defaults.StrokeWidth,
		},
	})
	c.active = &gesture{
		kind:      gestureDrawPath,
		page:      page,
		elementID: id,
		start:     pt,
		last:      pt,
		before:    before,
	}
}

// placeDown drops a default-sized element for the stamp-like tools and
// commits immediately; there is no drag phase.
func (c *Controller) placeDown(page int, pt point) {
	before := c.store.Snapshot()
	spec := element.Element{PageIndex: page}
	switch c.tool {
	case ToolSignature:
		spec.Kind = element.KindSignature
		spec.Bounds = element.Bounds{X: pt.X, Y: pt.Y, Width: 160, Height: 48}
		spec.Signature = &element.SignatureProps{Mode: element.SignatureTyped, FontFamily: c.defaults.FontFamily}
	case ToolStamp:
		spec.Kind = element.KindStamp
		spec.Bounds = element.Bounds{X: pt.X, Y: pt.Y, Width: 120, Height: 36}
		spec.Stamp = &element.StampProps{Label: c.defaults.StampLabel, Color: c.defaults.StampColor}
	case ToolFormField:
		spec.Kind = element.KindFormField
		spec.Bounds = element.Bounds{X: pt.X, Y: pt.Y, Width: 140, Height: 28}
		spec.FormField = &element.FormFieldProps{FieldType: element.FieldText, Name: "field"}
	case ToolStickyNote:
		spec.Kind = element.KindStickyNote
		spec.Bounds = element.Bounds{X: pt.X, Y: pt.Y, Width: 120, Height: 90}
		spec.Note = &element.NoteProps{}
	}
	id := c.store.Add(spec)
	c.selectOnly(id)
	g := &gesture{page: page, before: before}
	c.commitGesture("add "+string(c.tool), g)
}

// hitTest returns the topmost unlocked element containing pt, plus the
// resize handle when pt sits on a selected element's grip.
func (c *Controller) hitTest(page int, pt point) (string, handle) {
	els := c.store.ForPage(page)
	for i := len(els) - 1; i >= 0; i-- {
		el := els[i]
		if el.Locked || !el.Visible {
			continue
		}
		if c.selection[el.ID] {
			if h := handleAt(el.Bounds, pt); h != handleNone {
				return el.ID, h
			}
		}
		if containsPoint(el.Bounds, pt) {
			return el.ID, handleNone
		}
	}
	return "", handleNone
}

func handleAt(b element.Bounds, pt point) handle {
	corners := []struct {
		h    handle
		x, y float64
	}{
		{handleNW, b.X, b.Y},
		{handleNE, b.X + b.Width, b.Y},
		{handleSW, b.X, b.Y + b.Height},
		{handleSE, b.X + b.Width, b.Y + b.Height},
	}
	for _, c := range corners {
		if math.Hypot(pt.X-c.x, pt.Y-c.y) <= handleHitRadius {
			return c.h
		}
	}
	return handleNone
}

func containsPoint(b element.Bounds, pt point) bool {
	return pt.X >= b.X && pt.X <= b.X+b.Width && pt.Y >= b.Y && pt.Y <= b.Y+b.Height
}

// dragBounds computes creation bounds; lines keep their direction while
// box shapes normalize to positive extents.
func dragBounds(sp *element.ShapeProps, anchor, pt point) element.Bounds {
	if sp != nil && (sp.Kind == element.ShapeLine || sp.Kind == element.ShapeArrow) {
		return element.Bounds{
			X:      anchor.X,
			Y:      anchor.Y,
			Width:  pt.X - anchor.X,
			Height: pt.Y - anchor.Y,
		}
	}
	return normRect(anchor, pt)
}

func normRect(a, b point) element.Bounds {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return element.Bounds{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func resizeBounds(orig element.Bounds, h handle, pt point) element.Bounds {
	x0, y0 := orig.X, orig.Y
	x1, y1 := orig.X+orig.Width, orig.Y+orig.Height
	switch h {
	case handleNW:
		x0, y0 = pt.X, pt.Y
	case handleNE:
		x1, y0 = pt.X, pt.Y
	case handleSW:
		x0, y1 = pt.X, pt.Y
	case handleSE:
		x1, y1 = pt.X, pt.Y
	}
	return normRect(point{X: x0, Y: y0}, point{X: x1, Y: y1})
}

func pathBounds(pts []coords.Point) element.Bounds {
	if len(pts) == 0 {
		return element.Bounds{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return element.Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func rectsIntersect(a, b element.Bounds) bool {
	return a.X <= b.X+b.Width && b.X <= a.X+a.Width &&
		a.Y <= b.Y+b.Height && b.Y <= a.Y+a.Height
}

func copyFill(c *element.RGB) *element.RGB {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
