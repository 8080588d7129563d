package contentstream

import (
	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/raw"
)

// Emitter accumulates operations for a content stream being built.
// Methods mirror the PDF operators they emit.
type Emitter struct {
	ops []Operation
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter { return &Emitter{} }

func (e *Emitter) emit(op string, operands ...raw.Object) *Emitter {
	e.ops = append(e.ops, Operation{Operator: op, Operands: operands})
	return e
}

func num(f float64) raw.Object {
	if f == float64(int64(f)) {
		return raw.Int(int64(f))
	}
	return raw.Real(f)
}

func (e *Emitter) Save() *Emitter    { return e.emit("q") }
func (e *Emitter) Restore() *Emitter { return e.emit("Q") }

func (e *Emitter) Concat(m coords.Matrix) *Emitter {
	return e.emit("cm", num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]))
}

func (e *Emitter) SetLineWidth(w float64) *Emitter { return e.emit("w", num(w)) }

func (e *Emitter) SetLineCap(style int) *Emitter  { return e.emit("J", raw.Int(int64(style))) }
func (e *Emitter) SetLineJoin(style int) *Emitter { return e.emit("j", raw.Int(int64(style))) }

func (e *Emitter) SetStrokeRGB(r, g, b float64) *Emitter {
	return e.emit("RG", num(r), num(g), num(b))
}

func (e *Emitter) SetFillRGB(r, g, b float64) *Emitter {
	return e.emit("rg", num(r), num(g), num(b))
}

// SetExtGState selects a named graphics state from the page resources.
func (e *Emitter) SetExtGState(name string) *Emitter {
	return e.emit("gs", raw.Name(name))
}

func (e *Emitter) Rect(x, y, w, h float64) *Emitter {
	return e.emit("re", num(x), num(y), num(w), num(h))
}

func (e *Emitter) MoveTo(x, y float64) *Emitter { return e.emit("m", num(x), num(y)) }
func (e *Emitter) LineTo(x, y float64) *Emitter { return e.emit("l", num(x), num(y)) }

func (e *Emitter) CurveTo(x1, y1, x2, y2, x3, y3 float64) *Emitter {
	return e.emit("c", num(x1), num(y1), num(x2), num(y2), num(x3), num(y3))
}

func (e *Emitter) ClosePath() *Emitter  { return e.emit("h") }
func (e *Emitter) Stroke() *Emitter     { return e.emit("S") }
func (e *Emitter) Fill() *Emitter       { return e.emit("f") }
func (e *Emitter) FillStroke() *Emitter { return e.emit("B") }

func (e *Emitter) BeginText() *Emitter { return e.emit("BT") }
func (e *Emitter) EndText() *Emitter   { return e.emit("ET") }

func (e *Emitter) SetFont(name string, size float64) *Emitter {
	return e.emit("Tf", raw.Name(name), num(size))
}

func (e *Emitter) SetTextMatrix(m coords.Matrix) *Emitter {
	return e.emit("Tm", num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]))
}

func (e *Emitter) SetLeading(l float64) *Emitter { return e.emit("TL", num(l)) }
func (e *Emitter) NextLine() *Emitter            { return e.emit("T*") }

func (e *Emitter) ShowText(s []byte) *Emitter {
	return e.emit("Tj", &raw.StringObj{Bytes: s})
}

// XObject places a named form or image XObject.
func (e *Emitter) XObject(name string) *Emitter {
	return e.emit("Do", raw.Name(name))
}

// Ellipse approximates an ellipse inscribed in the given box with four
// Bezier segments.
func (e *Emitter) Ellipse(x, y, w, h float64) *Emitter {
	const k = 0.5523 // 4*(sqrt(2)-1)/3
	cx, cy := x+w/2, y+h/2
	rx, ry := w/2, h/2
	e.MoveTo(cx+rx, cy)
	e.CurveTo(cx+rx, cy+ry*k, cx+rx*k, cy+ry, cx, cy+ry)
	e.CurveTo(cx-rx*k, cy+ry, cx-rx, cy+ry*k, cx-rx, cy)
	e.CurveTo(cx-rx, cy-ry*k, cx-rx*k, cy-ry, cx, cy-ry)
	e.CurveTo(cx+rx*k, cy-ry, cx+rx, cy-ry*k, cx+rx, cy)
	return e.ClosePath()
}

// Ops returns the accumulated operations.
func (e *Emitter) Ops() []Operation { return e.ops }

// Bytes serializes the accumulated operations.
func (e *Emitter) Bytes() []byte { return Serialize(e.ops) }
