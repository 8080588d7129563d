// Package element is the canonical model for annotations placed on
// pages. The store is the single source of truth; rendering and export
// consume read-only copies and never hold authoritative element state.
package element

import (
	"time"

	"github.com/pdfpage/editkit/coords"
)

// Kind discriminates element variants.
type Kind string

const (
	KindText       Kind = "text"
	KindShape      Kind = "shape"
	KindDraw       Kind = "draw"
	KindImage      Kind = "image"
	KindSignature  Kind = "signature"
	KindHighlight  Kind = "highlight"
	KindStamp      Kind = "stamp"
	KindFormField  Kind = "form-field"
	KindStickyNote Kind = "sticky-note"
)

// ShapeKind is the geometry of a shape element.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeLine      ShapeKind = "line"
	ShapeArrow     ShapeKind = "arrow"
)

// RGB is a color with components in [0,1].
type RGB struct {
	R, G, B float64
}

// Bounds is an element's box in unscaled page-space units with the
// origin at the page's top-left corner.
type Bounds struct {
	X, Y, Width, Height float64
}

// Alignment positions text within its bounds.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// TextProps holds text element styling.
type TextProps struct {
	Content    string
	FontFamily string
	FontSize   float64
	Color      RGB
	Alignment  Alignment
	Bold       bool
	Italic     bool
	Underline  bool
}

// ShapeProps holds stroke and fill styling for shape elements.
type ShapeProps struct {
	Kind        ShapeKind
	StrokeColor RGB
	StrokeWidth float64
	FillColor   *RGB // nil leaves the interior unfilled
}

// DrawProps is a freehand stroke.
type DrawProps struct {
	Points      []coords.Point
	StrokeColor RGB
	StrokeWidth float64
}

// ImageProps holds decoded source bytes and intrinsic dimensions.
type ImageProps struct {
	Data           []byte
	Format         string // "png" or "jpeg"
	OriginalWidth  float64
	OriginalHeight float64
	AspectRatio    float64
}

// SignatureMode distinguishes how a signature was captured.
type SignatureMode string

const (
	SignatureDrawn    SignatureMode = "drawn"
	SignatureTyped    SignatureMode = "typed"
	SignatureUploaded SignatureMode = "uploaded"
)

// SignatureProps holds signature content for one of the capture modes.
type SignatureProps struct {
	Mode       SignatureMode
	TypedText  string
	FontFamily string
	Strokes    [][]coords.Point
	Image      []byte
	Format     string
}

// HighlightProps is a translucent fill over page content.
type HighlightProps struct {
	Color RGB
}

// StampProps is a framed label such as APPROVED or DRAFT.
type StampProps struct {
	Label string
	Color RGB
}

// FieldType enumerates placeable form field kinds.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldCheckbox  FieldType = "checkbox"
	FieldDate      FieldType = "date"
	FieldSignature FieldType = "signature"
)

// FormFieldProps describes an interactive field placed on the page.
type FormFieldProps struct {
	FieldType FieldType
	Name      string
	Value     string
	// Script is an optional format action run against the field value
	// before export.
	Script string
}

// NoteProps is a sticky note annotation.
type NoteProps struct {
	Content string
	Color   RGB
}

// Element is one placed annotation. Exactly one variant pointer is
// non-nil, matching Kind.
type Element struct {
	ID        string
	Kind      Kind
	PageIndex int // sourceIndex of the owning page
	Bounds    Bounds
	Rotation  float64
	Opacity   float64
	Visible   bool
	Locked    bool
	CreatedAt time.Time
	UpdatedAt time.Time

	Text      *TextProps
	Shape     *ShapeProps
	Draw      *DrawProps
	Image     *ImageProps
	Signature *SignatureProps
	Highlight *HighlightProps
	Stamp     *StampProps
	FormField *FormFieldProps
	Note      *NoteProps
}

// Clone deep-copies the element.
func (e Element) Clone() Element {
	out := e
	if e.Text != nil {
		cp := *e.Text
		out.Text = &cp
	}
	if e.Shape != nil {
		cp := *e.Shape
		if e.Shape.FillColor != nil {
			fc := *e.Shape.FillColor
			cp.FillColor = &fc
		}
		out.Shape = &cp
	}
	if e.Draw != nil {
		cp := *e.Draw
		cp.Points = append([]coords.Point(nil), e.Draw.Points...)
		out.Draw = &cp
	}
	if e.Image != nil {
		cp := *e.Image
		cp.Data = append([]byte(nil), e.Image.Data...)
		out.Image = &cp
	}
	if e.Signature != nil {
		cp := *e.Signature
		cp.Image = append([]byte(nil), e.Signature.Image...)
		cp.Strokes = make([][]coords.Point, len(e.Signature.Strokes))
		for i, s := range e.Signature.Strokes {
			cp.Strokes[i] = append([]coords.Point(nil), s...)
		}
		out.Signature = &cp
	}
	if e.Highlight != nil {
		cp := *e.Highlight
		out.Highlight = &cp
	}
	if e.Stamp != nil {
		cp := *e.Stamp
		out.Stamp = &cp
	}
	if e.FormField != nil {
		cp := *e.FormField
		out.FormField = &cp
	}
	if e.Note != nil {
		cp := *e.Note
		out.Note = &cp
	}
	return out
}
