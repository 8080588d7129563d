package export

import (
	"math"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/fonts"
)

// Watermark is diagonal text stamped across every exported page.
type Watermark struct {
	Text string
	// FontSize of 0 sizes the text to span most of the page diagonal.
	FontSize float64
	Color    element.RGB
	// Opacity of 0 defaults to 0.3.
	Opacity float64
	// AngleDegrees of 0 follows the page diagonal, bottom-left to
	// top-right.
	AngleDegrees float64
}

// watermarkOps emits the watermark for one page, centered and rotated
// in PDF user space.
func (e *Engine) watermarkOps(rs *pageResources, src document.Page, wm Watermark) []contentstream.Operation {
	if wm.Text == "" {
		return nil
	}
	w := src.MediaBox[2] - src.MediaBox[0]
	h := src.MediaBox[3] - src.MediaBox[1]
	cx := src.MediaBox[0] + w/2
	cy := src.MediaBox[1] + h/2

	angle := wm.AngleDegrees * math.Pi / 180
	if wm.AngleDegrees == 0 {
		angle = math.Atan2(h, w)
	}
	base := fonts.ResolveBase("helvetica", true, false)
	size := wm.FontSize
	if size <= 0 {
		diag := math.Hypot(w, h)
		unit := fonts.MeasureString(base, wm.Text, 1)
		if unit <= 0 {
			unit = float64(len(wm.Text)) * 0.5
		}
		size = diag * 0.7 / unit
	}
	tw := fonts.MeasureString(base, wm.Text, size)
	opacity := wm.Opacity
	if opacity <= 0 {
		opacity = 0.3
	}

	tm := coords.Mul(coords.Translate(cx, cy),
		coords.Mul(coords.Rotate(angle), coords.Translate(-tw/2, -size*0.35)))

	em := contentstream.NewEmitter()
	em.Save()
	em.SetExtGState(rs.alpha(opacity))
	em.SetFillRGB(wm.Color.R, wm.Color.G, wm.Color.B)
	em.BeginText()
	em.SetFont(rs.font(base), size)
	em.SetTextMatrix(tm)
	em.ShowText([]byte(wm.Text))
	em.EndText()
	em.Restore()
	return em.Ops()
}
