// Package render rasterizes document pages at a requested scale and
// rotation and overlays the page's elements. Results are cached per
// (sourceIndex, scale, rotation) key and invalidated per key, so a zoom
// change on one page never discards renders of other pages.
package render

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/observability"
)

// Surface is one rendered page tile. When Failed is set the image is
// nil and Reason carries a human-readable cause; callers draw a
// placeholder instead of propagating an error.
type Surface struct {
	Image       *image.RGBA
	SourceIndex int
	Scale       float64
	Rotation    int
	Failed      bool
	Reason      string
}

type cacheKey struct {
	sourceIndex int
	scale       float64
	rotation    int
}

// Elements is the read side of the element model the overlay consumes.
type Elements interface {
	ForPage(pageSourceIndex int) []element.Element
}

// Pipeline renders pages of one document.
type Pipeline struct {
	doc *document.Document
	els Elements
	log observability.Logger
	dpr float64 // device pixel ratio multiplier applied on top of scale

	mu       sync.Mutex
	cache    map[cacheKey]*Surface
	inflight map[int]*renderToken // keyed by sourceIndex
}

// renderToken identifies one in-flight render so a finished render only
// deregisters itself, never a successor that replaced it.
type renderToken struct {
	cancel context.CancelFunc
}

// New creates a pipeline over doc. els may be nil when no overlay is
// wanted, devicePixelRatio <= 0 means 1.
func New(doc *document.Document, els Elements, devicePixelRatio float64, log observability.Logger) *Pipeline {
	if log == nil {
		log = observability.NopLogger{}
	}
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	return &Pipeline{
		doc:      doc,
		els:      els,
		log:      log,
		dpr:      devicePixelRatio,
		cache:    make(map[cacheKey]*Surface),
		inflight: make(map[int]*renderToken),
	}
}

// RenderPage renders the page at sourceIndex. A nil return means the
// request was superseded by a newer render of the same page or the
// context was cancelled; that is expected, not an error. Decode
// failures come back as a Failed surface.
func (p *Pipeline) RenderPage(ctx context.Context, sourceIndex int, scale float64, rotation int) *Surface {
	key := cacheKey{sourceIndex: sourceIndex, scale: scale, rotation: normRotation(rotation)}

	p.mu.Lock()
	if s, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return s
	}
	// a newer request for the same page abandons the older one
	if prev, ok := p.inflight[sourceIndex]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	token := &renderToken{cancel: cancel}
	p.inflight[sourceIndex] = token
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.inflight[sourceIndex] == token {
			delete(p.inflight, sourceIndex)
		}
		p.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	surface := p.renderLocked(ctx, key)
	if surface == nil {
		p.log.Debug("render abandoned", observability.Int("page", sourceIndex))
		return nil
	}
	if ctx.Err() != nil {
		// no partial result is committed to the cache
		return nil
	}

	if !surface.Failed {
		// failed tiles are not cached so a retry can succeed
		p.mu.Lock()
		p.cache[key] = surface
		p.mu.Unlock()
	}
	p.log.Debug("page rendered",
		observability.Int("page", sourceIndex),
		observability.Bool("failed", surface.Failed),
		observability.Int64(observability.MetricRenderTime, time.Since(start).Milliseconds()))
	return surface
}

func (p *Pipeline) renderLocked(ctx context.Context, key cacheKey) *Surface {
	failed := func(reason string) *Surface {
		return &Surface{
			SourceIndex: key.sourceIndex,
			Scale:       key.scale,
			Rotation:    key.rotation,
			Failed:      true,
			Reason:      reason,
		}
	}
	if key.scale <= 0 {
		return failed(fmt.Sprintf("invalid scale %v", key.scale))
	}
	page, err := p.doc.Page(key.sourceIndex)
	if err != nil {
		return failed(err.Error())
	}
	ops, err := p.doc.ContentOps(key.sourceIndex)
	if err != nil {
		return failed("content stream: " + err.Error())
	}

	pageW := page.MediaBox[2] - page.MediaBox[0]
	pageH := page.MediaBox[3] - page.MediaBox[1]
	effScale := key.scale * p.dpr
	// the page's intrinsic rotation and the user rotation compose
	totalRot := normRotation(page.Rotate + key.rotation)

	outW, outH := pageW*effScale, pageH*effScale
	if totalRot == 90 || totalRot == 270 {
		outW, outH = outH, outW
	}
	if outW < 1 || outH < 1 || outW > 16384 || outH > 16384 {
		return failed(fmt.Sprintf("raster size %dx%d out of range", int(outW), int(outH)))
	}

	img := image.NewRGBA(image.Rect(0, 0, int(outW+0.5), int(outH+0.5)))
	fillWhite(img)

	base := deviceMatrix(pageW, pageH, effScale, totalRot)
	// content coordinates are relative to the MediaBox origin
	base = coords.Mul(base, coords.Translate(-page.MediaBox[0], -page.MediaBox[1]))

	r := newRasterizer(img, base, p.log).withDocument(p.doc, page.Resources)
	if err := r.run(ctx, ops); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return failed("rasterize: " + err.Error())
	}

	if p.els != nil {
		ov := overlayMatrix(pageW, pageH, effScale, totalRot, page.Rotate)
		drawOverlay(img, ov, effScale, p.els.ForPage(key.sourceIndex), p.log)
	}
	if ctx.Err() != nil {
		return nil
	}
	return &Surface{
		Image:       img,
		SourceIndex: key.sourceIndex,
		Scale:       key.scale,
		Rotation:    key.rotation,
	}
}

// Invalidate drops the cached surface for one exact key.
func (p *Pipeline) Invalidate(sourceIndex int, scale float64, rotation int) {
	p.mu.Lock()
	delete(p.cache, cacheKey{sourceIndex: sourceIndex, scale: scale, rotation: normRotation(rotation)})
	p.mu.Unlock()
}

// InvalidatePage drops every cached surface of one page, for element
// edits that change the overlay at any zoom.
func (p *Pipeline) InvalidatePage(sourceIndex int) {
	p.mu.Lock()
	for key := range p.cache {
		if key.sourceIndex == sourceIndex {
			delete(p.cache, key)
		}
	}
	p.mu.Unlock()
}

// Clear drops the whole cache, for document reloads.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.cache = make(map[cacheKey]*Surface)
	p.mu.Unlock()
}

// CacheLen reports the number of cached surfaces.
func (p *Pipeline) CacheLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func normRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg / 90 * 90
}

func fillWhite(img *image.RGBA) {
	px := img.Pix
	for i := range px {
		px[i] = 0xFF
	}
}

// deviceMatrix maps PDF user space (origin bottom-left, y up) to pixel
// space (origin top-left, y down) for the given quarter-turn rotation.
func deviceMatrix(pageW, pageH, s float64, rotation int) coords.Matrix {
	switch rotation {
	case 90:
		return coords.Matrix{0, s, s, 0, 0, 0}
	case 180:
		return coords.Matrix{-s, 0, 0, s, s * pageW, 0}
	case 270:
		return coords.Matrix{0, -s, -s, 0, s * pageH, s * pageW}
	default:
		return coords.Matrix{s, 0, 0, -s, 0, s * pageH}
	}
}

// overlayMatrix maps element space (top-left origin on the displayed,
// intrinsically rotated page) to pixel space. Element coordinates are
// laid out against the page as the user sees it before their own
// rotation is applied, so only the user rotation rotates the overlay.
func overlayMatrix(pageW, pageH, s float64, totalRot, intrinsicRot int) coords.Matrix {
	// element space covers the intrinsic display size
	dispW, dispH := pageW, pageH
	if intrinsicRot == 90 || intrinsicRot == 270 {
		dispW, dispH = dispH, dispW
	}
	userRot := normRotation(totalRot - intrinsicRot)
	switch userRot {
	case 90:
		return coords.Matrix{0, s, -s, 0, s * dispH, 0}
	case 180:
		return coords.Matrix{-s, 0, 0, -s, s * dispW, s * dispH}
	case 270:
		return coords.Matrix{0, -s, s, 0, 0, s * dispW}
	default:
		return coords.Matrix{s, 0, 0, s, 0, 0}
	}
}
