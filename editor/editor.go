// Package editor ties the loaded document, element model, page
// registry, history, renderer, and interactive surface into one editing
// session, and owns the page-level operations the grid UI exposes.
package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/export"
	"github.com/pdfpage/editkit/fonts"
	"github.com/pdfpage/editkit/history"
	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/pages"
	"github.com/pdfpage/editkit/render"
	"github.com/pdfpage/editkit/scripting"
	"github.com/pdfpage/editkit/surface"
)

// Options configures a session.
type Options struct {
	Logger observability.Logger
	Tracer observability.Tracer
	// HistoryDepth of 0 uses history.DefaultDepth.
	HistoryDepth int
	// DevicePixelRatio of 0 renders at 1:1.
	DevicePixelRatio float64
	// Load overrides the document loading limits.
	Load *document.Config
}

// Session is one open document plus all of its edit state. It is not
// safe for concurrent use; callers serialize access the way a UI event
// loop does.
type Session struct {
	doc      *document.Document
	store    *element.Store
	registry *pages.Registry
	history  *history.Manager
	pipeline *render.Pipeline
	surface  *surface.Controller
	engine   *export.Engine
	log      observability.Logger
	tracer   observability.Tracer
	openedAt time.Time
}

// Open loads data and builds a ready session around it.
func Open(data []byte, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	cfg := document.DefaultConfig()
	if opts.Load != nil {
		cfg = *opts.Load
	}
	cfg.Logger = log

	doc, err := document.Load(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}

	depth := opts.HistoryDepth
	if depth <= 0 {
		depth = history.DefaultDepth
	}
	dpr := opts.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}

	store := element.NewStore(element.WithLogger(log))
	hist := history.New(depth, log)
	pipe := render.New(doc, store, dpr, log)
	ctrl := surface.New(store, hist, log)
	ctrl.Invalidate = pipe.InvalidatePage

	s := &Session{
		doc:      doc,
		store:    store,
		registry: pages.New(doc.PageCount(), log),
		history:  hist,
		pipeline: pipe,
		surface:  ctrl,
		engine:   export.New(doc, log),
		log:      log,
		tracer:   tracer,
		openedAt: time.Now(),
	}
	log.Info("session opened", observability.Int(observability.MetricPageCount, doc.PageCount()))
	return s, nil
}

// Document returns the loaded source document.
func (s *Session) Document() *document.Document { return s.doc }

// Elements returns the element model.
func (s *Session) Elements() *element.Store { return s.store }

// Pages returns the page registry.
func (s *Session) Pages() *pages.Registry { return s.registry }

// History returns the undo stack.
func (s *Session) History() *history.Manager { return s.history }

// Surface returns the interactive tool controller.
func (s *Session) Surface() *surface.Controller { return s.surface }

// Renderer returns the page render pipeline.
func (s *Session) Renderer() *render.Pipeline { return s.pipeline }

// RegisterFont registers an embedded font under family so text styled
// with it is laid out against the real outlines.
func (s *Session) RegisterFont(family string, data []byte) error {
	return fonts.RegisterFace(family, data)
}

// RenderDisplayPage renders the page currently at displayIndex, with
// its user rotation applied. A nil surface means the request was
// superseded or cancelled.
func (s *Session) RenderDisplayPage(ctx context.Context, displayIndex int, scale float64) (*render.Surface, error) {
	d, err := s.registry.At(displayIndex)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.StartSpan(ctx, "render.page")
	defer span.Finish()
	span.SetTag("source_index", d.SourceIndex)
	span.SetTag("scale", scale)
	return s.pipeline.RenderPage(ctx, d.SourceIndex, scale, d.Rotation), nil
}

// commitPages records a registry mutation as one undoable step.
func (s *Session) commitPages(label string, before []pages.Descriptor) {
	after := s.registry.Snapshot()
	reg, pipe := s.registry, s.pipeline
	s.history.Commit(label,
		func() {
			reg.Restore(before)
			pipe.Clear()
		},
		func() {
			reg.Restore(after)
			pipe.Clear()
		})
}

// ReorderPages moves the page at display position from to position to.
func (s *Session) ReorderPages(from, to int) error {
	before := s.registry.Snapshot()
	if err := s.registry.Reorder(from, to); err != nil {
		return err
	}
	s.commitPages("reorder pages", before)
	return nil
}

// RotatePage turns the page at displayIndex by delta degrees, a
// multiple of 90.
func (s *Session) RotatePage(displayIndex, delta int) error {
	before := s.registry.Snapshot()
	if err := s.registry.Rotate(displayIndex, delta); err != nil {
		return err
	}
	d, err := s.registry.At(displayIndex)
	if err == nil {
		s.pipeline.InvalidatePage(d.SourceIndex)
	}
	s.commitPages("rotate page", before)
	return nil
}

// ToggleDeletePage marks or unmarks the page at displayIndex deleted.
func (s *Session) ToggleDeletePage(displayIndex int) error {
	before := s.registry.Snapshot()
	if err := s.registry.ToggleDelete(displayIndex); err != nil {
		return err
	}
	s.commitPages("toggle page delete", before)
	return nil
}

// Undo reverts the most recent step. Reports whether anything changed.
func (s *Session) Undo() bool { return s.history.Undo() }

// Redo reapplies the most recently undone step.
func (s *Session) Redo() bool { return s.history.Redo() }

// fieldSource exposes the session's form fields to format scripts.
type fieldSource struct{ store *element.Store }

type fieldProxy struct{ value string }

func (f *fieldProxy) Value() string { return f.value }

// Format scripts read sibling values; they never write back into the
// element model.
func (*fieldProxy) SetValue(string) {}

func (fs fieldSource) Field(name string) (scripting.FieldProxy, bool) {
	for _, el := range fs.store.All() {
		if el.Kind == element.KindFormField && el.FormField.Name == name {
			return &fieldProxy{value: el.FormField.Value}, true
		}
	}
	return nil, false
}

// Export assembles the output file from the current page and element
// state. Field format scripts run unless opts already carries a
// formatter.
func (s *Session) Export(ctx context.Context, opts export.Options) ([]byte, error) {
	if opts.FieldFormatter == nil {
		opts.FieldFormatter = scripting.Formatter(fieldSource{store: s.store})
	}
	_, span := s.tracer.StartSpan(ctx, "export")
	defer span.Finish()
	data, err := s.engine.Export(s.registry, s.store, opts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag("bytes", len(data))
	return data, nil
}
