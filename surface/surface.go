// Package surface is the tool state machine between pointer input and
// the element model. It owns the selection and in-progress gestures;
// committed state always lives in the element store, and every
// completed gesture becomes exactly one history entry.
package surface

import (
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/history"
	"github.com/pdfpage/editkit/observability"
)

// Tool is the active editing mode. Exactly one is active at a time.
type Tool string

const (
	ToolSelect     Tool = "select"
	ToolText       Tool = "text"
	ToolDraw       Tool = "draw"
	ToolRectangle  Tool = "rectangle"
	ToolCircle     Tool = "circle"
	ToolLine       Tool = "line"
	ToolArrow      Tool = "arrow"
	ToolImage      Tool = "image"
	ToolSignature  Tool = "signature"
	ToolStamp      Tool = "stamp"
	ToolFormField  Tool = "form-field"
	ToolStickyNote Tool = "sticky-note"
)

// MinShapeSize is the smallest committed shape dimension; drag results
// below it are discarded as accidental clicks.
const MinShapeSize = 5.0

// pasteOffset displaces pasted elements from their source.
const pasteOffset = 20.0

// Defaults seed newly created elements.
type Defaults struct {
	StrokeColor element.RGB
	FillColor   *element.RGB
	StrokeWidth float64
	TextColor   element.RGB
	FontFamily  string
	FontSize    float64
	Placeholder string
	StampLabel  string
	StampColor  element.RGB
}

// NewDefaults mirrors the initial tool options presented in the editor.
func NewDefaults() Defaults {
	return Defaults{
		StrokeColor: element.RGB{},
		StrokeWidth: 2,
		TextColor:   element.RGB{},
		FontFamily:  "Helvetica",
		FontSize:    16,
		Placeholder: "Type here",
		StampLabel:  "APPROVED",
		StampColor:  element.RGB{R: 0.77, G: 0.12, B: 0.12},
	}
}

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureCreateShape
	gestureDrawPath
	gestureMove
	gestureResize
	gestureMarquee
)

type gesture struct {
	kind      gestureKind
	page      int
	elementID string
	start     point
	last      point
	handle    handle
	// before is the store state at gesture start; the gesture's single
	// history entry restores it on undo
	before element.Snapshot
	// moveIDs are all selected elements dragged together
	moveIDs []string
	origins map[string]element.Bounds
}

type point struct{ X, Y float64 }

// Controller runs the state machine.
type Controller struct {
	store *element.Store
	hist  *history.Manager
	log   observability.Logger

	tool      Tool
	defaults  Defaults
	selection map[string]bool
	active    *gesture

	// text editing session
	editingID  string
	preEdit    string
	editBefore element.Snapshot

	clipboard  []element.Element
	pasteCount int

	// Invalidate, when set, is called with the source index of every
	// page whose overlay changed.
	Invalidate func(pageSourceIndex int)
}

// New returns a controller in the select tool.
func New(store *element.Store, hist *history.Manager, log observability.Logger) *Controller {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Controller{
		store:     store,
		hist:      hist,
		log:       log,
		tool:      ToolSelect,
		defaults:  NewDefaults(),
		selection: make(map[string]bool),
	}
}

// Tool returns the active tool.
func (c *Controller) Tool() Tool { return c.tool }

// SetDefaults replaces creation defaults.
func (c *Controller) SetDefaults(d Defaults) { c.defaults = d }

// SetTool switches the active tool. Any in-progress creation gesture is
// cancelled without committing a partial element.
func (c *Controller) SetTool(t Tool) {
	if c.active != nil {
		c.cancelGesture()
	}
	if c.editingID != "" {
		c.CommitTextEdit(c.currentEditContent())
	}
	c.tool = t
	if t != ToolSelect {
		c.clearSelection()
	}
}

// Selection returns the selected element ids. The set is rebuilt on
// every selection change and never persisted.
func (c *Controller) Selection() []string {
	out := make([]string, 0, len(c.selection))
	for id := range c.selection {
		out = append(out, id)
	}
	return out
}

// IsSelected reports membership in the selection.
func (c *Controller) IsSelected(id string) bool { return c.selection[id] }

func (c *Controller) clearSelection() {
	c.selection = make(map[string]bool)
}

func (c *Controller) selectOnly(id string) {
	c.selection = map[string]bool{id: true}
}

func (c *Controller) invalidate(page int) {
	if c.Invalidate != nil {
		c.Invalidate(page)
	}
}

// cancelGesture abandons the in-progress gesture. Eagerly created
// elements are removed and no history entry is written.
func (c *Controller) cancelGesture() {
	g := c.active
	c.active = nil
	if g == nil {
		return
	}
	switch g.kind {
	case gestureCreateShape, gestureDrawPath:
		c.store.Restore(g.before)
	case gestureMove, gestureResize:
		for id, b := range g.origins {
			c.store.Update(id, func(e *element.Element) { e.Bounds = b })
		}
	}
	c.invalidate(g.page)
	c.log.Debug("gesture cancelled")
}

// commitGesture writes the gesture's single history entry from the
// before snapshot and the store's current state.
func (c *Controller) commitGesture(label string, g *gesture) {
	before := g.before
	after := c.store.Snapshot()
	store := c.store
	page := g.page
	inv := c.invalidate
	c.hist.Commit(label,
		func() { store.Restore(before); inv(page) },
		func() { store.Restore(after); inv(page) },
	)
	c.invalidate(page)
}
