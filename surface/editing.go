package surface

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/observability"
)

// textDown creates a text element with placeholder content and enters
// edit mode. The single history entry covers creation plus whatever the
// edit session types, written when the session commits.
func (c *Controller) textDown(page int, pt point) {
	before := c.store.Snapshot()
	id := c.store.Add(element.Element{
		Kind:      element.KindText,
		PageIndex: page,
		Bounds:    element.Bounds{X: pt.X, Y: pt.Y, Width: 160, Height: c.defaults.FontSize * 1.5},
		Text: &element.TextProps{
			Content:    c.defaults.Placeholder,
			FontFamily: c.defaults.FontFamily,
			FontSize:   c.defaults.FontSize,
			Color:      c.defaults.TextColor,
			Alignment:  element.AlignLeft,
		},
	})
	c.selectOnly(id)
	c.editingID = id
	c.preEdit = c.defaults.Placeholder
	c.editBefore = before
	c.invalidate(page)
}

// BeginTextEdit re-opens an existing text element for editing, the
// "click again to re-edit" path.
func (c *Controller) BeginTextEdit(id string) bool {
	el, ok := c.store.Get(id)
	if !ok || el.Kind != element.KindText || el.Locked {
		return false
	}
	if c.editingID != "" {
		c.CommitTextEdit(c.currentEditContent())
	}
	c.editingID = id
	c.preEdit = el.Text.Content
	c.editBefore = c.store.Snapshot()
	c.selectOnly(id)
	return true
}

// EditingID returns the element under edit, empty when none.
func (c *Controller) EditingID() string { return c.editingID }

// SetEditContent live-updates the element during an edit session
// without touching history.
func (c *Controller) SetEditContent(content string) {
	if c.editingID == "" {
		return
	}
	id := c.editingID
	c.store.Update(id, func(e *element.Element) {
		if e.Text != nil {
			e.Text.Content = content
		}
	})
	if el, ok := c.store.Get(id); ok {
		c.invalidate(el.PageIndex)
	}
}

// CommitTextEdit ends the edit session with the given content, writing
// one history entry. Enter without shift and focus loss both land here.
func (c *Controller) CommitTextEdit(content string) {
	if c.editingID == "" {
		return
	}
	id := c.editingID
	c.editingID = ""
	c.store.Update(id, func(e *element.Element) {
		if e.Text != nil {
			e.Text.Content = content
		}
	})
	page := 0
	if el, ok := c.store.Get(id); ok {
		page = el.PageIndex
	}
	g := &gesture{page: page, before: c.editBefore}
	c.commitGesture("edit text", g)
}

// CancelTextEdit reverts to the pre-edit content and still commits, so
// the element persists for later re-editing. The Escape path.
func (c *Controller) CancelTextEdit() {
	if c.editingID == "" {
		return
	}
	c.CommitTextEdit(c.preEdit)
}

func (c *Controller) currentEditContent() string {
	if el, ok := c.store.Get(c.editingID); ok && el.Text != nil {
		return el.Text.Content
	}
	return c.preEdit
}

// PlaceImage decodes picked file bytes and creates an image element
// anchored at the pointer-down point. Fails silently on undecodable
// data; a broken picker result must not crash the editor.
func (c *Controller) PlaceImage(page int, x, y float64, data []byte, format string) string {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		c.log.Warn("image placement skipped", observability.Error("err", err))
		return ""
	}
	w := float64(cfg.Width)
	h := float64(cfg.Height)
	ratio := w / h
	const defaultWidth = 200.0
	if w > defaultWidth {
		w = defaultWidth
		h = w / ratio
	}
	before := c.store.Snapshot()
	id := c.store.Add(element.Element{
		Kind:      element.KindImage,
		PageIndex: page,
		Bounds:    element.Bounds{X: x, Y: y, Width: w, Height: h},
		Image: &element.ImageProps{
			Data:           append([]byte(nil), data...),
			Format:         format,
			OriginalWidth:  float64(cfg.Width),
			OriginalHeight: float64(cfg.Height),
			AspectRatio:    ratio,
		},
	})
	c.selectOnly(id)
	g := &gesture{page: page, before: before}
	c.commitGesture("add image", g)
	return id
}

// DeleteSelected removes every selected element as one history entry.
func (c *Controller) DeleteSelected() {
	if len(c.selection) == 0 {
		return
	}
	before := c.store.Snapshot()
	page := -1
	for id := range c.selection {
		if el, ok := c.store.Get(id); ok {
			page = el.PageIndex
			c.store.Remove(id)
		}
	}
	c.clearSelection()
	g := &gesture{page: page, before: before}
	c.commitGesture("delete", g)
}

// Copy captures the selected elements for pasting.
func (c *Controller) Copy() {
	c.clipboard = c.clipboard[:0]
	for id := range c.selection {
		if el, ok := c.store.Get(id); ok {
			c.clipboard = append(c.clipboard, el)
		}
	}
	c.pasteCount = 0
}

// Cut is Copy plus DeleteSelected.
func (c *Controller) Cut() {
	c.Copy()
	c.DeleteSelected()
}

// Paste inserts clipboard contents offset by a growing step so repeated
// pastes fan out instead of stacking. One history entry per paste.
func (c *Controller) Paste() []string {
	if len(c.clipboard) == 0 {
		return nil
	}
	c.pasteCount++
	offset := pasteOffset * float64(c.pasteCount)
	before := c.store.Snapshot()
	ids := make([]string, 0, len(c.clipboard))
	page := c.clipboard[0].PageIndex
	for _, src := range c.clipboard {
		spec := src.Clone()
		spec.Bounds.X += offset
		spec.Bounds.Y += offset
		ids = append(ids, c.store.Add(spec))
	}
	c.clearSelection()
	for _, id := range ids {
		c.selection[id] = true
	}
	g := &gesture{page: page, before: before}
	c.commitGesture("paste", g)
	return ids
}
