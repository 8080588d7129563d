package element

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pdfpage/editkit/observability"
)

// Store owns every element in the session. All mutations are
// synchronous and atomic from the caller's point of view.
type Store struct {
	byID   map[string]*Element
	zOrder map[int][]string // per-page ids in paint order
	log    observability.Logger
	clock  func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes mutation diagnostics to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides timestamping, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDSource overrides id generation, for tests.
func WithIDSource(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:   make(map[string]*Element),
		zOrder: make(map[int][]string),
		log:    observability.NopLogger{},
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add inserts spec as a new element and returns its assigned id. The
// element is appended to its page's paint order. Any id on spec is
// replaced.
func (s *Store) Add(spec Element) string {
	el := spec.Clone()
	el.ID = s.newID()
	now := s.clock()
	el.CreatedAt = now
	el.UpdatedAt = now
	if el.Opacity == 0 {
		el.Opacity = 1
	}
	el.Visible = true
	s.byID[el.ID] = &el
	s.zOrder[el.PageIndex] = append(s.zOrder[el.PageIndex], el.ID)
	s.log.Debug("element added",
		observability.String("id", el.ID),
		observability.String("kind", string(el.Kind)),
		observability.Int("page", el.PageIndex))
	return el.ID
}

// Update applies mutate to the element and bumps UpdatedAt. An unknown
// id is logged and ignored; update-after-delete races from the UI must
// not crash the session.
func (s *Store) Update(id string, mutate func(*Element)) {
	el, ok := s.byID[id]
	if !ok {
		s.log.Warn("update for unknown element", observability.String("id", id))
		return
	}
	oldPage := el.PageIndex
	if mutate != nil {
		mutate(el)
	}
	el.ID = id // mutators cannot re-identify an element
	el.UpdatedAt = s.clock()
	if el.PageIndex != oldPage {
		s.zOrder[oldPage] = removeID(s.zOrder[oldPage], id)
		s.zOrder[el.PageIndex] = append(s.zOrder[el.PageIndex], id)
	}
}

// Remove deletes the element. Idempotent.
func (s *Store) Remove(id string) {
	el, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	s.zOrder[el.PageIndex] = removeID(s.zOrder[el.PageIndex], id)
	s.log.Debug("element removed", observability.String("id", id))
}

// Get returns a copy of the element.
func (s *Store) Get(id string) (Element, bool) {
	el, ok := s.byID[id]
	if !ok {
		return Element{}, false
	}
	return el.Clone(), true
}

// Len returns the total element count.
func (s *Store) Len() int { return len(s.byID) }

// ForPage returns copies of the page's elements in paint order.
func (s *Store) ForPage(pageSourceIndex int) []Element {
	ids := s.zOrder[pageSourceIndex]
	out := make([]Element, 0, len(ids))
	for _, id := range ids {
		if el, ok := s.byID[id]; ok {
			out = append(out, el.Clone())
		}
	}
	return out
}

// All returns copies of every element ordered by page then paint order.
func (s *Store) All() []Element {
	pages := make([]int, 0, len(s.zOrder))
	for p := range s.zOrder {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	var out []Element
	for _, p := range pages {
		out = append(out, s.ForPage(p)...)
	}
	return out
}

// BringToFront moves the element to the end of its page's paint order.
func (s *Store) BringToFront(id string) {
	el, ok := s.byID[id]
	if !ok {
		return
	}
	order := removeID(s.zOrder[el.PageIndex], id)
	s.zOrder[el.PageIndex] = append(order, id)
	el.UpdatedAt = s.clock()
}

// SendToBack moves the element to the start of its page's paint order.
func (s *Store) SendToBack(id string) {
	el, ok := s.byID[id]
	if !ok {
		return
	}
	order := removeID(s.zOrder[el.PageIndex], id)
	s.zOrder[el.PageIndex] = append([]string{id}, order...)
	el.UpdatedAt = s.clock()
}

// Snapshot captures the full model state for history entries.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Elements: make(map[string]Element, len(s.byID)),
		ZOrder:   make(map[int][]string, len(s.zOrder)),
	}
	for id, el := range s.byID {
		snap.Elements[id] = el.Clone()
	}
	for page, ids := range s.zOrder {
		snap.ZOrder[page] = append([]string(nil), ids...)
	}
	return snap
}

// Restore replaces the model state with a previously captured snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.byID = make(map[string]*Element, len(snap.Elements))
	for id, el := range snap.Elements {
		cp := el.Clone()
		s.byID[id] = &cp
	}
	s.zOrder = make(map[int][]string, len(snap.ZOrder))
	for page, ids := range snap.ZOrder {
		if len(ids) == 0 {
			continue
		}
		s.zOrder[page] = append([]string(nil), ids...)
	}
}

// Snapshot is an immutable copy of the whole element model.
type Snapshot struct {
	Elements map[string]Element
	ZOrder   map[int][]string
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
