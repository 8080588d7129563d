// Package document loads a source PDF into an immutable in-memory form.
// The loaded bytes are shared read-only by rendering and export; all
// edits live in overlay state elsewhere and never touch the source.
package document

import (
	"errors"
	"fmt"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/filters"
	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/raw"
)

// Size is an intrinsic page size in default user-space units.
type Size struct {
	Width  float64
	Height float64
}

// Page is one leaf of the page tree with inherited attributes resolved.
type Page struct {
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  [4]float64
	Rotate    int // intrinsic /Rotate, normalized to 0/90/180/270
	Resources *raw.DictObj
}

// Document is a loaded source file. It is immutable after Load.
type Document struct {
	data  []byte
	raw   *raw.Document
	pages []Page
	log   observability.Logger
}

// Bytes returns the original file bytes. Callers must treat the slice
// as read-only.
func (d *Document) Bytes() []byte { return d.data }

// Raw exposes the underlying object table for export.
func (d *Document) Raw() *raw.Document { return d.raw }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the resolved page at sourceIndex.
func (d *Document) Page(sourceIndex int) (Page, error) {
	if sourceIndex < 0 || sourceIndex >= len(d.pages) {
		return Page{}, fmt.Errorf("document: page %d out of range [0,%d)", sourceIndex, len(d.pages))
	}
	return d.pages[sourceIndex], nil
}

// PageSize returns the page's intrinsic size with its /Rotate applied,
// so callers see the dimensions the page displays at.
func (d *Document) PageSize(sourceIndex int) (Size, error) {
	p, err := d.Page(sourceIndex)
	if err != nil {
		return Size{}, err
	}
	w := p.MediaBox[2] - p.MediaBox[0]
	h := p.MediaBox[3] - p.MediaBox[1]
	if p.Rotate == 90 || p.Rotate == 270 {
		w, h = h, w
	}
	return Size{Width: w, Height: h}, nil
}

// ContentOps decodes and parses the page's content streams into a flat
// operation list.
func (d *Document) ContentOps(sourceIndex int) ([]contentstream.Operation, error) {
	p, err := d.Page(sourceIndex)
	if err != nil {
		return nil, err
	}
	data, err := d.pageContent(p)
	if err != nil {
		return nil, err
	}
	return contentstream.Parse(data)
}

// pageContent concatenates the decoded /Contents streams.
func (d *Document) pageContent(p Page) ([]byte, error) {
	contents, ok := p.Dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	contents = d.raw.Resolve(contents)
	var streams []*raw.StreamObj
	switch v := contents.(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		for _, el := range v.Items {
			if s, ok := d.raw.Resolve(el).(*raw.StreamObj); ok {
				streams = append(streams, s)
			}
		}
	}
	var out []byte
	for _, s := range streams {
		decoded, err := d.DecodeStream(s)
		if err != nil {
			return nil, fmt.Errorf("document: content stream: %w", err)
		}
		out = append(out, decoded...)
		out = append(out, '\n')
	}
	return out, nil
}

// DecodeStream applies the stream's filter chain.
func (d *Document) DecodeStream(s *raw.StreamObj) ([]byte, error) {
	names, err := d.filterNames(s.Dict)
	if err != nil {
		return nil, err
	}
	return filters.Decode(s.Data, names, filters.DefaultLimits)
}

func (d *Document) filterNames(dict *raw.DictObj) ([]string, error) {
	v, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := d.raw.Resolve(v).(type) {
	case *raw.NameObj:
		return []string{f.Value}, nil
	case *raw.ArrayObj:
		var names []string
		for _, el := range f.Items {
			n, ok := d.raw.Resolve(el).(*raw.NameObj)
			if !ok {
				return nil, errors.New("document: non-name in filter array")
			}
			names = append(names, n.Value)
		}
		return names, nil
	default:
		return nil, errors.New("document: malformed filter entry")
	}
}

// letterBox is assumed when a page tree carries no MediaBox anywhere.
var letterBox = [4]float64{0, 0, 612, 792}

type inherited struct {
	mediaBox  [4]float64
	hasBox    bool
	rotate    int
	resources *raw.DictObj
}

func (d *Document) buildPageList() error {
	root, ok := d.raw.Trailer.Get("Root")
	if !ok {
		return ErrNoPages
	}
	catalog, ok := d.raw.Resolve(root).(*raw.DictObj)
	if !ok {
		return ErrNoPages
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return ErrNoPages
	}
	rootRef, _ := pagesObj.(*raw.RefObj)
	node, ok := d.raw.Resolve(pagesObj).(*raw.DictObj)
	if !ok {
		return ErrNoPages
	}
	var rootNodeRef raw.ObjectRef
	if rootRef != nil {
		rootNodeRef = rootRef.Ref
	}
	visited := make(map[raw.ObjectRef]bool)
	if err := d.walkPages(rootNodeRef, node, inherited{}, visited, 0); err != nil {
		return err
	}
	if len(d.pages) == 0 {
		return ErrNoPages
	}
	return nil
}

const maxTreeDepth = 64

func (d *Document) walkPages(ref raw.ObjectRef, node *raw.DictObj, inh inherited, visited map[raw.ObjectRef]bool, depth int) error {
	if depth > maxTreeDepth {
		return errors.New("document: page tree too deep")
	}
	if ref != (raw.ObjectRef{}) {
		if visited[ref] {
			return errors.New("document: page tree cycle")
		}
		visited[ref] = true
	}
	if box, ok := rectValue(d.raw, node, "MediaBox"); ok {
		inh.mediaBox = box
		inh.hasBox = true
	}
	if r, ok := raw.DictValue[*raw.NumberObj](node, "Rotate"); ok && r.IsInt {
		inh.rotate = normalizeRotate(int(r.I))
	}
	if res, ok := node.Get("Resources"); ok {
		if rd, ok := d.raw.Resolve(res).(*raw.DictObj); ok {
			inh.resources = rd
		}
	}

	typ, _ := raw.NameValue(node, "Type")
	kids, hasKids := node.Get("Kids")
	if typ == "Page" || (!hasKids && typ != "Pages") {
		box := inh.mediaBox
		if !inh.hasBox {
			box = letterBox
		}
		d.pages = append(d.pages, Page{
			Ref:       ref,
			Dict:      node,
			MediaBox:  box,
			Rotate:    inh.rotate,
			Resources: inh.resources,
		})
		return nil
	}
	kidsArr, ok := d.raw.Resolve(kids).(*raw.ArrayObj)
	if !ok {
		return errors.New("document: Kids is not an array")
	}
	for _, kid := range kidsArr.Items {
		var kidRef raw.ObjectRef
		if r, ok := kid.(*raw.RefObj); ok {
			kidRef = r.Ref
		}
		kidDict, ok := d.raw.Resolve(kid).(*raw.DictObj)
		if !ok {
			d.log.Warn("skipping non-dictionary page tree node")
			continue
		}
		if err := d.walkPages(kidRef, kidDict, inh, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func rectValue(rd *raw.Document, dict *raw.DictObj, key string) ([4]float64, bool) {
	v, ok := dict.Get(key)
	if !ok {
		return [4]float64{}, false
	}
	arr, ok := rd.Resolve(v).(*raw.ArrayObj)
	if !ok || len(arr.Items) != 4 {
		return [4]float64{}, false
	}
	var out [4]float64
	for i, el := range arr.Items {
		n, ok := rd.Resolve(el).(*raw.NumberObj)
		if !ok {
			return [4]float64{}, false
		}
		if n.IsInt {
			out[i] = float64(n.I)
		} else {
			out[i] = n.F
		}
	}
	// normalize so (llx,lly) is the lower-left corner
	if out[0] > out[2] {
		out[0], out[2] = out[2], out[0]
	}
	if out[1] > out[3] {
		out[1], out[3] = out[3], out[1]
	}
	return out, true
}

func normalizeRotate(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	// round stray values to the nearest quarter turn
	switch {
	case deg < 45 || deg >= 315:
		return 0
	case deg < 135:
		return 90
	case deg < 225:
		return 180
	default:
		return 270
	}
}
