// Package export materializes the edit overlay into a new PDF byte
// stream. It walks the page registry's visible sequence, copies each
// source page's object closure, applies user rotation, and appends an
// overlay content stream drawing the page's elements in paint order.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/filters"
	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/pages"
	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/writer"
)

// Elements is the read side of the element model consumed at export.
type Elements interface {
	ForPage(pageSourceIndex int) []element.Element
}

// FieldFormatter optionally post-processes form field values, for
// fields carrying a format script.
type FieldFormatter func(field element.FormFieldProps) (string, error)

// ExtraPage is an additional page appended after the visible sequence,
// such as an annotation summary.
type ExtraPage struct {
	Width  float64
	Height float64
	Ops    []contentstream.Operation
	// Fonts maps resource names used by Ops to standard base fonts.
	Fonts map[string]string
}

// Options controls one export run.
type Options struct {
	Title    string
	Subject  string
	Creator  string
	Producer string
	// Timestamp pins CreationDate and ModDate, the only fields allowed
	// to differ between otherwise identical exports. Zero means now.
	Timestamp time.Time
	Watermark *Watermark
	// FieldFormatter runs form field format scripts. Nil exports raw
	// values.
	FieldFormatter FieldFormatter
	// ExtraPages are appended after the last visible page.
	ExtraPages []ExtraPage
	// Flatten draws form fields as fixed page content instead of
	// emitting interactive widget annotations.
	Flatten bool
}

// Engine exports one loaded document.
type Engine struct {
	doc *document.Document
	log observability.Logger
}

// New returns an engine over doc.
func New(doc *document.Document, log observability.Logger) *Engine {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{doc: doc, log: log}
}

// out accumulates the output object table.
type out struct {
	objects map[raw.ObjectRef]raw.Object
	next    int
}

func (o *out) alloc(obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: o.next}
	o.next++
	o.objects[ref] = obj
	return ref
}

// Export produces the output file bytes. A failure to draw one element
// is logged and skipped; only writer-level failures abort the export.
func (e *Engine) Export(reg *pages.Registry, els Elements, opts Options) ([]byte, error) {
	start := time.Now()
	visible := reg.Visible()
	if len(visible)+len(opts.ExtraPages) == 0 {
		return nil, fmt.Errorf("export: no visible pages")
	}

	o := &out{objects: make(map[raw.ObjectRef]raw.Object), next: 1}
	pagesDict := raw.Dict()
	pagesRef := o.alloc(pagesDict)

	var kids []raw.Object
	var fieldRefs []raw.Object
	for _, desc := range visible {
		pageRef, fields, err := e.exportPage(o, pagesRef, desc, els, opts)
		if err != nil {
			return nil, fmt.Errorf("export: page source %d: %w", desc.SourceIndex, err)
		}
		kids = append(kids, raw.Ref(pageRef))
		fieldRefs = append(fieldRefs, fields...)
	}
	for i, extra := range opts.ExtraPages {
		pageRef, err := e.exportExtraPage(o, pagesRef, extra)
		if err != nil {
			return nil, fmt.Errorf("export: extra page %d: %w", i, err)
		}
		kids = append(kids, raw.Ref(pageRef))
	}

	kidsArr := raw.NewArray()
	kidsArr.Items = kids
	pagesDict.Set("Type", raw.Name("Pages"))
	pagesDict.Set("Kids", kidsArr)
	pagesDict.Set("Count", raw.Int(int64(len(kids))))

	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(pagesRef))
	if len(fieldRefs) > 0 {
		acro := raw.Dict()
		fieldsArr := raw.NewArray()
		fieldsArr.Items = fieldRefs
		acro.Set("Fields", fieldsArr)
		acro.Set("NeedAppearances", raw.Bool(true))
		acro.Set("DA", &raw.StringObj{Bytes: []byte("/Helv 0 Tf 0 g")})
		dr := raw.Dict()
		drFonts := raw.Dict()
		drFonts.Set("Helv", raw.Ref(o.alloc(standardFont("Helvetica"))))
		dr.Set("Font", drFonts)
		acro.Set("DR", dr)
		catalog.Set("AcroForm", raw.Ref(o.alloc(acro)))
	}
	catalogRef := o.alloc(catalog)

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	info := raw.Dict()
	setInfoString(info, "Title", opts.Title)
	setInfoString(info, "Subject", opts.Subject)
	setInfoString(info, "Creator", opts.Creator)
	producer := opts.Producer
	if producer == "" {
		producer = "editkit"
	}
	setInfoString(info, "Producer", producer)
	stamp := pdfDate(ts)
	info.Set("CreationDate", &raw.StringObj{Bytes: []byte(stamp)})
	info.Set("ModDate", &raw.StringObj{Bytes: []byte(stamp)})
	infoRef := o.alloc(info)

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(catalogRef))
	trailer.Set("Info", raw.Ref(infoRef))

	data, err := writer.Serialize(&raw.Document{
		Objects: o.objects,
		Trailer: trailer,
		Version: "1.7",
	}, writer.Options{})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	e.log.Info("export finished",
		observability.Int(observability.MetricPageCount, len(kids)),
		observability.Int(observability.MetricExportedBytes, len(data)),
		observability.Int64(observability.MetricExportTime, time.Since(start).Milliseconds()))
	return data, nil
}

// exportPage copies one source page and attaches its overlay.
func (e *Engine) exportPage(o *out, parent raw.ObjectRef, desc pages.Descriptor, els Elements, opts Options) (raw.ObjectRef, []raw.Object, error) {
	src, err := e.doc.Page(desc.SourceIndex)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}

	pageDict := raw.Dict()
	memo := make(map[raw.ObjectRef]raw.ObjectRef)
	for _, key := range sortedKeys(src.Dict) {
		switch key {
		case "Parent", "StructParents", "B", "Rotate":
			// dropped: the copy gets a new parent and its own rotation
		default:
			pageDict.Set(key, e.copyObject(o, src.Dict.Entries[key], memo))
		}
	}
	pageDict.Set("Type", raw.Name("Page"))
	pageDict.Set("Parent", raw.Ref(parent))
	if _, ok := pageDict.Get("MediaBox"); !ok {
		pageDict.Set("MediaBox", rectArray(src.MediaBox))
	}
	totalRot := (src.Rotate + desc.Rotation) % 360
	if totalRot != 0 {
		pageDict.Set("Rotate", raw.Int(int64(totalRot)))
	}
	// inherited resources must travel with the page since the copy
	// leaves the original tree behind
	if _, ok := pageDict.Get("Resources"); !ok && src.Resources != nil {
		pageDict.Set("Resources", e.copyObject(o, src.Resources, memo))
	}

	pageRef := o.alloc(pageDict)

	rs := newPageResources(o, pageDict)
	overlay, widgets, err := e.buildOverlay(rs, src, els.ForPage(desc.SourceIndex), opts)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if opts.Watermark != nil {
		overlay = append(overlay, e.watermarkOps(rs, src, *opts.Watermark)...)
	}
	if len(overlay) > 0 {
		if err := e.appendContent(o, pageDict, overlay); err != nil {
			return raw.ObjectRef{}, nil, err
		}
	}
	var fieldRefs []raw.Object
	if len(widgets) > 0 {
		annots := raw.NewArray()
		if existing, ok := pageDict.Get("Annots"); ok {
			switch t := existing.(type) {
			case *raw.ArrayObj:
				annots.Items = append(annots.Items, t.Items...)
			case *raw.RefObj:
				if arr, ok := o.objects[t.Ref].(*raw.ArrayObj); ok {
					annots.Items = append(annots.Items, arr.Items...)
				}
			}
		}
		for _, w := range widgets {
			w.Set("P", raw.Ref(pageRef))
			ref := o.alloc(w)
			annots.Items = append(annots.Items, raw.Ref(ref))
			fieldRefs = append(fieldRefs, raw.Ref(ref))
		}
		pageDict.Set("Annots", annots)
	}
	return pageRef, fieldRefs, nil
}

// copyObject transcribes an object graph from the source document into
// the output, renumbering indirect references. The memo keeps shared
// and cyclic structures shared in the copy.
func (e *Engine) copyObject(o *out, obj raw.Object, memo map[raw.ObjectRef]raw.ObjectRef) raw.Object {
	switch v := obj.(type) {
	case *raw.RefObj:
		if dst, ok := memo[v.Ref]; ok {
			return raw.Ref(dst)
		}
		target, ok := e.doc.Raw().Objects[v.Ref]
		if !ok {
			return &raw.NullObj{}
		}
		dst := raw.ObjectRef{Num: o.next}
		o.next++
		memo[v.Ref] = dst
		o.objects[dst] = e.copyObject(o, target, memo)
		return raw.Ref(dst)
	case *raw.ArrayObj:
		arr := raw.NewArray()
		arr.Items = make([]raw.Object, len(v.Items))
		for i, el := range v.Items {
			arr.Items[i] = e.copyObject(o, el, memo)
		}
		return arr
	case *raw.DictObj:
		d := raw.Dict()
		for _, k := range sortedKeys(v) {
			if k == "Parent" {
				// page tree back-references would drag the whole
				// source tree into the copy
				continue
			}
			d.Set(k, e.copyObject(o, v.Entries[k], memo))
		}
		return d
	case *raw.StreamObj:
		dict := e.copyObject(o, v.Dict, memo).(*raw.DictObj)
		return &raw.StreamObj{Dict: dict, Data: append([]byte(nil), v.Data...)}
	default:
		return obj
	}
}

// appendContent isolates the original content in q/Q and appends the
// overlay as its own stream.
func (e *Engine) appendContent(o *out, pageDict *raw.DictObj, overlay []contentstream.Operation) error {
	var streams []raw.Object
	if existing, ok := pageDict.Get("Contents"); ok {
		switch v := existing.(type) {
		case *raw.ArrayObj:
			streams = append(streams, v.Items...)
		default:
			streams = append(streams, v)
		}
	}
	wrap := func(data []byte) (raw.Object, error) {
		enc, err := filters.FlateEncode(data)
		if err != nil {
			return nil, err
		}
		d := raw.Dict()
		d.Set("Filter", raw.Name("FlateDecode"))
		return raw.Ref(o.alloc(&raw.StreamObj{Dict: d, Data: enc})), nil
	}
	pre, err := wrap([]byte("q\n"))
	if err != nil {
		return err
	}
	post, err := wrap(append([]byte("Q\n"), contentstream.Serialize(overlay)...))
	if err != nil {
		return err
	}
	arr := raw.NewArray()
	arr.Items = append([]raw.Object{pre}, streams...)
	arr.Items = append(arr.Items, post)
	pageDict.Set("Contents", arr)
	return nil
}

// exportExtraPage emits a standalone generated page.
func (e *Engine) exportExtraPage(o *out, parent raw.ObjectRef, extra ExtraPage) (raw.ObjectRef, error) {
	w, h := extra.Width, extra.Height
	if w <= 0 || h <= 0 {
		w, h = 612, 792
	}
	enc, err := filters.FlateEncode(contentstream.Serialize(extra.Ops))
	if err != nil {
		return raw.ObjectRef{}, err
	}
	sd := raw.Dict()
	sd.Set("Filter", raw.Name("FlateDecode"))
	contentRef := o.alloc(&raw.StreamObj{Dict: sd, Data: enc})

	page := raw.Dict()
	page.Set("Type", raw.Name("Page"))
	page.Set("Parent", raw.Ref(parent))
	page.Set("MediaBox", rectArray([4]float64{0, 0, w, h}))
	page.Set("Contents", raw.Ref(contentRef))
	if len(extra.Fonts) > 0 {
		res := raw.Dict()
		fontDict := raw.Dict()
		names := make([]string, 0, len(extra.Fonts))
		for name := range extra.Fonts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fontDict.Set(name, raw.Ref(o.alloc(standardFont(extra.Fonts[name]))))
		}
		res.Set("Font", fontDict)
		page.Set("Resources", res)
	}
	return o.alloc(page), nil
}

func standardFont(baseFont string) *raw.DictObj {
	f := raw.Dict()
	f.Set("Type", raw.Name("Font"))
	f.Set("Subtype", raw.Name("Type1"))
	f.Set("BaseFont", raw.Name(baseFont))
	f.Set("Encoding", raw.Name("WinAnsiEncoding"))
	return f
}

// sortedKeys keeps object allocation order stable across runs so
// repeated exports of the same state are byte identical.
func sortedKeys(d *raw.DictObj) []string {
	keys := d.Keys()
	sort.Strings(keys)
	return keys
}

func rectArray(box [4]float64) *raw.ArrayObj {
	arr := raw.NewArray()
	for _, v := range box {
		arr.Items = append(arr.Items, raw.Real(v))
	}
	return arr
}

func setInfoString(d *raw.DictObj, key, val string) {
	if val != "" {
		d.Set(key, &raw.StringObj{Bytes: []byte(val)})
	}
}

// pdfDate formats t as a PDF date string in UTC.
func pdfDate(t time.Time) string {
	return t.UTC().Format("D:20060102150405Z")
}
