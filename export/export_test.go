package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/pdfpage/editkit/document"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/filters"
	"github.com/pdfpage/editkit/fonts"
	"github.com/pdfpage/editkit/pages"
	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/writer"
	"golang.org/x/image/font/gofont/goregular"
)

// fixtureDoc builds and loads a source document with n same-size pages.
func fixtureDoc(t *testing.T, n int) *document.Document {
	t.Helper()
	objs := map[raw.ObjectRef]raw.Object{}
	next := 1
	alloc := func(obj raw.Object) raw.ObjectRef {
		ref := raw.ObjectRef{Num: next}
		next++
		objs[ref] = obj
		return ref
	}

	pagesRef := raw.ObjectRef{Num: 900}
	kids := raw.NewArray()
	for i := 0; i < n; i++ {
		data, err := filters.FlateEncode([]byte("0 0 0 rg 10 10 50 50 re f"))
		if err != nil {
			t.Fatal(err)
		}
		cd := raw.Dict()
		cd.Set("Filter", raw.Name("FlateDecode"))
		contentRef := alloc(&raw.StreamObj{Dict: cd, Data: data})

		page := raw.Dict()
		page.Set("Type", raw.Name("Page"))
		page.Set("Parent", raw.Ref(pagesRef))
		mb := raw.NewArray()
		for _, v := range [4]float64{0, 0, 612, 792} {
			mb.Items = append(mb.Items, raw.Real(v))
		}
		page.Set("MediaBox", mb)
		page.Set("Contents", raw.Ref(contentRef))
		kids.Items = append(kids.Items, raw.Ref(alloc(page)))
	}

	pagesDict := raw.Dict()
	pagesDict.Set("Type", raw.Name("Pages"))
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", raw.Int(int64(n)))
	objs[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(pagesRef))
	catRef := alloc(catalog)

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(catRef))
	data, err := writer.Serialize(&raw.Document{Objects: objs, Trailer: trailer, Version: "1.7"}, writer.Options{})
	if err != nil {
		t.Fatalf("fixture serialize: %v", err)
	}
	doc, err := document.Load(data, document.DefaultConfig())
	if err != nil {
		t.Fatalf("fixture load: %v", err)
	}
	return doc
}

func reload(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.Load(data, document.DefaultConfig())
	if err != nil {
		t.Fatalf("reload export: %v", err)
	}
	return doc
}

var fixedStamp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestExportAppliesPageState(t *testing.T) {
	doc := fixtureDoc(t, 3)
	reg := pages.New(3, nil)
	if err := reg.ToggleDelete(1); err != nil {
		t.Fatal(err)
	}
	if err := reg.Rotate(2, 90); err != nil {
		t.Fatal(err)
	}
	store := element.NewStore()

	data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := reload(t, data)
	if out.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", out.PageCount())
	}
	p0, _ := out.Page(0)
	if p0.Rotate != 0 {
		t.Errorf("page 0 rotate = %d, want 0", p0.Rotate)
	}
	p1, _ := out.Page(1)
	if p1.Rotate != 90 {
		t.Errorf("page 1 rotate = %d, want 90", p1.Rotate)
	}
}

func TestExportDeterministic(t *testing.T) {
	doc := fixtureDoc(t, 2)
	reg := pages.New(2, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindShape,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 10, Y: 20, Width: 100, Height: 50},
		Shape:     &element.ShapeProps{Kind: element.ShapeRectangle, StrokeColor: element.RGB{R: 1}, StrokeWidth: 2},
	})

	eng := New(doc, nil)
	opts := Options{Timestamp: fixedStamp, Title: "determinism"}
	a, err := eng.Export(reg, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := eng.Export(reg, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two exports with a pinned timestamp differ")
	}
}

func TestExportOverlayContent(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindShape,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 30, Y: 40, Width: 120, Height: 60},
		Shape:     &element.ShapeProps{Kind: element.ShapeRectangle, StrokeColor: element.RGB{B: 1}, StrokeWidth: 2},
	})

	data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)
	ops, err := out.ContentOps(0)
	if err != nil {
		t.Fatalf("ContentOps: %v", err)
	}
	// original square plus the overlay rectangle
	var rects [][4]float64
	for _, op := range ops {
		if op.Operator != "re" {
			continue
		}
		var r [4]float64
		for i := range r {
			v, ok := op.Float(i)
			if !ok {
				t.Fatalf("re operand %d not numeric", i)
			}
			r[i] = v
		}
		rects = append(rects, r)
	}
	if len(rects) != 2 {
		t.Fatalf("got %d re ops, want 2", len(rects))
	}
	if rects[1] != [4]float64{30, 40, 120, 60} {
		t.Errorf("overlay rect = %v, want [30 40 120 60]", rects[1])
	}
}

func TestExportTextUsesRegisteredFont(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindText,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 72, Y: 72, Width: 200, Height: 24},
		Text: &element.TextProps{
			Content:    "Reviewed",
			FontFamily: "helvetica",
			FontSize:   14,
			Bold:       true,
		},
	})

	data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)
	ops, err := out.ContentOps(0)
	if err != nil {
		t.Fatal(err)
	}
	var fontName string
	var shown []byte
	for _, op := range ops {
		switch op.Operator {
		case "Tf":
			fontName, _ = op.Name(0)
		case "Tj":
			shown, _ = op.String(0)
		}
	}
	if fontName != "EKF1" {
		t.Errorf("font resource = %q, want EKF1", fontName)
	}
	if string(shown) != "Reviewed" {
		t.Errorf("shown text = %q, want Reviewed", shown)
	}

	p0, _ := out.Page(0)
	res := p0.Resources
	if res == nil {
		t.Fatal("page has no resources")
	}
	fontsObj, ok := res.Get("Font")
	if !ok {
		t.Fatal("no Font resources")
	}
	fd, ok := out.Raw().Resolve(fontsObj).(*raw.DictObj)
	if !ok {
		t.Fatal("Font resource is not a dict")
	}
	entry, ok := fd.Get("EKF1")
	if !ok {
		t.Fatal("EKF1 not registered")
	}
	font, ok := out.Raw().Resolve(entry).(*raw.DictObj)
	if !ok {
		t.Fatal("EKF1 does not resolve to a dict")
	}
	if base, _ := raw.NameValue(font, "BaseFont"); base != "Helvetica-Bold" {
		t.Errorf("BaseFont = %q, want Helvetica-Bold", base)
	}
}

func TestExportFormFieldWidget(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindFormField,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 50, Y: 700, Width: 140, Height: 28},
		FormField: &element.FormFieldProps{FieldType: element.FieldText, Name: "customer", Value: "Ada"},
	})

	data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)

	root, _ := out.Raw().Trailer.Get("Root")
	catalog := out.Raw().Resolve(root).(*raw.DictObj)
	acroObj, ok := catalog.Get("AcroForm")
	if !ok {
		t.Fatal("catalog has no AcroForm")
	}
	acro := out.Raw().Resolve(acroObj).(*raw.DictObj)
	fieldsObj, _ := acro.Get("Fields")
	fields, ok := out.Raw().Resolve(fieldsObj).(*raw.ArrayObj)
	if !ok || fields.Len() != 1 {
		t.Fatalf("AcroForm fields = %v, want one entry", fieldsObj)
	}
	widget := out.Raw().Resolve(fields.Items[0]).(*raw.DictObj)
	if ft, _ := raw.NameValue(widget, "FT"); ft != "Tx" {
		t.Errorf("FT = %q, want Tx", ft)
	}
	name, _ := raw.DictValue[*raw.StringObj](widget, "T")
	if name == nil || string(name.Bytes) != "customer" {
		t.Errorf("T = %v, want customer", name)
	}
	val, _ := raw.DictValue[*raw.StringObj](widget, "V")
	if val == nil || string(val.Bytes) != "Ada" {
		t.Errorf("V = %v, want Ada", val)
	}
}

func TestExportFieldFormatter(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindFormField,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 50, Y: 700, Width: 140, Height: 28},
		FormField: &element.FormFieldProps{
			FieldType: element.FieldText,
			Name:      "total",
			Value:     "1234.5",
			Script:    "AFNumber_Format(2)",
		},
	})

	opts := Options{
		Timestamp: fixedStamp,
		FieldFormatter: func(f element.FormFieldProps) (string, error) {
			return "$1,234.50", nil
		},
	}
	data, err := New(doc, nil).Export(reg, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)
	root, _ := out.Raw().Trailer.Get("Root")
	catalog := out.Raw().Resolve(root).(*raw.DictObj)
	acro := out.Raw().Resolve(mustGet(t, catalog, "AcroForm")).(*raw.DictObj)
	fields := out.Raw().Resolve(mustGet(t, acro, "Fields")).(*raw.ArrayObj)
	widget := out.Raw().Resolve(fields.Items[0]).(*raw.DictObj)
	val, _ := raw.DictValue[*raw.StringObj](widget, "V")
	if val == nil || string(val.Bytes) != "$1,234.50" {
		t.Errorf("formatted V = %v, want $1,234.50", val)
	}
}

func TestExportWatermark(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()

	opts := Options{
		Timestamp: fixedStamp,
		Watermark: &Watermark{Text: "CONFIDENTIAL", Color: element.RGB{R: 0.8}},
	}
	data, err := New(doc, nil).Export(reg, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)
	ops, err := out.ContentOps(0)
	if err != nil {
		t.Fatal(err)
	}
	var sawAlpha bool
	var shown []byte
	for _, op := range ops {
		switch op.Operator {
		case "gs":
			sawAlpha = true
		case "Tj":
			shown, _ = op.String(0)
		}
	}
	if !sawAlpha {
		t.Error("watermark did not set an ExtGState")
	}
	if string(shown) != "CONFIDENTIAL" {
		t.Errorf("watermark text = %q", shown)
	}
}

func TestExportExtraPage(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()

	opts := Options{
		Timestamp: fixedStamp,
		ExtraPages: []ExtraPage{{
			Width:  612,
			Height: 792,
			Fonts:  map[string]string{"F1": "Helvetica"},
		}},
	}
	data, err := New(doc, nil).Export(reg, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	out := reload(t, data)
	if out.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", out.PageCount())
	}
}

func TestExportBadElementSkipped(t *testing.T) {
	doc := fixtureDoc(t, 1)
	reg := pages.New(1, nil)
	store := element.NewStore()
	store.Add(element.Element{
		Kind:      element.KindImage,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 10, Y: 10, Width: 100, Height: 100},
		Image:     &element.ImageProps{Data: []byte("not an image"), Format: "png"},
	})
	store.Add(element.Element{
		Kind:      element.KindShape,
		PageIndex: 0,
		Bounds:    element.Bounds{X: 5, Y: 5, Width: 40, Height: 40},
		Shape:     &element.ShapeProps{Kind: element.ShapeRectangle, StrokeColor: element.RGB{}, StrokeWidth: 1},
	})

	data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
	if err != nil {
		t.Fatalf("Export should skip the bad element, got %v", err)
	}
	out := reload(t, data)
	ops, err := out.ContentOps(0)
	if err != nil {
		t.Fatal(err)
	}
	var rects int
	for _, op := range ops {
		if op.Operator == "re" {
			rects++
		}
	}
	// original square plus the good overlay rectangle
	if rects != 2 {
		t.Errorf("got %d re ops, want 2", rects)
	}
}

func mustGet(t *testing.T, d *raw.DictObj, key string) raw.Object {
	t.Helper()
	v, ok := d.Get(key)
	if !ok {
		t.Fatalf("missing %s", key)
	}
	return v
}

func TestExportShapedMeasurementShiftsAlignment(t *testing.T) {
	if err := fonts.RegisterFace("Export Shaped", goregular.TTF); err != nil {
		t.Fatal(err)
	}
	build := func(family string) []byte {
		doc := fixtureDoc(t, 1)
		reg := pages.New(1, nil)
		store := element.NewStore()
		store.Add(element.Element{
			Kind:      element.KindText,
			PageIndex: 0,
			Bounds:    element.Bounds{X: 30, Y: 40, Width: 200, Height: 30},
			Text: &element.TextProps{
				Content:    "Hello, world",
				FontFamily: family,
				FontSize:   14,
				Alignment:  element.AlignCenter,
			},
		})
		data, err := New(doc, nil).Export(reg, store, Options{Timestamp: fixedStamp})
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	// Both families fall back to the Helvetica base font, so any byte
	// difference comes from the shaped centering offset.
	shaped := build("Export Shaped")
	metric := build("Some Unregistered Family")
	if bytes.Equal(shaped, metric) {
		t.Fatal("registered face did not change centered text layout")
	}
}
