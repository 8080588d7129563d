package writer

import (
	"bytes"
	"regexp"
	"strconv"
	"testing"

	"github.com/pdfpage/editkit/raw"
)

func minimalDoc() *raw.Document {
	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(raw.ObjectRef{Num: 2}))

	pages := raw.Dict()
	pages.Set("Type", raw.Name("Pages"))
	kids := raw.NewArray()
	kids.Items = append(kids.Items, raw.Ref(raw.ObjectRef{Num: 3}))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.Int(1))

	page := raw.Dict()
	page.Set("Type", raw.Name("Page"))
	page.Set("Parent", raw.Ref(raw.ObjectRef{Num: 2}))
	box := raw.NewArray()
	for _, v := range []int64{0, 0, 612, 792} {
		box.Items = append(box.Items, raw.Int(v))
	}
	page.Set("MediaBox", box)
	page.Set("Contents", raw.Ref(raw.ObjectRef{Num: 4}))

	content := raw.Dict()
	stream := &raw.StreamObj{Dict: content, Data: []byte("0 0 100 100 re S")}

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(raw.ObjectRef{Num: 1}))

	return &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1}: catalog,
			{Num: 2}: pages,
			{Num: 3}: page,
			{Num: 4}: stream,
		},
		Trailer: trailer,
		Version: "1.7",
	}
}

func TestSerializeDeterministic(t *testing.T) {
	doc := minimalDoc()
	a, err := Serialize(doc, Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b, err := Serialize(doc, Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("repeated serialization differs")
	}
}

func TestSerializeStructure(t *testing.T) {
	out, err := Serialize(minimalDoc(), Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.7\n")) {
		t.Errorf("header: %q", out[:16])
	}
	if !bytes.Contains(out, []byte("stream\n0 0 100 100 re S\nendstream")) {
		t.Error("stream framing missing")
	}
	if !bytes.Contains(out, []byte("/Length 16")) {
		t.Error("stream length not set")
	}
	m := regexp.MustCompile(`startxref\n(\d+)\n%%EOF`).FindSubmatch(out)
	if m == nil {
		t.Fatal("no startxref")
	}
	off, _ := strconv.Atoi(string(m[1]))
	if !bytes.HasPrefix(out[off:], []byte("xref\n")) {
		t.Errorf("startxref %d does not point at xref table", off)
	}
	if !bytes.Contains(out, []byte("/Size 5")) {
		t.Error("trailer size missing")
	}
}

func TestSerializeRemapsSparseNumbers(t *testing.T) {
	doc := minimalDoc()
	// renumber source objects sparsely; output must be dense from 1
	sparse := map[raw.ObjectRef]raw.Object{}
	for ref, obj := range doc.Objects {
		sparse[raw.ObjectRef{Num: ref.Num * 10}] = obj
	}
	remapRefs(sparse)
	doc.Objects = sparse
	doc.Trailer.(*raw.DictObj).Set("Root", raw.Ref(raw.ObjectRef{Num: 10}))

	out, err := Serialize(doc, Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for n := 1; n <= 4; n++ {
		if !bytes.Contains(out, []byte("\n"+strconv.Itoa(n)+" 0 obj\n")) {
			t.Errorf("object %d missing", n)
		}
	}
	if bytes.Contains(out, []byte("40 0 obj")) {
		t.Error("source numbering leaked into output")
	}
}

// remapRefs rewrites the fixture's internal references to the sparse
// numbering used by TestSerializeRemapsSparseNumbers.
func remapRefs(objs map[raw.ObjectRef]raw.Object) {
	var walk func(obj raw.Object)
	walk = func(obj raw.Object) {
		switch v := obj.(type) {
		case *raw.RefObj:
			v.Ref.Num *= 10
		case *raw.ArrayObj:
			for _, el := range v.Items {
				walk(el)
			}
		case *raw.DictObj:
			for _, el := range v.Entries {
				walk(el)
			}
		case *raw.StreamObj:
			walk(v.Dict)
		}
	}
	for _, obj := range objs {
		walk(obj)
	}
}

func TestDanglingRefWritesNull(t *testing.T) {
	doc := minimalDoc()
	doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj).Set("Annots", raw.Ref(raw.ObjectRef{Num: 99}))
	out, err := Serialize(doc, Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Contains(out, []byte("/Annots null")) {
		t.Error("dangling reference not nulled")
	}
}
