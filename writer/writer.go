// Package writer serializes a raw object table into a complete PDF
// file. Output is deterministic: objects are renumbered in a stable
// order, dictionary keys are sorted, and the file identifier is derived
// from the content itself.
package writer

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"sort"

	"github.com/pdfpage/editkit/raw"
)

// Options controls serialization.
type Options struct {
	// Version is the header version. Empty falls back to the document
	// version, then "1.7".
	Version string
}

// Serialize writes doc as a full PDF byte stream.
func Serialize(doc *raw.Document, opts Options) ([]byte, error) {
	if doc.Trailer == nil {
		return nil, fmt.Errorf("writer: document has no trailer")
	}
	version := opts.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.7"
	}

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	remap := make(map[raw.ObjectRef]int, len(refs))
	for i, ref := range refs {
		remap[ref] = i + 1
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// binary marker comment so transfer tools treat the file as binary
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	offsets := make([]int64, len(refs))
	for i, ref := range refs {
		offsets[i] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		if err := appendObject(&buf, doc.Objects[ref], remap); err != nil {
			return nil, fmt.Errorf("writer: object %d %d: %w", ref.Num, ref.Gen, err)
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := int64(buf.Len())
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(refs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := remapTrailer(doc.Trailer, remap)
	trailer.Set("Size", raw.Int(int64(len(refs)+1)))
	id := contentID(&buf)
	idArr := raw.NewArray()
	idArr.Items = append(idArr.Items, &raw.StringObj{Bytes: id, Hex: true}, &raw.StringObj{Bytes: id, Hex: true})
	trailer.Set("ID", idArr)

	buf.WriteString("trailer\n")
	var tbuf bytes.Buffer
	if err := appendObject(&tbuf, trailer, remap); err != nil {
		return nil, fmt.Errorf("writer: trailer: %w", err)
	}
	buf.Write(tbuf.Bytes())
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// contentID hashes the body so identical input states produce an
// identical file identifier.
func contentID(buf *bytes.Buffer) []byte {
	sum := md5.Sum(buf.Bytes())
	return sum[:]
}

func remapTrailer(trailer raw.Dictionary, remap map[raw.ObjectRef]int) *raw.DictObj {
	src, ok := trailer.(*raw.DictObj)
	if !ok {
		return raw.Dict()
	}
	out := raw.Dict()
	for k, v := range src.Entries {
		switch k {
		case "Prev", "XRefStm", "Size", "ID":
			// rebuilt or dropped; the output is a single-revision file
		default:
			out.Set(k, v)
		}
	}
	return out
}

// appendObject is raw.AppendObject plus reference remapping and stream
// framing.
func appendObject(buf *bytes.Buffer, obj raw.Object, remap map[raw.ObjectRef]int) error {
	switch v := obj.(type) {
	case *raw.RefObj:
		n, ok := remap[v.Ref]
		if !ok {
			// dangling references degrade to null rather than pointing
			// at an arbitrary renumbered object
			buf.WriteString("null")
			return nil
		}
		fmt.Fprintf(buf, "%d 0 R", n)
		return nil
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, el := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := appendObject(buf, el, remap); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case *raw.DictObj:
		return appendDict(buf, v, remap)
	case *raw.StreamObj:
		d := cloneShallow(v.Dict)
		d.Set("Length", raw.Int(int64(len(v.Data))))
		if err := appendDict(buf, d, remap); err != nil {
			return err
		}
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
		return nil
	default:
		raw.AppendObject(buf, obj)
		return nil
	}
}

func appendDict(buf *bytes.Buffer, d *raw.DictObj, remap map[raw.ObjectRef]int) error {
	keys := make([]string, 0, len(d.Entries))
	for k := range d.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteString(" /")
		writeNameBytes(buf, k)
		buf.WriteByte(' ')
		if err := appendObject(buf, d.Entries[k], remap); err != nil {
			return err
		}
	}
	buf.WriteString(" >>")
	return nil
}

func writeNameBytes(buf *bytes.Buffer, name string) {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7F || c == '#' || isDelim(c) {
			fmt.Fprintf(buf, "#%02X", c)
		} else {
			buf.WriteByte(c)
		}
	}
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func cloneShallow(d *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for k, v := range d.Entries {
		out.Set(k, v)
	}
	return out
}
