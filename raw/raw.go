// Package raw models the PDF object layer: the eight primitive object
// types, indirect references, and the object table a parsed file resolves
// into. Nothing here interprets document semantics; that belongs to the
// document and export packages.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key string) (Object, bool)
	Set(key string, value Object)
	Keys() []string
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (possibly still encoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer Dictionary
	Version string // header version, e.g. "1.7"
}

// Resolve follows ref objects until a direct object is reached. Returns
// nil for dangling references.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(*RefObj)
		if !ok {
			return obj
		}
		obj, ok = d.Objects[ref.Ref]
		if !ok {
			return nil
		}
	}
	return nil
}
