package raw

// Concrete object implementations.

// NameObj is a PDF name.
type NameObj struct{ Value string }

func (*NameObj) Type() string { return "name" }

// NumberObj is a PDF number, integer or real.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (*NumberObj) Type() string { return "number" }

// Float returns the numeric value regardless of representation.
func (n *NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// BoolObj is a PDF boolean.
type BoolObj struct{ Value bool }

func (*BoolObj) Type() string { return "boolean" }

// NullObj is the PDF null object.
type NullObj struct{}

func (*NullObj) Type() string { return "null" }

// StringObj is a PDF string. Hex records the source notation so the
// writer can round-trip binary strings readably.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (*StringObj) Type() string { return "string" }

// ArrayObj is a PDF array.
type ArrayObj struct{ Items []Object }

func (*ArrayObj) Type() string { return "array" }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// DictObj is a PDF dictionary. Entries may be read directly; Set keeps
// the map allocated lazily.
type DictObj struct{ Entries map[string]Object }

func (*DictObj) Type() string                    { return "dict" }
func (d *DictObj) Get(key string) (Object, bool) { o, ok := d.Entries[key]; return o, ok }
func (d *DictObj) Set(key string, value Object) {
	if d.Entries == nil {
		d.Entries = make(map[string]Object)
	}
	d.Entries[key] = value
}
func (d *DictObj) Delete(key string) { delete(d.Entries, key) }
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.Entries))
	for k := range d.Entries {
		keys = append(keys, k)
	}
	return keys
}
func (d *DictObj) Len() int { return len(d.Entries) }

// StreamObj is a raw stream plus its dictionary.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (*StreamObj) Type() string             { return "stream" }
func (s *StreamObj) Dictionary() Dictionary { return s.Dict }
func (s *StreamObj) RawData() []byte        { return s.Data }
func (s *StreamObj) Length() int64          { return int64(len(s.Data)) }

// RefObj is an indirect object reference.
type RefObj struct{ Ref ObjectRef }

func (*RefObj) Type() string { return "ref" }

// Constructors.

func Name(v string) *NameObj { return &NameObj{Value: v} }
func Int(i int64) *NumberObj { return &NumberObj{I: i, IsInt: true} }
func Real(f float64) *NumberObj {
	return &NumberObj{F: f}
}
func Bool(v bool) *BoolObj       { return &BoolObj{Value: v} }
func Str(b []byte) *StringObj    { return &StringObj{Bytes: b} }
func HexStr(b []byte) *StringObj { return &StringObj{Bytes: b, Hex: true} }
func NewArray() *ArrayObj        { return &ArrayObj{} }
func Dict() *DictObj             { return &DictObj{Entries: make(map[string]Object)} }
func Ref(r ObjectRef) *RefObj    { return &RefObj{Ref: r} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	return &StreamObj{Dict: dict, Data: data}
}

// DictValue reads a direct entry from d asserted to T. It resolves
// nothing; indirect entries need Document.Resolve first.
func DictValue[T Object](d *DictObj, key string) (T, bool) {
	var zero T
	if d == nil {
		return zero, false
	}
	v, ok := d.Entries[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// IntValue reads a direct integer entry from d, returning def when the
// key is absent or non-integer.
func IntValue(d *DictObj, key string, def int64) int64 {
	if n, ok := DictValue[*NumberObj](d, key); ok && n.IsInt {
		return n.I
	}
	return def
}

// NameValue reads a direct name entry from d.
func NameValue(d *DictObj, key string) (string, bool) {
	n, ok := DictValue[*NameObj](d, key)
	if !ok {
		return "", false
	}
	return n.Value, true
}
