package raw

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// AppendObject serializes obj into buf in PDF syntax. Dictionary keys
// are emitted in sorted order so output is deterministic. Streams are
// not valid here; the caller owns stream framing.
func AppendObject(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case nil, *NullObj:
		buf.WriteString("null")
	case *BoolObj:
		if v.Value {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case *NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(FormatReal(v.F))
		}
	case *NameObj:
		buf.WriteByte('/')
		appendNameBytes(buf, v.Value)
	case *StringObj:
		if v.Hex {
			buf.WriteByte('<')
			for _, b := range v.Bytes {
				fmt.Fprintf(buf, "%02X", b)
			}
			buf.WriteByte('>')
		} else {
			appendLiteralString(buf, v.Bytes)
		}
	case *ArrayObj:
		buf.WriteByte('[')
		for i, el := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			AppendObject(buf, el)
		}
		buf.WriteByte(']')
	case *DictObj:
		AppendDict(buf, v)
	case *RefObj:
		fmt.Fprintf(buf, "%d %d R", v.Ref.Num, v.Ref.Gen)
	default:
		buf.WriteString("null")
	}
}

// AppendDict serializes a dictionary with sorted keys.
func AppendDict(buf *bytes.Buffer, d *DictObj) {
	keys := make([]string, 0, len(d.Entries))
	for k := range d.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteString(" /")
		appendNameBytes(buf, k)
		buf.WriteByte(' ')
		AppendObject(buf, d.Entries[k])
	}
	buf.WriteString(" >>")
}

// FormatReal prints a real number with trailing zeros stripped, matching
// the compact form most producers emit.
func FormatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = trimTrailing(s)
	if s == "-0" {
		s = "0"
	}
	return s
}

func trimTrailing(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

func appendNameBytes(buf *bytes.Buffer, name string) {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7F || isNameDelimiter(c) || c == '#' {
			fmt.Fprintf(buf, "#%02X", c)
		} else {
			buf.WriteByte(c)
		}
	}
}

func isNameDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func appendLiteralString(buf *bytes.Buffer, data []byte) {
	buf.WriteByte('(')
	for _, c := range data {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7F {
				fmt.Fprintf(buf, "\\%03o", c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte(')')
}
