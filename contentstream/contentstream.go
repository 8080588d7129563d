// Package contentstream parses and serializes PDF content stream
// operations. An operation is an operator keyword with the operands
// that preceded it.
package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/scanner"
)

// Operation is one operator with its operands in source order.
type Operation struct {
	Operator string
	Operands []raw.Object
}

// Float returns operand i as a float64.
func (op Operation) Float(i int) (float64, bool) {
	if i < 0 || i >= len(op.Operands) {
		return 0, false
	}
	n, ok := op.Operands[i].(*raw.NumberObj)
	if !ok {
		return 0, false
	}
	if n.IsInt {
		return float64(n.I), true
	}
	return n.F, true
}

// Name returns operand i as a name value.
func (op Operation) Name(i int) (string, bool) {
	if i < 0 || i >= len(op.Operands) {
		return "", false
	}
	n, ok := op.Operands[i].(*raw.NameObj)
	if !ok {
		return "", false
	}
	return n.Value, true
}

// String returns operand i as string bytes.
func (op Operation) String(i int) ([]byte, bool) {
	if i < 0 || i >= len(op.Operands) {
		return nil, false
	}
	s, ok := op.Operands[i].(*raw.StringObj)
	if !ok {
		return nil, false
	}
	return s.Bytes, true
}

const maxOperands = 256

// Parse tokenizes data into operations. Inline images (BI..EI) are
// captured whole as a single EI operation carrying the raw bytes.
func Parse(data []byte) ([]Operation, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			if tok.Str == "BI" {
				img, err := captureInlineImage(data, sc)
				if err != nil {
					return nil, err
				}
				ops = append(ops, img)
				operands = nil
				continue
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
			operands = nil
		case scanner.TokenStream:
			return nil, errors.New("contentstream: unexpected stream token")
		default:
			obj, err := objectFromToken(tok, sc)
			if err != nil {
				return nil, err
			}
			operands = append(operands, obj)
			if len(operands) > maxOperands {
				return nil, errors.New("contentstream: operand overflow")
			}
		}
	}
}

func objectFromToken(tok scanner.Token, sc scanner.Scanner) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.Int(tok.Int), nil
		}
		return raw.Real(tok.Float), nil
	case scanner.TokenName:
		return raw.Name(tok.Str), nil
	case scanner.TokenString:
		return &raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return &raw.NullObj{}, nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenArrayEnd {
				return arr, nil
			}
			el, err := objectFromToken(t, sc)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, el)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenDictEnd {
				return d, nil
			}
			if t.Type != scanner.TokenName {
				return nil, fmt.Errorf("contentstream: dict key is %v, want name", t.Type)
			}
			vt, err := sc.Next()
			if err != nil {
				return nil, err
			}
			val, err := objectFromToken(vt, sc)
			if err != nil {
				return nil, err
			}
			d.Set(t.Str, val)
		}
	default:
		return nil, fmt.Errorf("contentstream: unexpected token %v", tok.Type)
	}
}

// captureInlineImage consumes everything from after BI through EI and
// returns it as one opaque operation so round trips preserve the bytes.
func captureInlineImage(data []byte, sc scanner.Scanner) (Operation, error) {
	start := sc.Position()
	rest := data[start:]
	idx := bytes.Index(rest, []byte("EI"))
	for idx >= 0 {
		after := int(start) + idx + 2
		if after >= len(data) || isContentWS(data[after]) {
			break
		}
		next := bytes.Index(rest[idx+2:], []byte("EI"))
		if next < 0 {
			idx = -1
			break
		}
		idx += 2 + next
	}
	if idx < 0 {
		return Operation{}, errors.New("contentstream: unterminated inline image")
	}
	payload := append([]byte(nil), rest[:idx]...)
	if err := sc.SeekTo(start + int64(idx) + 2); err != nil {
		return Operation{}, err
	}
	return Operation{
		Operator: "EI",
		Operands: []raw.Object{&raw.StringObj{Bytes: payload}},
	}, nil
}

func isContentWS(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

// Serialize writes operations back to content stream syntax, one
// operation per line.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "EI" && len(op.Operands) == 1 {
			if s, ok := op.Operands[0].(*raw.StringObj); ok {
				buf.WriteString("BI")
				buf.Write(s.Bytes)
				buf.WriteString("EI\n")
				continue
			}
		}
		for _, operand := range op.Operands {
			raw.AppendObject(&buf, operand)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
