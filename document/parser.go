package document

import (
	"errors"
	"fmt"
	"io"

	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/scanner"
)

// objectParser assembles raw objects from scanner tokens. It keeps a
// one-token pushback so indirect object headers can be detected without
// consuming the following body token.
type objectParser struct {
	sc     scanner.Scanner
	pushed *scanner.Token
}

func newObjectParser(sc scanner.Scanner) *objectParser {
	return &objectParser{sc: sc}
}

func (p *objectParser) next() (scanner.Token, error) {
	if p.pushed != nil {
		tok := *p.pushed
		p.pushed = nil
		return tok, nil
	}
	return p.sc.Next()
}

func (p *objectParser) unread(tok scanner.Token) { p.pushed = &tok }

// parseIndirect parses "N G obj <body> endobj" at the scanner's current
// position. Stream bodies resolve /Length through lookup when the value
// is an indirect reference.
func (p *objectParser) parseIndirect(lookup func(raw.ObjectRef) (raw.Object, bool)) (raw.ObjectRef, raw.Object, error) {
	numTok, err := p.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return raw.ObjectRef{}, nil, fmt.Errorf("document: object header starts with %v", numTok.Type)
	}
	genTok, err := p.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return raw.ObjectRef{}, nil, errors.New("document: malformed object header")
	}
	kw, err := p.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return raw.ObjectRef{}, nil, errors.New("document: missing obj keyword")
	}
	ref := raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	body, err := p.parseObject()
	if err != nil {
		return raw.ObjectRef{}, nil, fmt.Errorf("document: object %d %d: %w", ref.Num, ref.Gen, err)
	}

	// A dictionary may be followed by a stream payload.
	if dict, ok := body.(*raw.DictObj); ok {
		if n, ok := streamLength(dict, lookup); ok {
			p.sc.SetNextStreamLength(n)
		}
		tok, err := p.next()
		if err != nil && !errors.Is(err, io.EOF) {
			return raw.ObjectRef{}, nil, err
		}
		if err == nil {
			if tok.Type == scanner.TokenStream {
				return ref, &raw.StreamObj{Dict: dict, Data: tok.Bytes}, nil
			}
			p.unread(tok)
		}
		p.sc.SetNextStreamLength(-1)
	}
	return ref, body, nil
}

func streamLength(dict *raw.DictObj, lookup func(raw.ObjectRef) (raw.Object, bool)) (int64, bool) {
	v, ok := dict.Entries["Length"]
	if !ok {
		return 0, false
	}
	if ref, isRef := v.(*raw.RefObj); isRef {
		if lookup == nil {
			return 0, false
		}
		resolved, found := lookup(ref.Ref)
		if !found {
			return 0, false
		}
		v = resolved
	}
	n, isNum := v.(*raw.NumberObj)
	if !isNum || !n.IsInt {
		return 0, false
	}
	return n.I, true
}

func (p *objectParser) parseObject() (raw.Object, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.objectFrom(tok)
}

func (p *objectParser) objectFrom(tok scanner.Token) (raw.Object, error) {
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
	case scanner.TokenRef:
		return raw.Ref(raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}), nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			t, err := p.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenArrayEnd {
				return arr, nil
			}
			el, err := p.objectFrom(t)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, el)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			t, err := p.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenDictEnd {
				return d, nil
			}
			if t.Type != scanner.TokenName {
				return nil, fmt.Errorf("dict key token %v", t.Type)
			}
			val, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			d.Set(t.Str, val)
		}
	default:
		return nil, fmt.Errorf("unexpected token %v", tok.Type)
	}
}
