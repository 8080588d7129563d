package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	s := New(bytes.NewReader([]byte(src)), Config{})
	var toks []Token
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return toks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		toks = append(toks, tok)
	}
}

func TestScanBasicObjects(t *testing.T) {
	toks := scanAll(t, "<< /Type /Page /Count 3 /MediaBox [0 0 612 792] >>")
	want := []TokenType{
		TokenDict,
		TokenName, TokenName,
		TokenName, TokenNumber,
		TokenName, TokenArray, TokenNumber, TokenNumber, TokenNumber, TokenNumber, TokenArrayEnd,
		TokenDictEnd,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: type %v, want %v", i, toks[i].Type, w)
		}
	}
	if toks[1].Str != "Type" || toks[2].Str != "Page" {
		t.Errorf("names: %q %q", toks[1].Str, toks[2].Str)
	}
	if !toks[4].IsInt || toks[4].Int != 3 {
		t.Errorf("count: %+v", toks[4])
	}
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, "42 -17 3.14 -.5 +2")
	if len(toks) != 5 {
		t.Fatalf("got %d tokens", len(toks))
	}
	if !toks[0].IsInt || toks[0].Int != 42 {
		t.Errorf("tok 0: %+v", toks[0])
	}
	if !toks[1].IsInt || toks[1].Int != -17 {
		t.Errorf("tok 1: %+v", toks[1])
	}
	if toks[2].IsInt || toks[2].Float != 3.14 {
		t.Errorf("tok 2: %+v", toks[2])
	}
	if toks[3].Float != -0.5 {
		t.Errorf("tok 3: %+v", toks[3])
	}
}

func TestScanReference(t *testing.T) {
	toks := scanAll(t, "/Parent 12 0 R /Count 2")
	if len(toks) != 4 {
		t.Fatalf("got %d tokens: %+v", len(toks), toks)
	}
	if toks[1].Type != TokenRef || toks[1].Int != 12 || toks[1].Gen != 0 {
		t.Errorf("ref: %+v", toks[1])
	}
	if toks[3].Type != TokenNumber || toks[3].Int != 2 {
		t.Errorf("count: %+v", toks[3])
	}
}

func TestScanLiteralString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(hello)", "hello"},
		{"(nested (paren) ok)", "nested (paren) ok"},
		{`(line\nbreak)`, "line\nbreak"},
		{`(\101\102)`, "AB"},
		{`(esc\)close)`, "esc)close"},
	}
	for _, c := range cases {
		toks := scanAll(t, c.in)
		if len(toks) != 1 || toks[0].Type != TokenString {
			t.Fatalf("%q: tokens %+v", c.in, toks)
		}
		if string(toks[0].Bytes) != c.want {
			t.Errorf("%q: got %q, want %q", c.in, toks[0].Bytes, c.want)
		}
	}
}

func TestScanHexString(t *testing.T) {
	toks := scanAll(t, "<48 65 6C 6C 6F> <414>")
	if len(toks) != 2 {
		t.Fatalf("got %d tokens", len(toks))
	}
	if string(toks[0].Bytes) != "Hello" {
		t.Errorf("got %q", toks[0].Bytes)
	}
	// odd nibble count is padded with zero
	if !bytes.Equal(toks[1].Bytes, []byte{0x41, 0x40}) {
		t.Errorf("got % x", toks[1].Bytes)
	}
}

func TestScanNameWithHexEscape(t *testing.T) {
	toks := scanAll(t, "/A#20B")
	if len(toks) != 1 || toks[0].Str != "A B" {
		t.Fatalf("got %+v", toks)
	}
}

func TestScanStreamWithLength(t *testing.T) {
	src := "stream\nabc endstream def\nendstream"
	s := New(bytes.NewReader([]byte(src)), Config{})
	s.SetNextStreamLength(18)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenStream {
		t.Fatalf("type %v", tok.Type)
	}
	if string(tok.Bytes) != "abc endstream def\n" {
		t.Errorf("payload %q", tok.Bytes)
	}
}

func TestScanStreamWithoutLength(t *testing.T) {
	src := "stream\npayload bytes\nendstream"
	s := New(bytes.NewReader([]byte(src)), Config{})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(tok.Bytes) != "payload bytes" {
		t.Errorf("payload %q", tok.Bytes)
	}
}

func TestScanComments(t *testing.T) {
	toks := scanAll(t, "% header comment\n42 % trailing\n7")
	if len(toks) != 2 || toks[0].Int != 42 || toks[1].Int != 7 {
		t.Fatalf("got %+v", toks)
	}
}

func TestStringLimit(t *testing.T) {
	s := New(bytes.NewReader([]byte("(aaaaaaaaaa)")), Config{MaxStringLength: 4})
	if _, err := s.Next(); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestSeekTo(t *testing.T) {
	src := "111 222 333"
	s := New(bytes.NewReader([]byte(src)), Config{})
	if err := s.SeekTo(4); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Int != 222 {
		t.Errorf("got %d", tok.Int)
	}
}
