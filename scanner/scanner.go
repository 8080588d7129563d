// Package scanner tokenizes PDF syntax from an io.ReaderAt. It buffers
// the input in fixed-size windows so object loading does not require the
// whole file in memory up front.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
)

// TokenType enumerates lexical token kinds.
type TokenType int

const (
	TokenDict     TokenType = iota // '<<'
	TokenDictEnd                   // '>>'
	TokenArray                     // '['
	TokenArrayEnd                  // ']'
	TokenName                      // '/Name'
	TokenString                    // literal or hex string
	TokenNumber                    // integer or real
	TokenBoolean                   // true / false
	TokenNull                      // null
	TokenRef                       // '5 0 R'
	TokenStream                    // stream payload
	TokenKeyword                   // obj, endobj, endstream, ...
)

// Token is one lexical unit. The populated fields depend on Type.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int // generation for TokenRef
	Pos   int64
}

// Scanner produces tokens from PDF data.
type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	// SetNextStreamLength tells the scanner the declared /Length of the
	// next stream keyword so it can slice the payload without searching
	// for endstream. Negative clears the hint.
	SetNextStreamLength(n int64)
}

// Config bounds scanning to protect against hostile inputs.
type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	WindowSize      int64
}

var (
	errStringTooLong = errors.New("scanner: string exceeds limit")
	errStreamTooLong = errors.New("scanner: stream exceeds limit")
)

type pdfScanner struct {
	reader        io.ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
}

// New returns a scanner over r.
func New(r io.ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errors.New("scanner: seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("scanner: seek out of range")
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictEnd, Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayEnd, Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if s.pos >= int64(len(s.data)) {
			if err := s.ensure(s.pos); err != nil {
				return err
			}
			if s.pos >= int64(len(s.data)) {
				return io.EOF
			}
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
				if s.pos >= int64(len(s.data)) {
					if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
						return err
					}
					if s.pos >= int64(len(s.data)) && s.eof {
						return io.EOF
					}
				}
			}
			continue
		}
		return nil
	}
}

func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || n == 0 {
		s.eof = true
		return nil
	}
	return err
}

func (s *pdfScanner) peek(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' {
			s.pos++
			out.WriteByte(s.hexNibble()<<4 | s.hexNibble())
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *pdfScanner) hexNibble() byte {
	if s.pos >= int64(len(s.data)) {
		return 0
	}
	c := s.data[s.pos]
	s.pos++
	return fromHex(c)
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			return Token{}, errors.New("scanner: unterminated literal string")
		}
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
				return Token{}, err
			}
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("scanner: unterminated literal string")
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				// line continuation; swallow optional LF
				s.pos++
				if s.peekCur() == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
		case '(':
			depth++
			buf.WriteByte(c)
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
			s.pos++
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, errStringTooLong
		}
	}
}

func (s *pdfScanner) peekCur() byte {
	if err := s.ensure(s.pos); err != nil {
		return 0
	}
	if s.pos >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos]
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			return Token{}, errors.New("scanner: unterminated hex string")
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			break
		}
		if !isWhitespace(c) {
			nibbles = append(nibbles, c)
		}
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(len(nibbles)/2) > s.cfg.MaxStringLength {
			return Token{}, errStringTooLong
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, '0')
	}
	out := make([]byte, 0, len(nibbles)/2)
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, fromHex(nibbles[i])<<4|fromHex(nibbles[i+1]))
	}
	return Token{Type: TokenString, Bytes: out, Pos: start}, nil
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		buf.WriteByte(c)
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

// scanStream consumes the payload following the stream keyword. With a
// declared length hint the payload is sliced directly; otherwise the
// scanner searches forward for a plausible endstream marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
		return Token{}, err
	}
	// The stream keyword must be followed by an EOL before the data.
	switch s.peekCur() {
	case '\r':
		s.pos++
		if s.peekCur() == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	}
	dataStart := s.pos
	if l := s.nextStreamLen; l >= 0 {
		s.nextStreamLen = -1
		if s.cfg.MaxStreamLength > 0 && l > s.cfg.MaxStreamLength {
			return Token{}, errStreamTooLong
		}
		if err := s.ensure(dataStart + l); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if dataStart+l > int64(len(s.data)) {
			l = int64(len(s.data)) - dataStart
		}
		payload := append([]byte(nil), s.data[dataStart:dataStart+l]...)
		s.pos = dataStart + l
		s.skipPastEndstream()
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
	needle := []byte("endstream")
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle))); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if i+int64(len(needle)) > int64(len(s.data)) {
			return Token{}, errors.New("scanner: endstream not found")
		}
		if s.cfg.MaxStreamLength > 0 && i-dataStart > s.cfg.MaxStreamLength {
			return Token{}, errStreamTooLong
		}
		if s.data[i] != 'e' || !bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			continue
		}
		after := i + int64(len(needle))
		if after < int64(len(s.data)) && !isDelimiter(s.data[after]) {
			continue
		}
		end := i
		// trim the EOL that separates data from the marker
		if end > dataStart && s.data[end-1] == '\n' {
			end--
		}
		if end > dataStart && s.data[end-1] == '\r' {
			end--
		}
		payload := append([]byte(nil), s.data[dataStart:end]...)
		s.pos = after
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
}

func (s *pdfScanner) skipPastEndstream() {
	needle := []byte("endstream")
	if err := s.ensure(s.pos + 2 + int64(len(needle))); err != nil && !errors.Is(err, io.EOF) {
		return
	}
	// optional EOL after the payload
	if s.peekCur() == '\r' {
		s.pos++
	}
	if s.peekCur() == '\n' {
		s.pos++
	}
	if s.pos+int64(len(needle)) <= int64(len(s.data)) &&
		bytes.Equal(s.data[s.pos:s.pos+int64(len(needle))], needle) {
		s.pos += int64(len(needle))
		return
	}
	if idx := bytes.Index(s.data[s.pos:], needle); idx >= 0 {
		s.pos += int64(idx + len(needle))
	}
}

// scanNumberOrRef reads a number and, when followed by a second integer
// and the R keyword, collapses the triple into a reference token.
func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberString()
	if first == "" {
		s.pos++
		return Token{}, errors.New("scanner: invalid number")
	}
	save := s.pos
	if i1, err := strconv.ParseInt(first, 10, 64); err == nil {
		_ = s.skipWSAndComments()
		second := s.scanNumberString()
		if second != "" {
			if i2, err := strconv.ParseInt(second, 10, 64); err == nil {
				_ = s.skipWSAndComments()
				if s.peekCur() == 'R' && !isRegular(s.peek(1)) {
					s.pos++
					return Token{Type: TokenRef, Int: i1, Gen: int(i2), Pos: start}, nil
				}
			}
		}
		s.pos = save
		return Token{Type: TokenNumber, Int: i1, IsInt: true, Pos: start}, nil
	}
	s.pos = save
	f, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return Token{}, errors.New("scanner: invalid number " + first)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return ""
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if !isNumberStart(c) {
			break
		}
		if c >= '0' && c <= '9' {
			seenDigit = true
		}
		buf.WriteByte(c)
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func isRegular(c byte) bool { return !isDelimiter(c) }

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}
