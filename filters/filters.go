// Package filters decodes PDF stream filters. Decoders are looked up by
// filter name and chained in declaration order.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
)

// Limits bounds decoding output so a small compressed stream cannot
// expand without bound.
type Limits struct {
	MaxDecodedBytes int64
}

// DefaultLimits allows up to 256 MiB of decoded output per stream.
var DefaultLimits = Limits{MaxDecodedBytes: 256 << 20}

var (
	ErrUnsupportedFilter = errors.New("filters: unsupported filter")
	ErrDecodedTooLarge   = errors.New("filters: decoded data exceeds limit")
)

// Decoder transforms one encoded stream into its decoded form.
type Decoder interface {
	Name() string
	Decode(data []byte, limits Limits) ([]byte, error)
}

var registry = map[string]Decoder{}

func register(d Decoder) { registry[d.Name()] = d }

func init() {
	register(flateDecoder{})
	register(asciiHexDecoder{})
	register(ascii85Decoder{})
	register(runLengthDecoder{})
}

// Supported reports whether a decoder is registered for name.
func Supported(name string) bool {
	_, ok := registry[name]
	return ok
}

// Decode applies the named filters in order.
func Decode(data []byte, names []string, limits Limits) ([]byte, error) {
	out := data
	for _, name := range names {
		d, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		var err error
		out, err = d.Decode(out, limits)
		if err != nil {
			return nil, fmt.Errorf("filters: %s: %w", name, err)
		}
	}
	return out, nil
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(data []byte, limits Limits) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readBounded(r, limits)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(data []byte, limits Limits) ([]byte, error) {
	var out bytes.Buffer
	var hi byte
	haveHi := false
	for _, c := range data {
		switch {
		case c == '>':
			if haveHi {
				out.WriteByte(hi << 4)
			}
			return out.Bytes(), nil
		case isHexDigit(c):
			if haveHi {
				out.WriteByte(hi<<4 | hexVal(c))
				haveHi = false
			} else {
				hi = hexVal(c)
				haveHi = true
			}
		case isWhitespace(c):
		default:
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		if limits.MaxDecodedBytes > 0 && int64(out.Len()) > limits.MaxDecodedBytes {
			return nil, ErrDecodedTooLarge
		}
	}
	if haveHi {
		out.WriteByte(hi << 4)
	}
	return out.Bytes(), nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(data []byte, limits Limits) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	r := ascii85.NewDecoder(bytes.NewReader(data))
	return readBounded(r, limits)
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(data []byte, limits Limits) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		n := data[i]
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			count := int(n) + 1
			if i+count > len(data) {
				return nil, errors.New("truncated literal run")
			}
			out.Write(data[i : i+count])
			i += count
		default:
			if i >= len(data) {
				return nil, errors.New("truncated repeat run")
			}
			count := 257 - int(n)
			for k := 0; k < count; k++ {
				out.WriteByte(data[i])
			}
			i++
		}
		if limits.MaxDecodedBytes > 0 && int64(out.Len()) > limits.MaxDecodedBytes {
			return nil, ErrDecodedTooLarge
		}
	}
	return out.Bytes(), nil
}

func readBounded(r io.Reader, limits Limits) ([]byte, error) {
	max := limits.MaxDecodedBytes
	if max <= 0 {
		max = DefaultLimits.MaxDecodedBytes
	}
	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, ErrDecodedTooLarge
	}
	return out.Bytes(), nil
}

// FlateEncode compresses data with zlib. The writer uses it for content
// streams it emits itself.
func FlateEncode(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w := zlib.NewWriter(&out)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c >= 'a':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
