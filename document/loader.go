package document

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pdfpage/editkit/observability"
	"github.com/pdfpage/editkit/raw"
	"github.com/pdfpage/editkit/scanner"
)

// Load errors are fatal to the editing session. Callers surface them
// with a retry affordance, no partial document is returned.
var (
	ErrNotPDF      = errors.New("document: missing %PDF header")
	ErrNoPages     = errors.New("document: no page tree")
	ErrNoXref      = errors.New("document: cross-reference table not found")
	ErrEmptyInput  = errors.New("document: empty input")
	ErrEncrypted   = errors.New("document: encrypted files are not supported")
	ErrTooManyObjs = errors.New("document: object count exceeds limit")
)

// Config bounds loading.
type Config struct {
	MaxObjects   int
	ScannerLimit scanner.Config
	Logger       observability.Logger
}

// DefaultConfig is suitable for interactive editing of typical files.
func DefaultConfig() Config {
	return Config{
		MaxObjects: 1 << 20,
		ScannerLimit: scanner.Config{
			MaxStringLength: 16 << 20,
			MaxStreamLength: 512 << 20,
		},
		Logger: observability.NopLogger{},
	}
}

var objHeaderRe = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// Load parses data into a Document. The byte slice is retained and must
// not be mutated by the caller afterwards.
func Load(data []byte, cfg Config) (*Document, error) {
	start := time.Now()
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	headerAt := bytes.Index(data, []byte("%PDF-"))
	if headerAt < 0 || headerAt > 1024 {
		return nil, ErrNotPDF
	}
	version := "1.4"
	if headerAt+8 <= len(data) {
		version = string(data[headerAt+5 : headerAt+8])
	}

	rd := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Version: version,
	}

	offsets, trailer, xrefErr := readXrefChain(data)
	if xrefErr == nil {
		if err := loadObjects(data, offsets, rd, cfg); err != nil {
			xrefErr = err
		} else {
			rd.Trailer = trailer
		}
	}
	if xrefErr != nil {
		log.Warn("xref unusable, scanning for objects", observability.Error("err", xrefErr))
		if err := repairScan(data, rd, cfg); err != nil {
			return nil, err
		}
	}
	if rd.Trailer == nil {
		return nil, ErrNoXref
	}
	if _, ok := rd.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}

	doc := &Document{data: data, raw: rd, log: log}
	if err := doc.buildPageList(); err != nil {
		return nil, err
	}
	log.Info("document loaded",
		observability.Int(observability.MetricPageCount, len(doc.pages)),
		observability.Int64(observability.MetricLoadTime, time.Since(start).Milliseconds()))
	return doc, nil
}

// readXrefChain follows startxref and /Prev links through classic
// cross-reference tables. Later tables win for duplicate entries.
func readXrefChain(data []byte) (map[raw.ObjectRef]int64, raw.Dictionary, error) {
	tailStart := len(data) - 2048
	if tailStart < 0 {
		tailStart = 0
	}
	idx := bytes.LastIndex(data[tailStart:], []byte("startxref"))
	if idx < 0 {
		return nil, nil, ErrNoXref
	}
	rest := data[tailStart+idx+len("startxref"):]
	offset, err := firstInt(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("document: bad startxref: %w", err)
	}

	offsets := make(map[raw.ObjectRef]int64)
	var trailer raw.Dictionary
	seen := make(map[int64]bool)
	for offset >= 0 {
		if seen[offset] || offset >= int64(len(data)) {
			break
		}
		seen[offset] = true
		entries, tdict, err := readXrefSection(data, offset)
		if err != nil {
			return nil, nil, err
		}
		// Earlier sections in the chain are newer; keep first seen.
		for ref, off := range entries {
			if _, ok := offsets[ref]; !ok {
				offsets[ref] = off
			}
		}
		if trailer == nil {
			trailer = tdict
		}
		offset = -1
		if prev, ok := raw.DictValue[*raw.NumberObj](tdict.(*raw.DictObj), "Prev"); ok && prev.IsInt {
			offset = prev.I
		}
	}
	if trailer == nil {
		return nil, nil, ErrNoXref
	}
	return offsets, trailer, nil
}

func readXrefSection(data []byte, offset int64) (map[raw.ObjectRef]int64, raw.Dictionary, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := sc.SeekTo(offset); err != nil {
		return nil, nil, err
	}
	tok, err := sc.Next()
	if err != nil {
		return nil, nil, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "xref" {
		// Cross-reference streams are a 1.5 feature this loader does
		// not read; the repair scan handles those files instead.
		return nil, nil, fmt.Errorf("document: no xref table at %d", offset)
	}
	entries := make(map[raw.ObjectRef]int64)
	for {
		tok, err = sc.Next()
		if err != nil {
			return nil, nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, nil, errors.New("document: malformed xref subsection")
		}
		first := tok.Int
		tok, err = sc.Next()
		if err != nil {
			return nil, nil, err
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, nil, errors.New("document: malformed xref subsection")
		}
		count := tok.Int
		for i := int64(0); i < count; i++ {
			offTok, err := sc.Next()
			if err != nil {
				return nil, nil, err
			}
			genTok, err := sc.Next()
			if err != nil {
				return nil, nil, err
			}
			kindTok, err := sc.Next()
			if err != nil {
				return nil, nil, err
			}
			if kindTok.Type == scanner.TokenKeyword && kindTok.Str == "n" {
				ref := raw.ObjectRef{Num: int(first + i), Gen: int(genTok.Int)}
				entries[ref] = offTok.Int
			}
		}
	}
	p := newObjectParser(sc)
	tdict, err := p.parseObject()
	if err != nil {
		return nil, nil, fmt.Errorf("document: trailer: %w", err)
	}
	d, ok := tdict.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("document: trailer is not a dictionary")
	}
	return entries, d, nil
}

func loadObjects(data []byte, offsets map[raw.ObjectRef]int64, rd *raw.Document, cfg Config) error {
	if cfg.MaxObjects > 0 && len(offsets) > cfg.MaxObjects {
		return ErrTooManyObjs
	}
	lookup := func(ref raw.ObjectRef) (raw.Object, bool) {
		if obj, ok := rd.Objects[ref]; ok {
			return obj, true
		}
		off, ok := offsets[ref]
		if !ok {
			return nil, false
		}
		obj, err := parseObjectAt(data, off, cfg, nil)
		if err != nil {
			return nil, false
		}
		return obj, true
	}
	for ref, off := range offsets {
		obj, err := parseObjectAt(data, off, cfg, lookup)
		if err != nil {
			return fmt.Errorf("document: object %d %d at %d: %w", ref.Num, ref.Gen, off, err)
		}
		rd.Objects[ref] = obj
	}
	return nil
}

func parseObjectAt(data []byte, offset int64, cfg Config, lookup func(raw.ObjectRef) (raw.Object, bool)) (raw.Object, error) {
	sc := scanner.New(bytes.NewReader(data), cfg.ScannerLimit)
	if err := sc.SeekTo(offset); err != nil {
		return nil, err
	}
	p := newObjectParser(sc)
	_, obj, err := p.parseIndirect(lookup)
	return obj, err
}

// repairScan rebuilds the object table by scanning for indirect object
// headers. Used when the xref chain is missing or lies.
func repairScan(data []byte, rd *raw.Document, cfg Config) error {
	matches := objHeaderRe.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return ErrNoXref
	}
	if cfg.MaxObjects > 0 && len(matches) > cfg.MaxObjects {
		return ErrTooManyObjs
	}
	offsets := make(map[raw.ObjectRef]int64, len(matches))
	for _, m := range matches {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		// Later definitions shadow earlier ones.
		offsets[raw.ObjectRef{Num: num, Gen: gen}] = int64(m[0])
	}
	lookup := func(ref raw.ObjectRef) (raw.Object, bool) {
		off, ok := offsets[ref]
		if !ok {
			return nil, false
		}
		obj, err := parseObjectAt(data, off, cfg, nil)
		return obj, err == nil
	}
	for ref, off := range offsets {
		obj, err := parseObjectAt(data, off, cfg, lookup)
		if err != nil {
			// Salvage what parses; a later page-list walk decides
			// whether enough survived.
			continue
		}
		rd.Objects[ref] = obj
	}
	rd.Trailer = findTrailer(data, rd)
	if rd.Trailer == nil {
		return ErrNoXref
	}
	return nil
}

// findTrailer looks for a trailer dictionary near the end of the file,
// falling back to synthesizing one from a catalog object.
func findTrailer(data []byte, rd *raw.Document) raw.Dictionary {
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		sc := scanner.New(bytes.NewReader(data), scanner.Config{})
		if sc.SeekTo(int64(idx+len("trailer"))) == nil {
			if obj, err := newObjectParser(sc).parseObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					if _, hasRoot := d.Get("Root"); hasRoot {
						return d
					}
				}
			}
		}
	}
	for ref, obj := range rd.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if t, ok := raw.NameValue(d, "Type"); ok && t == "Catalog" {
			synth := raw.Dict()
			synth.Set("Root", raw.Ref(ref))
			synth.Set("Size", raw.Int(int64(len(rd.Objects)+1)))
			return synth
		}
	}
	return nil
}

func firstInt(b []byte) (int64, error) {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\r' || b[i] == '\n' || b[i] == '\t') {
		i++
	}
	j := i
	for j < len(b) && b[j] >= '0' && b[j] <= '9' {
		j++
	}
	if j == i {
		return 0, errors.New("no integer")
	}
	return strconv.ParseInt(string(b[i:j]), 10, 64)
}
