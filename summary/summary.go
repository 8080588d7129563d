// Package summary builds the optional annotation summary appended to an
// export: one or more generated pages listing every sticky note in
// display order. Note bodies are markdown-aware.
package summary

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdfpage/editkit/contentstream"
	"github.com/pdfpage/editkit/coords"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/export"
	"github.com/pdfpage/editkit/fonts"
	"github.com/pdfpage/editkit/pages"
)

// Elements is the read side of the element model the summary consumes.
type Elements interface {
	ForPage(pageSourceIndex int) []element.Element
}

// Options controls summary layout.
type Options struct {
	Title      string  // default "Annotation Summary"
	PageWidth  float64 // default 612
	PageHeight float64 // default 792
	Margin     float64 // default 54
	FontSize   float64 // default 11
}

func (o *Options) fill() {
	if o.Title == "" {
		o.Title = "Annotation Summary"
	}
	if o.PageWidth <= 0 {
		o.PageWidth = 612
	}
	if o.PageHeight <= 0 {
		o.PageHeight = 792
	}
	if o.Margin <= 0 {
		o.Margin = 54
	}
	if o.FontSize <= 0 {
		o.FontSize = 11
	}
}

const (
	fontRegular = "F1"
	fontBold    = "F2"
)

var summaryFonts = map[string]string{
	fontRegular: "Helvetica",
	fontBold:    "Helvetica-Bold",
}

// line is one laid-out row of text.
type line struct {
	text   string
	size   float64
	bold   bool
	indent float64
}

// Build collects sticky notes from the visible pages and lays them out
// onto generated pages. The result is empty when no page carries notes.
func Build(reg *pages.Registry, els Elements, opts Options) ([]export.ExtraPage, error) {
	opts.fill()

	var lines []line
	for _, desc := range reg.Visible() {
		var notes []element.Element
		for _, el := range els.ForPage(desc.SourceIndex) {
			if el.Kind == element.KindStickyNote && el.Visible && el.Note.Content != "" {
				notes = append(notes, el)
			}
		}
		if len(notes) == 0 {
			continue
		}
		lines = append(lines, line{
			text: fmt.Sprintf("Page %d", desc.DisplayIndex+1),
			size: opts.FontSize * 1.3,
			bold: true,
		})
		for _, note := range notes {
			noteLines, err := noteBody(note.Note.Content, opts)
			if err != nil {
				return nil, fmt.Errorf("summary: %w", err)
			}
			lines = append(lines, noteLines...)
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	title := []line{{text: opts.Title, size: opts.FontSize * 1.8, bold: true}}
	return paginate(append(title, lines...), opts), nil
}

// noteBody renders one note's markdown through goldmark and flattens
// the resulting HTML into indented lines.
func noteBody(content string, opts Options) ([]line, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return nil, err
	}
	doc, err := html.Parse(&buf)
	if err != nil {
		return nil, err
	}
	var out []line
	walkHTML(doc, opts, &out)
	return out, nil
}

func walkHTML(n *html.Node, opts Options, out *[]line) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			appendWrapped(out, extractText(n), opts, opts.FontSize*1.15, true, 14)
			return
		case atom.P:
			appendWrapped(out, "• "+extractText(n), opts, opts.FontSize, false, 14)
			return
		case atom.Li:
			appendWrapped(out, "- "+extractText(n), opts, opts.FontSize, false, 28)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, opts, out)
	}
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// appendWrapped greedily wraps text to the content width.
func appendWrapped(out *[]line, text string, opts Options, size float64, bold bool, indent float64) {
	if text == "" {
		return
	}
	base := "Helvetica"
	if bold {
		base = "Helvetica-Bold"
	}
	maxWidth := opts.PageWidth - 2*opts.Margin - indent
	words := strings.Fields(text)
	current := ""
	for _, w := range words {
		candidate := w
		if current != "" {
			candidate = current + " " + w
		}
		if fonts.MeasureString(base, candidate, size) > maxWidth && current != "" {
			*out = append(*out, line{text: current, size: size, bold: bold, indent: indent})
			current = w
			continue
		}
		current = candidate
	}
	if current != "" {
		*out = append(*out, line{text: current, size: size, bold: bold, indent: indent})
	}
}

// paginate flows lines down the page, breaking to a fresh page when the
// bottom margin is reached.
func paginate(lines []line, opts Options) []export.ExtraPage {
	var out []export.ExtraPage
	em := contentstream.NewEmitter()
	cursorY := opts.PageHeight - opts.Margin

	flush := func() {
		out = append(out, export.ExtraPage{
			Width:  opts.PageWidth,
			Height: opts.PageHeight,
			Ops:    em.Ops(),
			Fonts:  summaryFonts,
		})
		em = contentstream.NewEmitter()
		cursorY = opts.PageHeight - opts.Margin
	}

	for _, l := range lines {
		lh := fonts.LineHeight(l.size)
		if cursorY-lh < opts.Margin {
			flush()
		}
		cursorY -= lh
		name := fontRegular
		if l.bold {
			name = fontBold
		}
		em.BeginText()
		em.SetFont(name, l.size)
		em.SetTextMatrix(coords.Translate(opts.Margin+l.indent, cursorY))
		em.ShowText([]byte(l.text))
		em.EndText()
	}
	flush()
	return out
}
