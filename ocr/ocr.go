// Package ocr defines the recognition contract used to prefill text
// elements from a rendered page raster: one image in, one structured
// result out. The tesseract subpackage provides the default engine.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/pdfpage/editkit/render"
)

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region is a rectangle in pixel coordinates, origin at the image's
// upper-left corner.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID string
	// Image is the encoded payload in Format.
	Image  []byte
	Format ImageFormat
	// PageIndex links the input back to the source page it was
	// rendered from.
	PageIndex int
	// Scale is the render scale the raster was produced at, used to
	// map recognized pixel boxes back to page units.
	Scale float64
	// DPI hints the effective resolution; zero means unknown.
	DPI int
	// Languages holds trained-data hints such as "eng".
	Languages []string
	// Region restricts recognition to a subsection. Nil processes the
	// full image.
	Region *Region
	// Metadata passes engine-specific variables through without
	// widening the API.
	Metadata map[string]string
}

// TextWord is a single recognized token.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words sharing a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines forming a logical block.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one input.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Engine is the simplest provider contract.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine amortizes setup cost over multiple inputs.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the process-wide engine. The tesseract
// subpackage installs itself here on import.
func DefaultEngine() Engine { return defaultEngine }

// SetDefaultEngine replaces the process-wide engine.
func SetDefaultEngine(engine Engine) { defaultEngine = engine }

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }
func (noopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}

// InputOption mutates an input built from a render surface.
type InputOption func(*Input)

// WithLanguages sets language hints.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion restricts recognition to region.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the DPI hint.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets provider-specific variables.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// InputFromSurface encodes a rendered page raster as a PNG input.
// Failed and rotated surfaces are rejected; recognition runs on the
// upright raster so boxes map straight back to element coordinates.
func InputFromSurface(sf *render.Surface, opts ...InputOption) (Input, error) {
	if sf == nil || sf.Image == nil {
		return Input{}, fmt.Errorf("ocr: nil surface")
	}
	if sf.Failed {
		return Input{}, fmt.Errorf("ocr: surface for page %d failed: %s", sf.SourceIndex, sf.Reason)
	}
	if sf.Rotation != 0 {
		return Input{}, fmt.Errorf("ocr: surface is rotated by %d degrees", sf.Rotation)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sf.Image); err != nil {
		return Input{}, fmt.Errorf("ocr: encode surface: %w", err)
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d", sf.SourceIndex),
		Image:     buf.Bytes(),
		Format:    ImageFormatPNG,
		PageIndex: sf.SourceIndex,
		Scale:     sf.Scale,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}
