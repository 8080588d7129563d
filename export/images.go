package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // DecodeConfig for passthrough embedding
	"image/png"

	"github.com/pdfpage/editkit/filters"
	"github.com/pdfpage/editkit/raw"
)

// imageXObject embeds encoded image bytes as an image XObject. JPEG
// data passes through unchanged under DCTDecode; PNG is decoded and
// re-packed as flate RGB samples with a soft mask when the source
// carries alpha.
func imageXObject(o *out, data []byte, format string) (raw.ObjectRef, error) {
	switch format {
	case "jpeg", "jpg":
		return jpegXObject(o, data)
	case "png":
		return pngXObject(o, data)
	default:
		return raw.ObjectRef{}, fmt.Errorf("unsupported image format %q", format)
	}
}

func jpegXObject(o *out, data []byte) (raw.ObjectRef, error) {
	cfg, err := jpegConfig(data)
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("jpeg: %w", err)
	}
	d := imageDict(cfg.Width, cfg.Height, "DeviceRGB")
	d.Set("Filter", raw.Name("DCTDecode"))
	return o.alloc(&raw.StreamObj{Dict: d, Data: append([]byte(nil), data...)}), nil
}

func jpegConfig(data []byte) (image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, err
	}
	if format != "jpeg" {
		return image.Config{}, fmt.Errorf("data is %s, not jpeg", format)
	}
	return cfg, nil
}

func pngXObject(o *out, data []byte) (raw.ObjectRef, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("png: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				rgb = append(rgb, 0, 0, 0)
			} else {
				// un-premultiply back to straight color
				rgb = append(rgb,
					byte((r*0xFFFF/a)>>8),
					byte((g*0xFFFF/a)>>8),
					byte((b*0xFFFF/a)>>8))
			}
			alpha = append(alpha, byte(a>>8))
			if a != 0xFFFF {
				opaque = false
			}
		}
	}

	enc, err := filters.FlateEncode(rgb)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	d := imageDict(w, h, "DeviceRGB")
	d.Set("Filter", raw.Name("FlateDecode"))
	if !opaque {
		maskEnc, err := filters.FlateEncode(alpha)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		md := imageDict(w, h, "DeviceGray")
		md.Set("Filter", raw.Name("FlateDecode"))
		maskRef := o.alloc(&raw.StreamObj{Dict: md, Data: maskEnc})
		d.Set("SMask", raw.Ref(maskRef))
	}
	return o.alloc(&raw.StreamObj{Dict: d, Data: enc}), nil
}

func imageDict(w, h int, colorSpace string) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.Name("XObject"))
	d.Set("Subtype", raw.Name("Image"))
	d.Set("Width", raw.Int(int64(w)))
	d.Set("Height", raw.Int(int64(h)))
	d.Set("ColorSpace", raw.Name(colorSpace))
	d.Set("BitsPerComponent", raw.Int(8))
	return d
}
