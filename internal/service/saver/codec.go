package saver

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// extensions maps a decoded format to the file extensions accepted for it.
// The first entry is the canonical one.
var extensions = map[string][]string{
	"png":  {".png"},
	"jpeg": {".jpg", ".jpeg", ".jpe", ".jfif"},
	"gif":  {".gif"},
	"bmp":  {".bmp"},
	"tiff": {".tiff", ".tif"},
	"webp": {".webp"},
}

// decoded holds a decoded payload. Animated GIFs keep every frame.
type decoded struct {
	format string
	img    image.Image
	anim   *gif.GIF
	raw    []byte
}

// decode decodes payload with the registered image decoders
func decode(payload []byte) (*decoded, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUndecodable, err)
	}
	if _, ok := extensions[format]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}

	d := &decoded{format: format, raw: payload}
	if format == "gif" {
		d.anim, err = gif.DecodeAll(bytes.NewReader(payload))
	} else {
		d.img, _, err = image.Decode(bytes.NewReader(payload))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUndecodable, err)
	}
	return d, nil
}

// encode writes the decoded image in its original format.
// Formats without an encoder are written as the validated original bytes.
func (d *decoded) encode(w io.Writer, jpegQuality int) error {
	switch d.format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, d.img)
	case "jpeg":
		return jpeg.Encode(w, d.img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		return gif.EncodeAll(w, d.anim)
	case "bmp":
		return bmp.Encode(w, d.img)
	case "tiff":
		return tiff.Encode(w, d.img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		_, err := w.Write(d.raw)
		return err
	}
}

// extensionFor returns the extension of the URL path when it names the
// decoded format, otherwise the canonical extension of the format
func extensionFor(rawURL, format string) string {
	allowed := extensions[format]
	if len(allowed) == 0 {
		return ""
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, candidate := range allowed {
		if ext == candidate {
			return ext
		}
	}
	return allowed[0]
}
