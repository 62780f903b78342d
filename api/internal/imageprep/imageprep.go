// Package imageprep turns arbitrary uploads into something every vision
// backend accepts: a JPEG no larger than a configured side.
package imageprep

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"shelf-scan/api/internal/util"
)

const jpegQuality = 90

// Prepare decodes data, shrinks it so the longest side is at most maxSide
// (maxSide <= 0 keeps the size) and re-encodes it as JPEG. JPEG input that
// needs no resizing is returned as is. Anything that fails to decode is
// returned untouched with a sniffed MIME type; the model gets the final say.
func Prepare(data []byte, maxSide int) ([]byte, string) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, util.PickMIME("", data)
	}

	b := img.Bounds()
	resize := maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide)
	if !resize && format == "jpeg" {
		return data, "image/jpeg"
	}
	if resize {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return data, util.PickMIME("", data)
	}
	return buf.Bytes(), "image/jpeg"
}

// Dimensions reports the size of an encoded image without decoding pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
