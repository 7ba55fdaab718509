package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoders for uploaded formats
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

var (
	ErrEmptyImage = errors.New("image is empty")
	ErrBadImage   = errors.New("image could not be decoded")
)

// Process decodes an uploaded image, scales it to ScaledImageHeight pixels
// high keeping the aspect ratio and re-encodes it as JPEG.
// Images shorter than the target height are not enlarged. Unusable input is
// reported as engine.ErrInvalidCardSet as well as the image error.
func Process(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidCardSet, ErrEmptyImage)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", engine.ErrInvalidCardSet, ErrBadImage, err)
	}

	dst := Scale(src, engine.ScaledImageHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: engine.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Scale resizes src to the given height, keeping the aspect ratio
func Scale(src image.Image, height int) image.Image {
	b := src.Bounds()
	if b.Dy() <= height || b.Dy() == 0 {
		return src
	}

	width := b.Dx() * height / b.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
