package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the recompression quality for prepared images.
const JPEGQuality = 80

// PrepareImage downsamples img so neither side exceeds maxDimension and
// re-encodes it as JPEG. Transparent areas are flattened onto white.
// maxDimension <= 0 returns the image unchanged.
func PrepareImage(img *ImageFile, maxDimension int) (*ImageFile, error) {
	if maxDimension <= 0 {
		return img, nil
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := calculateDimensions(origWidth, origHeight, maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if newWidth == origWidth && newHeight == origHeight {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	log.Debug().
		Str("source_format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("orig_size", len(img.Data)).
		Int("output_size", buf.Len()).
		Msg("Reference image prepared")

	return &ImageFile{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// calculateDimensions scales width x height to fit within maxDimension,
// keeping the aspect ratio. Sides never drop below one pixel.
func calculateDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}
	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
