package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxImageSide is the longest side sent to the sidecar; larger images are scaled down.
const MaxImageSide = 1600

// ImageInfo describes a decodable image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Inspect checks that data is a decodable image without decoding the pixels.
func Inspect(data []byte) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return &ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ContentType returns the MIME type for a format reported by Inspect.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Extension returns the file extension for a format reported by Inspect.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png", "gif", "webp", "bmp":
		return "." + format
	}
	return ""
}

// downscale resizes an image to fit within maxSide while keeping aspect ratio.
// Images already small enough are returned unchanged; resized images are JPEG-encoded.
func downscale(data []byte, info *ImageInfo, maxSide int) ([]byte, error) {
	if info.Width <= maxSide && info.Height <= maxSide {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSide
		newHeight = max(1, int(float64(height)*float64(maxSide)/float64(width)))
	} else {
		newHeight = maxSide
		newWidth = max(1, int(float64(width)*float64(maxSide)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
