package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/png"

	_ "golang.org/x/image/webp"
)

// JPEG encoder quality per compression level. Higher compression means lower
// quality output.
const (
	qualityLow    = 85
	qualityMedium = 65
	qualityHigh   = 40
)

// JPEGQuality maps a compression level to a JPEG encoder quality.
// Unknown levels fall back to medium.
func JPEGQuality(level string) int {
	switch level {
	case "low":
		return qualityLow
	case "high":
		return qualityHigh
	default:
		return qualityMedium
	}
}

// CompressImage re-encodes a single image as JPEG at the quality implied by
// level. PNG and WebP inputs are transcoded.
func CompressImage(input []byte, level string) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: JPEGQuality(level)}); err != nil {
		return nil, fmt.Errorf("encode %s image as jpeg: %w", format, err)
	}

	return out.Bytes(), nil
}

// CompressImages compresses every input and returns the result payload. A
// single input yields a bare JPEG; multiple inputs are bundled into a zip
// archive so one download covers them all.
func CompressImages(inputs [][]byte, level string) (data []byte, fileName string, contentType string, err error) {
	if len(inputs) == 0 {
		return nil, "", "", fmt.Errorf("compress requires at least 1 input file")
	}

	if len(inputs) == 1 {
		compressed, err := CompressImage(inputs[0], level)
		if err != nil {
			return nil, "", "", err
		}
		return compressed, "compressed-image.jpg", "image/jpeg", nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, input := range inputs {
		compressed, err := CompressImage(input, level)
		if err != nil {
			return nil, "", "", fmt.Errorf("input %d: %w", i+1, err)
		}

		entry, err := zw.Create(fmt.Sprintf("compressed-%d.jpg", i+1))
		if err != nil {
			return nil, "", "", fmt.Errorf("create zip entry: %w", err)
		}
		if _, err := entry.Write(compressed); err != nil {
			return nil, "", "", fmt.Errorf("write zip entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, "", "", fmt.Errorf("close zip archive: %w", err)
	}

	return buf.Bytes(), "compressed-images.zip", "application/zip", nil
}
