package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// EncodePNG encodes an in-memory raster as PNG, the only form sent to a backend
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &ImageError{Err: errors.New("no image")}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &ImageError{Err: fmt.Errorf("encoding PNG: %w", err)}
	}
	return buf.Bytes(), nil
}

// pdfFirstPage renders the first page of a scanned PDF sheet
func pdfFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes any supported upload into a raster
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf":
		return pdfFirstPage(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format (supported: PNG, JPEG, GIF, HEIC, HEIF, PDF): %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks the ftyp box brand of an ISO-BMFF file
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData normalizes an upload to PNG bytes. Valid PNG input passes
// through untouched; everything else is decoded and re-encoded. Any failure
// is an *ImageError.
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, &ImageError{Err: errors.New("empty image")}
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" && !isHEICFormat(data) {
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
			return data, nil
		}
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, &ImageError{Err: err}
	}
	return EncodePNG(img)
}
