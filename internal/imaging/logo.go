// Package imaging validates and normalizes the store logo users upload.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/heic"

	"github.com/zombor/receipt-studio/internal/receipt"
)

// ErrUnsupportedLogo is returned when an upload is not a decodable image
var ErrUnsupportedLogo = errors.New("unsupported logo image")

// LogoContentType is the content type of every accepted logo
const LogoContentType = "image/png"

// MaxLogoBytes bounds an uploaded logo
const MaxLogoBytes = 10 << 20

// NormalizeLogo decodes a JPEG, PNG, GIF, HEIC or HEIF upload and re-encodes it as PNG
func NormalizeLogo(data []byte, contentType string) (*receipt.Logo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", ErrUnsupportedLogo)
	}
	if len(data) > MaxLogoBytes {
		return nil, fmt.Errorf("logo is %d bytes, limit is %d: %w", len(data), MaxLogoBytes, ErrUnsupportedLogo)
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !isHEICFormat(data) && !isHEICMimeType(mimeType) && !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("content type %q: %w", mimeType, ErrUnsupportedLogo)
	}

	img, err := decode(data, mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return &receipt.Logo{Data: buf.Bytes(), ContentType: LogoContentType}, nil
}

// ValidLogo reports whether logo is absent or a normalized PNG that still decodes
func ValidLogo(logo *receipt.Logo) bool {
	if logo == nil {
		return true
	}
	if logo.ContentType != LogoContentType {
		return false
	}
	_, err := png.DecodeConfig(bytes.NewReader(logo.Data))
	return err == nil
}

func decode(data []byte, mimeType string) (image.Image, error) {
	// Go's standard image package doesn't support HEIC
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %v: %w", err, ErrUnsupportedLogo)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, HEIF): %v: %w", err, ErrUnsupportedLogo)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
