// Package filehandler loads reference images and prepares them for upload
// to a model backend.
package filehandler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps accepted file extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MaxImageBytes bounds reference images read from disk or request bodies.
const MaxImageBytes = 20 << 20

// ImageFile is a raw reference image and its MIME type.
type ImageFile struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the image data base64 encoded (no data URL prefix).
func (f *ImageFile) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// IsSupportedImage reports whether mimeType is one of the accepted formats.
func IsSupportedImage(mimeType string) bool {
	for _, m := range SupportedImageExtensions {
		if m == mimeType {
			return true
		}
	}
	return false
}

// LoadImage reads a reference image from disk. The MIME type comes from the
// extension, or from the content when the extension is unknown.
func LoadImage(path string) (*ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("image %s is too large (%d bytes, max %d)", filepath.Base(path), info.Size(), MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	mimeType, ok := SupportedImageExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mimeType = http.DetectContentType(data)
	}
	if !IsSupportedImage(mimeType) {
		return nil, fmt.Errorf("unsupported image format: %s", mimeType)
	}

	log.Debug().
		Str("path", path).
		Str("mime_type", mimeType).
		Int("size", len(data)).
		Msg("Reference image loaded")

	return &ImageFile{Data: data, MIMEType: mimeType}, nil
}

// DecodeBase64Image decodes a base64 image as sent by the UI. A data URL
// prefix ("data:image/png;base64,") is accepted and supplies the MIME type
// when mimeType is empty.
func DecodeBase64Image(encoded, mimeType string) (*ImageFile, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image is too large (%d bytes, max %d)", len(data), MaxImageBytes)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &ImageFile{Data: data, MIMEType: mimeType}, nil
}
