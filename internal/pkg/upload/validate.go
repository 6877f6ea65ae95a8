package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
	// Note: SVG is intentionally excluded due to XSS risk without sanitization
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/tiff": true,
}

// ValidatePageBySniff checks the provided filename (extension) and the first
// bytes (head) against a whitelist of scan formats. Returns the detected
// mime or an error.
func ValidatePageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("only the following page formats are supported: JPG, JPEG, PNG, WEBP, TIF, TIFF")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		// Block SVG/XML until a sanitizer is available
		return "", errors.New("SVG/XML uploads are not supported for safety reasons")
	}

	// TIFF scans may come back as octet-stream depending on Go version; allow by extension
	if detected == "application/octet-stream" && allowedExt[ext] {
		return detected, nil
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", errors.New("the file type is not supported")
}
