// Package vision wraps the external image-understanding services the
// pipeline depends on: content safety classification, text recognition
// and face detection. Every capability is an interface with an HTTP
// provider for real deployments and a deterministic stub for dev and
// tests, selected by configuration.
package vision

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by providers missing credentials. The
// safety stage treats it as an unsafe verdict: content is flagged for
// manual review, never silently approved.
var ErrNotConfigured = errors.New("vision provider is not configured")

// SafetyFlag is one classification hit on a page image.
type SafetyFlag struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"` // 0..1
	Severity   string  `json:"severity"`   // low|medium|high
}

// SafetyVerdict is the scanner's decision for a single page.
type SafetyVerdict struct {
	IsSafe bool         `json:"is_safe"`
	Flags  []SafetyFlag `json:"flags,omitempty"`
}

// TextBox is one recognized text run. Coordinates are relative (0..1)
// to the source image; callers convert to absolute pixels.
type TextBox struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// OCRResult holds the full recognized text plus per-run boxes.
type OCRResult struct {
	Text  string    `json:"text"`
	Boxes []TextBox `json:"boxes"`
}

// FaceBox is one detected face with a relative (0..1) bounding box.
type FaceBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// SafetyScanner classifies a page image reachable at imageURL.
type SafetyScanner interface {
	Scan(ctx context.Context, imageURL string) (*SafetyVerdict, error)
}

// TextRecognizer extracts text runs from a page image.
type TextRecognizer interface {
	Recognize(ctx context.Context, imageURL string) (*OCRResult, error)
}

// FaceDetector finds face regions on a page image.
type FaceDetector interface {
	Detect(ctx context.Context, imageURL string) ([]FaceBox, error)
}

// ToAbsolute converts a relative rectangle into absolute pixels for a
// page of the given dimensions, clamping to the image bounds and
// guaranteeing positive extent for anything remotely inside the image.
func ToAbsolute(x, y, w, h float64, pageWidth, pageHeight int) (int, int, int, int) {
	px := int(x * float64(pageWidth))
	py := int(y * float64(pageHeight))
	pw := int(w * float64(pageWidth))
	ph := int(h * float64(pageHeight))

	if px < 0 {
		px = 0
	}
	if py < 0 {
		py = 0
	}
	if px > pageWidth-1 {
		px = pageWidth - 1
	}
	if py > pageHeight-1 {
		py = pageHeight - 1
	}
	if pw < 1 {
		pw = 1
	}
	if ph < 1 {
		ph = 1
	}
	if px+pw > pageWidth {
		pw = pageWidth - px
	}
	if py+ph > pageHeight {
		ph = pageHeight - py
	}
	return px, py, pw, ph
}
