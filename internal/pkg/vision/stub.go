package vision

import (
	"context"
	"hash/fnv"
	"strings"
)

// StubProvider is a deterministic stand-in for the external vision
// services, used in dev environments and tests. Results depend only on
// the image URL, so repeated runs see identical output.
type StubProvider struct {
	// UnsafeSubstrings marks URLs that should produce a flagged verdict.
	UnsafeSubstrings []string
}

// NewStubProvider returns a stub that treats everything as safe, finds
// two text runs and one face per page.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// Scan implements SafetyScanner
func (s *StubProvider) Scan(ctx context.Context, imageURL string) (*SafetyVerdict, error) {
	for _, marker := range s.UnsafeSubstrings {
		if marker != "" && strings.Contains(imageURL, marker) {
			return &SafetyVerdict{
				IsSafe: false,
				Flags: []SafetyFlag{
					{Category: "explicit_content", Confidence: 0.91, Severity: "high"},
				},
			}, nil
		}
	}
	return &SafetyVerdict{IsSafe: true}, nil
}

// Recognize implements TextRecognizer. Box positions derive from a hash
// of the URL so different pages yield different, stable layouts.
func (s *StubProvider) Recognize(ctx context.Context, imageURL string) (*OCRResult, error) {
	offset := hashFraction(imageURL)
	return &OCRResult{
		Text: "Margaret Atwood\nClass of 1957",
		Boxes: []TextBox{
			{Text: "Margaret Atwood", Confidence: 0.95, X: 0.1 + offset/10, Y: 0.2, Width: 0.3, Height: 0.04},
			{Text: "Class of 1957", Confidence: 0.92, X: 0.1 + offset/10, Y: 0.26, Width: 0.25, Height: 0.04},
		},
	}, nil
}

// Detect implements FaceDetector
func (s *StubProvider) Detect(ctx context.Context, imageURL string) ([]FaceBox, error) {
	offset := hashFraction(imageURL)
	return []FaceBox{
		{X: 0.35 + offset/10, Y: 0.15, Width: 0.2, Height: 0.25, Confidence: 0.88},
	}, nil
}

// hashFraction maps a URL onto [0,1) deterministically
func hashFraction(s string) float64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return float64(h.Sum32()%1000) / 1000.0
}
