package vision

import (
	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
)

// Providers bundles the three capabilities a pipeline run needs.
type Providers struct {
	Safety SafetyScanner
	OCR    TextRecognizer
	Faces  FaceDetector
}

// SetupProviders selects provider implementations from VISION_PROVIDER
// (http|stub). The default is http; an unconfigured http provider still
// loads, because the safety stage relies on its fail-closed behavior
// instead of a stub quietly approving everything.
func SetupProviders() *Providers {
	switch env.GetEnv("VISION_PROVIDER", "http") {
	case "stub":
		log.Warn("[Vision] Using stub providers; results are deterministic placeholders")
		stub := NewStubProvider()
		return &Providers{Safety: stub, OCR: stub, Faces: stub}
	default:
		p := NewHTTPProvider()
		if !p.IsConfigured() {
			log.Warn("[Vision] HTTP provider has no credentials; safety scans will flag for manual review")
		}
		return &Providers{Safety: p, OCR: p, Faces: p}
	}
}
