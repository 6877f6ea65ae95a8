package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
)

// DefaultRequestTimeout bounds every provider call. A hung external
// service must not stall a pipeline worker.
const DefaultRequestTimeout = 30 * time.Second

// HTTPProvider calls JSON vision endpoints (safety, OCR, face) that
// accept {"image_url": "..."} and are authenticated by API key.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider from environment configuration.
//
//	VISION_API_URL   base URL of the vision gateway
//	VISION_API_KEY   bearer key; empty means not configured
//	VISION_TIMEOUT_SECONDS  optional per-call timeout override
func NewHTTPProvider() *HTTPProvider {
	timeout := DefaultRequestTimeout
	if raw := env.GetEnv("VISION_TIMEOUT_SECONDS", ""); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return &HTTPProvider{
		baseURL: env.GetEnv("VISION_API_URL", ""),
		apiKey:  env.GetEnv("VISION_API_KEY", ""),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether credentials are present
func (p *HTTPProvider) IsConfigured() bool {
	return p.baseURL != "" && p.apiKey != ""
}

// Scan implements SafetyScanner. Without credentials it fails closed:
// the caller receives ErrNotConfigured and must flag, not approve.
func (p *HTTPProvider) Scan(ctx context.Context, imageURL string) (*SafetyVerdict, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var verdict SafetyVerdict
	if err := p.post(ctx, "/v1/safety/scan", imageURL, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// Recognize implements TextRecognizer
func (p *HTTPProvider) Recognize(ctx context.Context, imageURL string) (*OCRResult, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var result OCRResult
	if err := p.post(ctx, "/v1/ocr/recognize", imageURL, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Detect implements FaceDetector
func (p *HTTPProvider) Detect(ctx context.Context, imageURL string) ([]FaceBox, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var response struct {
		Faces []FaceBox `json:"faces"`
	}
	if err := p.post(ctx, "/v1/faces/detect", imageURL, &response); err != nil {
		return nil, err
	}
	return response.Faces, nil
}

func (p *HTTPProvider) post(ctx context.Context, path, imageURL string, out interface{}) error {
	payload, err := json.Marshal(map[string]string{"image_url": imageURL})
	if err != nil {
		return fmt.Errorf("failed to marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("vision request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision endpoint %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vision response from %s: %w", path, err)
	}
	return nil
}
