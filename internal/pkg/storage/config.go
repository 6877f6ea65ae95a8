package storage

import (
	"errors"
	"fmt"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	OriginalsBucket string
	TilesBucket     string
	PreviewsBucket  string
	EndpointURL     string // Optional for S3-compatible services
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		OriginalsBucket: env.GetEnv("S3_ORIGINALS_BUCKET", ""),
		TilesBucket:     env.GetEnv("S3_TILES_BUCKET", ""),
		PreviewsBucket:  env.GetEnv("S3_PREVIEWS_BUCKET", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.OriginalsBucket == "" {
		return nil, errors.New("S3_ORIGINALS_BUCKET is required")
	}
	if config.TilesBucket == "" {
		config.TilesBucket = config.OriginalsBucket
	}
	if config.PreviewsBucket == "" {
		config.PreviewsBucket = config.TilesBucket
	}

	return config, nil
}

// OriginalKey generates the object key for a page's original scan.
// Format: yearbooks/<yearbook-uuid>/pages/<page-number>.<ext>
func OriginalKey(yearbookUUID string, pageNumber int, fileExtension string) string {
	return fmt.Sprintf("yearbooks/%s/pages/%03d%s", yearbookUUID, pageNumber, fileExtension)
}

// PreviewKey generates the object key for a page's low-res preview
func PreviewKey(yearbookUUID string, pageNumber int) string {
	return fmt.Sprintf("yearbooks/%s/previews/%03d.webp", yearbookUUID, pageNumber)
}

// TileKey generates the object key for one tile of a page pyramid
func TileKey(yearbookUUID string, pageNumber, level, col, row int) string {
	return fmt.Sprintf("yearbooks/%s/tiles/%03d/%d/%d_%d.webp", yearbookUUID, pageNumber, level, col, row)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}
