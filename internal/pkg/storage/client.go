package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
)

// Client wraps the S3 client with yearbook-storage functionality
type Client struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	config        *Config
}

// NewClient creates a new object storage client
func NewClient(cfg *Config) (*Client, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible endpoints (MinIO, B2) need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := &Client{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		config:        cfg,
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[Storage] Successfully initialized S3 client (originals bucket: %s)", cfg.OriginalsBucket)
	return client, nil
}

// testConnection checks that all configured buckets are reachable
func (c *Client) testConnection() error {
	ctx := context.Background()

	seen := map[string]bool{}
	for _, bucket := range []string{c.config.OriginalsBucket, c.config.TilesBucket, c.config.PreviewsBucket} {
		if seen[bucket] {
			continue
		}
		seen[bucket] = true

		_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			// If the bucket doesn't exist, try to create it (for development)
			if GetAppEnv() != "prod" {
				log.Warnf("[Storage] Bucket %s not found, attempting to create it", bucket)
				if cerr := c.createBucket(bucket); cerr != nil {
					return cerr
				}
				continue
			}
			return fmt.Errorf("bucket %s not accessible: %w", bucket, err)
		}
	}

	return nil
}

// createBucket creates a new S3 bucket (dev/staging only)
func (c *Client) createBucket(bucketName string) error {
	ctx := context.Background()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// Regions other than us-east-1 need an explicit location constraint;
	// S3-compatible endpoints ignore it.
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}

	_, err := c.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[Storage] Successfully created bucket: %s", bucketName)
	return nil
}

// OriginalsBucket returns the bucket holding original page scans
func (c *Client) OriginalsBucket() string {
	return c.config.OriginalsBucket
}

// TilesBucket returns the bucket holding generated tiles
func (c *Client) TilesBucket() string {
	return c.config.TilesBucket
}

// PreviewsBucket returns the bucket holding low-res previews
func (c *Client) PreviewsBucket() string {
	return c.config.PreviewsBucket
}

// Upload stores an object from a reader
func (c *Client) Upload(ctx context.Context, bucket, objectKey string, body io.Reader, size int64) error {
	contentType := getContentType(filepath.Ext(objectKey))

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[Storage] Uploaded s3://%s/%s (%d bytes)", bucket, objectKey, size)
	return nil
}

// UploadBytes stores an in-memory object
func (c *Client) UploadBytes(ctx context.Context, bucket, objectKey string, data []byte) error {
	return c.Upload(ctx, bucket, objectKey, bytes.NewReader(data), int64(len(data)))
}

// Download fetches an object into memory
func (c *Client) Download(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}

// PresignGet returns a time-limited signed URL for an original object.
// The one hour expiry matches the window vision providers get to fetch
// the page image.
func (c *Client) PresignGet(ctx context.Context, bucket, objectKey string) (string, error) {
	req, err := c.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", objectKey, err)
	}

	return req.URL, nil
}

// Delete removes an object
func (c *Client) Delete(ctx context.Context, bucket, objectKey string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	log.Infof("[Storage] Deleted s3://%s/%s", bucket, objectKey)
	return nil
}

// getContentType maps file extensions to MIME types
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
