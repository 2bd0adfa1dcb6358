package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket string
	Region string
	// Endpoint targets an S3-compatible store such as MinIO; it switches the
	// client to path-style addressing.
	Endpoint string
	// PublicURL is the base objects are served from. It defaults to the
	// virtual-hosted bucket URL.
	PublicURL string
}

// S3Uploader stores uploaded files in one bucket and returns their public URL.
type S3Uploader struct {
	client    putter
	bucket    string
	publicURL string
}

// NewS3Uploader loads credentials from the default AWS chain.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, cfg), nil
}

func newS3Uploader(client putter, cfg Config) *S3Uploader {
	publicURL := cfg.PublicURL
	switch {
	case publicURL != "":
	case cfg.Endpoint != "":
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (u *S3Uploader) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.publicURL + "/" + key, nil
}
