// Package archive keeps a copy of every uploaded ledger file in S3.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files under a key prefix in one bucket.
type S3 struct {
	client PutObjectAPI
	bucket string
	region string
	prefix string
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("archive bucket is not configured")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, region, prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client PutObjectAPI, bucket, region, prefix string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, region: region, prefix: prefix}
}

// Archive stores data under prefix+key and returns the object URL.
func (a *S3) Archive(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	full := a.prefix + strings.TrimPrefix(key, "/")
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3 (bucket %s, key %s): %w", a.bucket, full, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, full), nil
}
