package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 API used by S3Client.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Config configures an S3 client with static credentials.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint points the client at an S3 compatible server. Path-style
	// addressing is used when set.
	Endpoint string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// S3Client implements Client on top of aws-sdk-go-v2.
type S3Client struct {
	api      S3API
	bucket   string
	region   string
	endpoint string
}

var _ Client = (*S3Client)(nil)

// NewS3 builds an S3Client. Requests are attempted exactly once.
func NewS3(cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("objectstore: s3 region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("objectstore: s3 access key id and secret access key are required")
	}
	opts := s3.Options{
		Region:                     cfg.Region,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimSuffix(cfg.Endpoint, "/"))
		opts.UsePathStyle = true
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	return NewS3WithAPI(s3.New(opts), cfg), nil
}

// NewS3WithAPI wraps an existing S3 API implementation.
func NewS3WithAPI(api S3API, cfg S3Config) *S3Client {
	return &S3Client{
		api:      api,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
	}
}

// Get implements Client.
func (c *S3Client) Get(ctx context.Context, key string) (*Object, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("get", key, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: s3 get %q: read body: %w", key, err)
	}
	return &Object{
		Body:        body,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}, nil
}

// Put implements Client.
func (c *S3Client) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	out, err := c.api.PutObject(ctx, in)
	if err != nil {
		return "", mapS3Error("put", key, err)
	}
	return aws.ToString(out.ETag), nil
}

// Stat implements Client.
func (c *S3Client) Stat(ctx context.Context, key string) (string, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", mapS3Error("head", key, err)
	}
	return aws.ToString(out.ETag), nil
}

// URL implements Client. Without a custom endpoint it returns the
// virtual-hosted style address the bucket is served from.
func (c *S3Client) URL(key string) string {
	escaped := escapeKey(key)
	if c.endpoint != "" {
		return c.endpoint + "/" + url.PathEscape(c.bucket) + "/" + escaped
	}
	return "https://" + c.bucket + ".s3.amazonaws.com/" + escaped
}

func mapS3Error(op, key string, err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("objectstore: s3 %s %q: %w: %w", op, key, ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("objectstore: s3 %s %q: %w: %w", op, key, ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return fmt.Errorf("objectstore: s3 %s %q: %w: %w", op, key, ErrAccessDenied, err)
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("objectstore: s3 %s %q: %w: %w", op, key, ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("objectstore: s3 %s %q: %w: %w", op, key, ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("objectstore: s3 %s %q: %w", op, key, err)
}

// escapeKey escapes every path segment of key, keeping the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
