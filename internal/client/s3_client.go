package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/docpress/api/internal/config"
)

// Storage errors the pipeline branches on.
var (
	// ErrObjectNotFound means the requested key does not exist in the bucket.
	ErrObjectNotFound = errors.New("object not found")
	// ErrAccessDenied means the credentials cannot reach the bucket or key.
	ErrAccessDenied = errors.New("access denied")
)

// ObjectStore defines the object storage operations the conversion pipeline
// needs: moving files in and out of a bucket, reading stored content types
// and issuing presigned URLs.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, bucket, key, contentType string) error
	Download(ctx context.Context, bucket, key, destDir string) (string, error)
	HeadContentType(ctx context.Context, bucket, key string) (string, error)
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error)
}

// S3Client implements ObjectStore against S3 or an S3-compatible endpoint
// such as MinIO.
type S3Client struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
}

// NewS3Client creates the storage client from configuration. A custom
// endpoint switches the client to path-style addressing.
func NewS3Client(cfg *config.StorageConfig) (*S3Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	if cfg.EndpointURL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.EndpointURL}, nil
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.EndpointURL != ""
	})

	return &S3Client{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
	}, nil
}

// Upload stores the local file under bucket/key with the given content type.
func (c *S3Client) Upload(ctx context.Context, localPath, bucket, key, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return mapStorageErr(fmt.Sprintf("failed to upload s3://%s/%s", bucket, key), err)
	}
	return nil
}

// Download fetches bucket/key into destDir and returns the local path. The
// local file keeps the object's base name.
func (c *S3Client) Download(ctx context.Context, bucket, key, destDir string) (string, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", mapStorageErr(fmt.Sprintf("failed to download s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	localPath := filepath.Join(destDir, filepath.Base(key))
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return localPath, nil
}

// HeadContentType returns the stored Content-Type of bucket/key without
// fetching the body.
func (c *S3Client) HeadContentType(ctx context.Context, bucket, key string) (string, error) {
	out, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", mapStorageErr(fmt.Sprintf("failed to head s3://%s/%s", bucket, key), err)
	}
	return aws.ToString(out.ContentType), nil
}

// PresignGet generates a temporary download URL for bucket/key.
func (c *S3Client) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET for s3://%s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// PresignPut generates a temporary upload URL for bucket/key. The uploader
// must send the same content type.
func (c *S3Client) PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign PUT for s3://%s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// mapStorageErr folds the SDK's modeled errors into the sentinel errors
// callers test with errors.Is.
func mapStorageErr(op string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", op, ErrObjectNotFound)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
		return fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}
	return fmt.Errorf("%s: %w", op, err)
}
