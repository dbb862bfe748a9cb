// Package blobstore implements the object-storage contract on top of S3,
// with multipart upload handled transparently above a size threshold.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/contentmod/audio-pipeline/domain/ports"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
)

// multipartThreshold is the payload size at or above which Put uses a
// manager.Uploader instead of a single PutObject call.
const multipartThreshold = 100 * 1024 * 1024 // 100MB

// client is the narrow slice of *s3.Client this package depends on.
type client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

var _ client = (*s3.Client)(nil)

// Store implements ports.BlobStore over an S3-compatible client.
type Store struct {
	client     client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

var _ ports.BlobStore = (*Store)(nil)

// New wires a Store around an existing *s3.Client.
func New(c *s3.Client, bucket string) *Store {
	return &Store{
		client:     c,
		uploader:   manager.NewUploader(c),
		downloader: manager.NewDownloader(c),
		bucket:     bucket,
	}
}

// NewFromEnv loads the AWS config (optionally pointed at a custom endpoint
// for S3-compatible stores) and builds a Store. When accessKey/secretKey
// are non-empty (BLOB_ACCESS_KEY/BLOB_SECRET_KEY), they take precedence
// over the default credential chain; otherwise the SDK falls back to its
// usual environment/shared-config/IMDS resolution.
func NewFromEnv(ctx context.Context, endpoint, bucket, accessKey, secretKey string) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return New(c, bucket), nil
}

// Put uploads localPath to key, using multipart upload transparently for
// payloads at or above multipartThreshold.
func (s *Store) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return pkgerrors.NewBlobStoreError("put", key, "failed to open local file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return pkgerrors.NewBlobStoreError("put", key, "failed to stat local file", err)
	}

	if info.Size() >= multipartThreshold {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return pkgerrors.NewBlobStoreError("put", key, "multipart upload failed", err)
		}
		return nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return pkgerrors.NewBlobStoreError("put", key, "upload failed", err)
	}
	return nil
}

// Get downloads key to localPath via the manager.Downloader, which handles
// ranged, parallel fetches for large objects.
func (s *Store) Get(ctx context.Context, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return pkgerrors.NewBlobStoreError("get", key, "failed to create local file", err)
	}
	defer f.Close()

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return pkgerrors.NewBlobStoreError("get", key, "download failed", err)
	}
	return nil
}

// Delete removes key. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return pkgerrors.NewBlobStoreError("delete", key, "delete failed", err)
	}
	return nil
}

// Head returns the object's size, or found=false if it does not exist.
func (s *Store) Head(ctx context.Context, key string) (int64, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, pkgerrors.NewBlobStoreError("head", key, "head failed", err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return size, true, nil
}

// ListBuckets lists bucket names visible to the configured credentials.
// Used by operator tooling, not by worker hot paths.
func (s *Store) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, pkgerrors.NewBlobStoreError("", "list_buckets", "list buckets failed", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		if b.Name != nil {
			names = append(names, *b.Name)
		}
	}
	return names, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
