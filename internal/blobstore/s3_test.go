package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	headErr    error
	headSize   int64
	deleteErr  error
	putCalled  bool
	buckets    []string
	notFoundOn string
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.notFoundOn != "" && *params.Key == f.notFoundOn {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "not found"}
	}
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(f.headSize)}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalled = true
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("not implemented in this fake")
}

func (f *fakeS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	out := &s3.ListBucketsOutput{}
	for _, name := range f.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func TestStore_Head_Found(t *testing.T) {
	f := &fakeS3{headSize: 1234}
	s := &Store{client: f, bucket: "recordings"}

	size, found, err := s.Head(context.Background(), "raw/batch-1.tar")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1234), size)
}

func TestStore_Head_NotFound(t *testing.T) {
	f := &fakeS3{notFoundOn: "missing.tar"}
	s := &Store{client: f, bucket: "recordings"}

	_, found, err := s.Head(context.Background(), "missing.tar")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Put_SmallFileUsesPutObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.opus")
	require.NoError(t, os.WriteFile(path, []byte("small"), 0o644))

	f := &fakeS3{}
	s := &Store{client: f, bucket: "recordings"}

	err := s.Put(context.Background(), "processed/clip.opus", path)
	require.NoError(t, err)
	assert.True(t, f.putCalled)
}

func TestStore_Delete(t *testing.T) {
	f := &fakeS3{}
	s := &Store{client: f, bucket: "recordings"}
	assert.NoError(t, s.Delete(context.Background(), "raw/batch-1.tar"))
}
