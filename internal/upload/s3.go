package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/folder"
)

// presignExpiry is the lifetime of presigned GET URLs, the SigV4 maximum.
const presignExpiry = 7 * 24 * time.Hour

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of the S3 presign client used by S3Storage.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage stores photos as objects keyed "<folder key>/<uuid>_<name>".
// Public URLs are built from publicBaseURL (typically a CDN in front of the
// bucket); without one, a presigned GET URL is recorded instead.
type S3Storage struct {
	client        S3API
	presigner     Presigner
	bucket        string
	publicBaseURL string
}

// Compile-time interface check.
var _ Storage = (*S3Storage)(nil)

// NewS3Storage creates an S3Storage. presigner may be nil when publicBaseURL
// is set.
func NewS3Storage(client S3API, presigner Presigner, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		presigner:     presigner,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func objectKey(f folder.Folder, filename string) string {
	return f.Key + "/" + filename
}

func (s *S3Storage) Put(ctx context.Context, f folder.Folder, name, contentType string, data []byte) (Stored, error) {
	key := objectKey(f, storedName(name))
	size := int64(len(data))

	log.Debug().Str("bucket", s.bucket).Str("key", key).Int64("size", size).Msg("Uploading photo to S3")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   &contentType,
		ContentLength: &size,
	})
	if err != nil {
		return Stored{}, fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	url, err := s.url(ctx, key)
	if err != nil {
		return Stored{}, err
	}
	return Stored{Ref: key, URL: url}, nil
}

func (s *S3Storage) url(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	if s.presigner == nil {
		return "", fmt.Errorf("no public base URL or presigner configured")
	}
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}

func (s *S3Storage) Delete(ctx context.Context, f folder.Folder, filename string) error {
	key := objectKey(f, filename)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject %s: %w", key, err)
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Photo object deleted")
	return nil
}
