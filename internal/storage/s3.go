package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bm-go/internal/bundle"
	"bm-go/internal/config"
)

// S3Store is an S3-backed implementation of the BlobStore interface.
// Uploads go through the SDK's upload manager so large archives stream as
// multipart uploads; temporary URLs are presigned GETs.
type S3Store struct {
	bucket    string
	prefix    string
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
}

// NewS3Store creates an S3 store from storage config. When access keys are
// present in the config they are used as static credentials; otherwise the
// SDK's default credential chain applies.
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		bucket:    cfg.S3Bucket,
		prefix:    cfg.S3Prefix,
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) key(p string) string {
	return path.Join(s.prefix, p)
}

// Exists reports whether an object is present at the given path.
func (s *S3Store) Exists(p string) (bool, error) {
	key := s.key(p)
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s: %w", key, err)
	}
	return true, nil
}

// Get retrieves the object at path and writes it to w.
func (s *S3Store) Get(p string, w io.Writer) error {
	key := s.key(p)
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("blob not found: %s", p)
		}
		return fmt.Errorf("getting object %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading object %s: %w", key, err)
	}
	return nil
}

// Put stores an object at path, overwriting any existing object. The
// upload manager splits large bodies into multipart uploads; size is
// advisory here since the manager buffers parts itself.
func (s *S3Store) Put(p string, r io.Reader, size int64) error {
	key := s.key(p)
	_, err := s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading object %s: %w", key, err)
	}
	return nil
}

// TemporaryURL returns a presigned GET URL that expires after ttl.
func (s *S3Store) TemporaryURL(p string, ttl time.Duration) (string, error) {
	key := s.key(p)
	req, err := s.presigner.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presigning object %s: %w", key, err)
	}
	return req.URL, nil
}

// Compile-time check that S3Store implements bundle.BlobStore
var _ bundle.BlobStore = (*S3Store)(nil)
