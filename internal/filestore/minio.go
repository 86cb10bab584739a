package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MinIOOptions configures the S3-compatible object store.
type MinIOOptions struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string // key prefix inside the bucket
	UseSSL    bool
}

// MinIOStore keeps files as objects in one bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIO connects to the object store and creates the bucket when it does
// not exist yet.
func NewMinIO(ctx context.Context, opts MinIOOptions) (*MinIOStore, error) {
	if opts.Bucket == "" {
		return nil, eris.New("filestore: minio bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "filestore: minio client")
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: check bucket %s", opts.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, eris.Wrapf(err, "filestore: create bucket %s", opts.Bucket)
		}
		zap.L().Info("filestore: created bucket", zap.String("bucket", opts.Bucket))
	}

	return newMinIOStore(client, opts.Bucket, opts.Prefix), nil
}

func newMinIOStore(client *minio.Client, bucket, prefix string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *MinIOStore) key(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return path.Join(s.prefix, cleaned), nil
}

// Write stores content as the object name.
func (s *MinIOStore) Write(ctx context.Context, name string, content []byte) error {
	key, err := s.key(name)
	if err != nil {
		return storageErr("write", name, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	return storageErr("write", name, mapMinIOError(err))
}

// Read returns the content of the object name.
func (s *MinIOStore) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, storageErr("read", name, mapMinIOError(err))
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, storageErr("read", name, mapMinIOError(err))
	}
	return data, nil
}

// Delete removes the object name. S3 deletes are idempotent, so the object
// is checked first to report a missing file.
func (s *MinIOStore) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return storageErr("delete", name, err)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return storageErr("delete", name, mapMinIOError(err))
	}
	err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return storageErr("delete", name, mapMinIOError(err))
}

func (s *MinIOStore) Close() error {
	return nil
}

// mapMinIOError converts a missing-object response into ErrNotFound.
func mapMinIOError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", resp.Code, ErrNotFound)
	}
	return err
}
