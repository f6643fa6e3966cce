package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio stores uploads as objects in a single bucket.
type Minio struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinio connects to the object store and ensures the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive: MINIO_ENDPOINT is required for minio backend")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "docqa-uploads"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: create minio client: %w", err)
	}

	m := &Minio{client: client, bucket: cfg.Bucket, base: client.EndpointURL().String()}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("archive: check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("archive: create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Put implements Archive. The location is <endpoint>/<bucket>/<object>.
func (m *Minio) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := objectName(name, time.Now())
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
		UserMetadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", m.base, m.bucket, key), nil
}

// Delete implements Archive. location must be one returned by Put.
func (m *Minio) Delete(ctx context.Context, location string) error {
	key, ok := strings.CutPrefix(location, m.base+"/"+m.bucket+"/")
	if !ok || key == "" {
		return fmt.Errorf("archive: %q is not an object in bucket %s", location, m.bucket)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("archive: remove object %s: %w", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable. It satisfies the server's readiness
// probe interface.
func (m *Minio) Ping(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return fmt.Errorf("archive: minio unreachable: %w", err)
	}
	return nil
}
