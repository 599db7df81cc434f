package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type MinioConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" json:"-"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"covers"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL"`
}

// MinioStore keeps images in an S3 compatible bucket with public read.
type MinioStore struct {
	client *minio.Client
	bucket string
	base   string
}

func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init minio client")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "create bucket")
		}
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		base:   client.EndpointURL().String() + "/" + cfg.Bucket + "/",
	}, nil
}

func (m *MinioStore) Store(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrap(err, "put object")
	}
	return m.base + name, nil
}

func (m *MinioStore) Release(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, m.base)
	if key == ref || key == "" {
		return errors.Errorf("unknown image reference %q", ref)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, "remove object")
	}
	return nil
}
