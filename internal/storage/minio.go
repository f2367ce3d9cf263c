package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/memora/backend/internal/config"
	"github.com/memora/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore talks to any S3-compatible service (MinIO, AWS S3, Cloudflare R2).
type MinIOStore struct {
	client       *minio.Client
	publicClient *minio.Client // signs presigned URLs for the public hostname
	bucket       string
}

func NewMinIOStore(cfg config.StorageConfig) (*MinIOStore, error) {
	client, err := newClient(cfg.Endpoint, cfg)
	if err != nil {
		return nil, err
	}

	store := &MinIOStore{client: client, bucket: cfg.Bucket}

	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		publicClient, err := newClient(cfg.PublicEndpoint, cfg)
		if err != nil {
			return nil, fmt.Errorf("public storage endpoint: %w", err)
		}
		store.publicClient = publicClient
	}

	return store, nil
}

func newClient(endpoint string, cfg config.StorageConfig) (*minio.Client, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	return minio.New(endpoint, &minio.Options{
		Creds:        creds,
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
}

func (m *MinIOStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("storage_upload_failed", err, map[string]interface{}{
			"object_key":   key,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
		return err
	}
	logger.Info("storage_upload_success", map[string]interface{}{
		"object_key":   key,
		"size":         size,
		"content_type": contentType,
		"bucket":       m.bucket,
	})
	return nil
}

func (m *MinIOStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		err = translateError(err)
		if !errors.Is(err, ErrObjectNotFound) {
			logger.Error("storage_download_stat_failed", err, map[string]interface{}{
				"object_key": key,
				"bucket":     m.bucket,
			})
		}
		return nil, err
	}
	return obj, nil
}

func (m *MinIOStore) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("storage_delete_failed", err, map[string]interface{}{
			"object_key": key,
			"bucket":     m.bucket,
		})
		return err
	}
	logger.Info("storage_delete_success", map[string]interface{}{
		"object_key": key,
		"bucket":     m.bucket,
	})
	return nil
}

func (m *MinIOStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	client := m.client
	if m.publicClient != nil {
		client = m.publicClient
	}
	urlValue, err := client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

func translateError(err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}
	return err
}
