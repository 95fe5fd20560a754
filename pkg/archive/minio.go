// Package archive implements the configuration-gated raw-transaction
// archival channel: every incoming transaction is written verbatim, as one
// JSON object per record, to a MinIO bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

// Config holds the MinIO connection settings for the archival channel.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	BasePath  string `yaml:"base_path"`
}

// Writer archives raw transactions to object storage. Archival shares the
// aggregation streams' reliability domain: a failed upload never fails the
// record it belongs to.
type Writer struct {
	client   *minio.Client
	bucket   string
	basePath string
}

// NewWriter creates the archival writer and ensures the bucket exists.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	w := &Writer{client: client, bucket: cfg.Bucket, basePath: cfg.BasePath}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return w, nil
}

// Archive uploads one transaction as <basePath>/<ledgerIndex>.<txIndex>.json.
// The object key matches the storage key, so re-archival on redelivery
// overwrites rather than duplicates.
func (w *Writer) Archive(ctx context.Context, tx *xrpl.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", tx.Key(), err)
	}

	objectName := path.Join(w.basePath, tx.Key()+".json")
	_, err = w.client.PutObject(ctx, w.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to archive transaction %s: %w", tx.Key(), err)
	}
	return nil
}
