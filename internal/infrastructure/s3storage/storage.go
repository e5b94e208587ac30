// Package s3storage archiva en S3/MinIO los ZIP enviados a SUNAT y los CDR recibidos.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/config"
)

const zipContentType = "application/zip"

var _ billing.ArtifactStore = (*Storage)(nil)

// Storage envuelve el cliente MinIO sobre un único bucket de artefactos.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New crea el cliente MinIO a partir de la configuración S3.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket crea el bucket si no existe.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// PutArtifacts sube el ZIP enviado y, si existe, el CDR.
func (s *Storage) PutArtifacts(ctx context.Context, doc *entity.ElectronicDocument, ruc, zipName string, archive, ack []byte) error {
	zipKey, ackKey := ObjectKeys(doc, ruc, zipName)
	meta := map[string]string{
		"document-id": doc.ID,
		"full-number": doc.FullNumber(),
		"status":      string(doc.Status),
	}
	if err := s.put(ctx, zipKey, archive, meta); err != nil {
		return fmt.Errorf("upload zip: %w", err)
	}
	if len(ack) == 0 {
		return nil
	}
	if err := s.put(ctx, ackKey, ack, meta); err != nil {
		return fmt.Errorf("upload cdr: %w", err)
	}
	return nil
}

func (s *Storage) put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  zipContentType,
		UserMetadata: meta,
	})
	return err
}

// ObjectKeys claves del ZIP y del CDR: {ruc}/{yyyy}/{mm}/{zip} y {ruc}/{yyyy}/{mm}/R-{zip}.
func ObjectKeys(doc *entity.ElectronicDocument, ruc, zipName string) (zipKey, ackKey string) {
	prefix := path.Join(ruc, doc.CreatedAt.UTC().Format("2006"), doc.CreatedAt.UTC().Format("01"))
	return path.Join(prefix, zipName), path.Join(prefix, infrasunat.CDRFilename(zipName))
}
