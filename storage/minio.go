package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"TuneScope/config"
	"TuneScope/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio initializes the MinIO client and ensures the archive bucket
// exists.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		log.Printf("Created MinIO bucket: %s", cfg.MinioBucket)
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	log.Println("MinIO client initialized.")
	return nil
}

// Available reports whether the archive is usable. The archive is optional
// glue: analysis proceeds without it.
func Available() bool {
	return minioClient != nil
}

// audioObjectName places archived audio under a per-owner prefix.
func audioObjectName(ownerID int64, trackID, ext string) string {
	return fmt.Sprintf("audio/%d/%s%s", ownerID, trackID, ext)
}

// ArchiveAudio stores the original uploaded bytes for a track.
func ArchiveAudio(ctx context.Context, ownerID int64, trackID, ext string, r io.Reader, size int64, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	object := audioObjectName(ownerID, trackID, ext)
	_, err := minioClient.PutObject(ctx, minioBucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to archive audio %s: %w", object, err)
	}

	logger.Debug("archived audio", logger.String("object", object), logger.Int64("size", size))
	return nil
}

// RemoveAudio deletes a track's archived audio, if present.
func RemoveAudio(ctx context.Context, ownerID int64, trackID, ext string) error {
	if minioClient == nil {
		return nil
	}
	object := audioObjectName(ownerID, trackID, ext)
	if err := minioClient.RemoveObject(ctx, minioBucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove archived audio %s: %w", object, err)
	}
	return nil
}

// ListArchive prints the archived objects under the given prefix.
func ListArchive(prefix string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var count int
	var total int64
	for object := range minioClient.ListObjects(ctx, minioBucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects: %w", object.Err)
		}
		fmt.Printf("%12d  %s\n", object.Size, object.Key)
		count++
		total += object.Size
	}
	fmt.Printf("%d objects, %d bytes total\n", count, total)
	return nil
}
