package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/config"
	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/pkg/fsx"
	"github.com/seqarc/tern/pkg/logx"
)

// s3Handler stages submissions into an S3-compatible bucket instead of the
// archive's HTTP API. Object keys mirror the HTTP URL layout:
// {prefix}/{project_path}/files/{file_uuid}.
//
// A single PUT cannot resume from a byte offset, so the S3 analogue of
// resuming is checksum-based: an existing object with a matching MD5 counts
// as already transferred and is not re-sent.
type s3Handler struct {
	*handler
	client       s3Client
	bucketConfig config.BucketConfig
	bucketExists map[string]bool
}

// s3Client abstracts the MinIO client to expose limited functionalities,
// which also allows for mocking in tests.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)

	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error

	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// minioClientWrapper adapts the MinIO client to the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (m *minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return m.client.BucketExists(ctx, bucketName)
}

func (m *minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.client.MakeBucket(ctx, bucketName, opts)
}

func (m *minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}

func (m *minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return m.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

// NewS3 creates the S3-compatible staging backend.
func NewS3(id string, bucketConfig config.BucketConfig, transportRetries int) (core.Archive, error) {
	if err := config.ValidateBucketConfig(bucketConfig); err != nil {
		logx.As().Error().
			Str("storage_type", TypeS3).
			Err(err).
			Msg("Invalid bucket configuration")
		return nil, err
	}

	client, err := minio.New(bucketConfig.Endpoint, &minio.Options{
		Creds:      credentials.NewStaticV4(bucketConfig.AccessKey, bucketConfig.SecretKey, ""),
		Secure:     bucketConfig.UseSSL,
		MaxRetries: transportRetries,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}

	logx.As().Debug().
		Str("storage_type", TypeS3).
		Str("endpoint", bucketConfig.Endpoint).
		Str("bucket", bucketConfig.Bucket).
		Msg("MinIO client created successfully")

	return &s3Handler{
		handler:      &handler{id: id, archiveType: TypeS3},
		client:       &minioClientWrapper{client: client},
		bucketConfig: bucketConfig,
		bucketExists: make(map[string]bool),
	}, nil
}

// Store uploads the task's file into the bucket, skipping the transfer when
// the object already exists with the same checksum.
func (s *s3Handler) Store(ctx context.Context, task core.UploadTask, src *os.File) (*core.StoreInfo, error) {
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	objectName := s.objectName(task)

	localChecksum, err := fsx.FileMD5(task.ResolvedPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to calculate local checksum")
	}

	attr, err := s.client.StatObject(ctx, s.bucketConfig.Bucket, objectName, minio.StatObjectOptions{})
	if err == nil && localChecksum == attr.ETag {
		logx.As().Info().
			Str("id", s.Info()).
			Str("file_name", task.FileName).
			Str("object", objectName).
			Str("md5", attr.ETag).
			Str("bucket", s.bucketConfig.Bucket).
			Msg("Object already exists in bucket, skipping upload")
		return &core.StoreInfo{BytesSent: 0, Offset: attr.Size}, nil
	}

	logx.As().Debug().
		Str("id", s.Info()).
		Str("file_name", task.FileName).
		Str("object", objectName).
		Str("local_checksum", localChecksum).
		Str("bucket", s.bucketConfig.Bucket).
		Msg("Uploading object to bucket")

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind source file")
	}

	info, err := s.client.PutObject(ctx, s.bucketConfig.Bucket, objectName, src, task.SizeBytes, minio.PutObjectOptions{
		SendContentMd5:        true,
		ConcurrentStreamParts: false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to upload %s to bucket", task.FileName)
	}

	if info.ETag != localChecksum {
		return nil, errors.Errorf("checksum mismatch after upload: expected %s, got %s", localChecksum, info.ETag)
	}

	logx.As().Info().
		Str("id", s.Info()).
		Str("file_name", task.FileName).
		Str("object", objectName).
		Str("checksum", info.ETag).
		Str("bucket", s.bucketConfig.Bucket).
		Str("size", fmt.Sprintf("%d bytes", info.Size)).
		Msg("Object uploaded successfully to the bucket")

	return &core.StoreInfo{BytesSent: info.Size, Offset: 0}, nil
}

// ensureBucketExists checks if the bucket exists in S3. If it doesn't exist,
// it creates the bucket. Results are cached so concurrent tasks do not compete
// to create the same bucket.
func (s *s3Handler) ensureBucketExists(ctx context.Context) error {
	if _, exists := s.bucketExists[s.bucketConfig.Bucket]; exists {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucketConfig.Bucket)
	if err != nil {
		return err
	}

	if !exists {
		logx.As().Debug().
			Str("storage_type", s.Type()).
			Str("bucket", s.bucketConfig.Bucket).
			Msg("Bucket does not exist, creating it")
		if err := s.client.MakeBucket(ctx, s.bucketConfig.Bucket, minio.MakeBucketOptions{Region: s.bucketConfig.Region}); err != nil {
			return errors.Wrap(err, "failed to create bucket")
		}
	}

	s.bucketExists[s.bucketConfig.Bucket] = true
	return nil
}

func (s *s3Handler) objectName(task core.UploadTask) string {
	return path.Join(s.bucketConfig.Prefix, core.ProjectPath(task.ProjectID), "files", task.FileUUID)
}
