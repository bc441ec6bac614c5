package hgt

import (
	"context"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// DefaultObjectKeyTemplate is the default object key of a tile in a bucket.
const DefaultObjectKeyTemplate = "{name}.hgt.zip"

// An S3Config configures an S3Acquirer.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	KeyTemplate     string
	Insecure        bool
}

// An S3Acquirer fetches tiles from an S3 compatible bucket.
type S3Acquirer struct {
	client      *minio.Client
	bucket      string
	keyTemplate string
	logger      *zap.Logger
}

// NewS3Acquirer returns a new S3Acquirer.
func NewS3Acquirer(config S3Config, logger *zap.Logger) (*S3Acquirer, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: !config.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if config.KeyTemplate == "" {
		config.KeyTemplate = DefaultObjectKeyTemplate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Acquirer{
		client:      client,
		bucket:      config.Bucket,
		keyTemplate: config.KeyTemplate,
		logger:      logger,
	}, nil
}

func (a *S3Acquirer) AcquireTile(ctx context.Context, dir, name string) bool {
	if tileExists(dir, name) {
		return true
	}
	key := expandTemplate(a.keyTemplate, name)
	filename, gzipped := localFilename(name, key)
	a.logger.Info("fetching tile", zap.String("bucket", a.bucket), zap.String("key", key))
	if err := placeFile(dir, filename, func(dst *os.File) error {
		object, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer object.Close()
		return copyTile(dst, object, gzipped)
	}); err != nil {
		a.logger.Error("fetch tile", zap.String("bucket", a.bucket), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// An OSSConfig configures an OSSAcquirer.
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	KeyTemplate     string
}

// An OSSAcquirer fetches tiles from an Alibaba Cloud OSS bucket.
type OSSAcquirer struct {
	bucket      *oss.Bucket
	keyTemplate string
	logger      *zap.Logger
}

// NewOSSAcquirer returns a new OSSAcquirer.
func NewOSSAcquirer(config OSSConfig, logger *zap.Logger) (*OSSAcquirer, error) {
	client, err := oss.New(config.Endpoint, config.AccessKeyID, config.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(config.Bucket)
	if err != nil {
		return nil, err
	}
	if config.KeyTemplate == "" {
		config.KeyTemplate = DefaultObjectKeyTemplate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSSAcquirer{
		bucket:      bucket,
		keyTemplate: config.KeyTemplate,
		logger:      logger,
	}, nil
}

func (a *OSSAcquirer) AcquireTile(ctx context.Context, dir, name string) bool {
	if tileExists(dir, name) {
		return true
	}
	key := expandTemplate(a.keyTemplate, name)
	filename, gzipped := localFilename(name, key)
	a.logger.Info("fetching tile", zap.String("bucket", a.bucket.BucketName), zap.String("key", key))
	if err := placeFile(dir, filename, func(dst *os.File) error {
		body, err := a.bucket.GetObject(key, oss.WithContext(ctx))
		if err != nil {
			return err
		}
		defer body.Close()
		return copyTile(dst, body, gzipped)
	}); err != nil {
		a.logger.Error("fetch tile", zap.String("bucket", a.bucket.BucketName), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
