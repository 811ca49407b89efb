package source

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectGetter opens an object in S3-compatible storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// MinioConfig configures the client built by NewMinioGetter.
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Secure    bool   `toml:"secure"`
	Region    string `toml:"region"`
}

type minioGetter struct {
	client *minio.Client
}

// NewMinioGetter builds an ObjectGetter backed by minio-go.
func NewMinioGetter(cfg MinioConfig) (ObjectGetter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint required", ErrInvalidLocation)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &minioGetter{client: client}, nil
}

func (g *minioGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type minioFetcher struct {
	getter ObjectGetter
}

func (f *minioFetcher) Fetch(ctx context.Context, loc Location, w io.Writer) error {
	obj, err := f.getter.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return fmt.Errorf("minio get %s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return fmt.Errorf("minio object %s/%s not found: %w", loc.Bucket, loc.Key, err)
		}
		return fmt.Errorf("reading minio object: %w", err)
	}
	return nil
}
