package media

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinioStore 将媒体文件归档到 MinIO 对象存储中，适合多实例部署。
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 创建一个 MinioStore，并确保存储桶存在。
func NewMinioStore(ctx context.Context, client *minio.Client, bucket string) (*MinioStore, error) {
	if bucket == "" {
		bucket = "neurodeck-media"
	}

	// 检查指定的存储桶是否存在，如果不存在则创建它。
	found, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket '%s' exists: %w", bucket, err)
	}
	if !found {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket '%s': %w", bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object to MinIO: %w", err)
	}
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, name string) error {
	// RemoveObject 对不存在的对象不报错，删除天然幂等。
	return s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
}

func (s *MinioStore) URI(name string) string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, name)
}

func (s *MinioStore) Backend() string {
	return "minio"
}

var _ Store = (*MinioStore)(nil)
