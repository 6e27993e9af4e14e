package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/internal/resource"
	"video-assembly-service/pkg/logger"
)

// fileUploader *minio.Client 按本地路径上传
type fileUploader interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ gateway.StorageGateway = (*MinioStorage)(nil)

// MinioStorage 把验证通过的产物发布到桶
type MinioStorage struct {
	client fileUploader
	bucket string
}

func NewMinioStorage(res *resource.MinioResource) *MinioStorage {
	return &MinioStorage{client: res.GetClient(), bucket: res.GetBucketName()}
}

func newMinioStorageWithClient(client fileUploader, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

// UploadAssembledFile 上传合成后的视频，返回对象 key。空文件不上传。
func (s *MinioStorage) UploadAssembledFile(ctx context.Context, localPath, objectKey, contentType string) (string, error) {
	if s.client == nil {
		return "", errors.New("minio client not initialized")
	}
	objectKey = path.Clean("/" + objectKey)[1:]
	if objectKey == "" {
		return "", errors.New("empty object key")
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat local file: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("local file %s is empty", localPath)
	}
	if contentType == "" {
		contentType = contentTypeOf(objectKey)
	}

	jobID := strings.TrimSuffix(path.Base(objectKey), path.Ext(objectKey))
	uploaded, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"job-id": jobID},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", objectKey, s.bucket, err)
	}

	logger.Info("assembled video published", map[string]interface{}{
		"bucket":     s.bucket,
		"object_key": objectKey,
		"size":       uploaded.Size,
		"etag":       uploaded.ETag,
	})
	return objectKey, nil
}

// contentTypeOf 常见媒体类型优先，其余交给 mime 表
func contentTypeOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
