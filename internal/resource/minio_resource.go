package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

const minioOpenTimeout = 10 * time.Second

// bucketAdmin 启动阶段需要的桶操作
type bucketAdmin interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// MinioResource 产物发布用的 MinIO 客户端，打开时确保桶存在
type MinioResource struct {
	cfg    config.MinioConfig
	client *minio.Client
}

func NewMinioResource(cfg config.MinioConfig) *MinioResource {
	return &MinioResource{cfg: cfg}
}

func (r *MinioResource) Name() string { return "minio" }

func (r *MinioResource) MustOpen() {
	if r.cfg.Endpoint == "" || r.cfg.BucketName == "" {
		panic("minio endpoint and bucket_name are required")
	}
	client, err := minio.New(r.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(r.cfg.AccessKeyID, r.cfg.SecretAccessKey, ""),
		Secure: r.cfg.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("create minio client: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), minioOpenTimeout)
	defer cancel()
	created, err := ensureBucket(ctx, client, r.cfg.BucketName)
	if err != nil {
		panic(err.Error())
	}
	r.client = client
	logger.Infof("minio ready endpoint=%s bucket=%s created=%t", r.cfg.Endpoint, r.cfg.BucketName, created)
}

// ensureBucket 桶不存在时创建；并发创建导致的已存在错误视为成功
func ensureBucket(ctx context.Context, admin bucketAdmin, bucket string) (bool, error) {
	exists, err := admin.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check minio bucket %s: %w", bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := admin.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return false, nil
		}
		return false, fmt.Errorf("create minio bucket %s: %w", bucket, err)
	}
	return true, nil
}

func (r *MinioResource) GetClient() *minio.Client { return r.client }

func (r *MinioResource) GetBucketName() string { return r.cfg.BucketName }

// Close minio-go 基于 http.Client，无需关闭
func (r *MinioResource) Close() {}
