package gateway

import "context"

// StorageGateway 对象存储网关
type StorageGateway interface {
	// UploadAssembledFile 上传合成后的文件，返回对象路径
	UploadAssembledFile(ctx context.Context, localPath, objectKey, contentType string) (string, error)
}
