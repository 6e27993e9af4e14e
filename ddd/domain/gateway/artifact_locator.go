package gateway

import (
	"errors"

	"video-assembly-service/ddd/domain/vo"
)

var (
	// ErrArtifactNotFound 产物不存在或 id 非法
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrNoThumbnail 缩略图目录为空
	ErrNoThumbnail = errors.New("no thumbnail available")
)

// ArtifactLocator 按约定路径定位脚本、音频、缩略图、视频与临时目录
type ArtifactLocator interface {
	ScriptPath(scriptID string) string
	AudioPath(scriptID string) string
	ThumbnailPath(thumbnailID string) string
	VideoPath(jobID string) string

	// PrepareTempDir 创建任务独占的临时目录
	PrepareTempDir(jobID string) (string, error)
	// ReleaseTempDir 删除任务临时目录，目录不存在时返回 nil
	ReleaseTempDir(jobID string) error

	// Exists 路径存在且为普通文件
	Exists(path string) bool
	// FileSize 返回文件大小
	FileSize(path string) (int64, error)
	// LatestThumbnail 返回修改时间最新的缩略图路径
	LatestThumbnail() (string, error)
	// Resolve 下载接口使用，返回路径与 content type
	Resolve(t vo.ArtifactType, id string) (path string, contentType string, err error)
	// ValidID id 只能是普通文件名
	ValidID(id string) bool
}
