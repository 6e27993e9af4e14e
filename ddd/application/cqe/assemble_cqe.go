package cqe

import (
	"strings"

	"video-assembly-service/pkg/errno"
)

// AssembleReq 创建视频合成任务请求
type AssembleReq struct {
	ScriptID    string `json:"script_id"`              // 脚本ID
	Topic       string `json:"topic"`                  // 素材搜索主题
	ThumbnailID string `json:"thumbnail_id,omitempty"` // 指定缩略图，为空时使用最新的缩略图
}

// Validate 只做格式校验，产物存在性由应用服务检查
func (req *AssembleReq) Validate() error {
	req.ScriptID = strings.TrimSpace(req.ScriptID)
	req.Topic = strings.TrimSpace(req.Topic)
	req.ThumbnailID = strings.TrimSpace(req.ThumbnailID)
	if req.ScriptID == "" {
		return errno.ErrScriptIDRequired
	}
	if !plainName(req.ScriptID) {
		return errno.ErrInvalidParams.WithMessage("invalid script_id: %s", req.ScriptID)
	}
	if req.ThumbnailID != "" && !plainName(req.ThumbnailID) {
		return errno.ErrInvalidParams.WithMessage("invalid thumbnail_id: %s", req.ThumbnailID)
	}
	return nil
}

// QueryJobReq 查询任务状态
type QueryJobReq struct {
	JobID string `uri:"job_id" binding:"required"`
}

// DownloadReq 下载产物
type DownloadReq struct {
	ArtifactType string `uri:"artifact_type" binding:"required"`
	ArtifactID   string `uri:"artifact_id" binding:"required"`
}

// ListJobsReq 任务列表
type ListJobsReq struct {
	Limit int `form:"limit"`
}

func (req *ListJobsReq) Normalize() {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
}

func plainName(id string) bool {
	if id == "." || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}
