package dto

import (
	"time"

	"video-assembly-service/ddd/domain/entity"
)

// AssembleResultDto 提交合成任务的响应
type AssembleResultDto struct {
	JobID string `json:"job_id"`
	// VideoID 与 JobID 相同，兼容旧接口字段
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobDto 任务状态
type JobDto struct {
	JobID           string    `json:"job_id"`
	ScriptID        string    `json:"script_id"`
	Topic           string    `json:"topic"`
	ThumbnailID     string    `json:"thumbnail_id,omitempty"`
	Status          string    `json:"status"`
	Stage           string    `json:"stage,omitempty"`
	Progress        int       `json:"progress"`
	Message         string    `json:"message"`
	Error           string    `json:"error,omitempty"`
	FailureKind     string    `json:"failure_kind,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	OutputPath      string    `json:"output_path,omitempty"`
	ObjectKey       string    `json:"object_key,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	FileSizeBytes   int64     `json:"file_size_bytes,omitempty"`
	ClipsUsed       int       `json:"clips_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// JobListDto 任务列表
type JobListDto struct {
	Jobs   []*JobDto `json:"jobs"`
	Total  int       `json:"total"`
	Source string    `json:"source"`
}

// NewJobDto 从实体创建DTO
func NewJobDto(job *entity.AssemblyJob) *JobDto {
	if job == nil {
		return nil
	}
	return &JobDto{
		JobID:           job.ID,
		ScriptID:        job.ScriptID,
		Topic:           job.Topic,
		ThumbnailID:     job.ThumbnailID,
		Status:          job.Status.String(),
		Stage:           string(job.Stage),
		Progress:        job.Progress,
		Message:         job.Message,
		Error:           job.Error,
		FailureKind:     string(job.FailureKind),
		Mode:            string(job.Mode),
		OutputPath:      job.OutputPath,
		ObjectKey:       job.ObjectKey,
		DurationSeconds: job.DurationSeconds,
		FileSizeBytes:   job.FileSizeBytes,
		ClipsUsed:       job.ClipsUsed,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// NewJobListDto 批量转换
func NewJobListDto(jobs []*entity.AssemblyJob, source string) *JobListDto {
	out := &JobListDto{Jobs: make([]*JobDto, 0, len(jobs)), Source: source}
	for _, j := range jobs {
		if d := NewJobDto(j); d != nil {
			out.Jobs = append(out.Jobs, d)
		}
	}
	out.Total = len(out.Jobs)
	return out
}

// ArtifactDto 下载产物的本地路径与类型
type ArtifactDto struct {
	Path        string
	FileName    string
	ContentType string
}
