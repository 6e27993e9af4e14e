package entity

import (
	"time"

	"video-assembly-service/ddd/domain/vo"
)

// AssemblyJob 视频合成任务记录，内存表与持久化记录共用该结构
type AssemblyJob struct {
	ID              string          `json:"id"`
	ScriptID        string          `json:"script_id"`
	Topic           string          `json:"topic"`
	ThumbnailID     string          `json:"thumbnail_id,omitempty"`
	Status          vo.JobStatus    `json:"status"`
	Stage           vo.JobStage     `json:"stage,omitempty"`
	Progress        int             `json:"progress"`
	Message         string          `json:"message"`
	Error           string          `json:"error,omitempty"`
	FailureKind     vo.FailureKind  `json:"failure_kind,omitempty"`
	Mode            vo.AssemblyMode `json:"mode,omitempty"`
	OutputPath      string          `json:"output_path,omitempty"`
	ObjectKey       string          `json:"object_key,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	FileSizeBytes   int64           `json:"file_size_bytes,omitempty"`
	ClipsUsed       int             `json:"clips_used"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewAssemblyJob 创建 queued 状态的任务
func NewAssemblyJob(id, scriptID, topic, thumbnailID string, now time.Time) *AssemblyJob {
	return &AssemblyJob{
		ID:          id,
		ScriptID:    scriptID,
		Topic:       topic,
		ThumbnailID: thumbnailID,
		Status:      vo.JobStatusQueued,
		Stage:       vo.StageQueued,
		Progress:    0,
		Message:     "Queued for video assembly",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone 返回副本，调用方持有的记录不会影响内存表
func (j *AssemblyJob) Clone() *AssemblyJob {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

func (j *AssemblyJob) IsCompleted() bool { return j.Status == vo.JobStatusCompleted }
func (j *AssemblyJob) IsFailed() bool    { return j.Status == vo.JobStatusFailed }
func (j *AssemblyJob) IsTerminal() bool  { return j.Status.IsFinalStatus() }

// JobUpdate 一次状态写入；nil 字段保持原值
type JobUpdate struct {
	Status          vo.JobStatus
	Stage           vo.JobStage
	Progress        int
	Message         string
	Error           string
	FailureKind     vo.FailureKind
	Mode            *vo.AssemblyMode
	OutputPath      *string
	ObjectKey       *string
	DurationSeconds *float64
	FileSizeBytes   *int64
	ClipsUsed       *int
}

// Apply 将更新合并到记录上，不做状态校验
func (j *AssemblyJob) Apply(u JobUpdate, now time.Time) {
	j.Status = u.Status
	if u.Stage != "" {
		j.Stage = u.Stage
	}
	j.Progress = u.Progress
	j.Message = u.Message
	j.Error = u.Error
	j.FailureKind = u.FailureKind
	if u.Mode != nil {
		j.Mode = *u.Mode
	}
	if u.OutputPath != nil {
		j.OutputPath = *u.OutputPath
	}
	if u.ObjectKey != nil {
		j.ObjectKey = *u.ObjectKey
	}
	if u.DurationSeconds != nil {
		j.DurationSeconds = *u.DurationSeconds
	}
	if u.FileSizeBytes != nil {
		j.FileSizeBytes = *u.FileSizeBytes
	}
	if u.ClipsUsed != nil {
		j.ClipsUsed = *u.ClipsUsed
	}
	j.UpdatedAt = now
}
