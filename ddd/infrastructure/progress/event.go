package progress

import (
	"time"

	"video-assembly-service/ddd/domain/entity"
)

// JobEvent 对外发布的任务状态快照
type JobEvent struct {
	JobID           string    `json:"job_id"`
	ScriptID        string    `json:"script_id"`
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
	UpdatedAt       time.Time `json:"updated_at"`
}

func newJobEvent(job *entity.AssemblyJob) JobEvent {
	return JobEvent{
		JobID:           job.ID,
		ScriptID:        job.ScriptID,
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
		UpdatedAt:       job.UpdatedAt,
	}
}
