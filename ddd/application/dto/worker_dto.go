package dto

import "time"

// WorkerStatisticsDto Worker统计
type WorkerStatisticsDto struct {
	Running          bool   `json:"running"`
	Concurrency      int    `json:"concurrency"`
	ProcessedTasks   uint64 `json:"processed_tasks"`
	SuccessfulTasks  uint64 `json:"successful_tasks"`
	FailedTasks      uint64 `json:"failed_tasks"`
	CurrentlyRunning int    `json:"currently_running"`
	Queued           int    `json:"queued"`
	StartTime        string `json:"start_time,omitempty"`
	LastTaskTime     string `json:"last_task_time,omitempty"`
	JobsInMemory     int    `json:"jobs_in_memory"`
}

// HealthDto 健康检查
type HealthDto struct {
	Status            string               `json:"status"`
	FFmpegAvailable   bool                 `json:"ffmpeg_available"`
	FootageConfigured bool                 `json:"footage_configured"`
	Integrations      map[string]bool      `json:"integrations"`
	Worker            *WorkerStatisticsDto `json:"worker"`
	Timestamp         string               `json:"timestamp"`
}

// FormatTime 格式化时间，零值返回空串
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
