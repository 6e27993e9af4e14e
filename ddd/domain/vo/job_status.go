package vo

// JobStatus 合成任务状态
type JobStatus string

const (
	// JobStatusQueued 已受理，等待 worker
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing 处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 已完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 失败
	JobStatusFailed JobStatus = "failed"
)

// IsValid 检查状态是否有效
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s JobStatus) String() string {
	return string(s)
}

// IsFinalStatus 检查是否为最终状态
func (s JobStatus) IsFinalStatus() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo 检查 worker 写入是否允许；failed -> completed 只能由读时修正完成
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return target == JobStatusProcessing || target == JobStatusFailed
	case JobStatusProcessing:
		return target == JobStatusProcessing || target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false // 最终状态不能转换
	default:
		return false
	}
}

// IsReconcilable 读时修正只作用于 processing / failed
func (s JobStatus) IsReconcilable() bool {
	return s == JobStatusProcessing || s == JobStatusFailed
}
