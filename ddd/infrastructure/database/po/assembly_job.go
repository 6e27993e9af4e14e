package po

// AssemblyJob 合成任务归档持久化对象
type AssemblyJob struct {
	BaseModel
	JobID           string  `gorm:"column:job_id;type:varchar(64);uniqueIndex" json:"job_id"`
	ScriptID        string  `gorm:"column:script_id;type:varchar(128);index" json:"script_id"`
	Topic           string  `gorm:"column:topic;type:varchar(255)" json:"topic"`
	ThumbnailID     string  `gorm:"column:thumbnail_id;type:varchar(128)" json:"thumbnail_id"`
	Status          string  `gorm:"column:status;type:varchar(20);index" json:"status"`
	Stage           string  `gorm:"column:stage;type:varchar(32)" json:"stage"`
	Progress        int     `gorm:"column:progress;type:int" json:"progress"`
	Message         string  `gorm:"column:message;type:varchar(255)" json:"message"`
	ErrorMessage    string  `gorm:"column:error_message;type:text" json:"error_message"`
	FailureKind     string  `gorm:"column:failure_kind;type:varchar(32)" json:"failure_kind"`
	Mode            string  `gorm:"column:mode;type:varchar(16)" json:"mode"`
	OutputPath      string  `gorm:"column:output_path;type:varchar(512)" json:"output_path"`
	ObjectKey       string  `gorm:"column:object_key;type:varchar(512)" json:"object_key"`
	DurationSeconds float64 `gorm:"column:duration_seconds;type:double" json:"duration_seconds"`
	FileSizeBytes   int64   `gorm:"column:file_size_bytes;type:bigint" json:"file_size_bytes"`
	ClipsUsed       int     `gorm:"column:clips_used;type:int" json:"clips_used"`
}

// TableName 指定表名
func (AssemblyJob) TableName() string {
	return "assembly_jobs"
}
