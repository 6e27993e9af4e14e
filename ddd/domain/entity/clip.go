package entity

// ClipCandidate 素材搜索结果，仅在 worker 内使用
type ClipCandidate struct {
	URL                     string
	ReportedDurationSeconds float64
	ProviderID              string
	Quality                 string
	Width                   int
	Height                  int
}

// DownloadedClip 已下载到任务临时目录的片段
type DownloadedClip struct {
	Path                    string
	MeasuredDurationSeconds float64
	ProviderID              string
}
