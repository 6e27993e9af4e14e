package vo

// JobStage worker 所处阶段，严格按顺序推进
type JobStage string

const (
	StageQueued           JobStage = "queued"
	StageValidating       JobStage = "validating"
	StageAcquiringFootage JobStage = "acquiring-footage"
	StageAssembling       JobStage = "assembling"
	StageFinalizing       JobStage = "finalizing"
	StageDone             JobStage = "done"
)

// ProgressRange 阶段对应的进度区间
func (s JobStage) ProgressRange() (int, int) {
	switch s {
	case StageValidating:
		return 0, 10
	case StageAcquiringFootage:
		return 10, 60
	case StageAssembling:
		return 60, 95
	case StageFinalizing:
		return 95, 100
	case StageDone:
		return 100, 100
	default:
		return 0, 0
	}
}

// Scale 将阶段内 0..1 的比例映射到进度区间
func (s JobStage) Scale(fraction float64) int {
	lo, hi := s.ProgressRange()
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return lo + int(fraction*float64(hi-lo))
}

// AssemblyMode 画面来源
type AssemblyMode string

const (
	AssemblyModeDynamic AssemblyMode = "dynamic"
	AssemblyModeStatic  AssemblyMode = "static"
)
