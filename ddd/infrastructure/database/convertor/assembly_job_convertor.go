package convertor

import (
	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/ddd/infrastructure/database/po"
)

// AssemblyJobConvertor 合成任务转换器
type AssemblyJobConvertor struct{}

// NewAssemblyJobConvertor 创建合成任务转换器
func NewAssemblyJobConvertor() *AssemblyJobConvertor {
	return &AssemblyJobConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *AssemblyJobConvertor) ToEntity(p *po.AssemblyJob) *entity.AssemblyJob {
	if p == nil {
		return nil
	}
	status := vo.JobStatus(p.Status)
	if !status.IsValid() {
		status = vo.JobStatusFailed
	}
	return &entity.AssemblyJob{
		ID:              p.JobID,
		ScriptID:        p.ScriptID,
		Topic:           p.Topic,
		ThumbnailID:     p.ThumbnailID,
		Status:          status,
		Stage:           vo.JobStage(p.Stage),
		Progress:        p.Progress,
		Message:         p.Message,
		Error:           p.ErrorMessage,
		FailureKind:     vo.FailureKind(p.FailureKind),
		Mode:            vo.AssemblyMode(p.Mode),
		OutputPath:      p.OutputPath,
		ObjectKey:       p.ObjectKey,
		DurationSeconds: p.DurationSeconds,
		FileSizeBytes:   p.FileSizeBytes,
		ClipsUsed:       p.ClipsUsed,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// ToPO 将Entity转换为PO
func (c *AssemblyJobConvertor) ToPO(e *entity.AssemblyJob) *po.AssemblyJob {
	if e == nil {
		return nil
	}
	return &po.AssemblyJob{
		BaseModel: po.BaseModel{
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		JobID:           e.ID,
		ScriptID:        e.ScriptID,
		Topic:           e.Topic,
		ThumbnailID:     e.ThumbnailID,
		Status:          e.Status.String(),
		Stage:           string(e.Stage),
		Progress:        e.Progress,
		Message:         truncate(e.Message, 255),
		ErrorMessage:    e.Error,
		FailureKind:     string(e.FailureKind),
		Mode:            string(e.Mode),
		OutputPath:      e.OutputPath,
		ObjectKey:       e.ObjectKey,
		DurationSeconds: e.DurationSeconds,
		FileSizeBytes:   e.FileSizeBytes,
		ClipsUsed:       e.ClipsUsed,
	}
}

// ToEntities 批量转换
func (c *AssemblyJobConvertor) ToEntities(list []*po.AssemblyJob) []*entity.AssemblyJob {
	out := make([]*entity.AssemblyJob, 0, len(list))
	for _, p := range list {
		if e := c.ToEntity(p); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
