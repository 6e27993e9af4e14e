package progress

import (
	"context"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/repo"
)

var _ port.StatusSink = (*ArchiveSink)(nil)

// ArchiveSink 创建和终态写入归档到数据库，中间进度不落库
type ArchiveSink struct {
	archive repo.JobArchiveRepository
}

func NewArchiveSink(archive repo.JobArchiveRepository) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Publish(ctx context.Context, job *entity.AssemblyJob) error {
	if s.archive == nil || job == nil {
		return nil
	}
	if !job.IsTerminal() && job.Progress > 0 {
		return nil
	}
	return s.archive.Upsert(ctx, job)
}
