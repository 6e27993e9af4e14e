package repo

import (
	"context"
	"errors"

	"video-assembly-service/ddd/domain/entity"
)

// ErrJobRecordNotFound 持久化记录不存在
var ErrJobRecordNotFound = errors.New("job record not found")

// JobStatusRepository 每个任务一条持久化状态记录
type JobStatusRepository interface {
	Save(ctx context.Context, job *entity.AssemblyJob) error
	Load(ctx context.Context, jobID string) (*entity.AssemblyJob, error)
	List(ctx context.Context) ([]*entity.AssemblyJob, error)
	DeleteAll(ctx context.Context) (int, error)
}

// JobArchiveRepository 终态任务归档（MySQL）
type JobArchiveRepository interface {
	Upsert(ctx context.Context, job *entity.AssemblyJob) error
	Get(ctx context.Context, jobID string) (*entity.AssemblyJob, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.AssemblyJob, error)
}
