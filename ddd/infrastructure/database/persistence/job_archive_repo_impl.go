package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/infrastructure/database/convertor"
	"video-assembly-service/ddd/infrastructure/database/dao"
)

var _ repo.JobArchiveRepository = (*JobArchiveRepositoryImpl)(nil)

// JobArchiveRepositoryImpl 基于 MySQL 的任务归档
type JobArchiveRepositoryImpl struct {
	dao       *dao.AssemblyJobDAO
	convertor *convertor.AssemblyJobConvertor
}

// NewJobArchiveRepository 创建归档仓储，migrate 为 true 时同步表结构
func NewJobArchiveRepository(db *gorm.DB, migrate bool) (*JobArchiveRepositoryImpl, error) {
	if db == nil {
		return nil, errors.New("archive repository requires a database handle")
	}
	d := dao.NewAssemblyJobDAO(db)
	if migrate {
		if err := d.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate assembly_jobs: %w", err)
		}
	}
	return &JobArchiveRepositoryImpl{
		dao:       d,
		convertor: convertor.NewAssemblyJobConvertor(),
	}, nil
}

func (r *JobArchiveRepositoryImpl) Upsert(ctx context.Context, job *entity.AssemblyJob) error {
	if job == nil || job.ID == "" {
		return errors.New("archive upsert: empty job")
	}
	return r.dao.Upsert(ctx, r.convertor.ToPO(job))
}

func (r *JobArchiveRepositoryImpl) Get(ctx context.Context, jobID string) (*entity.AssemblyJob, error) {
	p, err := r.dao.FindByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrJobRecordNotFound
		}
		return nil, err
	}
	return r.convertor.ToEntity(p), nil
}

func (r *JobArchiveRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*entity.AssemblyJob, error) {
	list, err := r.dao.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntities(list), nil
}
