package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"video-assembly-service/ddd/infrastructure/database/po"
)

type AssemblyJobDAO struct {
	db *gorm.DB
}

func NewAssemblyJobDAO(db *gorm.DB) *AssemblyJobDAO {
	return &AssemblyJobDAO{db: db}
}

// AutoMigrate 创建或更新归档表
func (d *AssemblyJobDAO) AutoMigrate() error {
	return d.db.AutoMigrate(&po.AssemblyJob{})
}

// Upsert 按 job_id 插入或覆盖
func (d *AssemblyJobDAO) Upsert(ctx context.Context, job *po.AssemblyJob) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "stage", "progress", "message", "error_message", "failure_kind",
			"mode", "output_path", "object_key", "duration_seconds", "file_size_bytes",
			"clips_used", "updated_at",
		}),
	}).Create(job).Error
}

func (d *AssemblyJobDAO) FindByJobID(ctx context.Context, jobID string) (*po.AssemblyJob, error) {
	var job po.AssemblyJob
	if err := d.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (d *AssemblyJobDAO) ListRecent(ctx context.Context, limit int) ([]*po.AssemblyJob, error) {
	var jobs []*po.AssemblyJob
	q := d.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
