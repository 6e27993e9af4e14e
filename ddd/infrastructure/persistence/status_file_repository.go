package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/pkg/logger"
)

const statusExt = ".json"

// statusFileRepository 每个任务一个 JSON 文件：<dir>/<jobId>.json
type statusFileRepository struct {
	dir string
}

// NewStatusFileRepository 创建基于文件的状态仓储
func NewStatusFileRepository(dir string) (repo.JobStatusRepository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("status dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	return &statusFileRepository{dir: dir}, nil
}

func (r *statusFileRepository) path(jobID string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	return filepath.Join(r.dir, jobID+statusExt), nil
}

// Save 先写临时文件再 rename，读者不会看到半个文件
func (r *statusFileRepository) Save(_ context.Context, job *entity.AssemblyJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	p, err := r.path(job.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	tmp, err := os.CreateTemp(r.dir, "."+job.ID+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (r *statusFileRepository) Load(_ context.Context, jobID string) (*entity.AssemblyJob, error) {
	p, err := r.path(jobID)
	if err != nil {
		return nil, repo.ErrJobRecordNotFound
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repo.ErrJobRecordNotFound
		}
		return nil, err
	}
	var job entity.AssemblyJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

func (r *statusFileRepository) List(ctx context.Context) ([]*entity.AssemblyJob, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	jobs := make([]*entity.AssemblyJob, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, statusExt) || strings.HasPrefix(name, ".") {
			continue
		}
		job, err := r.Load(ctx, strings.TrimSuffix(name, statusExt))
		if err != nil {
			logger.Warnf("skip unreadable status record file=%s error=%v", name, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *statusFileRepository) DeleteAll(_ context.Context) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), statusExt) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
