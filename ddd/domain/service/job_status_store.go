package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/logger"
)

const (
	reconciledMessage = "Video ready for download!"
	sinkTimeout       = 3 * time.Second
)

var (
	// ErrJobNotFound 内存与持久化记录中都不存在
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists 任务 id 已被使用
	ErrJobExists = errors.New("job already exists")
	// ErrJobFinalized 任务已处于最终状态
	ErrJobFinalized = errors.New("job already in final status")
	// ErrInvalidTransition 状态转换非法
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCompletionUnverified completed 写入缺少产物或产物过小
	ErrCompletionUnverified = errors.New("completed status requires a verified output artifact")
)

// StatusStoreOptions 状态存储配置
type StatusStoreOptions struct {
	MinOutputBytes int64
	Sinks          []port.StatusSink
	Now            func() time.Time
}

// JobStatusStore 任务状态存储：内存表 + 每任务一条持久化记录。
// 所有写入（包括读时修正）在同一把锁下串行执行。
type JobStatusStore struct {
	mu     sync.Mutex
	jobs   map[string]*entity.AssemblyJob
	active map[string]struct{}

	repo     repo.JobStatusRepository
	locator  gateway.ArtifactLocator
	prober   port.DurationProber
	sinks    []port.StatusSink
	minBytes int64
	now      func() time.Time
}

// NewJobStatusStore 创建状态存储
func NewJobStatusStore(statusRepo repo.JobStatusRepository, locator gateway.ArtifactLocator, prober port.DurationProber, opts StatusStoreOptions) *JobStatusStore {
	if opts.MinOutputBytes <= 0 {
		opts.MinOutputBytes = 50000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JobStatusStore{
		jobs:     make(map[string]*entity.AssemblyJob),
		active:   make(map[string]struct{}),
		repo:     statusRepo,
		locator:  locator,
		prober:   prober,
		sinks:    opts.Sinks,
		minBytes: opts.MinOutputBytes,
		now:      opts.Now,
	}
}

// MinOutputBytes 产物最小有效大小
func (s *JobStatusStore) MinOutputBytes() int64 { return s.minBytes }

// Create 写入 queued 记录
func (s *JobStatusStore) Create(ctx context.Context, job *entity.AssemblyJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("create job: empty id")
	}
	s.mu.Lock()
	if _, ok := s.jobs[job.ID]; ok {
		s.mu.Unlock()
		return ErrJobExists
	}
	if s.repo != nil {
		if _, err := s.repo.Load(ctx, job.ID); err == nil {
			s.mu.Unlock()
			return ErrJobExists
		}
	}
	snapshot := job.Clone()
	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("persist job %s: %w", job.ID, err)
		}
	}
	s.jobs[job.ID] = snapshot
	out := snapshot.Clone()
	s.mu.Unlock()

	s.notify(ctx, out)
	return nil
}

// Write 按 (status, progress, message, error) 更新记录
func (s *JobStatusStore) Write(ctx context.Context, jobID string, status vo.JobStatus, progress int, message, errMsg string) (*entity.AssemblyJob, error) {
	return s.Apply(ctx, jobID, entity.JobUpdate{Status: status, Progress: progress, Message: message, Error: errMsg})
}

// Apply 更新记录并持久化。持久化失败时内存状态已经更新，错误返回给调用方记录日志。
func (s *JobStatusStore) Apply(ctx context.Context, jobID string, u entity.JobUpdate) (*entity.AssemblyJob, error) {
	s.mu.Lock()
	cur, err := s.lookupLocked(ctx, jobID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if cur.IsTerminal() {
		out := cur.Clone()
		s.mu.Unlock()
		return out, ErrJobFinalized
	}
	if !cur.Status.CanTransitionTo(u.Status) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, u.Status)
	}

	if u.Progress < 0 {
		u.Progress = 0
	}
	if u.Progress > 100 {
		u.Progress = 100
	}
	switch u.Status {
	case vo.JobStatusProcessing:
		if u.Progress < cur.Progress {
			u.Progress = cur.Progress
		}
	case vo.JobStatusFailed:
		if u.Error == "" {
			u.Error = u.Message
		}
		if u.Error == "" {
			u.Error = "unknown error"
		}
		if u.Progress < cur.Progress {
			u.Progress = cur.Progress
		}
	case vo.JobStatusCompleted:
		outputPath := cur.OutputPath
		if u.OutputPath != nil {
			outputPath = *u.OutputPath
		}
		size := cur.FileSizeBytes
		if u.FileSizeBytes != nil {
			size = *u.FileSizeBytes
		}
		if outputPath == "" || size <= s.minBytes {
			s.mu.Unlock()
			return nil, ErrCompletionUnverified
		}
		u.Progress = 100
		u.Error = ""
	}

	cur.Apply(u, s.now())
	out, perr := s.persistLocked(ctx, cur)
	s.mu.Unlock()

	s.notify(ctx, out)
	return out, perr
}

// Read 返回任务记录；processing/failed 且产物已达标时修正为 completed
func (s *JobStatusStore) Read(ctx context.Context, jobID string) (*entity.AssemblyJob, error) {
	s.mu.Lock()
	cur, err := s.lookupLocked(ctx, jobID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := cur.Clone()
	_, live := s.active[jobID]
	s.mu.Unlock()

	if live || !snapshot.Status.IsReconcilable() {
		return snapshot, nil
	}
	if reconciled := s.reconcile(ctx, snapshot); reconciled != nil {
		return reconciled, nil
	}
	return snapshot, nil
}

// reconcile 在锁外检查产物，写入前在锁内重新确认记录状态
func (s *JobStatusStore) reconcile(ctx context.Context, snapshot *entity.AssemblyJob) *entity.AssemblyJob {
	if s.locator == nil {
		return nil
	}
	path := s.locator.VideoPath(snapshot.ID)
	size, err := s.locator.FileSize(path)
	if err != nil || size <= s.minBytes {
		return nil
	}

	duration := snapshot.DurationSeconds
	if s.prober != nil {
		if d, perr := s.prober.ProbeDuration(ctx, path); perr == nil && d > 0 {
			duration = d
		}
	}

	s.mu.Lock()
	cur, ok := s.jobs[snapshot.ID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, live := s.active[snapshot.ID]; live || !cur.Status.IsReconcilable() {
		// worker 已写入更新的状态，放弃本次修正
		out := cur.Clone()
		s.mu.Unlock()
		return out
	}

	prevStatus := cur.Status
	clips := cur.ClipsUsed
	if clips <= 0 {
		clips = 1
	}
	cur.Apply(entity.JobUpdate{
		Status:          vo.JobStatusCompleted,
		Stage:           vo.StageDone,
		Progress:        100,
		Message:         reconciledMessage,
		FailureKind:     "",
		OutputPath:      &path,
		FileSizeBytes:   &size,
		DurationSeconds: &duration,
		ClipsUsed:       &clips,
	}, s.now())
	out, perr := s.persistLocked(ctx, cur)
	s.mu.Unlock()

	if perr != nil {
		logger.Warnf("reconciled job not persisted job_id=%s error=%v", snapshot.ID, perr)
	}
	logger.Infof("job reconciled from artifact job_id=%s from=%s size=%d duration=%.2f", snapshot.ID, prevStatus, size, duration)
	s.notify(ctx, out)
	return out
}

// Claim 标记任务由本进程内的 worker 持有，读时修正跳过该任务
func (s *JobStatusStore) Claim(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobID] = struct{}{}
}

// Release 释放 Claim
func (s *JobStatusStore) Release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}

// Count 内存表中的任务数
func (s *JobStatusStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// List 按创建时间倒序返回内存表快照
func (s *JobStatusStore) List(limit int) []*entity.AssemblyJob {
	s.mu.Lock()
	out := make([]*entity.AssemblyJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PurgeAll 清空内存表与持久化记录，仅在启动阶段调用
func (s *JobStatusStore) PurgeAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*entity.AssemblyJob)
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteAll(ctx)
}

func (s *JobStatusStore) lookupLocked(ctx context.Context, jobID string) (*entity.AssemblyJob, error) {
	if j, ok := s.jobs[jobID]; ok {
		return j, nil
	}
	if s.repo == nil {
		return nil, ErrJobNotFound
	}
	j, err := s.repo.Load(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrJobRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	s.jobs[jobID] = j
	return j, nil
}

func (s *JobStatusStore) persistLocked(ctx context.Context, j *entity.AssemblyJob) (*entity.AssemblyJob, error) {
	out := j.Clone()
	if s.repo == nil {
		return out, nil
	}
	if err := s.repo.Save(ctx, out.Clone()); err != nil {
		return out, fmt.Errorf("persist job %s: %w", j.ID, err)
	}
	return out, nil
}

func (s *JobStatusStore) notify(ctx context.Context, job *entity.AssemblyJob) {
	if len(s.sinks) == 0 || job == nil {
		return
	}
	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := sink.Publish(sctx, job.Clone()); err != nil {
			logger.Warnf("status sink publish failed sink=%s job_id=%s status=%s error=%v", sink.Name(), job.ID, job.Status, err)
		}
		cancel()
	}
}
