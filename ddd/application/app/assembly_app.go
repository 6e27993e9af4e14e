package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"video-assembly-service/ddd/application/cqe"
	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/errno"
	"video-assembly-service/pkg/logger"
)

const (
	startedMessage     = "Video assembly started in background"
	launchFailedReason = "failed to start video assembly"
)

// JobLauncher 异步启动 worker，调用方不等待任务执行
type JobLauncher interface {
	Launch(ctx context.Context, task service.AssemblyTask) error
}

// AssemblyApp 视频合成应用服务
type AssemblyApp interface {
	// Assemble 校验输入、创建任务并异步启动 worker
	Assemble(ctx context.Context, req *cqe.AssembleReq) (*dto.AssembleResultDto, error)
	// GetStatus 查询任务状态（含读时修正）
	GetStatus(ctx context.Context, jobID string) (*dto.JobDto, error)
	// OpenArtifact 定位下载产物
	OpenArtifact(ctx context.Context, req *cqe.DownloadReq) (*dto.ArtifactDto, error)
	// ListJobs 最近的任务，启用归档时读数据库
	ListJobs(ctx context.Context, req *cqe.ListJobsReq) (*dto.JobListDto, error)
}

type assemblyAppImpl struct {
	store    *service.JobStatusStore
	locator  gateway.ArtifactLocator
	launcher JobLauncher
	archive  repo.JobArchiveRepository
	newID    func() string
	now      func() time.Time
}

// NewAssemblyApp 创建应用服务；archive 为 nil 时列表读内存表
func NewAssemblyApp(store *service.JobStatusStore, locator gateway.ArtifactLocator, launcher JobLauncher, archive repo.JobArchiveRepository) AssemblyApp {
	return &assemblyAppImpl{
		store:    store,
		locator:  locator,
		launcher: launcher,
		archive:  archive,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (a *assemblyAppImpl) Assemble(ctx context.Context, req *cqe.AssembleReq) (*dto.AssembleResultDto, error) {
	if req == nil {
		return nil, errno.ErrInvalidParams
	}
	// 验证请求参数
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 输入缺失时同步失败，不创建任务
	if !a.locator.Exists(a.locator.ScriptPath(req.ScriptID)) {
		return nil, errno.ErrScriptNotFound.WithMessage("%s", req.ScriptID)
	}
	if !a.locator.Exists(a.locator.AudioPath(req.ScriptID)) {
		return nil, errno.ErrAudioNotFound.WithMessage("%s", req.ScriptID)
	}
	if req.ThumbnailID != "" && !a.locator.Exists(a.locator.ThumbnailPath(req.ThumbnailID)) {
		return nil, errno.ErrThumbnailNotFound.WithMessage("%s", req.ThumbnailID)
	}

	job := entity.NewAssemblyJob(a.newID(), req.ScriptID, req.Topic, req.ThumbnailID, a.now())
	if err := a.store.Create(ctx, job); err != nil {
		logger.Errorf("create assembly job failed script_id=%s error=%v", req.ScriptID, err)
		return nil, errno.ErrInternalServer.WithMessage("create job: %v", err)
	}

	task := service.AssemblyTask{
		JobID:       job.ID,
		ScriptID:    req.ScriptID,
		Topic:       req.Topic,
		ThumbnailID: req.ThumbnailID,
	}
	// worker 生命周期与请求无关
	if err := a.launcher.Launch(context.WithoutCancel(ctx), task); err != nil {
		logger.Errorf("任务入队失败 job_id=%s error=%v", job.ID, err)
		_, _ = a.store.Apply(ctx, job.ID, entity.JobUpdate{
			Status:      vo.JobStatusFailed,
			Message:     "Failed to start video assembly",
			Error:       fmt.Sprintf("%s: %v", launchFailedReason, err),
			FailureKind: vo.FailureUnhandled,
		})
		return nil, errno.ErrServiceUnavailable.WithMessage("%v", err)
	}

	logger.Info("assembly job accepted", map[string]interface{}{
		"job_id":       job.ID,
		"script_id":    req.ScriptID,
		"topic":        req.Topic,
		"thumbnail_id": req.ThumbnailID,
	})
	return &dto.AssembleResultDto{
		JobID:   job.ID,
		VideoID: job.ID,
		Status:  vo.JobStatusProcessing.String(),
		Message: startedMessage,
	}, nil
}

func (a *assemblyAppImpl) GetStatus(ctx context.Context, jobID string) (*dto.JobDto, error) {
	if jobID == "" || !a.locator.ValidID(jobID) {
		return nil, errno.ErrJobNotFound
	}
	job, err := a.store.Read(ctx, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return nil, errno.ErrJobNotFound
		}
		return nil, errno.ErrInternalServer.WithMessage("%v", err)
	}
	return dto.NewJobDto(job), nil
}

func (a *assemblyAppImpl) OpenArtifact(ctx context.Context, req *cqe.DownloadReq) (*dto.ArtifactDto, error) {
	t, ok := vo.ParseArtifactType(req.ArtifactType)
	if !ok {
		return nil, errno.ErrInvalidArtifactType
	}
	path, contentType, err := a.locator.Resolve(t, req.ArtifactID)
	if err != nil {
		if errors.Is(err, gateway.ErrArtifactNotFound) {
			return nil, errno.ErrArtifactNotFound
		}
		return nil, errno.ErrInternalServer.WithMessage("%v", err)
	}
	return &dto.ArtifactDto{
		Path:        path,
		FileName:    filepath.Base(path),
		ContentType: contentType,
	}, nil
}

func (a *assemblyAppImpl) ListJobs(ctx context.Context, req *cqe.ListJobsReq) (*dto.JobListDto, error) {
	if req == nil {
		req = &cqe.ListJobsReq{}
	}
	req.Normalize()
	if a.archive != nil {
		jobs, err := a.archive.ListRecent(ctx, req.Limit)
		if err == nil {
			return dto.NewJobListDto(jobs, "archive"), nil
		}
		logger.Warnf("list archived jobs failed, falling back to memory error=%v", err)
	}
	return dto.NewJobListDto(a.store.List(req.Limit), "memory"), nil
}
