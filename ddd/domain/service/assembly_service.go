package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/logger"
)

// AssemblyTask worker 的输入
type AssemblyTask struct {
	JobID       string
	ScriptID    string
	Topic       string
	ThumbnailID string
}

// AssemblyOptions 合成流程参数
type AssemblyOptions struct {
	MinOutputBytes       int64
	FinalizeDelay        time.Duration
	FallbackAudioSeconds float64
	MaxClips             int
	MaxClipSeconds       float64
	// ProgressInterval 编码进度写入的最小间隔
	ProgressInterval time.Duration
	ObjectPrefix     string
}

// AssemblyService 视频合成领域服务，驱动单个任务走完所有阶段
type AssemblyService interface {
	// Execute 同步执行任务并返回最终状态；不会向外抛出错误或 panic
	Execute(ctx context.Context, task AssemblyTask) vo.JobStatus
}

type assemblyServiceImpl struct {
	store   *JobStatusStore
	locator gateway.ArtifactLocator
	footage port.FootageSource
	encoder port.MediaEncoder
	prober  port.DurationProber
	storage gateway.StorageGateway
	opts    AssemblyOptions
}

// NewAssemblyService 创建合成领域服务；storage 可以为 nil
func NewAssemblyService(
	store *JobStatusStore,
	locator gateway.ArtifactLocator,
	footage port.FootageSource,
	encoder port.MediaEncoder,
	prober port.DurationProber,
	storage gateway.StorageGateway,
	opts AssemblyOptions,
) AssemblyService {
	if opts.MinOutputBytes <= 0 {
		opts.MinOutputBytes = store.MinOutputBytes()
	}
	if opts.FallbackAudioSeconds <= 0 {
		opts.FallbackAudioSeconds = 60
	}
	if opts.MaxClips <= 0 {
		opts.MaxClips = 3
	}
	if opts.MaxClipSeconds <= 0 {
		opts.MaxClipSeconds = 20
	}
	if opts.FinalizeDelay < 0 {
		opts.FinalizeDelay = 0
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}
	if opts.ObjectPrefix == "" {
		opts.ObjectPrefix = "videos"
	}
	return &assemblyServiceImpl{
		store:   store,
		locator: locator,
		footage: footage,
		encoder: encoder,
		prober:  prober,
		storage: storage,
		opts:    opts,
	}
}

// assemblyRun 单次执行的可变状态
type assemblyRun struct {
	task      AssemblyTask
	log       *logrus.Entry
	mu        sync.Mutex
	progress  int
	lastWrite time.Time
	finished  bool
	final     vo.JobStatus
}

// failure 阶段内的致命错误
type failure struct {
	kind    vo.FailureKind
	message string
	err     error
}

func (f *failure) Error() string {
	if f.err != nil {
		return f.message + ": " + f.err.Error()
	}
	return f.message
}

func (s *assemblyServiceImpl) Execute(ctx context.Context, task AssemblyTask) (final vo.JobStatus) {
	run := &assemblyRun{task: task, log: logger.WithJob(task.JobID)}

	if job, err := s.store.Read(ctx, task.JobID); err != nil {
		run.log.Errorf("assembly job not found in status store error=%v", err)
		return vo.JobStatusFailed
	} else if job.IsTerminal() {
		run.log.Infof("skip terminal job status=%s", job.Status)
		return job.Status
	}

	s.store.Claim(task.JobID)
	defer s.store.Release(task.JobID)

	defer func() {
		if r := recover(); r != nil {
			run.log.Errorf("assembly panic recovered: %v\n%s", r, debug.Stack())
			final = s.fail(ctx, run, &failure{kind: vo.FailureUnhandled, message: fmt.Sprintf("Processing error: %v", r)})
		}
	}()

	start := time.Now()
	run.log.Infof("assembly started script_id=%s topic=%q thumbnail_id=%s", task.ScriptID, task.Topic, task.ThumbnailID)

	if err := s.run(ctx, run); err != nil {
		var f *failure
		if !errors.As(err, &f) {
			f = &failure{kind: vo.FailureUnhandled, message: "Processing error", err: err}
		}
		return s.fail(ctx, run, f)
	}
	run.log.Infof("assembly completed elapsed=%s", time.Since(start).Round(time.Millisecond))
	return run.final
}

func (s *assemblyServiceImpl) run(ctx context.Context, run *assemblyRun) error {
	// validating
	s.advance(ctx, run, vo.StageValidating, 0, "Initializing video assembly...")
	in, err := s.validate(ctx, run)
	if err != nil {
		return err
	}
	s.advance(ctx, run, vo.StageValidating, 10, "Inputs validated")

	// acquiring-footage
	s.advance(ctx, run, vo.StageAcquiringFootage, 10, "Searching stock footage...")
	clips := s.acquire(ctx, run, in.audioSeconds)
	s.advance(ctx, run, vo.StageAcquiringFootage, 60, fmt.Sprintf("Acquired %d footage clips", len(clips)))

	// assembling
	outputPath := s.locator.VideoPath(run.task.JobID)
	mode, clipsUsed, err := s.assemble(ctx, run, in, clips, outputPath)
	if err != nil {
		return err
	}

	// finalizing
	s.advance(ctx, run, vo.StageFinalizing, 95, "Finalizing video file...")
	if s.opts.FinalizeDelay > 0 {
		timer := time.NewTimer(s.opts.FinalizeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	size, err := s.locator.FileSize(outputPath)
	if err != nil {
		return &failure{kind: vo.FailureVerification, message: "Video file was not created"}
	}
	if size <= s.opts.MinOutputBytes {
		return &failure{kind: vo.FailureVerification, message: fmt.Sprintf("Video file too small (%d bytes) - creation failed", size)}
	}

	objectKey := s.publish(ctx, run, outputPath)
	duration := in.audioSeconds
	update := entity.JobUpdate{
		Status:          vo.JobStatusCompleted,
		Stage:           vo.StageDone,
		Progress:        100,
		Message:         fmt.Sprintf("Video assembled successfully (%s mode)", mode),
		Mode:            &mode,
		OutputPath:      &outputPath,
		DurationSeconds: &duration,
		FileSizeBytes:   &size,
		ClipsUsed:       &clipsUsed,
	}
	if objectKey != "" {
		update.ObjectKey = &objectKey
	}
	s.finish(ctx, run, update)
	return nil
}

type assemblyInputs struct {
	scriptPath    string
	audioPath     string
	thumbnailPath string
	audioSeconds  float64
}

func (s *assemblyServiceImpl) validate(ctx context.Context, run *assemblyRun) (*assemblyInputs, error) {
	task := run.task
	in := &assemblyInputs{
		scriptPath: s.locator.ScriptPath(task.ScriptID),
		audioPath:  s.locator.AudioPath(task.ScriptID),
	}
	if !s.locator.Exists(in.scriptPath) {
		return nil, &failure{kind: vo.FailureMissingInputs, message: fmt.Sprintf("Script not found: %s", task.ScriptID)}
	}
	if !s.locator.Exists(in.audioPath) {
		return nil, &failure{kind: vo.FailureMissingInputs, message: fmt.Sprintf("Audio not found: %s", task.ScriptID)}
	}

	if task.ThumbnailID != "" {
		in.thumbnailPath = s.locator.ThumbnailPath(task.ThumbnailID)
		if !s.locator.Exists(in.thumbnailPath) {
			return nil, &failure{kind: vo.FailureMissingInputs, message: fmt.Sprintf("Thumbnail not found: %s", task.ThumbnailID)}
		}
	} else {
		latest, err := s.locator.LatestThumbnail()
		if err != nil {
			return nil, &failure{kind: vo.FailureMissingInputs, message: "No thumbnail available", err: err}
		}
		in.thumbnailPath = latest
	}
	s.advance(ctx, run, vo.StageValidating, 5, "Reading narration audio...")

	in.audioSeconds = s.opts.FallbackAudioSeconds
	if s.prober != nil {
		d, err := s.prober.ProbeDuration(ctx, in.audioPath)
		if err == nil && d > 0 {
			in.audioSeconds = d
		} else {
			run.log.Warnf("audio duration probe failed, using fallback seconds=%.1f error=%v", s.opts.FallbackAudioSeconds, err)
		}
	}
	run.log.Infof("inputs validated audio_seconds=%.2f thumbnail=%s", in.audioSeconds, in.thumbnailPath)
	return in, nil
}

// acquire 尽力下载素材，任何错误都降级为少下或不下
func (s *assemblyServiceImpl) acquire(ctx context.Context, run *assemblyRun, audioSeconds float64) []entity.DownloadedClip {
	if s.footage == nil {
		run.log.Infof("footage source not configured, using static mode")
		return nil
	}
	dir, err := s.locator.PrepareTempDir(run.task.JobID)
	if err != nil {
		run.log.Warnf("prepare temp dir failed kind=%s error=%v", vo.FailureAcquisition, err)
		return nil
	}

	candidates, err := s.footage.Search(ctx, run.task.Topic, s.opts.MaxClips)
	if err != nil {
		run.log.Warnf("footage search failed, continuing without footage kind=%s error=%v", vo.FailureAcquisition, err)
		return nil
	}
	run.log.Infof("footage search returned candidates=%d", len(candidates))
	if len(candidates) == 0 {
		return nil
	}
	s.advance(ctx, run, vo.StageAcquiringFootage, 15, fmt.Sprintf("Downloading %d footage clips...", len(candidates)))

	clips := make([]entity.DownloadedClip, 0, len(candidates))
	total := 0.0
	for i, c := range candidates {
		clip, err := s.footage.Download(ctx, c, dir, i)
		if err != nil {
			run.log.Warnf("clip download skipped provider_id=%s kind=%s error=%v", c.ProviderID, vo.FailureAcquisition, err)
			continue
		}
		if clip.MeasuredDurationSeconds > s.opts.MaxClipSeconds {
			clip.MeasuredDurationSeconds = s.opts.MaxClipSeconds
		}
		clips = append(clips, *clip)
		total += clip.MeasuredDurationSeconds
		run.log.Infof("clip downloaded provider_id=%s seconds=%.2f total=%.2f/%.2f", clip.ProviderID, clip.MeasuredDurationSeconds, total, audioSeconds)

		frac := float64(i+1) / float64(len(candidates))
		if total >= audioSeconds {
			frac = 1
		}
		s.advance(ctx, run, vo.StageAcquiringFootage, vo.StageAcquiringFootage.Scale(frac), fmt.Sprintf("Downloaded %d footage clips", len(clips)))
		if total >= audioSeconds {
			break
		}
	}
	return clips
}

// assemble 优先动态模式，失败或无素材时回退静态模式
func (s *assemblyServiceImpl) assemble(ctx context.Context, run *assemblyRun, in *assemblyInputs, clips []entity.DownloadedClip, outputPath string) (vo.AssemblyMode, int, error) {
	if len(clips) > 0 {
		s.advance(ctx, run, vo.StageAssembling, 60, fmt.Sprintf("Creating dynamic video with %d clips...", len(clips)))
		opts := port.EncodeOptions{JobID: run.task.JobID, ProgressCb: s.encodeProgress(ctx, run, 60, 90)}
		if dir, err := s.locator.PrepareTempDir(run.task.JobID); err == nil {
			opts.WorkDir = dir
		}
		_, err := s.encoder.EncodeDynamic(ctx, clips, in.audioPath, in.audioSeconds, outputPath, opts)
		if err == nil {
			return vo.AssemblyModeDynamic, len(clips), nil
		}
		run.log.Warnf("dynamic assembly failed, falling back to static mode error=%v", err)
	}

	lo := run.currentProgress()
	if lo < 60 {
		lo = 60
	}
	s.advance(ctx, run, vo.StageAssembling, lo, "Creating static video with thumbnail...")
	opts := port.EncodeOptions{JobID: run.task.JobID, ProgressCb: s.encodeProgress(ctx, run, lo, 95)}
	if _, err := s.encoder.EncodeStatic(ctx, in.thumbnailPath, in.audioPath, in.audioSeconds, outputPath, opts); err != nil {
		return "", 0, encodeFailure(err)
	}
	return vo.AssemblyModeStatic, 1, nil
}

func encodeFailure(err error) *failure {
	var execErr *port.ExecError
	if errors.As(err, &execErr) && execErr.Kind == vo.FailureEncodeTimeout {
		return &failure{kind: vo.FailureEncodeTimeout, message: "Video creation timed out", err: err}
	}
	return &failure{kind: vo.FailureEncode, message: "Video creation failed", err: err}
}

// encodeProgress 将编码百分比映射到 [lo, hi]，按间隔节流写入
func (s *assemblyServiceImpl) encodeProgress(ctx context.Context, run *assemblyRun, lo, hi int) port.ProgressCallback {
	return func(pct int) {
		value := lo + pct*(hi-lo)/100
		run.mu.Lock()
		if value <= run.progress || time.Since(run.lastWrite) < s.opts.ProgressInterval {
			run.mu.Unlock()
			return
		}
		run.mu.Unlock()
		s.advance(ctx, run, vo.StageAssembling, value, fmt.Sprintf("Encoding video... %d%%", pct))
	}
}

func (s *assemblyServiceImpl) publish(ctx context.Context, run *assemblyRun, outputPath string) string {
	if s.storage == nil {
		return ""
	}
	key := strings.TrimRight(s.opts.ObjectPrefix, "/") + "/" + run.task.JobID + vo.ArtifactVideo.Extension()
	uploaded, err := s.storage.UploadAssembledFile(ctx, outputPath, key, vo.ArtifactVideo.ContentType())
	if err != nil {
		run.log.Warnf("publish to object storage failed key=%s error=%v", key, err)
		return ""
	}
	run.log.Infof("video published object_key=%s", uploaded)
	return uploaded
}

// advance 写入 processing 状态；写入失败只记录日志
func (s *assemblyServiceImpl) advance(ctx context.Context, run *assemblyRun, stage vo.JobStage, progress int, message string) {
	run.mu.Lock()
	if progress < run.progress {
		progress = run.progress
	}
	run.progress = progress
	run.lastWrite = time.Now()
	run.mu.Unlock()

	if _, err := s.store.Apply(ctx, run.task.JobID, entity.JobUpdate{
		Status:   vo.JobStatusProcessing,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	}); err != nil {
		run.log.Warnf("status write failed stage=%s progress=%d error=%v", stage, progress, err)
	}
}

func (s *assemblyServiceImpl) fail(ctx context.Context, run *assemblyRun, f *failure) vo.JobStatus {
	run.log.Errorf("assembly failed kind=%s error=%s", f.kind, f.Error())
	s.finish(ctx, run, entity.JobUpdate{
		Status:      vo.JobStatusFailed,
		Progress:    run.currentProgress(),
		Message:     f.message,
		Error:       f.Error(),
		FailureKind: f.kind,
	})
	return vo.JobStatusFailed
}

// finish 释放临时目录后写入最终状态，只执行一次
func (s *assemblyServiceImpl) finish(ctx context.Context, run *assemblyRun, u entity.JobUpdate) {
	run.mu.Lock()
	if run.finished {
		run.mu.Unlock()
		return
	}
	run.finished = true
	run.final = u.Status
	run.mu.Unlock()

	if err := s.locator.ReleaseTempDir(run.task.JobID); err != nil {
		run.log.Warnf("release temp dir failed error=%v", err)
	}
	if _, err := s.store.Apply(ctx, run.task.JobID, u); err != nil {
		run.log.Errorf("final status write failed status=%s error=%v", u.Status, err)
		if u.Status == vo.JobStatusCompleted {
			// completed 被拒绝时仍需写入最终状态
			_, _ = s.store.Apply(ctx, run.task.JobID, entity.JobUpdate{
				Status:      vo.JobStatusFailed,
				Progress:    run.currentProgress(),
				Message:     "Video verification failed",
				Error:       err.Error(),
				FailureKind: vo.FailureVerification,
			})
			run.final = vo.JobStatusFailed
		}
	}
}

func (r *assemblyRun) currentProgress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}
