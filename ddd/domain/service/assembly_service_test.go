package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/vo"
)

func readJob(t *testing.T, env *testEnv, id string) *entity.AssemblyJob {
	t.Helper()
	job, err := env.store.Read(context.Background(), id)
	require.NoError(t, err)
	return job
}

func assertTempDirReleased(t *testing.T, env *testEnv, jobID string) {
	t.Helper()
	dir, err := env.loc.PrepareTempDir(jobID)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp dir should have been released")
}

func assertMonotonic(t *testing.T, env *testEnv, jobID string) {
	t.Helper()
	last := -1
	for _, j := range env.sink.snapshot() {
		if j.ID != jobID || j.Status != vo.JobStatusProcessing {
			continue
		}
		assert.GreaterOrEqual(t, j.Progress, last)
		last = j.Progress
	}
}

func TestDynamicModeStopsOnceAudioCovered(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.footage.candidates = clipCandidates(6, 6, 6)
	task := env.newJob(t, "job-1", "S1", "")

	final := env.service(nil).Execute(context.Background(), task)
	require.Equal(t, vo.JobStatusCompleted, final)

	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.JobStatusCompleted, job.Status)
	assert.Equal(t, vo.AssemblyModeDynamic, job.Mode)
	assert.Equal(t, 2, job.ClipsUsed)
	assert.Equal(t, 10.0, job.DurationSeconds)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, env.loc.VideoPath("job-1"), job.OutputPath)
	assert.Greater(t, job.FileSizeBytes, int64(50000))
	assert.Equal(t, "ocean waves", env.footage.searchTopic)
	assert.Equal(t, []string{"p-0", "p-1"}, env.footage.downloaded)

	require.Len(t, env.encoder.calls, 1)
	call := env.encoder.calls[0]
	assert.Equal(t, vo.AssemblyModeDynamic, call.mode)
	assert.Len(t, call.clips, 2)
	assert.Equal(t, 10.0, call.target)

	assertTempDirReleased(t, env, "job-1")
	assertMonotonic(t, env, "job-1")
}

func TestStaticModeWhenNoFootage(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))

	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.AssemblyModeStatic, job.Mode)
	assert.Equal(t, 1, job.ClipsUsed)
	require.Len(t, env.encoder.calls, 1)
	assert.Equal(t, vo.AssemblyModeStatic, env.encoder.calls[0].mode)
	assert.Equal(t, env.loc.ThumbnailPath("thumb-S1"), env.encoder.calls[0].image)
}

func TestSearchFailureDowngradesToStatic(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.footage.searchErr = errors.New("provider returned 503")
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.AssemblyModeStatic, job.Mode)
	assert.Equal(t, 1, job.ClipsUsed)
}

func TestPartialDownloadFailureSkipsClip(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.footage.candidates = clipCandidates(8, 4, 4)
	env.footage.failIndex = map[int]bool{0: true}
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.AssemblyModeDynamic, job.Mode)
	assert.Equal(t, 2, job.ClipsUsed)
	assert.Equal(t, []string{"p-1", "p-2"}, env.footage.downloaded)
}

func TestClipDurationCapped(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.prober.set(env.loc.AudioPath("S1"), 90)
	env.footage.candidates = clipCandidates(45, 30)
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	require.Len(t, env.encoder.calls, 1)
	for _, c := range env.encoder.calls[0].clips {
		assert.LessOrEqual(t, c.MeasuredDurationSeconds, 20.0)
	}
}

func TestDynamicFailureFallsBackToStatic(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.footage.candidates = clipCandidates(12)
	env.encoder.dynamicErr = &port.ExecError{Kind: vo.FailureEncode, Op: "ffmpeg dynamic encode", ExitCode: 1, Excerpt: "Invalid data"}
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.AssemblyModeStatic, job.Mode)
	assert.Equal(t, 1, job.ClipsUsed)
	require.Len(t, env.encoder.calls, 2)
	assert.Equal(t, vo.AssemblyModeDynamic, env.encoder.calls[0].mode)
	assert.Equal(t, vo.AssemblyModeStatic, env.encoder.calls[1].mode)
	assertMonotonic(t, env, "job-1")
}

func TestEncodeTimeoutIsDistinctFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.encoder.staticErr = &port.ExecError{Kind: vo.FailureEncodeTimeout, Op: "ffmpeg static encode", Timeout: 600 * time.Second}
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.JobStatusFailed, job.Status)
	assert.Equal(t, vo.FailureEncodeTimeout, job.FailureKind)
	assert.Equal(t, "Video creation timed out", job.Message)
	assert.Contains(t, job.Error, "timed out after 10m0s")
	assertTempDirReleased(t, env, "job-1")
}

func TestEncodeExitFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.encoder.staticErr = &port.ExecError{Kind: vo.FailureEncode, Op: "ffmpeg static encode", ExitCode: 1, Excerpt: "No such filter"}
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.FailureEncode, job.FailureKind)
	assert.Equal(t, "Video creation failed", job.Message)
	assert.Contains(t, job.Error, "exit code 1")
	assert.Contains(t, job.Error, "No such filter")
}

func TestTinyOutputFailsVerification(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.encoder.outputSize = 1024
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.JobStatusFailed, job.Status)
	assert.Equal(t, vo.FailureVerification, job.FailureKind)
	assert.Equal(t, "Video file too small (1024 bytes) - creation failed", job.Error)

	// 部分产物保留
	size, err := env.loc.FileSize(env.loc.VideoPath("job-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), size)

	// 读时修正不会把小文件判定为完成
	assert.Equal(t, vo.JobStatusFailed, readJob(t, env, "job-1").Status)
}

func TestMissingThumbnailFails(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	require.NoError(t, os.Remove(env.loc.ThumbnailPath("thumb-S1")))
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.FailureMissingInputs, job.FailureKind)
	assert.Contains(t, job.Error, "No thumbnail available")
	assert.Empty(t, env.encoder.calls)
}

func TestMissingAudioFailsEarly(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	require.NoError(t, os.Remove(env.loc.AudioPath("S1")))
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.FailureMissingInputs, job.FailureKind)
	assert.Equal(t, "Audio not found: S1", job.Error)
}

func TestExplicitThumbnailWins(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	require.NoError(t, os.WriteFile(env.loc.ThumbnailPath("chosen"), []byte("png"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(env.loc.ThumbnailPath("chosen"), old, old))
	task := env.newJob(t, "job-1", "S1", "chosen")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	require.Len(t, env.encoder.calls, 1)
	assert.Equal(t, env.loc.ThumbnailPath("chosen"), env.encoder.calls[0].image)
}

func TestAudioProbeFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.prober.set(env.loc.AudioPath("S1"), 0)
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(nil).Execute(context.Background(), task))
	assert.Equal(t, 60.0, env.encoder.calls[0].target)
	assert.Equal(t, 60.0, readJob(t, env, "job-1").DurationSeconds)
}

func TestPanicBecomesFailedStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	env.encoder.panicStatic = true
	task := env.newJob(t, "job-1", "S1", "")

	assert.NotPanics(t, func() {
		assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	})
	job := readJob(t, env, "job-1")
	assert.Equal(t, vo.JobStatusFailed, job.Status)
	assert.Equal(t, vo.FailureUnhandled, job.FailureKind)
	assert.Contains(t, job.Error, "Processing error: encoder exploded")
	assertTempDirReleased(t, env, "job-1")
}

func TestPublishesToObjectStorage(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	storage := &fakeStorage{}
	task := env.newJob(t, "job-1", "S1", "")

	assert.Equal(t, vo.JobStatusCompleted, env.service(storage).Execute(context.Background(), task))
	assert.Equal(t, []string{"videos/job-1.mp4"}, storage.keys)
	assert.Equal(t, "videos/job-1.mp4", readJob(t, env, "job-1").ObjectKey)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	task := env.newJob(t, "job-1", "S1", "")

	final := env.service(&fakeStorage{err: errors.New("bucket unreachable")}).Execute(context.Background(), task)
	assert.Equal(t, vo.JobStatusCompleted, final)
	assert.Empty(t, readJob(t, env, "job-1").ObjectKey)
}

func TestExecuteSkipsTerminalJob(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "S1")
	task := env.newJob(t, "job-1", "S1", "")
	_, err := env.store.Write(context.Background(), "job-1", vo.JobStatusFailed, 0, "cancelled upstream", "gone")
	require.NoError(t, err)

	assert.Equal(t, vo.JobStatusFailed, env.service(nil).Execute(context.Background(), task))
	assert.Empty(t, env.encoder.calls)
}
