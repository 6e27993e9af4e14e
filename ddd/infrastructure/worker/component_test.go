package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/ddd/infrastructure/artifact"
	"video-assembly-service/pkg/config"
)

type stillEncoder struct{}

func (stillEncoder) EncodeDynamic(context.Context, []entity.DownloadedClip, string, float64, string, port.EncodeOptions) (string, error) {
	return "", errors.New("unexpected dynamic encode")
}

func (stillEncoder) EncodeStatic(_ context.Context, _, _ string, _ float64, outputPath string, _ port.EncodeOptions) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	return outputPath, os.WriteFile(outputPath, make([]byte, 60000), 0o644)
}

type fixedProber struct{}

func (fixedProber) ProbeDuration(context.Context, string) (float64, error) { return 5, nil }

type offlineFootage struct{}

func (offlineFootage) Search(context.Context, string, int) ([]entity.ClipCandidate, error) {
	return nil, errors.New("provider unreachable")
}

func (offlineFootage) Download(context.Context, entity.ClipCandidate, string, int) (*entity.DownloadedClip, error) {
	return nil, errors.New("provider unreachable")
}

func TestNewAssemblyComponentRequiresDeps(t *testing.T) {
	_, err := NewAssemblyComponent(Dependencies{})
	require.Error(t, err)
}

func TestAssemblyComponentRunsJobToCompletion(t *testing.T) {
	root := t.TempDir()
	store, err := artifact.NewLocalStore(root)
	require.NoError(t, err)
	for _, p := range []string{store.ScriptPath("S1"), store.AudioPath("S1"), store.ThumbnailPath("T1")} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	cfg := config.Default()
	cfg.Assembly.FinalizeDelay = -1
	cfg.Assembly.MaxConcurrentJobs = 1
	status := service.NewJobStatusStore(nil, store, fixedProber{}, service.StatusStoreOptions{})

	comp, err := NewAssemblyComponent(Dependencies{
		Config:  cfg,
		Store:   status,
		Locator: store,
		Encoder: stillEncoder{},
		Prober:  fixedProber{},
		Footage: offlineFootage{},
	})
	require.NoError(t, err)
	assert.Equal(t, "assemblyWorker", comp.Name())

	ctx := context.Background()
	require.NoError(t, comp.Start(ctx))
	defer func() { _ = comp.Stop() }()

	job := entity.NewAssemblyJob("J1", "S1", "ocean", "", time.Now())
	require.NoError(t, status.Create(ctx, job))
	require.NoError(t, comp.Worker().Launch(ctx, service.AssemblyTask{JobID: "J1", ScriptID: "S1", Topic: "ocean"}))

	require.Eventually(t, func() bool {
		j, err := status.Read(ctx, "J1")
		return err == nil && j.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	j, err := status.Read(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatusCompleted, j.Status)
	assert.Equal(t, vo.AssemblyModeStatic, j.Mode)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, uint64(1), comp.Worker().GetStats().SuccessfulTasks)
}
