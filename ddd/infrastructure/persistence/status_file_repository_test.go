package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/domain/vo"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	r, err := NewStatusFileRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := entity.NewAssemblyJob("job-1", "S1", "forests", "", created)
	job.Status = vo.JobStatusProcessing
	job.Progress = 42
	require.NoError(t, r.Save(ctx, job))

	_, err = os.Stat(filepath.Join(dir, "job-1.json"))
	require.NoError(t, err)

	got, err := r.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatusProcessing, got.Status)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, "forests", got.Topic)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestLoadMissing(t *testing.T) {
	r, err := NewStatusFileRepository(t.TempDir())
	require.NoError(t, err)

	_, err = r.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, repo.ErrJobRecordNotFound)

	_, err = r.Load(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, repo.ErrJobRecordNotFound)
}

func TestListAndDeleteAll(t *testing.T) {
	dir := t.TempDir()
	r, err := NewStatusFileRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Save(ctx, entity.NewAssemblyJob(id, "S", "t", "", time.Now())))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	jobs, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	n, err := r.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	jobs, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
