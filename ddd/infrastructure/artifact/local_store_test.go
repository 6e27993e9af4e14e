package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/vo"
)

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestPathConventions(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	assert.Equal(t, filepath.Join(root, "scripts", "S1.txt"), s.ScriptPath("S1"))
	assert.Equal(t, filepath.Join(root, "audio", "S1.mp3"), s.AudioPath("S1"))
	assert.Equal(t, filepath.Join(root, "thumbnails", "T1.png"), s.ThumbnailPath("T1"))
	assert.Equal(t, filepath.Join(root, "videos", "J1.mp4"), s.VideoPath("J1"))
}

func TestLatestThumbnailByModTime(t *testing.T) {
	s := newStore(t)
	_, err := s.LatestThumbnail()
	assert.ErrorIs(t, err, gateway.ErrNoThumbnail)

	base := time.Now().Add(-time.Hour)
	writeFile(t, s.ThumbnailPath("older"), 10, base)
	writeFile(t, s.ThumbnailPath("newer"), 10, base.Add(time.Minute))
	writeFile(t, filepath.Join(s.Root(), "thumbnails", "notes.txt"), 10, base.Add(time.Hour))

	latest, err := s.LatestThumbnail()
	require.NoError(t, err)
	assert.Equal(t, s.ThumbnailPath("newer"), latest)
}

func TestResolve(t *testing.T) {
	s := newStore(t)
	writeFile(t, s.AudioPath("S1"), 128, time.Now())

	p, ct, err := s.Resolve(vo.ArtifactAudio, "S1")
	require.NoError(t, err)
	assert.Equal(t, s.AudioPath("S1"), p)
	assert.Equal(t, "audio/mpeg", ct)

	_, _, err = s.Resolve(vo.ArtifactVideo, "S1")
	assert.ErrorIs(t, err, gateway.ErrArtifactNotFound)

	_, _, err = s.Resolve(vo.ArtifactScript, "../audio/S1")
	assert.ErrorIs(t, err, gateway.ErrArtifactNotFound)
}

func TestTempDirLifecycle(t *testing.T) {
	s := newStore(t)
	dir, err := s.PrepareTempDir("job-1")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "clip_0.mp4"), 10, time.Now())

	require.NoError(t, s.ReleaseTempDir("job-1"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.ReleaseTempDir("job-1"))

	_, err = s.PrepareTempDir("../escape")
	assert.Error(t, err)
}

func TestValidID(t *testing.T) {
	s := newStore(t)
	assert.True(t, s.ValidID("3f2a-uuid"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "x..y"} {
		assert.False(t, s.ValidID(bad), bad)
	}
}
