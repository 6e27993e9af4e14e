package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/vo"
)

const tempDirName = "temp_videos"

// LocalStore 本地产物目录：
//
//	<root>/scripts/<id>.txt
//	<root>/audio/<id>.mp3
//	<root>/thumbnails/<id>.png
//	<root>/videos/<jobId>.mp4
//	<root>/temp_videos/<jobId>/
type LocalStore struct {
	root string
}

var _ gateway.ArtifactLocator = (*LocalStore)(nil)

// NewLocalStore 创建本地产物目录并确保子目录存在
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("content root is empty")
	}
	s := &LocalStore{root: root}
	for _, dir := range []string{
		vo.ArtifactScript.Dir(), vo.ArtifactAudio.Dir(), vo.ArtifactThumbnail.Dir(), vo.ArtifactVideo.Dir(), tempDirName,
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s, nil
}

// Root 内容根目录
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(t vo.ArtifactType, id string) string {
	return filepath.Join(s.root, t.Dir(), id+t.Extension())
}

func (s *LocalStore) ScriptPath(scriptID string) string { return s.path(vo.ArtifactScript, scriptID) }
func (s *LocalStore) AudioPath(scriptID string) string  { return s.path(vo.ArtifactAudio, scriptID) }
func (s *LocalStore) ThumbnailPath(id string) string    { return s.path(vo.ArtifactThumbnail, id) }
func (s *LocalStore) VideoPath(jobID string) string     { return s.path(vo.ArtifactVideo, jobID) }

func (s *LocalStore) tempDir(jobID string) string {
	return filepath.Join(s.root, tempDirName, jobID)
}

func (s *LocalStore) PrepareTempDir(jobID string) (string, error) {
	if !s.ValidID(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	dir := s.tempDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *LocalStore) ReleaseTempDir(jobID string) error {
	if !s.ValidID(jobID) {
		return nil
	}
	return os.RemoveAll(s.tempDir(jobID))
}

func (s *LocalStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *LocalStore) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}

// LatestThumbnail 按修改时间选择最新的缩略图；Go 没有可移植的创建时间
func (s *LocalStore) LatestThumbnail() (string, error) {
	dir := filepath.Join(s.root, vo.ArtifactThumbnail.Dir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", gateway.ErrNoThumbnail
		}
		return "", err
	}
	var (
		latest string
		best   int64
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), vo.ArtifactThumbnail.Extension()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		ts := info.ModTime().UnixNano()
		if latest == "" || ts > best || (ts == best && e.Name() > filepath.Base(latest)) {
			latest, best = filepath.Join(dir, e.Name()), ts
		}
	}
	if latest == "" {
		return "", gateway.ErrNoThumbnail
	}
	return latest, nil
}

func (s *LocalStore) Resolve(t vo.ArtifactType, id string) (string, string, error) {
	if !s.ValidID(id) {
		return "", "", gateway.ErrArtifactNotFound
	}
	p := s.path(t, id)
	if !s.Exists(p) {
		return "", "", gateway.ErrArtifactNotFound
	}
	return p, t.ContentType(), nil
}

// ValidID 只允许普通文件名，拒绝路径分隔符与 ..
func (s *LocalStore) ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsRune(id, 0)
}
