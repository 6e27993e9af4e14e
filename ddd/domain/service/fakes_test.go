package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/ddd/infrastructure/artifact"
	"video-assembly-service/ddd/infrastructure/persistence"
)

type fakeProber struct {
	mu        sync.Mutex
	durations map[string]float64
	err       error
	hook      func(path string)
}

func (p *fakeProber) ProbeDuration(_ context.Context, path string) (float64, error) {
	if p.hook != nil {
		p.hook(path)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if d, ok := p.durations[path]; ok {
		return d, nil
	}
	return 0, errors.New("no duration")
}

func (p *fakeProber) set(path string, d float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.durations == nil {
		p.durations = map[string]float64{}
	}
	p.durations[path] = d
}

type fakeFootage struct {
	mu          sync.Mutex
	candidates  []entity.ClipCandidate
	searchErr   error
	failIndex   map[int]bool
	downloaded  []string
	searchTopic string
}

func (f *fakeFootage) Search(_ context.Context, topic string, maxCount int) ([]entity.ClipCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchTopic = topic
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.candidates
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

func (f *fakeFootage) Download(_ context.Context, c entity.ClipCandidate, dir string, index int) (*entity.DownloadedClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIndex[index] {
		return nil, fmt.Errorf("download %s: connection reset", c.ProviderID)
	}
	p := filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", index))
	if err := os.WriteFile(p, []byte("clip"), 0o644); err != nil {
		return nil, err
	}
	f.downloaded = append(f.downloaded, c.ProviderID)
	return &entity.DownloadedClip{Path: p, MeasuredDurationSeconds: c.ReportedDurationSeconds, ProviderID: c.ProviderID}, nil
}

type encodeCall struct {
	mode   vo.AssemblyMode
	clips  []entity.DownloadedClip
	image  string
	audio  string
	target float64
}

type fakeEncoder struct {
	mu          sync.Mutex
	outputSize  int
	dynamicErr  error
	staticErr   error
	panicStatic bool
	calls       []encodeCall
}

func (e *fakeEncoder) write(outputPath string, opts port.EncodeOptions) error {
	if opts.ProgressCb != nil {
		opts.ProgressCb(50)
		opts.ProgressCb(100)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, make([]byte, e.outputSize), 0o644)
}

func (e *fakeEncoder) EncodeDynamic(_ context.Context, clips []entity.DownloadedClip, audioPath string, target float64, outputPath string, opts port.EncodeOptions) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, encodeCall{mode: vo.AssemblyModeDynamic, clips: append([]entity.DownloadedClip(nil), clips...), audio: audioPath, target: target})
	err := e.dynamicErr
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	return outputPath, e.write(outputPath, opts)
}

func (e *fakeEncoder) EncodeStatic(_ context.Context, imagePath, audioPath string, target float64, outputPath string, opts port.EncodeOptions) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, encodeCall{mode: vo.AssemblyModeStatic, image: imagePath, audio: audioPath, target: target})
	err := e.staticErr
	doPanic := e.panicStatic
	e.mu.Unlock()
	if doPanic {
		panic("encoder exploded")
	}
	if err != nil {
		return "", err
	}
	return outputPath, e.write(outputPath, opts)
}

type fakeStorage struct {
	keys []string
	err  error
}

func (s *fakeStorage) UploadAssembledFile(_ context.Context, _ string, objectKey, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, objectKey)
	return objectKey, nil
}

type recordingSink struct {
	mu   sync.Mutex
	jobs []*entity.AssemblyJob
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Publish(_ context.Context, job *entity.AssemblyJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingSink) snapshot() []*entity.AssemblyJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.AssemblyJob(nil), r.jobs...)
}

func (r *recordingSink) countStatus(status vo.JobStatus) int {
	n := 0
	for _, j := range r.snapshot() {
		if j.Status == status {
			n++
		}
	}
	return n
}

type testEnv struct {
	root    string
	loc     *artifact.LocalStore
	repo    repo.JobStatusRepository
	prober  *fakeProber
	sink    *recordingSink
	store   *JobStatusStore
	footage *fakeFootage
	encoder *fakeEncoder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	loc, err := artifact.NewLocalStore(root)
	require.NoError(t, err)
	statusRepo, err := persistence.NewStatusFileRepository(filepath.Join(root, "status"))
	require.NoError(t, err)

	env := &testEnv{
		root:    root,
		loc:     loc,
		repo:    statusRepo,
		prober:  &fakeProber{},
		sink:    &recordingSink{},
		footage: &fakeFootage{},
		encoder: &fakeEncoder{outputSize: 64 * 1024},
	}
	env.store = NewJobStatusStore(statusRepo, loc, env.prober, StatusStoreOptions{
		MinOutputBytes: 50000,
		Sinks:          []port.StatusSink{env.sink},
	})
	return env
}

func (e *testEnv) service(storage *fakeStorage) AssemblyService {
	var sg gateway.StorageGateway
	if storage != nil {
		sg = storage
	}
	return NewAssemblyService(e.store, e.loc, e.footage, e.encoder, e.prober, sg, AssemblyOptions{
		MinOutputBytes:       50000,
		FinalizeDelay:        0,
		FallbackAudioSeconds: 60,
		MaxClips:             3,
		MaxClipSeconds:       20,
		ProgressInterval:     time.Nanosecond,
	})
}

// seed 写入脚本、10 秒音频与一张缩略图
func (e *testEnv) seed(t *testing.T, scriptID string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.loc.ScriptPath(scriptID), []byte("narration"), 0o644))
	require.NoError(t, os.WriteFile(e.loc.AudioPath(scriptID), []byte("mp3"), 0o644))
	require.NoError(t, os.WriteFile(e.loc.ThumbnailPath("thumb-"+scriptID), []byte("png"), 0o644))
	e.prober.set(e.loc.AudioPath(scriptID), 10)
}

func (e *testEnv) newJob(t *testing.T, id, scriptID, thumbnailID string) AssemblyTask {
	t.Helper()
	require.NoError(t, e.store.Create(context.Background(), entity.NewAssemblyJob(id, scriptID, "ocean waves", thumbnailID, time.Now())))
	return AssemblyTask{JobID: id, ScriptID: scriptID, Topic: "ocean waves", ThumbnailID: thumbnailID}
}

func clipCandidates(durations ...float64) []entity.ClipCandidate {
	out := make([]entity.ClipCandidate, 0, len(durations))
	for i, d := range durations {
		out = append(out, entity.ClipCandidate{
			URL:                     fmt.Sprintf("https://videos.example/%d.mp4", i),
			ReportedDurationSeconds: d,
			ProviderID:              fmt.Sprintf("p-%d", i),
			Quality:                 "hd",
		})
	}
	return out
}
