package component

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/application/cqe"
	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/pkg/errno"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingApp struct {
	mu   sync.Mutex
	reqs []cqe.AssembleReq
}

func (a *recordingApp) Assemble(_ context.Context, req *cqe.AssembleReq) (*dto.AssembleResultDto, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reqs = append(a.reqs, *req)
	if req.ScriptID == "missing" {
		return nil, errno.ErrScriptNotFound
	}
	return &dto.AssembleResultDto{JobID: "J", Status: "processing"}, nil
}

func (a *recordingApp) GetStatus(context.Context, string) (*dto.JobDto, error) {
	return nil, errors.New("unused")
}

func (a *recordingApp) OpenArtifact(context.Context, *cqe.DownloadReq) (*dto.ArtifactDto, error) {
	return nil, errors.New("unused")
}

func (a *recordingApp) ListJobs(context.Context, *cqe.ListJobsReq) (*dto.JobListDto, error) {
	return nil, errors.New("unused")
}

func (a *recordingApp) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reqs)
}

func TestConsumerRoutesMessagesAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 4)}
	app := &recordingApp{}
	c := NewAssembleRequestConsumer(app, func() MessageReader { return reader }, ConsumerOptions{Topic: "t", GroupID: "g", CommitOnDecodeError: true})

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"script_id":"S1","topic":"ocean","thumbnail_id":"T1"}`)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`not-json`)}
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(`{"script_id":"missing"}`)}

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.offsets()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, []int64{1, 2, 3}, reader.offsets())
	assert.True(t, reader.closed)
	require.Equal(t, 2, app.count())
	assert.Equal(t, cqe.AssembleReq{ScriptID: "S1", Topic: "ocean", ThumbnailID: "T1"}, app.reqs[0])
}

func TestConsumerLeavesUndecodableUncommitted(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	app := &recordingApp{}
	c := NewAssembleRequestConsumer(app, func() MessageReader { return reader }, ConsumerOptions{CommitOnDecodeError: false})

	reader.msgs <- kafka.Message{Offset: 7, Value: []byte(`{`)}
	reader.msgs <- kafka.Message{Offset: 8, Value: []byte(`{"script_id":"S2"}`)}

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return app.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(reader.offsets()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Stop())
	assert.Equal(t, []int64{8}, reader.offsets())
}

func TestConsumerStartRequiresDependencies(t *testing.T) {
	c := NewAssembleRequestConsumer(nil, nil, ConsumerOptions{})
	require.Error(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
}
