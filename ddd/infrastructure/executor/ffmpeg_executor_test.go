package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/config"
)

func testSettings() encodeSettings {
	return encodeSettings{
		videoCodec:   "libx264",
		preset:       "fast",
		crf:          28,
		frameRate:    25,
		width:        1280,
		height:       720,
		audioBitrate: "128k",
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildDynamicArgs(t *testing.T) {
	args := buildDynamicArgs(testSettings(), "/tmp/list.txt", "/a/S1.mp3", 12.5, "/v/J1.mp4")

	assert.Equal(t, "concat", argValue(args, "-f"))
	assert.Equal(t, "12.500", argValue(args, "-t"))
	assert.Equal(t, "libx264", argValue(args, "-c:v"))
	assert.Equal(t, "aac", argValue(args, "-c:a"))
	assert.Equal(t, "pipe:2", argValue(args, "-progress"))
	assert.Contains(t, argValue(args, "-vf"), "scale=1280:720")
	assert.Equal(t, "/v/J1.mp4", args[len(args)-1])
	assert.NotContains(t, args, "-threads")
}

func TestBuildStaticArgs(t *testing.T) {
	s := testSettings()
	s.threads = 2
	args := buildStaticArgs(s, "/t/T1.png", "/a/S1.mp3", 30, "/v/J1.mp4")

	assert.Equal(t, "1", argValue(args, "-loop"))
	assert.Equal(t, "stillimage", argValue(args, "-tune"))
	assert.Equal(t, "30.000", argValue(args, "-t"))
	assert.Equal(t, "2", argValue(args, "-threads"))
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, "/v/J1.mp4", args[len(args)-1])
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	clips := []entity.DownloadedClip{
		{Path: filepath.Join(dir, "clip_0.mp4"), MeasuredDurationSeconds: 6},
		{Path: filepath.Join(dir, "it's.mp4"), MeasuredDurationSeconds: 20},
	}
	require.NoError(t, writeConcatList(list, clips))

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "ffconcat version 1.0\n"))
	assert.Contains(t, content, "outpoint 6.000")
	assert.Contains(t, content, "outpoint 20.000")
	assert.Contains(t, content, `it'\''s.mp4`)
}

func TestBoundedExcerpt(t *testing.T) {
	assert.Equal(t, "a | b", boundedExcerpt([]string{"a", "", "  ", "b"}))

	long := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		long = append(long, "Error while decoding stream #0:0")
	}
	out := boundedExcerpt(long)
	assert.True(t, strings.HasPrefix(out, "..."))
	assert.LessOrEqual(t, len(out), maxExcerptBytes+3)
}

func TestScanFFmpegOutputProgress(t *testing.T) {
	input := strings.Join([]string{
		"Input #0, concat, from 'list.txt':",
		"out_time_us=5000000",
		"frame=125",
		"progress=continue",
		"out_time_us=9000000",
		"[aac @ 0x1] Too many bits",
	}, "\n")

	var got []int
	var capture []string
	scanFFmpegOutput(strings.NewReader(input), 10, &capture, func(p int) { got = append(got, p) })

	assert.Equal(t, []int{50, 90}, got)
	assert.Equal(t, []string{"Input #0, concat, from 'list.txt':", "[aac @ 0x1] Too many bits"}, capture)
}

func TestScanFFmpegOutputCapsAt99(t *testing.T) {
	var got []int
	scanFFmpegOutput(strings.NewReader("out_time_us=20000000\n"), 10, nil, func(p int) { got = append(got, p) })
	assert.Equal(t, []int{99}, got)
}

// fakeBinary 写一个模拟 ffmpeg 的 shell 脚本
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script binaries are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestExecutor(binary string, timeout time.Duration) *FFmpegExecutor {
	cfg := config.Default()
	cfg.Transcode.FFmpeg.BinaryPath = binary
	cfg.Transcode.FFmpeg.ProbePath = binary
	cfg.Transcode.FFmpeg.Timeout = timeout
	cfg.Transcode.FFmpeg.ProbeTimeout = timeout
	return NewFFmpegExecutor(cfg)
}

func TestEncodeStaticSuccess(t *testing.T) {
	bin := fakeBinary(t, `echo "out_time_us=1000000" >&2; exit 0`)
	e := newTestExecutor(bin, 5*time.Second)
	out := filepath.Join(t.TempDir(), "videos", "J1.mp4")

	var last int
	path, err := e.EncodeStatic(context.Background(), "img.png", "a.mp3", 2, out, port.EncodeOptions{
		JobID:      "J1",
		ProgressCb: func(p int) { last = p },
	})
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.Equal(t, 100, last)
}

func TestEncodeNonZeroExit(t *testing.T) {
	bin := fakeBinary(t, `echo "Invalid data found when processing input" >&2; exit 3`)
	e := newTestExecutor(bin, 5*time.Second)

	_, err := e.EncodeStatic(context.Background(), "img.png", "a.mp3", 2, filepath.Join(t.TempDir(), "J1.mp4"), port.EncodeOptions{})
	require.Error(t, err)

	var execErr *port.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, vo.FailureEncode, execErr.Kind)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Contains(t, execErr.Excerpt, "Invalid data found")
}

func TestEncodeTimeout(t *testing.T) {
	bin := fakeBinary(t, `exec sleep 5`)
	e := newTestExecutor(bin, 200*time.Millisecond)

	dir := t.TempDir()
	clips := []entity.DownloadedClip{{Path: filepath.Join(dir, "clip_0.mp4"), MeasuredDurationSeconds: 3}}
	start := time.Now()
	_, err := e.EncodeDynamic(context.Background(), clips, "a.mp3", 3, filepath.Join(dir, "J1.mp4"), port.EncodeOptions{WorkDir: dir})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	var execErr *port.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, vo.FailureEncodeTimeout, execErr.Kind)
	assert.Contains(t, execErr.Error(), "timed out")
	assert.FileExists(t, filepath.Join(dir, "concat.txt"))
}

func TestEncodeDynamicRequiresClips(t *testing.T) {
	e := newTestExecutor("ffmpeg", time.Second)
	_, err := e.EncodeDynamic(context.Background(), nil, "a.mp3", 3, "out.mp4", port.EncodeOptions{})
	assert.Error(t, err)
}

func TestProbeDuration(t *testing.T) {
	bin := fakeBinary(t, `echo "12.480000"`)
	e := newTestExecutor(bin, 5*time.Second)

	d, err := e.ProbeDuration(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 0.001)
}

func TestProbeDurationFailure(t *testing.T) {
	bin := fakeBinary(t, `echo "a.mp3: No such file or directory" >&2; exit 1`)
	e := newTestExecutor(bin, 5*time.Second)

	_, err := e.ProbeDuration(context.Background(), "a.mp3")
	var execErr *port.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.ExitCode)
	assert.Contains(t, execErr.Excerpt, "No such file")
}
