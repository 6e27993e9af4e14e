package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

const (
	stderrRingLines = 200
	maxExcerptBytes = 400
)

var (
	_ port.MediaEncoder   = (*FFmpegExecutor)(nil)
	_ port.DurationProber = (*FFmpegExecutor)(nil)
)

// FFmpegExecutor implements port.MediaEncoder and port.DurationProber with local ffmpeg/ffprobe.
type FFmpegExecutor struct {
	binary       string
	probeBinary  string
	timeout      time.Duration
	probeTimeout time.Duration
	settings     encodeSettings
}

func NewFFmpegExecutor(cfg *config.Config) *FFmpegExecutor {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	ff := cfg.Transcode.FFmpeg
	return &FFmpegExecutor{
		binary:       ff.BinaryPath,
		probeBinary:  ff.ProbePath,
		timeout:      ff.Timeout,
		probeTimeout: ff.ProbeTimeout,
		settings: encodeSettings{
			videoCodec:   ff.VideoCodec,
			preset:       ff.VideoPreset,
			crf:          ff.CRF,
			frameRate:    ff.FrameRate,
			width:        ff.Width,
			height:       ff.Height,
			audioBitrate: ff.AudioBitrate,
			threads:      ff.Threads,
		},
	}
}

// EncodeDynamic 拼接素材片段并叠加旁白音轨，输出截断到 targetSeconds
func (e *FFmpegExecutor) EncodeDynamic(ctx context.Context, clips []entity.DownloadedClip, audioPath string, targetSeconds float64, outputPath string, opts port.EncodeOptions) (string, error) {
	if len(clips) == 0 {
		return "", errors.New("dynamic encode requires at least one clip")
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(clips[0].Path)
	}
	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, clips); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	args := buildDynamicArgs(e.settings, listPath, audioPath, targetSeconds, outputPath)
	logger.Infof("ffmpeg command job_id=%s mode=dynamic clips=%d command=%s %s", opts.JobID, len(clips), e.binary, strings.Join(args, " "))
	if err := e.run(ctx, "ffmpeg dynamic encode", e.binary, e.timeout, args, targetSeconds, opts.ProgressCb); err != nil {
		return "", err
	}
	return outputPath, nil
}

// EncodeStatic 循环缩略图作为画面，输出截断到 targetSeconds
func (e *FFmpegExecutor) EncodeStatic(ctx context.Context, imagePath, audioPath string, targetSeconds float64, outputPath string, opts port.EncodeOptions) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	args := buildStaticArgs(e.settings, imagePath, audioPath, targetSeconds, outputPath)
	logger.Infof("ffmpeg command job_id=%s mode=static command=%s %s", opts.JobID, e.binary, strings.Join(args, " "))
	if err := e.run(ctx, "ffmpeg static encode", e.binary, e.timeout, args, targetSeconds, opts.ProgressCb); err != nil {
		return "", err
	}
	return outputPath, nil
}

// ProbeDuration 调用 ffprobe 获取时长（秒）
func (e *FFmpegExecutor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, &port.ExecError{Kind: vo.FailureEncodeTimeout, Op: "ffprobe", Timeout: e.probeTimeout, Err: err}
		}
		execErr := &port.ExecError{Kind: vo.FailureEncode, Op: "ffprobe", ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
			execErr.Excerpt = boundedExcerpt(strings.Split(string(exitErr.Stderr), "\n"))
		}
		return 0, execErr
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return val, nil
}

// run 执行命令并区分超时与非零退出
func (e *FFmpegExecutor) run(ctx context.Context, op, binary string, timeout time.Duration, args []string, durationSec float64, progressCb port.ProgressCallback) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &port.ExecError{Kind: vo.FailureEncode, Op: op, ExitCode: -1, Err: fmt.Errorf("创建FFmpeg stderr管道失败: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &port.ExecError{Kind: vo.FailureEncode, Op: op, ExitCode: -1, Excerpt: err.Error(), Err: fmt.Errorf("启动FFmpeg命令失败: %w", err)}
	}

	buf := make([]string, 0, stderrRingLines)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanFFmpegOutput(stderr, durationSec, &buf, progressCb)
	}()
	<-scanDone
	waitErr := cmd.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Errorf("%s timed out timeout=%s tail_stderr=%s", op, timeout, tail(buf, 20))
		return &port.ExecError{Kind: vo.FailureEncodeTimeout, Op: op, Timeout: timeout, Excerpt: boundedExcerpt(buf), Err: runCtx.Err()}
	}
	if waitErr != nil {
		logger.Errorf("%s failed tail_stderr=%s", op, tail(buf, 50))
		execErr := &port.ExecError{Kind: vo.FailureEncode, Op: op, ExitCode: -1, Excerpt: boundedExcerpt(buf), Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			execErr.Err = fmt.Errorf("%w: %v", ctx.Err(), waitErr)
		}
		return execErr
	}
	if progressCb != nil {
		progressCb(100)
	}
	return nil
}

var reTime = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.?\d*)`)

// scanFFmpegOutput 解析 -progress 输出并保留最近的诊断行
func scanFFmpegOutput(stderr io.Reader, durationSec float64, capture *[]string, progressCb port.ProgressCallback) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if v, ok := cutAny(line, "out_time_us=", "out_time_ms="); ok {
			if us, err := strconv.ParseFloat(v, 64); err == nil {
				emitProgress(us/1e6, durationSec, progressCb)
			}
			continue
		}
		if m := reTime.FindStringSubmatch(line); len(m) == 4 {
			hh, _ := strconv.ParseFloat(m[1], 64)
			mm, _ := strconv.ParseFloat(m[2], 64)
			ss, _ := strconv.ParseFloat(m[3], 64)
			emitProgress(hh*3600+mm*60+ss, durationSec, progressCb)
		}
		if isProgressKey(line) {
			continue
		}

		if capture != nil {
			b := *capture
			if len(b) >= stderrRingLines {
				b = b[1:]
			}
			b = append(b, line)
			*capture = b
		}
	}
	// 排空剩余输出，避免子进程阻塞在写管道上
	_, _ = io.Copy(io.Discard, stderr)
}

func cutAny(line string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := strings.CutPrefix(line, p); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// isProgressKey 匹配 -progress 输出的 key=value 行
func isProgressKey(line string) bool {
	k, _, ok := strings.Cut(line, "=")
	if !ok || k == "" {
		return false
	}
	for _, r := range k {
		if (r < 'a' || r > 'z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func emitProgress(currentSec, totalSec float64, cb port.ProgressCallback) {
	if cb == nil || totalSec <= 0 {
		return
	}
	pct := int((currentSec / totalSec) * 100)
	if pct > 99 {
		pct = 99
	}
	if pct < 0 {
		pct = 0
	}
	cb(pct)
}

// boundedExcerpt 取诊断输出末尾，限制在 maxExcerptBytes 内
func boundedExcerpt(lines []string) string {
	nonEmpty := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	s := strings.Join(nonEmpty, " | ")
	if len(s) <= maxExcerptBytes {
		return s
	}
	s = s[len(s)-maxExcerptBytes:]
	// 避免截断在多字节字符中间
	for i := 0; i < len(s) && i < 4; i++ {
		if s[i]&0xC0 != 0x80 {
			return "..." + s[i:]
		}
	}
	return "..." + s
}

func tail(lines []string, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
