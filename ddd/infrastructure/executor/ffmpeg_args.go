package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"video-assembly-service/ddd/domain/entity"
)

// encodeSettings 两种模式共用的编码参数
type encodeSettings struct {
	videoCodec   string
	preset       string
	crf          int
	frameRate    int
	width        int
	height       int
	audioBitrate string
	threads      int
}

// letterboxFilter 等比缩放到目标分辨率，不足部分黑边填充
func (s encodeSettings) letterboxFilter() string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1",
		s.width, s.height, s.width, s.height)
}

func (s encodeSettings) outputArgs(targetSeconds float64, outputPath string) []string {
	args := []string{
		"-c:v", s.videoCodec,
		"-preset", s.preset,
		"-crf", strconv.Itoa(s.crf),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.frameRate),
		"-vf", s.letterboxFilter(),
		"-c:a", "aac",
		"-b:a", s.audioBitrate,
	}
	if s.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(s.threads))
	}
	args = append(args,
		"-t", formatSeconds(targetSeconds),
		"-movflags", "+faststart",
		"-max_muxing_queue_size", "1024",
		outputPath,
	)
	return args
}

func buildDynamicArgs(s encodeSettings, listPath, audioPath string, targetSeconds float64, outputPath string) []string {
	args := []string{
		"-y", "-hide_banner",
		"-fflags", "+genpts",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-avoid_negative_ts", "make_zero",
		"-progress", "pipe:2", "-nostats",
	}
	return append(args, s.outputArgs(targetSeconds, outputPath)...)
}

func buildStaticArgs(s encodeSettings, imagePath, audioPath string, targetSeconds float64, outputPath string) []string {
	args := []string{
		"-y", "-hide_banner",
		"-loop", "1", "-framerate", strconv.Itoa(s.frameRate), "-i", imagePath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-tune", "stillimage",
		"-shortest",
		"-progress", "pipe:2", "-nostats",
	}
	return append(args, s.outputArgs(targetSeconds, outputPath)...)
}

// writeConcatList 写 concat demuxer 列表；outpoint 使编码时长与记录的片段时长一致
func writeConcatList(path string, clips []entity.DownloadedClip) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, c := range clips {
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(abs))
		if c.MeasuredDurationSeconds > 0 {
			fmt.Fprintf(&b, "outpoint %s\n", formatSeconds(c.MeasuredDurationSeconds))
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
