package port

import (
	"context"
	"fmt"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/vo"
)

// ProgressCallback is invoked by executors to report percentage progress (0-100).
type ProgressCallback func(progress int)

// MediaEncoder runs the external encoder. Both modes stop output at targetSeconds
// and return the written output path.
type MediaEncoder interface {
	EncodeDynamic(ctx context.Context, clips []entity.DownloadedClip, audioPath string, targetSeconds float64, outputPath string, opts EncodeOptions) (string, error)
	EncodeStatic(ctx context.Context, imagePath, audioPath string, targetSeconds float64, outputPath string, opts EncodeOptions) (string, error)
}

// DurationProber reads a media duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// EncodeOptions controls executor behaviour.
type EncodeOptions struct {
	ProgressCb ProgressCallback
	JobID      string
	// WorkDir holds intermediate files such as the concat list.
	WorkDir string
}

// ExecError is a structured subprocess failure. Kind separates a timeout from a
// non-zero exit; Excerpt is a bounded tail of diagnostic output.
type ExecError struct {
	Kind     vo.FailureKind
	Op       string
	ExitCode int
	Timeout  time.Duration
	Excerpt  string
	Err      error
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case vo.FailureEncodeTimeout:
		return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	default:
		msg := fmt.Sprintf("%s failed (exit code %d)", e.Op, e.ExitCode)
		if e.Excerpt != "" {
			msg += ": " + e.Excerpt
		}
		return msg
	}
}

func (e *ExecError) Unwrap() error { return e.Err }
