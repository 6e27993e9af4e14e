package port

import (
	"context"

	"video-assembly-service/ddd/domain/entity"
)

// FootageSource searches a stock-footage provider and downloads clips.
// Search returns either candidates or a single error, never both.
type FootageSource interface {
	Search(ctx context.Context, topic string, maxCount int) ([]entity.ClipCandidate, error)
	Download(ctx context.Context, candidate entity.ClipCandidate, dir string, index int) (*entity.DownloadedClip, error)
}
