package footage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

const (
	defaultClipSeconds = 10
	errorBodyLimit     = 512
)

// ErrMissingAPIKey 未配置素材库密钥
var ErrMissingAPIKey = errors.New("footage provider api key not configured")

var _ port.FootageSource = (*PexelsClient)(nil)

// PexelsClient 调用 Pexels 视频搜索接口并下载素材
type PexelsClient struct {
	baseURL         string
	apiKey          string
	pageSize        int
	quality         string
	maxClipSeconds  float64
	searchTimeout   time.Duration
	downloadTimeout time.Duration
	client          *http.Client
	prober          port.DurationProber
}

func NewPexelsClient(cfg config.FootageConfig, prober port.DurationProber) *PexelsClient {
	return &PexelsClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		pageSize:        cfg.SearchPageSize,
		quality:         cfg.PreferredQuality,
		maxClipSeconds:  cfg.MaxClipSeconds,
		searchTimeout:   cfg.SearchTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		// 超时由每次请求的 context 控制
		client: &http.Client{},
		prober: prober,
	}
}

type searchResponse struct {
	Videos []struct {
		ID         int64 `json:"id"`
		Duration   int   `json:"duration"`
		VideoFiles []struct {
			Quality string `json:"quality"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
			Link    string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search 按主题搜索，最多返回 maxCount 个候选
func (p *PexelsClient) Search(ctx context.Context, topic string, maxCount int) ([]entity.ClipCandidate, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("query", topic)
	q.Set("per_page", strconv.Itoa(p.pageSize))
	q.Set("size", "medium")
	searchURL := fmt.Sprintf("%s/videos/search?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("footage search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("footage search failed: status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode footage search response: %w", err)
	}

	candidates := make([]entity.ClipCandidate, 0, maxCount)
	for _, v := range result.Videos {
		if maxCount > 0 && len(candidates) >= maxCount {
			break
		}
		best := -1
		for i, f := range v.VideoFiles {
			if f.Link == "" {
				continue
			}
			if best < 0 {
				best = i
				continue
			}
			cur := v.VideoFiles[best]
			// 优先 preferred quality，同质量取分辨率更高的
			if f.Quality == p.quality && (cur.Quality != p.quality || f.Width > cur.Width) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		f := v.VideoFiles[best]
		reported := float64(v.Duration)
		if reported <= 0 {
			reported = defaultClipSeconds
		}
		candidates = append(candidates, entity.ClipCandidate{
			URL:                     f.Link,
			ReportedDurationSeconds: reported,
			ProviderID:              strconv.FormatInt(v.ID, 10),
			Quality:                 f.Quality,
			Width:                   f.Width,
			Height:                  f.Height,
		})
	}
	logger.Infof("footage search finished topic=%q candidates=%d", topic, len(candidates))
	return candidates, nil
}

// Download 下载到 dir/clip_<index>.mp4 并测量时长
func (p *PexelsClient) Download(ctx context.Context, candidate entity.ClipCandidate, dir string, index int) (*entity.DownloadedClip, error) {
	dctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download clip: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	path := filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", index))
	if err := writeBody(path, resp.Body); err != nil {
		return nil, err
	}

	return &entity.DownloadedClip{
		Path:                    path,
		MeasuredDurationSeconds: p.measure(ctx, path, candidate.ReportedDurationSeconds),
		ProviderID:              candidate.ProviderID,
	}, nil
}

// measure 探测失败时使用上报时长（不超过上限），都没有时按 10 秒计
func (p *PexelsClient) measure(ctx context.Context, path string, reported float64) float64 {
	limit := p.maxClipSeconds
	if p.prober != nil {
		if d, err := p.prober.ProbeDuration(ctx, path); err == nil && d > 0 {
			return d
		} else if err != nil {
			logger.Warnf("clip probe failed path=%s error=%v", path, err)
		}
	}
	if reported <= 0 {
		return defaultClipSeconds
	}
	if limit > 0 && reported > limit {
		return limit
	}
	return reported
}

func writeBody(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write clip file: %w", err)
	}
	return f.Close()
}
