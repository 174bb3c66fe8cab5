package queue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/ferrors"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/metrics"
	"github.com/rs/zerolog"
)

// Task runs §4.4's 8-step per-download pipeline for a single
// download_queue row: claim, stream to a temp file with progress and
// bandwidth throttling, verify size, rename into place, and record the
// outcome. Retry scheduling itself lives in the scheduler, not here.
type Task struct {
	store     *catalog.Store
	registry  *breaker.Registry
	bandwidth *BandwidthLimiter
	client    *http.Client

	downloadsDir string
	chunkSize    int
	itemTimeout  time.Duration
}

// NewTask builds a Task bound to the given stores and configuration.
func NewTask(store *catalog.Store, registry *breaker.Registry, bandwidth *BandwidthLimiter, client *http.Client,
	downloadsDir string, chunkSize int, itemTimeout time.Duration) *Task {
	if client == nil {
		client = &http.Client{}
	}
	if chunkSize <= 0 {
		chunkSize = 8 * 1024
	}
	if itemTimeout <= 0 {
		itemTimeout = 300 * time.Second
	}
	return &Task{
		store:        store,
		registry:     registry,
		bandwidth:    bandwidth,
		client:       client,
		downloadsDir: downloadsDir,
		chunkSize:    chunkSize,
		itemTimeout:  itemTimeout,
	}
}

// Run executes the pipeline for item id. It assumes the caller has
// already decided id is eligible to start; Run performs the
// pending->downloading CAS itself and returns (false, nil) if another
// runner won the race.
func (t *Task) Run(ctx context.Context, id int64) (started bool, err error) {
	logger := log.WithDownloadID(strconv.FormatInt(id, 10))

	claimed, err := t.store.ClaimForDownload(ctx, id)
	if err != nil {
		return false, fmt.Errorf("claim download %d: %w", id, err)
	}
	if !claimed {
		return false, nil
	}

	item, err := t.store.GetDownloadItem(ctx, id)
	if err != nil {
		return true, fmt.Errorf("load claimed download %d: %w", id, err)
	}

	cctx, cancel := context.WithTimeout(ctx, t.itemTimeout)
	defer cancel()

	finish := t.registry.BeginRequest(item.IndexerID)
	timer := metrics.NewTimer()
	metrics.DownloadsActive.Inc()
	defer metrics.DownloadsActive.Dec()

	localPath, runErr := t.download(cctx, *item, logger)
	finish(runErr == nil, int(timer.Duration().Milliseconds()))

	if runErr != nil {
		reason := ferrors.Classify(runErr.Error())
		if _, _, ferr := t.store.FailDownload(ctx, id, runErr.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("record failed download")
		}
		metrics.DownloadsFailedTotal.WithLabelValues(reason).Inc()
		logger.Warn().Err(runErr).Str("reason", reason).Msg("download failed")
		return true, nil
	}

	if err := t.store.CompleteDownload(ctx, id, localPath, timer.Duration().Seconds()); err != nil {
		logger.Error().Err(err).Msg("record completed download")
		return true, err
	}
	metrics.DownloadsCompletedTotal.Inc()
	timer.ObserveDuration(metrics.DownloadDuration)
	logger.Info().Str("local_path", localPath).Msg("download completed")
	return true, nil
}

// download streams item's URL to a temp file under t.downloadsDir,
// verifies its size against Content-Length when known, and renames it
// into its final sanitized location. The temp file is guaranteed
// removed on every exit path except a successful rename.
func (t *Task) download(ctx context.Context, item catalog.DownloadItem, logger zerolog.Logger) (string, error) {
	if err := os.MkdirAll(t.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure downloads dir: %w", err)
	}

	tempPath := filepath.Join(t.downloadsDir, fmt.Sprintf("temp_%d_%d.%s", item.ID, time.Now().Unix(), item.Format))
	removeTemp := true
	defer func() {
		if removeTemp {
			_ = os.Remove(tempPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", item.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", item.URL, resp.StatusCode)
	}

	declared := resp.ContentLength // -1 when unknown

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	var downloaded int64
	buf := make([]byte, t.chunkSize)
	var lastLoggedPct int
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := t.bandwidth.WaitN(ctx, n); err != nil {
				f.Close()
				return "", fmt.Errorf("bandwidth wait: %w", err)
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return "", fmt.Errorf("write temp file: %w", werr)
			}
			downloaded += int64(n)

			if declared > 0 {
				pct := int(float64(downloaded) / float64(declared) * 100)
				if pct != lastLoggedPct {
					if err := t.store.UpdateProgress(ctx, item.ID, pct); err != nil {
						logger.Debug().Err(err).Msg("update progress")
					}
					lastLoggedPct = pct
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			return "", fmt.Errorf("read response body: %w", readErr)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if declared > 0 && downloaded != declared {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", declared, downloaded)
	}

	finalName := sanitizeFilename(item.Title) + "." + item.Format
	finalPath := filepath.Join(t.downloadsDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("rename into place: %w", err)
	}
	removeTemp = false

	return finalPath, nil
}

const forbiddenFilenameChars = `<>:"/\|?*`

// sanitizeFilename strips characters unsafe for a filesystem name and
// truncates to 200 characters per §4.4's final-rename step.
func sanitizeFilename(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenFilenameChars, r) {
			return -1
		}
		return r
	}, title)
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 200 {
		cleaned = cleaned[:200]
	}
	if cleaned == "" {
		cleaned = "download"
	}
	return cleaned
}
