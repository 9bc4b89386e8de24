package resource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	markerSuffix      = ".stylus-downloaded"
)

// retryDelay is a variable so tests can shorten it.
var retryDelay = defaultRetryDelay

// huggingFace downloads a single repository file with the hf CLI.
func (f *Fetcher) huggingFace(ctx context.Context, src HuggingFaceSource, progress ProgressFunc) (string, error) {
	repo := strings.TrimSpace(src.Repo)
	if repo == "" || strings.TrimSpace(src.File) == "" {
		return "", fmt.Errorf("invalid hugging face source: %s", src)
	}

	fullPath := filepath.Join(f.cacheDir, "hf", repo)
	filePath := filepath.Join(fullPath, src.File)
	markerPath := filePath + markerSuffix
	markerContent := hfMarkerContent(src)

	progress(0)

	if _, err := os.Stat(filePath); err == nil && !hfShouldRedownload(markerPath, markerContent) {
		slog.Info("Model already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", filePath)
		progress(1)
		return filePath, nil
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	args := []string{"download", repo, src.File, "--local-dir", fullPath}
	if src.Revision != "" {
		args = append(args, "--revision", src.Revision)
	}
	if src.Token != "" {
		args = append(args, "--token", src.Token)
	}

	var lastErr error
	for attempt := range defaultMaxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(retryDelay):
			}
		} else {
			slog.Info("Downloading model", "repo", repo, "file", src.File, "path", fullPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		_, stderr, err := f.runner.Run(attemptCtx, f.hfBinary, args, nil)
		attemptErr := attemptCtx.Err()
		cancel()

		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Model downloaded successfully", "repo", repo, "path", filePath, "attempt", attempt+1)
			progress(1)
			return filePath, nil
		}

		lastErr = err
		slog.Error("Failed to download model", "repo", repo, "attempt", attempt+1, "error", err, "output", string(stderr))

		if ctx.Err() != nil {
			return "", fmt.Errorf("download canceled: %w", ctx.Err())
		}
		if attemptErr == context.DeadlineExceeded {
			slog.Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		}
	}

	return "", fmt.Errorf("hugging face download of %s failed after %d attempts: %w", src, defaultMaxRetries, lastErr)
}

// hfMarkerContent is the expected content of the marker file. A mismatch means
// the configured revision changed.
func hfMarkerContent(src HuggingFaceSource) string {
	return fmt.Sprintf("repo: %s\nfile: %s\nrevision: %s\n", src.Repo, src.File, src.Revision)
}

// hfShouldRedownload compares the marker file against the expected content.
func hfShouldRedownload(markerPath, expected string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expected {
		slog.Info("Model source changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}
