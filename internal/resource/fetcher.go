// Package resource materializes model assets on the local filesystem.
//
// The Fetcher turns sources (remote URLs, local files, asset identifiers and
// Hugging Face files) into local paths, reporting progress while it goes.
// Remote downloads are cached, resumable and can be paused or cancelled.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/runner"
)

const (
	defaultBreakerTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
	defaultHFBinary        = "hf"
)

// Fetcher downloads and resolves model assets.
type Fetcher struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	runner    runner.CommandRunner
	assets    map[string]string
	downloads map[string]*download
	paused    map[string]Source
	cacheDir  string
	hfBinary  string
	mu        sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for remote downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithAssets sets the table resolving asset identifiers to local paths.
func WithAssets(assets map[string]string) Option {
	return func(f *Fetcher) {
		for id, path := range assets {
			f.assets[id] = path
		}
	}
}

// WithCommandRunner sets the runner used for Hugging Face downloads.
func WithCommandRunner(r runner.CommandRunner) Option {
	return func(f *Fetcher) {
		f.runner = r
	}
}

// WithHuggingFaceBinary sets the Hugging Face CLI binary.
func WithHuggingFaceBinary(binary string) Option {
	return func(f *Fetcher) {
		f.hfBinary = binary
	}
}

// NewFetcher creates a Fetcher caching downloads under cacheDir.
func NewFetcher(cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    http.DefaultClient,
		runner:    runner.ExecCommandRunner{},
		assets:    make(map[string]string),
		downloads: make(map[string]*download),
		paused:    make(map[string]Source),
		cacheDir:  cacheDir,
		hfBinary:  defaultHFBinary,
	}

	for _, opt := range opts {
		opt(f)
	}

	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "resource-fetcher",
		Timeout: defaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultBreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return f
}

// CacheDir returns the directory downloads are stored in.
func (f *Fetcher) CacheDir() string {
	return f.cacheDir
}

// Fetch materializes every source and returns their local paths in order.
// When a download is paused or cancelled it returns (nil, nil).
func (f *Fetcher) Fetch(ctx context.Context, onProgress ProgressFunc, sources ...Source) ([]string, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	agg := newAggregate(len(sources), onProgress)
	paths := make([]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			path, err := f.fetchOne(gctx, src, func(v float64) { agg.update(i, v) })
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, errInterrupted) {
			return nil, nil
		}
		return nil, err
	}

	agg.finish()
	return paths, nil
}

// fetchOne materializes a single source.
func (f *Fetcher) fetchOne(ctx context.Context, src Source, progress ProgressFunc) (string, error) {
	switch s := src.(type) {
	case FileSource:
		return f.local(s.Path, progress)

	case AssetSource:
		path, ok := f.assets[s.ID]
		if !ok {
			return "", errcat.Wrap(errcat.InvalidSource, fmt.Errorf("%w: %s", ErrUnknownAsset, s.ID))
		}
		return f.local(path, progress)

	case URLSource:
		return f.remote(ctx, s, progress)

	case HuggingFaceSource:
		return f.huggingFace(ctx, s, progress)
	}

	return "", errcat.Wrap(errcat.InvalidSource, fmt.Errorf("%w: %T", ErrUnknownKind, src))
}

// local checks that a local asset exists.
func (f *Fetcher) local(path string, progress ProgressFunc) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("resource: local asset %s: %w", path, err)
	}

	progress(1)
	return path, nil
}

// Pause stops the active download of src, keeping what was downloaded so far.
func (f *Fetcher) Pause(src Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := src.Key()
	if _, ok := f.paused[key]; ok {
		return errcat.New(errcat.DownloadAlreadyPaused)
	}

	d, ok := f.downloads[key]
	if !ok || d.state == downloadCanceled {
		return errcat.New(errcat.DownloadNotActive)
	}
	if d.state == downloadPaused {
		return errcat.New(errcat.DownloadAlreadyPaused)
	}

	d.state = downloadPaused
	d.cancel()
	slog.Info("Download paused", "source", src.String())
	return nil
}

// Resume continues a paused download of src.
func (f *Fetcher) Resume(ctx context.Context, onProgress ProgressFunc, src Source) ([]string, error) {
	f.mu.Lock()
	key := src.Key()
	_, paused := f.paused[key]
	d, ok := f.downloads[key]
	// A download still winding down after Pause counts as paused.
	if !paused && !(ok && d.state == downloadPaused) {
		f.mu.Unlock()
		if ok && d.state == downloadActive {
			return nil, errcat.New(errcat.DownloadAlreadyActive)
		}
		return nil, errcat.New(errcat.DownloadNotActive)
	}
	delete(f.paused, key)
	f.mu.Unlock()

	slog.Info("Download resumed", "source", src.String())
	return f.Fetch(ctx, onProgress, src)
}

// Cancel stops the download of src, active or paused, and discards the
// partial file.
func (f *Fetcher) Cancel(src Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := src.Key()
	if _, ok := f.paused[key]; ok {
		delete(f.paused, key)
		if err := os.Remove(f.partPath(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("resource: remove partial download: %w", err)
		}
		slog.Info("Paused download cancelled", "source", src.String())
		return nil
	}

	d, ok := f.downloads[key]
	if !ok {
		return errcat.New(errcat.DownloadNotActive)
	}

	d.state = downloadCanceled
	d.cancel()
	slog.Info("Download cancelled", "source", src.String())
	return nil
}

// RemoveCached deletes the cached copy of src. It refuses while a download of
// src is active or paused.
func (f *Fetcher) RemoveCached(src Source) error {
	if src.Kind() != SourceKindURL {
		return nil
	}

	key := src.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	_, active := f.downloads[key]
	_, paused := f.paused[key]
	if active || paused {
		return errcat.New(errcat.DownloadInProgress)
	}

	if err := os.Remove(f.finalPath(src.Key())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resource: remove cached asset: %w", err)
	}
	return nil
}

// ListCached returns the paths of every completed download in the cache.
func (f *Fetcher) ListCached() ([]string, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resource: read cache dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == partSuffix {
			continue
		}
		paths = append(paths, filepath.Join(f.cacheDir, e.Name()))
	}
	return paths, nil
}

func (f *Fetcher) finalPath(key string) string {
	return filepath.Join(f.cacheDir, key)
}

func (f *Fetcher) partPath(key string) string {
	return f.finalPath(key) + partSuffix
}
