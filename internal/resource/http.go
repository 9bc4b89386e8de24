package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/ekisa-team/stylus/internal/errcat"
)

const (
	partSuffix = ".part"
	chunkSize  = 32 * 1024
)

type downloadState int

const (
	downloadActive downloadState = iota
	downloadPaused
	downloadCanceled
)

// download is a single in-flight transfer shared by every Fetch waiting on the
// same source.
type download struct {
	source      Source
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	subscribers map[int]ProgressFunc
	state       downloadState // guarded by Fetcher.mu
	nextID      int
	mu          sync.Mutex
}

func (d *download) subscribe(fn ProgressFunc) (unsubscribe func() int) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subscribers[id] = fn
	d.mu.Unlock()

	return func() int {
		d.mu.Lock()
		defer d.mu.Unlock()

		delete(d.subscribers, id)
		return len(d.subscribers)
	}
}

func (d *download) publish(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, fn := range d.subscribers {
		fn(v)
	}
}

// remote returns the cached copy of src, downloading it first if needed.
func (f *Fetcher) remote(ctx context.Context, src URLSource, progress ProgressFunc) (string, error) {
	key := src.Key()
	final := f.finalPath(key)

	var (
		d           *download
		unsubscribe func() int
	)
	for {
		if _, err := os.Stat(final); err == nil {
			slog.Debug("Asset already cached, skipping download", "url", src.URL, "path", final)
			progress(1)
			return final, nil
		}

		f.mu.Lock()
		existing, ok := f.downloads[key]
		if ok && existing.state != downloadActive {
			// Shutting down; join the next transfer once this one is gone.
			f.mu.Unlock()
			select {
			case <-existing.done:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		d = existing
		if !ok {
			delete(f.paused, key)
			d = f.start(src)
		}
		unsubscribe = d.subscribe(progress)
		f.mu.Unlock()
		break
	}

	select {
	case <-d.done:
		unsubscribe()
	case <-ctx.Done():
		f.mu.Lock()
		if unsubscribe() == 0 && d.state == downloadActive {
			// Nobody is waiting anymore; stop the transfer and keep the
			// partial file for a later Resume.
			d.state = downloadPaused
			d.cancel()
		}
		f.mu.Unlock()
		return "", ctx.Err()
	}

	if d.err != nil {
		return "", d.err
	}
	return final, nil
}

// start launches the transfer of src. f.mu must be held.
func (f *Fetcher) start(src URLSource) *download {
	ctx, cancel := context.WithCancel(context.Background())
	d := &download{
		source:      src,
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[int]ProgressFunc),
	}
	f.downloads[src.Key()] = d

	go func() {
		defer cancel()
		err := f.transfer(ctx, src, d)

		f.mu.Lock()
		delete(f.downloads, src.Key())
		state := d.state
		switch {
		case err == nil:
		case state == downloadPaused:
			f.paused[src.Key()] = src
			err = errInterrupted
		case state == downloadCanceled:
			if rmErr := os.Remove(f.partPath(src.Key())); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Warn("Failed to remove partial download", "path", f.partPath(src.Key()), "error", rmErr)
			}
			err = errInterrupted
		}
		f.mu.Unlock()

		d.err = err
		close(d.done)
	}()

	return d
}

// transfer downloads src into its cache file, resuming from a partial file
// when one exists.
func (f *Fetcher) transfer(ctx context.Context, src URLSource, d *download) error {
	key := src.Key()
	final, part := f.finalPath(key), f.partPath(key)

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return fmt.Errorf("resource: create cache dir: %w", err)
	}

	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	resp, err := f.get(ctx, src.URL, offset)
	if err != nil {
		return errcat.Wrap(errcat.DownloadFailed, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	var total int64
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
		if resp.ContentLength >= 0 {
			total = offset + resp.ContentLength
		}
	case http.StatusOK:
		flags |= os.O_TRUNC
		offset = 0
		total = resp.ContentLength
	case http.StatusRequestedRangeNotSatisfiable:
		if offset > 0 {
			// The partial file already holds the whole asset.
			d.publish(1)
			return os.Rename(part, final)
		}
		fallthrough
	default:
		return errcat.Wrap(errcat.DownloadFailed, fmt.Errorf("unexpected status %s from %s", resp.Status, src.URL))
	}

	file, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return errcat.Wrap(errcat.FileWriteFailed, err)
	}

	counter := &countingReader{r: resp.Body}
	var body io.Reader = counter
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		body = brotli.NewReader(counter)
	}

	slog.Info("Downloading asset", "url", src.URL, "path", part, "offset", offset, "total", total)

	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				file.Close()
				return errcat.Wrap(errcat.FileWriteFailed, err)
			}
			if total > 0 {
				d.publish(float64(offset+counter.n) / float64(total))
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			file.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errcat.Wrap(errcat.DownloadFailed, readErr)
		}
	}

	if err := file.Close(); err != nil {
		return errcat.Wrap(errcat.FileWriteFailed, err)
	}
	if err := os.Rename(part, final); err != nil {
		return fmt.Errorf("resource: finalize download: %w", err)
	}

	d.publish(1)
	slog.Info("Asset downloaded successfully", "url", src.URL, "path", final)
	return nil
}

// get issues the download request through the circuit breaker.
func (f *Fetcher) get(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	} else {
		req.Header.Set("Accept-Encoding", "br, identity")
	}

	res, err := f.breaker.Execute(func() (interface{}, error) {
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(*http.Response), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
