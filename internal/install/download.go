package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	// defaultTimeout bounds a single artifact download.
	defaultTimeout = 5 * time.Minute
	// redirectLimit caps redirect chains. The release host answers with at
	// most one hop to its CDN; anything deeper is a loop.
	redirectLimit = 5
)

// Fetcher downloads release resources over HTTP(S), following redirects up
// to a fixed bound and identifying itself with the configured User-Agent.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher sending the given User-Agent with every
// request.
func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= redirectLimit {
					return fmt.Errorf("stopped after %d redirects", redirectLimit)
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Download streams the resource at url to destPath. The file is written to a
// temporary sibling and renamed into place only once the response body has
// been fully drained, so destPath either holds the complete payload or does
// not exist.
func (f *Fetcher) Download(ctx context.Context, url, destPath string) error {
	resp, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return &NetworkError{URL: url, Err: fmt.Errorf("stream body: %w", err)}
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return nil
}

// Fetch retrieves a small resource (checksum manifest, signature) fully into
// memory. Any retrieval failure, including a non-200 status, classes as a
// NetworkError: DownloadError is reserved for the package artifact itself.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		var dlErr *DownloadError
		if errors.As(err, &dlErr) {
			return nil, &NetworkError{URL: url, Err: dlErr}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// get issues the request and maps failures into the package's error types.
// Redirects are followed by the underlying client within redirectLimit.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &DownloadError{URL: url, Status: resp.Status}
	}

	return resp, nil
}
