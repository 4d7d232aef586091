// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch stages remote documents locally. Input, background, and
// merge arguments may be http(s) URLs; they are downloaded into the
// run's staging directory before validation so the rest of the pipeline
// only ever sees local paths.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/pageforge/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// IsURL reports whether s names a remote document.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 with
// exponential backoff starting at RetryBaseDelay and doubling each
// attempt. On each 429 the response body is drained and closed before
// sleeping; a context cancelled during the wait returns ctx.Err. After
// exhausting retries the last 429 response is returned as-is.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Download fetches url into destPath through a temporary file, renaming
// on success so a partial download never masquerades as a document.
func Download(ctx context.Context, client *http.Client, url, destPath string, cfg types.FetchConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Stage resolves ref to a local path. Local paths pass through
// untouched; URLs are downloaded into a fresh subdirectory of dir under
// a name derived from the URL's last path element. The subdirectory
// keeps staged documents distinct even when two URLs share a basename.
func Stage(ctx context.Context, client *http.Client, ref, dir string, cfg types.FetchConfig) (string, error) {
	if !IsURL(ref) {
		return ref, nil
	}

	name := path.Base(strings.SplitN(ref, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "document.pdf"
	}
	sub, err := os.MkdirTemp(dir, "*")
	if err != nil {
		return "", fmt.Errorf("creating staging subdirectory: %w", err)
	}
	dest := filepath.Join(sub, name)
	if err := Download(ctx, client, ref, dest, cfg); err != nil {
		return "", fmt.Errorf("staging %s: %w", ref, err)
	}
	return dest, nil
}
