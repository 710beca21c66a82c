package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by source fetchers when the identity does not
// resolve to an image.
var ErrNotFound = errors.New("source image not found")

// SourceFetcher loads raw image bytes for a source identity. It is an
// external collaborator contract; fetch failures route the orchestrator to
// fallback, never to a raised error.
type SourceFetcher interface {
	Fetch(ctx context.Context, identity string) ([]byte, error)
}

// FileFetcher resolves identities as paths under a base directory.
type FileFetcher struct {
	// BaseDir is prepended to relative identities. Empty means identities
	// are used as-is.
	BaseDir string
}

// Fetch reads the image file for the identity.
func (f *FileFetcher) Fetch(_ context.Context, identity string) ([]byte, error) {
	path := identity
	if f.BaseDir != "" && !filepath.IsAbs(identity) {
		path = filepath.Join(f.BaseDir, identity)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
		}
		return nil, fmt.Errorf("read source image: %w", err)
	}
	return data, nil
}

// HTTPFetcher resolves identities as URLs, optionally against a base URL.
// Transient failures (5xx, network errors) are retried with exponential
// backoff and jitter; 404 maps to ErrNotFound without retry.
type HTTPFetcher struct {
	// BaseURL is prepended to identities that are not absolute URLs.
	BaseURL string

	// Client is the HTTP client to use. Nil means a default client with a
	// 15s timeout.
	Client *http.Client

	// MaxAttempts bounds fetch attempts (including the first). Zero means 3.
	MaxAttempts int

	// InitialBackoff is the first retry delay. Zero means 500ms.
	InitialBackoff time.Duration
}

// Fetch downloads the image bytes for the identity.
func (f *HTTPFetcher) Fetch(ctx context.Context, identity string) ([]byte, error) {
	target := identity
	if !strings.HasPrefix(identity, "http://") && !strings.HasPrefix(identity, "https://") {
		joined, err := url.JoinPath(f.BaseURL, identity)
		if err != nil {
			return nil, fmt.Errorf("join source url: %w", err)
		}
		target = joined
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	maxAttempts := f.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := f.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, retryable, err := f.fetchOnce(ctx, client, target)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || attempt >= maxAttempts {
			break
		}

		// Jitter (±20%) avoids thundering herd on a recovering source.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		log.Debug().
			Str("url", target).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying source fetch after backoff")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch cancelled: %w", ctx.Err())
		case <-time.After(jitter):
		}
		backoff *= 2
	}

	return nil, lastErr
}

// fetchOnce performs a single request and classifies the failure.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, client *http.Client, target string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("source server error %d for %s", resp.StatusCode, target)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, target)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read source body: %w", err)
	}
	return data, false, nil
}
