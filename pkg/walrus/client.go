// Package walrus fetches encrypted blobs from a Walrus aggregator. Blobs are
// immutable once written, so successful downloads may be cached indefinitely;
// only ciphertext ever touches the cache.
package walrus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	cerrors "github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/storage"
)

const blobPathPrefix = "/v1/blobs/"

// maxBlobSize caps a single download; a misbehaving aggregator must not be
// able to exhaust enclave memory.
const maxBlobSize = 64 << 20

// Client downloads blobs by ID from one aggregator.
type Client struct {
	http          *http.Client
	aggregatorURL string
	retryAttempts uint
	cache         storage.Store
}

// NewClient builds a client. cache may be nil to disable the read-through
// cache.
func NewClient(aggregatorURL string, timeout time.Duration, retryAttempts int, cache storage.Store) *Client {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &Client{
		http:          &http.Client{Timeout: timeout},
		aggregatorURL: aggregatorURL,
		retryAttempts: uint(retryAttempts),
		cache:         cache,
	}
}

// Fetch returns the raw bytes of a blob, reading through the cache when one
// is configured. Transient aggregator failures are retried with backoff; a
// 404 is permanent and fails immediately.
func (c *Client) Fetch(ctx context.Context, blobID string) ([]byte, error) {
	if blobID == "" {
		return nil, cerrors.New(cerrors.KindConstruction, "empty blob ID")
	}

	if c.cache != nil {
		cached, err := c.cache.Get(cacheKey(blobID))
		if err == nil {
			logger.Debug("blob cache hit", "blobID", blobID)
			return cached, nil
		}
		if !errors.Is(err, storage.ErrKeyNotFound) {
			logger.Warn("blob cache read failed", "blobID", blobID, "error", err.Error())
		}
	}

	var body []byte
	err := retry.Do(
		func() error {
			var err error
			body, err = c.fetchOnce(ctx, blobID)
			return err
		},
		retry.Attempts(c.retryAttempts),
		retry.Context(ctx),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, errBlobNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying blob fetch", "blobID", blobID, "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindTransport, "fetch blob "+blobID, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(cacheKey(blobID), body); err != nil {
			logger.Warn("blob cache write failed", "blobID", blobID, "error", err.Error())
		}
	}
	return body, nil
}

var errBlobNotFound = errors.New("blob not found")

func (c *Client) fetchOnce(ctx context.Context, blobID string) ([]byte, error) {
	endpoint := c.aggregatorURL + blobPathPrefix + url.PathEscape(blobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errBlobNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("aggregator returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("read blob body: %w", err)
	}
	if len(body) > maxBlobSize {
		return nil, fmt.Errorf("blob exceeds %d byte limit", maxBlobSize)
	}
	return body, nil
}

func cacheKey(blobID string) string {
	return "blob/" + blobID
}
