package seal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// FetchKeyPath is the key-server endpoint a fetch request is posted to.
const FetchKeyPath = "/v1/fetch_key"

// Resolver maps a key-server address to its current HTTP base URL.
type Resolver interface {
	Resolve(addr types.Address) (string, error)
}

// Client fans a signed fetch request out to the configured key-server set.
type Client struct {
	http     *http.Client
	resolver Resolver
	servers  []types.Address
}

// NewClient builds a client over the fixed server set. The resolver is
// consulted per request, so endpoint changes take effect without a restart.
func NewClient(servers []types.Address, resolver Resolver, timeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		resolver: resolver,
		servers:  servers,
	}
}

// Servers returns the configured server set.
func (c *Client) Servers() []types.Address {
	out := make([]types.Address, len(c.servers))
	copy(out, c.servers)
	return out
}

// FetchKeys posts the request to every configured server concurrently. A
// failing server is logged and skipped; threshold recovery tolerates
// stragglers, so the call fails only when no server produced a usable
// response.
func (c *Client) FetchKeys(ctx context.Context, req *types.FetchKeyRequest) ([]types.ServerKeyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "marshal fetch key request", err)
	}

	var (
		mu        sync.Mutex
		responses []types.ServerKeyResponse
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, server := range c.servers {
		g.Go(func() error {
			resp, err := c.fetchOne(ctx, server, body)
			if err != nil {
				logger.Warn("key server fetch failed",
					"server", server.String(),
					"error", err.Error(),
				)
				return nil
			}
			mu.Lock()
			responses = append(responses, types.ServerKeyResponse{Server: server, Response: *resp})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(responses) == 0 {
		return nil, errors.New(errors.KindTransport, "no key server produced a usable response")
	}
	logger.Info("fetched key server responses",
		"succeeded", len(responses),
		"total", len(c.servers),
	)
	return responses, nil
}

func (c *Client) fetchOne(ctx context.Context, server types.Address, body []byte) (*types.FetchKeyResponse, error) {
	base, err := c.resolver.Resolve(server)
	if err != nil {
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+FetchKeyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post fetch key: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("key server returned %d: %s", httpResp.StatusCode, snippet)
	}

	var out types.FetchKeyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// StaticResolver resolves addresses from a fixed map, the fallback when no
// endpoint registry is configured.
type StaticResolver map[types.Address]string

// Resolve implements Resolver.
func (r StaticResolver) Resolve(addr types.Address) (string, error) {
	url, ok := r[addr]
	if !ok {
		return "", fmt.Errorf("no endpoint configured for server %s", addr)
	}
	return url, nil
}
