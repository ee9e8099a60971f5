package infra

import (
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/benhaq/sui-nautilus/pkg/config"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// ConsulKV is the slice of the Consul KV API the resolver needs, extracted so
// tests can substitute a fake.
type ConsulKV interface {
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

// GetConsulConfig translates the application config into a Consul client
// config.
func GetConsulConfig(cfg *config.Config) *api.Config {
	consulCfg := cfg.Consul

	clientConfig := api.DefaultConfig()
	if cfg.IsProduction() {
		clientConfig.Token = consulCfg.Token
		if consulCfg.Username != "" || consulCfg.Password != "" {
			clientConfig.HttpAuth = &api.HttpBasicAuth{
				Username: consulCfg.Username,
				Password: consulCfg.Password,
			}
		}
	}

	if consulCfg.Address != "" {
		clientConfig.Address = consulCfg.Address
	}
	return clientConfig
}

// GetConsulClient connects to Consul and verifies connectivity. Failure is
// fatal: with consul enabled there is no other source of key-server
// endpoints.
func GetConsulClient(cfg *config.Config) *api.Client {
	clientConfig := GetConsulConfig(cfg)
	clientConfig.WaitTime = 10 * time.Second

	logger.Info("Consul config",
		"environment", cfg.Environment,
		"address", clientConfig.Address,
		"wait_time", clientConfig.WaitTime,
	)

	client, err := api.NewClient(clientConfig)
	if err != nil {
		logger.Fatal("Failed to create consul client", err)
	}

	_, err = client.Status().Leader()
	if err != nil {
		logger.Fatal("Failed to connect to Consul", err)
	}

	return client
}

// EndpointResolver resolves key-server endpoints from a Consul KV prefix,
// falling back to a static map for servers the registry does not know. KV
// keys are "<prefix><server address>" with the base URL as the value.
type EndpointResolver struct {
	kv       ConsulKV
	prefix   string
	fallback map[types.Address]string
}

// NewEndpointResolver builds a resolver over a KV view. fallback may be nil.
func NewEndpointResolver(kv ConsulKV, prefix string, fallback map[types.Address]string) *EndpointResolver {
	return &EndpointResolver{kv: kv, prefix: prefix, fallback: fallback}
}

// Resolve returns the current base URL for a key server.
func (r *EndpointResolver) Resolve(addr types.Address) (string, error) {
	pair, _, err := r.kv.Get(r.prefix+addr.String(), nil)
	if err != nil {
		return "", fmt.Errorf("consul lookup for %s: %w", addr, err)
	}
	if pair != nil && len(pair.Value) > 0 {
		return string(pair.Value), nil
	}

	if url, ok := r.fallback[addr]; ok {
		return url, nil
	}
	return "", fmt.Errorf("no endpoint registered for server %s", addr)
}

// Registered lists every server address currently present under the prefix.
func (r *EndpointResolver) Registered() ([]types.Address, error) {
	pairs, _, err := r.kv.List(r.prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("consul list %q: %w", r.prefix, err)
	}
	out := make([]types.Address, 0, len(pairs))
	for _, pair := range pairs {
		addr, err := types.AddressFromHex(pair.Key[len(r.prefix):])
		if err != nil {
			logger.Warn("skipping malformed registry key", "key", pair.Key)
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}
