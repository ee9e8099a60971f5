package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

const (
	// Environment constants
	Production  = "production"
	Development = "development"

	defaultServerAddr        = "0.0.0.0:3000"
	defaultHostAddr          = "127.0.0.1:3001"
	defaultIdentityDir       = "identity"
	defaultWalletKeyName     = "wallet"
	defaultCertificateTTLMin = 30
	defaultPolicyModule      = "seal_policy"
	defaultWhitelistModule   = "seal_whitelist"
	defaultFetchTimeoutSecs  = 10
	defaultWalrusTimeoutSecs = 30
	defaultWalrusRetries     = 3
	defaultLLMModel          = "openai/gpt-4o-mini"
	defaultConsulKVPrefix    = "seal_keyservers/"

	EnvConfigFile = "ENCLAVE_CONFIG_FILE"
)

// Config is the enclave's static configuration, loaded once at startup and
// threaded explicitly into every component that needs it.
type Config struct {
	Environment string `mapstructure:"environment"`

	// ServerAddr is the public app listener; HostAddr the loopback-only
	// provisioning listener.
	ServerAddr string `mapstructure:"server_addr"`
	HostAddr   string `mapstructure:"host_addr"`

	IdentityDir   string `mapstructure:"identity_dir"`
	WalletKeyName string `mapstructure:"wallet_key_name"`

	Seal   SealConfig    `mapstructure:"seal"`
	Walrus WalrusConfig  `mapstructure:"walrus"`
	LLM    LLMConfig     `mapstructure:"llm"`
	Consul *ConsulConfig `mapstructure:"consul"`
}

// SealConfig names the policy package and the key-server set. Server
// addresses, endpoints and commitments are static trust anchors: a malformed
// entry is fatal at startup, never at request time.
type SealConfig struct {
	PackageID         string      `mapstructure:"package_id"`
	PolicyModule      string      `mapstructure:"policy_module"`
	WhitelistModule   string      `mapstructure:"whitelist_module"`
	CertificateTTLMin uint64      `mapstructure:"certificate_ttl_min"`
	FetchTimeoutSecs  int         `mapstructure:"fetch_timeout_seconds"`
	KeyServers        []KeyServer `mapstructure:"key_servers"`

	// parsed forms, populated by Validate
	packageID types.Address
}

// KeyServer is one configured key-holding server.
type KeyServer struct {
	Address   string `mapstructure:"address"`
	URL       string `mapstructure:"url"`
	PublicKey string `mapstructure:"public_key"`

	// parsed forms, populated by Validate
	address    types.Address
	commitment []byte
}

// WalrusConfig points at the blob aggregator.
type WalrusConfig struct {
	AggregatorURL string          `mapstructure:"aggregator_url"`
	TimeoutSecs   int             `mapstructure:"timeout_seconds"`
	RetryAttempts int             `mapstructure:"retry_attempts"`
	Cache         BlobCacheConfig `mapstructure:"cache"`
}

// BlobCacheConfig enables the encrypted on-disk cache for downloaded blobs.
// Only ciphertext is ever cached.
type BlobCacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DBPath   string `mapstructure:"db_path"`
	Password string `mapstructure:"password"`
}

// LLMConfig points at the structured-data derivation collaborator. The API
// key is never configured here; it is provisioned at runtime through the
// encrypted secret flow.
type LLMConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// ConsulConfig enables key-server endpoint resolution from a Consul KV
// prefix, overriding the static URL map.
type ConsulConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	KVPrefix string `mapstructure:"kv_prefix"`
}

// InitViperConfig wires viper's env handling, defaults and config file
// discovery. Call once before LoadConfig.
func InitViperConfig(configPath string) error {
	viper.SetEnvPrefix("ENCLAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("environment", Development)
	viper.SetDefault("server_addr", defaultServerAddr)
	viper.SetDefault("host_addr", defaultHostAddr)
	viper.SetDefault("identity_dir", defaultIdentityDir)
	viper.SetDefault("wallet_key_name", defaultWalletKeyName)
	viper.SetDefault("seal.policy_module", defaultPolicyModule)
	viper.SetDefault("seal.whitelist_module", defaultWhitelistModule)
	viper.SetDefault("seal.certificate_ttl_min", defaultCertificateTTLMin)
	viper.SetDefault("seal.fetch_timeout_seconds", defaultFetchTimeoutSecs)
	viper.SetDefault("walrus.timeout_seconds", defaultWalrusTimeoutSecs)
	viper.SetDefault("walrus.retry_attempts", defaultWalrusRetries)
	viper.SetDefault("llm.model", defaultLLMModel)
	viper.SetDefault("consul.kv_prefix", defaultConsulKVPrefix)

	if configPath == "" {
		configPath = os.Getenv(EnvConfigFile)
	}
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/enclave/")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("viper read config: %w", err)
	}
	return nil
}

// LoadConfig decodes and validates the configuration viper currently holds.
func LoadConfig() (*Config, error) {
	var cfg Config
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file and returns the validated configuration.
func Load(configPath string) (*Config, error) {
	if err := InitViperConfig(configPath); err != nil {
		return nil, err
	}
	return LoadConfig()
}

// Validate parses every static identifier and key; any malformed entry is a
// configuration error, fatal at startup.
func (c *Config) Validate() error {
	if !slices.Contains([]string{Production, Development}, c.Environment) {
		return errors.Newf(errors.KindConfig,
			"invalid environment %q, must be one of: %s", c.Environment,
			strings.Join([]string{Production, Development}, ", "))
	}

	pkgID, err := types.AddressFromHex(c.Seal.PackageID)
	if err != nil {
		return errors.Wrap(errors.KindConfig, "seal.package_id", err)
	}
	c.Seal.packageID = pkgID

	if len(c.Seal.KeyServers) == 0 {
		return errors.New(errors.KindConfig, "seal.key_servers must not be empty")
	}

	addrs := lo.Map(c.Seal.KeyServers, func(ks KeyServer, _ int) string { return ks.Address })
	if len(lo.Uniq(addrs)) != len(addrs) {
		return errors.New(errors.KindConfig, "seal.key_servers contains duplicate addresses")
	}

	for i := range c.Seal.KeyServers {
		ks := &c.Seal.KeyServers[i]
		addr, err := types.AddressFromHex(ks.Address)
		if err != nil {
			return errors.Wrap(errors.KindConfig, fmt.Sprintf("seal.key_servers[%d].address", i), err)
		}
		ks.address = addr

		commitment, err := hex.DecodeString(strings.TrimPrefix(ks.PublicKey, "0x"))
		if err != nil || len(commitment) == 0 {
			return errors.Newf(errors.KindConfig, "seal.key_servers[%d].public_key is not valid hex", i)
		}
		ks.commitment = commitment

		if ks.URL == "" && (c.Consul == nil || !c.Consul.Enabled) {
			return errors.Newf(errors.KindConfig,
				"seal.key_servers[%d].url is empty and consul resolution is disabled", i)
		}
	}

	if c.Walrus.AggregatorURL == "" {
		return errors.New(errors.KindConfig, "walrus.aggregator_url is required")
	}
	if c.Walrus.Cache.Enabled && c.Walrus.Cache.DBPath == "" {
		return errors.New(errors.KindConfig, "walrus.cache.db_path is required when the blob cache is enabled")
	}
	return nil
}

// PackageID returns the parsed policy package address.
func (c *Config) PackageID() types.Address {
	return c.Seal.packageID
}

// ServerAddresses returns the parsed key-server address set, in config order.
func (c *Config) ServerAddresses() []types.Address {
	return lo.Map(c.Seal.KeyServers, func(ks KeyServer, _ int) types.Address { return ks.address })
}

// ServerURL returns the statically configured endpoint for a server address.
func (c *Config) ServerURL(addr types.Address) (string, bool) {
	for _, ks := range c.Seal.KeyServers {
		if ks.address == addr && ks.URL != "" {
			return ks.URL, true
		}
	}
	return "", false
}

// ServerCommitments returns each server's public commitment bytes keyed by
// address.
func (c *Config) ServerCommitments() map[types.Address][]byte {
	out := make(map[types.Address][]byte, len(c.Seal.KeyServers))
	for _, ks := range c.Seal.KeyServers {
		out[ks.address] = ks.commitment
	}
	return out
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, Production)
}
