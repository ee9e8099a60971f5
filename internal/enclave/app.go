// Package enclave wires the decryption engine, blob client, transformer and
// session manager into the two HTTP surfaces the enclave exposes: a
// loopback-only provisioning server for the host operator and a public
// application server.
package enclave

import (
	"strings"
	"sync"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/config"
	"github.com/benhaq/sui-nautilus/pkg/fhir"
	"github.com/benhaq/sui-nautilus/pkg/identity"
	"github.com/benhaq/sui-nautilus/pkg/seal"
	"github.com/benhaq/sui-nautilus/pkg/session"
	"github.com/benhaq/sui-nautilus/pkg/walrus"
)

// App holds the enclave's long-lived components. Handlers hang off it;
// nothing here is package-global.
type App struct {
	cfg         *config.Config
	material    *identity.Material
	engine      *seal.Engine
	sessions    *session.Manager
	blobs       *walrus.Client
	transformer fhir.Transformer

	apiKeyMu sync.RWMutex
	apiKey   string
}

// AppParams collects the App's dependencies.
type AppParams struct {
	Config      *config.Config
	Material    *identity.Material
	Engine      *seal.Engine
	Sessions    *session.Manager
	Blobs       *walrus.Client
	Transformer fhir.Transformer
}

// NewApp builds the application.
func NewApp(p AppParams) *App {
	return &App{
		cfg:         p.Config,
		material:    p.Material,
		engine:      p.Engine,
		sessions:    p.Sessions,
		blobs:       p.Blobs,
		transformer: p.Transformer,
	}
}

// ProvisionAPIKey stores the decrypted model credential. Re-provisioning
// overwrites the previous key.
func (a *App) ProvisionAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New(errors.KindConstruction, "empty api key")
	}
	a.apiKeyMu.Lock()
	a.apiKey = key
	a.apiKeyMu.Unlock()
	return nil
}

// APIKey returns the provisioned model credential. Suitable as a
// fhir.KeySource.
func (a *App) APIKey() (string, error) {
	a.apiKeyMu.RLock()
	defer a.apiKeyMu.RUnlock()
	if a.apiKey == "" {
		return "", errors.New(errors.KindNotProvisioned, "api key not provisioned")
	}
	return a.apiKey, nil
}

// APIKeyProvisioned reports whether the model credential is loaded.
func (a *App) APIKeyProvisioned() bool {
	a.apiKeyMu.RLock()
	defer a.apiKeyMu.RUnlock()
	return a.apiKey != ""
}
