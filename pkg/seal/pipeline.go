package seal

import (
	"context"
	"time"

	"go.dedis.ch/kyber/v3"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/identity"
	"github.com/benhaq/sui-nautilus/pkg/keycache"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// EngineParams collects everything an Engine needs. All fields are required
// except Client, which may be nil when only the bootstrap handoff and cached
// decryption paths are used.
type EngineParams struct {
	Suite             *tibe.Suite
	Cache             *keycache.Cache
	Client            *Client
	Verifier          *Verifier
	Material          *identity.Material
	PackageID         types.Address
	PolicyModule      string
	WhitelistModule   string
	CertificateTTLMin uint64
}

// Engine runs the two decryption paths: cached decryption against partial
// keys loaded at bootstrap, and self-contained decryption that performs the
// full key-server exchange inline.
type Engine struct {
	suite             *tibe.Suite
	cache             *keycache.Cache
	client            *Client
	verifier          *Verifier
	material          *identity.Material
	packageID         types.Address
	policyModule      string
	whitelistModule   string
	certificateTTLMin uint64
}

// NewEngine builds an engine from its parts.
func NewEngine(p EngineParams) *Engine {
	return &Engine{
		suite:             p.Suite,
		cache:             p.Cache,
		client:            p.Client,
		verifier:          p.Verifier,
		material:          p.Material,
		packageID:         p.PackageID,
		policyModule:      p.PolicyModule,
		whitelistModule:   p.WhitelistModule,
		certificateTTLMin: p.CertificateTTLMin,
	}
}

// Cache exposes the engine's share cache.
func (e *Engine) Cache() *keycache.Cache {
	return e.cache
}

// BuildBootstrapRequest mints a session certificate and the whitelist policy
// check, and returns the encoded fetch request for the operator to relay to
// the key servers, together with the transport key pair the responses must be
// opened with. The transport secret stays inside the enclave; only the encoded
// request crosses the boundary.
func (e *Engine) BuildBootstrapRequest(now time.Time, enclaveObject types.Address, initialSharedVersion uint64) ([]byte, *tibe.TransportKeyPair, error) {
	session, cert, err := NewSessionCertificate(e.material.Wallet, e.packageID, e.certificateTTLMin, now)
	if err != nil {
		return nil, nil, err
	}

	transport := e.suite.GenTransportKeyPair()
	tx := BootstrapTransaction(
		e.material, e.packageID, e.whitelistModule,
		enclaveObject, initialSharedVersion, uint64(now.UnixMilli()),
	)
	req, err := BuildFetchKeyRequest(tx, session, cert, transport)
	if err != nil {
		return nil, nil, err
	}
	return encoding.EncodeFetchKeyRequest(req), transport, nil
}

// AbsorbBootstrapResponses verifies operator-relayed server responses and
// merges every verified partial key into the cache. It returns the scope
// identifiers that are now provisioned.
func (e *Engine) AbsorbBootstrapResponses(transport *tibe.TransportKeyPair, encoded []byte) ([][]byte, error) {
	responses, err := encoding.DecodeServerResponses(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "decode server responses", err)
	}
	if len(responses) == 0 {
		return nil, errors.New(errors.KindProtocol, "empty server response batch")
	}

	verified, err := e.verifier.VerifyResponses(transport, responses)
	if err != nil {
		return nil, err
	}

	scopes := make([][]byte, 0, len(verified))
	for scope, shares := range verified {
		e.cache.Merge([]byte(scope), shares)
		scopes = append(scopes, []byte(scope))
	}
	logger.Info("cached partial keys from bootstrap",
		"scopes", len(scopes),
		"servers", len(responses),
	)
	return scopes, nil
}

// DecryptCached decrypts an object using only partial keys already in the
// cache. No network traffic happens on this path; an unprovisioned scope or a
// share shortfall is reported as not provisioned, never fetched on demand.
func (e *Engine) DecryptCached(obj *types.EncryptedObject) ([]byte, error) {
	shares := e.cache.Shares(obj.ID)
	if shares == nil {
		return nil, errors.Newf(errors.KindNotProvisioned,
			"no cached keys for scope %s", obj.ID)
	}
	indexed := indexShares(obj, shares)
	if len(indexed) < obj.Threshold {
		return nil, errors.Newf(errors.KindNotProvisioned,
			"scope %s has %d cached shares, threshold is %d", obj.ID, len(indexed), obj.Threshold)
	}
	return e.recoverAndOpen(obj, indexed)
}

// DecryptFresh performs the full key-server exchange inline against the
// object's own policy object and decrypts with the shares it just fetched.
// The cache is never consulted and never updated: every call re-checks the
// policy.
func (e *Engine) DecryptFresh(ctx context.Context, obj *types.EncryptedObject, policyObject types.Address, initialSharedVersion uint64) ([]byte, error) {
	if e.client == nil {
		return nil, errors.New(errors.KindConstruction, "engine has no key server client")
	}
	now := time.Now()
	session, cert, err := NewSessionCertificate(e.material.Enclave, e.packageID, e.certificateTTLMin, now)
	if err != nil {
		return nil, err
	}

	transport := e.suite.GenTransportKeyPair()
	tx := ReadTransaction(e.packageID, e.policyModule, obj.ID, policyObject, initialSharedVersion)
	req, err := BuildFetchKeyRequest(tx, session, cert, transport)
	if err != nil {
		return nil, err
	}

	responses, err := e.client.FetchKeys(ctx, req)
	if err != nil {
		return nil, err
	}
	verified, err := e.verifier.VerifyResponses(transport, responses)
	if err != nil {
		return nil, err
	}

	shares, ok := verified[string(obj.ID)]
	if !ok {
		return nil, errors.Newf(errors.KindProtocol,
			"no server released a key for scope %s", obj.ID)
	}
	indexed := indexShares(obj, shares)
	if len(indexed) < obj.Threshold {
		return nil, errors.Newf(errors.KindTransport,
			"got %d verified shares for scope %s, threshold is %d", len(indexed), obj.ID, obj.Threshold)
	}
	return e.recoverAndOpen(obj, indexed)
}

// indexShares pairs each server's partial key with its share index from the
// object's service list. A cached share from a server outside the object's
// policy is simply not usable for this object.
func indexShares(obj *types.EncryptedObject, shares map[types.Address]kyber.Point) []tibe.IndexedShare {
	indexed := make([]tibe.IndexedShare, 0, len(shares))
	for server, partial := range shares {
		idx, ok := obj.ShareIndex(server)
		if !ok {
			continue
		}
		indexed = append(indexed, tibe.IndexedShare{Index: idx, Value: partial})
	}
	return indexed
}

func (e *Engine) recoverAndOpen(obj *types.EncryptedObject, indexed []tibe.IndexedShare) ([]byte, error) {
	identityKey, err := e.suite.Recover(indexed, obj.Threshold, len(obj.Services))
	if err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "recover identity key", err)
	}
	key, err := e.suite.DeriveKey(obj.ID, identityKey, obj.Encapsulation)
	if err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "derive data key", err)
	}
	plaintext, err := tibe.Open(key, obj.Ciphertext)
	if err != nil {
		return nil, errors.Wrap(errors.KindProtocol, "open ciphertext", err)
	}
	return plaintext, nil
}
