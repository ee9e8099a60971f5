// Package identity owns the enclave's process-lifetime key material: the
// session signing key, the wallet principal used only for bootstrap, and the
// one-time transport key pair protecting the key-server exchange.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// ed25519 scheme flag, prefixed to the public key for address derivation.
const schemeFlagEd25519 byte = 0x00

// Keypair is an ed25519 signing identity with its derived on-chain address.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr types.Address
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv, pub: pub, addr: DeriveAddress(pub)}, nil
}

// KeypairFromSeed rebuilds a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{priv: priv, pub: pub, addr: DeriveAddress(pub)}, nil
}

// Seed returns the 32-byte seed of the private key.
func (k *Keypair) Seed() []byte {
	return k.priv.Seed()
}

// PublicKey returns the verification key.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.pub
}

// Address returns the principal address derived from the public key.
func (k *Keypair) Address() types.Address {
	return k.addr
}

// Sign signs raw bytes.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// SignPersonalMessage signs the personal-message framing of msg: the message
// is intent-prefixed and length-framed, digested with blake2b-256, and the
// digest signed. Key servers rebuild the same framing when verifying
// certificates.
func (k *Keypair) SignPersonalMessage(msg []byte) []byte {
	digest := personalMessageDigest(msg)
	return ed25519.Sign(k.priv, digest[:])
}

// VerifyPersonalMessage checks a personal-message signature.
func VerifyPersonalMessage(pub ed25519.PublicKey, msg, sig []byte) bool {
	digest := personalMessageDigest(msg)
	return ed25519.Verify(pub, digest[:], sig)
}

// personalMessageIntent is the (scope, version, app) intent triple for
// personal messages, fixed by the signing protocol.
var personalMessageIntent = [3]byte{3, 0, 0}

func personalMessageDigest(msg []byte) [32]byte {
	framed := make([]byte, 0, 3+10+len(msg))
	framed = append(framed, personalMessageIntent[:]...)
	framed = appendUleb(framed, uint64(len(msg)))
	framed = append(framed, msg...)
	return blake2b.Sum256(framed)
}

func appendUleb(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// DeriveAddress computes the principal address of an ed25519 public key:
// blake2b-256 over the scheme flag followed by the key bytes.
func DeriveAddress(pub ed25519.PublicKey) types.Address {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{schemeFlagEd25519})
	h.Write(pub)
	var addr types.Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// Material is the full set of process-lifetime key material, created once at
// start and never persisted (the wallet seed may be loaded from an
// operator-provisioned file, see filestore.go).
type Material struct {
	// Enclave signs policy-check transactions and outbound responses.
	Enclave *Keypair
	// Wallet authorizes the enclave's own registration during bootstrap.
	Wallet *Keypair
	// Transport encrypts the key-server exchange.
	Transport *tibe.TransportKeyPair
}

// NewMaterial generates the process key material. walletSeed may be nil, in
// which case a fresh wallet key is generated.
func NewMaterial(suite *tibe.Suite, walletSeed []byte) (*Material, error) {
	enclave, err := NewKeypair()
	if err != nil {
		return nil, err
	}

	var wallet *Keypair
	if walletSeed != nil {
		wallet, err = KeypairFromSeed(walletSeed)
	} else {
		wallet, err = NewKeypair()
	}
	if err != nil {
		return nil, err
	}

	return &Material{
		Enclave:   enclave,
		Wallet:    wallet,
		Transport: suite.GenTransportKeyPair(),
	}, nil
}
