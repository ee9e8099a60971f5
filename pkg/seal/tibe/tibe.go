// Package tibe orchestrates the threshold identity-based encryption scheme
// used to protect vault objects. All group and pairing arithmetic is
// delegated to the kyber library; this package only sequences it.
//
// Roles:
//   - key servers hold shares s_i of a master scalar and publish G2
//     commitments g2^s_i;
//   - a ciphertext is bound to a scope identifier hashed into G1;
//   - each server releases its partial key Q_id^s_i, ElGamal-encrypted to the
//     requester's one-time transport key;
//   - enough partial keys recover Q_id^s, which pairs with the ciphertext's
//     encapsulation to rebuild the data key.
package tibe

import (
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/crypto/sha3"

	"github.com/benhaq/sui-nautilus/pkg/encryption"
)

// Suite bundles the pairing suite every operation runs on.
type Suite struct {
	p *bn256.Suite
}

// NewSuite returns the production suite.
func NewSuite() *Suite {
	return &Suite{p: bn256.NewSuite()}
}

// TransportKeyPair is the one-time asymmetric key protecting the exchange
// with key servers. The secret scalar never leaves the process.
type TransportKeyPair struct {
	secret kyber.Scalar
	// Public is the G1 point responses are encrypted to.
	Public kyber.Point
	// Verification is the matching G2 point, letting servers check the
	// transport key is well formed before using it.
	Verification kyber.Point
}

// GenTransportKeyPair generates a fresh transport key pair.
func (s *Suite) GenTransportKeyPair() *TransportKeyPair {
	secret := s.p.G1().Scalar().Pick(random.New())
	return &TransportKeyPair{
		secret:       secret,
		Public:       s.p.G1().Point().Mul(secret, nil),
		Verification: s.p.G2().Point().Mul(secret, nil),
	}
}

// PublicBytes marshals the transport public key.
func (kp *TransportKeyPair) PublicBytes() ([]byte, error) {
	return kp.Public.MarshalBinary()
}

// VerificationBytes marshals the transport verification key.
func (kp *TransportKeyPair) VerificationBytes() ([]byte, error) {
	return kp.Verification.MarshalBinary()
}

// UnmarshalCommitment parses a server's public commitment (G2).
func (s *Suite) UnmarshalCommitment(raw []byte) (kyber.Point, error) {
	p := s.p.G2().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal server commitment: %w", err)
	}
	return p, nil
}

// identityPoint hashes a scope identifier into G1.
func (s *Suite) identityPoint(id []byte) kyber.Point {
	return s.p.G1().Point().(interface{ Hash([]byte) kyber.Point }).Hash(id)
}

// DecryptShare opens one server's ElGamal-encrypted partial key under the
// transport secret.
func (s *Suite) DecryptShare(kp *TransportKeyPair, c0Raw, c1Raw []byte) (kyber.Point, error) {
	c0 := s.p.G1().Point()
	if err := c0.UnmarshalBinary(c0Raw); err != nil {
		return nil, fmt.Errorf("unmarshal c0: %w", err)
	}
	c1 := s.p.G1().Point()
	if err := c1.UnmarshalBinary(c1Raw); err != nil {
		return nil, fmt.Errorf("unmarshal c1: %w", err)
	}
	// share = c1 - c0^u
	mask := s.p.G1().Point().Mul(kp.secret, c0)
	return s.p.G1().Point().Sub(c1, mask), nil
}

// VerifyShare checks a decrypted partial key against the claimed server's
// commitment: e(share, g2) == e(H(id), commitment). A mismatch means the
// response was not produced by the key holder it claims to come from.
func (s *Suite) VerifyShare(id []byte, partial kyber.Point, commitment kyber.Point) error {
	left := s.p.Pair(partial, s.p.G2().Point().Base())
	right := s.p.Pair(s.identityPoint(id), commitment)
	if !left.Equal(right) {
		return errors.New("partial key does not match server commitment")
	}
	return nil
}

// IndexedShare pairs a partial key with its share index from the object's
// service list.
type IndexedShare struct {
	Index int
	Value kyber.Point
}

// Recover interpolates the full identity key from at least threshold partial
// keys.
func (s *Suite) Recover(shares []IndexedShare, threshold, n int) (kyber.Point, error) {
	if len(shares) < threshold {
		return nil, fmt.Errorf("have %d shares, need %d", len(shares), threshold)
	}
	pubShares := make([]*share.PubShare, 0, len(shares))
	for _, sh := range shares {
		pubShares = append(pubShares, &share.PubShare{I: sh.Index, V: sh.Value})
	}
	recovered, err := share.RecoverCommit(s.p.G1(), pubShares, threshold, n)
	if err != nil {
		return nil, fmt.Errorf("recover identity key: %w", err)
	}
	return recovered, nil
}

// DeriveKey rebuilds the 32-byte data key from the recovered identity key and
// the ciphertext's encapsulation.
func (s *Suite) DeriveKey(id []byte, identityKey kyber.Point, encapsulation []byte) ([]byte, error) {
	u := s.p.G2().Point()
	if err := u.UnmarshalBinary(encapsulation); err != nil {
		return nil, fmt.Errorf("unmarshal encapsulation: %w", err)
	}
	return s.kdf(id, s.p.Pair(identityKey, u))
}

func (s *Suite) kdf(id []byte, gt kyber.Point) ([]byte, error) {
	raw, err := gt.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pairing value: %w", err)
	}
	h := sha3.New256()
	h.Write(raw)
	h.Write(id)
	return h.Sum(nil), nil
}

// Encrypt seals plaintext under a scope identifier and the master public
// key. Used by fixtures and the share-dealing side; the enclave itself only
// decrypts.
func (s *Suite) Encrypt(id []byte, masterPub kyber.Point, plaintext []byte) (encapsulation, ciphertext []byte, err error) {
	r := s.p.G2().Scalar().Pick(random.New())
	u := s.p.G2().Point().Mul(r, nil)

	gt := s.p.Pair(s.identityPoint(id), masterPub)
	key, err := s.kdf(id, s.p.GT().Point().Mul(r, gt))
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err = encryption.EncryptAESGCMWithNonceEmbed(plaintext, key)
	if err != nil {
		return nil, nil, err
	}
	encapsulation, err = u.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return encapsulation, ciphertext, nil
}

// Open decrypts the AEAD ciphertext with a key derived by DeriveKey.
func Open(key, ciphertext []byte) ([]byte, error) {
	return encryption.DecryptAESGCMWithNonceEmbed(ciphertext, key)
}
