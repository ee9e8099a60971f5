package tibe

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/random"
)

// Authority deals master-key shares to a set of key servers. It exists for
// test fixtures and operator tooling; a production deployment runs a
// distributed key generation instead and the enclave only ever sees the
// public commitments.
type Authority struct {
	suite     *Suite
	threshold int
	shares    []*share.PriShare
	masterPub kyber.Point
}

// NewAuthority deals n shares with the given reconstruction threshold.
func (s *Suite) NewAuthority(threshold, n int) (*Authority, error) {
	if threshold < 1 || threshold > n {
		return nil, fmt.Errorf("invalid threshold %d for %d servers", threshold, n)
	}
	secret := s.p.G2().Scalar().Pick(random.New())
	poly := share.NewPriPoly(s.p.G2(), threshold, secret, random.New())
	return &Authority{
		suite:     s,
		threshold: threshold,
		shares:    poly.Shares(n),
		masterPub: s.p.G2().Point().Mul(secret, nil),
	}, nil
}

// Threshold returns the reconstruction threshold.
func (a *Authority) Threshold() int {
	return a.threshold
}

// MasterPublic returns the aggregate public key ciphertexts are sealed to.
func (a *Authority) MasterPublic() kyber.Point {
	return a.masterPub
}

// Commitment returns server i's public commitment g2^s_i.
func (a *Authority) Commitment(i int) kyber.Point {
	sh := a.shares[i]
	return a.suite.p.G2().Point().Mul(sh.V, nil)
}

// ShareIndex returns the share index carried by server i's key material.
func (a *Authority) ShareIndex(i int) int {
	return a.shares[i].I
}

// ExtractShare computes server i's partial key for a scope identifier.
func (a *Authority) ExtractShare(i int, id []byte) kyber.Point {
	return a.suite.p.G1().Point().Mul(a.shares[i].V, a.suite.identityPoint(id))
}

// EncryptShareTo ElGamal-encrypts a partial key to a transport public key,
// producing the two-point ciphertext a key server puts on the wire.
func (a *Authority) EncryptShareTo(transportPub []byte, partial kyber.Point) (c0Raw, c1Raw []byte, err error) {
	pub := a.suite.p.G1().Point()
	if err := pub.UnmarshalBinary(transportPub); err != nil {
		return nil, nil, fmt.Errorf("unmarshal transport key: %w", err)
	}

	r := a.suite.p.G1().Scalar().Pick(random.New())
	c0 := a.suite.p.G1().Point().Mul(r, nil)
	mask := a.suite.p.G1().Point().Mul(r, pub)
	c1 := a.suite.p.G1().Point().Add(partial, mask)

	if c0Raw, err = c0.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if c1Raw, err = c1.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return c0Raw, c1Raw, nil
}
