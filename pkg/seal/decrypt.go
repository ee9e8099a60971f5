package seal

import (
	"go.dedis.ch/kyber/v3"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// Verifier opens server responses with the transport secret and checks every
// partial key against the sending server's published commitment. Responses
// travel through an untrusted operator, so nothing is accepted on faith.
type Verifier struct {
	suite       *tibe.Suite
	commitments map[types.Address]kyber.Point
}

// NewVerifier parses the configured commitment for every trusted server.
func NewVerifier(suite *tibe.Suite, commitments map[types.Address][]byte) (*Verifier, error) {
	parsed := make(map[types.Address]kyber.Point, len(commitments))
	for addr, raw := range commitments {
		point, err := suite.UnmarshalCommitment(raw)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "parse commitment for "+addr.String(), err)
		}
		parsed[addr] = point
	}
	return &Verifier{suite: suite, commitments: parsed}, nil
}

// VerifiedShares maps a scope identifier to the verified partial key each
// server contributed for it.
type VerifiedShares map[string]map[types.Address]kyber.Point

// VerifyResponses decrypts and verifies every partial key in the batch,
// grouped by scope. A single bad share rejects the whole batch: a response set
// that fails verification is evidence of tampering, not of flaky transport.
func (v *Verifier) VerifyResponses(transport *tibe.TransportKeyPair, responses []types.ServerKeyResponse) (VerifiedShares, error) {
	out := make(VerifiedShares)
	for _, resp := range responses {
		commitment, ok := v.commitments[resp.Server]
		if !ok {
			return nil, errors.Newf(errors.KindProtocol,
				"response from unknown server %s", resp.Server)
		}
		for _, dk := range resp.Response.DecryptionKeys {
			partial, err := v.suite.DecryptShare(transport, dk.EncryptedKey.C0, dk.EncryptedKey.C1)
			if err != nil {
				return nil, errors.Wrap(errors.KindProtocol,
					"decrypt share from "+resp.Server.String(), err)
			}
			if err := v.suite.VerifyShare(dk.ID, partial, commitment); err != nil {
				return nil, errors.Wrap(errors.KindProtocol,
					"verify share from "+resp.Server.String(), err)
			}
			scope := string(dk.ID)
			if out[scope] == nil {
				out[scope] = make(map[types.Address]kyber.Point)
			}
			out[scope][resp.Server] = partial
		}
	}
	return out, nil
}
