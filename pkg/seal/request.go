// Package seal builds, sends and verifies the key-server exchange that turns
// an on-chain access policy into usable decryption keys, and runs the
// threshold decryption those keys enable.
package seal

import (
	"encoding/base64"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/identity"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

const (
	approveEnclavesFunction = "seal_approve_enclaves"
	approveReadFunction     = "seal_approve_read"
)

// NewSessionCertificate mints a fresh session key and a certificate binding it
// to the wallet for ttlMin minutes starting at now.
func NewSessionCertificate(wallet *identity.Keypair, packageID types.Address, ttlMin uint64, now time.Time) (*identity.Keypair, types.Certificate, error) {
	session, err := identity.NewKeypair()
	if err != nil {
		return nil, types.Certificate{}, errors.Wrap(errors.KindConstruction, "generate session key", err)
	}

	creation := uint64(now.UnixMilli())
	msg := types.CertificateMessage(packageID, session.PublicKey(), creation, ttlMin)
	cert := types.Certificate{
		User:         wallet.Address(),
		SessionVK:    session.PublicKey(),
		CreationTime: creation,
		TTLMin:       ttlMin,
		Signature:    wallet.SignPersonalMessage([]byte(msg)),
	}
	return session, cert, nil
}

// BootstrapTransaction builds the whitelist policy check that authorizes the
// enclave to load partial keys for every scope it is whitelisted for. The
// signature input attests the wallet public key with the enclave key, so the
// contract can tie the calling wallet back to an attested enclave instance.
//
// Input order is fixed by the contract.
func BootstrapTransaction(
	material *identity.Material,
	packageID types.Address,
	whitelistModule string,
	enclaveObject types.Address,
	initialSharedVersion uint64,
	timestampMS uint64,
) *types.PolicyCheckTransaction {
	walletPK := []byte(material.Wallet.PublicKey())
	attestation := encoding.EncodeIntentEnvelope(types.IntentWalletPK, timestampMS, walletPK)
	signature := material.Enclave.Sign(attestation)

	return &types.PolicyCheckTransaction{
		Inputs: []types.CallInput{
			types.Pure(encoding.NewEncoder().WriteBytes([]byte{0}).Bytes()),
			types.Pure(encoding.NewEncoder().WriteBytes(signature).Bytes()),
			types.Pure(encoding.NewEncoder().WriteBytes(walletPK).Bytes()),
			types.Pure(encoding.NewEncoder().U64(timestampMS).Bytes()),
			types.SharedObject(enclaveObject, initialSharedVersion, false),
		},
		Call: types.MoveCall{
			Package:   packageID,
			Module:    whitelistModule,
			Function:  approveEnclavesFunction,
			Arguments: []uint16{0, 1, 2, 3, 4},
		},
	}
}

// ReadTransaction builds the per-object policy check releasing the partial
// keys for a single encryption scope.
func ReadTransaction(
	packageID types.Address,
	policyModule string,
	encryptionID []byte,
	policyObject types.Address,
	initialSharedVersion uint64,
) *types.PolicyCheckTransaction {
	return &types.PolicyCheckTransaction{
		Inputs: []types.CallInput{
			types.Pure(encoding.NewEncoder().WriteBytes(encryptionID).Bytes()),
			types.SharedObject(policyObject, initialSharedVersion, false),
		},
		Call: types.MoveCall{
			Package:   packageID,
			Module:    policyModule,
			Function:  approveReadFunction,
			Arguments: []uint16{0, 1},
		},
	}
}

// BuildFetchKeyRequest assembles the signed request for one policy-check
// transaction and one transport key pair. The session key signs a digest over
// the transaction and both transport keys, so a server can detect any
// substitution of the key responses are encrypted to.
func BuildFetchKeyRequest(
	tx *types.PolicyCheckTransaction,
	session *identity.Keypair,
	cert types.Certificate,
	transport *tibe.TransportKeyPair,
) (*types.FetchKeyRequest, error) {
	txBytes, err := encoding.EncodeTransaction(tx)
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "encode policy check transaction", err)
	}
	encKey, err := transport.PublicBytes()
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "marshal transport key", err)
	}
	encVK, err := transport.VerificationBytes()
	if err != nil {
		return nil, errors.Wrap(errors.KindConstruction, "marshal transport verification key", err)
	}

	digest := requestDigest(txBytes, encKey, encVK)
	return &types.FetchKeyRequest{
		PTB:                base64.StdEncoding.EncodeToString(txBytes),
		EncKey:             encKey,
		EncVerificationKey: encVK,
		RequestSignature:   session.Sign(digest[:]),
		Certificate:        cert,
	}, nil
}

func requestDigest(txBytes, encKey, encVK []byte) [32]byte {
	payload := encoding.NewEncoder().
		WriteBytes(txBytes).
		WriteBytes(encKey).
		WriteBytes(encVK).
		Bytes()
	return blake2b.Sum256(payload)
}
