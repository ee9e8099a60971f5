package encoding

import (
	"errors"
	"fmt"

	"github.com/benhaq/sui-nautilus/pkg/types"
)

const maxCollectionLen = 1 << 16

// EncodeTransaction serializes a policy-check transaction in the fixed
// order key servers expect: input count, each tagged input, then the call.
func EncodeTransaction(tx *types.PolicyCheckTransaction) ([]byte, error) {
	e := NewEncoder()
	e.Uleb(uint64(len(tx.Inputs)))
	for i, in := range tx.Inputs {
		switch in.Kind {
		case types.InputPure:
			e.Byte(byte(types.InputPure)).WriteBytes(in.Value)
		case types.InputSharedObject:
			e.Byte(byte(types.InputSharedObject)).
				Raw(in.ObjectID.Bytes()).
				U64(in.InitialSharedVersion).
				Bool(in.Mutable)
		default:
			return nil, fmt.Errorf("input %d: unknown kind %d", i, in.Kind)
		}
	}
	e.Raw(tx.Call.Package.Bytes()).
		String(tx.Call.Module).
		String(tx.Call.Function)
	e.Uleb(uint64(len(tx.Call.Arguments)))
	for _, arg := range tx.Call.Arguments {
		if int(arg) >= len(tx.Inputs) {
			return nil, fmt.Errorf("argument references input %d of %d", arg, len(tx.Inputs))
		}
		e.U16(arg)
	}
	return e.Bytes(), nil
}

// DecodeTransaction parses a policy-check transaction.
func DecodeTransaction(data []byte) (*types.PolicyCheckTransaction, error) {
	d := NewDecoder(data)
	tx := &types.PolicyCheckTransaction{}

	n := d.Uleb()
	for i := uint64(0); i < n && d.Err() == nil; i++ {
		switch kind := types.InputKind(d.Byte()); kind {
		case types.InputPure:
			tx.Inputs = append(tx.Inputs, types.Pure(d.ReadBytes()))
		case types.InputSharedObject:
			id, err := types.AddressFromBytes(d.ReadRaw(types.AddressLength))
			if err != nil {
				return nil, err
			}
			tx.Inputs = append(tx.Inputs, types.SharedObject(id, d.U64(), d.Bool()))
		default:
			return nil, fmt.Errorf("input %d: unknown kind %d", i, kind)
		}
	}
	if d.Err() != nil {
		return nil, d.Err()
	}

	pkg, err := types.AddressFromBytes(d.ReadRaw(types.AddressLength))
	if err != nil {
		return nil, err
	}
	tx.Call.Package = pkg
	tx.Call.Module = d.ReadString()
	tx.Call.Function = d.ReadString()
	argc := d.Uleb()
	for i := uint64(0); i < argc && d.Err() == nil; i++ {
		arg := d.U16()
		if int(arg) >= len(tx.Inputs) {
			return nil, fmt.Errorf("argument references input %d of %d", arg, len(tx.Inputs))
		}
		tx.Call.Arguments = append(tx.Call.Arguments, arg)
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return tx, nil
}

// EncodeFetchKeyRequest serializes the request for the hex handoff between
// the enclave and the operator.
func EncodeFetchKeyRequest(req *types.FetchKeyRequest) []byte {
	e := NewEncoder()
	e.String(req.PTB).
		WriteBytes(req.EncKey).
		WriteBytes(req.EncVerificationKey).
		WriteBytes(req.RequestSignature)
	encodeCertificate(e, &req.Certificate)
	return e.Bytes()
}

// DecodeFetchKeyRequest parses an operator-handoff request.
func DecodeFetchKeyRequest(data []byte) (*types.FetchKeyRequest, error) {
	d := NewDecoder(data)
	req := &types.FetchKeyRequest{
		PTB:                d.ReadString(),
		EncKey:             d.ReadBytes(),
		EncVerificationKey: d.ReadBytes(),
		RequestSignature:   d.ReadBytes(),
	}
	cert, err := decodeCertificate(d)
	if err != nil {
		return nil, err
	}
	req.Certificate = *cert
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return req, nil
}

func encodeCertificate(e *Encoder, cert *types.Certificate) {
	e.Raw(cert.User.Bytes()).
		WriteBytes(cert.SessionVK).
		U64(cert.CreationTime).
		U64(cert.TTLMin).
		WriteBytes(cert.Signature)
	if cert.MVRName != nil {
		e.Bool(true).String(*cert.MVRName)
	} else {
		e.Bool(false)
	}
}

func decodeCertificate(d *Decoder) (*types.Certificate, error) {
	user, err := types.AddressFromBytes(d.ReadRaw(types.AddressLength))
	if err != nil {
		return nil, err
	}
	cert := &types.Certificate{
		User:         user,
		SessionVK:    d.ReadBytes(),
		CreationTime: d.U64(),
		TTLMin:       d.U64(),
		Signature:    d.ReadBytes(),
	}
	if d.Bool() {
		name := d.ReadString()
		cert.MVRName = &name
	}
	if d.Err() != nil {
		return nil, d.Err()
	}
	return cert, nil
}

// EncodeServerResponses serializes the batch of per-server responses the
// operator posts back to complete a bootstrap.
func EncodeServerResponses(responses []types.ServerKeyResponse) []byte {
	e := NewEncoder()
	e.Uleb(uint64(len(responses)))
	for _, r := range responses {
		e.Raw(r.Server.Bytes())
		e.Uleb(uint64(len(r.Response.DecryptionKeys)))
		for _, dk := range r.Response.DecryptionKeys {
			e.WriteBytes(dk.ID).
				WriteBytes(dk.EncryptedKey.C0).
				WriteBytes(dk.EncryptedKey.C1)
		}
	}
	return e.Bytes()
}

// DecodeServerResponses parses a response batch.
func DecodeServerResponses(data []byte) ([]types.ServerKeyResponse, error) {
	d := NewDecoder(data)
	n := d.Uleb()
	if n > maxCollectionLen {
		return nil, fmt.Errorf("response batch too large: %d", n)
	}
	out := make([]types.ServerKeyResponse, 0, n)
	for i := uint64(0); i < n && d.Err() == nil; i++ {
		server, err := types.AddressFromBytes(d.ReadRaw(types.AddressLength))
		if err != nil {
			return nil, err
		}
		resp := types.ServerKeyResponse{Server: server}
		keys := d.Uleb()
		for j := uint64(0); j < keys && d.Err() == nil; j++ {
			resp.Response.DecryptionKeys = append(resp.Response.DecryptionKeys, types.DecryptionKey{
				ID: d.ReadBytes(),
				EncryptedKey: types.EncryptedShare{
					C0: d.ReadBytes(),
					C1: d.ReadBytes(),
				},
			})
		}
		out = append(out, resp)
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeEncryptedObject serializes a ciphertext with its scope binding.
func EncodeEncryptedObject(obj *types.EncryptedObject) []byte {
	e := NewEncoder()
	e.Byte(obj.Version).
		WriteBytes(obj.ID)
	e.Uleb(uint64(len(obj.Services)))
	for _, s := range obj.Services {
		e.Raw(s.Address.Bytes()).Uleb(uint64(s.Index))
	}
	e.Uleb(uint64(obj.Threshold)).
		WriteBytes(obj.Encapsulation).
		WriteBytes(obj.Ciphertext)
	return e.Bytes()
}

// DecodeEncryptedObject parses a ciphertext and validates its version.
func DecodeEncryptedObject(data []byte) (*types.EncryptedObject, error) {
	d := NewDecoder(data)
	obj := &types.EncryptedObject{Version: d.Byte()}
	if d.Err() == nil && obj.Version != types.EncryptedObjectVersion {
		return nil, fmt.Errorf("unsupported encrypted object version %d", obj.Version)
	}
	obj.ID = d.ReadBytes()
	n := d.Uleb()
	if n > maxCollectionLen {
		return nil, fmt.Errorf("service list too large: %d", n)
	}
	for i := uint64(0); i < n && d.Err() == nil; i++ {
		addr, err := types.AddressFromBytes(d.ReadRaw(types.AddressLength))
		if err != nil {
			return nil, err
		}
		obj.Services = append(obj.Services, types.ServiceShare{Address: addr, Index: int(d.Uleb())})
	}
	obj.Threshold = int(d.Uleb())
	obj.Encapsulation = d.ReadBytes()
	obj.Ciphertext = d.ReadBytes()
	if err := d.Finish(); err != nil {
		return nil, err
	}
	if len(obj.ID) == 0 {
		return nil, errors.New("encrypted object has empty scope identifier")
	}
	return obj, nil
}

// EncodeIntentEnvelope frames a signed payload with its intent scope and
// timestamp. This is what enclave signatures actually cover.
func EncodeIntentEnvelope(scope types.IntentScope, timestampMS uint64, payload []byte) []byte {
	e := NewEncoder()
	e.Byte(byte(scope)).
		U64(timestampMS).
		WriteBytes(payload)
	return e.Bytes()
}
