package types

// EncryptedObjectVersion is the only supported serialization version.
const EncryptedObjectVersion byte = 1

// ServiceShare names one key server participating in an object's threshold
// policy together with its share index in the underlying secret sharing.
type ServiceShare struct {
	Address Address `json:"address"`
	Index   int     `json:"index"`
}

// EncryptedObject is a ciphertext bound to the decryption scope it was
// encrypted under. The ID determines which policy-check transaction and which
// cached partial keys apply.
type EncryptedObject struct {
	Version       byte
	ID            HexBytes
	Services      []ServiceShare
	Threshold     int
	Encapsulation []byte // G2 point, the IBE encapsulation
	Ciphertext    []byte // AEAD ciphertext, nonce embedded
}

// ShareIndex returns the share index configured for the given server, or
// false when the server does not participate in this object's policy.
func (o *EncryptedObject) ShareIndex(server Address) (int, bool) {
	for _, s := range o.Services {
		if s.Address == server {
			return s.Index, true
		}
	}
	return 0, false
}
