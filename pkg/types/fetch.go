package types

// FetchKeyRequest is the full signed, encrypted ask sent to one key server.
// One instance is valid for exactly one policy-check transaction and one
// transport key pair.
type FetchKeyRequest struct {
	// PTB is the base64 encoding of the binary policy-check transaction.
	PTB string `json:"ptb"`
	// EncKey is the transport public key responses are encrypted to.
	EncKey []byte `json:"enc_key"`
	// EncVerificationKey lets servers check the transport key is well formed.
	EncVerificationKey []byte `json:"enc_verification_key"`
	// RequestSignature is the session key's signature over the request digest.
	RequestSignature HexBytes `json:"request_signature"`

	Certificate Certificate `json:"certificate"`
}

// EncryptedShare is one partial key, ElGamal-encrypted to the transport key.
type EncryptedShare struct {
	C0 []byte `json:"c0"`
	C1 []byte `json:"c1"`
}

// DecryptionKey carries one encrypted partial key for one scope identifier.
type DecryptionKey struct {
	ID           HexBytes       `json:"id"`
	EncryptedKey EncryptedShare `json:"encrypted_key"`
}

// FetchKeyResponse is a single key server's answer: one encrypted partial key
// per scope the policy check authorized.
type FetchKeyResponse struct {
	DecryptionKeys []DecryptionKey `json:"decryption_keys"`
}

// ServerKeyResponse pairs a response with the configured server it came from.
// Responses are never accepted from servers outside the configured set.
type ServerKeyResponse struct {
	Server   Address          `json:"server"`
	Response FetchKeyResponse `json:"response"`
}
