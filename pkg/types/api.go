package types

// InitKeyLoadRequest starts the bootstrap flow: the operator names the
// enclave's registration object and the ledger version at which it became
// shared.
type InitKeyLoadRequest struct {
	EnclaveObjectID      Address `json:"enclave_object_id"`
	InitialSharedVersion uint64  `json:"initial_shared_version"`
}

// InitKeyLoadResponse hands the operator the hex-encoded binary
// FetchKeyRequest to forward to every key server.
type InitKeyLoadResponse struct {
	SessionID      string `json:"session_id"`
	EncodedRequest string `json:"encoded_request"`
}

// CompleteKeyLoadRequest finishes the bootstrap flow with the hex-encoded
// binary batch of per-server responses collected by the operator.
type CompleteKeyLoadRequest struct {
	SessionID     string `json:"session_id"`
	SealResponses string `json:"seal_responses"`
}

// CompleteKeyLoadResponse reports how much key material was cached.
type CompleteKeyLoadResponse struct {
	Status       string `json:"status"`
	ScopesCached int    `json:"scopes_cached"`
}

// ProvisionAPIKeyRequest provisions the LLM API key: a hex-encoded binary
// EncryptedObject decrypted with already-cached partial keys.
type ProvisionAPIKeyRequest struct {
	EncryptedObject string `json:"encrypted_object"`
}

// ProvisionAPIKeyResponse acknowledges secret provisioning.
type ProvisionAPIKeyResponse struct {
	Status string `json:"status"`
}

// CreateTimelineIntentRequest asks the enclave to validate an encrypted
// medical record against its expected canonical fingerprint and return a
// signed timeline-entry intent.
type CreateTimelineIntentRequest struct {
	// PolicyID is the shared policy object authorizing the read.
	PolicyID             Address `json:"policy_id"`
	InitialSharedVersion uint64  `json:"initial_shared_version"`
	// WalrusBlobID addresses the encrypted record in blob storage.
	WalrusBlobID string `json:"walrus_blob_id"`
	// ExpectedSemanticHash is the hex SHA3-256 of the canonicalized plaintext.
	ExpectedSemanticHash string `json:"expected_semantic_hash"`

	PatientRefBytes HexBytes `json:"patient_ref_bytes"`
	ContentHash     HexBytes `json:"content_hash"`
}

// TimelineEntryIntentPayload is the signed payload of a timeline-entry
// intent. Field order is fixed: the on-chain verifier rebuilds the same
// deterministic encoding.
type TimelineEntryIntentPayload struct {
	PatientRefBytes HexBytes `json:"patient_ref_bytes"`
	WalrusBlobID    string   `json:"walrus_blob_id"`
	ContentHash     HexBytes `json:"content_hash"`
}

// TimelineEntryRequest is the payload of the public process-data endpoint.
type TimelineEntryRequest struct {
	PatientRef        string `json:"patient_ref"`
	EntryType         uint8  `json:"entry_type"`
	Scope             uint8  `json:"scope"`
	VisitDate         string `json:"visit_date"`
	ProviderSpecialty string `json:"provider_specialty"`
	VisitType         string `json:"visit_type"`
	Status            string `json:"status"`
	ContentHash       string `json:"content_hash"`
	WalrusBlobID      string `json:"walrus_blob_id"`
}

// TimelineEntryResponse is the signed payload returned by process-data.
type TimelineEntryResponse struct {
	PatientRef        string `json:"patient_ref"`
	EntryType         string `json:"entry_type"`
	Scope             string `json:"scope"`
	VisitDate         string `json:"visit_date"`
	ProviderSpecialty string `json:"provider_specialty"`
	Status            string `json:"status"`
	ContentHash       string `json:"content_hash"`
	CreatedAt         uint64 `json:"created_at"`
	Validator         string `json:"validator"`
}

// EntryTypeName maps a timeline entry-type code to its canonical name.
func EntryTypeName(code uint8) string {
	switch code {
	case 0:
		return "visit_summary"
	case 1:
		return "procedure"
	case 2:
		return "refill"
	case 3:
		return "note"
	case 4:
		return "diagnosis"
	case 5:
		return "lab_result"
	case 6:
		return "immunization"
	default:
		return "unknown"
	}
}

// TimelineScopeName maps a timeline scope code to its canonical name.
func TimelineScopeName(code uint8) string {
	switch code {
	case 0:
		return "treatment"
	case 1:
		return "payment"
	case 2:
		return "operations"
	case 3:
		return "research"
	case 4:
		return "legal"
	default:
		return "unknown"
	}
}
