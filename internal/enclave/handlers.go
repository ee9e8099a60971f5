package enclave

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/fhir"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// HostHandler returns the loopback-only provisioning surface. It must never
// be bound to a public interface; it accepts unauthenticated requests from
// the host operator.
func (a *App) HostHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", a.handlePing)
	mux.HandleFunc("POST /admin/init_seal_key_load", a.handleInitKeyLoad)
	mux.HandleFunc("POST /admin/complete_seal_key_load", a.handleCompleteKeyLoad)
	mux.HandleFunc("POST /admin/provision_api_key", a.handleProvisionAPIKey)
	return mux
}

// PublicHandler returns the application surface.
func (a *App) PublicHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health_check", a.handleHealthCheck)
	mux.HandleFunc("POST /process_data", a.handleProcessData)
	mux.HandleFunc("POST /create_timeline_intent", a.handleCreateTimelineIntent)
	return mux
}

func (a *App) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (a *App) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"enclave_address":     a.material.Enclave.Address().String(),
		"wallet_address":      a.material.Wallet.Address().String(),
		"scopes_cached":       a.engine.Cache().Len(),
		"api_key_provisioned": a.APIKeyProvisioned(),
	})
}

func (a *App) handleInitKeyLoad(w http.ResponseWriter, r *http.Request) {
	var req types.InitKeyLoadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.EnclaveObjectID.IsZero() {
		writeError(w, errors.New(errors.KindConstruction, "enclave_object_id is required"))
		return
	}

	encoded, transport, err := a.engine.BuildBootstrapRequest(time.Now(), req.EnclaveObjectID, req.InitialSharedVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	sessionID := a.sessions.Begin(transport)

	writeJSON(w, http.StatusOK, types.InitKeyLoadResponse{
		SessionID:      sessionID,
		EncodedRequest: hex.EncodeToString(encoded),
	})
}

func (a *App) handleCompleteKeyLoad(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteKeyLoadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := a.sessions.Take(req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := hex.DecodeString(req.SealResponses)
	if err != nil {
		writeError(w, errors.Wrap(errors.KindConstruction, "decode seal_responses", err))
		return
	}

	scopes, err := a.engine.AbsorbBootstrapResponses(sess.Transport, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CompleteKeyLoadResponse{
		Status:       "success",
		ScopesCached: len(scopes),
	})
}

func (a *App) handleProvisionAPIKey(w http.ResponseWriter, r *http.Request) {
	var req types.ProvisionAPIKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := hex.DecodeString(req.EncryptedObject)
	if err != nil {
		writeError(w, errors.Wrap(errors.KindConstruction, "decode encrypted_object", err))
		return
	}
	obj, err := encoding.DecodeEncryptedObject(raw)
	if err != nil {
		writeError(w, errors.Wrap(errors.KindConstruction, "parse encrypted_object", err))
		return
	}

	plaintext, err := a.engine.DecryptCached(obj)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.ProvisionAPIKey(string(plaintext)); err != nil {
		writeError(w, err)
		return
	}
	logger.Info("api key provisioned", "scope", obj.ID.String())
	writeJSON(w, http.StatusOK, types.ProvisionAPIKeyResponse{Status: "success"})
}

func (a *App) handleProcessData(w http.ResponseWriter, r *http.Request) {
	if !a.APIKeyProvisioned() {
		writeError(w, errors.New(errors.KindNotProvisioned,
			"api key not provisioned, load it through the admin endpoint first"))
		return
	}
	var req types.ProcessDataRequest[types.TimelineEntryRequest]
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry := req.Payload
	if entry.PatientRef == "" || entry.ContentHash == "" || entry.WalrusBlobID == "" {
		writeError(w, errors.New(errors.KindConstruction,
			"patient_ref, content_hash and walrus_blob_id are required"))
		return
	}

	now := time.Now()
	data := types.TimelineEntryResponse{
		PatientRef:        entry.PatientRef,
		EntryType:         types.EntryTypeName(entry.EntryType),
		Scope:             types.TimelineScopeName(entry.Scope),
		VisitDate:         entry.VisitDate,
		ProviderSpecialty: entry.ProviderSpecialty,
		Status:            entry.Status,
		ContentHash:       entry.ContentHash,
		CreatedAt:         uint64(now.UnixMilli()),
		Validator:         a.material.Enclave.Address().String(),
	}
	payload := encoding.EncodeTimelineEntryResponse(&data)
	writeJSON(w, http.StatusOK, signedResponse(a, types.IntentProcessData, data, payload, now))
}

func (a *App) handleCreateTimelineIntent(w http.ResponseWriter, r *http.Request) {
	var req types.CreateTimelineIntentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WalrusBlobID == "" || req.ExpectedSemanticHash == "" {
		writeError(w, errors.New(errors.KindConstruction,
			"walrus_blob_id and expected_semantic_hash are required"))
		return
	}

	blob, err := a.blobs.Fetch(r.Context(), req.WalrusBlobID)
	if err != nil {
		writeError(w, err)
		return
	}
	obj, err := encoding.DecodeEncryptedObject(blob)
	if err != nil {
		writeError(w, errors.Wrap(errors.KindProtocol, "parse encrypted blob", err))
		return
	}

	plaintext, err := a.engine.DecryptFresh(r.Context(), obj, req.PolicyID, req.InitialSharedVersion)
	if err != nil {
		writeError(w, err)
		return
	}

	// A record stored as raw text is first derived into its structured form;
	// the fingerprint commitment is always over the structured document.
	doc := plaintext
	if !json.Valid(plaintext) {
		doc, err = a.transformer.Transform(r.Context(), plaintext)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if err := fhir.VerifyFingerprint(doc, req.ExpectedSemanticHash); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	data := types.TimelineEntryIntentPayload{
		PatientRefBytes: req.PatientRefBytes,
		WalrusBlobID:    req.WalrusBlobID,
		ContentHash:     req.ContentHash,
	}
	payload := encoding.EncodeTimelineIntentPayload(&data)
	writeJSON(w, http.StatusOK, signedResponse(a, types.IntentTimelineEntry, data, payload, now))
}
