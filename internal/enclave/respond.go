package enclave

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write response", err)
	}
}

// writeError maps an error kind onto an HTTP status and renders the uniform
// error body. Internal detail is logged, not leaked.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindConfig, errors.KindConstruction:
		status = http.StatusBadRequest
	case errors.KindNotProvisioned:
		status = http.StatusConflict
	case errors.KindContentIntegrity:
		status = http.StatusUnprocessableEntity
	case errors.KindTransport, errors.KindProtocol:
		status = http.StatusBadGateway
	}
	logger.Error("request failed", err, "status", status)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// signedResponse wraps data in a timestamped intent message and signs its
// deterministic encoding with the enclave key. payload must be the
// deterministic encoding of data.
func signedResponse[T any](a *App, scope types.IntentScope, data T, payload []byte, now time.Time) types.ProcessedDataResponse[T] {
	ts := uint64(now.UnixMilli())
	envelope := encoding.EncodeIntentEnvelope(scope, ts, payload)
	return types.ProcessedDataResponse[T]{
		Response: types.IntentMessage[T]{
			Intent:      scope,
			TimestampMS: ts,
			Data:        data,
		},
		Signature: a.material.Enclave.Sign(envelope),
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.KindConstruction, "decode request body", err)
	}
	return nil
}
