package encoding

import (
	"github.com/benhaq/sui-nautilus/pkg/types"
)

// EncodeTimelineIntentPayload writes the signed body of a timeline-entry
// intent. Field order is protocol-fixed; the on-chain verifier rebuilds the
// identical encoding.
func EncodeTimelineIntentPayload(p *types.TimelineEntryIntentPayload) []byte {
	return NewEncoder().
		WriteBytes(p.PatientRefBytes).
		String(p.WalrusBlobID).
		WriteBytes(p.ContentHash).
		Bytes()
}

// EncodeTimelineEntryResponse writes the signed body of a process-data
// response, fields in declaration order.
func EncodeTimelineEntryResponse(r *types.TimelineEntryResponse) []byte {
	return NewEncoder().
		String(r.PatientRef).
		String(r.EntryType).
		String(r.Scope).
		String(r.VisitDate).
		String(r.ProviderSpecialty).
		String(r.Status).
		String(r.ContentHash).
		U64(r.CreatedAt).
		String(r.Validator).
		Bytes()
}
