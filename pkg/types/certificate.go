package types

import (
	"encoding/base64"
	"fmt"
)

// Certificate is a time-bounded proof that a session verification key speaks
// for a principal. The principal signs a personal message binding the session
// key, the creation time and the time-to-live; key servers reject certificates
// whose TTL has elapsed.
type Certificate struct {
	User         Address  `json:"user"`
	SessionVK    []byte   `json:"session_vk"`
	CreationTime uint64   `json:"creation_time"` // unix millis
	TTLMin       uint64   `json:"ttl_min"`
	Signature    HexBytes `json:"signature"`
	MVRName      *string  `json:"mvr_name,omitempty"`
}

// CertificateMessage renders the personal message a principal signs to mint a
// certificate. The exact wording is part of the key-server protocol.
func CertificateMessage(packageID Address, sessionVK []byte, creationTime, ttlMin uint64) string {
	return fmt.Sprintf(
		"Accessing keys of package %s for %d mins from %d, session key %s",
		packageID, ttlMin, creationTime,
		base64.StdEncoding.EncodeToString(sessionVK),
	)
}
