// Package fhir handles the content-integrity side of timeline entries:
// canonicalizing FHIR JSON documents, fingerprinting them, and deriving them
// from raw records through an external model.
package fhir

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
)

// Canonicalize re-serializes a JSON document into its canonical textual form:
// object keys sorted, two-space indentation. Two semantically equal documents
// canonicalize to identical bytes regardless of key order or whitespace.
func Canonicalize(doc []byte) ([]byte, error) {
	var value any
	if err := json.Unmarshal(doc, &value); err != nil {
		return nil, errors.Wrap(errors.KindContentIntegrity, "parse document", err)
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.KindContentIntegrity, "canonicalize document", err)
	}
	return out, nil
}

// SemanticFingerprint returns the lowercase hex SHA3-256 of the canonical
// form of a JSON document.
func SemanticFingerprint(doc []byte) (string, error) {
	canonical, err := Canonicalize(doc)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyFingerprint checks a document against an expected fingerprint. A
// mismatch is a content-integrity failure: the document decrypted fine but is
// not the one the caller committed to.
func VerifyFingerprint(doc []byte, expected string) error {
	actual, err := SemanticFingerprint(doc)
	if err != nil {
		return err
	}
	if actual != expected {
		return errors.Newf(errors.KindContentIntegrity,
			"semantic hash mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
