package oauth

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
)

// ClientIDFromCertificates extracts a client identifier from the subject
// distinguished name of the leaf peer certificate. The chain is ordered
// leaf first. An empty string is returned when no certificate is present.
func ClientIDFromCertificates(chain []*x509.Certificate) string {
	if len(chain) == 0 || chain[0] == nil {
		return ""
	}
	return chain[0].Subject.String()
}

// MatchesCertificate compares the leaf peer certificate against a stored
// base64 reference value: the DER encoded certificate for
// CredentialTypeX509Certificate, or the DER encoded SubjectPublicKeyInfo
// for CredentialTypePublicKey. Equality is exact byte equality of the
// encoded forms. Every extraction or decoding failure is a non-match; this
// function never reports why a comparison failed.
func MatchesCertificate(chain []*x509.Certificate, encoded string, credType CredentialType) bool {
	if len(chain) == 0 || chain[0] == nil {
		return false
	}
	leaf := chain[0]

	var peer []byte
	switch credType {
	case CredentialTypeX509Certificate:
		peer = leaf.Raw
	case CredentialTypePublicKey:
		peer = leaf.RawSubjectPublicKeyInfo
	default:
		return false
	}
	if len(peer) == 0 {
		return false
	}

	stored, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return bytes.Equal(peer, stored)
}
