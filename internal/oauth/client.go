package oauth

// CredentialType identifies the kind of credential bound to a client.
type CredentialType string

// Supported credential types.
const (
	// CredentialTypeSecret is a shared secret validated against
	// client_secret from the form body or a Basic authorization header.
	CredentialTypeSecret CredentialType = "shared_secret"

	// CredentialTypeX509Certificate is the base64 encoding of the DER form
	// of the client certificate presented during the TLS handshake.
	CredentialTypeX509Certificate CredentialType = "x509_certificate"

	// CredentialTypePublicKey is the base64 encoding of the DER form of the
	// client certificate's SubjectPublicKeyInfo.
	CredentialTypePublicKey CredentialType = "public_key"
)

// Credential is a credential bound to a registered client.
type Credential struct {
	// Type identifies how Value is interpreted and validated.
	Type CredentialType `json:"type" yaml:"type"`

	// Value is the shared secret, or the base64 encoded certificate or
	// public key reference.
	Value string `json:"value" yaml:"value"`
}

// Client is a registered OAuth2 client. Records are owned by the backing
// store; this package only reads them.
type Client struct {
	// ID is the unique client identifier.
	ID string `json:"id" yaml:"id"`

	// Confidential marks a client that must authenticate with a credential
	// on every request.
	Confidential bool `json:"confidential" yaml:"confidential"`

	// Credential is the credential bound to the client, nil when none is
	// configured.
	Credential *Credential `json:"credential,omitempty" yaml:"credential,omitempty"`
}
