package oauth

import (
	"context"
	"errors"
	"fmt"
	"path"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// Vault KV v2 field names for client records.
const (
	vaultFieldConfidential    = "confidential"
	vaultFieldCredentialType  = "credential_type"
	vaultFieldCredentialValue = "credential_value"
)

// VaultStore reads client records from a Vault KV v2 secrets engine. Each
// client is one secret at <basePath>/<clientID> with confidential,
// credential_type and credential_value fields.
type VaultStore struct {
	client   *vaultapi.Client
	mount    string
	basePath string
	logger   observability.Logger
}

// VaultStoreOption is a functional option for the Vault store.
type VaultStoreOption func(*VaultStore)

// WithVaultStoreLogger sets the logger for the store.
func WithVaultStoreLogger(logger observability.Logger) VaultStoreOption {
	return func(s *VaultStore) {
		s.logger = logger
	}
}

// NewVaultStore creates a Vault-backed client store.
func NewVaultStore(client *vaultapi.Client, mount, basePath string, opts ...VaultStoreOption) (*VaultStore, error) {
	if client == nil {
		return nil, errors.New("vault client is required")
	}
	if mount == "" {
		mount = "secret"
	}

	s := &VaultStore{
		client:   client,
		mount:    mount,
		basePath: basePath,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Lookup returns the client record for the given identifier.
func (s *VaultStore) Lookup(ctx context.Context, clientID string) (*Client, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, path.Join(s.basePath, clientID))
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, ErrClientNotFound
		}
		s.logger.Error("client lookup against vault failed",
			observability.String("client_id", clientID),
			observability.Error(err),
		)
		return nil, fmt.Errorf("vault client lookup: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrClientNotFound
	}

	client := &Client{ID: clientID}
	if confidential, ok := secret.Data[vaultFieldConfidential].(bool); ok {
		client.Confidential = confidential
	}

	credType, _ := secret.Data[vaultFieldCredentialType].(string)
	credValue, _ := secret.Data[vaultFieldCredentialValue].(string)
	if credType != "" {
		client.Credential = &Credential{
			Type:  CredentialType(credType),
			Value: credValue,
		}
	}

	return client, nil
}

// Ensure VaultStore implements Store.
var _ Store = (*VaultStore)(nil)
