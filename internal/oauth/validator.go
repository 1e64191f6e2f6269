package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// credentialValidator fetches client records and validates supplied
// shared-secret credentials against them.
type credentialValidator struct {
	store                   Store
	canSupportPublicClients bool
	logger                  observability.Logger
}

// getClient fetches the client record for the given identifier. An empty
// identifier is a malformed request; a missing record or a store failure is
// an invalid client. Structured errors raised by the store are preserved
// for the reporter.
func (v *credentialValidator) getClient(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client identifier is required", ErrInvalidRequest)
	}

	client, err := v.store.Lookup(ctx, clientID)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) && se.OAuthError != nil {
			return nil, se
		}
		v.logger.Debug("client lookup failed",
			observability.String("client_id", clientID),
			observability.Error(err),
		)
		return nil, fmt.Errorf("client lookup: %w", ErrInvalidClient)
	}
	if client == nil {
		return nil, fmt.Errorf("client lookup: %w", ErrInvalidClient)
	}

	return client, nil
}

// getAndValidate fetches the client and checks the supplied secret. A nil
// secret means the request carried no client_secret at all; an empty
// non-nil secret is a supplied, empty credential.
func (v *credentialValidator) getAndValidate(ctx context.Context, clientID string, clientSecret *string) (*Client, error) {
	client, err := v.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	// A supplied secret can only ever match a shared-secret credential.
	if clientSecret != nil && client.Credential != nil && client.Credential.Type != CredentialTypeSecret {
		return nil, fmt.Errorf("credential type %q is not a shared secret: %w",
			client.Credential.Type, ErrNotAuthorized)
	}

	// Public-client bypass: deployment support enabled, client not
	// confidential, no credential configured, and no secret supplied.
	if v.canSupportPublicClients && !client.Confidential && client.Credential == nil && clientSecret == nil {
		return client, nil
	}

	if clientSecret == nil || client.Credential == nil || client.ID != clientID ||
		subtle.ConstantTimeCompare([]byte(client.Credential.Value), []byte(*clientSecret)) != 1 {
		return nil, fmt.Errorf("client secret validation failed: %w", ErrNotAuthorized)
	}

	return client, nil
}
