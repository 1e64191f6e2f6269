package oauth

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func basicHeader(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

// newTestResolver builds a resolver over a memory store seeded with the
// given clients.
func newTestResolver(t *testing.T, cfg *Config, clients []*Client, opts ...ResolverOption) Resolver {
	t.Helper()

	store := NewMemoryStore()
	store.Replace(clients)

	resolver, err := NewResolver(cfg, store, opts...)
	require.NoError(t, err)
	return resolver
}

func TestNewResolver(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		_, err := NewResolver(nil, NewMemoryStore())
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := NewResolver(&Config{}, nil)
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		resolver, err := NewResolver(&Config{}, NewMemoryStore())
		require.NoError(t, err)
		assert.NotNil(t, resolver)
	})
}

func TestResolveFormCredentials(t *testing.T) {
	t.Parallel()

	confidential := &Client{
		ID:           "c1",
		Confidential: true,
		Credential:   &Credential{Type: CredentialTypeSecret, Value: "s3cr3t"},
	}

	tests := []struct {
		name    string
		attempt *Attempt
		wantErr error
	}{
		{
			name: "correct secret authenticates",
			attempt: &Attempt{
				FormClientID:     strPtr("c1"),
				FormClientSecret: strPtr("s3cr3t"),
			},
		},
		{
			name: "wrong secret is rejected",
			attempt: &Attempt{
				FormClientID:     strPtr("c1"),
				FormClientSecret: strPtr("wrong"),
			},
			wantErr: ErrNotAuthorized,
		},
		{
			name: "missing secret for confidential client is rejected",
			attempt: &Attempt{
				FormClientID: strPtr("c1"),
			},
			wantErr: ErrNotAuthorized,
		},
		{
			name: "empty client id is a malformed request",
			attempt: &Attempt{
				FormClientID: strPtr(""),
			},
			wantErr: ErrInvalidRequest,
		},
		{
			name: "unknown client is rejected",
			attempt: &Attempt{
				FormClientID:     strPtr("ghost"),
				FormClientSecret: strPtr("s3cr3t"),
			},
			wantErr: ErrInvalidClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := newTestResolver(t, &Config{}, []*Client{confidential})
			client, err := resolver.Resolve(context.Background(), tt.attempt)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", client.ID)
		})
	}
}

func TestResolvePublicClient(t *testing.T) {
	t.Parallel()

	public := &Client{ID: "c2", Confidential: false}

	t.Run("rejected when public client support is disabled", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{CanSupportPublicClients: false}, []*Client{public})
		_, err := resolver.Resolve(context.Background(), &Attempt{FormClientID: strPtr("c2")})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("authenticated when public client support is enabled", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{CanSupportPublicClients: true}, []*Client{public})
		client, err := resolver.Resolve(context.Background(), &Attempt{FormClientID: strPtr("c2")})
		require.NoError(t, err)
		assert.Equal(t, "c2", client.ID)
	})

	t.Run("confidential client never passes without a secret", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{CanSupportPublicClients: true}, []*Client{
			{ID: "c2", Confidential: true},
		})
		_, err := resolver.Resolve(context.Background(), &Attempt{FormClientID: strPtr("c2")})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	clients := []*Client{
		{ID: "body-client", Credential: &Credential{Type: CredentialTypeSecret, Value: "body-secret"}},
		{ID: "principal-client"},
	}

	t.Run("body credentials win over a pre-authenticated principal", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		client, err := resolver.Resolve(context.Background(), &Attempt{
			FormClientID:     strPtr("body-client"),
			FormClientSecret: strPtr("body-secret"),
			Principal:        strPtr("principal-client"),
		})
		require.NoError(t, err)
		assert.Equal(t, "body-client", client.ID)
	})

	t.Run("body failure is terminal despite a valid principal", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		_, err := resolver.Resolve(context.Background(), &Attempt{
			FormClientID:     strPtr("body-client"),
			FormClientSecret: strPtr("wrong"),
			Principal:        strPtr("principal-client"),
		})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}

// staticIDProvider resolves every attempt to a fixed client identifier.
type staticIDProvider struct {
	clientID string
}

func (p *staticIDProvider) ClientID(context.Context, *Attempt) string {
	return p.clientID
}

func TestResolvePrincipal(t *testing.T) {
	t.Parallel()

	clients := []*Client{{ID: "p-client"}, {ID: "mapped-client"}, {ID: "provided-client"}}

	t.Run("named principal is trusted as the client id", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		client, err := resolver.Resolve(context.Background(), &Attempt{Principal: strPtr("p-client")})
		require.NoError(t, err)
		assert.Equal(t, "p-client", client.ID)
	})

	t.Run("unknown named principal is rejected", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		_, err := resolver.Resolve(context.Background(), &Attempt{Principal: strPtr("ghost")})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unnamed principal uses the mapped client id", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		client, err := resolver.Resolve(context.Background(), &Attempt{
			Principal:      strPtr(""),
			MappedClientID: "mapped-client",
		})
		require.NoError(t, err)
		assert.Equal(t, "mapped-client", client.ID)
	})

	t.Run("unnamed principal falls back to the id provider", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients,
			WithClientIDProvider(&staticIDProvider{clientID: "provided-client"}))
		client, err := resolver.Resolve(context.Background(), &Attempt{Principal: strPtr("")})
		require.NoError(t, err)
		assert.Equal(t, "provided-client", client.ID)
	})

	t.Run("unnamed principal without any mapping fails closed", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, clients)
		_, err := resolver.Resolve(context.Background(), &Attempt{Principal: strPtr("")})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestResolveMutualTLS(t *testing.T) {
	t.Parallel()

	cert := generateTestCert(t, "tls-client")
	chain := []*x509.Certificate{cert}
	clientID := cert.Subject.String()

	t.Run("bound certificate authenticates", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         clientID,
			Credential: &Credential{Type: CredentialTypeX509Certificate, Value: encodeCert(cert)},
		}})
		client, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		require.NoError(t, err)
		assert.Equal(t, clientID, client.ID)
	})

	t.Run("bound public key authenticates", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         clientID,
			Credential: &Credential{Type: CredentialTypePublicKey, Value: encodePublicKey(cert)},
		}})
		client, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		require.NoError(t, err)
		assert.Equal(t, clientID, client.ID)
	})

	t.Run("certificate mismatch is fatal", func(t *testing.T) {
		t.Parallel()

		other := generateTestCert(t, "other-tls-client")
		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         clientID,
			Credential: &Credential{Type: CredentialTypeX509Certificate, Value: encodeCert(other)},
		}})
		_, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("credential type without certificate binding is fatal", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         clientID,
			Credential: &Credential{Type: CredentialTypeSecret, Value: "s3cr3t"},
		}})
		_, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("missing credential is fatal", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, []*Client{{ID: clientID}})
		_, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("empty stored value skips comparison", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         clientID,
			Credential: &Credential{Type: CredentialTypeX509Certificate},
		}})
		client, err := resolver.Resolve(context.Background(), &Attempt{TLS: true, PeerCertificates: chain})
		require.NoError(t, err)
		assert.Equal(t, clientID, client.ID)
	})

	t.Run("TLS without peer certificates fails closed", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, nil)
		_, err := resolver.Resolve(context.Background(), &Attempt{TLS: true})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("basic over TLS skips subject DN extraction", func(t *testing.T) {
		t.Parallel()

		// Only the Basic pair is registered; resolving via the
		// certificate subject would be rejected.
		resolver := newTestResolver(t, &Config{}, []*Client{{
			ID:         "basic-client",
			Credential: &Credential{Type: CredentialTypeSecret, Value: "basic-secret"},
		}})
		client, err := resolver.Resolve(context.Background(), &Attempt{
			TLS:              true,
			PeerCertificates: chain,
			AuthScheme:       SchemeBasic,
			Authorization:    basicHeader("basic-client", "basic-secret"),
		})
		require.NoError(t, err)
		assert.Equal(t, "basic-client", client.ID)
	})

	t.Run("unknown scheme over TLS fails closed", func(t *testing.T) {
		t.Parallel()

		resolver := newTestResolver(t, &Config{}, nil)
		_, err := resolver.Resolve(context.Background(), &Attempt{
			TLS:              true,
			PeerCertificates: chain,
			AuthScheme:       "Digest",
		})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestResolveBasicAuth(t *testing.T) {
	t.Parallel()

	clients := []*Client{{
		ID:         "c1",
		Credential: &Credential{Type: CredentialTypeSecret, Value: "s3cr3t"},
	}}

	tests := []struct {
		name          string
		authorization string
		wantErr       error
	}{
		{
			name:          "valid pair authenticates",
			authorization: basicHeader("c1", "s3cr3t"),
		},
		{
			name:          "wrong secret is rejected",
			authorization: basicHeader("c1", "wrong"),
			wantErr:       ErrNotAuthorized,
		},
		{
			name:          "invalid base64 is rejected",
			authorization: "Basic %%%not-base64%%%",
			wantErr:       ErrInvalidClient,
		},
		{
			name:          "missing separator is rejected",
			authorization: "Basic " + base64.StdEncoding.EncodeToString([]byte("no-separator")),
			wantErr:       ErrInvalidClient,
		},
		{
			name:          "different scheme resolves nothing",
			authorization: "Bearer some-token",
			wantErr:       ErrInvalidClient,
		},
		{
			name:    "missing header resolves nothing",
			wantErr: ErrInvalidClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := newTestResolver(t, &Config{}, clients)
			client, err := resolver.Resolve(context.Background(), &Attempt{Authorization: tt.authorization})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", client.ID)
		})
	}
}

// failingStore returns a fixed error from every lookup.
type failingStore struct {
	err error
}

func (s *failingStore) Lookup(context.Context, string) (*Client, error) {
	return nil, s.err
}

func TestResolveStoreFailures(t *testing.T) {
	t.Parallel()

	t.Run("structured store error is preserved", func(t *testing.T) {
		t.Parallel()

		storeErr := &ServiceError{
			OAuthError: &Error{Code: ErrorCodeInvalidClient, Description: "registry unavailable"},
			Cause:      errors.New("backend down"),
		}
		resolver, err := NewResolver(&Config{}, &failingStore{err: storeErr})
		require.NoError(t, err)

		_, err = resolver.Resolve(context.Background(), &Attempt{FormClientID: strPtr("c1")})
		require.Error(t, err)

		var se *ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "registry unavailable", se.OAuthError.Description)
	})

	t.Run("plain store error is minimized to invalid client", func(t *testing.T) {
		t.Parallel()

		resolver, err := NewResolver(&Config{}, &failingStore{err: errors.New("backend down")})
		require.NoError(t, err)

		_, err = resolver.Resolve(context.Background(), &Attempt{FormClientID: strPtr("c1")})
		assert.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestResolveNoSource(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &Config{}, []*Client{{ID: "c1"}})
	_, err := resolver.Resolve(context.Background(), &Attempt{})
	assert.ErrorIs(t, err, ErrInvalidClient)
}
