// Package token issues access tokens for authenticated clients. Grant-type
// handling, scopes and refresh tokens are out of scope; the issuer only
// turns an already-authenticated client into a bearer token.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/avoauthd/internal/oauth"
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

// Token is the response body for a successful token request.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Issuer issues an access token for an authenticated client.
type Issuer interface {
	Issue(ctx context.Context, client *oauth.Client) (*Token, error)
}

// Config configures the JWT issuer.
type Config struct {
	// Issuer is the iss claim value.
	Issuer string

	// Audience is the aud claim value, omitted when empty.
	Audience string

	// TTL is the token lifetime.
	TTL time.Duration

	// Algorithm selects the signing algorithm, AlgorithmHS256 when empty.
	Algorithm string

	// SigningKey is the HMAC secret for HS256, or a PEM-encoded RSA
	// private key for RS256.
	SigningKey []byte
}

// jwtIssuer issues signed JWT access tokens.
type jwtIssuer struct {
	config *Config
	method jwt.SigningMethod
	key    any
	now    func() time.Time
}

// IssuerOption is a functional option for the issuer.
type IssuerOption func(*jwtIssuer)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *jwtIssuer) {
		i.now = now
	}
}

// NewJWTIssuer creates a JWT access token issuer.
func NewJWTIssuer(config *Config, opts ...IssuerOption) (Issuer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.SigningKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	if config.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	i := &jwtIssuer{
		config: config,
		now:    time.Now,
	}

	switch config.Algorithm {
	case "", AlgorithmHS256:
		i.method = jwt.SigningMethodHS256
		i.key = config.SigningKey
	case AlgorithmRS256:
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(config.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA signing key: %w", err)
		}
		i.method = jwt.SigningMethodRS256
		i.key = privateKey
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", config.Algorithm)
	}

	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs an access token for the given client.
func (i *jwtIssuer) Issue(_ context.Context, client *oauth.Client) (*Token, error) {
	now := i.now()
	expiresAt := now.Add(i.config.TTL)

	claims := jwt.MapClaims{
		"iss":       i.config.Issuer,
		"sub":       client.ID,
		"client_id": client.ID,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
		"jti":       uuid.NewString(),
	}
	if i.config.Audience != "" {
		claims["aud"] = i.config.Audience
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.config.TTL.Seconds()),
	}, nil
}

// Ensure jwtIssuer implements Issuer.
var _ Issuer = (*jwtIssuer)(nil)
