package oauth

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// SchemeBasic is the authentication-scheme label for Basic authentication
// layered on top of a TLS connection.
const SchemeBasic = "Basic"

// Resolution path labels, also used as metric label values.
const (
	pathForm      = "form"
	pathPrincipal = "principal"
	pathMTLS      = "mtls"
	pathBasic     = "basic"
	pathNone      = "none"
)

// Attempt is the union of authentication inputs carried by one token
// request. Only the fields actually present on the request are populated;
// the resolver never assumes more than one source is trustworthy at once.
type Attempt struct {
	// FormClientID is the client_id form parameter, nil when absent.
	FormClientID *string

	// FormClientSecret is the client_secret form parameter, nil when
	// absent.
	FormClientSecret *string

	// Principal is the name of a principal authenticated by a lower layer,
	// nil when no such authentication happened. A present-but-empty name
	// means container-level authentication without an identity mapping.
	Principal *string

	// MappedClientID is a client identifier stashed on the request by an
	// upstream filter, typically during 2-way TLS mapping.
	MappedClientID string

	// TLS reports whether the request arrived over a TLS connection with
	// transport-level session information available.
	TLS bool

	// PeerCertificates is the verified peer certificate chain, leaf first.
	PeerCertificates []*x509.Certificate

	// AuthScheme distinguishes pure mutual TLS (empty) from an
	// authentication scheme layered on top of TLS, such as SchemeBasic.
	AuthScheme string

	// Authorization is the raw Authorization header value, empty when the
	// header is absent.
	Authorization string
}

// ClientIDProvider derives a client identifier from a custom
// pre-authentication scheme. It is consulted only when a pre-authenticated
// principal carries no name and no mapped identifier is present on the
// request.
type ClientIDProvider interface {
	// ClientID returns the derived identifier, or empty when none can be
	// derived.
	ClientID(ctx context.Context, attempt *Attempt) string
}

// Config holds the deployment-level resolver configuration, fixed at
// startup.
type Config struct {
	// CanSupportPublicClients allows credential-less public clients to
	// authenticate with nothing but their identifier.
	CanSupportPublicClients bool
}

// Resolver authenticates the client behind a token request.
type Resolver interface {
	// Resolve determines which registered client is making the request
	// and whether the claimed identity is credible. Any returned error is
	// terminal for the request.
	Resolve(ctx context.Context, attempt *Attempt) (*Client, error)
}

// resolver implements the Resolver interface.
type resolver struct {
	config     *Config
	store      Store
	validator  *credentialValidator
	idProvider ClientIDProvider
	logger     observability.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*resolver)

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics sets the metrics for the resolver.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *resolver) {
		r.metrics = metrics
	}
}

// WithClientIDProvider sets the pluggable client identifier provider.
func WithClientIDProvider(provider ClientIDProvider) ResolverOption {
	return func(r *resolver) {
		r.idProvider = provider
	}
}

// NewResolver creates a new client resolver.
func NewResolver(config *Config, store Store, opts ...ResolverOption) (Resolver, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	r := &resolver{
		config: config,
		store:  store,
		logger: observability.NopLogger(),
		tracer: otel.Tracer("oauth.resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = NewMetrics("avoauthd")
	}

	r.validator = &credentialValidator{
		store:                   store,
		canSupportPublicClients: config.CanSupportPublicClients,
		logger:                  r.logger,
	}

	return r, nil
}

// Resolve determines which registered client is making the request.
func (r *resolver) Resolve(ctx context.Context, attempt *Attempt) (*Client, error) {
	ctx, span := r.tracer.Start(ctx, "oauth.Resolve")
	defer span.End()

	start := time.Now()
	client, path, err := r.resolve(ctx, attempt)
	span.SetAttributes(attribute.String("oauth.auth_path", path))

	if err != nil {
		r.metrics.RecordResolution(path, "failure", time.Since(start))
		span.SetStatus(codes.Error, "client authentication failed")
		return nil, err
	}
	if client == nil {
		// No path produced a client; fail closed.
		r.metrics.RecordResolution(path, "failure", time.Since(start))
		span.SetStatus(codes.Error, "no client resolved")
		return nil, fmt.Errorf("no authentication source produced a client: %w", ErrInvalidClient)
	}

	r.metrics.RecordResolution(path, "success", time.Since(start))
	span.SetAttributes(attribute.String("oauth.client_id", client.ID))
	r.logger.Debug("client authenticated",
		observability.String("client_id", client.ID),
		observability.String("auth_path", path),
	)
	return client, nil
}

// resolve walks the precedence chain. It returns the resolved client, the
// label of the path that decided the outcome, and a terminal error when a
// credential-bearing path was entered and failed.
func (r *resolver) resolve(ctx context.Context, a *Attempt) (*Client, string, error) {
	// Explicit body credentials always take priority, even over an
	// authentication already performed by a lower layer.
	if a.FormClientID != nil {
		client, err := r.validator.getAndValidate(ctx, *a.FormClientID, a.FormClientSecret)
		return client, pathForm, err
	}

	var client *Client
	if a.Principal != nil {
		var err error
		client, err = r.resolvePrincipal(ctx, a)
		if err != nil {
			return nil, pathPrincipal, err
		}
	}

	if client != nil {
		return client, pathPrincipal, nil
	}

	if a.TLS {
		return r.resolveTLS(ctx, a)
	}
	client, err := r.resolveBasic(ctx, a)
	return client, pathBasic, err
}

// resolvePrincipal handles a principal authenticated by a lower layer. A
// named principal is trusted as the client identifier outright. An unnamed
// one is mapped through the request attribute set by an upstream filter,
// then through the pluggable provider. A nil client without error means no
// identifier could be derived and weaker paths may still run.
func (r *resolver) resolvePrincipal(ctx context.Context, a *Attempt) (*Client, error) {
	if *a.Principal != "" {
		return r.validator.getClient(ctx, *a.Principal)
	}

	clientID := a.MappedClientID
	if clientID == "" && r.idProvider != nil {
		clientID = r.idProvider.ClientID(ctx, a)
	}
	if clientID == "" {
		return nil, nil
	}
	return r.validator.getClient(ctx, clientID)
}

// resolveTLS handles a request that arrived over a TLS connection. Pure
// 2-way TLS identifies the client from the leaf certificate subject and
// requires credential binding; Basic layered on TLS falls through to the
// Basic path on the same connection.
func (r *resolver) resolveTLS(ctx context.Context, a *Attempt) (*Client, string, error) {
	if a.AuthScheme == "" {
		clientID := ClientIDFromCertificates(a.PeerCertificates)
		if clientID == "" {
			return nil, pathMTLS, nil
		}
		client, err := r.validator.getClient(ctx, clientID)
		if err != nil {
			return nil, pathMTLS, err
		}
		if err := r.validateCertificateBinding(a.PeerCertificates, client); err != nil {
			return nil, pathMTLS, err
		}
		return client, pathMTLS, nil
	}

	if strings.EqualFold(a.AuthScheme, SchemeBasic) {
		client, err := r.resolveBasic(ctx, a)
		return client, pathBasic, err
	}

	return nil, pathMTLS, nil
}

// validateCertificateBinding checks that a client identified from TLS
// certificates is bound to them. The stored credential must be a
// certificate or public key, and when a reference value is present it must
// byte-match the live peer certificate. A mismatch is fatal, never silently
// ignored.
func (r *resolver) validateCertificateBinding(chain []*x509.Certificate, client *Client) error {
	cred := client.Credential
	if cred == nil || (cred.Type != CredentialTypeX509Certificate && cred.Type != CredentialTypePublicKey) {
		return fmt.Errorf("client %s has no certificate credential binding: %w", client.ID, ErrInvalidClient)
	}
	if cred.Value != "" && !MatchesCertificate(chain, cred.Value, cred.Type) {
		return fmt.Errorf("peer certificate does not match the stored credential: %w", ErrInvalidClient)
	}
	return nil
}

// resolveBasic parses a Basic authorization header and validates the pair
// like body credentials. An absent header or a different scheme yields no
// client; a present but malformed Basic header is a terminal rejection.
func (r *resolver) resolveBasic(ctx context.Context, a *Attempt) (*Client, error) {
	if a.Authorization == "" {
		return nil, nil
	}

	scheme, param, found := strings.Cut(a.Authorization, " ")
	if !found || !strings.EqualFold(scheme, SchemeBasic) {
		return nil, nil
	}

	clientID, clientSecret, err := decodeBasicAuth(strings.TrimSpace(param))
	if err != nil {
		return nil, err
	}
	return r.validator.getAndValidate(ctx, clientID, &clientSecret)
}

// Ensure resolver implements Resolver.
var _ Resolver = (*resolver)(nil)
