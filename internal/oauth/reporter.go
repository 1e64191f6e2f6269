package oauth

import (
	"errors"
	"net/http"

	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// Reporter maps resolution failures to the external error taxonomy. Every
// rejection is terminal: the transport layer must write the reported status
// and body and stop all further processing of the request.
type Reporter struct {
	writeCustomErrors bool
	logger            observability.Logger
}

// ReporterOption is a functional option for the reporter.
type ReporterOption func(*Reporter)

// WithReporterLogger sets the logger for the reporter.
func WithReporterLogger(logger observability.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter creates a new error reporter. When writeCustomErrors is false
// every rejection is minimized to the generic invalid_client or
// invalid_request body regardless of the underlying cause.
func NewReporter(writeCustomErrors bool, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writeCustomErrors: writeCustomErrors,
		logger:            observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report maps a resolution failure to an HTTP status code and an OAuth
// error body.
func (r *Reporter) Report(err error) (int, *Error) {
	if errors.Is(err, ErrInvalidRequest) {
		r.logger.Debug("rejecting malformed token request", observability.Error(err))
		return http.StatusBadRequest, NewError(ErrorCodeInvalidRequest)
	}

	r.logger.Debug("rejecting client authentication", observability.Error(err))

	var se *ServiceError
	if r.writeCustomErrors && errors.As(err, &se) && se.OAuthError != nil {
		return http.StatusUnauthorized, se.OAuthError
	}
	return http.StatusUnauthorized, NewError(ErrorCodeInvalidClient)
}
