// Package oauth implements OAuth2 client authentication for the token
// endpoint.
//
// The entry point is the Resolver, which decides which registered client is
// making a request and whether the claimed identity is credible. Four
// mutually exclusive authentication paths are evaluated in strict precedence
// order: client_id/client_secret in the form body, a pre-authenticated
// principal, mutual-TLS certificate binding, and HTTP Basic authentication.
// Once a credential-bearing path has been entered, a failure inside it is
// terminal for the request; only the absence of a credential source causes
// fallthrough to the next path.
package oauth
