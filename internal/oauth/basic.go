package oauth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeBasicAuth decodes the parameter of a Basic authorization header
// into a client identifier and secret. A header that cannot be decoded or
// carries no separator is a terminal rejection, not a fallthrough.
func decodeBasicAuth(param string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(param)
	if err != nil {
		return "", "", fmt.Errorf("malformed basic authorization header: %w", ErrInvalidClient)
	}

	clientID, clientSecret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", fmt.Errorf("malformed basic authorization header: %w", ErrInvalidClient)
	}
	return clientID, clientSecret, nil
}
