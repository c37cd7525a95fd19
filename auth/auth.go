// Package auth resolves the authenticated subject for an HTTP request. The
// OAuth/JWT handshake itself belongs to an external identity provider; this
// package defines only the interface the HTTP surface and the render
// manager depend on, plus a development stub for local runs without a real
// identity provider.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no resolvable
// subject; the HTTP layer maps this to 401.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Resolver extracts the authenticated user ID from an inbound request. A
// real implementation verifies a JWT's signature and expiry and returns its
// subject claim; that handshake lives with the identity provider, not here.
type Resolver interface {
	Resolve(r *http.Request) (userID string, err error)
}

// Bearer is a development Resolver: it trusts the bearer token verbatim as
// the user ID, with no signature verification. It exists so the control
// plane (manager, storage, HTTP handlers) can be exercised end to end
// without standing up a real OAuth provider; production deployments must
// supply a Resolver backed by real JWT verification.
type Bearer struct{}

var _ Resolver = Bearer{}

func (Bearer) Resolve(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}
