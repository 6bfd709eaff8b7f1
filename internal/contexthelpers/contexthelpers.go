// Package contexthelpers stores request scoped values such as the authenticated user in the request context.
package contexthelpers

import (
	"context"
	"net/http"
)

type contextKey string

const (
	isAuthenticatedContextKey     = contextKey("isAuthenticated")
	authenticatedUserIDContextKey = contextKey("authenticatedUserID")
	currentPathContextKey         = contextKey("currentPath")
	cspNonceContextKey            = contextKey("cspNonce")
)

// AuthenticateContext marks the request as made by userID.
func AuthenticateContext(r *http.Request, userID int) *http.Request {
	return r.WithContext(WithAuthenticatedUser(r.Context(), userID))
}

// WithAuthenticatedUser returns a context authenticated as userID. Services read the caller from it.
func WithAuthenticatedUser(ctx context.Context, userID int) context.Context {
	ctx = context.WithValue(ctx, isAuthenticatedContextKey, true)
	return context.WithValue(ctx, authenticatedUserIDContextKey, userID)
}

func IsAuthenticated(ctx context.Context) bool {
	isAuthenticated, ok := ctx.Value(isAuthenticatedContextKey).(bool)
	return ok && isAuthenticated
}

// AuthenticatedUserID returns the caller's user id or 0 for anonymous requests.
func AuthenticatedUserID(ctx context.Context) int {
	userID, ok := ctx.Value(authenticatedUserIDContextKey).(int)
	if !ok {
		return 0
	}
	return userID
}

func SetCurrentPath(r *http.Request, currentPath string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentPathContextKey, currentPath))
}

func CurrentPath(ctx context.Context) string {
	currentPath, _ := ctx.Value(currentPathContextKey).(string)
	return currentPath
}

func SetCSPNonce(r *http.Request, cspNonce string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), cspNonceContextKey, cspNonce))
}

func CSPNonce(ctx context.Context) string {
	cspNonce, _ := ctx.Value(cspNonceContextKey).(string)
	return cspNonce
}
