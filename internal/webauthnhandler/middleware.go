package webauthnhandler

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/myrjola/lockedin/internal/contexthelpers"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/logging"
)

// AuthenticateMiddleware resolves the signed in user from the session and stores it in the request context.
func (h *WebAuthnHandler) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		webauthnID := h.sessionManager.GetBytes(ctx, string(userIDSessionKey))

		// User has not yet authenticated.
		if webauthnID == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := h.userID(ctx, webauthnID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// The account is gone. Treat the request as anonymous.
			h.sessionManager.Remove(ctx, string(userIDSessionKey))
		case err != nil:
			h.logger.LogAttrs(ctx, slog.LevelError, "unable to fetch user", errors.SlogError(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		default:
			r = contexthelpers.AuthenticateContext(r, userID)
		}

		// Hash the token to avoid leaking it in logs.
		tokenHash := sha256.Sum256([]byte(h.sessionManager.Token(ctx)))
		r = r.WithContext(logging.WithAttrs(r.Context(),
			slog.String("session_hash", hex.EncodeToString(tokenHash[:])),
			slog.Int("user_id", userID),
		))

		next.ServeHTTP(w, r)
	})
}
