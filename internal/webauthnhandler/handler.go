// Package webauthnhandler implements passkey registration and login on top of scs sessions.
package webauthnhandler

import (
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/sqlite"
)

var registerGob sync.Once //nolint:gochecknoglobals // gob registration is process wide.

type WebAuthnHandler struct {
	logger         *slog.Logger
	webAuthn       *webauthn.WebAuthn
	sessionManager *scs.SessionManager
	database       *sqlite.Database
}

func New(
	addr string,
	fqdn string,
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	db *sqlite.Database,
) (*WebAuthnHandler, error) {
	const timeout = 5 * time.Minute

	// See https://github.com/alexedwards/scs?tab=readme-ov-file#working-with-session-data.
	registerGob.Do(func() {
		gob.Register(webauthn.SessionData{}) //nolint:exhaustruct // only need to register the struct.
	})

	rpOrigins := []string{"https://" + fqdn}
	if fqdn == "localhost" {
		//goland:noinspection HttpUrlsUsage // This is a local server.
		rpOrigins = []string{"http://" + addr}
	}

	webauthnConfig := &webauthn.Config{
		RPID:          fqdn,
		RPDisplayName: "LockedIn",
		RPOrigins:     rpOrigins,

		RPTopOrigins:                nil,
		RPTopOriginVerificationMode: protocol.TopOriginIgnoreVerificationMode,

		AttestationPreference: protocol.PreferNoAttestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      new(true),
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationDiscouraged,
		},
		Debug:                false,
		EncodeUserIDAsString: false,
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    timeout,
				TimeoutUVD: timeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    timeout,
				TimeoutUVD: timeout,
			},
		},
		MDS: nil,
	}

	webAuthn, err := webauthn.New(webauthnConfig)
	if err != nil {
		return nil, errors.Wrap(err, "new webauthn")
	}

	return &WebAuthnHandler{
		logger:         logger,
		webAuthn:       webAuthn,
		sessionManager: sessionManager,
		database:       db,
	}, nil
}

// BeginRegistration starts a passkey registration for a new user called displayName and returns the credential
// creation options as JSON. The user is stored only once the registration finishes.
func (h *WebAuthnHandler) BeginRegistration(ctx context.Context, displayName string) ([]byte, error) {
	u, err := newRandomUser(displayName)
	if err != nil {
		return nil, errors.Wrap(err, "new user")
	}

	opts, session, err := h.webAuthn.BeginRegistration(
		u,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      protocol.ResidentKeyNotRequired(),
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationDiscouraged,
		}),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired))
	if err != nil {
		return nil, errors.Wrap(err, "begin registration")
	}

	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)
	h.sessionManager.Put(ctx, string(pendingNameSessionKey), u.displayName)

	out, err := json.Marshal(opts)
	if err != nil {
		return nil, errors.Wrap(err, "encode creation options")
	}
	return out, nil
}

func (h *WebAuthnHandler) parseWebAuthnSession(ctx context.Context) (webauthn.SessionData, error) {
	ses := h.sessionManager.Get(ctx, string(webAuthnSessionKey))
	session, ok := ses.(webauthn.SessionData)
	if !ok {
		return webauthn.SessionData{}, fmt.Errorf("could not parse webauthn.SessionData (data: %v)", ses)
	}
	return session, nil
}

// FinishRegistration verifies the attestation, stores the new user and signs them in.
func (h *WebAuthnHandler) FinishRegistration(r *http.Request) error {
	ctx := r.Context()
	session, err := h.parseWebAuthnSession(ctx)
	if err != nil {
		return errors.Wrap(err, "parse webauthn session")
	}

	displayName := h.sessionManager.PopString(ctx, string(pendingNameSessionKey))
	if displayName == "" {
		displayName = defaultDisplayName
	}
	u := &user{
		id:          0,
		webauthnID:  session.UserID,
		displayName: displayName,
		avatarColor: avatarColor(session.UserID),
		credentials: nil,
	}

	credential, err := h.webAuthn.FinishRegistration(u, session, r)
	if err != nil {
		return errors.Wrap(err, "finish webauthn registration")
	}
	if err = h.createUser(ctx, u, credential); err != nil {
		return errors.Wrap(err, "create user")
	}
	h.logger.LogAttrs(ctx, slog.LevelInfo, "user registered",
		slog.Int("user_id", u.id), slog.String("display_name", u.displayName))

	return h.signIn(ctx, u)
}

func (h *WebAuthnHandler) BeginLogin(ctx context.Context) ([]byte, error) {
	options, session, err := h.webAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, errors.Wrap(err, "begin discoverable webauthn login")
	}

	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)

	out, err := json.Marshal(options)
	if err != nil {
		return nil, errors.Wrap(err, "encode assertion options")
	}
	return out, nil
}

func (h *WebAuthnHandler) FinishLogin(r *http.Request) error {
	ctx := r.Context()
	session, err := h.parseWebAuthnSession(ctx)
	if err != nil {
		return errors.Wrap(err, "parse webauthn session")
	}

	parsedResponse, err := protocol.ParseCredentialRequestResponse(r)
	if err != nil {
		return errors.Wrap(err, "parse credential request response")
	}
	findUser := func(_, userHandle []byte) (webauthn.User, error) {
		return h.getUser(ctx, userHandle)
	}
	validated, credential, err := h.webAuthn.ValidatePasskeyLogin(findUser, session, parsedResponse)
	if err != nil {
		return errors.Wrap(err, "validate passkey login")
	}
	u, ok := validated.(*user)
	if !ok {
		return errors.New("unexpected webauthn user type")
	}

	// The sign count and clone warning change on every login.
	if err = h.database.Transact(ctx, func(tx *sql.Tx) error {
		return upsertCredential(ctx, tx, u.id, credential)
	}); err != nil {
		return errors.Wrap(err, "update credential")
	}

	return h.signIn(ctx, u)
}

func (h *WebAuthnHandler) signIn(ctx context.Context, u *user) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Put(ctx, string(userIDSessionKey), u.webauthnID)
	return nil
}

func (h *WebAuthnHandler) Logout(ctx context.Context) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Remove(ctx, string(userIDSessionKey))
	return nil
}
