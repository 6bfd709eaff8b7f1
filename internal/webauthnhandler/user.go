package webauthnhandler

import (
	"crypto/rand"
	"strings"
	"unicode/utf8"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/lockedin/internal/errors"
)

type sessionKey string

const (
	webAuthnSessionKey    sessionKey = "webauthn_session"
	userIDSessionKey      sessionKey = "webauthn_user_id"
	pendingNameSessionKey sessionKey = "pending_display_name"
)

const (
	defaultDisplayName = "Partner"
	maxDisplayName     = 50
	webauthnIDLength   = 64
)

//nolint:gochecknoglobals // constant table.
var avatarColors = []string{"#3b82f6", "#ef4444", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899"}

var ErrInvalidDisplayName = errors.NewSentinel("display name is too long")

// user implements webauthn.User for an account row.
type user struct {
	id          int
	webauthnID  []byte
	displayName string
	avatarColor string
	credentials []webauthn.Credential
}

func (u *user) WebAuthnID() []byte {
	return u.webauthnID
}

func (u *user) WebAuthnName() string {
	return u.displayName
}

func (u *user) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// newRandomUser creates a not yet persisted user with a random WebAuthn handle.
func newRandomUser(displayName string) (*user, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultDisplayName
	}
	if utf8.RuneCountInString(displayName) > maxDisplayName {
		return nil, ErrInvalidDisplayName
	}
	id := make([]byte, webauthnIDLength)
	if _, err := rand.Read(id); err != nil {
		return nil, errors.Wrap(err, "generate webauthn id")
	}
	return &user{
		id:          0,
		webauthnID:  id,
		displayName: displayName,
		avatarColor: avatarColor(id),
		credentials: nil,
	}, nil
}

func avatarColor(webauthnID []byte) string {
	if len(webauthnID) == 0 {
		return avatarColors[0]
	}
	return avatarColors[int(webauthnID[0])%len(avatarColors)]
}
