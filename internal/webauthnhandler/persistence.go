package webauthnhandler

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/lockedin/internal/errors"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// createUser stores a user together with its first credential so that abandoned registrations leave nothing behind.
func (h *WebAuthnHandler) createUser(ctx context.Context, u *user, credential *webauthn.Credential) error {
	return h.database.Transact(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (webauthn_user_id, display_name, avatar_color)
			VALUES (?, ?, ?)
			RETURNING id`, u.webauthnID, u.displayName, u.avatarColor).Scan(&u.id)
		if err != nil {
			return errors.Wrap(err, "insert user", slog.String("display_name", u.displayName))
		}
		return upsertCredential(ctx, tx, u.id, credential)
	})
}

// getUser returns the user with the WebAuthn handle webauthnID and its credentials.
func (h *WebAuthnHandler) getUser(ctx context.Context, webauthnID []byte) (_ *user, err error) {
	u := user{webauthnID: webauthnID} //nolint:exhaustruct // Scanned below.
	err = h.database.ReadOnly.QueryRowContext(ctx, `
		SELECT id, display_name, avatar_color FROM users WHERE webauthn_user_id = ?`, webauthnID).
		Scan(&u.id, &u.displayName, &u.avatarColor)
	if err != nil {
		return nil, errors.Wrap(err, "read user", slog.String("webauthn_id", hex.EncodeToString(webauthnID)))
	}

	rows, err := h.database.ReadOnly.QueryContext(ctx, `
		SELECT id,
		       public_key,
		       attestation_type,
		       transport,
		       flag_user_present,
		       flag_user_verified,
		       flag_backup_eligible,
		       flag_backup_state,
		       authenticator_aaguid,
		       authenticator_sign_count,
		       authenticator_clone_warning,
		       authenticator_attachment
		FROM credentials
		WHERE user_id = ?`, u.id)
	if err != nil {
		return nil, errors.Wrap(err, "query credentials")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	for rows.Next() {
		var (
			credential webauthn.Credential
			transport  []byte
		)
		if err = rows.Scan(
			&credential.ID,
			&credential.PublicKey,
			&credential.AttestationType,
			&transport,
			&credential.Flags.UserPresent,
			&credential.Flags.UserVerified,
			&credential.Flags.BackupEligible,
			&credential.Flags.BackupState,
			&credential.Authenticator.AAGUID,
			&credential.Authenticator.SignCount,
			&credential.Authenticator.CloneWarning,
			&credential.Authenticator.Attachment,
		); err != nil {
			return nil, errors.Wrap(err, "scan credential")
		}
		if err = json.Unmarshal(transport, &credential.Transport); err != nil {
			return nil, errors.Wrap(err, "decode transport")
		}
		u.credentials = append(u.credentials, credential)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate credentials")
	}
	return &u, nil
}

// userID returns the integer id of the user with the WebAuthn handle webauthnID or sql.ErrNoRows.
func (h *WebAuthnHandler) userID(ctx context.Context, webauthnID []byte) (int, error) {
	var id int
	err := h.database.ReadOnly.QueryRowContext(ctx, `SELECT id FROM users WHERE webauthn_user_id = ?`, webauthnID).
		Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "query user id")
	}
	return id, nil
}

func upsertCredential(ctx context.Context, q execer, userID int, credential *webauthn.Credential) error {
	encodedTransport, err := json.Marshal(credential.Transport)
	if err != nil {
		return errors.Wrap(err, "encode transport")
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO credentials (id,
		                         user_id,
		                         public_key,
		                         attestation_type,
		                         transport,
		                         flag_user_present,
		                         flag_user_verified,
		                         flag_backup_eligible,
		                         flag_backup_state,
		                         authenticator_aaguid,
		                         authenticator_sign_count,
		                         authenticator_clone_warning,
		                         authenticator_attachment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET flag_user_present           = excluded.flag_user_present,
		                               flag_user_verified          = excluded.flag_user_verified,
		                               flag_backup_eligible        = excluded.flag_backup_eligible,
		                               flag_backup_state           = excluded.flag_backup_state,
		                               authenticator_sign_count    = excluded.authenticator_sign_count,
		                               authenticator_clone_warning = excluded.authenticator_clone_warning`,
		credential.ID,
		userID,
		credential.PublicKey,
		credential.AttestationType,
		string(encodedTransport),
		credential.Flags.UserPresent,
		credential.Flags.UserVerified,
		credential.Flags.BackupEligible,
		credential.Flags.BackupState,
		credential.Authenticator.AAGUID,
		credential.Authenticator.SignCount,
		credential.Authenticator.CloneWarning,
		string(credential.Authenticator.Attachment),
	)
	if err != nil {
		return errors.Wrap(err, "upsert credential",
			slog.Int("user_id", userID), slog.String("credential_id", hex.EncodeToString(credential.ID)))
	}
	return nil
}
