// Package tokenstore implements A6: encrypted-at-rest storage for the
// client's access/refresh tokens (spec §5 "Shared resources"). The key
// is derived per device with PBKDF2-HMAC-SHA256(device_id, app_salt,
// 100_000, 32), exactly the parameters spec §5 names, and the tokens
// are sealed with AES-256-GCM. Refresh-token rotation rewrites both
// fields in one statement, matching the spec's stated atomicity rule.
package tokenstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/notesync/core/internal/sqlkit"
)

const (
	pbkdf2Iterations = 100_000
	keyLenBytes      = 32
)

// deriveKey computes the AES-256 key for a device, per spec §5's exact
// PBKDF2 parameters.
func deriveKey(deviceID, appSalt string) []byte {
	return pbkdf2.Key([]byte(deviceID), []byte(appSalt), pbkdf2Iterations, keyLenBytes, sha256.New)
}

// Seal encrypts plaintext with AES-256-GCM under the device-derived key,
// returning a base64-encoded nonce||ciphertext blob suitable for a TEXT
// column.
func Seal(deviceID, appSalt, plaintext string) (string, error) {
	block, err := aes.NewCipher(deriveKey(deviceID, appSalt))
	if err != nil {
		return "", fmt.Errorf("tokenstore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("tokenstore: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("tokenstore: read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal for the same device and salt.
func Open(deviceID, appSalt, blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("tokenstore: decode blob: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(deviceID, appSalt))
	if err != nil {
		return "", fmt.Errorf("tokenstore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("tokenstore: new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("tokenstore: blob shorter than nonce")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("tokenstore: decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Store persists sealed tokens in the client's local user_auth table
// (spec §6.2 client persisted state).
type Store struct {
	db      sqlkit.Querier
	appSalt string
}

func New(db sqlkit.Querier, appSalt string) *Store {
	return &Store{db: db, appSalt: appSalt}
}

// Save rotates both the access and refresh token for a (user, device) in
// one statement, per spec §5's "rewrites both fields in one statement"
// rule. current marks this row as the client's signed-in account
// (user_auth.is_current), clearing the flag on every other row.
func (s *Store) Save(ctx context.Context, deviceID, userID, accessToken, refreshToken string, current bool) error {
	sealedAccess, err := Seal(deviceID, s.appSalt, accessToken)
	if err != nil {
		return err
	}
	sealedRefresh, err := Seal(deviceID, s.appSalt, refreshToken)
	if err != nil {
		return err
	}
	if current {
		if _, err := s.db.ExecContext(ctx, `UPDATE user_auth SET is_current = 0`); err != nil {
			return fmt.Errorf("tokenstore: clear current flag: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_auth (device_id, user_id, access_token, refresh_token, is_current)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			user_id = excluded.user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			is_current = excluded.is_current
	`, deviceID, userID, sealedAccess, sealedRefresh, current)
	return err
}

// Load reads and decrypts the tokens stored for a device.
func (s *Store) Load(ctx context.Context, deviceID string) (accessToken, refreshToken string, err error) {
	var sealedAccess, sealedRefresh string
	row := s.db.QueryRowContext(ctx, `SELECT access_token, refresh_token FROM user_auth WHERE device_id = ?`, deviceID)
	if err := row.Scan(&sealedAccess, &sealedRefresh); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", err
		}
		return "", "", fmt.Errorf("tokenstore: load: %w", err)
	}
	accessToken, err = Open(deviceID, s.appSalt, sealedAccess)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = Open(deviceID, s.appSalt, sealedRefresh)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// CurrentUser returns the (device_id, user_id) of the user_auth row
// marked is_current, the ambient identity a SyncSession captures at
// checkpoint time (spec §9).
func (s *Store) CurrentUser(ctx context.Context) (deviceID, userID string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT device_id, user_id FROM user_auth WHERE is_current = 1 LIMIT 1`)
	if err := row.Scan(&deviceID, &userID); err != nil {
		return "", "", err
	}
	return deviceID, userID, nil
}
