package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// Only the SHA-256 of a refresh token is stored.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

const refreshTokenColumns = "id, user_id, expires_at, revoked, ttl_days"

// storedRefreshToken is one refresh_tokens row. go-sqlite3 hands back
// DATETIME and BOOLEAN columns in several shapes depending on how the value
// was written, so both are normalized on scan.
type storedRefreshToken struct {
	ID      int
	UserID  int
	TTLDays int
	Revoked bool
	// ExpiresAt is zero when the stored value could not be read.
	ExpiresAt time.Time
}

func scanRefreshToken(row rowScanner) (storedRefreshToken, error) {
	var t storedRefreshToken
	var expiresAt, revoked any
	if err := row.Scan(&t.ID, &t.UserID, &expiresAt, &revoked, &t.TTLDays); err != nil {
		return t, err
	}
	// An unreadable flag counts as revoked.
	r, ok := sqliteBool(revoked)
	t.Revoked = r || !ok
	t.ExpiresAt, _ = sqliteTime(expiresAt)
	return t, nil
}

// usableAt returns nil if the token may still be exchanged at now.
func (t storedRefreshToken) usableAt(now time.Time) error {
	if t.Revoked {
		return ErrRefreshTokenRevoked
	}
	if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
		return ErrRefreshTokenExpired
	}
	return nil
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func sqliteTime(v any) (time.Time, bool) {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sqliteBool(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case []byte:
		return sqliteBool(string(x))
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
		return false, false
	default:
		return false, false
	}
}

// StoreRefreshToken records token for userID, re-arming it if the same token
// was stored before.
func StoreRefreshToken(db *sql.DB, userID int, token string, expiresAt time.Time, ttlDays int) error {
	_, err := db.Exec(`
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ttl_days) VALUES (?, ?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET
			expires_at = excluded.expires_at,
			ttl_days = excluded.ttl_days,
			revoked = 0`,
		userID, hashToken(token), expiresAt, ttlDays,
	)
	return err
}

// ValidateRefreshTokenInDB looks token up and returns its owner and TTL when
// it is still usable at now.
func ValidateRefreshTokenInDB(db *sql.DB, token string, now time.Time) (userID, ttlDays int, err error) {
	t, err := scanRefreshToken(db.QueryRow(
		"SELECT "+refreshTokenColumns+" FROM refresh_tokens WHERE token_hash = ?", hashToken(token),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrRefreshTokenNotFound
	}
	if err != nil {
		return 0, 0, err
	}
	if err := t.usableAt(now); err != nil {
		return 0, 0, err
	}
	return t.UserID, t.TTLDays, nil
}

func RevokeRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return err
}
