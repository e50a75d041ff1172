package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ArchiveTokenSigner mints and checks the download tokens that authorize
// access to archived session trails. A token binds the session id and the
// archived file path to an expiry instant; anyone holding a valid token may
// download that one file until it expires.
type ArchiveTokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewArchiveTokenSigner returns a signer using the given secret. A
// non-positive ttl falls back to 24 hours.
func NewArchiveTokenSigner(secret string, ttl time.Duration) *ArchiveTokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ArchiveTokenSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token for the archived file of one session.
func (s *ArchiveTokenSigner) Sign(sessionID, relPath string) (string, time.Time, error) {
	if sessionID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("session id and file path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{sessionID, strconv.FormatInt(expiresAt.Unix(), 10), relPath}, "\n")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	token := encoded + "." + base64.RawURLEncoding.EncodeToString(s.sign(payload))
	return token, expiresAt, nil
}

// Verify checks the token signature and expiry and returns what it grants.
func (s *ArchiveTokenSigner) Verify(token string) (sessionID, relPath string, expiresAt time.Time, err error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode signature: %w", err)
	}
	if !hmac.Equal(got, s.sign(string(raw))) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	parts := strings.SplitN(string(raw), "\n", 3)
	if len(parts) != 3 {
		return "", "", time.Time{}, fmt.Errorf("malformed token payload")
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed token expiry")
	}
	expiresAt = time.Unix(unix, 0)
	if time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return parts[0], parts[2], expiresAt, nil
}

func (s *ArchiveTokenSigner) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
