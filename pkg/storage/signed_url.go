package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("invalid signed token")
	ErrTokenExpired = errors.New("signed token expired")
)

// SignedURLSigner mints and verifies HMAC tokens that grant temporary access to a stored object.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token binding the subject (e.g. a photo id) to an object name.
func (s *SignedURLSigner) Generate(subject, object string) (string, time.Time, error) {
	if subject == "" || object == "" {
		return "", time.Time{}, fmt.Errorf("subject and object required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(object))
	token := strings.Join([]string{subject, ts, encoded, s.sign(subject, ts, encoded)}, ".")
	return token, expiresAt, nil
}

// Verify checks the token against the expected subject and returns the embedded object name.
func (s *SignedURLSigner) Verify(token, subject string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != subject {
		return "", ErrTokenInvalid
	}
	ts, encoded, signature := parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.sign(subject, ts, encoded)), []byte(signature)) {
		return "", ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrTokenExpired
	}
	object, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenInvalid
	}
	return string(object), nil
}

func (s *SignedURLSigner) sign(subject, ts, encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(subject + "|" + ts + "|" + encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
