package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("42", "photos/abc.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	object, err := signer.Verify(token, "42")
	require.NoError(t, err)
	require.Equal(t, "photos/abc.jpg", object)
}

func TestSignedURLSignerRejectsOtherSubject(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("42", "photos/abc.jpg")
	require.NoError(t, err)

	_, err = signer.Verify(token, "43")
	require.ErrorIs(t, err, ErrTokenInvalid)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, "42")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	now := time.Now()
	signer.now = func() time.Time { return now }
	token, _, err := signer.Generate("42", "photos/abc.jpg")
	require.NoError(t, err)

	signer.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = signer.Verify(token, "42")
	require.ErrorIs(t, err, ErrTokenExpired)
}
