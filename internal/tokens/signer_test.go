package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed/internal/shared"
)

func TestIssueAndVerify(t *testing.T) {
	s := NewSigner("secret")

	token, err := s.Issue(PurposeConfirm, 42, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := s.Verify(PurposeConfirm, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), subject)
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	s := NewSigner("secret")

	token, err := s.Issue(PurposeConfirm, 42, time.Hour)
	require.NoError(t, err)

	_, err = s.Verify(PurposeAuth, token)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Issue(PurposeAuth, 7, time.Hour)
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Verify(PurposeAuth, token)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewSigner("secret")

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := s.Verify(PurposeAuth, token)
		require.ErrorIs(t, err, shared.ErrInvalidToken)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewSigner("secret")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	token, err := s.Issue(PurposeConfirm, 42, time.Second)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = s.Verify(PurposeConfirm, token)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyInsideTTL(t *testing.T) {
	s := NewSigner("secret")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	token, err := s.Issue(PurposeConfirm, 42, time.Minute)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(30 * time.Second) }
	subject, err := s.Verify(PurposeConfirm, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), subject)
}
