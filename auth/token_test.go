package auth

import (
	"testing"
	"time"

	"github.com/Dosada05/lanparty/models"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, "lanparty")
	user := &models.User{ID: 7, IsAdmin: true}
	regs := []models.Registration{
		{UserID: 7, EventID: 1, Role: models.RoleOrganizer},
		{UserID: 7, EventID: 2, Role: models.RolePlayer},
	}

	token, expires, err := m.Issue(user, regs)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	caller, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, 7, caller.UserID)
	require.True(t, caller.Admin)
	require.Equal(t, map[int]models.Role{1: models.RoleOrganizer, 2: models.RolePlayer}, caller.Roles)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, "lanparty")
	other := NewTokenManager("other-secret", time.Hour, "lanparty")
	user := &models.User{ID: 3}

	foreign, _, err := other.Issue(user, nil)
	require.NoError(t, err)
	_, err = m.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Hour, "lanparty")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(user, nil)
	require.NoError(t, err)
	_, err = m.Verify(old)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenFromHeader(t *testing.T) {
	token, err := TokenFromHeader("Bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", token)

	_, err = TokenFromHeader("Basic abc")
	require.ErrorIs(t, err, ErrMissingToken)
	_, err = TokenFromHeader("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "correct horse"))
	require.False(t, CheckPassword(hash, "wrong horse"))
}
