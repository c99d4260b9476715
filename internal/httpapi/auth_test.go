package httpapi

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/service"
)

type verifierStub map[string]string

func (s verifierStub) VerifyPIN(_ context.Context, pin string) (string, error) {
	if role, ok := s[pin]; ok {
		return role, nil
	}
	return "", service.ErrInvalidPIN
}

func newStubManager() *AuthManager {
	return NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, verifierStub{
		"482913": domain.RoleStaff,
		"905174": domain.RoleAdmin,
	})
}

func TestLoginSignsParseableToken(t *testing.T) {
	manager := newStubManager()

	resp, err := manager.Login(context.Background(), domain.LoginRequest{PIN: " 905174 "})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	actor, err := manager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, actor.Role)
	assert.Equal(t, domain.RoleAdmin, actor.Username)
}

func TestLoginHidesVerifierError(t *testing.T) {
	manager := newStubManager()

	_, err := manager.Login(context.Background(), domain.LoginRequest{PIN: "123123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = manager.Login(context.Background(), domain.LoginRequest{PIN: ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	manager := newStubManager()

	other := NewAuthManager("another-secret-another-secret-!!", time.Hour, verifierStub{"482913": domain.RoleStaff})
	resp, err := other.Login(context.Background(), domain.LoginRequest{PIN: "482913"})
	require.NoError(t, err)
	_, err = manager.ParseToken(resp.AccessToken)
	assert.Error(t, err, "token signed with another secret")

	wrongIssuer := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, roxtorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "staff",
			Issuer:    "kiosk",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleStaff,
	})
	signed, err := wrongIssuer.SignedString(manager.secret)
	require.NoError(t, err)
	_, err = manager.ParseToken(signed)
	assert.Error(t, err, "token from another issuer")
}

func TestParseTokenRejectsExpiredAndUnknownRole(t *testing.T) {
	manager := newStubManager()

	expired, err := manager.sign("staff", domain.RoleStaff, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = manager.ParseToken(expired)
	assert.Error(t, err)

	superuser, err := manager.sign("root", "root", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = manager.ParseToken(superuser)
	assert.Error(t, err)
}
