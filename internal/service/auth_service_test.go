package service

import (
	"context"
	"testing"

	"subsea-agent-be/internal/config"
	"subsea-agent-be/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T) IAuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewAuthService(config.AuthConfig{
		JWTSecret:         "test-secret",
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthFixture(t)

	res, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "admin",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	token, err := jwt.Parse(res.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	sub, err := token.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthFixture(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "admin", password: "guess"},
		{name: "wrong username", username: "root", password: "correct-horse"},
		{name: "empty", username: "", password: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), &dto.LoginRequest{
				Username: tc.username,
				Password: tc.password,
			})
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}
