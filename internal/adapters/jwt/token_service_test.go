package token_adapter

import (
	"context"
	"testing"
	"time"

	"property-import-service/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	svc, err := NewTokenService("test-secret")
	require.NoError(t, err)

	in := domain.Principal{UserID: "user-1", TenantID: "tenant-1", Email: "a@b.c", Role: domain.RoleAdmin}
	token, err := svc.Issue(ctx, in, time.Hour)
	require.NoError(t, err)

	out, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
	assert.True(t, out.IsAdmin())
}

func TestTokenService_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, err := NewTokenService("test-secret")
	require.NoError(t, err)
	other, err := NewTokenService("other-secret")
	require.NoError(t, err)

	p := domain.Principal{UserID: "user-1", TenantID: "tenant-1"}

	foreign, err := other.Issue(ctx, p, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, foreign)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	expired, err := svc.Issue(ctx, p, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = svc.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	// alg=none не принимается
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, unsigned)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestNewTokenService_EmptyKey(t *testing.T) {
	_, err := NewTokenService("")
	assert.Error(t, err)
}
