package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_ResolveSignedIn(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	token, err := p.GenerateToken("user-1", RoleClient)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	v, err := p.Resolve(req)
	require.NoError(t, err)
	assert.True(t, v.IsAuthenticated())
	assert.Equal(t, "user-1", v.UserID)
	assert.Equal(t, []Role{RoleClient}, v.Roles)
}

func TestJWTProvider_QueryToken(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	token, err := p.GenerateToken("user-2")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/?token="+token, nil)
	v, err := p.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "user-2", v.UserID)
}

func TestJWTProvider_NoCredentialsIsAnonymous(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	v, err := p.Resolve(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.True(t, v.Loaded)
	assert.False(t, v.IsAuthenticated())
}

func TestJWTProvider_BadTokens(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	other := NewJWTProvider("other", time.Hour)
	foreign, err := other.GenerateToken("user-1")
	require.NoError(t, err)
	expiredIssuer := NewJWTProvider("secret", -time.Minute)
	expired, err := expiredIssuer.GenerateToken("user-1")
	require.NoError(t, err)

	for name, header := range map[string]string{
		"foreign signature": "Bearer " + foreign,
		"expired":           "Bearer " + expired,
		"garbage":           "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", header)
			v, err := p.Resolve(req)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.False(t, v.IsAuthenticated())
		})
	}
}

func TestPermissions_PureLookup(t *testing.T) {
	perms := DefaultPermissions()
	client := Viewer{Loaded: true, SignedIn: true, UserID: "c", Roles: []Role{RoleClient}}
	admin := Viewer{Loaded: true, SignedIn: true, UserID: "a", Roles: []Role{RoleAdmin}}

	assert.True(t, perms.HasPermission(client, PermBookSession))
	assert.False(t, perms.HasPermission(client, PermReconcilePayments))
	assert.True(t, perms.HasPermission(admin, PermReconcilePayments))
	assert.False(t, perms.HasPermission(Anonymous(), PermBookSession))

	custom := Permissions{RoleClient: {PermReconcilePayments}}
	assert.True(t, custom.HasPermission(client, PermReconcilePayments))
	assert.False(t, custom.HasPermission(client, PermBookSession))

	assert.True(t, HasRole(admin, RoleAdmin))
	assert.False(t, HasRole(admin, RoleClient))
}

func TestViewerContextRoundTrip(t *testing.T) {
	assert.False(t, FromContext(context.Background()).Loaded)

	v := Viewer{Loaded: true, SignedIn: true, UserID: "u"}
	assert.Equal(t, v, FromContext(WithViewer(context.Background(), v)))
}
