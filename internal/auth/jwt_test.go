package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinestream/backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()

	token, err := svc.Generate(id, "ops@cinestream.tv", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, id.String(), claims.Subject)
}

func TestJWTRejects(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(uuid.New(), "a@b.c", models.RoleViewer)
	require.NoError(t, err)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTService("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": uuid.NewString()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTDefaultsToViewerRole(t *testing.T) {
	svc := NewJWTService("secret", 1)
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, claims.Role)
}

func TestFromRequest(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(uuid.New(), "v@cinestream.tv", models.RoleViewer)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	_, err = svc.FromRequest(r)
	assert.NoError(t, err)

	r = httptest.NewRequest(http.MethodGet, "/ws/watch?token="+token, nil)
	_, err = svc.FromRequest(r)
	assert.NoError(t, err)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = svc.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Token "+token)
	_, err = svc.FromRequest(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
