package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EO-DataHub/eodhp-user-admin/internal/authn"
)

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Expected request to be blocked by JWTMiddleware")
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/users/user-1", nil)
	w := httptest.NewRecorder()
	JWTMiddleware(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddleware_InvalidBearerToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Expected request to be blocked by JWTMiddleware")
	})

	for _, header := range []string{"Basic abc", "Bearer invalid-token"} {
		req := httptest.NewRequest(http.MethodPatch, "/api/users/user-1", nil)
		req.Header.Add("Authorization", header)
		w := httptest.NewRecorder()
		JWTMiddleware(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestJWTMiddleware_PopulatesClaims(t *testing.T) {
	in := authn.Claims{Username: "admin"}
	in.RealmAccess.Roles = []string{authn.AdminRole}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, in).SignedString([]byte("k"))
	require.NoError(t, err)

	var got authn.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Context().Value(ClaimsKey).(authn.Claims)
		assert.Equal(t, token, r.Context().Value(TokenKey))
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/users/user-1", nil)
	req.Header.Add("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	JWTMiddleware(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", got.Username)
	assert.True(t, got.HasRole(authn.AdminRole))
}

func TestWithLogger_RequestID(t *testing.T) {
	var logger *zerolog.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger = zerolog.Ctx(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	WithLogger(next).ServeHTTP(w, req)

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	require.NotNil(t, logger)

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	WithLogger(next).ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
