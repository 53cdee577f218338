package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, roles []string, expiry time.Duration) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe() (http.Handler, *string, *[]string) {
	var gotUserID string
	var gotRoles []string
	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotRoles = GetRoles(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &gotUserID, &gotRoles
}

func TestAuthValidToken(t *testing.T) {
	h, gotUserID, gotRoles := authProbe()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", []string{RoleAdmin}, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", *gotUserID)
	assert.Equal(t, []string{RoleAdmin}, *gotRoles)
}

func TestAuthRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "user-42", nil, time.Hour)},
		{"expired token", "Bearer " + signToken(t, testSecret, "user-42", nil, -time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := authProbe()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := Auth(testSecret)(RequireRole(RoleAdmin)(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", nil, time.Hour))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", []string{RoleAdmin}, time.Hour))
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateIDs(t *testing.T) {
	valid := uuid.New().String()

	assert.NoError(t, ValidateConversationID(valid))
	assert.Error(t, ValidateConversationID("not-a-uuid"))
	assert.Error(t, ValidateConversationID(""))

	assert.NoError(t, ValidateOfferID(valid))
	assert.Error(t, ValidateOfferID("../escape"))

	assert.NoError(t, ValidateKnowledgeID(valid))
	assert.Error(t, ValidateKnowledgeID("123"))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Angebot für Website-Relaunch"))
	assert.NoError(t, ValidateTitle(""))
	assert.Error(t, ValidateTitle(strings.Repeat("x", 257)))
	assert.Error(t, ValidateTitle(string([]byte{0xff, 0xfe})))
}
