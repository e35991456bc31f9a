package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID uuid.UUID) Claims {
	return Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "https://project.supabase.co/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

// TestVerify проверяет разбор токена провайдера идентичности.
func TestVerify(t *testing.T) {
	userID := uuid.New()
	verifier := NewVerifier(testSecret, "https://project.supabase.co/auth/v1", "authenticated")

	got, err := verifier.Verify(signToken(t, testSecret, validClaims(userID)))
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

// TestVerifyRejects проверяет отказ на чужой подписи, истекшем сроке и плохом subject.
func TestVerifyRejects(t *testing.T) {
	verifier := NewVerifier(testSecret, "", "authenticated")
	userID := uuid.New()

	expired := validClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	badSubject := validClaims(userID)
	badSubject.Subject = "service-role"

	wrongAudience := validClaims(userID)
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	noExpiry := validClaims(userID)
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"wrong secret":   signToken(t, "another-secret", validClaims(userID)),
		"expired":        signToken(t, testSecret, expired),
		"bad subject":    signToken(t, testSecret, badSubject),
		"wrong audience": signToken(t, testSecret, wrongAudience),
		"no expiry":      signToken(t, testSecret, noExpiry),
		"garbage":        "not-a-token",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func runIdentity(t *testing.T, verifier *Verifier, header string) (*httptest.ResponseRecorder, uuid.UUID, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		seen   uuid.UUID
		hasID  bool
		called bool
	)
	err := Identity(verifier)(func(c echo.Context) error {
		called = true
		seen, hasID = UserIDFromContext(c)
		return nil
	})(c)
	if err == nil {
		require.True(t, called)
	}
	return rec, seen, hasID, err
}

// TestIdentityMiddleware проверяет анонимный проход и определение пользователя.
func TestIdentityMiddleware(t *testing.T) {
	verifier := NewVerifier(testSecret, "", "")
	userID := uuid.New()

	_, _, hasID, err := runIdentity(t, verifier, "")
	require.NoError(t, err)
	require.False(t, hasID)

	_, seen, hasID, err := runIdentity(t, verifier, "Bearer "+signToken(t, testSecret, validClaims(userID)))
	require.NoError(t, err)
	require.True(t, hasID)
	require.Equal(t, userID, seen)

	_, _, _, err = runIdentity(t, verifier, "Bearer broken")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)

	_, _, _, err = runIdentity(t, verifier, "Basic abc")
	require.ErrorAs(t, err, &httpErr)
}

// TestIdentityDisabled проверяет, что без секрета заголовок игнорируется.
func TestIdentityDisabled(t *testing.T) {
	_, _, hasID, err := runIdentity(t, nil, "Bearer whatever")
	require.NoError(t, err)
	require.False(t, hasID)
}

// TestRequireUser проверяет отказ анонимному вызывающему.
func TestRequireUser(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireUser()(func(echo.Context) error { return nil })(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)

	c.Set(ContextUserIDKey, uuid.New())
	require.NoError(t, RequireUser()(func(echo.Context) error { return nil })(c))
}
