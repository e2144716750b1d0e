package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-reservation/internal/utils"
)

const jwtTestSecret = "jwt_test_secret"

func runJWT(t *testing.T, authHeader string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/events/ev1/queue/position", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, JWTAuth(jwtTestSecret)(next)(c))
	return rec
}

func TestJWTAuthInjectsClaims(t *testing.T) {
	tok, err := utils.NewAccessToken(jwtTestSecret, "buyer-1", "BUYER", 15)
	require.NoError(t, err)

	var gotUser, gotRole any
	rec := runJWT(t, "Bearer "+tok.Token, func(c echo.Context) error {
		gotUser = c.Get("user_id")
		gotRole = c.Get("role")
		return c.NoContent(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer-1", gotUser)
	assert.Equal(t, "BUYER", gotRole)
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec := runJWT(t, "", func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsForeignSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other_secret", "buyer-1", "BUYER", 15)
	require.NoError(t, err)

	rec := runJWT(t, "Bearer "+tok.Token, func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	req := httptest.NewRequest(http.MethodPost, "/v1/events/ev1/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", "SELLER")
	require.NoError(t, RequireRole("SELLER")(next)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("role", "BUYER")
	require.NoError(t, RequireRole("SELLER")(next)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
