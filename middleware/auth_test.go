package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func newAuthContext(e *echo.Echo, authorization string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/my_cases", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func assertHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, code, he.Code)
}

func TestRequireAuth(t *testing.T) {
	e := echo.New()
	tokens := services.NewTokenService(testSecret, 30*time.Minute)
	user := &models.User{ID: "user-1", Email: "lawyer@firm.test", Role: models.RoleLawyer}
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	var seen *services.Principal
	handler := RequireAuth(tokens)(func(c echo.Context) error {
		seen = GetPrincipal(c)
		return c.NoContent(http.StatusOK)
	})

	t.Run("ValidToken", func(t *testing.T) {
		c, rec := newAuthContext(e, "Bearer "+token)
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "user-1", seen.UserID)
		assert.Equal(t, models.RoleLawyer, seen.Role)
		assert.Equal(t, "lawyer@firm.test", seen.Email)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		c, rec := newAuthContext(e, "")
		assertHTTPStatus(t, handler(c), http.StatusUnauthorized)
		assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	})

	t.Run("WrongScheme", func(t *testing.T) {
		c, _ := newAuthContext(e, "Basic "+token)
		assertHTTPStatus(t, handler(c), http.StatusUnauthorized)
	})

	t.Run("ForeignSignature", func(t *testing.T) {
		other := services.NewTokenService("another-secret-that-is-also-long-enough", time.Minute)
		forged, err := other.Issue(user)
		require.NoError(t, err)

		c, _ := newAuthContext(e, "Bearer "+forged)
		assertHTTPStatus(t, handler(c), http.StatusUnauthorized)
	})
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	handler := RequireRole(models.RoleLawyer)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	t.Run("NoPrincipal", func(t *testing.T) {
		c, _ := newAuthContext(e, "")
		assertHTTPStatus(t, handler(c), http.StatusUnauthorized)
	})

	t.Run("WrongRole", func(t *testing.T) {
		c, _ := newAuthContext(e, "")
		c.Set(ContextKeyPrincipal, &services.Principal{UserID: "a", Role: models.RoleAuditor})
		assertHTTPStatus(t, handler(c), http.StatusForbidden)
	})

	t.Run("AllowedRole", func(t *testing.T) {
		c, rec := newAuthContext(e, "")
		c.Set(ContextKeyPrincipal, &services.Principal{UserID: "a", Role: models.RoleLawyer})
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
