package middleware

import (
	"errors"
	"net/http"
	"strings"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
)

// ContextKeyPrincipal is the context key for the authenticated caller
const ContextKeyPrincipal = "principal"

// RequireAuth validates the bearer token and stores the caller's principal in the context
func RequireAuth(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			}

			principal, err := tokens.Validate(raw)
			if err != nil {
				detail := "Could not validate credentials"
				if errors.Is(err, services.ErrTokenExpired) {
					detail = "Token expired"
				}
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"detail": detail})
			}

			c.Set(ContextKeyPrincipal, principal)
			return next(c)
		}
	}
}

// RequireRole is middleware that requires specific roles
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := GetPrincipal(c)
			if principal == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			}

			for _, role := range roles {
				if principal.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, map[string]string{"detail": "Insufficient permissions"})
		}
	}
}

// GetPrincipal retrieves the authenticated caller from context
func GetPrincipal(c echo.Context) *services.Principal {
	principal, ok := c.Get(ContextKeyPrincipal).(*services.Principal)
	if !ok {
		return nil
	}
	return principal
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
