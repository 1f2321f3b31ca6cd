package handlers

import (
	"errors"
	"net/http"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Role        string `json:"role"`
}

// Login exchanges credentials for a bearer token
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	user, err := services.Authenticate(c.Request().Context(), h.DB, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			logger.WithComponent("auth").WithField("ip", c.RealIP()).Warn("Failed login attempt")
			h.Monitor.TrackFailure(c.RealIP())
			return c.JSON(http.StatusUnauthorized, detail{Detail: "Invalid email or password"})
		}
		return respondError(c, err)
	}

	h.Monitor.Reset(c.RealIP())

	token, err := h.Tokens.Issue(user)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.Tokens.TTL().Seconds()),
		Role:        string(user.Role),
	})
}
