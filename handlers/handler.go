package handlers

import (
	"errors"
	"net/http"
	"time"

	"law_ledger_app_go/config"
	"law_ledger_app_go/logger"
	"law_ledger_app_go/middleware"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Handler carries the services behind the HTTP surface
type Handler struct {
	DB       *gorm.DB
	Config   *config.Config
	Tokens   *services.TokenService
	Machine  *services.StatusMachine
	Logs     *services.LogStore
	Anchor   *services.HashAnchor
	Verifier *services.AuditVerifier
	Reports  services.ReportStore
	Monitor  *services.LoginMonitor

	now func() time.Time
}

// Deps groups the constructor arguments of a Handler
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Tokens   *services.TokenService
	Machine  *services.StatusMachine
	Logs     *services.LogStore
	Anchor   *services.HashAnchor
	Verifier *services.AuditVerifier
	Reports  services.ReportStore
	Monitor  *services.LoginMonitor
}

func New(d Deps) *Handler {
	if d.Monitor == nil {
		d.Monitor = services.NewLoginMonitor()
	}
	return &Handler{
		DB:       d.DB,
		Config:   d.Config,
		Tokens:   d.Tokens,
		Machine:  d.Machine,
		Logs:     d.Logs,
		Anchor:   d.Anchor,
		Verifier: d.Verifier,
		Reports:  d.Reports,
		Monitor:  d.Monitor,
		now:      time.Now,
	}
}

// detail is the error body shape
type detail struct {
	Detail string `json:"detail"`
}

// respondError maps the service error taxonomy onto HTTP status codes
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrLedgerUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.WithComponent("http").WithError(err).
			WithField("path", c.Request().URL.Path).
			Error("Request failed")
		return c.JSON(status, detail{Detail: "Internal server error"})
	}
	return c.JSON(status, detail{Detail: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, detail{Detail: msg})
}

// principal returns the authenticated caller; routes are mounted behind RequireAuth
func principal(c echo.Context) services.Principal {
	if p := middleware.GetPrincipal(c); p != nil {
		return *p
	}
	return services.Principal{}
}

// ErrorHandler renders echo errors with the same {"detail": ...} body
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		respondError(c, err)
		return
	}

	body := he.Message
	if msg, ok := he.Message.(string); ok {
		body = detail{Detail: msg}
	}
	if c.Request().Method == http.MethodHead {
		c.NoContent(he.Code)
		return
	}
	c.JSON(he.Code, body)
}
