package handlers

import (
	"net/http"
	"strconv"

	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
)

// FailedAnchors lists the caller's log versions that could not be anchored
func (h *Handler) FailedAnchors(c echo.Context) error {
	records, err := services.FailedAnchorsFor(h.DB.WithContext(c.Request().Context()), principal(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// RetryAnchor sends a failed anchor back to the ledger queue
func (h *Handler) RetryAnchor(c echo.Context) error {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		return badRequest(c, "version must be a positive integer")
	}

	rec, err := services.RetryFailedAnchor(c.Request().Context(), h.DB, h.Anchor, principal(c), c.Param("log_id"), version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, rec)
}
