package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type logProgressRequest struct {
	CaseID      string `json:"case_id"`
	Description string `json:"description"`
	TimeSpent   int    `json:"time_spent"`
}

type editLogRequest struct {
	Description string `json:"description"`
	TimeSpent   int    `json:"time_spent"`
}

// LogProgress records billable work as version 1 of a new log
func (h *Handler) LogProgress(c echo.Context) error {
	var req logProgressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.CaseID == "" {
		return badRequest(c, "case_id is required")
	}

	entry, err := h.Logs.Create(c.Request().Context(), principal(c), req.CaseID, req.Description, req.TimeSpent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// EditLog appends a new version to a log
func (h *Handler) EditLog(c echo.Context) error {
	var req editLogRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	entry, err := h.Logs.Edit(c.Request().Context(), principal(c), c.Param("log_id"), req.Description, req.TimeSpent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// LogHistory returns the prior versions of a log, oldest first
func (h *Handler) LogHistory(c echo.Context) error {
	versions, err := h.Logs.History(c.Request().Context(), principal(c), c.Param("log_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, versions)
}

// CaseLogs lists the current view of every log in a case
func (h *Handler) CaseLogs(c echo.Context) error {
	entries, err := h.Logs.CaseLogs(c.Request().Context(), principal(c), c.Param("case_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
