package handlers

import (
	"net/http"

	"law_ledger_app_go/middleware"
	"law_ledger_app_go/models"

	"github.com/labstack/echo/v4"
)

// Register mounts every route on e. loginLimiter may be nil.
func (h *Handler) Register(e *echo.Echo, loginLimiter *middleware.RateLimiter) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if loginLimiter != nil {
		e.POST("/login", h.Login, loginLimiter.Middleware())
	} else {
		e.POST("/login", h.Login)
	}

	api := e.Group("")
	api.Use(middleware.RequireAuth(h.Tokens))

	lawyer := middleware.RequireRole(models.RoleLawyer)
	auditor := middleware.RequireRole(models.RoleAuditor)
	signer := middleware.RequireRole(models.RoleLawyer, models.RoleClient)

	// Cases
	api.POST("/create_case", h.CreateCase, lawyer)
	api.GET("/my_cases", h.MyCases)
	api.GET("/case_summary/:case_id", h.CaseSummary)
	api.PUT("/update_case_status/:case_id", h.UpdateCaseStatus, lawyer)
	api.GET("/case_status_history/:case_id", h.CaseStatusHistory)

	// Contracts
	api.POST("/contract/:case_id/sign", h.SignContract, signer)
	api.GET("/contract/:case_id", h.GetContract, signer)

	// Logs
	api.POST("/log_progress", h.LogProgress, lawyer)
	api.PUT("/edit_log/:log_id", h.EditLog, lawyer)
	api.GET("/log_history/:log_id", h.LogHistory)
	api.GET("/case_logs/:case_id", h.CaseLogs)

	// Anchors
	api.GET("/anchors/failed", h.FailedAnchors, lawyer)
	api.POST("/anchors/:log_id/:version/retry", h.RetryAnchor, lawyer)

	// Audit
	api.POST("/audit/grant_access/:case_id", h.GrantAuditAccess, lawyer)
	api.DELETE("/audit/grant_access/:case_id", h.RevokeAuditAccess, lawyer)
	api.GET("/audit/verify_log/:case_id/:log_id", h.VerifyLog, auditor)
	api.GET("/audit/verify_case/:case_id", h.VerifyCase, auditor)
	api.GET("/audit/verify_case/:case_id/export", h.ExportCaseVerification, auditor)
	api.GET("/audit/verify_case/:case_id/reports/:stamp", h.DownloadArchivedReport, auditor)
}
