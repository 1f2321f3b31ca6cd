package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"law_ledger_app_go/logger"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// DefaultGrantHours applies when expiry_hours is omitted
const DefaultGrantHours = 24

// GrantAuditAccess creates or extends an auditor's read grant on a case
func (h *Handler) GrantAuditAccess(c echo.Context) error {
	hours := DefaultGrantHours
	if raw := c.QueryParam("expiry_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "expiry_hours must be an integer")
		}
		hours = parsed
	}

	grant, err := services.GrantAuditAccess(h.DB.WithContext(c.Request().Context()), principal(c),
		c.Param("case_id"), c.QueryParam("auditor_email"), hours, h.now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

// RevokeAuditAccess ends an auditor's grant immediately
func (h *Handler) RevokeAuditAccess(c echo.Context) error {
	err := services.RevokeAuditAccess(h.DB.WithContext(c.Request().Context()), principal(c),
		c.Param("case_id"), c.QueryParam("auditor_email"), h.now())
	if err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyLog checks one version of a log against the ledger; ?version= defaults to the current one
func (h *Handler) VerifyLog(c echo.Context) error {
	version := 0
	if raw := c.QueryParam("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return badRequest(c, "version must be a positive integer")
		}
		version = parsed
	}

	result, err := h.Verifier.VerifyLog(c.Request().Context(), principal(c), c.Param("case_id"), c.Param("log_id"), version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type caseVerificationResponse struct {
	*services.CaseVerification
	Rows []services.VerificationResult `json:"rows"`
}

// VerifyCase checks every version of every log in a case
func (h *Handler) VerifyCase(c echo.Context) error {
	cv, err := h.Verifier.VerifyCase(c.Request().Context(), principal(c), c.Param("case_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, caseVerificationResponse{CaseVerification: cv, Rows: cv.Rows()})
}

// HeaderReportStamp carries the stamp of an archived export
const HeaderReportStamp = "X-Report-Stamp"

// ExportCaseVerification returns the case verification as XLSX and archives a copy
func (h *Handler) ExportCaseVerification(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("case_id")

	cv, err := h.Verifier.VerifyCase(ctx, principal(c), caseID)
	if err != nil {
		return respondError(c, err)
	}

	now := h.now()
	buf, err := services.BuildVerificationReport(cv, now)
	if err != nil {
		return respondError(c, err)
	}
	data := buf.Bytes()

	if h.Reports != nil {
		key := services.ReportKey(caseID, now)
		if _, err := h.Reports.Put(ctx, key, data, services.XLSXContentType); err != nil {
			// The caller still gets the report
			logger.WithComponent("report").WithError(err).WithFields(logrus.Fields{
				"case_id": caseID,
				"store":   h.Reports.Name(),
			}).Error("Failed to archive verification report")
		} else {
			c.Response().Header().Set(HeaderReportStamp, services.ReportStamp(now))
		}
	}

	filename := fmt.Sprintf("verification_%s_%s.xlsx", caseID, now.UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Stream(http.StatusOK, services.XLSXContentType, bytes.NewReader(data))
}

// DownloadArchivedReport streams a verification report archived by an earlier export
func (h *Handler) DownloadArchivedReport(c echo.Context) error {
	caseID, stamp := c.Param("case_id"), c.Param("stamp")
	body, contentType, err := h.Verifier.ArchivedReport(c.Request().Context(), principal(c), h.Reports, caseID, stamp)
	if err != nil {
		return respondError(c, err)
	}
	defer body.Close()

	filename := fmt.Sprintf("verification_%s_%s.xlsx", caseID, stamp)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Stream(http.StatusOK, contentType, body)
}
