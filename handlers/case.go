package handlers

import (
	"net/http"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
)

type createCaseRequest struct {
	Title           string `json:"title"`
	ClientID        string `json:"client_id"`
	ContractContent string `json:"contract_content"`
	LawyerSignature string `json:"lawyer_signature"`
}

type createCaseResponse struct {
	Case     *models.Case             `json:"case"`
	Contract *models.ContractDocument `json:"contract"`
}

// CreateCase opens a pending case with its contract
func (h *Handler) CreateCase(c echo.Context) error {
	var req createCaseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	caseRecord, contract, err := services.CreateCase(c.Request().Context(), h.DB, principal(c), services.CreateCaseInput{
		Title:           req.Title,
		ClientID:        req.ClientID,
		ContractContent: req.ContractContent,
		LawyerSignature: req.LawyerSignature,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, createCaseResponse{Case: caseRecord, Contract: contract})
}

// MyCases lists the cases visible to the caller
func (h *Handler) MyCases(c echo.Context) error {
	cases, err := services.ListCasesFor(h.DB.WithContext(c.Request().Context()), principal(c), h.now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cases)
}

// CaseSummary returns log totals and anchoring health of a case
func (h *Handler) CaseSummary(c echo.Context) error {
	summary, err := services.SummarizeCase(h.DB.WithContext(c.Request().Context()), principal(c), c.Param("case_id"), h.now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

type updateStatusRequest struct {
	Status       string `json:"status"`
	CustomStatus string `json:"custom_status"`
	Reason       string `json:"reason"`
}

// UpdateCaseStatus applies a lawyer-requested transition
func (h *Handler) UpdateCaseStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	change, err := h.Machine.UpdateStatus(c.Request().Context(), principal(c), c.Param("case_id"), services.StatusUpdate{
		Status:       models.CaseStatus(req.Status),
		CustomStatus: req.CustomStatus,
		Reason:       req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// CaseStatusHistory returns the transition trail, oldest first
func (h *Handler) CaseStatusHistory(c echo.Context) error {
	db := h.DB.WithContext(c.Request().Context())
	caseID := c.Param("case_id")
	if _, err := services.AuthorizeCaseRead(db, principal(c), caseID, h.now()); err != nil {
		return respondError(c, err)
	}

	history, err := services.StatusHistory(db, caseID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}
