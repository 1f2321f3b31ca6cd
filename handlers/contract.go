package handlers

import (
	"net/http"

	"law_ledger_app_go/services"

	"github.com/labstack/echo/v4"
)

type signRequest struct {
	LawyerSignature string `json:"lawyer_signature"`
	ClientSignature string `json:"client_signature"`
}

// SignContract records the caller's signature; the field matching the caller's role is used
func (h *Handler) SignContract(c echo.Context) error {
	var req signRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	p := principal(c)
	signature := req.ClientSignature
	if p.IsLawyer() {
		signature = req.LawyerSignature
	}

	contract, err := h.Machine.SignContract(c.Request().Context(), p, c.Param("case_id"), signature)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, contract)
}

// GetContract returns the contract of a case to its participants
func (h *Handler) GetContract(c echo.Context) error {
	contract, err := services.GetContract(h.DB.WithContext(c.Request().Context()), principal(c), c.Param("case_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, contract)
}
