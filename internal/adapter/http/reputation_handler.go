package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultshield/internal/usecase/reputation"
)

type ReputationHandler struct{ uc *reputation.Usecase }

func NewReputationHandler(uc *reputation.Usecase) *ReputationHandler {
	return &ReputationHandler{uc: uc}
}

func (h *ReputationHandler) GetReputation(c echo.Context) error {
	borrower := c.Param("address")
	if !reAddress.MatchString(borrower) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid borrower address"})
	}
	dto, err := h.uc.Get(c.Request().Context(), borrower)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
