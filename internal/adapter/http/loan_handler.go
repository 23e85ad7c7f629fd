package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"vaultshield/internal/usecase/loan"
)

type LoanHandler struct {
	uc *loan.Usecase
	cv *CustomValidator
}

func NewLoanHandler(uc *loan.Usecase, cv *CustomValidator) *LoanHandler {
	return &LoanHandler{uc: uc, cv: cv}
}

type requestLoanReq struct {
	VaultID string     `json:"vault_id" validate:"required,hex32"`
	Amount  float64    `json:"amount" validate:"required,gt=0,dec2"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

type repayReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0,dec2"`
}

type liquidateReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0,dec2"`
}

func (h *LoanHandler) RequestLoan(c echo.Context) error {
	caller, ok := callerAddress(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid " + CallerHeader})
	}
	var req requestLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	dto, op, err := h.uc.Request(c.Request().Context(), loan.RequestLoanInput{
		VaultID:  req.VaultID,
		Borrower: caller,
		Amount:   req.Amount,
		DueDate:  req.DueDate,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"loan": dto, "operation": op})
}

func (h *LoanHandler) Repay(c echo.Context) error {
	caller, ok := callerAddress(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid " + CallerHeader})
	}
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	var req repayReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	dto, op, err := h.uc.Repay(c.Request().Context(), loanID, caller, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan": dto, "operation": op})
}

func (h *LoanHandler) Liquidate(c echo.Context) error {
	if _, ok := callerAddress(c); !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid " + CallerHeader})
	}
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	var req liquidateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	dto, op, err := h.uc.Liquidate(c.Request().Context(), loanID, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan": dto, "operation": op})
}

func (h *LoanHandler) MarkDefaulted(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	dto, err := h.uc.MarkDefaulted(c.Request().Context(), loanID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
