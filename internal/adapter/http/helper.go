package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"vaultshield/internal/coordinator"
	loanDomain "vaultshield/internal/domain/loan"
	repDomain "vaultshield/internal/domain/reputation"
	vaultDomain "vaultshield/internal/domain/vault"
	"vaultshield/internal/risk"
)

// CallerHeader carries the explicit caller identity. The core never reads
// ambient signer state; every mutating call names its caller.
const CallerHeader = "X-Caller-Address"

func callerAddress(c echo.Context) (string, bool) {
	addr := strings.TrimSpace(c.Request().Header.Get(CallerHeader))
	return addr, reAddress.MatchString(addr)
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vaultDomain.ErrNotFound),
		errors.Is(err, loanDomain.ErrNotFound),
		errors.Is(err, repDomain.ErrNotFound),
		errors.Is(err, coordinator.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, vaultDomain.ErrNotOwner),
		errors.Is(err, loanDomain.ErrNotBorrower):
		return http.StatusForbidden
	case errors.Is(err, coordinator.ErrOperationInProgress),
		errors.Is(err, coordinator.ErrNotCancellable),
		errors.Is(err, vaultDomain.ErrDuplicateCollateral),
		errors.Is(err, vaultDomain.ErrHasActiveLoan):
		return http.StatusConflict
	case errors.Is(err, vaultDomain.ErrInvalidAmount),
		errors.Is(err, vaultDomain.ErrNotActive),
		errors.Is(err, loanDomain.ErrInvalidAmount),
		errors.Is(err, loanDomain.ErrExceedsMaxLoan),
		errors.Is(err, loanDomain.ErrReputationDenied),
		errors.Is(err, loanDomain.ErrOverRepayment),
		errors.Is(err, loanDomain.ErrNotActive),
		errors.Is(err, loanDomain.ErrNotLiquidatable),
		errors.Is(err, loanDomain.ErrNotDue),
		errors.Is(err, risk.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coordinator.ErrTransactionFailed):
		return http.StatusBadGateway
	case errors.Is(err, coordinator.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
