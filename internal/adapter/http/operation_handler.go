package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultshield/internal/coordinator"
)

// OperationHandler is the poll/cancel surface the presentation layer uses
// to render transaction status.
type OperationHandler struct{ coord *coordinator.Coordinator }

func NewOperationHandler(coord *coordinator.Coordinator) *OperationHandler {
	return &OperationHandler{coord: coord}
}

func (h *OperationHandler) GetOperation(c echo.Context) error {
	op, err := h.coord.Get(c.Request().Context(), c.Param("operation_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, op)
}

// GetStatusForKey returns the last operation for an entity key, e.g.
// ?key=vault:<id> or ?key=loan:<id>. Keys with no history report idle.
func (h *OperationHandler) GetStatusForKey(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing key"})
	}
	op, err := h.coord.LastForKey(c.Request().Context(), key)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, op)
}

func (h *OperationHandler) CancelOperation(c echo.Context) error {
	op, err := h.coord.Cancel(c.Request().Context(), c.Param("operation_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, op)
}
