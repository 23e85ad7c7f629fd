package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vaultshield/internal/usecase/vault"
)

type VaultHandler struct {
	uc *vault.Usecase
	cv *CustomValidator
}

func NewVaultHandler(uc *vault.Usecase, cv *CustomValidator) *VaultHandler {
	return &VaultHandler{uc: uc, cv: cv}
}

type createVaultReq struct {
	AssetContract  string  `json:"asset_contract" validate:"required,address"`
	AssetTokenID   uint64  `json:"asset_token_id"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0,dec2"`
}

func (h *VaultHandler) CreateVault(c echo.Context) error {
	caller, ok := callerAddress(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid " + CallerHeader})
	}
	var req createVaultReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	dto, op, err := h.uc.Create(c.Request().Context(), vault.CreateVaultInput{
		Owner:          caller,
		AssetContract:  req.AssetContract,
		AssetTokenID:   req.AssetTokenID,
		EstimatedValue: req.EstimatedValue,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"vault": dto, "operation": op})
}

func (h *VaultHandler) CloseVault(c echo.Context) error {
	caller, ok := callerAddress(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid " + CallerHeader})
	}
	vaultID := c.Param("vault_id")
	if !reHex32.MatchString(vaultID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vault_id"})
	}

	dto, op, err := h.uc.Close(c.Request().Context(), vaultID, caller)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"vault": dto, "operation": op})
}

func (h *VaultHandler) GetVault(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("vault_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *VaultHandler) RefreshEstimate(c echo.Context) error {
	vaultID := c.Param("vault_id")
	if !reHex32.MatchString(vaultID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vault_id"})
	}
	dto, err := h.uc.RefreshEstimate(c.Request().Context(), vaultID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
