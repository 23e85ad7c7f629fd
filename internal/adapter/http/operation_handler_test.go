package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"testing"

	"vaultshield/internal/coordinator"
	"vaultshield/internal/ledger"
)

func TestGetOperation_NotFound(t *testing.T) {
	env := newEnv(t)
	e := newEcho()

	c, rec := newCtx(e, stdhttp.MethodGet, "/operations/nope", nil, "")
	c.SetParamNames("operation_id")
	c.SetParamValues("nope")

	if err := env.opH.GetOperation(c); err != nil {
		t.Fatalf("GetOperation error: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetStatusForKey(t *testing.T) {
	env := newEnv(t)
	e := newEcho()

	// Unknown keys report idle.
	c, rec := newCtx(e, stdhttp.MethodGet, "/operations?key=vault:unknown", nil, "")
	if err := env.opH.GetStatusForKey(c); err != nil {
		t.Fatalf("GetStatusForKey error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got coordinator.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.Status != coordinator.StatusIdle {
		t.Fatalf("status = %s, want idle", got.Status)
	}

	// Missing key is a bad request.
	c, rec = newCtx(e, stdhttp.MethodGet, "/operations", nil, "")
	if err := env.opH.GetStatusForKey(c); err != nil {
		t.Fatalf("GetStatusForKey error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCancelOperation_Terminal(t *testing.T) {
	env := newEnv(t)
	e := newEcho()

	op, err := env.coord.Run(context.Background(), "vault:x", ledger.KindCloseVault, nil, func(ctx context.Context, res ledger.Result) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	c, rec := newCtx(e, stdhttp.MethodPost, "/operations/"+op.ID+"/cancel", nil, "")
	c.SetParamNames("operation_id")
	c.SetParamValues(op.ID)

	if err := env.opH.CancelOperation(c); err != nil {
		t.Fatalf("CancelOperation error: %v", err)
	}
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestGetReputation(t *testing.T) {
	env := newEnv(t)
	e := newEcho()

	// Bad address.
	c, rec := newCtx(e, stdhttp.MethodGet, "/reputation/abc", nil, "")
	c.SetParamNames("address")
	c.SetParamValues("abc")
	if err := env.repH.GetReputation(c); err != nil {
		t.Fatalf("GetReputation error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// Unknown borrower reports the neutral baseline.
	c, rec = newCtx(e, stdhttp.MethodGet, "/reputation/"+testOwner, nil, "")
	c.SetParamNames("address")
	c.SetParamValues(testOwner)
	if err := env.repH.GetReputation(c); err != nil {
		t.Fatalf("GetReputation error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.Score != 50 {
		t.Fatalf("score = %v, want neutral 50", got.Score)
	}
}
