// Package ledger is the boundary to the external chain. Only the submission
// interface and an in-memory fake live here; consensus and the real client
// are someone else's problem.
package ledger

import (
	"context"
	"errors"
)

type OperationKind string

const (
	KindCreateVault OperationKind = "create_vault"
	KindCloseVault  OperationKind = "close_vault"
	KindRequestLoan OperationKind = "request_loan"
	KindRepay       OperationKind = "repay"
	KindLiquidate   OperationKind = "liquidate"
)

// Handle identifies one submitted operation while it awaits confirmation.
type Handle string

type ResultStatus string

const (
	StatusConfirmed ResultStatus = "confirmed"
	StatusRejected  ResultStatus = "rejected"
	StatusTimedOut  ResultStatus = "timed_out"
)

// Result is the terminal outcome of a submitted operation.
type Result struct {
	Status ResultStatus
	TxHash string
	Reason string
}

var ErrUnknownHandle = errors.New("ledger: unknown operation handle")

type Ledger interface {
	Submit(ctx context.Context, kind OperationKind, payload []byte) (Handle, error)
	// AwaitConfirmation blocks until the operation resolves or ctx expires.
	// A ctx expiry is reported as a TimedOut result, not an error.
	AwaitConfirmation(ctx context.Context, h Handle) (Result, error)
}
