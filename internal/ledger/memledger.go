package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLedger confirms everything after a configurable delay. Tests script
// rejections per kind; development wiring runs it as-is.
type MemLedger struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[Handle]pendingOp
	// RejectKind/RejectReason, when set, fail every submission of that kind.
	rejectKind   OperationKind
	rejectReason string
}

type pendingOp struct {
	kind    OperationKind
	payload []byte
	done    time.Time
}

func NewMemLedger(delay time.Duration) *MemLedger {
	return &MemLedger{delay: delay, pending: make(map[Handle]pendingOp)}
}

// RejectNext makes every subsequent submission of kind resolve as rejected.
func (m *MemLedger) RejectNext(kind OperationKind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectKind, m.rejectReason = kind, reason
}

func (m *MemLedger) Submit(_ context.Context, kind OperationKind, payload []byte) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Handle(uuid.NewString())
	m.pending[h] = pendingOp{kind: kind, payload: payload, done: time.Now().Add(m.delay)}
	return h, nil
}

func (m *MemLedger) AwaitConfirmation(ctx context.Context, h Handle) (Result, error) {
	m.mu.Lock()
	op, ok := m.pending[h]
	rejected := ok && m.rejectKind != "" && op.kind == m.rejectKind
	reason := m.rejectReason
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownHandle
	}

	if wait := time.Until(op.done); wait > 0 {
		select {
		case <-ctx.Done():
			return Result{Status: StatusTimedOut, Reason: "confirmation deadline exceeded"}, nil
		case <-time.After(wait):
		}
	}

	m.mu.Lock()
	delete(m.pending, h)
	m.mu.Unlock()

	if rejected {
		return Result{Status: StatusRejected, Reason: reason}, nil
	}
	tx := "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Result{Status: StatusConfirmed, TxHash: tx}, nil
}
