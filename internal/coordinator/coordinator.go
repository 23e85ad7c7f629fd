// Package coordinator serializes outbound ledger operations. It guarantees
// at most one in-flight mutating operation per entity key and keeps the one
// canonical status record pollers render.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vaultshield/internal/ledger"
)

type Status string

const (
	// StatusIdle is synthesized when a key has no recorded operation.
	StatusIdle       Status = "idle"
	StatusPending    Status = "pending"
	StatusConfirming Status = "confirming"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

var (
	ErrOperationInProgress = errors.New("operation already in progress for key")
	ErrOperationNotFound   = errors.New("operation not found")
	ErrNotCancellable      = errors.New("operation is no longer cancellable")
	ErrTransactionFailed   = errors.New("ledger rejected transaction")
	ErrConfirmationTimeout = errors.New("ledger confirmation timed out")
)

// Operation is the tracked lifecycle record for one ledger submission.
type Operation struct {
	ID          string               `json:"id"`
	Key         string               `json:"key"`
	Kind        ledger.OperationKind `json:"kind"`
	Status      Status               `json:"status"`
	TxHash      string               `json:"tx_hash,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Cancelled   bool                 `json:"cancelled"`
	SubmittedAt time.Time            `json:"submitted_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ApplyFunc commits the engine's state transition once the ledger confirms.
// It must be idempotent: duplicated confirmation delivery replays it.
type ApplyFunc func(ctx context.Context, res ledger.Result) error

type Coordinator struct {
	rdb            *redis.Client
	led            ledger.Ledger
	log            zerolog.Logger
	lockTTL        time.Duration
	recordTTL      time.Duration
	confirmTimeout time.Duration
}

func New(rdb *redis.Client, led ledger.Ledger, log zerolog.Logger, lockTTL, recordTTL, confirmTimeout time.Duration) *Coordinator {
	// The lock must outlive the confirmation window, otherwise a second
	// operation on the same key could start while the first is still
	// awaiting confirmation.
	if lockTTL < confirmTimeout+time.Second {
		lockTTL = confirmTimeout + time.Second
	}
	return &Coordinator{rdb: rdb, led: led, log: log, lockTTL: lockTTL, recordTTL: recordTTL, confirmTimeout: confirmTimeout}
}

func lockKey(key string) string { return "coord:lock:" + key }
func opKey(id string) string    { return "coord:op:" + id }
func lastKey(key string) string { return "coord:last:" + key }

// releaseScript deletes the lock only if this operation still owns it, so a
// holder whose lock expired and was re-acquired cannot release the new
// holder's lock.
var releaseScript = redis.NewScript(
	`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`)

// Run drives one operation end to end: acquire the key's single-flight
// lock, submit, await confirmation, apply the committed transition, release.
// A second caller on the same key gets ErrOperationInProgress immediately.
func (c *Coordinator) Run(ctx context.Context, key string, kind ledger.OperationKind, payload []byte, apply ApplyFunc) (*Operation, error) {
	op := &Operation{
		ID:          uuid.NewString(),
		Key:         key,
		Kind:        kind,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	ok, err := c.rdb.SetNX(ctx, lockKey(key), op.ID, c.lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOperationInProgress
	}
	defer releaseScript.Run(context.Background(), c.rdb, []string{lockKey(key)}, op.ID)

	if err := c.save(ctx, op); err != nil {
		return nil, err
	}

	handle, err := c.led.Submit(ctx, kind, payload)
	if err != nil {
		c.fail(ctx, op, "submit: "+err.Error())
		return op, ErrTransactionFailed
	}

	op.Status = StatusConfirming
	_ = c.save(ctx, op)

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	res, err := c.led.AwaitConfirmation(confirmCtx, handle)
	if err != nil {
		c.fail(ctx, op, "await: "+err.Error())
		return op, ErrTransactionFailed
	}

	// Reload: a cancel may have landed while we were waiting. The local
	// record turned Failed, but a confirmation that still arrives is applied
	// and reconciled, never dropped.
	if cur, loadErr := c.Get(ctx, op.ID); loadErr == nil {
		op = cur
	}

	switch res.Status {
	case ledger.StatusConfirmed:
		if op.Cancelled {
			c.log.Warn().Str("op_id", op.ID).Str("key", key).Str("kind", string(kind)).
				Msg("late confirmation for cancelled operation, applying anyway")
		}
		if err := apply(ctx, res); err != nil {
			c.fail(ctx, op, "apply: "+err.Error())
			return op, err
		}
		op.Status = StatusConfirmed
		op.TxHash = res.TxHash
		op.UpdatedAt = time.Now().UTC()
		_ = c.save(ctx, op)
		return op, nil
	case ledger.StatusTimedOut:
		c.fail(ctx, op, "confirmation timed out")
		return op, ErrConfirmationTimeout
	default:
		c.fail(ctx, op, res.Reason)
		return op, ErrTransactionFailed
	}
}

// Get returns the operation record by id.
func (c *Coordinator) Get(ctx context.Context, opID string) (*Operation, error) {
	raw, err := c.rdb.Get(ctx, opKey(opID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	var op Operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// LastForKey returns the most recent operation for an entity key, or a
// synthetic Idle record when none is retained.
func (c *Coordinator) LastForKey(ctx context.Context, key string) (*Operation, error) {
	id, err := c.rdb.Get(ctx, lastKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return &Operation{Key: key, Status: StatusIdle}, nil
	}
	if err != nil {
		return nil, err
	}
	op, err := c.Get(ctx, id)
	if errors.Is(err, ErrOperationNotFound) {
		return &Operation{Key: key, Status: StatusIdle}, nil
	}
	return op, err
}

// Cancel marks a Pending/Confirming operation Failed locally. The underlying
// ledger operation is not aborted; a late confirmation still applies.
func (c *Coordinator) Cancel(ctx context.Context, opID string) (*Operation, error) {
	op, err := c.Get(ctx, opID)
	if err != nil {
		return nil, err
	}
	if op.Status != StatusPending && op.Status != StatusConfirming {
		return nil, ErrNotCancellable
	}
	op.Cancelled = true
	op.Status = StatusFailed
	op.Reason = "cancelled by caller"
	op.UpdatedAt = time.Now().UTC()
	if err := c.save(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (c *Coordinator) fail(ctx context.Context, op *Operation, reason string) {
	op.Status = StatusFailed
	if op.Reason == "" {
		op.Reason = reason
	}
	op.UpdatedAt = time.Now().UTC()
	_ = c.save(ctx, op)
}

func (c *Coordinator) save(ctx context.Context, op *Operation) error {
	payload, _ := json.Marshal(op)
	if err := c.rdb.Set(ctx, opKey(op.ID), payload, c.recordTTL).Err(); err != nil {
		return err
	}
	return c.rdb.Set(ctx, lastKey(op.Key), op.ID, c.recordTTL).Err()
}
