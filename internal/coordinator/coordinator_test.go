package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vaultshield/internal/ledger"
)

func newTestCoordinator(t *testing.T, delay time.Duration) (*Coordinator, *ledger.MemLedger) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	led := ledger.NewMemLedger(delay)
	c := New(rdb, led, zerolog.Nop(), time.Minute, time.Hour, 5*time.Second)
	return c, led
}

func TestRun_ConfirmedLifecycle(t *testing.T) {
	c, _ := newTestCoordinator(t, 0)

	applied := false
	op, err := c.Run(context.Background(), "vault:abc", ledger.KindCreateVault, []byte(`{}`), func(ctx context.Context, res ledger.Result) error {
		applied = true
		if res.TxHash == "" {
			t.Fatalf("apply called without tx hash")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if !applied {
		t.Fatalf("apply not called")
	}
	if op.Status != StatusConfirmed {
		t.Fatalf("status=%s, want confirmed", op.Status)
	}
	if op.TxHash == "" {
		t.Fatalf("confirmed operation without tx hash")
	}

	// The record is retrievable by id and as the key's last operation.
	got, err := c.Get(context.Background(), op.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("stored status=%s", got.Status)
	}
	last, err := c.LastForKey(context.Background(), "vault:abc")
	if err != nil {
		t.Fatalf("LastForKey err: %v", err)
	}
	if last.ID != op.ID {
		t.Fatalf("LastForKey returned %s, want %s", last.ID, op.ID)
	}
}

func TestRun_SingleFlightPerKey(t *testing.T) {
	c, _ := newTestCoordinator(t, 200*time.Millisecond)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Run(context.Background(), "loan:1", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
			return nil
		})
		if err != nil {
			t.Errorf("first Run err: %v", err)
		}
	}()

	// Wait until the first operation holds the lock.
	go func() {
		for {
			if op, err := c.LastForKey(context.Background(), "loan:1"); err == nil && op.Status != StatusIdle {
				close(started)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	<-started

	_, err := c.Run(context.Background(), "loan:1", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
		t.Errorf("second apply must not run")
		return nil
	})
	if !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("second Run: want ErrOperationInProgress, got %v", err)
	}

	// A different key is unaffected.
	if _, err := c.Run(context.Background(), "loan:2", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
		return nil
	}); err != nil {
		t.Fatalf("different key Run err: %v", err)
	}

	wg.Wait()

	// The lock is released after completion.
	if _, err := c.Run(context.Background(), "loan:1", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
		return nil
	}); err != nil {
		t.Fatalf("Run after release err: %v", err)
	}
}

func TestRun_SlowConfirmationKeepsLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	led := ledger.NewMemLedger(300 * time.Millisecond)
	// A lock TTL shorter than the confirmation window gets clamped up, so
	// the lock cannot lapse while the first operation is still confirming.
	c := New(rdb, led, zerolog.Nop(), 50*time.Millisecond, time.Hour, 2*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Run(context.Background(), "loan:slow", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
			return nil
		}); err != nil {
			t.Errorf("first Run err: %v", err)
		}
	}()

	for {
		if op, err := c.LastForKey(context.Background(), "loan:slow"); err == nil && op.Status == StatusConfirming {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Push redis time past the configured 50ms TTL.
	mr.FastForward(100 * time.Millisecond)

	_, err := c.Run(context.Background(), "loan:slow", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
		t.Errorf("second apply must not run")
		return nil
	})
	if !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("second Run: want ErrOperationInProgress, got %v", err)
	}

	wg.Wait()

	if mr.Exists(lockKey("loan:slow")) {
		t.Fatalf("lock not released after completion")
	}
}

func TestRun_ReleasesOnlyItsOwnLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	led := ledger.NewMemLedger(200 * time.Millisecond)
	c := New(rdb, led, zerolog.Nop(), time.Minute, time.Hour, 5*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Run(context.Background(), "loan:taken", ledger.KindRepay, nil, func(ctx context.Context, res ledger.Result) error {
			return nil
		})
	}()

	for {
		if op, err := c.LastForKey(context.Background(), "loan:taken"); err == nil && op.Status == StatusConfirming {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Another holder takes over the lock mid-flight (as after an expiry).
	if err := mr.Set(lockKey("loan:taken"), "other-holder"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	wg.Wait()

	// The finished operation must not have deleted the new holder's lock.
	got, err := mr.Get(lockKey("loan:taken"))
	if err != nil {
		t.Fatalf("lock missing after completion: %v", err)
	}
	if got != "other-holder" {
		t.Fatalf("lock owner=%q, want other-holder", got)
	}
}

func TestRun_RejectedTransaction(t *testing.T) {
	c, led := newTestCoordinator(t, 0)
	led.RejectNext(ledger.KindRequestLoan, "insufficient collateral on chain")

	op, err := c.Run(context.Background(), "vault:v1", ledger.KindRequestLoan, nil, func(ctx context.Context, res ledger.Result) error {
		t.Fatalf("apply must not run for a rejected transaction")
		return nil
	})
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("want ErrTransactionFailed, got %v", err)
	}
	if op.Status != StatusFailed {
		t.Fatalf("status=%s, want failed", op.Status)
	}
	if op.Reason != "insufficient collateral on chain" {
		t.Fatalf("reason=%q", op.Reason)
	}
}

func TestRun_ConfirmationTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	led := ledger.NewMemLedger(time.Minute) // never confirms within the window
	c := New(rdb, led, zerolog.Nop(), time.Minute, time.Hour, 50*time.Millisecond)

	op, err := c.Run(context.Background(), "vault:v1", ledger.KindCloseVault, nil, func(ctx context.Context, res ledger.Result) error {
		t.Fatalf("apply must not run on timeout")
		return nil
	})
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("want ErrConfirmationTimeout, got %v", err)
	}
	if op.Status != StatusFailed {
		t.Fatalf("status=%s, want failed", op.Status)
	}
}

func TestCancel_ThenLateConfirmationStillApplies(t *testing.T) {
	c, _ := newTestCoordinator(t, 150*time.Millisecond)

	type result struct {
		op      *Operation
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		r.op, r.err = c.Run(context.Background(), "loan:9", ledger.KindLiquidate, nil, func(ctx context.Context, res ledger.Result) error {
			r.applied = true
			return nil
		})
		done <- r
	}()

	// Cancel while the operation is in flight.
	var opID string
	for {
		op, err := c.LastForKey(context.Background(), "loan:9")
		if err == nil && op.Status == StatusConfirming {
			opID = op.ID
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancelled, err := c.Cancel(context.Background(), opID)
	if err != nil {
		t.Fatalf("Cancel err: %v", err)
	}
	if cancelled.Status != StatusFailed || !cancelled.Cancelled {
		t.Fatalf("cancelled op: status=%s cancelled=%v", cancelled.Status, cancelled.Cancelled)
	}

	r := <-done
	if r.err != nil {
		t.Fatalf("Run err after cancel: %v", r.err)
	}
	if !r.applied {
		t.Fatalf("late confirmation must still apply the transition")
	}
	if r.op.Status != StatusConfirmed {
		t.Fatalf("final status=%s, want confirmed", r.op.Status)
	}
}

func TestCancel_TerminalOperation(t *testing.T) {
	c, _ := newTestCoordinator(t, 0)
	op, err := c.Run(context.Background(), "vault:v1", ledger.KindCreateVault, nil, func(ctx context.Context, res ledger.Result) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if _, err := c.Cancel(context.Background(), op.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("want ErrNotCancellable, got %v", err)
	}
}

func TestGet_UnknownOperation(t *testing.T) {
	c, _ := newTestCoordinator(t, 0)
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("want ErrOperationNotFound, got %v", err)
	}
}

func TestLastForKey_IdleWhenUnknown(t *testing.T) {
	c, _ := newTestCoordinator(t, 0)
	op, err := c.LastForKey(context.Background(), "vault:never-seen")
	if err != nil {
		t.Fatalf("LastForKey err: %v", err)
	}
	if op.Status != StatusIdle {
		t.Fatalf("status=%s, want idle", op.Status)
	}
}
