package store

import (
	"context"
	"errors"
	"testing"

	"github.com/warp/production-ledger/ledger"
)

func TestWithTxCommitsOnSuccess(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendActivity(ctx, ledger.Activity{
			ID:           "act-1",
			AssemblyID:   "asm-1",
			Stage:        ledger.StageCut,
			QtyBreakdown: ledger.NewBreakdown(5),
		}); err != nil {
			return err
		}
		return tx.AppendMovement(ctx, ledger.Movement{
			ID:         "mv-1",
			AssemblyID: "asm-1",
			Kind:       ledger.MovementConsume,
		})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	acts, _ := mem.Activities(ctx, "asm-1")
	if len(acts) != 1 {
		t.Errorf("activities = %d, want 1", len(acts))
	}
	if mvs := mem.Movements("asm-1"); len(mvs) != 1 {
		t.Errorf("movements = %d, want 1", len(mvs))
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	// Writes that landed before the failure must not survive it.
	boom := errors.New("boom")
	err := mem.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendActivity(ctx, ledger.Activity{
			ID:           "act-1",
			AssemblyID:   "asm-1",
			Stage:        ledger.StageCut,
			QtyBreakdown: ledger.NewBreakdown(5),
		}); err != nil {
			return err
		}
		if err := tx.AppendMovement(ctx, ledger.Movement{
			ID:         "mv-1",
			AssemblyID: "asm-1",
			Kind:       ledger.MovementConsume,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx = %v, want the fn error", err)
	}

	acts, _ := mem.Activities(ctx, "asm-1")
	if len(acts) != 0 {
		t.Errorf("activities after rollback = %d, want 0", len(acts))
	}
	if mvs := mem.Movements("asm-1"); len(mvs) != 0 {
		t.Errorf("movements after rollback = %d, want 0", len(mvs))
	}
}

func TestWithTxReadsSeeOwnWrites(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.AppendActivity(ctx, ledger.Activity{
		ID:           "act-0",
		AssemblyID:   "asm-1",
		Stage:        ledger.StageCut,
		QtyBreakdown: ledger.NewBreakdown(10),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := mem.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendActivity(ctx, ledger.Activity{
			ID:           "act-1",
			AssemblyID:   "asm-1",
			Stage:        ledger.StageSew,
			QtyBreakdown: ledger.NewBreakdown(4),
		}); err != nil {
			return err
		}
		acts, err := tx.Activities(ctx, "asm-1")
		if err != nil {
			return err
		}
		if len(acts) != 2 {
			t.Errorf("in-transaction activities = %d, want 2", len(acts))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}
