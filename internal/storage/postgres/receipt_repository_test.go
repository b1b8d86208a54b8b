package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VedalAI/swarm-control-sub000/internal/replay"
	"github.com/VedalAI/swarm-control-sub000/internal/testutil"
)

func TestReceiptRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewReceiptRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("first consume wins, later consumes see the prior entry", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC().Truncate(time.Millisecond)

		prior, err := repo.Consume(ctx, replay.Entry{
			ReceiptID:  "rcpt-1",
			OrderID:    "order-1",
			SessionID:  "sess-1",
			ConsumedAt: now,
		})
		if err != nil {
			t.Fatalf("first consume: %v", err)
		}
		if prior != nil {
			t.Fatalf("expected first consume to win, got prior %+v", prior)
		}

		prior, err = repo.Consume(ctx, replay.Entry{
			ReceiptID:  "rcpt-1",
			OrderID:    "order-2",
			SessionID:  "sess-2",
			ConsumedAt: now,
		})
		if err != nil {
			t.Fatalf("second consume: %v", err)
		}
		if prior == nil {
			t.Fatalf("expected prior entry")
		}
		if prior.OrderID != "order-1" || prior.SessionID != "sess-1" {
			t.Fatalf("unexpected prior: %+v", prior)
		}
	})

	t.Run("concurrent consumes produce exactly one winner", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()

		const attempts = 8
		var wg sync.WaitGroup
		wins := make(chan struct{}, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				prior, err := repo.Consume(ctx, replay.Entry{
					ReceiptID:  "rcpt-race",
					OrderID:    "order-1",
					SessionID:  "sess-1",
					ConsumedAt: now,
				})
				if err != nil {
					t.Errorf("consume: %v", err)
					return
				}
				if prior == nil {
					wins <- struct{}{}
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		won := 0
		for range wins {
			won++
		}
		if won != 1 {
			t.Fatalf("expected exactly one winner, got %d", won)
		}
	})
}
