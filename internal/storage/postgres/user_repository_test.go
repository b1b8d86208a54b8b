package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/VedalAI/swarm-control-sub000/internal/testutil"
)

func TestUserRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewUserRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("AddSession is idempotent and HasSession finds it", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()

		if err := repo.AddSession(ctx, "user-1", "sess-1", now); err != nil {
			t.Fatalf("add session: %v", err)
		}
		if err := repo.AddSession(ctx, "user-1", "sess-1", now); err != nil {
			t.Fatalf("re-add session: %v", err)
		}

		ok, err := repo.HasSession(ctx, "user-1", "sess-1")
		if err != nil {
			t.Fatalf("has session: %v", err)
		}
		if !ok {
			t.Fatalf("expected session to exist")
		}

		ok, err = repo.HasSession(ctx, "user-1", "sess-2")
		if err != nil {
			t.Fatalf("has session: %v", err)
		}
		if ok {
			t.Fatalf("expected unknown session")
		}
	})

	t.Run("sessions are scoped per user", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()

		if err := repo.AddSession(ctx, "user-1", "sess-1", now); err != nil {
			t.Fatalf("add session: %v", err)
		}

		ok, err := repo.HasSession(ctx, "user-2", "sess-1")
		if err != nil {
			t.Fatalf("has session: %v", err)
		}
		if ok {
			t.Fatalf("session must not leak across users")
		}
	})

	t.Run("Ban sticks and repeated bans keep the first reason", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()

		banned, err := repo.IsBanned(ctx, "user-1")
		if err != nil {
			t.Fatalf("is banned: %v", err)
		}
		if banned {
			t.Fatalf("fresh user must not be banned")
		}

		if err := repo.Ban(ctx, "user-1", "receipt replay", now); err != nil {
			t.Fatalf("ban: %v", err)
		}
		if err := repo.Ban(ctx, "user-1", "second reason", now); err != nil {
			t.Fatalf("re-ban: %v", err)
		}

		banned, err = repo.IsBanned(ctx, "user-1")
		if err != nil {
			t.Fatalf("is banned: %v", err)
		}
		if !banned {
			t.Fatalf("expected user to be banned")
		}

		var reason string
		if err := pool.QueryRow(ctx, `SELECT reason FROM bans WHERE user_id = $1`, "user-1").Scan(&reason); err != nil {
			t.Fatalf("query reason: %v", err)
		}
		if reason != "receipt replay" {
			t.Fatalf("expected first reason to win, got %q", reason)
		}
	})
}
