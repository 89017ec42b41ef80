package audit

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	store, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStore はStoreの記録と取得を検証する。
func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("記録した監査ログが新しい順に取得できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openTestStore(t, ":memory:")
		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		require.NoError(t, store.Record(ctx, Event{
			Kind: KindSignUp, Email: "a@example.com", Outcome: OutcomeSuccess,
			Status: 200, RemoteAddr: "192.0.2.1", RequestID: "r1", CreatedAt: base,
		}))
		require.NoError(t, store.Record(ctx, Event{
			Kind: KindLogin, Email: "a@example.com", Outcome: OutcomeFailure,
			Status: 400, RemoteAddr: "192.0.2.1", RequestID: "r2", CreatedAt: base.Add(time.Second),
		}))

		events, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)

		assert.Equal(t, KindLogin, events[0].Kind)
		assert.Equal(t, OutcomeFailure, events[0].Outcome)
		assert.Equal(t, 400, events[0].Status)
		assert.Equal(t, "r2", events[0].RequestID)
		assert.True(t, base.Add(time.Second).Equal(events[0].CreatedAt))

		assert.Equal(t, KindSignUp, events[1].Kind)
		assert.Equal(t, "a@example.com", events[1].Email)
	})

	t.Run("件数の上限が守られること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openTestStore(t, ":memory:")
		for range 5 {
			require.NoError(t, store.Record(ctx, Event{Kind: KindLogout, Outcome: OutcomeSuccess, Status: 200}))
		}

		events, err := store.Recent(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("作成日時が未設定の場合は現在時刻が入ること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openTestStore(t, ":memory:")
		fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
		store.now = func() time.Time { return fixed }

		require.NoError(t, store.Record(ctx, Event{Kind: KindLogin, Outcome: OutcomeThrottled, Status: 429}))

		events, err := store.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, fixed.Equal(events[0].CreatedAt))
	})

	t.Run("ファイルを開き直しても記録が残りマイグレーションが再適用されないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "audit.db")

		first, err := Open(ctx, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		require.NoError(t, first.Record(ctx, Event{Kind: KindSignUp, Outcome: OutcomeSuccess, Status: 200}))
		require.NoError(t, first.Close())

		second := openTestStore(t, path)
		events, err := second.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
