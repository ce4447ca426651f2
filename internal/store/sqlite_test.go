package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/containerd/errdefs"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "drawings.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()
	created := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	id, err := s.Create(ctx, &domain.Drawing{
		Prompt:           "猫",
		PromptType:       domain.PromptToday,
		TimeLimitSeconds: 180,
		ImagePath:        "drawings/a.png",
		CreatedAt:        created,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	got, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Prompt != "猫" || got.PromptType != domain.PromptToday || got.TimeLimitSeconds != 180 {
		t.Errorf("unexpected drawing %+v", got)
	}
	if got.ImagePath != "drawings/a.png" {
		t.Errorf("unexpected image path %q", got.ImagePath)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	_, err := s.GetByID(context.Background(), 999)
	if !errdefs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteStore_ListRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, &domain.Drawing{
			Prompt:           "p",
			PromptType:       domain.PromptRandom,
			TimeLimitSeconds: 60,
			ImagePath:        "drawings/x.png",
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	// Same timestamp as the newest: the higher id wins.
	tieID, err := s.Create(ctx, &domain.Drawing{
		Prompt: "tie", PromptType: domain.PromptRandom, TimeLimitSeconds: 60,
		ImagePath: "drawings/y.png", CreatedAt: base.Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create tie failed: %v", err)
	}

	list, err := s.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 drawings, got %d", len(list))
	}
	if list[0].ID != tieID {
		t.Errorf("expected newest id %d first, got %d", tieID, list[0].ID)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatalf("list not newest-first at %d: %v after %v", i, list[i].CreatedAt, list[i-1].CreatedAt)
		}
	}
}

func TestSQLiteStore_RejectsUnknownPromptType(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	_, err := s.Create(context.Background(), &domain.Drawing{
		Prompt: "p", PromptType: "weekly", TimeLimitSeconds: 60, ImagePath: "x",
	})
	if err == nil {
		t.Fatal("expected check constraint to reject prompt type")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "mysql", "", ""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSQLiteStore_HasImage(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, &domain.Drawing{
		Prompt:           "犬",
		PromptType:       domain.PromptRandom,
		TimeLimitSeconds: 60,
		ImagePath:        "drawings/kept.png",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for p, want := range map[string]bool{"drawings/kept.png": true, "drawings/orphan.png": false} {
		got, err := s.HasImage(ctx, p)
		if err != nil {
			t.Fatalf("HasImage(%q): %v", p, err)
		}
		if got != want {
			t.Errorf("HasImage(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	// Hold two connections at once so the pool cannot hand back the same one.
	for i := 0; i < 2; i++ {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn failed: %v", err)
		}
		defer conn.Close()

		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("connection %d: journal_mode = %q, want wal", i, mode)
		}

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("busy_timeout: %v", err)
		}
		if timeout != 5000 {
			t.Errorf("connection %d: busy_timeout = %d, want 5000", i, timeout)
		}
	}
}
