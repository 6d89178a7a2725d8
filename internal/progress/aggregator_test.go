package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"audiora/internal/book"
	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/internal/session"
	"audiora/pkg/models"
)

func newTestAggregator(t *testing.T) (*Aggregator, *book.Repo, kvstore.Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		t.Fatalf("schema: %v", err)
	}

	store := kvstore.New(db, logger.NewNop())
	books := book.NewRepo(store, logger.NewNop())
	sessions := session.NewRecorder(store, books, logger.NewNop())
	return NewAggregator(books, sessions, logger.NewNop()), books, store
}

func writeSessions(t *testing.T, store kvstore.Store, userID string, sessions []models.ReadingSession) {
	t.Helper()
	b, err := json.Marshal(sessions)
	if err != nil {
		t.Fatalf("marshal sessions: %v", err)
	}
	if err := store.Set(context.Background(), kvstore.UserSessionsKey(userID), b); err != nil {
		t.Fatalf("write sessions: %v", err)
	}
}

func TestStatsEmptyUser(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	stats, err := agg.Stats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBooksRead != 0 || stats.TotalListeningTimeSeconds != 0 ||
		stats.CurrentStreak != 0 || stats.FavoriteGenre != "" {
		t.Errorf("expected all-zero stats, got %+v", stats)
	}
	if len(stats.RecentActivity) != 0 {
		t.Errorf("expected empty activity, got %d", len(stats.RecentActivity))
	}
}

func TestStatsFull(t *testing.T) {
	agg, books, store := newTestAggregator(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }

	fiction1, _ := books.Create(ctx, "u1", book.CreateParams{Title: "Emma", Genre: "Fiction"})
	fiction2, _ := books.Create(ctx, "u1", book.CreateParams{Title: "Persuasion", Genre: "Fiction"})
	scifi, _ := books.Create(ctx, "u1", book.CreateParams{Title: "Dune", Genre: "Sci-Fi"})
	if _, err := books.UpdateProgress(ctx, "u1", fiction1.ID, 100, nil, nil); err != nil {
		t.Fatalf("complete book: %v", err)
	}
	if _, err := books.UpdateProgress(ctx, "u1", fiction2.ID, 99, nil, nil); err != nil {
		t.Fatalf("progress book: %v", err)
	}

	end := func(ts time.Time) *time.Time { return &ts }
	sessions := []models.ReadingSession{
		{ID: "s-today", BookID: scifi.ID, StartTime: now.Add(-2 * time.Hour), EndTime: end(now.Add(-time.Hour)), DurationSeconds: 3600},
		{ID: "s-yesterday", BookID: fiction1.ID, StartTime: now.AddDate(0, 0, -1), EndTime: end(now.AddDate(0, 0, -1).Add(30 * time.Minute)), DurationSeconds: 1800},
		{ID: "s-old", BookID: "deleted-book", StartTime: now.AddDate(0, 0, -20), EndTime: end(now.AddDate(0, 0, -20).Add(10 * time.Minute)), DurationSeconds: 600},
	}
	writeSessions(t, store, "u1", sessions)

	stats, err := agg.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.TotalBooksRead != 1 {
		t.Errorf("total books read = %d, want 1", stats.TotalBooksRead)
	}
	if stats.TotalListeningTimeSeconds != 6000 {
		t.Errorf("total listening = %d, want 6000", stats.TotalListeningTimeSeconds)
	}
	if stats.CurrentStreak != 2 {
		t.Errorf("streak = %d, want 2", stats.CurrentStreak)
	}
	if stats.ActiveDaysThisWeek != 2 {
		t.Errorf("active days = %d, want 2", stats.ActiveDaysThisWeek)
	}
	if stats.WeeklyProgressSeconds != 5400 {
		t.Errorf("weekly = %d, want 5400", stats.WeeklyProgressSeconds)
	}
	if stats.AverageSessionSeconds != 2000 {
		t.Errorf("average = %d, want 2000", stats.AverageSessionSeconds)
	}
	if stats.FavoriteGenre != "Fiction" {
		t.Errorf("favorite genre = %q, want Fiction", stats.FavoriteGenre)
	}

	if len(stats.RecentActivity) != 3 {
		t.Fatalf("activity length = %d", len(stats.RecentActivity))
	}
	if stats.RecentActivity[0].SessionID != "s-today" {
		t.Error("activity not sorted by start time descending")
	}
	if stats.RecentActivity[2].BookTitle != "Unknown Book" {
		t.Errorf("deleted book title = %q, want Unknown Book", stats.RecentActivity[2].BookTitle)
	}
}

func TestCurrentStreak(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	cases := []struct {
		name   string
		starts []time.Time
		want   int
	}{
		{"no sessions", nil, 0},
		{"today only", []time.Time{day(0)}, 1},
		{"three consecutive ending today", []time.Time{day(0), day(-1), day(-2)}, 3},
		{"gap breaks streak", []time.Time{day(0), day(-2), day(-3)}, 1},
		{"today idle keeps yesterday's streak", []time.Time{day(-1), day(-2)}, 2},
		{"stale history", []time.Time{day(-5), day(-6)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var sessions []models.ReadingSession
			for _, s := range tc.starts {
				sessions = append(sessions, models.ReadingSession{StartTime: s})
			}
			if got := currentStreak(sessions, now); got != tc.want {
				t.Errorf("streak = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFavoriteGenreTieBreak(t *testing.T) {
	books := []models.Book{
		{Genre: "Fiction"},
		{Genre: "Sci-Fi"},
		{Genre: "Sci-Fi"},
		{Genre: "Fiction"},
	}
	// tie: first-seen genre wins
	if got := favoriteGenre(books); got != "Fiction" {
		t.Errorf("favorite = %q, want Fiction", got)
	}

	books = append(books, models.Book{Genre: "Sci-Fi"})
	if got := favoriteGenre(books); got != "Sci-Fi" {
		t.Errorf("favorite = %q, want Sci-Fi", got)
	}
}

func TestRecentActivityCappedAtTen(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var sessions []models.ReadingSession
	for i := 0; i < 15; i++ {
		sessions = append(sessions, models.ReadingSession{
			ID:        string(rune('a' + i)),
			StartTime: base.Add(time.Duration(i) * time.Hour),
		})
	}

	entries := recentActivity(sessions, nil)
	if len(entries) != 10 {
		t.Fatalf("entries = %d, want 10", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].StartTime.After(entries[i-1].StartTime) {
			t.Fatal("activity not sorted descending")
		}
	}
}
