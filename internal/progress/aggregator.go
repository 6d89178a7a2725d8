package progress

import (
	"context"
	"sort"
	"time"

	"audiora/internal/book"
	"audiora/internal/logger"
	"audiora/internal/session"
	"audiora/pkg/models"
)

const recentActivityLimit = 10

// Aggregator reduces a user's book list and session history into summary
// statistics. Everything is recomputed per call; session lists are capped
// at 100 entries so the full scan stays cheap.
type Aggregator struct {
	books    *book.Repo
	sessions *session.Recorder
	log      *logger.Logger
	now      func() time.Time
}

func NewAggregator(books *book.Repo, sessions *session.Recorder, baseLog *logger.Logger) *Aggregator {
	return &Aggregator{
		books:    books,
		sessions: sessions,
		log:      baseLog.With("component", "progress"),
		now:      time.Now,
	}
}

// Stats computes the full ProgressStats for one user. A user with no
// books or sessions gets all-zero stats, not an error. The book and
// session lists are fetched independently; a session may reference a
// book that no longer exists.
func (a *Aggregator) Stats(ctx context.Context, userID string) (models.ProgressStats, error) {
	books, err := a.books.ListByUser(ctx, userID)
	if err != nil {
		return models.ProgressStats{}, err
	}
	sessions, err := a.sessions.ListByUser(ctx, userID)
	if err != nil {
		return models.ProgressStats{}, err
	}

	now := a.now().UTC()
	stats := models.ProgressStats{
		TotalBooksRead:            countCompleted(books),
		TotalListeningTimeSeconds: totalListeningSeconds(sessions),
		CurrentStreak:             currentStreak(sessions, now),
		ActiveDaysThisWeek:        activeDaysThisWeek(sessions, now),
		WeeklyProgressSeconds:     weeklyProgressSeconds(sessions, now),
		AverageSessionSeconds:     averageSessionSeconds(sessions),
		FavoriteGenre:             favoriteGenre(books),
		RecentActivity:            recentActivity(sessions, books),
	}
	return stats, nil
}

func countCompleted(books []models.Book) int {
	n := 0
	for _, b := range books {
		if b.Progress >= 100 {
			n++
		}
	}
	return n
}

func totalListeningSeconds(sessions []models.ReadingSession) int {
	total := 0
	for _, s := range sessions {
		total += s.DurationSeconds
	}
	return total
}

// currentStreak counts consecutive calendar days with at least one
// session, walking back from today. A day-in-progress without a session
// yet does not break the streak; counting then starts at yesterday.
func currentStreak(sessions []models.ReadingSession, now time.Time) int {
	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		days[s.StartTime.UTC().Format("2006-01-02")] = true
	}
	if len(days) == 0 {
		return 0
	}

	day := now
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// activeDaysThisWeek is the legacy streak semantic: how many of the last
// 7 calendar days had at least one session.
func activeDaysThisWeek(sessions []models.ReadingSession, now time.Time) int {
	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		days[s.StartTime.UTC().Format("2006-01-02")] = true
	}
	active := 0
	for i := 0; i < 7; i++ {
		if days[now.AddDate(0, 0, -i).Format("2006-01-02")] {
			active++
		}
	}
	return active
}

func weeklyProgressSeconds(sessions []models.ReadingSession, now time.Time) int {
	cutoff := now.AddDate(0, 0, -7)
	total := 0
	for _, s := range sessions {
		if s.StartTime.After(cutoff) {
			total += s.DurationSeconds
		}
	}
	return total
}

func averageSessionSeconds(sessions []models.ReadingSession) int {
	ended := 0
	total := 0
	for _, s := range sessions {
		if s.EndTime != nil {
			ended++
			total += s.DurationSeconds
		}
	}
	if ended == 0 {
		return 0
	}
	return total / ended
}

// favoriteGenre is the mode of the books' genres; ties go to the genre
// seen first in list order.
func favoriteGenre(books []models.Book) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, b := range books {
		if b.Genre == "" {
			continue
		}
		if _, seen := counts[b.Genre]; !seen {
			order = append(order, b.Genre)
		}
		counts[b.Genre]++
	}
	best := ""
	bestCount := 0
	for _, g := range order {
		if counts[g] > bestCount {
			best = g
			bestCount = counts[g]
		}
	}
	return best
}

// recentActivity joins the 10 most recent sessions with their book
// titles. Sessions pointing at a vanished book fall back to
// "Unknown Book".
func recentActivity(sessions []models.ReadingSession, books []models.Book) []models.ActivityEntry {
	titles := make(map[string]string, len(books))
	for _, b := range books {
		titles[b.ID] = b.Title
	}

	sorted := make([]models.ReadingSession, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})
	if len(sorted) > recentActivityLimit {
		sorted = sorted[:recentActivityLimit]
	}

	entries := make([]models.ActivityEntry, 0, len(sorted))
	for _, s := range sorted {
		title, ok := titles[s.BookID]
		if !ok {
			title = "Unknown Book"
		}
		entries = append(entries, models.ActivityEntry{
			SessionID:       s.ID,
			BookID:          s.BookID,
			BookTitle:       title,
			StartTime:       s.StartTime,
			DurationSeconds: s.DurationSeconds,
		})
	}
	return entries
}
