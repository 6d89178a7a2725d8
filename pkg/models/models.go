package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Conversion lifecycle of a book in the PDF-to-audio pipeline. The
// conversion itself runs in an external worker; this service only records
// the state.
const (
	ConversionPending    = "pending"
	ConversionProcessing = "processing"
	ConversionCompleted  = "completed"
	ConversionFailed     = "failed"
)

// User as returned by the API. The stored record carries the password
// hash separately; it never appears on the wire.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Preferences holds per-user playback and UI settings.
type Preferences struct {
	AudioSpeed   float64 `json:"audio_speed"`
	VoiceType    string  `json:"voice_type"`
	Language     string  `json:"language"`
	AutoPlayNext bool    `json:"auto_play_next"`
	Theme        string  `json:"theme"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		AudioSpeed:   1.0,
		VoiceType:    "standard",
		Language:     "en",
		AutoPlayNext: true,
		Theme:        "light",
	}
}

type Book struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Author           string     `json:"author"`
	CoverURL         string     `json:"cover_url,omitempty"`
	AudioURL         string     `json:"audio_url,omitempty"`
	DurationSeconds  int        `json:"duration_seconds"`
	Progress         int        `json:"progress"`
	CurrentPosition  int        `json:"current_position"`
	CurrentChapter   int        `json:"current_chapter"`
	Genre            string     `json:"genre"`
	ConversionStatus string     `json:"conversion_status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ConvertedAt      *time.Time `json:"converted_at,omitempty"`
}

type ReadingSession struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	BookID            string     `json:"book_id"`
	StartTime         time.Time  `json:"start_time"`
	StartPosition     int        `json:"start_position"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	EndPosition       int        `json:"end_position"`
	DurationSeconds   int        `json:"duration_seconds"`
	ChaptersCompleted []string   `json:"chapters_completed"`
}

// ProgressStats is derived on demand from the book and session lists; it
// is never stored.
type ProgressStats struct {
	TotalBooksRead            int             `json:"total_books_read"`
	TotalListeningTimeSeconds int             `json:"total_listening_time_seconds"`
	CurrentStreak             int             `json:"current_streak"`
	ActiveDaysThisWeek        int             `json:"active_days_this_week"`
	WeeklyProgressSeconds     int             `json:"weekly_progress_seconds"`
	AverageSessionSeconds     int             `json:"average_session_seconds"`
	FavoriteGenre             string          `json:"favorite_genre"`
	RecentActivity            []ActivityEntry `json:"recent_activity"`
}

// ActivityEntry is one row of the recent-activity feed: a session joined
// with its book title.
type ActivityEntry struct {
	SessionID       string    `json:"session_id"`
	BookID          string    `json:"book_id"`
	BookTitle       string    `json:"book_title"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds int       `json:"duration_seconds"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgressUpdate is broadcast over the TCP sync stream whenever a book's
// progress changes, so companion devices can follow along.
type ProgressUpdate struct {
	UserID    string `json:"user_id"`
	BookID    string `json:"book_id"`
	Progress  int    `json:"progress"`
	Position  int    `json:"position"`
	Timestamp int64  `json:"timestamp"`
}

type AnalyticsEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	Type      string            `json:"type"`
	ErrorType string            `json:"error_type,omitempty"`
	Message   string            `json:"message,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// DurationSeconds accepts either an integer number of seconds or a legacy
// "Xh Ym" string on the wire and normalizes to seconds. Stored values are
// always plain seconds.
type DurationSeconds int

var hoursMinutesRe = regexp.MustCompile(`^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?\s*$`)

func (d *DurationSeconds) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("duration must not be negative")
		}
		*d = DurationSeconds(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be seconds or an \"Xh Ym\" string")
	}
	secs, err := ParseHoursMinutes(s)
	if err != nil {
		return err
	}
	*d = DurationSeconds(secs)
	return nil
}

func (d DurationSeconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(d))
}

// ParseHoursMinutes converts strings like "2h 15m", "45m" or "3h" to
// seconds.
func ParseHoursMinutes(s string) (int, error) {
	m := hoursMinutesRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	hours := 0
	mins := 0
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	if m[2] != "" {
		mins, _ = strconv.Atoi(m[2])
	}
	return hours*3600 + mins*60, nil
}

// ClampProgress bounds a progress percentage to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
