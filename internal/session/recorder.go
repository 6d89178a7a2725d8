package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"audiora/internal/book"
	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/pkg/models"
)

var ErrNotFound = errors.New("session: not found")

// maxSessions bounds each user's session history; the oldest entries are
// dropped when a new session pushes the list past the cap.
const maxSessions = 100

// Recorder creates and closes reading sessions. Each session is stored
// under its own key and mirrored into the user's newest-first session
// list, which the aggregator reads.
type Recorder struct {
	store kvstore.Store
	books *book.Repo
	log   *logger.Logger
	now   func() time.Time
}

func NewRecorder(store kvstore.Store, books *book.Repo, baseLog *logger.Logger) *Recorder {
	return &Recorder{
		store: store,
		books: books,
		log:   baseLog.With("repo", "session"),
		now:   time.Now,
	}
}

func (r *Recorder) Start(ctx context.Context, userID, bookID string, startPosition int) (models.ReadingSession, error) {
	s := models.ReadingSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		BookID:            bookID,
		StartTime:         r.now().UTC(),
		StartPosition:     startPosition,
		ChaptersCompleted: []string{},
	}

	err := r.store.Update(ctx, kvstore.UserSessionsKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		sessions, err := decodeList(cur)
		if err != nil {
			return nil, err
		}
		sessions = append([]models.ReadingSession{s}, sessions...)
		if len(sessions) > maxSessions {
			sessions = sessions[:maxSessions]
		}
		return json.Marshal(sessions)
	})
	if err != nil {
		return models.ReadingSession{}, err
	}

	b, err := json.Marshal(s)
	if err != nil {
		return models.ReadingSession{}, err
	}
	if err := r.store.Set(ctx, kvstore.SessionKey(s.ID), b); err != nil {
		return models.ReadingSession{}, err
	}
	r.log.Debug("session started", "user_id", userID, "book_id", bookID, "session_id", s.ID)
	return s, nil
}

// End closes a session, computing its duration in whole seconds. Clock
// skew between start and end can never produce a negative duration. The
// owning book's progress is then recomputed from the end position; a
// missing book or an unknown duration leaves progress untouched without
// failing the request.
func (r *Recorder) End(ctx context.Context, userID, sessionID string, endPosition int, chaptersCompleted []string) (models.ReadingSession, error) {
	var out models.ReadingSession
	err := r.store.Update(ctx, kvstore.UserSessionsKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		sessions, err := decodeList(cur)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i := range sessions {
			if sessions[i].ID == sessionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotFound
		}

		s := &sessions[idx]
		now := r.now().UTC()
		s.EndTime = &now
		s.EndPosition = endPosition
		if chaptersCompleted != nil {
			s.ChaptersCompleted = chaptersCompleted
		}
		dur := int(now.Sub(s.StartTime).Seconds())
		if dur < 0 {
			dur = 0
		}
		s.DurationSeconds = dur
		out = *s
		return json.Marshal(sessions)
	})
	if err != nil {
		return models.ReadingSession{}, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := r.store.Set(ctx, kvstore.SessionKey(out.ID), b); err != nil {
			r.log.Warn("session key write failed", "session_id", out.ID, "error", err)
		}
	}

	if _, updated, err := r.books.ApplySessionEnd(ctx, userID, out.BookID, endPosition); err != nil {
		r.log.Warn("book progress recompute failed", "book_id", out.BookID, "error", err)
	} else if !updated {
		r.log.Debug("book progress unchanged", "book_id", out.BookID)
	}
	return out, nil
}

func (r *Recorder) ListByUser(ctx context.Context, userID string) ([]models.ReadingSession, error) {
	raw, err := r.store.Get(ctx, kvstore.UserSessionsKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.ReadingSession{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeList(raw)
}

func decodeList(cur json.RawMessage) ([]models.ReadingSession, error) {
	if cur == nil {
		return []models.ReadingSession{}, nil
	}
	var sessions []models.ReadingSession
	if err := json.Unmarshal(cur, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
