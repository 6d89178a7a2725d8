package book

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/pkg/models"
)

var ErrNotFound = errors.New("book: not found")

// Repo stores each user's books as a single JSON list under
// user:<id>:books. Mutations go through the store's CAS Update so
// concurrent writers cannot drop each other's changes.
type Repo struct {
	store kvstore.Store
	log   *logger.Logger
}

func NewRepo(store kvstore.Store, baseLog *logger.Logger) *Repo {
	return &Repo{store: store, log: baseLog.With("repo", "book")}
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]models.Book, error) {
	raw, err := r.store.Get(ctx, kvstore.UserBooksKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.Book{}, nil
	}
	if err != nil {
		return nil, err
	}
	var books []models.Book
	if err := json.Unmarshal(raw, &books); err != nil {
		return nil, err
	}
	return books, nil
}

type CreateParams struct {
	Title           string
	Author          string
	Genre           string
	CoverURL        string
	DurationSeconds int
}

func (r *Repo) Create(ctx context.Context, userID string, p CreateParams) (models.Book, error) {
	now := time.Now().UTC()
	b := models.Book{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            p.Title,
		Author:           p.Author,
		Genre:            p.Genre,
		CoverURL:         p.CoverURL,
		DurationSeconds:  p.DurationSeconds,
		ConversionStatus: models.ConversionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := r.store.Update(ctx, kvstore.UserBooksKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		books, err := decodeList(cur)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
		return json.Marshal(books)
	})
	if err != nil {
		return models.Book{}, err
	}
	r.log.Info("book created", "user_id", userID, "book_id", b.ID, "title", b.Title)
	return b, nil
}

func (r *Repo) GetByID(ctx context.Context, userID, bookID string) (models.Book, error) {
	books, err := r.ListByUser(ctx, userID)
	if err != nil {
		return models.Book{}, err
	}
	for _, b := range books {
		if b.ID == bookID {
			return b, nil
		}
	}
	return models.Book{}, ErrNotFound
}

// UpdateProgress sets a book's progress, clamped to [0,100]. Position and
// chapter are optional.
func (r *Repo) UpdateProgress(ctx context.Context, userID, bookID string, progress int, position, chapter *int) (models.Book, error) {
	return r.mutate(ctx, userID, bookID, func(b *models.Book) {
		b.Progress = models.ClampProgress(progress)
		if position != nil {
			b.CurrentPosition = *position
		}
		if chapter != nil {
			b.CurrentChapter = *chapter
		}
	})
}

// UpdateStatus moves a book through the conversion lifecycle; completed
// books get a converted_at stamp and their audio URL.
func (r *Repo) UpdateStatus(ctx context.Context, userID, bookID, status string, audioURL *string) (models.Book, error) {
	return r.mutate(ctx, userID, bookID, func(b *models.Book) {
		b.ConversionStatus = status
		if audioURL != nil {
			b.AudioURL = *audioURL
		}
		if status == models.ConversionCompleted && b.ConvertedAt == nil {
			now := time.Now().UTC()
			b.ConvertedAt = &now
		}
	})
}

// ApplySessionEnd recomputes a book's progress from a session's final
// position. Books without a known duration are left untouched; an
// unknown bookID is not an error for the caller's primary path.
func (r *Repo) ApplySessionEnd(ctx context.Context, userID, bookID string, endPosition int) (models.Book, bool, error) {
	b, err := r.mutate(ctx, userID, bookID, func(b *models.Book) {
		if b.DurationSeconds <= 0 {
			return
		}
		pct := int(float64(endPosition)/float64(b.DurationSeconds)*100 + 0.5)
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		b.Progress = pct
		b.CurrentPosition = endPosition
	})
	if errors.Is(err, ErrNotFound) {
		return models.Book{}, false, nil
	}
	if err != nil {
		return models.Book{}, false, err
	}
	return b, b.DurationSeconds > 0, nil
}

func (r *Repo) mutate(ctx context.Context, userID, bookID string, fn func(b *models.Book)) (models.Book, error) {
	var out models.Book
	err := r.store.Update(ctx, kvstore.UserBooksKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		books, err := decodeList(cur)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i := range books {
			if books[i].ID == bookID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotFound
		}
		fn(&books[idx])
		books[idx].UpdatedAt = time.Now().UTC()
		out = books[idx]
		return json.Marshal(books)
	})
	return out, err
}

func decodeList(cur json.RawMessage) ([]models.Book, error) {
	if cur == nil {
		return []models.Book{}, nil
	}
	var books []models.Book
	if err := json.Unmarshal(cur, &books); err != nil {
		return nil, err
	}
	return books, nil
}
