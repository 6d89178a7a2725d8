package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"audiora/internal/kvstore"
	"audiora/pkg/models"
)

// LoadBooksFromJSON reads a sample-book file for local development.
func LoadBooksFromJSON(jsonPath string) ([]models.Book, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read books json: %w", err)
	}

	var list []models.Book
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal books json: %w", err)
	}
	return list, nil
}

// SeedBooks installs sample books onto a user's shelf, skipping ids that
// already exist. Used only for local development.
func SeedBooks(ctx context.Context, store kvstore.Store, userID string, books []models.Book) (int, error) {
	inserted := 0
	err := store.Update(ctx, kvstore.UserBooksKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		var existing []models.Book
		if cur != nil {
			if err := json.Unmarshal(cur, &existing); err != nil {
				return nil, fmt.Errorf("decode existing books: %w", err)
			}
		}
		have := make(map[string]bool, len(existing))
		for _, b := range existing {
			have[b.ID] = true
		}

		inserted = 0
		now := time.Now().UTC()
		for _, b := range books {
			if b.ID == "" || have[b.ID] {
				continue
			}
			b.UserID = userID
			if b.ConversionStatus == "" {
				b.ConversionStatus = models.ConversionPending
			}
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
			b.Progress = models.ClampProgress(b.Progress)
			existing = append(existing, b)
			inserted++
		}
		return json.Marshal(existing)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
