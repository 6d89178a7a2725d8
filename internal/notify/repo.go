package notify

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

var ErrNotFound = errors.New("notify: notification not found")

// maxNotifications bounds each user's notification list, oldest dropped
// first.
const maxNotifications = 50

// Repo persists per-user notification lists, newest first. Delivery to
// live websocket clients is the Hub's job; the repo only stores.
type Repo struct {
	store kvstore.Store
	log   *logger.Logger
}

func NewRepo(store kvstore.Store, baseLog *logger.Logger) *Repo {
	return &Repo{store: store, log: baseLog.With("repo", "notify")}
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	raw, err := r.store.Get(ctx, kvstore.UserNotificationsKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.Notification{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []models.Notification
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repo) Create(ctx context.Context, userID, notifType, title, message string) (models.Notification, error) {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	err := r.store.Update(ctx, kvstore.UserNotificationsKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		var list []models.Notification
		if cur != nil {
			if err := json.Unmarshal(cur, &list); err != nil {
				return nil, err
			}
		}
		list = append([]models.Notification{n}, list...)
		if len(list) > maxNotifications {
			list = list[:maxNotifications]
		}
		return json.Marshal(list)
	})
	if err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

func (r *Repo) MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	var out models.Notification
	err := r.store.Update(ctx, kvstore.UserNotificationsKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		var list []models.Notification
		if err := json.Unmarshal(cur, &list); err != nil {
			return nil, err
		}
		for i := range list {
			if list[i].ID == notificationID {
				list[i].Read = true
				out = list[i]
				return json.Marshal(list)
			}
		}
		return nil, ErrNotFound
	})
	return out, err
}
