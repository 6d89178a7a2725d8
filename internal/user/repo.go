package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/pkg/models"
)

var (
	ErrEmailTaken         = errors.New("user: email already registered")
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	ErrNotFound           = errors.New("user: not found")
)

// record is the stored shape; the password hash never leaves this
// package.
type record struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

type Repo struct {
	store kvstore.Store
	log   *logger.Logger
}

func NewRepo(store kvstore.Store, baseLog *logger.Logger) *Repo {
	return &Repo{store: store, log: baseLog.With("repo", "user")}
}

func (r *Repo) Create(ctx context.Context, email, password, name string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	rec := record{
		User: models.User{
			ID:          uuid.NewString(),
			Email:       email,
			Name:        name,
			Preferences: models.DefaultPreferences(),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: string(hash),
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return models.User{}, err
	}

	// The email index doubles as the uniqueness check: the CAS insert
	// fails the whole signup when the key already exists.
	err = r.store.Update(ctx, kvstore.EmailKey(email), func(cur json.RawMessage) (json.RawMessage, error) {
		if cur != nil {
			return nil, ErrEmailTaken
		}
		return json.Marshal(rec.ID)
	})
	if err != nil {
		return models.User{}, err
	}

	if err := r.store.Set(ctx, kvstore.UserKey(rec.ID), b); err != nil {
		// release the claimed email so a retry is not stuck on 409
		if delErr := r.store.Delete(ctx, kvstore.EmailKey(email)); delErr != nil {
			r.log.Warn("email index rollback failed", "email", email, "error", delErr)
		}
		return models.User{}, err
	}
	r.log.Info("user created", "user_id", rec.ID)
	return rec.User, nil
}

func (r *Repo) VerifyLogin(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	raw, err := r.store.Get(ctx, kvstore.EmailKey(email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	var userID string
	if err := json.Unmarshal(raw, &userID); err != nil {
		return models.User{}, err
	}

	rec, err := r.get(ctx, userID)
	if err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return rec.User, nil
}

func (r *Repo) Get(ctx context.Context, userID string) (models.User, error) {
	rec, err := r.get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	return rec.User, nil
}

// ProfileUpdate carries the optional profile fields; nil means leave
// unchanged.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

func (r *Repo) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (models.User, error) {
	var out models.User
	err := r.store.Update(ctx, kvstore.UserKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		var rec record
		if err := json.Unmarshal(cur, &rec); err != nil {
			return nil, err
		}
		if upd.Name != nil {
			rec.Name = *upd.Name
		}
		if upd.AvatarURL != nil {
			rec.AvatarURL = *upd.AvatarURL
		}
		rec.UpdatedAt = time.Now().UTC()
		out = rec.User
		return json.Marshal(rec)
	})
	return out, err
}

// PreferencesUpdate patches only the provided fields.
type PreferencesUpdate struct {
	AudioSpeed   *float64
	VoiceType    *string
	Language     *string
	AutoPlayNext *bool
	Theme        *string
}

func (r *Repo) UpdatePreferences(ctx context.Context, userID string, upd PreferencesUpdate) (models.Preferences, error) {
	var out models.Preferences
	err := r.store.Update(ctx, kvstore.UserKey(userID), func(cur json.RawMessage) (json.RawMessage, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		var rec record
		if err := json.Unmarshal(cur, &rec); err != nil {
			return nil, err
		}
		p := &rec.Preferences
		if upd.AudioSpeed != nil {
			p.AudioSpeed = *upd.AudioSpeed
		}
		if upd.VoiceType != nil {
			p.VoiceType = *upd.VoiceType
		}
		if upd.Language != nil {
			p.Language = *upd.Language
		}
		if upd.AutoPlayNext != nil {
			p.AutoPlayNext = *upd.AutoPlayNext
		}
		if upd.Theme != nil {
			p.Theme = *upd.Theme
		}
		rec.UpdatedAt = time.Now().UTC()
		out = rec.Preferences
		return json.Marshal(rec)
	})
	return out, err
}

func (r *Repo) get(ctx context.Context, userID string) (record, error) {
	raw, err := r.store.Get(ctx, kvstore.UserKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return record{}, ErrNotFound
	}
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}
