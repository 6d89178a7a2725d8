package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"audiora/internal/user"
)

func (a *API) handleGetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	u, err := a.Users.Get(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		a.internalError(c, "get profile failed", err)
		return
	}

	books, err := a.Books.ListByUser(ctx, userID)
	if err != nil {
		a.internalError(c, "get profile failed", err)
		return
	}

	a.Analytics.Track(ctx, userID, "profile_access", nil)
	c.JSON(http.StatusOK, gin.H{
		"profile":     u,
		"books_count": len(books),
	})
}

func (a *API) handleUpdateProfile(c *gin.Context) {
	var req struct {
		Name      *string `json:"name"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}

	u, err := a.Users.UpdateProfile(c.Request.Context(), c.Param("userId"), user.ProfileUpdate{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if errors.Is(err, user.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		a.internalError(c, "update profile failed", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *API) handleUpdatePreferences(c *gin.Context) {
	var req struct {
		AudioSpeed   *float64 `json:"audioSpeed"`
		VoiceType    *string  `json:"voiceType"`
		Language     *string  `json:"language"`
		AutoPlayNext *bool    `json:"autoPlayNext"`
		Theme        *string  `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}

	prefs, err := a.Users.UpdatePreferences(c.Request.Context(), c.Param("userId"), user.PreferencesUpdate{
		AudioSpeed:   req.AudioSpeed,
		VoiceType:    req.VoiceType,
		Language:     req.Language,
		AutoPlayNext: req.AutoPlayNext,
		Theme:        req.Theme,
	})
	if errors.Is(err, user.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		a.internalError(c, "update preferences failed", err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
