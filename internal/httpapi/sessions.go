package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"audiora/internal/session"
	"audiora/pkg/models"
)

func (a *API) handleStartSession(c *gin.Context) {
	var req struct {
		BookID        string `json:"bookId"`
		StartPosition int    `json:"startPosition"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID == "" {
		respondError(c, http.StatusBadRequest, "validation", "bookId required")
		return
	}

	userID := c.Param("userId")
	s, err := a.Sessions.Start(c.Request.Context(), userID, req.BookID, req.StartPosition)
	if err != nil {
		a.internalError(c, "start session failed", err)
		return
	}

	a.Analytics.Track(c.Request.Context(), userID, "session_start", map[string]string{"book_id": req.BookID})
	c.JSON(http.StatusCreated, s)
}

func (a *API) handleEndSession(c *gin.Context) {
	var req struct {
		EndPosition       int      `json:"endPosition"`
		ChaptersCompleted []string `json:"chaptersCompleted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}

	userID := c.Param("userId")
	s, err := a.Sessions.End(c.Request.Context(), userID, c.Param("sessionId"), req.EndPosition, req.ChaptersCompleted)
	if errors.Is(err, session.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		a.internalError(c, "end session failed", err)
		return
	}

	if b, err := a.Books.GetByID(c.Request.Context(), userID, s.BookID); err == nil {
		a.emitProgress(models.ProgressUpdate{
			UserID:    userID,
			BookID:    b.ID,
			Progress:  b.Progress,
			Position:  b.CurrentPosition,
			Timestamp: time.Now().Unix(),
		})
	}
	a.Analytics.Track(c.Request.Context(), userID, "session_end", map[string]string{"book_id": s.BookID})
	c.JSON(http.StatusOK, s)
}
