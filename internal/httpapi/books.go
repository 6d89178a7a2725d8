package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"audiora/internal/book"
	"audiora/pkg/models"
)

func (a *API) handleListBooks(c *gin.Context) {
	books, err := a.Books.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		a.internalError(c, "list books failed", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (a *API) handleCreateBook(c *gin.Context) {
	var req struct {
		Title    string                 `json:"title"`
		Author   string                 `json:"author"`
		Genre    string                 `json:"genre"`
		CoverURL string                 `json:"coverUrl"`
		Duration models.DurationSeconds `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		respondError(c, http.StatusBadRequest, "validation", "title required")
		return
	}

	b, err := a.Books.Create(c.Request.Context(), c.Param("userId"), book.CreateParams{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		CoverURL:        req.CoverURL,
		DurationSeconds: int(req.Duration),
	})
	if err != nil {
		a.internalError(c, "create book failed", err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (a *API) handleUpdateBookProgress(c *gin.Context) {
	var req struct {
		Progress        *int `json:"progress"`
		CurrentPosition *int `json:"currentPosition"`
		CurrentChapter  *int `json:"currentChapter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Progress == nil {
		respondError(c, http.StatusBadRequest, "validation", "progress required")
		return
	}

	userID := c.Param("userId")
	b, err := a.Books.UpdateProgress(c.Request.Context(), userID, c.Param("bookId"), *req.Progress, req.CurrentPosition, req.CurrentChapter)
	if errors.Is(err, book.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "book not found")
		return
	}
	if err != nil {
		a.internalError(c, "update progress failed", err)
		return
	}

	a.emitProgress(models.ProgressUpdate{
		UserID:    userID,
		BookID:    b.ID,
		Progress:  b.Progress,
		Position:  b.CurrentPosition,
		Timestamp: time.Now().Unix(),
	})
	a.Analytics.Track(c.Request.Context(), userID, "progress_update", map[string]string{"book_id": b.ID})

	c.JSON(http.StatusOK, gin.H{"book": b, "progress": b.Progress})
}

func (a *API) handleUpdateBookStatus(c *gin.Context) {
	var req struct {
		ConversionStatus string  `json:"conversionStatus"`
		AudioURL         *string `json:"audioUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validStatus(req.ConversionStatus) {
		respondError(c, http.StatusBadRequest, "validation", "conversionStatus must be pending, processing, completed or failed")
		return
	}

	b, err := a.Books.UpdateStatus(c.Request.Context(), c.Param("userId"), c.Param("bookId"), req.ConversionStatus, req.AudioURL)
	if errors.Is(err, book.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "book not found")
		return
	}
	if err != nil {
		a.internalError(c, "update status failed", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func validStatus(s string) bool {
	switch s {
	case models.ConversionPending, models.ConversionProcessing, models.ConversionCompleted, models.ConversionFailed:
		return true
	}
	return false
}
