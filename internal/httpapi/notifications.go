package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"audiora/internal/notify"
)

func (a *API) handleListNotifications(c *gin.Context) {
	list, err := a.Notifications.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		a.internalError(c, "list notifications failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *API) handleCreateNotification(c *gin.Context) {
	var req struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		respondError(c, http.StatusBadRequest, "validation", "message required")
		return
	}
	if req.Type == "" {
		req.Type = "info"
	}

	userID := c.Param("userId")
	n, err := a.Notifications.Create(c.Request.Context(), userID, req.Type, req.Title, req.Message)
	if err != nil {
		a.internalError(c, "create notification failed", err)
		return
	}

	a.Hub.Push(userID, n)
	c.JSON(http.StatusCreated, n)
}

func (a *API) handleMarkNotificationRead(c *gin.Context) {
	n, err := a.Notifications.MarkRead(c.Request.Context(), c.Param("userId"), c.Param("notificationId"))
	if errors.Is(err, notify.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	if err != nil {
		a.internalError(c, "mark read failed", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// handleAdminNotify broadcasts a system announcement to every UDP
// subscriber and websocket client.
func (a *API) handleAdminNotify(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		respondError(c, http.StatusBadRequest, "validation", "message required")
		return
	}

	if a.UDP != nil {
		a.UDP.Broadcast(req.Message)
	}
	a.Hub.Broadcast(gin.H{"type": "announcement", "message": req.Message})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
