package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"audiora/internal/analytics"
	"audiora/internal/auth"
	"audiora/internal/book"
	"audiora/internal/logger"
	"audiora/internal/notify"
	"audiora/internal/progress"
	"audiora/internal/session"
	"audiora/internal/udpnotify"
	"audiora/internal/user"
	"audiora/pkg/models"
)

// API bundles the handlers' dependencies; cmd/server constructs one and
// registers its routes.
type API struct {
	Users         *user.Repo
	Books         *book.Repo
	Sessions      *session.Recorder
	Progress      *progress.Aggregator
	Analytics     *analytics.Service
	Notifications *notify.Repo
	Hub           *notify.Hub
	UDP           *udpnotify.Server
	Events        chan<- models.ProgressUpdate
	JWTSecret     []byte
	TokenTTL      time.Duration
	Log           *logger.Logger
}

func (a *API) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	r.POST("/auth/signup", a.handleSignup)
	r.POST("/auth/signin", a.handleSignin)

	authed := r.Group("/")
	authed.Use(auth.RequireJWT(a.JWTSecret))

	authed.GET("/ws", notify.HandleWebSocket(a.Hub))

	authed.POST("/admin/notify", a.handleAdminNotify)
	authed.GET("/analytics/summary", a.handleAnalyticsSummary)
	authed.POST("/analytics/events", a.handleAnalyticsEvent)

	owned := authed.Group("/")
	owned.Use(auth.RequireUser())

	owned.GET("/books/:userId", a.handleListBooks)
	owned.POST("/books/:userId", a.handleCreateBook)
	owned.PUT("/books/:userId/:bookId/progress", a.handleUpdateBookProgress)
	owned.PUT("/books/:userId/:bookId/status", a.handleUpdateBookStatus)

	owned.POST("/reading-session/:userId/start", a.handleStartSession)
	owned.PUT("/reading-session/:userId/:sessionId/end", a.handleEndSession)

	owned.GET("/progress/:userId", a.handleProgressStats)

	owned.GET("/users/:userId/profile", a.handleGetProfile)
	owned.PUT("/users/:userId/profile", a.handleUpdateProfile)
	owned.PUT("/users/:userId/preferences", a.handleUpdatePreferences)

	owned.GET("/notifications/:userId", a.handleListNotifications)
	owned.POST("/notifications/:userId", a.handleCreateNotification)
	owned.PUT("/notifications/:userId/:notificationId/read", a.handleMarkNotificationRead)

	owned.GET("/analytics/usage/:userId", a.handleUsage)
}

// emitProgress pushes a progress event to the sync stream without
// blocking the request when the channel is full.
func (a *API) emitProgress(evt models.ProgressUpdate) {
	if a.Events == nil {
		return
	}
	select {
	case a.Events <- evt:
	default:
		a.Log.Warn("progress channel full, dropping event", "user_id", evt.UserID, "book_id", evt.BookID)
	}
}
