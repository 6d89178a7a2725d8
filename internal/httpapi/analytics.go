package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"audiora/internal/analytics"
	"audiora/internal/auth"
)

func (a *API) handleAnalyticsEvent(c *gin.Context) {
	var req struct {
		Type      string            `json:"type"`
		ErrorType string            `json:"errorType"`
		Message   string            `json:"message"`
		Context   map[string]string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		respondError(c, http.StatusBadRequest, "validation", "type required")
		return
	}

	ev, err := a.Analytics.Record(c.Request.Context(), analytics.EventParams{
		UserID:    c.GetString(auth.CtxUserIDKey),
		Type:      req.Type,
		ErrorType: req.ErrorType,
		Message:   req.Message,
		Context:   req.Context,
	})
	if err != nil {
		a.internalError(c, "record event failed", err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (a *API) handleAnalyticsSummary(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	summary, err := a.Analytics.Summarize(c.Request.Context(), days)
	if err != nil {
		a.internalError(c, "summarize failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *API) handleUsage(c *gin.Context) {
	report, err := a.Analytics.Usage(c.Request.Context(), c.Param("userId"), c.Query("period"))
	if err != nil {
		a.internalError(c, "usage report failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
