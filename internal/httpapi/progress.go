package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) handleProgressStats(c *gin.Context) {
	stats, err := a.Progress.Stats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		a.internalError(c, "progress stats failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
