package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorEnvelope{Error: apiError{Message: message, Code: code}})
}

// internalError hides the underlying failure from the client; the detail
// only goes to the log.
func (a *API) internalError(c *gin.Context, op string, err error) {
	a.Log.Error(op, "error", err, "path", c.FullPath())
	respondError(c, http.StatusInternalServerError, "internal", "internal error")
}
