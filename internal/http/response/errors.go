package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-scorm/internal/platform/apierr"
)

// RespondAPIError writes e with its own status and code. Persistence errors
// are recorded on the gin context for the request logger and answered with a
// generic message.
func RespondAPIError(c *gin.Context, e *apierr.Error) {
	if e == nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if e.Kind == apierr.KindPersistence || status >= 500 {
		_ = c.Error(e)
		c.JSON(status, ErrorEnvelope{Error: APIError{Message: "internal error", Code: e.Code}})
		return
	}
	RespondError(c, status, e.Code, e)
}
