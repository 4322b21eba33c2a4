package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

// callerID returns the authenticated user or writes 401.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// respondServiceError maps err and logs anything the caller cannot fix.
func respondServiceError(c *gin.Context, log *logger.Logger, err error) {
	e := services.MapError(err)
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "code", e.Code, "error", err)
	}
	response.RespondAPIError(c, e)
}

func parseUUIDParam(c *gin.Context, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+what, err)
		return uuid.Nil, false
	}
	return id, true
}
