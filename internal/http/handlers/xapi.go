package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const maxStatementBytes = 1 << 20

var errInvalidJSON = errors.New("body is not valid JSON")

// XAPIHandler accepts xAPI statements and drops them after logging; there is
// no LRS behind it yet.
type XAPIHandler struct {
	log *logger.Logger
}

func NewXAPIHandler(log *logger.Logger) *XAPIHandler {
	return &XAPIHandler{log: log.With("handler", "XAPIHandler")}
}

// POST /api/scorm/xapi/statements
func (h *XAPIHandler) Statements(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxStatementBytes)
	raw, err := c.GetRawData()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_statements", err)
		return
	}
	if !json.Valid(raw) {
		response.RespondError(c, http.StatusBadRequest, "invalid_statements", errInvalidJSON)
		return
	}
	count := 1
	var batch []json.RawMessage
	if json.Unmarshal(raw, &batch) == nil {
		count = len(batch)
	}
	h.log.Info("xapi statements received", "count", count)
	response.RespondNoContent(c)
}
