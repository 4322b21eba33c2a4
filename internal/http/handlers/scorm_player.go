package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

var rteMethods = map[string]bool{
	"Initialize":     true,
	"Terminate":      true,
	"GetValue":       true,
	"SetValue":       true,
	"Commit":         true,
	"GetLastError":   true,
	"GetErrorString": true,
	"GetDiagnostic":  true,
}

var registerOnce sync.Once

// RegisterValidators adds the "rtemethod" tag to gin's validator. It accepts
// the SCORM 2004 names and their 1.2 "LMS" spellings (LMSFinish included).
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("rtemethod", func(fl validator.FieldLevel) bool {
			m := fl.Field().String()
			if m == "LMSFinish" {
				return true
			}
			return rteMethods[strings.TrimPrefix(m, "LMS")]
		})
	})
}

type PlayerHandler struct {
	log *logger.Logger
	svc services.PlayerService
}

func NewPlayerHandler(log *logger.Logger, svc services.PlayerService) *PlayerHandler {
	RegisterValidators()
	return &PlayerHandler{log: log.With("handler", "PlayerHandler"), svc: svc}
}

type startSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type rteCallRequest struct {
	Method  string `json:"method" binding:"required,rtemethod"`
	Element string `json:"element"`
	Value   string `json:"value"`
}

// POST /api/scorm/sessions
func (h *PlayerHandler) StartSession(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var name string
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		name = rd.Name
	}
	view, err := h.svc.StartSession(c.Request.Context(), userID, req.Token, name)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/scorm/sessions/:id/rte
//
// RTE failures come back as 200 with result "false" and an error code; only
// transport problems (auth, bad body, foreign session) are HTTP errors.
func (h *PlayerHandler) Call(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req rteCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.svc.Call(c.Request.Context(), userID, c.Param("id"), req.Method, req.Element, req.Value)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}
