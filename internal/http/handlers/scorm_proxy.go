package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

type ProxyHandler struct {
	log *logger.Logger
	svc services.ProxyService
}

func NewProxyHandler(log *logger.Logger, svc services.ProxyService) *ProxyHandler {
	return &ProxyHandler{log: log.With("handler", "ProxyHandler"), svc: svc}
}

type issueTokenRequest struct {
	LessonID string `json:"lessonId" binding:"required,uuid"`
}

type issueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// POST /api/scorm/proxy
func (h *ProxyHandler) IssueToken(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tok, err := h.svc.IssueToken(c.Request.Context(), userID, uuid.MustParse(req.LessonID))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, issueTokenResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
	})
}

// GET /api/scorm/proxy?token=&path=
func (h *ProxyHandler) ServeQuery(c *gin.Context) {
	h.serve(c, c.Query("token"), c.Query("path"))
}

// GET /api/scorm/content/:token/*filepath
func (h *ProxyHandler) ServeContent(c *gin.Context) {
	h.serve(c, c.Param("token"), strings.TrimPrefix(c.Param("filepath"), "/"))
}

// serve streams one package file. The token is the only credential: content
// is loaded by iframes and sub-resources that cannot carry a bearer header.
func (h *ProxyHandler) serve(c *gin.Context, token, subpath string) {
	proxy.ApplySecurityHeaders(c.Writer.Header())

	f, err := h.svc.Resolve(c.Request.Context(), token, subpath)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	rd, err := f.Open()
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %s", proxy.ErrFileNotFound, subpath)
	}
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	defer rd.Close()

	c.Header("Content-Type", f.ContentType)
	http.ServeContent(c.Writer, c.Request, f.Name, f.ModTime, rd)
}
