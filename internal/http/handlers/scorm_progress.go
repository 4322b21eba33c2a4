package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

const maxSummaryLessons = 200

var errLessonIDs = fmt.Errorf("lessonIds must list between 1 and %d lesson ids", maxSummaryLessons)

type ProgressHandler struct {
	log *logger.Logger
	svc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, svc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), svc: svc}
}

type saveProgressRequest struct {
	LessonID string            `json:"lessonId" binding:"required,uuid"`
	UserID   string            `json:"userId" binding:"omitempty,uuid"`
	CMIData  map[string]string `json:"cmiData" binding:"required"`
}

// learner resolves the optional userId against the caller. Learners only
// read and write their own progress.
func learner(c *gin.Context, raw string) (uuid.UUID, bool) {
	caller, ok := callerID(c)
	if !ok {
		return uuid.Nil, false
	}
	if raw = strings.TrimSpace(raw); raw == "" {
		return caller, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return uuid.Nil, false
	}
	if id != caller {
		response.RespondError(c, http.StatusForbidden, "forbidden", services.ErrUserMismatch)
		return uuid.Nil, false
	}
	return caller, true
}

// GET /api/scorm/progress?lessonId=&userId=
func (h *ProgressHandler) Get(c *gin.Context) {
	lessonID, ok := parseUUIDParam(c, c.Query("lessonId"), "lesson_id")
	if !ok {
		return
	}
	userID, ok := learner(c, c.Query("userId"))
	if !ok {
		return
	}
	out, err := h.svc.Get(c.Request.Context(), userID, lessonID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/scorm/progress
func (h *ProgressHandler) Save(c *gin.Context) {
	var req saveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, ok := learner(c, req.UserID)
	if !ok {
		return
	}
	rec, err := h.svc.Save(c.Request.Context(), userID, uuid.MustParse(req.LessonID), req.CMIData)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, rec)
}

// GET /api/scorm/progress/summary?lessonIds=a,b
func (h *ProgressHandler) Summary(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.Query("lessonIds"), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 || len(ids) > maxSummaryLessons {
		response.RespondError(c, http.StatusBadRequest, "invalid_lesson_ids", errLessonIDs)
		return
	}
	out, err := h.svc.Summaries(c.Request.Context(), userID, ids)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"summaries": out})
}
