package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

// multipart framing on top of the archive itself
const multipartOverhead = 1 << 20

type PackageHandler struct {
	log            *logger.Logger
	svc            services.PackageService
	maxUploadBytes int64
}

func NewPackageHandler(log *logger.Logger, svc services.PackageService, maxUploadBytes int64) *PackageHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &PackageHandler{
		log:            log.With("handler", "PackageHandler"),
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
	}
}

// POST /api/scorm/packages
func (h *PackageHandler) Upload(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondServiceError(c, h.log, services.ErrUploadTooLarge)
			return
		}
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	lessonID, ok := parseUUIDParam(c, c.PostForm("lessonId"), "lesson_id")
	if !ok {
		return
	}
	replace, _ := strconv.ParseBool(c.DefaultPostForm("replace", "false"))

	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	pkg, err := h.svc.Upload(c.Request.Context(), services.UploadInput{
		LessonID: lessonID,
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
		Replace:  replace,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"packageId": pkg.ID, "package": pkg})
}

// GET /api/scorm/packages
func (h *PackageHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	pkgs, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"packages": pkgs})
}

// GET /api/scorm/packages/:lessonId
func (h *PackageHandler) Get(c *gin.Context) {
	lessonID, ok := parseUUIDParam(c, c.Param("lessonId"), "lesson_id")
	if !ok {
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, detail)
}

// DELETE /api/scorm/packages/:lessonId
func (h *PackageHandler) Delete(c *gin.Context) {
	lessonID, ok := parseUUIDParam(c, c.Param("lessonId"), "lesson_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), lessonID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
