package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/progress"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
	"github.com/yungbote/neurobridge-scorm/internal/platform/apierr"
)

var (
	ErrNotEnrolled      = errors.New("learner is not enrolled in this lesson")
	ErrNotZip           = errors.New("file must be a .zip archive")
	ErrUploadTooLarge   = errors.New("upload exceeds size limit")
	ErrEmptyUpload      = errors.New("upload is empty")
	ErrSessionForbidden = errors.New("session belongs to another learner")
	ErrUserMismatch     = errors.New("cannot access another learner's progress")
)

// MapError turns module sentinels into API errors carrying status and code.
// Errors that are already *apierr.Error pass through; anything unrecognised
// is a persistence failure.
func MapError(err error) *apierr.Error {
	if err == nil {
		return nil
	}
	if e, ok := apierr.As(err); ok {
		return e
	}
	switch {
	case errors.Is(err, ErrNotZip), errors.Is(err, ErrEmptyUpload):
		return apierr.Validation("invalid_file_type", err)
	case errors.Is(err, ErrUploadTooLarge), errors.Is(err, packagestore.ErrArchiveTooLarge):
		return apierr.Validation("file_too_large", err)
	case errors.Is(err, packagestore.ErrInvalidArchive), errors.Is(err, packagestore.ErrUnsafePath):
		return apierr.Validation("invalid_archive", err)
	case errors.Is(err, packagestore.ErrManifestNotFound):
		return apierr.Validation("manifest_not_found", err)
	case errors.Is(err, manifest.ErrInvalidXML),
		errors.Is(err, manifest.ErrMissingManifestElement),
		errors.Is(err, manifest.ErrMissingAttributes):
		return apierr.Validation("manifest_invalid", err)
	case errors.Is(err, progress.ErrInvalidElement):
		return apierr.Validation("invalid_cmi_data", err)
	case errors.Is(err, packagestore.ErrPackageExists):
		return apierr.Conflict("package_exists", err)
	case errors.Is(err, packagestore.ErrPackageNotFound), errors.Is(err, proxy.ErrNoPackage):
		return apierr.NotFound("package_not_found", err)
	case errors.Is(err, proxy.ErrFileNotFound):
		return apierr.NotFound("file_not_found", err)
	case errors.Is(err, rte.ErrSessionNotFound):
		return apierr.NotFound("session_not_found", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apierr.NotFound("not_found", err)
	case errors.Is(err, ErrInvalidAccessToken):
		return apierr.Unauthorized("unauthorized", err)
	case errors.Is(err, proxy.ErrUnauthorized):
		return apierr.Unauthorized("invalid_token", err)
	case errors.Is(err, proxy.ErrPathTraversal):
		return apierr.Forbidden("path_traversal", err)
	case errors.Is(err, ErrNotEnrolled):
		return apierr.Forbidden("not_enrolled", err)
	case errors.Is(err, ErrSessionForbidden), errors.Is(err, ErrUserMismatch):
		return apierr.Forbidden("forbidden", err)
	}
	return apierr.Persistence("internal_error", err)
}
