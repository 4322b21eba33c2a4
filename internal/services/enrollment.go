package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// EnrollmentChecker answers whether a learner may open a lesson.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, lessonID uuid.UUID) (bool, error)
}

type httpEnrollmentChecker struct {
	client *resty.Client
	log    *logger.Logger
}

// NewHTTPEnrollmentChecker calls GET {baseURL}/enrollments/check?userId=&lessonId=
// and expects {"enrolled": bool}. The caller's bearer token is forwarded.
func NewHTTPEnrollmentChecker(baseURL string, timeout time.Duration, baseLog *logger.Logger) EnrollmentChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &httpEnrollmentChecker{
		client: client,
		log:    baseLog.With("service", "EnrollmentChecker"),
	}
}

func (c *httpEnrollmentChecker) IsEnrolled(ctx context.Context, userID, lessonID uuid.UUID) (bool, error) {
	var out struct {
		Enrolled bool `json:"enrolled"`
	}
	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"userId":   userID.String(),
			"lessonId": lessonID.String(),
		}).
		SetResult(&out)
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.TokenString != "" {
		req.SetAuthToken(rd.TokenString)
	}
	resp, err := req.Get("/enrollments/check")
	if err != nil {
		return false, fmt.Errorf("enrollment check: %w", err)
	}
	if resp.IsError() {
		c.log.Warn("enrollment check rejected", "status", resp.StatusCode(), "user_id", userID, "lesson_id", lessonID)
		return false, fmt.Errorf("enrollment check: status %d", resp.StatusCode())
	}
	return out.Enrolled, nil
}

type allowAllEnrollment struct{}

// AllowAllEnrollment admits every learner. Used when no enrollment service is configured.
func AllowAllEnrollment() EnrollmentChecker { return allowAllEnrollment{} }

func (allowAllEnrollment) IsEnrolled(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}
