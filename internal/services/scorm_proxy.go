package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/data/repos"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type ProxyService interface {
	// IssueToken checks enrollment and that the lesson has a package before minting.
	IssueToken(ctx context.Context, userID, lessonID uuid.UUID) (proxy.AccessToken, error)
	Resolve(ctx context.Context, token, subpath string) (*proxy.File, error)
}

type proxyService struct {
	proxy      *proxy.Proxy
	packages   repos.PackageRepo
	enrollment EnrollmentChecker
	log        *logger.Logger
}

func NewProxyService(p *proxy.Proxy, packages repos.PackageRepo, enrollment EnrollmentChecker, baseLog *logger.Logger) ProxyService {
	return &proxyService{
		proxy:      p,
		packages:   packages,
		enrollment: enrollment,
		log:        baseLog.With("service", "ProxyService"),
	}
}

func (s *proxyService) IssueToken(ctx context.Context, userID, lessonID uuid.UUID) (proxy.AccessToken, error) {
	ok, err := s.enrollment.IsEnrolled(ctx, userID, lessonID)
	if err != nil {
		return proxy.AccessToken{}, err
	}
	if !ok {
		s.log.Info("proxy token refused", "user_id", userID, "lesson_id", lessonID)
		return proxy.AccessToken{}, ErrNotEnrolled
	}
	pkg, err := s.packages.GetByLessonID(dbctx.Of(ctx), lessonID)
	if err != nil {
		return proxy.AccessToken{}, err
	}
	if pkg == nil {
		return proxy.AccessToken{}, packagestore.ErrPackageNotFound
	}
	return s.proxy.IssueToken(ctx, userID, lessonID)
}

func (s *proxyService) Resolve(ctx context.Context, token, subpath string) (*proxy.File, error) {
	f, err := s.proxy.Resolve(ctx, token, subpath)
	if err != nil {
		observability.Current().IncProxyRequest(MapError(err).Code)
		s.log.Debug("proxy request rejected", "path", subpath, "error", err)
		return nil, err
	}
	observability.Current().IncProxyRequest("ok")
	return f, nil
}
