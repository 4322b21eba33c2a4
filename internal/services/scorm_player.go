package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/data/repos"
	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/progress"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// ContentPath is where the router serves proxied package files, as
// ContentPath/<token>/<file path> so relative links inside the package resolve.
const ContentPath = "/api/scorm/content"

type SessionView struct {
	SessionID string    `json:"sessionId"`
	LaunchURL string    `json:"launchUrl"`
	Version   string    `json:"version"`
	Entry     string    `json:"entry"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RTEResponse struct {
	Result    string `json:"result"`
	ErrorCode string `json:"errorCode"`
}

type PlayerService interface {
	StartSession(ctx context.Context, userID uuid.UUID, token, learnerName string) (*SessionView, error)
	Call(ctx context.Context, userID uuid.UUID, sessionID, method, element, value string) (RTEResponse, error)
}

type playerService struct {
	engine   *rte.Engine
	proxy    *proxy.Proxy
	packages repos.PackageRepo
	progress repos.ProgressRepo
	log      *logger.Logger
}

func NewPlayerService(engine *rte.Engine, p *proxy.Proxy, packages repos.PackageRepo, progressRepo repos.ProgressRepo, baseLog *logger.Logger) PlayerService {
	return &playerService{
		engine:   engine,
		proxy:    p,
		packages: packages,
		progress: progressRepo,
		log:      baseLog.With("service", "PlayerService"),
	}
}

// StartSession opens an RTE session for the package behind a proxy token. A
// learner with stored progress resumes with location and suspend data seeded.
func (s *playerService) StartSession(ctx context.Context, userID uuid.UUID, token, learnerName string) (*SessionView, error) {
	tok, err := s.proxy.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if tok.UserID != userID {
		return nil, proxy.ErrUnauthorized
	}
	pkg, err := s.packages.GetByLessonID(dbctx.Of(ctx), tok.LessonID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, packagestore.ErrPackageNotFound
	}
	m, err := DecodeManifest(pkg)
	if err != nil {
		return nil, err
	}
	version := rte.Version12
	if m.Is2004() {
		version = rte.Version2004
	}

	rec, err := s.progress.Get(dbctx.Of(ctx), userID, pkg.ID)
	if err != nil {
		return nil, err
	}
	base, err := s.progress.NextInteractionIndex(dbctx.Of(ctx), userID, pkg.ID)
	if err != nil {
		return nil, err
	}
	entry, seed := resumeSeed(rec, version)

	sess, err := s.engine.Open(ctx, rte.OpenParams{
		LearnerID:       userID,
		LearnerName:     learnerName,
		PackageID:       pkg.ID,
		LessonID:        pkg.LessonID,
		Version:         version,
		Entry:           entry,
		InteractionBase: base,
		Seed:            seed,
		ExpiresAt:       tok.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("rte session opened",
		"session_id", sess.ID,
		"user_id", userID,
		"package_id", pkg.ID,
		"version", version,
		"entry", entry,
	)
	return &SessionView{
		SessionID: sess.ID,
		LaunchURL: LaunchURL(token, pkg.LaunchHref),
		Version:   version,
		Entry:     entry,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *playerService) Call(ctx context.Context, userID uuid.UUID, sessionID, method, element, value string) (RTEResponse, error) {
	sess, err := s.engine.Session(ctx, sessionID)
	switch {
	case err == nil && sess.LearnerID != userID:
		return RTEResponse{}, ErrSessionForbidden
	case err != nil && !errors.Is(err, rte.ErrSessionNotFound):
		return RTEResponse{}, err
	}
	// Unknown sessions still go through the engine so the SCO sees the RTE error code.
	res := s.engine.Call(ctx, sessionID, method, element, value)
	m := observability.Current()
	m.IncRTECall(method, res.Code.String())
	if res.Flush != nil && res.Flush.Attempted {
		m.ObserveRTECommit(!res.Flush.Failed(), res.Flush.Attempts)
	}
	return RTEResponse{Result: res.Wire(method), ErrorCode: res.Code.String()}, nil
}

// LaunchURL points the SCO iframe at the proxied launch resource.
func LaunchURL(token, href string) string {
	href, query, _ := strings.Cut(href, "?")
	segs := strings.Split(strings.TrimPrefix(href, "/"), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	out := ContentPath + "/" + url.PathEscape(token) + "/" + strings.Join(segs, "/")
	if query != "" {
		out += "?" + query
	}
	return out
}

func resumeSeed(rec *types.ProgressRecord, version string) (string, map[string]string) {
	if rec == nil {
		return rte.EntryAbInitio, nil
	}
	seed := map[string]string{
		rte.ElemLocation:    rec.Location,
		rte.ElemSuspendData: rec.SuspendData,
	}
	if version == rte.Version12 {
		seed[rte.ElemCompletionStatus] = string(rec.CompletionStatus)
	} else {
		switch rec.CompletionStatus {
		case types.CompletionCompleted, types.CompletionPassed, types.CompletionFailed:
			seed[rte.ElemCompletionStatus] = "completed"
		case types.CompletionIncomplete:
			seed[rte.ElemCompletionStatus] = "incomplete"
		}
		seed[rte.ElemSuccessStatus] = string(rec.SuccessStatus)
	}
	return rte.EntryResume, seed
}

// NewRTECommitter persists committed snapshots through the tracker, shifting
// interaction indices past the learner's previously stored interactions.
func NewRTECommitter(tracker *progress.Tracker) rte.Committer {
	return rte.CommitterFunc(func(ctx context.Context, s *rte.Session, elements map[string]string) error {
		_, _, err := tracker.MergeInput(ctx, progress.MergeInput{
			UserID:    s.LearnerID,
			PackageID: s.PackageID,
			Elements:  OffsetInteractions(elements, s.InteractionBase),
			SessionID: s.ID,
		})
		return err
	})
}

// OffsetInteractions renames cmi.interactions.<n>.* to <n+base>.
func OffsetInteractions(elements map[string]string, base int) map[string]string {
	if base == 0 {
		return elements
	}
	out := make(map[string]string, len(elements))
	for k, v := range elements {
		name, ok := rte.Canonical(k)
		if !ok {
			out[k] = v
			continue
		}
		if n, field, ok := rte.SplitInteraction(name); ok {
			out[rte.InteractionElement(n+base, field)] = v
			continue
		}
		out[k] = v
	}
	return out
}
