package packagestore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

const (
	DefaultOrphanAge = time.Hour
	janitorLockName  = ".janitor.lock"
)

var extractionDirPattern = regexp.MustCompile(`^(\d+)_[0-9A-HJKMNP-TV-Z]{26}$`)

// RootLister reports every extract root still referenced by a Package row.
type RootLister interface {
	ListExtractRoots(dbc dbctx.Context) ([]string, error)
}

type SweepResult struct {
	Removed []string
	Kept    int
	Skipped bool // another process held the lock
}

// Janitor removes extraction directories that no Package references, such
// as leftovers from a crash between extraction and the database write.
type Janitor struct {
	root   string
	minAge time.Duration
	roots  RootLister
	log    *logger.Logger
	now    func() time.Time
}

func NewJanitor(root string, minAge time.Duration, roots RootLister, baseLog *logger.Logger) *Janitor {
	if minAge <= 0 {
		minAge = DefaultOrphanAge
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Janitor{
		root:   root,
		minAge: minAge,
		roots:  roots,
		log:    baseLog.With("module", "PackageJanitor"),
		now:    time.Now,
	}
}

func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	lock := flock.New(filepath.Join(j.root, janitorLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return res, err
	}
	if !ok {
		res.Skipped = true
		observability.Current().ObserveJanitor(0, 0, true)
		j.log.Debug("janitor lock held elsewhere; skipping sweep", "root", j.root)
		return res, nil
	}
	defer func() { _ = lock.Unlock() }()

	referenced, err := j.roots.ListExtractRoots(dbctx.Of(ctx))
	if err != nil {
		return res, err
	}
	live := make(map[string]struct{}, len(referenced))
	for _, r := range referenced {
		live[filepath.Clean(r)] = struct{}{}
	}

	entries, err := os.ReadDir(j.root)
	if err != nil {
		return res, err
	}
	cutoff := j.now().Add(-j.minAge)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.IsDir() {
			continue
		}
		m := extractionDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		dir := filepath.Join(j.root, e.Name())
		if _, ok := live[dir]; ok {
			res.Kept++
			continue
		}
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || time.UnixMilli(ms).After(cutoff) {
			res.Kept++
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			j.log.Warn("janitor failed to remove orphan", "dir", dir, "error", err)
			continue
		}
		res.Removed = append(res.Removed, dir)
	}
	observability.Current().ObserveJanitor(len(res.Removed), res.Kept, false)
	if len(res.Removed) > 0 {
		j.log.Info("janitor removed orphaned extractions", "count", len(res.Removed), "kept", res.Kept)
	}
	return res, nil
}

// Schedule registers Sweep on c using a standard five-field cron spec.
func (j *Janitor) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.log.Warn("janitor sweep failed", "error", err)
		}
	})
}
