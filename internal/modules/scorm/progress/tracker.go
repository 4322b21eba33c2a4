// Package progress reconciles committed CMI snapshots into durable
// per-learner, per-package progress records.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/observability"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/keylock"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type Repo interface {
	Get(dbc dbctx.Context, userID, packageID uuid.UUID) (*types.ProgressRecord, error)
	Upsert(dbc dbctx.Context, rec *types.ProgressRecord) (*types.ProgressRecord, error)
	AppendInteractions(dbc dbctx.Context, progressID uuid.UUID, rows []*types.Interaction) (int, error)
}

type Tracker struct {
	db    *gorm.DB
	repo  Repo
	log   *logger.Logger
	locks *keylock.Locker
	now   func() time.Time
}

func NewTracker(db *gorm.DB, repo Repo, baseLog *logger.Logger) *Tracker {
	return &Tracker{
		db:    db,
		repo:  repo,
		log:   baseLog.With("module", "ProgressTracker"),
		locks: keylock.New(),
		now:   time.Now,
	}
}

type MergeInput struct {
	UserID    uuid.UUID
	PackageID uuid.UUID
	Elements  map[string]string
	// SessionID identifies the RTE session; a change bumps AttemptCount.
	SessionID string
}

// Merge upserts the (user, package) record from a CMI element snapshot and
// reports whether the learner has completed the package.
func (t *Tracker) Merge(ctx context.Context, userID, packageID uuid.UUID, elements map[string]string) (*types.ProgressRecord, bool, error) {
	return t.MergeInput(ctx, MergeInput{UserID: userID, PackageID: packageID, Elements: elements})
}

func (t *Tracker) MergeInput(ctx context.Context, in MergeInput) (_ *types.ProgressRecord, _ bool, err error) {
	ctx, span := observability.StartSpan(ctx, "progress.Merge",
		attribute.String("package_id", in.PackageID.String()),
		attribute.Int("elements", len(in.Elements)),
	)
	defer func() { observability.EndSpan(span, err) }()

	snap, err := ParseSnapshot(in.Elements)
	if err != nil {
		observability.Current().IncProgressMerge("invalid")
		return nil, false, err
	}

	unlock := t.locks.Lock(in.UserID.String() + ":" + in.PackageID.String())
	defer unlock()

	var out *types.ProgressRecord
	var appended int
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := t.repo.Get(dbc, in.UserID, in.PackageID)
		if err != nil {
			return err
		}
		merged := Apply(existing, snap, in, t.now().UTC())

		stored, err := t.repo.Upsert(dbc, merged)
		if err != nil {
			return err
		}
		rows := newInteractions(existing, snap.Interactions, in.SessionID, t.now().UTC())
		if len(rows) > 0 {
			if appended, err = t.repo.AppendInteractions(dbc, stored.ID, rows); err != nil {
				return err
			}
			if stored, err = t.repo.Get(dbc, in.UserID, in.PackageID); err != nil {
				return err
			}
		}
		out = stored
		return nil
	})
	if err != nil {
		observability.Current().IncProgressMerge("error")
		t.log.Error("progress merge failed", "user_id", in.UserID, "package_id", in.PackageID, "error", err)
		return nil, false, err
	}

	observability.Current().IncProgressMerge("ok")
	t.log.Debug("progress merged",
		"user_id", in.UserID,
		"package_id", in.PackageID,
		"status", out.CompletionStatus,
		"completed", out.Completed,
		"interactions_appended", appended,
	)
	return out, out.Completed, nil
}

// Apply merges snap into a copy of existing (nil for a first commit). Scalars
// present in the snapshot win; absent ones keep their stored values.
func Apply(existing *types.ProgressRecord, snap Snapshot, in MergeInput, now time.Time) *types.ProgressRecord {
	rec := &types.ProgressRecord{
		UserID:           in.UserID,
		PackageID:        in.PackageID,
		CompletionStatus: types.CompletionNotAttempted,
		SuccessStatus:    types.SuccessUnknown,
		AttemptCount:     1,
		LastSessionID:    in.SessionID,
	}
	if existing != nil {
		cp := *existing
		cp.Interactions = nil
		rec = &cp
		if in.SessionID != "" && in.SessionID != rec.LastSessionID {
			rec.AttemptCount++
			rec.LastSessionID = in.SessionID
		}
		if rec.AttemptCount == 0 {
			rec.AttemptCount = 1
		}
	}

	if snap.Completion != nil {
		rec.CompletionStatus = *snap.Completion
	}
	if snap.Success != nil {
		rec.SuccessStatus = *snap.Success
	}
	if rec.CompletionStatus == "" {
		rec.CompletionStatus = types.CompletionNotAttempted
	}

	if snap.ScoreRaw != nil {
		rec.ScoreRaw = snap.ScoreRaw
	}
	if snap.ScoreMin != nil {
		rec.ScoreMin = snap.ScoreMin
	}
	if snap.ScoreMax != nil {
		rec.ScoreMax = snap.ScoreMax
	}
	switch {
	case snap.ScoreScaled != nil:
		rec.ScoreScaled = snap.ScoreScaled
		rec.ScaledExplicit = true
	case snap.hasScore() || !rec.ScaledExplicit:
		rec.ScoreScaled = ScaledScore(rec.ScoreRaw, rec.ScoreMax)
		rec.ScaledExplicit = false
	}

	if snap.ProgressMeasure != nil {
		rec.ProgressMeasure = snap.ProgressMeasure
	}
	if snap.Location != nil {
		rec.Location = *snap.Location
	}
	if snap.SuspendData != nil {
		rec.SuspendData = *snap.SuspendData
	}

	rec.Completed = IsCompleted(rec.CompletionStatus, rec.SuccessStatus, rec.ProgressMeasure)
	if rec.Completed && rec.CompletedAt == nil {
		t := now
		rec.CompletedAt = &t
	}
	rec.LastCommittedAt = now
	return rec
}

// newInteractions picks the rows to append. Without a session id an index
// already stored is skipped. With one, rows this session already wrote are
// skipped, and an index taken by another session moves to the next free slot.
func newInteractions(existing *types.ProgressRecord, in []InteractionInput, sessionID string, now time.Time) []*types.Interaction {
	taken := map[int]struct{}{}
	written := map[int]struct{}{}
	next := 0
	if existing != nil {
		for _, it := range existing.Interactions {
			taken[it.Index] = struct{}{}
			if it.Index >= next {
				next = it.Index + 1
			}
			if sessionID != "" && it.SessionID == sessionID {
				written[it.SessionIndex] = struct{}{}
			}
		}
	}
	var rows []*types.Interaction
	for _, it := range in {
		idx := it.Index
		if sessionID == "" {
			if _, ok := taken[idx]; ok {
				continue
			}
		} else {
			if _, ok := written[it.Index]; ok {
				continue
			}
			if _, ok := taken[idx]; ok {
				idx = next
			}
		}
		taken[idx] = struct{}{}
		if idx >= next {
			next = idx + 1
		}
		ts := it.Timestamp
		if ts == "" {
			ts = now.Format(time.RFC3339)
		}
		rows = append(rows, &types.Interaction{
			Index:           idx,
			SessionID:       sessionID,
			SessionIndex:    it.Index,
			InteractionID:   it.ID,
			Type:            it.Type,
			LearnerResponse: it.LearnerResponse,
			Result:          it.Result,
			Description:     it.Description,
			Timestamp:       ts,
			RecordedAt:      now,
		})
	}
	return rows
}
