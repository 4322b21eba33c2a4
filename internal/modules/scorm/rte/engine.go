// Package rte emulates the SCORM Run-Time Environment API for one learner
// session at a time: Initialize/GetValue/SetValue/Commit/Terminate over the
// flat CMI element namespace.
package rte

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/platform/keylock"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

// Committer persists a session's element snapshot.
type Committer interface {
	Commit(ctx context.Context, s *Session, elements map[string]string) error
}

type CommitterFunc func(ctx context.Context, s *Session, elements map[string]string) error

func (f CommitterFunc) Commit(ctx context.Context, s *Session, elements map[string]string) error {
	return f(ctx, s, elements)
}

// FlushResult describes the side-effecting step of Commit and Terminate.
type FlushResult struct {
	Attempted bool
	Attempts  int
	Err       error
}

func (f *FlushResult) Failed() bool { return f != nil && f.Attempted && f.Err != nil }

// Result is the outcome of one RTE call. Value carries GetValue data or the
// error-introspection string; OK maps onto "true"/"false" for the others.
type Result struct {
	OK    bool
	Value string
	Code  ErrorCode
	Flush *FlushResult
}

// Wire renders the result the way SCO JavaScript expects it.
func (r Result) Wire(method string) string {
	switch method {
	case "GetValue", "GetLastError", "GetErrorString", "GetDiagnostic":
		return r.Value
	}
	if r.OK {
		return "true"
	}
	return "false"
}

type Options struct {
	SessionTTL time.Duration
	// TerminatedTTL is how long a terminated session lingers so later calls
	// get the after-termination codes instead of 101.
	TerminatedTTL time.Duration
	CommitRetries int
	CommitBackoff time.Duration
}

type Engine struct {
	store     SessionStore
	committer Committer
	opts      Options
	locks     *keylock.Locker
	log       *logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func NewEngine(store SessionStore, committer Committer, opts Options, baseLog *logger.Logger) *Engine {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.TerminatedTTL <= 0 {
		opts.TerminatedTTL = 10 * time.Minute
	}
	if opts.CommitRetries <= 0 {
		opts.CommitRetries = 3
	}
	if opts.CommitBackoff < 0 {
		opts.CommitBackoff = 0
	}
	return &Engine{
		store:     store,
		committer: committer,
		opts:      opts,
		locks:     keylock.New(),
		log:       baseLog.With("module", "RTEEngine"),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

type OpenParams struct {
	LearnerID       uuid.UUID
	LearnerName     string
	PackageID       uuid.UUID
	LessonID        uuid.UUID
	Version         string
	Entry           string
	InteractionBase int
	Seed            map[string]string
	ExpiresAt       time.Time // zero means now + SessionTTL
}

// Open registers a new NotInitialized session.
func (e *Engine) Open(ctx context.Context, p OpenParams) (*Session, error) {
	now := e.now().UTC()
	s := &Session{
		ID:              uuid.NewString(),
		LearnerID:       p.LearnerID,
		LearnerName:     p.LearnerName,
		PackageID:       p.PackageID,
		LessonID:        p.LessonID,
		Version:         p.Version,
		Entry:           p.Entry,
		InteractionBase: p.InteractionBase,
		State:           StateNotInitialized,
		Elements:        map[string]string{},
		CreatedAt:       now,
		ExpiresAt:       p.ExpiresAt,
	}
	if s.Version == "" {
		s.Version = Version12
	}
	if s.Entry == "" {
		s.Entry = EntryAbInitio
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(e.opts.SessionTTL)
	}
	for k, v := range p.Seed {
		s.Elements[k] = v
	}
	if err := e.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Session returns a copy of the live session.
func (e *Engine) Session(ctx context.Context, id string) (*Session, error) {
	return e.store.Get(ctx, id)
}

// with loads the session under its lock, runs fn, and saves it unless fn
// reports the session was evicted.
func (e *Engine) with(ctx context.Context, id string, fn func(s *Session) (Result, bool)) Result {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			e.log.Warn("rte session load failed", "session_id", id, "error", err)
		}
		return Result{Code: GeneralException}
	}
	res, keep := fn(s)
	if !keep {
		return res
	}
	if err := e.store.Save(ctx, s); err != nil {
		e.log.Warn("rte session save failed", "session_id", id, "error", err)
		return Result{Code: GeneralException, Flush: res.Flush}
	}
	return res
}

func (e *Engine) Initialize(ctx context.Context, id string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		switch s.State {
		case StateRunning:
			s.fail(AlreadyInitialized, "")
			return Result{Code: AlreadyInitialized}, true
		case StateTerminated:
			s.fail(ContentInstanceTerminated, "")
			return Result{Code: ContentInstanceTerminated}, true
		}
		s.State = StateRunning
		s.ok()
		return Result{OK: true}, true
	})
}

func (e *Engine) GetValue(ctx context.Context, id, name string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		if code := stateGate(s.State, RetrieveBeforeInit, RetrieveAfterTermination); code != NoError {
			s.fail(code, "")
			return Result{Code: code}, true
		}
		if strings.TrimSpace(name) == "" {
			s.fail(GeneralGetFailure, "empty element name")
			return Result{Code: GeneralGetFailure}, true
		}
		el, ok := resolve(name)
		if !ok {
			s.fail(UndefinedElement, name)
			return Result{Code: UndefinedElement}, true
		}
		if el.spec.access == writeOnly {
			s.fail(ElementWriteOnly, name)
			return Result{Code: ElementWriteOnly}, true
		}
		if el.spec.access == readOnly {
			s.ok()
			return Result{OK: true, Value: sessionValue(s, el.name)}, true
		}
		if el.index >= 0 && el.index >= InteractionCount(s.Elements) {
			s.fail(GeneralGetFailure, "interaction index out of range")
			return Result{Code: GeneralGetFailure}, true
		}
		if v, ok := s.Elements[el.name]; ok {
			s.ok()
			return Result{OK: true, Value: v}, true
		}
		if el.spec.defaults != nil {
			s.ok()
			d := el.spec.defaults[0]
			if s.is2004() {
				d = el.spec.defaults[1]
			}
			return Result{OK: true, Value: d}, true
		}
		s.fail(ValueNotInitialized, name)
		return Result{Code: ValueNotInitialized}, true
	})
}

func (e *Engine) SetValue(ctx context.Context, id, name, value string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		if code := stateGate(s.State, StoreBeforeInit, StoreAfterTermination); code != NoError {
			s.fail(code, "")
			return Result{Code: code}, true
		}
		if strings.TrimSpace(name) == "" {
			s.fail(GeneralSetFailure, "empty element name")
			return Result{Code: GeneralSetFailure}, true
		}
		el, ok := resolve(name)
		if !ok {
			s.fail(UndefinedElement, name)
			return Result{Code: UndefinedElement}, true
		}
		if el.spec.access == readOnly {
			s.fail(ElementReadOnly, name)
			return Result{Code: ElementReadOnly}, true
		}
		if el.index >= 0 {
			count := InteractionCount(s.Elements)
			switch {
			case el.index > count:
				s.fail(GeneralSetFailure, "interactions must be added in order")
				return Result{Code: GeneralSetFailure}, true
			case el.index == count && el.field != "id":
				s.fail(DependencyNotEstablished, "interaction id must be set first")
				return Result{Code: DependencyNotEstablished}, true
			}
		}
		if code := el.spec.validate(value); code != NoError {
			s.fail(code, name+"="+value)
			return Result{Code: code}, true
		}
		s.Elements[el.name] = value
		s.Dirty = true
		s.ok()
		return Result{OK: true}, true
	})
}

// Commit flushes the current snapshot. A flush that still fails after the
// configured retries leaves the session Running and dirty and reports 391.
func (e *Engine) Commit(ctx context.Context, id string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		if code := stateGate(s.State, CommitBeforeInit, CommitAfterTermination); code != NoError {
			s.fail(code, "")
			return Result{Code: code}, true
		}
		flush := e.flush(ctx, s)
		if flush.Failed() {
			s.fail(GeneralCommitFailure, flush.Err.Error())
			return Result{Code: GeneralCommitFailure, Flush: flush}, true
		}
		s.ok()
		return Result{OK: true, Flush: flush}, true
	})
}

// Terminate commits pending changes and leaves a Terminated tombstone with
// the element data dropped. If that implicit commit fails the session stays
// Running so the content can try again.
func (e *Engine) Terminate(ctx context.Context, id string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		if code := stateGate(s.State, TerminationBeforeInit, TerminationAfterTermination); code != NoError {
			s.fail(code, "")
			return Result{Code: code}, true
		}
		var flush *FlushResult
		if s.Dirty {
			flush = e.flush(ctx, s)
			if flush.Failed() {
				s.fail(GeneralCommitFailure, flush.Err.Error())
				return Result{Code: GeneralCommitFailure, Flush: flush}, true
			}
		}
		s.State = StateTerminated
		s.Elements = map[string]string{}
		s.Dirty = false
		s.ok()
		if tomb := e.now().Add(e.opts.TerminatedTTL).UTC(); tomb.Before(s.ExpiresAt) {
			s.ExpiresAt = tomb
		}
		if err := e.store.Save(ctx, s); err != nil {
			e.log.Warn("rte session tombstone failed; evicting", "session_id", s.ID, "error", err)
			if err := e.store.Delete(ctx, s.ID); err != nil {
				e.log.Warn("rte session evict failed", "session_id", s.ID, "error", err)
			}
		}
		return Result{OK: true, Flush: flush}, false
	})
}

// GetLastError reports 101 for sessions that are unknown or expired.
func (e *Engine) GetLastError(ctx context.Context, id string) Result {
	res := e.with(ctx, id, func(s *Session) (Result, bool) {
		return Result{OK: true, Value: s.LastError.String()}, false
	})
	if !res.OK {
		return Result{OK: true, Value: res.Code.String(), Code: res.Code}
	}
	return res
}

// GetDiagnostic returns detail for code, or for the last error when code is empty.
func (e *Engine) GetDiagnostic(ctx context.Context, id, code string) Result {
	return e.with(ctx, id, func(s *Session) (Result, bool) {
		if code == "" || code == s.LastError.String() {
			if s.LastDiagnostic != "" {
				return Result{OK: true, Value: s.LastDiagnostic}, false
			}
			return Result{OK: true, Value: s.LastError.Message()}, false
		}
		return Result{OK: true, Value: GetErrorString(code)}, false
	})
}

// Call dispatches by RTE method name (with or without the SCORM 1.2 "LMS"
// prefix). Initialize, Terminate and Commit require an empty argument.
func (e *Engine) Call(ctx context.Context, id, method, element, value string) Result {
	m := strings.TrimPrefix(method, "LMS")
	switch m {
	case "GetValue":
		return e.GetValue(ctx, id, element)
	case "SetValue":
		return e.SetValue(ctx, id, element, value)
	case "GetLastError":
		return e.GetLastError(ctx, id)
	case "GetErrorString":
		return Result{OK: true, Value: GetErrorString(element)}
	case "GetDiagnostic":
		return e.GetDiagnostic(ctx, id, element)
	case "Initialize", "Terminate", "Finish", "Commit":
		if element != "" {
			return e.with(ctx, id, func(s *Session) (Result, bool) {
				s.fail(GeneralArgumentError, "parameter must be empty string")
				return Result{Code: GeneralArgumentError}, true
			})
		}
	}
	switch m {
	case "Initialize":
		return e.Initialize(ctx, id)
	case "Terminate", "Finish":
		return e.Terminate(ctx, id)
	case "Commit":
		return e.Commit(ctx, id)
	}
	return Result{Code: GeneralException}
}

func (e *Engine) flush(ctx context.Context, s *Session) *FlushResult {
	res := &FlushResult{Attempted: true}
	snapshot := s.Snapshot()
	for attempt := 1; attempt <= e.opts.CommitRetries; attempt++ {
		res.Attempts = attempt
		res.Err = e.committer.Commit(ctx, s, snapshot)
		if res.Err == nil {
			now := e.now().UTC()
			s.Dirty = false
			s.CommittedAt = &now
			return res
		}
		e.log.Warn("rte commit attempt failed",
			"session_id", s.ID,
			"package_id", s.PackageID,
			"attempt", attempt,
			"error", res.Err,
		)
		if attempt == e.opts.CommitRetries {
			break
		}
		if err := e.sleep(ctx, e.opts.CommitBackoff*time.Duration(attempt)); err != nil {
			res.Err = err
			break
		}
	}
	e.log.Error("rte commit failed; session kept dirty",
		"session_id", s.ID,
		"package_id", s.PackageID,
		"attempts", res.Attempts,
		"error", res.Err,
	)
	return res
}

func stateGate(st State, before, after ErrorCode) ErrorCode {
	switch st {
	case StateNotInitialized:
		return before
	case StateTerminated:
		return after
	}
	return NoError
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
