package rte

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type recordingCommitter struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	snapshots []map[string]string
}

func (c *recordingCommitter) Commit(_ context.Context, _ *Session, elems map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFirst {
		return errors.New("db unavailable")
	}
	c.snapshots = append(c.snapshots, elems)
	return nil
}

func newTestEngine(t *testing.T, c Committer, version string) (*Engine, string) {
	t.Helper()
	e := NewEngine(NewMemorySessionStore(), c, Options{CommitRetries: 3}, logger.Nop())
	e.sleep = func(context.Context, time.Duration) error { return nil }
	s, err := e.Open(context.Background(), OpenParams{
		LearnerID: uuid.New(),
		PackageID: uuid.New(),
		LessonID:  uuid.New(),
		Version:   version,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e, s.ID
}

func mustOK(t *testing.T, r Result, what string) {
	t.Helper()
	if !r.OK {
		t.Fatalf("%s: want ok got code=%d", what, r.Code)
	}
}

func mustFail(t *testing.T, r Result, code ErrorCode, what string) {
	t.Helper()
	if r.OK || r.Code != code {
		t.Fatalf("%s: want=false/%d got=%v/%d", what, code, r.OK, r.Code)
	}
}

func TestStateMachineLegality(t *testing.T) {
	ctx := context.Background()
	e, id := newTestEngine(t, &recordingCommitter{}, Version2004)

	mustFail(t, e.GetValue(ctx, id, ElemLocation), RetrieveBeforeInit, "GetValue before Initialize")
	mustFail(t, e.SetValue(ctx, id, ElemLocation, "p1"), StoreBeforeInit, "SetValue before Initialize")
	mustFail(t, e.Commit(ctx, id), CommitBeforeInit, "Commit before Initialize")
	mustFail(t, e.Terminate(ctx, id), TerminationBeforeInit, "Terminate before Initialize")
	if got := e.GetLastError(ctx, id).Value; got != "112" {
		t.Fatalf("GetLastError: want=112 got=%s", got)
	}

	mustOK(t, e.Initialize(ctx, id), "Initialize")
	mustFail(t, e.Initialize(ctx, id), AlreadyInitialized, "second Initialize")
	if got := e.GetLastError(ctx, id).Value; got != "103" {
		t.Fatalf("GetLastError: want=103 got=%s", got)
	}

	mustOK(t, e.SetValue(ctx, id, ElemLocation, "p1"), "SetValue")
	if got := e.GetLastError(ctx, id).Value; got != "0" {
		t.Fatalf("GetLastError after success: want=0 got=%s", got)
	}
	mustOK(t, e.Terminate(ctx, id), "Terminate")
	if got := e.GetLastError(ctx, id).Value; got != "0" {
		t.Fatalf("GetLastError after Terminate: want=0 got=%s", got)
	}

	mustFail(t, e.GetValue(ctx, id, ElemLocation), RetrieveAfterTermination, "GetValue after Terminate")
	if got := e.GetLastError(ctx, id).Value; got != "123" {
		t.Fatalf("GetLastError: want=123 got=%s", got)
	}
	mustFail(t, e.SetValue(ctx, id, ElemLocation, "p2"), StoreAfterTermination, "SetValue after Terminate")
	mustFail(t, e.Commit(ctx, id), CommitAfterTermination, "Commit after Terminate")
	mustFail(t, e.Terminate(ctx, id), TerminationAfterTermination, "second Terminate")
	mustFail(t, e.Initialize(ctx, id), ContentInstanceTerminated, "Initialize after Terminate")

	s, err := e.Session(ctx, id)
	if err != nil {
		t.Fatalf("terminated session should linger: %v", err)
	}
	if s.State != StateTerminated || len(s.Elements) != 0 {
		t.Fatalf("tombstone: state=%s elements=%v", s.State, s.Elements)
	}
}

func TestTerminatedSessionExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	e := NewEngine(store, &recordingCommitter{}, Options{TerminatedTTL: time.Minute}, logger.Nop())
	s, err := e.Open(ctx, OpenParams{LearnerID: uuid.New(), Version: Version12})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustOK(t, e.Initialize(ctx, s.ID), "Initialize")
	mustOK(t, e.Terminate(ctx, s.ID), "Terminate")

	got, err := e.Session(ctx, s.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if d := time.Until(got.ExpiresAt); d > time.Minute {
		t.Fatalf("tombstone expiry: want<=1m got=%v", d)
	}

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	mustFail(t, e.GetValue(ctx, s.ID, ElemLocation), GeneralException, "GetValue after tombstone expiry")
}

func TestUnknownSession(t *testing.T) {
	e, _ := newTestEngine(t, &recordingCommitter{}, Version12)
	mustFail(t, e.Initialize(context.Background(), "missing"), GeneralException, "Initialize unknown")
	if got := e.GetLastError(context.Background(), "missing").Value; got != "101" {
		t.Fatalf("GetLastError unknown: want=101 got=%s", got)
	}
}

func TestExpiredSession(t *testing.T) {
	store := NewMemorySessionStore()
	e := NewEngine(store, &recordingCommitter{}, Options{}, logger.Nop())
	s, err := e.Open(context.Background(), OpenParams{LearnerID: uuid.New(), ExpiresAt: time.Now().Add(-time.Second)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustFail(t, e.Initialize(context.Background(), s.ID), GeneralException, "Initialize expired")
}

func TestGetSetValue(t *testing.T) {
	ctx := context.Background()
	e, id := newTestEngine(t, &recordingCommitter{}, Version2004)
	mustOK(t, e.Initialize(ctx, id), "Initialize")

	if got := e.GetValue(ctx, id, ElemCompletionStatus); !got.OK || got.Value != "unknown" {
		t.Fatalf("default completion_status: %+v", got)
	}
	if got := e.GetValue(ctx, id, "cmi._version"); got.Value != "1.0" {
		t.Fatalf("cmi._version: got=%q", got.Value)
	}
	if got := e.GetValue(ctx, id, "cmi.entry"); got.Value != EntryAbInitio {
		t.Fatalf("cmi.entry: got=%q", got.Value)
	}
	mustFail(t, e.GetValue(ctx, id, ElemScoreRaw), ValueNotInitialized, "unset score")
	mustFail(t, e.GetValue(ctx, id, "cmi.bogus"), UndefinedElement, "unknown element")
	if got := e.GetValue(ctx, id, "cmi.bogus"); got.Value != "" {
		t.Fatalf("unknown element should read empty, got %q", got.Value)
	}
	mustFail(t, e.GetValue(ctx, id, ElemExit), ElementWriteOnly, "write-only read")

	cases := []struct {
		el, v string
		code  ErrorCode
	}{
		{ElemCompletionStatus, "completed", NoError},
		{ElemCompletionStatus, "done", TypeMismatch},
		{ElemSuccessStatus, "passed", NoError},
		{ElemScoreRaw, "85", NoError},
		{ElemScoreRaw, "eighty", TypeMismatch},
		{ElemScoreScaled, "0.9", NoError},
		{ElemScoreScaled, "1.5", ValueOutOfRange},
		{ElemProgressMeasure, "1.01", ValueOutOfRange},
		{ElemSuspendData, "A1B2", NoError},
		{ElemExit, "suspend", NoError},
		{"cmi._version", "2.0", ElementReadOnly},
		{"cmi.interactions._count", "3", ElementReadOnly},
		{"cmi.objectives.0.id", "x", UndefinedElement},
		{"cmi.interactions.0.type", "choice", DependencyNotEstablished},
		{"cmi.interactions.1.id", "q2", GeneralSetFailure},
		{"cmi.interactions.0.id", "q1", NoError},
		{"cmi.interactions.0.type", "choice", NoError},
		{"cmi.interactions.0.type", "essay", TypeMismatch},
		{"cmi.interactions.0.result", "0.5", NoError},
		{"cmi.interactions.0.result", "maybe", TypeMismatch},
		{"cmi.interactions.1.id", "q2", NoError},
		{"cmi.interactions.x.id", "q3", UndefinedElement},
	}
	for _, tc := range cases {
		r := e.SetValue(ctx, id, tc.el, tc.v)
		if tc.code == NoError {
			mustOK(t, r, tc.el+"="+tc.v)
			continue
		}
		mustFail(t, r, tc.code, tc.el+"="+tc.v)
	}

	if got := e.GetValue(ctx, id, "cmi.interactions._count"); got.Value != "2" {
		t.Fatalf("_count: want=2 got=%q", got.Value)
	}
	if got := e.GetValue(ctx, id, "cmi.interactions.0.type"); got.Value != "choice" {
		t.Fatalf("interaction type: got=%q", got.Value)
	}
	mustFail(t, e.GetValue(ctx, id, "cmi.interactions.5.id"), GeneralGetFailure, "interaction out of range")
	if got := e.GetValue(ctx, id, ElemCompletionStatus); got.Value != "completed" {
		t.Fatalf("completion_status: got=%q", got.Value)
	}
}

func TestScorm12Aliases(t *testing.T) {
	ctx := context.Background()
	e, id := newTestEngine(t, &recordingCommitter{}, Version12)
	mustOK(t, e.Call(ctx, id, "LMSInitialize", "", ""), "LMSInitialize")

	if got := e.GetValue(ctx, id, "cmi.core.lesson_status"); got.Value != "not attempted" {
		t.Fatalf("1.2 default lesson_status: got=%q", got.Value)
	}
	if got := e.GetValue(ctx, id, "cmi._version"); got.Value != "3.4" {
		t.Fatalf("1.2 cmi._version: got=%q", got.Value)
	}
	mustOK(t, e.SetValue(ctx, id, "cmi.core.lesson_status", "passed"), "lesson_status passed")
	mustOK(t, e.SetValue(ctx, id, "cmi.core.score.min", ""), "blank core score min")
	mustOK(t, e.SetValue(ctx, id, "cmi.core.score.raw", "72"), "core score raw")
	mustFail(t, e.SetValue(ctx, id, "cmi.core.score.max", "lots"), TypeMismatch, "non-numeric core score max")
	mustFail(t, e.SetValue(ctx, id, ElemScoreMin, ""), TypeMismatch, "blank canonical score min")
	mustOK(t, e.SetValue(ctx, id, "cmi.core.lesson_location", "page-3"), "lesson_location")
	mustFail(t, e.SetValue(ctx, id, "cmi.core.exit", "normal"), TypeMismatch, "1.2 exit vocabulary")
	mustOK(t, e.SetValue(ctx, id, "cmi.interactions.0.id", "q1"), "interaction id")
	mustOK(t, e.SetValue(ctx, id, "cmi.interactions.0.student_response", "b"), "student_response")

	s, err := e.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	want := []struct{ el, v string }{
		{ElemCompletionStatus, "passed"},
		{ElemScoreRaw, "72"},
		{ElemScoreMin, ""},
		{ElemLocation, "page-3"},
		{InteractionElement(0, "learner_response"), "b"},
	}
	for _, w := range want {
		if s.Elements[w.el] != w.v {
			t.Fatalf("%s: want=%q got=%q", w.el, w.v, s.Elements[w.el])
		}
	}
	if got := e.GetValue(ctx, id, "cmi.core.student_id"); got.Value != s.LearnerID.String() {
		t.Fatalf("student_id: got=%q", got.Value)
	}
}

func TestCommitFlushesSnapshot(t *testing.T) {
	ctx := context.Background()
	c := &recordingCommitter{}
	e, id := newTestEngine(t, c, Version2004)
	mustOK(t, e.Initialize(ctx, id), "Initialize")
	mustOK(t, e.SetValue(ctx, id, ElemScoreRaw, "85"), "raw")
	mustOK(t, e.SetValue(ctx, id, ElemScoreMax, "100"), "max")

	r := e.Commit(ctx, id)
	mustOK(t, r, "Commit")
	if r.Flush == nil || r.Flush.Attempts != 1 {
		t.Fatalf("flush result: %+v", r.Flush)
	}
	if len(c.snapshots) != 1 || c.snapshots[0][ElemScoreRaw] != "85" || c.snapshots[0][ElemScoreMax] != "100" {
		t.Fatalf("snapshot: %+v", c.snapshots)
	}
	s, _ := e.Session(ctx, id)
	if s.Dirty || s.CommittedAt == nil {
		t.Fatalf("commit should clear dirty: %+v", s)
	}
}

func TestCommitRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	c := &recordingCommitter{failFirst: 2}
	e, id := newTestEngine(t, c, Version2004)
	mustOK(t, e.Initialize(ctx, id), "Initialize")
	mustOK(t, e.SetValue(ctx, id, ElemLocation, "p"), "SetValue")

	r := e.Commit(ctx, id)
	mustOK(t, r, "Commit")
	if r.Flush.Attempts != 3 {
		t.Fatalf("attempts: want=3 got=%d", r.Flush.Attempts)
	}
}

func TestCommitExhaustedKeepsSessionRunning(t *testing.T) {
	ctx := context.Background()
	c := &recordingCommitter{failFirst: 100}
	e, id := newTestEngine(t, c, Version2004)
	mustOK(t, e.Initialize(ctx, id), "Initialize")
	mustOK(t, e.SetValue(ctx, id, ElemLocation, "p"), "SetValue")

	r := e.Commit(ctx, id)
	mustFail(t, r, GeneralCommitFailure, "Commit with failing store")
	if !r.Flush.Failed() || r.Flush.Attempts != 3 {
		t.Fatalf("flush: %+v", r.Flush)
	}
	s, _ := e.Session(ctx, id)
	if s.State != StateRunning || !s.Dirty {
		t.Fatalf("session must stay running and dirty: state=%s dirty=%v", s.State, s.Dirty)
	}

	mustFail(t, e.Terminate(ctx, id), GeneralCommitFailure, "Terminate with failing store")
	if s, err := e.Session(ctx, id); err != nil || s.State != StateRunning {
		t.Fatalf("failed terminate should keep session: err=%v", err)
	}

	c.mu.Lock()
	c.failFirst = 0
	c.mu.Unlock()
	mustOK(t, e.Terminate(ctx, id), "Terminate after recovery")
	if len(c.snapshots) != 1 || c.snapshots[0][ElemLocation] != "p" {
		t.Fatalf("pending data should be flushed on terminate: %+v", c.snapshots)
	}
}

func TestTerminateSkipsFlushWhenClean(t *testing.T) {
	ctx := context.Background()
	c := &recordingCommitter{}
	e, id := newTestEngine(t, c, Version2004)
	mustOK(t, e.Initialize(ctx, id), "Initialize")
	r := e.Terminate(ctx, id)
	mustOK(t, r, "Terminate")
	if r.Flush != nil || c.calls != 0 {
		t.Fatalf("clean terminate should not commit: flush=%+v calls=%d", r.Flush, c.calls)
	}
}

func TestCallArgumentsAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	e, id := newTestEngine(t, &recordingCommitter{}, Version2004)

	mustFail(t, e.Call(ctx, id, "Initialize", "x", ""), GeneralArgumentError, "Initialize with argument")
	r := e.Call(ctx, id, "Initialize", "", "")
	if r.Wire("Initialize") != "true" {
		t.Fatalf("wire: got=%q", r.Wire("Initialize"))
	}
	e.SetValue(ctx, id, ElemScoreScaled, "7")
	if got := e.Call(ctx, id, "GetLastError", "", ""); got.Wire("GetLastError") != "407" {
		t.Fatalf("GetLastError wire: got=%q", got.Wire("GetLastError"))
	}
	if got := e.Call(ctx, id, "GetErrorString", "407", ""); got.Value != "Data Model Element Value Out Of Range" {
		t.Fatalf("GetErrorString: got=%q", got.Value)
	}
	if got := e.Call(ctx, id, "GetDiagnostic", "", ""); got.Value != "cmi.score.scaled=7" {
		t.Fatalf("GetDiagnostic: got=%q", got.Value)
	}
	if got := e.Call(ctx, id, "GetValue", ElemScoreScaled, ""); got.Wire("GetValue") != "" {
		t.Fatalf("rejected write should not be stored: %q", got.Value)
	}
	if got := e.Call(ctx, id, "Bogus", "", ""); got.OK {
		t.Fatalf("unknown method should fail")
	}
}
