package rte

import (
	"math"
	"strconv"
	"strings"
)

type access int

const (
	readWrite access = iota
	readOnly
	writeOnly
)

type elementSpec struct {
	access   access
	validate func(v string) ErrorCode
	// defaults when unset: [0] for SCORM 1.2 sessions, [1] for 2004
	defaults *[2]string
}

// Canonical element names stored in Session.Elements.
const (
	ElemCompletionStatus = "cmi.completion_status"
	ElemSuccessStatus    = "cmi.success_status"
	ElemScoreRaw         = "cmi.score.raw"
	ElemScoreMin         = "cmi.score.min"
	ElemScoreMax         = "cmi.score.max"
	ElemScoreScaled      = "cmi.score.scaled"
	ElemProgressMeasure  = "cmi.progress_measure"
	ElemLocation         = "cmi.location"
	ElemSuspendData      = "cmi.suspend_data"
	ElemExit             = "cmi.exit"
	ElemSessionTime      = "cmi.session_time"

	interactionsPrefix = "cmi.interactions."
)

var (
	completion2004 = vocab("completed", "incomplete", "not attempted", "unknown")
	lessonStatus12 = vocab("passed", "completed", "failed", "incomplete", "browsed", "not attempted")
	successVocab   = vocab("passed", "failed", "unknown")
	exit2004       = vocab("time-out", "suspend", "logout", "normal", "")
	exit12         = vocab("time-out", "suspend", "logout", "")
	interactionTyp = vocab("true-false", "choice", "fill-in", "long-fill-in", "matching",
		"performance", "sequencing", "likert", "numeric", "other")
	resultVocab = vocab("correct", "incorrect", "wrong", "unanticipated", "neutral")
)

var elements = map[string]elementSpec{
	ElemCompletionStatus: {access: readWrite, validate: completion2004, defaults: &[2]string{"not attempted", "unknown"}},
	ElemSuccessStatus:    {access: readWrite, validate: successVocab, defaults: &[2]string{"unknown", "unknown"}},
	ElemScoreRaw:         {access: readWrite, validate: realNumber},
	ElemScoreMin:         {access: readWrite, validate: realNumber},
	ElemScoreMax:         {access: readWrite, validate: realNumber},
	ElemScoreScaled:      {access: readWrite, validate: realRange(-1, 1)},
	ElemProgressMeasure:  {access: readWrite, validate: realRange(0, 1)},
	ElemLocation:         {access: readWrite, validate: anyValue, defaults: &[2]string{"", ""}},
	ElemSuspendData:      {access: readWrite, validate: anyValue, defaults: &[2]string{"", ""}},
	ElemExit:             {access: writeOnly, validate: exit2004},
	ElemSessionTime:      {access: writeOnly, validate: nonEmpty},
}

var interactionFields = map[string]func(string) ErrorCode{
	"id":               nonEmpty,
	"type":             interactionTyp,
	"learner_response": anyValue,
	"result":           interactionResult,
	"description":      anyValue,
	"timestamp":        nonEmpty,
}

// SCORM 1.2 names mapped onto the canonical store. A non-nil spec overrides
// the canonical element's validation for writes through the alias.
var aliases = map[string]struct {
	canonical string
	spec      *elementSpec
}{
	"cmi.core.lesson_status":   {ElemCompletionStatus, &elementSpec{access: readWrite, validate: lessonStatus12, defaults: &[2]string{"not attempted", "not attempted"}}},
	"cmi.core.score.raw":       {ElemScoreRaw, &score12},
	"cmi.core.score.min":       {ElemScoreMin, &score12},
	"cmi.core.score.max":       {ElemScoreMax, &score12},
	"cmi.core.lesson_location": {ElemLocation, nil},
	"cmi.core.student_id":      {"cmi.learner_id", nil},
	"cmi.core.student_name":    {"cmi.learner_name", nil},
	"cmi.core.entry":           {"cmi.entry", nil},
	"cmi.core.credit":          {"cmi.credit", nil},
	"cmi.core.lesson_mode":     {"cmi.mode", nil},
	"cmi.core.exit":            {ElemExit, &elementSpec{access: writeOnly, validate: exit12}},
	"cmi.core.session_time":    {ElemSessionTime, nil},
	"cmi.core.score._children": {"cmi.core.score._children", nil},
}

// CMIDecimal in 1.2 may be blank; SCOs reset a score by writing "".
var score12 = elementSpec{access: readWrite, validate: blankOrReal}

var interactionFieldAliases = map[string]string{
	"student_response": "learner_response",
	"time":             "timestamp",
}

// element is a resolved CMI path.
type element struct {
	name  string // canonical
	spec  elementSpec
	index int    // interactions index, -1 otherwise
	field string // interactions field
}

// resolve maps a requested element (canonical or 1.2 alias) to its canonical
// form. ok is false for anything outside the recognized namespace.
func resolve(requested string) (element, bool) {
	name := strings.TrimSpace(requested)
	var override *elementSpec
	if a, ok := aliases[name]; ok {
		name, override = a.canonical, a.spec
	}

	if strings.HasPrefix(name, interactionsPrefix) {
		return resolveInteraction(name)
	}
	if isComputed(name) {
		return element{name: name, spec: elementSpec{access: readOnly}, index: -1}, true
	}
	spec, ok := elements[name]
	if !ok {
		return element{}, false
	}
	if override != nil {
		spec = *override
	}
	return element{name: name, spec: spec, index: -1}, true
}

func resolveInteraction(name string) (element, bool) {
	rest := strings.TrimPrefix(name, interactionsPrefix)
	if rest == "_count" || rest == "_children" {
		return element{name: name, spec: elementSpec{access: readOnly}, index: -1}, true
	}
	idx, field, found := strings.Cut(rest, ".")
	if !found || idx == "" {
		return element{}, false
	}
	for _, r := range idx {
		if r < '0' || r > '9' {
			return element{}, false
		}
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return element{}, false
	}
	if a, ok := interactionFieldAliases[field]; ok {
		field = a
	}
	validate, ok := interactionFields[field]
	if !ok {
		return element{}, false
	}
	return element{
		name:  InteractionElement(n, field),
		spec:  elementSpec{access: readWrite, validate: validate},
		index: n,
		field: field,
	}, true
}

// Canonical maps a recognized element name (including SCORM 1.2 aliases) to
// the name it is stored under.
func Canonical(name string) (string, bool) {
	el, ok := resolve(name)
	if !ok {
		return "", false
	}
	return el.name, true
}

// SplitInteraction parses a canonical "cmi.interactions.<n>.<field>" name.
func SplitInteraction(name string) (int, string, bool) {
	if !strings.HasPrefix(name, interactionsPrefix) {
		return 0, "", false
	}
	el, ok := resolveInteraction(name)
	if !ok || el.index < 0 {
		return 0, "", false
	}
	return el.index, el.field, true
}

// InteractionElement builds "cmi.interactions.<n>.<field>".
func InteractionElement(n int, field string) string {
	return interactionsPrefix + strconv.Itoa(n) + "." + field
}

// isComputed reports read-only elements whose value comes from the session
// itself rather than the element store.
func isComputed(name string) bool {
	switch name {
	case "cmi._version", "cmi.learner_id", "cmi.learner_name", "cmi.mode", "cmi.entry", "cmi.credit",
		"cmi.score._children", "cmi.core.score._children":
		return true
	}
	return false
}

func sessionValue(s *Session, name string) string {
	switch name {
	case "cmi._version":
		if s.is2004() {
			return "1.0"
		}
		return "3.4"
	case "cmi.learner_id":
		return s.LearnerID.String()
	case "cmi.learner_name":
		return s.LearnerName
	case "cmi.mode":
		return "normal"
	case "cmi.entry":
		if s.Entry == "" {
			return EntryAbInitio
		}
		return s.Entry
	case "cmi.credit":
		return "credit"
	case "cmi.score._children":
		return "scaled,raw,min,max"
	case "cmi.core.score._children":
		return "raw,min,max"
	case interactionsPrefix + "_children":
		return "id,type,timestamp,learner_response,result,description"
	case interactionsPrefix + "_count":
		return strconv.Itoa(InteractionCount(s.Elements))
	}
	return ""
}

// InteractionCount is the length of the contiguous interaction collection.
func InteractionCount(elems map[string]string) int {
	n := 0
	for {
		if _, ok := elems[InteractionElement(n, "id")]; !ok {
			return n
		}
		n++
	}
}

func vocab(words ...string) func(string) ErrorCode {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(v string) ErrorCode {
		if _, ok := set[v]; ok {
			return NoError
		}
		return TypeMismatch
	}
}

func parseReal(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func realNumber(v string) ErrorCode {
	if _, ok := parseReal(v); !ok {
		return TypeMismatch
	}
	return NoError
}

func blankOrReal(v string) ErrorCode {
	if v == "" {
		return NoError
	}
	return realNumber(v)
}

func realRange(lo, hi float64) func(string) ErrorCode {
	return func(v string) ErrorCode {
		f, ok := parseReal(v)
		if !ok {
			return TypeMismatch
		}
		if f < lo || f > hi {
			return ValueOutOfRange
		}
		return NoError
	}
}

func interactionResult(v string) ErrorCode {
	if resultVocab(v) == NoError {
		return NoError
	}
	return realNumber(v)
}

func nonEmpty(v string) ErrorCode {
	if strings.TrimSpace(v) == "" {
		return TypeMismatch
	}
	return NoError
}

func anyValue(string) ErrorCode { return NoError }
