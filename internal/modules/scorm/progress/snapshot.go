package progress

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/rte"
)

var ErrInvalidElement = errors.New("progress: invalid cmi element value")

// Snapshot is a typed view of a committed CMI element map. Nil fields were
// absent from the commit and leave stored values alone.
type Snapshot struct {
	Completion      *types.CompletionStatus
	Success         *types.SuccessStatus
	ScoreRaw        *float64
	ScoreMin        *float64
	ScoreMax        *float64
	ScoreScaled     *float64
	ProgressMeasure *float64
	Location        *string
	SuspendData     *string
	Interactions    []InteractionInput
}

type InteractionInput struct {
	Index           int
	ID              string
	Type            string
	LearnerResponse string
	Result          string
	Description     string
	Timestamp       string
}

func (s Snapshot) hasScore() bool {
	return s.ScoreRaw != nil || s.ScoreMin != nil || s.ScoreMax != nil || s.ScoreScaled != nil
}

// ParseSnapshot converts string CMI values into typed fields. Unknown
// elements are ignored; malformed values of known elements are an error.
func ParseSnapshot(elements map[string]string) (Snapshot, error) {
	var snap Snapshot
	inter := map[int]*InteractionInput{}

	for rawName, value := range elements {
		name, ok := rte.Canonical(rawName)
		if !ok {
			continue
		}
		// location and suspend_data are read untrimmed below.
		value = strings.TrimSpace(value)

		if n, field, ok := rte.SplitInteraction(name); ok {
			in := inter[n]
			if in == nil {
				in = &InteractionInput{Index: n}
				inter[n] = in
			}
			switch field {
			case "id":
				in.ID = value
			case "type":
				in.Type = value
			case "learner_response":
				in.LearnerResponse = value
			case "result":
				in.Result = value
			case "description":
				in.Description = value
			case "timestamp":
				in.Timestamp = value
			}
			continue
		}

		var err error
		switch name {
		case rte.ElemCompletionStatus:
			st, ok := completionFromCMI(value)
			if !ok {
				return snap, fmt.Errorf("%w: %s=%q", ErrInvalidElement, rawName, value)
			}
			snap.Completion = &st
		case rte.ElemSuccessStatus:
			st, ok := successFromCMI(value)
			if !ok {
				return snap, fmt.Errorf("%w: %s=%q", ErrInvalidElement, rawName, value)
			}
			snap.Success = &st
		case rte.ElemScoreRaw:
			snap.ScoreRaw, err = parseNumber(rawName, value)
		case rte.ElemScoreMin:
			snap.ScoreMin, err = parseNumber(rawName, value)
		case rte.ElemScoreMax:
			snap.ScoreMax, err = parseNumber(rawName, value)
		case rte.ElemScoreScaled:
			snap.ScoreScaled, err = parseNumber(rawName, value)
		case rte.ElemProgressMeasure:
			snap.ProgressMeasure, err = parseNumber(rawName, value)
		case rte.ElemLocation:
			v := elements[rawName]
			snap.Location = &v
		case rte.ElemSuspendData:
			v := elements[rawName]
			snap.SuspendData = &v
		}
		if err != nil {
			return snap, err
		}
	}

	for _, in := range inter {
		if in.ID == "" {
			continue
		}
		snap.Interactions = append(snap.Interactions, *in)
	}
	sort.Slice(snap.Interactions, func(i, j int) bool { return snap.Interactions[i].Index < snap.Interactions[j].Index })
	return snap, nil
}

func parseNumber(name, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidElement, name, v)
	}
	return &f, nil
}

// completionFromCMI accepts both the 2004 completion vocabulary and the 1.2
// lesson_status vocabulary stored under the same element.
func completionFromCMI(v string) (types.CompletionStatus, bool) {
	switch strings.ToLower(v) {
	case "completed":
		return types.CompletionCompleted, true
	case "passed":
		return types.CompletionPassed, true
	case "failed":
		return types.CompletionFailed, true
	case "incomplete", "browsed":
		return types.CompletionIncomplete, true
	case "not attempted", "unknown", "":
		return types.CompletionNotAttempted, true
	}
	return "", false
}

func successFromCMI(v string) (types.SuccessStatus, bool) {
	switch strings.ToLower(v) {
	case "passed":
		return types.SuccessPassed, true
	case "failed":
		return types.SuccessFailed, true
	case "unknown", "":
		return types.SuccessUnknown, true
	}
	return "", false
}
