package progress

import types "github.com/yungbote/neurobridge-scorm/internal/domain"

// ScaledScore is raw/max clamped to [0,1]; nil when either side is missing
// or max is not positive.
func ScaledScore(raw, maxScore *float64) *float64 {
	if raw == nil || maxScore == nil || *maxScore <= 0 {
		return nil
	}
	v := *raw / *maxScore
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return &v
}

// IsCompleted is the unlock signal, computed from the current scalars only:
// completed/passed, a passed success verdict, or a full progress measure.
func IsCompleted(status types.CompletionStatus, success types.SuccessStatus, progressMeasure *float64) bool {
	if status.Done() || success == types.SuccessPassed {
		return true
	}
	return progressMeasure != nil && *progressMeasure >= 1.0
}
