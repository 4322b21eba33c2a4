package scorm

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type CompletionStatus string

const (
	CompletionNotAttempted CompletionStatus = "not attempted"
	CompletionIncomplete   CompletionStatus = "incomplete"
	CompletionCompleted    CompletionStatus = "completed"
	CompletionPassed       CompletionStatus = "passed"
	CompletionFailed       CompletionStatus = "failed"
)

// Done reports whether the status unlocks downstream content.
func (s CompletionStatus) Done() bool {
	return s == CompletionCompleted || s == CompletionPassed
}

type SuccessStatus string

const (
	SuccessUnknown SuccessStatus = "unknown"
	SuccessPassed  SuccessStatus = "passed"
	SuccessFailed  SuccessStatus = "failed"
)

// ProgressRecord is the durable per-learner, per-package CMI state.
type ProgressRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_scorm_progress_user_package,priority:1" json:"user_id"`
	PackageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_scorm_progress_user_package,priority:2;index" json:"package_id"`

	CompletionStatus CompletionStatus `gorm:"column:completion_status;type:text;not null;default:'not attempted'" json:"completion_status"`
	SuccessStatus    SuccessStatus    `gorm:"column:success_status;type:text;not null;default:'unknown'" json:"success_status"`

	ScoreRaw    *float64 `gorm:"column:score_raw" json:"score_raw,omitempty"`
	ScoreMin    *float64 `gorm:"column:score_min" json:"score_min,omitempty"`
	ScoreMax    *float64 `gorm:"column:score_max" json:"score_max,omitempty"`
	ScoreScaled *float64 `gorm:"column:score_scaled" json:"score_scaled,omitempty"`
	// ScaledExplicit is set when the content reported cmi.score.scaled itself.
	ScaledExplicit bool `gorm:"column:scaled_explicit;not null;default:false" json:"-"`

	ProgressMeasure *float64 `gorm:"column:progress_measure" json:"progress_measure,omitempty"`

	Location    string `gorm:"column:location;type:text" json:"location,omitempty"`
	SuspendData string `gorm:"column:suspend_data;type:text" json:"suspend_data,omitempty"`

	Completed bool `gorm:"column:completed;not null;default:false;index" json:"completed"`
	// CompletedAt is when the record first reached completion. It is kept
	// when a later commit drops Completed back to false.
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	// LastSessionID is the RTE session that last committed; a new id starts a new attempt.
	LastSessionID string `gorm:"column:last_session_id;type:text" json:"-"`

	Interactions []Interaction `gorm:"foreignKey:ProgressID;constraint:OnDelete:CASCADE" json:"interactions"`

	LastCommittedAt time.Time `gorm:"column:last_committed_at;not null" json:"last_committed_at"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ProgressRecord) TableName() string { return "scorm_progress" }

// Percent is the dashboard-facing progress figure.
func (p *ProgressRecord) Percent() int {
	if p == nil {
		return 0
	}
	if p.Completed {
		return 100
	}
	if p.ProgressMeasure != nil {
		return int(math.Round(math.Max(0, math.Min(1, *p.ProgressMeasure)) * 100))
	}
	return 0
}

// Interaction is one entry of the append-only cmi.interactions log.
type Interaction struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ProgressID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_scorm_interaction_progress_index,priority:1" json:"-"`
	Index      int       `gorm:"column:cmi_index;not null;uniqueIndex:idx_scorm_interaction_progress_index,priority:2" json:"index"`

	InteractionID   string `gorm:"column:interaction_id;type:text;not null" json:"id"`
	Type            string `gorm:"column:type;type:text" json:"type,omitempty"`
	LearnerResponse string `gorm:"column:learner_response;type:text" json:"learner_response,omitempty"`
	Result          string `gorm:"column:result;type:text" json:"result,omitempty"`
	Description     string `gorm:"column:description;type:text" json:"description,omitempty"`
	// SessionID and SessionIndex record which RTE session wrote the row and
	// the index it used, so overlapping sessions never shadow each other.
	SessionID    string `gorm:"column:session_id;type:text;index" json:"-"`
	SessionIndex int    `gorm:"column:session_index;not null;default:0" json:"-"`

	// Timestamp is the CMI timestamp as reported by the content; RecordedAt when it is absent.
	Timestamp  string    `gorm:"column:timestamp;type:text" json:"timestamp"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

func (Interaction) TableName() string { return "scorm_interaction" }
