package domain

import "github.com/yungbote/neurobridge-scorm/internal/domain/scorm"

type Package = scorm.Package
type ProgressRecord = scorm.ProgressRecord
type Interaction = scorm.Interaction

type CompletionStatus = scorm.CompletionStatus
type SuccessStatus = scorm.SuccessStatus

const (
	CompletionNotAttempted = scorm.CompletionNotAttempted
	CompletionIncomplete   = scorm.CompletionIncomplete
	CompletionCompleted    = scorm.CompletionCompleted
	CompletionPassed       = scorm.CompletionPassed
	CompletionFailed       = scorm.CompletionFailed

	SuccessUnknown = scorm.SuccessUnknown
	SuccessPassed  = scorm.SuccessPassed
	SuccessFailed  = scorm.SuccessFailed
)
