package models

import "time"

type SubmissionState string

const (
	SubmissionPending SubmissionState = "PENDING"
	SubmissionSuccess SubmissionState = "SUCCESS"
	SubmissionFailed  SubmissionState = "FAILED"
)

type SubmissionOperation string

const (
	OperationCreateLending   SubmissionOperation = "CREATE_LENDING"
	OperationUpdateLending   SubmissionOperation = "UPDATE_LENDING"
	OperationDeleteLending   SubmissionOperation = "DELETE_LENDING"
	OperationCreateRepayment SubmissionOperation = "CREATE_REPAYMENT"
)

// Submission is one row of the append-only submission journal.
type Submission struct {
	ID           int                 `json:"id" db:"id"`
	SubmissionID string              `json:"submissionId" db:"submission_id"`
	UserID       string              `json:"userId" db:"user_id"`
	GroupID      string              `json:"groupId" db:"group_id"`
	ResourceID   string              `json:"resourceId,omitempty" db:"resource_id"`
	Operation    SubmissionOperation `json:"operation" db:"operation"`
	State        SubmissionState     `json:"state" db:"state"`
	Detail       string              `json:"detail,omitempty" db:"detail"`
	CreatedAt    time.Time           `json:"createdAt" db:"created_at"`
}
