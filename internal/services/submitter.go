package services

import (
	"context"
	"log"

	"github.com/datti/backend/internal/audit"
	"github.com/datti/backend/internal/models"
)

// Submitter wraps every write to the Datti API with a journal entry and an
// audit line.
type Submitter struct {
	journal *SubmissionJournal
	audit   *audit.Logger
}

func NewSubmitter(journal *SubmissionJournal, auditLogger *audit.Logger) *Submitter {
	return &Submitter{journal: journal, audit: auditLogger}
}

// Submit records PENDING, runs call and records the outcome. call returns the
// id of the resource it created or touched. The call is not made when the
// PENDING row cannot be written.
func (s *Submitter) Submit(ctx context.Context, userID, groupID, resourceID string, op models.SubmissionOperation, amount int64, call func() (string, error)) error {
	submissionID, err := s.journal.Begin(ctx, userID, groupID, resourceID, op)
	if err != nil {
		log.Printf("[JOURNAL] Failed to record pending %s for user %s: %v", op, userID, err)
		return err
	}
	s.audit.LogSubmission(submissionID, userID, groupID, string(op), amount, string(models.SubmissionPending))

	touchedID, callErr := call()
	if touchedID != "" {
		resourceID = touchedID
	}

	if callErr != nil {
		s.audit.LogError(submissionID, userID, callErr)
		if err := s.journal.Fail(ctx, submissionID, userID, groupID, resourceID, op, callErr); err != nil {
			log.Printf("[JOURNAL] Failed to record failure of %s: %v", submissionID, err)
		}
		return callErr
	}

	s.audit.LogSubmission(submissionID, userID, groupID, string(op), amount, string(models.SubmissionSuccess))
	if err := s.journal.Succeed(ctx, submissionID, userID, groupID, resourceID, op); err != nil {
		log.Printf("[JOURNAL] Failed to record success of %s: %v", submissionID, err)
	}
	return nil
}
