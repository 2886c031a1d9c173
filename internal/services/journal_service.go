package services

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	mW "github.com/datti/backend/internal/middleware"
	"github.com/datti/backend/internal/models"
	"github.com/google/uuid"
)

// SubmissionJournal is the append-only record of every write sent to the
// Datti API. A submission gets a PENDING row before the call and a SUCCESS or
// FAILED row after it; rows are never updated.
type SubmissionJournal struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubmissionJournal(db *sql.DB) *SubmissionJournal {
	return &SubmissionJournal{db: db, now: time.Now}
}

func (j *SubmissionJournal) Begin(ctx context.Context, userID, groupID, resourceID string, op models.SubmissionOperation) (string, error) {
	submissionID := uuid.NewString()
	if err := j.appendState(ctx, submissionID, userID, groupID, resourceID, op, models.SubmissionPending, ""); err != nil {
		return "", err
	}
	return submissionID, nil
}

func (j *SubmissionJournal) Succeed(ctx context.Context, submissionID, userID, groupID, resourceID string, op models.SubmissionOperation) error {
	return j.appendState(ctx, submissionID, userID, groupID, resourceID, op, models.SubmissionSuccess, "")
}

func (j *SubmissionJournal) Fail(ctx context.Context, submissionID, userID, groupID, resourceID string, op models.SubmissionOperation, cause error) error {
	return j.appendState(ctx, submissionID, userID, groupID, resourceID, op, models.SubmissionFailed, cause.Error())
}

func (j *SubmissionJournal) appendState(ctx context.Context, submissionID, userID, groupID, resourceID string, op models.SubmissionOperation, state models.SubmissionState, detail string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO lending_submissions (submission_id, user_id, group_id, resource_id, operation, state, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		submissionID, userID, groupID, nullString(resourceID), string(op), string(state), nullString(detail), j.now())
	return err
}

func (j *SubmissionJournal) ListByUser(ctx context.Context, userID string, limit int) ([]models.Submission, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, submission_id, user_id, group_id, resource_id, operation, state, detail, created_at
		FROM lending_submissions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := []models.Submission{}
	for rows.Next() {
		var s models.Submission
		var resourceID, detail sql.NullString
		if err := rows.Scan(&s.ID, &s.SubmissionID, &s.UserID, &s.GroupID, &resourceID, &s.Operation, &s.State, &detail, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.ResourceID = resourceID.String
		s.Detail = detail.String
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// ListSubmissions returns the caller's submission history
// @Summary List submissions
// @Description Append-only history of lendings and repayments sent by the caller, newest first
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {array} models.Submission
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions [get]
func (j *SubmissionJournal) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fe := FieldErrors{}
			fe.Add("limit", "Must be a positive number")
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fe)
			return
		}
		limit = min(n, 200)
	}

	submissions, err := j.ListByUser(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[JOURNAL] Failed to list submissions for %s: %v", userID, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, submissions)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
