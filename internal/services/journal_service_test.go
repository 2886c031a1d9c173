package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/datti/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submissionColumns = []string{"id", "submission_id", "user_id", "group_id", "resource_id", "operation", "state", "detail", "created_at"}

func newTestJournal(t *testing.T) (*SubmissionJournal, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	journal := NewSubmissionJournal(db)
	journal.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return journal, dbMock
}

func TestSubmissionJournal_AppendOnly(t *testing.T) {
	journal, dbMock := newTestJournal(t)
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	dbMock.ExpectExec("INSERT INTO lending_submissions").
		WithArgs(sqlmock.AnyArg(), "A", "g1", nil, "CREATE_LENDING", "PENDING", nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectExec("INSERT INTO lending_submissions").
		WithArgs(sqlmock.AnyArg(), "A", "g1", nil, "CREATE_LENDING", "FAILED", "Conflict", at).
		WillReturnResult(sqlmock.NewResult(2, 1))

	ctx := context.Background()
	id, err := journal.Begin(ctx, "A", "g1", "", models.OperationCreateLending)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	err = journal.Fail(ctx, id, "A", "g1", "", models.OperationCreateLending, errors.New("Conflict"))
	assert.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSubmissionJournal_ListByUser(t *testing.T) {
	journal, dbMock := newTestJournal(t)
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(submissionColumns).
		AddRow(2, "s1", "A", "g1", "l1", "CREATE_LENDING", "SUCCESS", nil, at).
		AddRow(1, "s1", "A", "g1", nil, "CREATE_LENDING", "PENDING", nil, at)
	dbMock.ExpectQuery("SELECT (.+) FROM lending_submissions").WithArgs("A", 50).WillReturnRows(rows)

	submissions, err := journal.ListByUser(context.Background(), "A", 50)

	require.NoError(t, err)
	require.Len(t, submissions, 2)
	assert.Equal(t, "l1", submissions[0].ResourceID)
	assert.Equal(t, models.SubmissionSuccess, submissions[0].State)
	assert.Empty(t, submissions[1].ResourceID)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSubmissionJournal_ListSubmissions(t *testing.T) {
	t.Run("limit is capped", func(t *testing.T) {
		journal, dbMock := newTestJournal(t)
		dbMock.ExpectQuery("SELECT (.+) FROM lending_submissions").
			WithArgs("A", 200).
			WillReturnRows(sqlmock.NewRows(submissionColumns))

		w := serve("GET", "/submissions", "/submissions?limit=1000", nil, journal.ListSubmissions)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("bad limit", func(t *testing.T) {
		journal, _ := newTestJournal(t)

		w := serve("GET", "/submissions", "/submissions?limit=-1", nil, journal.ListSubmissions)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Contains(t, response.Details, "limit")
	})

	t.Run("database error", func(t *testing.T) {
		journal, dbMock := newTestJournal(t)
		dbMock.ExpectQuery("SELECT (.+) FROM lending_submissions").WillReturnError(errors.New("connection reset"))

		w := serve("GET", "/submissions", "/submissions", nil, journal.ListSubmissions)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
