package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/datti/backend/internal/datti"
	"github.com/datti/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const dinnerBody = `{
	"name": "Dinner",
	"eventedAt": "2026-10-01T19:00:00+09:00",
	"paidBy": "A",
	"amount": 300,
	"payments": [{"paidTo": "B", "amount": 100}, {"paidTo": "C", "amount": 100}]
}`

func TestLendingService_CreateLending(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		backend := &MockBackend{}
		submitter, dbMock := newTestSubmitter(t)
		service := NewLendingService(newFakeSessions(backend), submitter)

		backend.On("CreateLending", mock.Anything, "g1", mock.MatchedBy(func(in datti.LendingInput) bool {
			want := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
			return in.Name == "Dinner" && in.EventedAt.Equal(want) && in.PaidBy == "A" && in.Amount == 300 &&
				len(in.Payments) == 2 && in.Payments[0] == datti.PaymentInput{PaidTo: "B", Amount: 100}
		})).Return(&models.Lending{
			ID: "l1", GroupID: "g1", Name: "Dinner", Amount: 300, PaidBy: "A",
			Payments: []models.Debt{{PaymentID: "p1", PaidTo: "B", Amount: 100}, {PaymentID: "p2", PaidTo: "C", Amount: 100}},
		}, nil)
		expectJournal(dbMock, models.SubmissionPending, models.SubmissionSuccess)

		w := serve("POST", "/groups/{groupId}/lendings", "/groups/g1/lendings", strings.NewReader(dinnerBody), service.CreateLending)

		require.Equal(t, http.StatusCreated, w.Code)
		var view LendingView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, "l1", view.ID)
		assert.Equal(t, int64(100), view.Burden)

		backend.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("validation failure blocks submission", func(t *testing.T) {
		backend := &MockBackend{}
		submitter, dbMock := newTestSubmitter(t)
		service := NewLendingService(newFakeSessions(backend), submitter)

		body := `{"name":"","eventedAt":"2026-10-01T19:00:00Z","paidBy":"A","amount":300,"payments":[{"paidTo":"A","amount":100}]}`
		w := serve("POST", "/groups/{groupId}/lendings", "/groups/g1/lendings", strings.NewReader(body), service.CreateLending)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Contains(t, response.Details, "name")
		assert.Contains(t, response.Details, "payments[0].paidTo")

		backend.AssertNotCalled(t, "CreateLending", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("upstream error is passed through", func(t *testing.T) {
		backend := &MockBackend{}
		submitter, dbMock := newTestSubmitter(t)
		service := NewLendingService(newFakeSessions(backend), submitter)

		backend.On("CreateLending", mock.Anything, "g1", mock.Anything).
			Return(nil, &datti.APIError{StatusCode: http.StatusUnprocessableEntity, Status: "Unprocessable Entity"})
		expectJournal(dbMock, models.SubmissionPending, models.SubmissionFailed)

		w := serve("POST", "/groups/{groupId}/lendings", "/groups/g1/lendings", strings.NewReader(dinnerBody), service.CreateLending)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Unprocessable Entity", response.Error)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("journal unavailable", func(t *testing.T) {
		backend := &MockBackend{}
		submitter, dbMock := newTestSubmitter(t)
		service := NewLendingService(newFakeSessions(backend), submitter)

		dbMock.ExpectExec("INSERT INTO lending_submissions").WillReturnError(errors.New("connection reset"))

		w := serve("POST", "/groups/{groupId}/lendings", "/groups/g1/lendings", strings.NewReader(dinnerBody), service.CreateLending)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		backend.AssertNotCalled(t, "CreateLending", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("session store failure", func(t *testing.T) {
		submitter, _ := newTestSubmitter(t)
		sessions := newFakeSessions(&MockBackend{})
		sessions.forceErr = errors.New("redis down")
		service := NewLendingService(sessions, submitter)

		w := serve("POST", "/groups/{groupId}/lendings", "/groups/g1/lendings", strings.NewReader(dinnerBody), service.CreateLending)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestLendingService_UpdateLending(t *testing.T) {
	backend := &MockBackend{}
	submitter, dbMock := newTestSubmitter(t)
	service := NewLendingService(newFakeSessions(backend), submitter)

	body := `{"name":"Dinner","eventedAt":"2026-10-01T19:00:00Z","paidBy":"A","amount":300,
		"payments":[{"paymentId":"p1","paidTo":"B","amount":150},{"paidTo":"D","amount":0}]}`

	backend.On("UpdateLending", mock.Anything, "g1", "l1", mock.MatchedBy(func(in datti.LendingInput) bool {
		return len(in.Payments) == 2 &&
			in.Payments[0] == datti.PaymentInput{PaymentID: "p1", PaidTo: "B", Amount: 150} &&
			in.Payments[1] == datti.PaymentInput{PaidTo: "D", Amount: 0}
	})).Return(&models.Lending{ID: "l1", Amount: 300, PaidBy: "A", Payments: []models.Debt{{PaymentID: "p1", PaidTo: "B", Amount: 150}}}, nil)
	expectJournal(dbMock, models.SubmissionPending, models.SubmissionSuccess)

	w := serve("PUT", "/groups/{groupId}/lendings/{lendingId}", "/groups/g1/lendings/l1", strings.NewReader(body), service.UpdateLending)

	require.Equal(t, http.StatusOK, w.Code)
	var view LendingView
	json.Unmarshal(w.Body.Bytes(), &view)
	assert.Equal(t, int64(150), view.Burden)
	backend.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLendingService_DeleteLending(t *testing.T) {
	backend := &MockBackend{}
	submitter, dbMock := newTestSubmitter(t)
	service := NewLendingService(newFakeSessions(backend), submitter)

	backend.On("DeleteLending", mock.Anything, "g1", "l1").Return(nil)
	dbMock.ExpectExec("INSERT INTO lending_submissions").
		WithArgs(sqlmock.AnyArg(), "A", "g1", "l1", string(models.OperationDeleteLending), string(models.SubmissionPending), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectJournal(dbMock, models.SubmissionSuccess)

	w := serve("DELETE", "/groups/{groupId}/lendings/{lendingId}", "/groups/g1/lendings/l1", nil, service.DeleteLending)

	assert.Equal(t, http.StatusNoContent, w.Code)
	backend.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLendingService_Read(t *testing.T) {
	backend := &MockBackend{}
	submitter, _ := newTestSubmitter(t)
	service := NewLendingService(newFakeSessions(backend), submitter)

	backend.On("ListLendings", mock.Anything, "g1").Return([]models.Lending{
		{ID: "l1", Amount: 300, Payments: []models.Debt{{PaidTo: "B", Amount: 100}}},
		{ID: "l2", Amount: 100, Payments: []models.Debt{{PaidTo: "B", Amount: 150}}},
	}, nil)
	backend.On("GetLending", mock.Anything, "g1", "missing").
		Return(nil, &datti.APIError{StatusCode: http.StatusNotFound, Status: "Not Found"})

	t.Run("list includes burden", func(t *testing.T) {
		w := serve("GET", "/groups/{groupId}/lendings", "/groups/g1/lendings", nil, service.ListLendings)

		require.Equal(t, http.StatusOK, w.Code)
		var views []LendingView
		json.Unmarshal(w.Body.Bytes(), &views)
		require.Len(t, views, 2)
		assert.Equal(t, int64(200), views[0].Burden)
		assert.Equal(t, int64(-50), views[1].Burden)
	})

	t.Run("missing lending", func(t *testing.T) {
		w := serve("GET", "/groups/{groupId}/lendings/{lendingId}", "/groups/g1/lendings/missing", nil, service.GetLending)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Not Found", response.Error)
	})
}

func TestGroupService(t *testing.T) {
	backend := &MockBackend{}
	service := NewGroupService(newFakeSessions(backend))

	backend.On("ListMembers", mock.Anything, "g1").Return([]models.Member{{UserID: "A", Name: "Taro"}}, nil)
	backend.On("ListCredits", mock.Anything, "g1").Return([]models.Credit{{UserID: "A", Name: "Taro", Amount: -200}}, nil)

	w := serve("GET", "/groups/{groupId}/members", "/groups/g1/members", nil, service.ListMembers)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"userId":"A","name":"Taro"}]`, w.Body.String())

	w = serve("GET", "/groups/{groupId}/credits", "/groups/g1/credits", nil, service.ListCredits)
	assert.Equal(t, http.StatusOK, w.Code)
	var credits []models.Credit
	json.Unmarshal(w.Body.Bytes(), &credits)
	assert.Equal(t, int64(-200), credits[0].Amount)
}
