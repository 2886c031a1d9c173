package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/datti/backend/internal/audit"
	"github.com/datti/backend/internal/datti"
	mW "github.com/datti/backend/internal/middleware"
	"github.com/datti/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockBackend) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *MockBackend) ListLendings(ctx context.Context, groupID string) ([]models.Lending, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lending), args.Error(1)
}

func (m *MockBackend) GetLending(ctx context.Context, groupID, lendingID string) (*models.Lending, error) {
	args := m.Called(ctx, groupID, lendingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lending), args.Error(1)
}

func (m *MockBackend) CreateLending(ctx context.Context, groupID string, in datti.LendingInput) (*models.Lending, error) {
	args := m.Called(ctx, groupID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lending), args.Error(1)
}

func (m *MockBackend) UpdateLending(ctx context.Context, groupID, lendingID string, in datti.LendingInput) (*models.Lending, error) {
	args := m.Called(ctx, groupID, lendingID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lending), args.Error(1)
}

func (m *MockBackend) DeleteLending(ctx context.Context, groupID, lendingID string) error {
	args := m.Called(ctx, groupID, lendingID)
	return args.Error(0)
}

func (m *MockBackend) ListRepayments(ctx context.Context, groupID string) ([]models.Repayment, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Repayment), args.Error(1)
}

func (m *MockBackend) CreateRepayment(ctx context.Context, groupID string, in datti.RepaymentInput) (*models.Repayment, error) {
	args := m.Called(ctx, groupID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Repayment), args.Error(1)
}

func (m *MockBackend) ListCredits(ctx context.Context, groupID string) ([]models.Credit, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Credit), args.Error(1)
}

// fakeSessions hands out the same backend for every known session.
type fakeSessions struct {
	mu        sync.Mutex
	backend   datti.Backend
	tokens    map[string]*oauth2.Token
	saveErr   error
	deleteErr error
	deleted   []string
	forceErr  error
}

func newFakeSessions(backend datti.Backend) *fakeSessions {
	return &fakeSessions{backend: backend, tokens: map[string]*oauth2.Token{"sid-1": {AccessToken: "access"}}}
}

func (f *fakeSessions) ForSession(ctx context.Context, sessionID string) (datti.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceErr != nil {
		return nil, f.forceErr
	}
	if _, ok := f.tokens[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	return f.backend, nil
}

func (f *fakeSessions) Save(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.tokens[sessionID] = tok
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sessionID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tokens, sessionID)
	return nil
}

// memDraftStore is an in-memory DraftStore.
type memDraftStore struct {
	drafts      map[string]LendingDraft
	rateLimited bool
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: map[string]LendingDraft{}}
}

func (s *memDraftStore) Create(ctx context.Context, d *LendingDraft) error {
	if s.rateLimited {
		return ErrDraftRateLimited
	}
	return s.Save(ctx, d)
}

func (s *memDraftStore) Get(ctx context.Context, id string) (*LendingDraft, error) {
	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	d.Payments = append([]models.Debt{}, d.Payments...)
	return &d, nil
}

func (s *memDraftStore) Save(ctx context.Context, d *LendingDraft) error {
	s.drafts[d.ID] = *d
	return nil
}

func (s *memDraftStore) Delete(ctx context.Context, id string) error {
	delete(s.drafts, id)
	return nil
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(mW.WithIdentity(r.Context(), userID, "sid-1"))
}

// newTestSubmitter returns a submitter whose journal writes go to sqlmock.
func newTestSubmitter(t *testing.T) (*Submitter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := audit.NewLogger()
	return NewSubmitter(NewSubmissionJournal(db), logger), mock
}

func expectJournal(mock sqlmock.Sqlmock, states ...models.SubmissionState) {
	for _, state := range states {
		mock.ExpectExec("INSERT INTO lending_submissions").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), string(state), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
}

// serve routes one request through chi so URL params resolve, as user A.
func serve(method, pattern, target string, body io.Reader, h http.HandlerFunc) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.MethodFunc(method, pattern, h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(httptest.NewRequest(method, target, body), "A"))
	return w
}
