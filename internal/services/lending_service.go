package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/allocator"
	"github.com/datti/backend/internal/datti"
	"github.com/datti/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// PaymentRequest is one debt of a lending submission.
// @Description Debt owed to the payer by one member
type PaymentRequest struct {
	PaymentID string `json:"paymentId,omitempty" example:"p_01"`        // Set when editing an existing debt
	PaidTo    string `json:"paidTo" validate:"required" example:"u_02"` // Debtor user ID
	Amount    *int64 `json:"amount" validate:"required" example:"100"`  // Amount owed
}

// LendingRequest represents a lending create/update payload
// @Description Lending submission structure
type LendingRequest struct {
	Name      string           `json:"name" validate:"required" example:"Dinner"`
	EventedAt string           `json:"eventedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00" example:"2026-10-01T19:00:00+09:00"`
	PaidBy    string           `json:"paidBy" validate:"required" example:"u_01"`
	Amount    *int64           `json:"amount" validate:"required" example:"300"`
	Payments  []PaymentRequest `json:"payments" validate:"dive"`
}

// LendingView is a lending with the payer's own share.
type LendingView struct {
	models.Lending
	Burden int64 `json:"burden" example:"100"`
}

func newLendingView(l models.Lending) LendingView {
	return LendingView{Lending: l, Burden: allocator.ComputeBurden(l.Amount, l.Payments)}
}

// toInput converts a validated request. keepIDs controls whether payment ids
// are forwarded, which only makes sense on update.
func (req LendingRequest) toInput(keepIDs bool) datti.LendingInput {
	eventedAt, _ := time.Parse(time.RFC3339, req.EventedAt)

	debts := make([]models.Debt, 0, len(req.Payments))
	for _, p := range req.Payments {
		debts = append(debts, models.Debt{PaymentID: p.PaymentID, PaidTo: p.PaidTo, Amount: *p.Amount})
	}

	return datti.LendingInput{
		Name:      req.Name,
		EventedAt: eventedAt,
		PaidBy:    req.PaidBy,
		Amount:    *req.Amount,
		Payments:  datti.PaymentsFromDebts(debts, keepIDs),
	}
}

type LendingService struct {
	backends  BackendProvider
	submitter *Submitter
	validator *ValidationHelper
}

func NewLendingService(backends BackendProvider, submitter *Submitter) *LendingService {
	return &LendingService{
		backends:  backends,
		submitter: submitter,
		validator: NewValidationHelper(),
	}
}

// ListLendings lists the lendings of a group
// @Summary List lendings
// @Tags lendings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {array} LendingView
// @Failure 401 {object} ErrorResponse
// @Router /groups/{groupId}/lendings [get]
func (s *LendingService) ListLendings(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	lendings, err := backend.ListLendings(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		SendBackendError(w, err)
		return
	}

	views := make([]LendingView, 0, len(lendings))
	for _, l := range lendings {
		views = append(views, newLendingView(l))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetLending returns one lending with the payer's burden
// @Summary Get lending
// @Tags lendings
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param lendingId path string true "Lending ID"
// @Success 200 {object} LendingView
// @Failure 404 {object} ErrorResponse
// @Router /groups/{groupId}/lendings/{lendingId} [get]
func (s *LendingService) GetLending(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	lending, err := backend.GetLending(r.Context(), chi.URLParam(r, "groupId"), chi.URLParam(r, "lendingId"))
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLendingView(*lending))
}

// CreateLending records a new lending
// @Summary Create lending
// @Description Validates the lending and forwards it to the Datti API
// @Tags lendings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body LendingRequest true "Lending"
// @Success 201 {object} LendingView
// @Failure 400 {object} ErrorResponse
// @Router /groups/{groupId}/lendings [post]
func (s *LendingService) CreateLending(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	var req LendingRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[LENDING] Validation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	lending, err := s.create(r.Context(), backend, userID, chi.URLParam(r, "groupId"), req)
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLendingView(*lending))
}

// UpdateLending replaces an existing lending
// @Summary Update lending
// @Tags lendings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param lendingId path string true "Lending ID"
// @Param request body LendingRequest true "Lending"
// @Success 200 {object} LendingView
// @Failure 400 {object} ErrorResponse
// @Router /groups/{groupId}/lendings/{lendingId} [put]
func (s *LendingService) UpdateLending(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	var req LendingRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[LENDING] Validation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	lending, err := s.update(r.Context(), backend, userID, chi.URLParam(r, "groupId"), chi.URLParam(r, "lendingId"), req)
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLendingView(*lending))
}

// DeleteLending removes a lending
// @Summary Delete lending
// @Tags lendings
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param lendingId path string true "Lending ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /groups/{groupId}/lendings/{lendingId} [delete]
func (s *LendingService) DeleteLending(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	groupID := chi.URLParam(r, "groupId")
	lendingID := chi.URLParam(r, "lendingId")
	err := s.submitter.Submit(r.Context(), userID, groupID, lendingID, models.OperationDeleteLending, 0, func() (string, error) {
		return lendingID, backend.DeleteLending(r.Context(), groupID, lendingID)
	})
	if err != nil {
		SendBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *LendingService) create(ctx context.Context, backend datti.Backend, userID, groupID string, req LendingRequest) (*models.Lending, error) {
	var lending *models.Lending
	err := s.submitter.Submit(ctx, userID, groupID, "", models.OperationCreateLending, *req.Amount, func() (string, error) {
		var err error
		lending, err = backend.CreateLending(ctx, groupID, req.toInput(false))
		if err != nil {
			return "", err
		}
		return lending.ID, nil
	})
	return lending, err
}

func (s *LendingService) update(ctx context.Context, backend datti.Backend, userID, groupID, lendingID string, req LendingRequest) (*models.Lending, error) {
	var lending *models.Lending
	err := s.submitter.Submit(ctx, userID, groupID, lendingID, models.OperationUpdateLending, *req.Amount, func() (string, error) {
		var err error
		lending, err = backend.UpdateLending(ctx, groupID, lendingID, req.toInput(true))
		return lendingID, err
	})
	return lending, err
}
