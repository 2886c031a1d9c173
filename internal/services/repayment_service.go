package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/datti"
	"github.com/datti/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// RepaymentRequest represents a repayment payload. PaidBy defaults to the caller.
// @Description Repayment submission structure
type RepaymentRequest struct {
	PaidBy string `json:"paidBy,omitempty" example:"u_02"`
	PaidTo string `json:"paidTo" validate:"required,nefield=PaidBy" example:"u_01"`
	Amount *int64 `json:"amount" validate:"required,gt=0" example:"100"`
	PaidAt string `json:"paidAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00" example:"2026-10-02T12:00:00+09:00"`
}

type RepaymentService struct {
	backends  BackendProvider
	submitter *Submitter
	validator *ValidationHelper
}

func NewRepaymentService(backends BackendProvider, submitter *Submitter) *RepaymentService {
	return &RepaymentService{
		backends:  backends,
		submitter: submitter,
		validator: NewValidationHelper(),
	}
}

// ListRepayments lists the repayments of a group
// @Summary List repayments
// @Tags repayments
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {array} models.Repayment
// @Failure 401 {object} ErrorResponse
// @Router /groups/{groupId}/repayments [get]
func (s *RepaymentService) ListRepayments(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	repayments, err := backend.ListRepayments(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayments)
}

// CreateRepayment records a repayment
// @Summary Create repayment
// @Tags repayments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body RepaymentRequest true "Repayment"
// @Success 201 {object} models.Repayment
// @Failure 400 {object} ErrorResponse
// @Router /groups/{groupId}/repayments [post]
func (s *RepaymentService) CreateRepayment(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	var req RepaymentRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if req.PaidBy == "" {
		req.PaidBy = userID
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[REPAYMENT] Validation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	paidAt, _ := time.Parse(time.RFC3339, req.PaidAt)
	repayment, err := s.Create(r.Context(), backend, userID, chi.URLParam(r, "groupId"), datti.RepaymentInput{
		PaidBy: req.PaidBy,
		PaidTo: req.PaidTo,
		Amount: *req.Amount,
		PaidAt: paidAt,
	})
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repayment)
}

// Create sends a repayment through the submission journal.
func (s *RepaymentService) Create(ctx context.Context, backend datti.Backend, userID, groupID string, in datti.RepaymentInput) (*models.Repayment, error) {
	var repayment *models.Repayment
	err := s.submitter.Submit(ctx, userID, groupID, "", models.OperationCreateRepayment, in.Amount, func() (string, error) {
		var err error
		repayment, err = backend.CreateRepayment(ctx, groupID, in)
		if err != nil {
			return "", err
		}
		return repayment.ID, nil
	})
	return repayment, err
}
