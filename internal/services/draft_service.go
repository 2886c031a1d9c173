package services

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/allocator"
	mW "github.com/datti/backend/internal/middleware"
	"github.com/datti/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateDraftRequest opens a form. With LendingID the form edits that lending.
// @Description Draft creation structure
type CreateDraftRequest struct {
	LendingID string `json:"lendingId,omitempty" example:"l_01"`
	PaidBy    string `json:"paidBy,omitempty" example:"u_01"`
}

// UpdateDraftRequest changes the plain fields of a form; omitted fields are kept.
type UpdateDraftRequest struct {
	Name      *string `json:"name,omitempty" example:"Dinner"`
	EventedAt *string `json:"eventedAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00" example:"2026-10-01T19:00:00+09:00"`
	Amount    *int64  `json:"amount,omitempty" example:"300"`
}

type SelectPayerRequest struct {
	PaidBy string `json:"paidBy" example:"u_01"` // empty clears the payer
}

type SetDebtRequest struct {
	Amount *int64 `json:"amount" validate:"required" example:"100"`
}

// SplitRequest fills every debt from the total. Weighted splits default
// missing weights to 1.
type SplitRequest struct {
	Mode    string                     `json:"mode" validate:"required,oneof=even weighted" example:"even"`
	Weights map[string]decimal.Decimal `json:"weights,omitempty" swaggertype:"object"`
}

// DraftService hosts lending forms. Each draft carries its own allocator
// state between requests.
type DraftService struct {
	backends  BackendProvider
	store     DraftStore
	lendings  *LendingService
	validator *ValidationHelper
	now       func() time.Time
	newID     func() string
}

func NewDraftService(backends BackendProvider, store DraftStore, lendings *LendingService) *DraftService {
	return &DraftService{
		backends:  backends,
		store:     store,
		lendings:  lendings,
		validator: NewValidationHelper(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateDraft opens a new lending form
// @Summary Create draft
// @Description Opens an empty form, or an edit form seeded from an existing lending. Members who joined since are added with zero debts.
// @Tags drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body CreateDraftRequest false "Draft options"
// @Success 201 {object} LendingDraft
// @Failure 429 {object} ErrorResponse
// @Router /groups/{groupId}/drafts [post]
func (s *DraftService) CreateDraft(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if !DecodeOptionalRequest(w, r, &req) {
		return
	}

	groupID := chi.URLParam(r, "groupId")
	members, err := backend.ListMembers(r.Context(), groupID)
	if err != nil {
		SendBackendError(w, err)
		return
	}

	now := s.now()
	draft := &LendingDraft{
		ID:        s.newID(),
		OwnerID:   userID,
		GroupID:   groupID,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var alloc *allocator.Allocator
	if req.LendingID != "" {
		lending, err := backend.GetLending(r.Context(), groupID, req.LendingID)
		if err != nil {
			SendBackendError(w, err)
			return
		}
		amount := lending.Amount
		draft.LendingID = lending.ID
		draft.Name = lending.Name
		draft.EventedAt = lending.EventedAt.Format(time.RFC3339)
		draft.Amount = &amount
		alloc = allocator.Restore(members, lending.PaidBy, lending.Payments)
	} else {
		alloc = allocator.New(members)
		if req.PaidBy != "" {
			if !draft.isMember(req.PaidBy) {
				sendNotMember(w)
				return
			}
			alloc.SelectPayer(req.PaidBy)
		}
	}
	draft.apply(alloc)

	if err := s.store.Create(r.Context(), draft); err != nil {
		if errors.Is(err, ErrDraftRateLimited) {
			SendErrorResponse(w, "Too many drafts, try again later", http.StatusTooManyRequests, nil)
			return
		}
		log.Printf("[DRAFT] Failed to store draft for %s: %v", userID, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[DRAFT] Draft %s opened by %s in group %s", draft.ID, userID, groupID)
	writeJSON(w, http.StatusCreated, draft)
}

// GetDraft returns a form with its current debts and burden
// @Summary Get draft
// @Tags drafts
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 200 {object} LendingDraft
// @Failure 404 {object} ErrorResponse
// @Router /drafts/{draftId} [get]
func (s *DraftService) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// UpdateDraft edits name, date and total
// @Summary Update draft fields
// @Tags drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param request body UpdateDraftRequest true "Fields to change"
// @Success 200 {object} LendingDraft
// @Failure 400 {object} ErrorResponse
// @Router /drafts/{draftId} [put]
func (s *DraftService) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.Name != nil {
		draft.Name = *req.Name
	}
	if req.EventedAt != nil {
		draft.EventedAt = *req.EventedAt
	}
	if req.Amount != nil {
		amount := *req.Amount
		draft.Amount = &amount
	}
	draft.apply(draft.restoreAllocator())

	s.saveDraft(w, r, draft)
}

// SelectPayer sets who paid and resets every debt
// @Summary Select payer
// @Description Rebuilds the debt list with one zero debt per other member. Entered amounts are discarded.
// @Tags drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param request body SelectPayerRequest true "Payer"
// @Success 200 {object} LendingDraft
// @Failure 400 {object} ErrorResponse
// @Router /drafts/{draftId}/payer [put]
func (s *DraftService) SelectPayer(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}

	var req SelectPayerRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if req.PaidBy != "" && !draft.isMember(req.PaidBy) {
		sendNotMember(w)
		return
	}

	alloc := draft.restoreAllocator()
	alloc.SelectPayer(req.PaidBy)
	draft.apply(alloc)

	s.saveDraft(w, r, draft)
}

// SetDebt changes the amount one member owes
// @Summary Set debt amount
// @Tags drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param paidTo path string true "Debtor user ID"
// @Param request body SetDebtRequest true "Amount"
// @Success 200 {object} LendingDraft
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /drafts/{draftId}/debts/{paidTo} [put]
func (s *DraftService) SetDebt(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}

	var req SetDebtRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	alloc := draft.restoreAllocator()
	if alloc.State() == allocator.NoPayerSelected {
		SendErrorResponse(w, "Select a payer first", http.StatusConflict, nil)
		return
	}
	if !alloc.SetDebtAmount(chi.URLParam(r, "paidTo"), *req.Amount) {
		SendErrorResponse(w, "No debt for this member", http.StatusNotFound, nil)
		return
	}
	draft.apply(alloc)

	s.saveDraft(w, r, draft)
}

// SplitDraft fills the debts from the total
// @Summary Split total
// @Description Even or weighted split. Shares are rounded down and the payer keeps the remainder.
// @Tags drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param request body SplitRequest true "Split mode"
// @Success 200 {object} LendingDraft
// @Failure 409 {object} ErrorResponse
// @Router /drafts/{draftId}/split [post]
func (s *DraftService) SplitDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}

	var req SplitRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	alloc := draft.restoreAllocator()
	if alloc.State() == allocator.NoPayerSelected {
		SendErrorResponse(w, "Select a payer first", http.StatusConflict, nil)
		return
	}
	if draft.Amount == nil {
		SendErrorResponse(w, "Set the amount first", http.StatusConflict, nil)
		return
	}

	switch req.Mode {
	case "weighted":
		alloc.ReplaceDebts(allocator.SplitAmong(*draft.Amount, alloc.PayerID(), alloc.Debts(), req.Weights, draft.isMember))
	default:
		alloc.ReplaceDebts(allocator.SplitAmong(*draft.Amount, "", alloc.Debts(), nil, draft.isMember))
	}
	draft.apply(alloc)

	s.saveDraft(w, r, draft)
}

// SubmitDraft validates the form and sends it to the Datti API
// @Summary Submit draft
// @Description Creates the lending, or updates it for edit forms. The draft is removed on success and kept on failure.
// @Tags drafts
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 200 {object} LendingView "Updated"
// @Success 201 {object} LendingView "Created"
// @Failure 400 {object} ErrorResponse
// @Router /drafts/{draftId}/submit [post]
func (s *DraftService) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	backend, userID, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	req := draft.submission()
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[DRAFT] Draft %s failed validation: %v", draft.ID, err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var (
		lending *models.Lending
		err     error
		status  = http.StatusCreated
	)
	if draft.LendingID != "" {
		lending, err = s.lendings.update(r.Context(), backend, userID, draft.GroupID, draft.LendingID, req)
		status = http.StatusOK
	} else {
		lending, err = s.lendings.create(r.Context(), backend, userID, draft.GroupID, req)
	}
	if err != nil {
		SendBackendError(w, err)
		return
	}

	if err := s.store.Delete(r.Context(), draft.ID); err != nil {
		log.Printf("[DRAFT] Failed to remove submitted draft %s: %v", draft.ID, err)
	}
	writeJSON(w, status, newLendingView(*lending))
}

// DeleteDraft discards a form
// @Summary Delete draft
// @Tags drafts
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 204
// @Router /drafts/{draftId} [delete]
func (s *DraftService) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.loadDraft(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), draft.ID); err != nil {
		log.Printf("[DRAFT] Failed to delete draft %s: %v", draft.ID, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadDraft fetches the draft named in the URL. Drafts of other users are
// reported as missing.
func (s *DraftService) loadDraft(w http.ResponseWriter, r *http.Request) (*LendingDraft, bool) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}

	draft, err := s.store.Get(r.Context(), chi.URLParam(r, "draftId"))
	if errors.Is(err, ErrDraftNotFound) || (err == nil && draft.OwnerID != userID) {
		SendErrorResponse(w, "Draft not found", http.StatusNotFound, nil)
		return nil, false
	}
	if err != nil {
		log.Printf("[DRAFT] Failed to load draft: %v", err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return nil, false
	}
	return draft, true
}

func (s *DraftService) saveDraft(w http.ResponseWriter, r *http.Request, draft *LendingDraft) {
	draft.UpdatedAt = s.now()
	if err := s.store.Save(r.Context(), draft); err != nil {
		log.Printf("[DRAFT] Failed to save draft %s: %v", draft.ID, err)
		SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func sendNotMember(w http.ResponseWriter) {
	fe := FieldErrors{}
	fe.Add("paidBy", "Not a member of this group")
	SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fe)
}
