package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/datti/backend/internal/datti"
	"github.com/datti/backend/internal/models"
	"github.com/datti/backend/internal/services"
)

type QRHandler struct {
	service    *services.QRService
	repayments *services.RepaymentService
	backends   services.BackendProvider
	validator  *services.ValidationHelper
}

func NewQRHandler(service *services.QRService, repayments *services.RepaymentService, backends services.BackendProvider) *QRHandler {
	return &QRHandler{
		service:    service,
		repayments: repayments,
		backends:   backends,
		validator:  services.NewValidationHelper(),
	}
}

type GenerateQRRequest struct {
	GroupID string `json:"groupId" validate:"required" example:"g_01"`
	Amount  *int64 `json:"amount" validate:"required,gt=0" example:"1200"`
}

type ProcessQRRequest struct {
	QRData string `json:"qrData" validate:"required"`
}

// GenerateQR generates a repayment request QR code
// @Summary Generate QR Code
// @Description Generate a QR code asking group members to repay the caller the given amount
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateQRRequest true "QR generation request"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := services.BackendForRequest(w, r, h.backends)
	if !ok {
		return
	}

	var req GenerateQRRequest
	if !services.DecodeRequest(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	members, err := backend.ListMembers(r.Context(), req.GroupID)
	if err != nil {
		services.SendBackendError(w, err)
		return
	}
	if !isGroupMember(members, userID) {
		log.Printf("[QR] User %s is not a member of group %s", userID, req.GroupID)
		services.SendErrorResponse(w, "Not a member of this group", http.StatusForbidden, nil)
		return
	}

	qrCode, qrImage, err := h.service.GenerateQRCode(r.Context(), userID, req.GroupID, *req.Amount)
	if err != nil {
		log.Printf("[QR] Failed to generate code for %s: %v", userID, err)
		services.SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"qrCode":    qrCode,
		"qrImage":   qrImage,
		"expiresIn": int(h.service.Timeout().Seconds()),
	})
}

// ProcessQR redeems a scanned QR code as a repayment
// @Summary Process QR Code
// @Description Records a repayment from the scanner to the user who generated the code
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProcessQRRequest true "QR processing request"
// @Success 201 {object} models.Repayment
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	backend, userID, ok := services.BackendForRequest(w, r, h.backends)
	if !ok {
		return
	}

	var req ProcessQRRequest
	if !services.DecodeRequest(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessQRCode(r.Context(), req.QRData, userID)
	if errors.Is(err, services.ErrQRExpired) || errors.Is(err, services.ErrQRSelfScan) {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[QR] Failed to process code for %s: %v", userID, err)
		services.SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
		return
	}

	repayment, err := h.repayments.Create(r.Context(), backend, userID, result.GroupID, datti.RepaymentInput{
		PaidBy: userID,
		PaidTo: result.UserID,
		Amount: result.Amount,
		PaidAt: time.Now(),
	})
	if err != nil {
		services.SendBackendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(repayment)
}

func isGroupMember(members []models.Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
