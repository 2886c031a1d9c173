package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GroupService exposes read-only group data computed by the Datti API.
type GroupService struct {
	backends BackendProvider
}

func NewGroupService(backends BackendProvider) *GroupService {
	return &GroupService{backends: backends}
}

// ListMembers lists the members of a group
// @Summary List members
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {array} models.Member
// @Failure 401 {object} ErrorResponse
// @Router /groups/{groupId}/members [get]
func (s *GroupService) ListMembers(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	members, err := backend.ListMembers(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// ListCredits returns every member's net balance
// @Summary List credits
// @Description Net amount each member is owed (positive) or owes (negative)
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {array} models.Credit
// @Failure 401 {object} ErrorResponse
// @Router /groups/{groupId}/credits [get]
func (s *GroupService) ListCredits(w http.ResponseWriter, r *http.Request) {
	backend, _, ok := BackendForRequest(w, r, s.backends)
	if !ok {
		return
	}

	credits, err := backend.ListCredits(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		SendBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}
