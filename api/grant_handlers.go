package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"casetrack/core"
	"casetrack/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handlers below sit behind requireServerAdministrator; they manage who can
// reach which case and are never exposed to standard users.

// upsertGrantRequest binds a subject to a case at an access level.
type upsertGrantRequest struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Level       string `json:"level"`
}

// listGrants returns every grant on a case.
func (a *API) listGrants(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	grants, err := a.grants.ListGrantsByCase(r.Context(), caseID)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	if grants == nil {
		grants = []*core.AccessGrant{}
	}
	writeSuccess(w, grants)
}

// upsertGrant creates or replaces the grant for a (subject, case) pair.
func (a *API) upsertGrant(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.actingUser(w, r)
	if !ok {
		return
	}

	var req upsertGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subjectType := core.SubjectType(req.SubjectType)
	if !subjectType.IsValid() {
		writeError(w, core.NewValidationError("validation failed",
			map[string]string{"subject_type": "must be user or group"}), a.logger)
		return
	}
	if req.SubjectID == "" {
		writeError(w, core.NewValidationError("validation failed",
			map[string]string{"subject_id": "this field is required"}), a.logger)
		return
	}
	level, ok := core.ParseAccessLevel(req.Level)
	if !ok {
		writeError(w, core.NewValidationError("validation failed",
			map[string]string{"level": "must be none, read_only or full_access"}), a.logger)
		return
	}

	if _, err := a.cases.Get(r.Context(), caseID); err != nil {
		writeError(w, err, a.logger)
		return
	}

	now := time.Now().UTC()
	grant := &core.AccessGrant{
		ID:          uuid.NewString(),
		SubjectType: subjectType,
		SubjectID:   req.SubjectID,
		CaseID:      caseID,
		Level:       level,
		GrantedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.grants.UpsertGrant(r.Context(), grant); err != nil {
		writeError(w, err, a.logger)
		return
	}

	a.logger.Infow("Access grant upserted",
		"case_id", caseID, "subject_type", subjectType, "subject_id", req.SubjectID,
		"level", level.String(), "granted_by", user.ID)
	writeCreated(w, grant)
}

// deleteGrant removes the grant for a (subject, case) pair. The subject is
// addressed through query parameters to keep the route shape flat.
func (a *API) deleteGrant(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	q := r.URL.Query()

	subjectType := core.SubjectType(q.Get("subject_type"))
	subjectID := q.Get("subject_id")
	if !subjectType.IsValid() || subjectID == "" {
		writeError(w, core.NewValidationError("validation failed", map[string]string{
			"subject_type": "must be user or group",
			"subject_id":   "this field is required",
		}), a.logger)
		return
	}

	if err := a.grants.DeleteGrant(r.Context(), subjectType, subjectID, caseID); err != nil {
		if errors.Is(err, storage.ErrGrantNotFound) {
			writeError(w, core.NewObjectNotFoundError("grant", ""), a.logger)
			return
		}
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"case_id": caseID, "subject_id": subjectID})
}

// createGroupRequest names a new group.
type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// createGroup creates an empty group.
func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, core.NewValidationError("validation failed",
			map[string]string{"name": "this field is required"}), a.logger)
		return
	}

	now := time.Now().UTC()
	group := &core.Group{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.grants.CreateGroup(r.Context(), group); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeCreated(w, group)
}

// deleteGroup removes a group, its memberships and its grants.
func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group_id"]
	if err := a.grants.DeleteGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			writeError(w, core.NewObjectNotFoundError("group", groupID), a.logger)
			return
		}
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"id": groupID})
}

// listGroupMembers returns the user IDs belonging to a group.
func (a *API) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group_id"]
	members, err := a.grants.ListGroupMembers(r.Context(), groupID)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	if members == nil {
		members = []string{}
	}
	writeSuccess(w, members)
}

// addGroupMember adds a user to a group.
func (a *API) addGroupMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.grants.AddGroupMember(r.Context(), vars["group_id"], vars["user_id"]); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"group_id": vars["group_id"], "user_id": vars["user_id"]})
}

// removeGroupMember removes a user from a group.
func (a *API) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.grants.RemoveGroupMember(r.Context(), vars["group_id"], vars["user_id"]); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"group_id": vars["group_id"], "user_id": vars["user_id"]})
}
