package api

import (
	"encoding/json"
	"net/http"
	"time"

	"casetrack/core"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// requireAccess resolves the request's checker and authorizes the acting user
// against the case at any of the required levels. On failure it writes the
// response and returns ok=false.
func (a *API) requireAccess(w http.ResponseWriter, r *http.Request, caseID string, required ...core.AccessLevel) (*core.User, bool) {
	checker, ok := GetChecker(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	decision := checker.Authorize(r.Context(), caseID, required...)
	if !decision.Allowed {
		writeErrorMessage(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	return checker.User(), true
}

// actingUser returns the authenticated user or writes a 401.
func (a *API) actingUser(w http.ResponseWriter, r *http.Request) (*core.User, bool) {
	user, ok := GetUser(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	return user, true
}

// listCases returns the paginated case list. Standard users see only cases
// they hold a read grant on; server administrators see everything.
func (a *API) listCases(w http.ResponseWriter, r *http.Request) {
	user, ok := a.actingUser(w, r)
	if !ok {
		return
	}

	filters := parseCaseFilters(r)
	if !user.IsServerAdministrator() {
		filters.VisibleToUserID = user.ID
	}

	page, err := a.cases.List(r.Context(), filters)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, page)
}

// createCase creates a case and grants the creator full access to it.
func (a *API) createCase(w http.ResponseWriter, r *http.Request) {
	user, ok := a.actingUser(w, r)
	if !ok {
		return
	}

	var req core.CaseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := a.cases.Create(r.Context(), user, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}

	// The creator must be able to work the case they just opened.
	now := time.Now().UTC()
	grant := &core.AccessGrant{
		ID:          uuid.NewString(),
		SubjectType: core.SubjectUser,
		SubjectID:   user.ID,
		CaseID:      c.ID,
		Level:       core.AccessLevelFullAccess,
		GrantedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.grants.UpsertGrant(r.Context(), grant); err != nil {
		a.logger.Errorw("Failed to grant creator access to new case",
			"case_id", c.ID, "user_id", user.ID, "error", err)
	}

	writeCreated(w, c)
}

// getCase returns a single case the user can read.
func (a *API) getCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	if _, ok := a.requireAccess(w, r, caseID, core.AccessLevelReadOnly, core.AccessLevelFullAccess); !ok {
		return
	}

	c, err := a.cases.Get(r.Context(), caseID)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, c)
}

// updateCase applies a partial update to a case.
func (a *API) updateCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	var req core.CaseUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := a.cases.Update(r.Context(), user, caseID, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, c)
}

// deleteCase removes a case and everything scoped to it.
func (a *API) deleteCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	if err := a.cases.Delete(r.Context(), user, caseID); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"id": caseID})
}

// closeCase transitions an open case to closed.
func (a *API) closeCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	c, err := a.cases.Close(r.Context(), user, caseID)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, c)
}

// reopenCase transitions a closed case back to open.
func (a *API) reopenCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	c, err := a.cases.Reopen(r.Context(), user, caseID)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, c)
}
