package api

import (
	"encoding/json"
	"net/http"

	"casetrack/core"

	"github.com/gorilla/mux"
)

// listIOCs returns the paginated IOC list for a case.
func (a *API) listIOCs(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	if _, ok := a.requireAccess(w, r, caseID, core.AccessLevelReadOnly, core.AccessLevelFullAccess); !ok {
		return
	}

	page, err := a.iocs.List(r.Context(), caseID, parseIOCFilters(r))
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, page)
}

// createIOC adds an IOC to a case.
func (a *API) createIOC(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	var req core.IOCCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ioc, err := a.iocs.Create(r.Context(), user, caseID, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeCreated(w, ioc)
}

// fetchCaseScopedIOC loads an IOC addressed through a case-scoped route and
// authorizes the caller. An IOC reachable only through a different case is
// reported as not found, so the route never confirms cross-case IDs.
func (a *API) fetchCaseScopedIOC(w http.ResponseWriter, r *http.Request, required ...core.AccessLevel) (*core.IOC, *core.User, bool) {
	vars := mux.Vars(r)
	caseID, id := vars["case_id"], vars["id"]

	user, ok := a.requireAccess(w, r, caseID, required...)
	if !ok {
		return nil, nil, false
	}

	ioc, err := a.iocs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, a.logger)
		return nil, nil, false
	}
	if ioc.CaseID != caseID {
		writeErrorMessage(w, http.StatusNotFound, "ioc not found")
		return nil, nil, false
	}
	return ioc, user, true
}

// getIOC returns a single IOC within its case.
func (a *API) getIOC(w http.ResponseWriter, r *http.Request) {
	ioc, _, ok := a.fetchCaseScopedIOC(w, r, core.AccessLevelReadOnly, core.AccessLevelFullAccess)
	if !ok {
		return
	}
	writeSuccess(w, ioc)
}

// updateIOC applies a partial update to an IOC.
func (a *API) updateIOC(w http.ResponseWriter, r *http.Request) {
	ioc, user, ok := a.fetchCaseScopedIOC(w, r, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	var req core.IOCUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := a.iocs.Update(r.Context(), user, ioc.ID, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, updated)
}

// deleteIOC removes an IOC from its case.
func (a *API) deleteIOC(w http.ResponseWriter, r *http.Request) {
	ioc, user, ok := a.fetchCaseScopedIOC(w, r, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	if err := a.iocs.Delete(r.Context(), user, ioc.ID); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"id": ioc.ID})
}

// listIOCTypes returns the seeded IOC type registry.
func (a *API) listIOCTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.iocs.ListTypes(r.Context())
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, types)
}
