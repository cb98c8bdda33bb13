package api

import (
	"encoding/json"
	"net/http"

	"casetrack/core"

	"github.com/gorilla/mux"
)

// listTasks returns the paginated task list for a case.
func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	if _, ok := a.requireAccess(w, r, caseID, core.AccessLevelReadOnly, core.AccessLevelFullAccess); !ok {
		return
	}

	page, err := a.tasks.List(r.Context(), caseID, parseTaskFilters(r))
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, page)
}

// createTask adds a task to a case.
func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	user, ok := a.requireAccess(w, r, caseID, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	var req core.TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := a.tasks.Create(r.Context(), user, caseID, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeCreated(w, task)
}

// fetchAuthorizedTask loads a task by ID and authorizes the caller against
// the task's owning case. Tasks are id-addressed, so the case scope comes
// from the stored entity, never from the request.
func (a *API) fetchAuthorizedTask(w http.ResponseWriter, r *http.Request, required ...core.AccessLevel) (*core.Task, *core.User, bool) {
	task, err := a.tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, a.logger)
		return nil, nil, false
	}
	user, ok := a.requireAccess(w, r, task.CaseID, required...)
	if !ok {
		return nil, nil, false
	}
	return task, user, true
}

// getTask returns a single task.
func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	task, _, ok := a.fetchAuthorizedTask(w, r, core.AccessLevelReadOnly, core.AccessLevelFullAccess)
	if !ok {
		return
	}
	writeSuccess(w, task)
}

// updateTask applies a partial update to a task.
func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	task, user, ok := a.fetchAuthorizedTask(w, r, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	var req core.TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := a.tasks.Update(r.Context(), user, task.ID, &req)
	if err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, updated)
}

// deleteTask removes a task from its case.
func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	task, user, ok := a.fetchAuthorizedTask(w, r, core.AccessLevelFullAccess)
	if !ok {
		return
	}

	if err := a.tasks.Delete(r.Context(), user, task.ID); err != nil {
		writeError(w, err, a.logger)
		return
	}
	writeSuccess(w, map[string]string{"id": task.ID})
}
