package api

import (
	"net/http"

	"casetrack/core"

	"github.com/gorilla/mux"
)

// listActivities returns the audit trail for a case, newest first by default.
func (a *API) listActivities(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	if _, ok := a.requireAccess(w, r, caseID, core.AccessLevelReadOnly, core.AccessLevelFullAccess); !ok {
		return
	}

	filters := parseActivityFilters(r)
	filters.Normalize()

	entries, total, err := a.activities.ListByCase(r.Context(), caseID, filters)
	if err != nil {
		a.logger.Errorw("Failed to list case activities", "case_id", caseID, "error", err)
		writeError(w, core.NewBusinessError("filtering error"), a.logger)
		return
	}
	writeSuccess(w, core.NewPage(entries, total, filters.Pagination))
}
