package api

import (
	"net/http"
	"strconv"
	"time"

	"casetrack/core"
)

// parsePagination extracts the shared windowing/sorting parameters.
// Out-of-range values are clamped later by Pagination.Normalize; unknown sort
// columns are rejected by the storage allowlist.
func parsePagination(r *http.Request) core.Pagination {
	q := r.URL.Query()
	p := core.Pagination{
		SortBy:  q.Get("order_by"),
		SortDir: q.Get("sort_dir"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		p.PerPage = perPage
	}
	return p
}

// parseCaseFilters extracts case list predicates from query parameters
func parseCaseFilters(r *http.Request) *core.CaseFilters {
	q := r.URL.Query()
	return &core.CaseFilters{
		Name:           q.Get("name"),
		Classification: q.Get("classification"),
		SocID:          q.Get("soc_id"),
		Status:         core.CaseStatus(q.Get("status")),
		OwnerID:        q.Get("owner_id"),
		Pagination:     parsePagination(r),
	}
}

// parseTaskFilters extracts task list predicates from query parameters
func parseTaskFilters(r *http.Request) *core.TaskFilters {
	q := r.URL.Query()
	return &core.TaskFilters{
		Title:      q.Get("title"),
		Status:     core.TaskStatus(q.Get("status")),
		AssigneeID: q.Get("assignee_id"),
		Tag:        q.Get("tag"),
		Pagination: parsePagination(r),
	}
}

// parseIOCFilters extracts IOC list predicates from query parameters
func parseIOCFilters(r *http.Request) *core.IOCFilters {
	q := r.URL.Query()
	f := &core.IOCFilters{
		Value:       q.Get("value"),
		Description: q.Get("description"),
		Tag:         q.Get("tag"),
		Pagination:  parsePagination(r),
	}
	if typeID, err := strconv.ParseInt(q.Get("type_id"), 10, 64); err == nil {
		f.TypeID = typeID
	}
	if tlpID, err := strconv.ParseInt(q.Get("tlp_id"), 10, 64); err == nil {
		f.TlpID = tlpID
	}
	return f
}

// parseActivityFilters extracts audit-trail predicates from query parameters.
// Time bounds accept RFC 3339 timestamps.
func parseActivityFilters(r *http.Request) *core.ActivityFilters {
	q := r.URL.Query()
	f := &core.ActivityFilters{
		UserID:     q.Get("user_id"),
		Pagination: parsePagination(r),
	}
	if since, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		f.Since = &since
	}
	if until, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		f.Until = &until
	}
	return f
}
