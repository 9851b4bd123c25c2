package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"sls-log-analyzer/analyzer"
)

type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type logsPage struct {
	Logs       []analyzer.LogRecord `json:"logs"`
	Pagination pagination           `json:"pagination"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.queries.ListSessions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, "", sessions)
}

func (h *Handler) queryLogs(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.queries.Query(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, "", logsPage{
		Logs: page.Records,
		Pagination: pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid log id", mux.Vars(r)["id"])
		return
	}
	rec, err := h.queries.Get(r.Context(), uint(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, "", rec)
}

// parseFilter reads sessionId, level, keyword, startTime, endTime, page and
// pageSize. Absent parameters mean no predicate or the default.
func (h *Handler) parseFilter(r *http.Request) (analyzer.Filter, error) {
	q := r.URL.Query()
	f := analyzer.Filter{
		Level:    strings.TrimSpace(q.Get("level")),
		Keyword:  q.Get("keyword"),
		Page:     1,
		PageSize: h.cfg.DefaultPageSize,
	}

	if v := strings.TrimSpace(q.Get("sessionId")); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, &analyzer.InvalidFilterError{Field: "sessionId", Reason: "must be a positive integer"}
		}
		f.SessionID = uint(id)
	}
	for name, dst := range map[string]*int{"page": &f.Page, "pageSize": &f.PageSize} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &analyzer.InvalidFilterError{Field: name, Reason: "must be an integer"}
		}
		*dst = n
	}
	for name, dst := range map[string]**time.Time{"startTime": &f.Start, "endTime": &f.End} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		ts, ok := h.times.Parse(v)
		if !ok {
			return f, &analyzer.InvalidFilterError{Field: name, Reason: "is not a recognized timestamp"}
		}
		*dst = &ts
	}
	return f, nil
}
