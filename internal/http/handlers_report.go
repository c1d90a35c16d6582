package http

import (
	"net/http"

	"boqtrack/internal/core"
	"boqtrack/internal/log"
	"boqtrack/internal/services"
)

// projectName reads {"projectName"} from a JSON or form body.
func projectName(r *http.Request) (string, error) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		return "", err
	}
	name := parser.Get("projectName")
	if name == "" {
		return "", core.ErrEmptyProject
	}
	return name, nil
}

func (s *Server) handleReportRecords(w http.ResponseWriter, r *http.Request) {
	project, err := projectName(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}

	records, err := s.deps.Reports.Records(r.Context(), owner(r), project)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"myReports": records}).Write(w)
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	project, err := projectName(r)
	if err != nil {
		s.fail(w, r, log.OpSummary, err)
		return
	}

	summary, err := s.deps.Reports.Summary(r.Context(), owner(r), project)
	if err != nil {
		s.fail(w, r, log.OpSummary, err)
		return
	}
	NewResponse().JSON(summary).Write(w)
}

// handleReportTable renders the summary of ?project= as an HTML partial.
func (s *Server) handleReportTable(w http.ResponseWriter, r *http.Request) {
	project := sanitizeInput(r.URL.Query().Get("project"))
	if project == "" {
		s.fail(w, r, log.OpRender, core.ErrEmptyProject)
		return
	}

	summary, err := s.deps.Reports.Summary(r.Context(), owner(r), project)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	s.render(w, r, "report_table.html", struct {
		Summary services.Summary
	}{Summary: summary})
}
