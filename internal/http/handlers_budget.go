package http

import (
	"net/http"
	"strconv"
	"strings"

	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
	"boqtrack/internal/services"
)

// handleBudgetPreview ingests an uploaded BOQ and returns its formatted
// rows, as JSON or as an HTML table with ?format=html. Nothing is stored.
func (s *Server) handleBudgetPreview(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(r, log.OpPreview)
	if err != nil {
		s.fail(w, r, log.OpPreview, err)
		return
	}

	lines := s.deps.Budget.Preview(up.Rows)
	if r.URL.Query().Get("format") == "html" {
		s.render(w, r, "boq_preview.html", struct {
			FileName string
			Lines    []services.PreviewLine
		}{FileName: up.FileName, Lines: lines})
		return
	}
	NewResponse().JSON(map[string]any{
		"fileName": up.FileName,
		"rows":     lines,
	}).Write(w)
}

type budgetImportBody struct {
	ProjectName string                 `json:"projectName"`
	Progress    flexFloat              `json:"progress"`
	FileName    string                 `json:"fileName"`
	BudgetData  []ingest.BudgetLineRow `json:"budgetData"`
}

// handleBudgetImport stores a project budget. JSON bodies carry rows that
// were already ingested by a preview; multipart bodies carry the file.
func (s *Server) handleBudgetImport(w http.ResponseWriter, r *http.Request) {
	req := services.ImportRequest{Owner: owner(r)}

	if isMultipart(r) {
		up, err := s.readUpload(r, log.OpImport)
		if err != nil {
			s.fail(w, r, log.OpImport, err)
			return
		}
		req.Project = strings.TrimSpace(r.FormValue("projectName"))
		if v := strings.TrimSpace(r.FormValue("progress")); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil {
				BadRequestError("progress is not a number").Write(w)
				return
			}
			req.Progress = p
		}
		req.FileName = up.FileName
		req.Raw = up.Raw
		req.Rows = ingest.BudgetRows(up.Rows)
	} else {
		var body budgetImportBody
		if err := NewRequestBodyParser(r).Decode(&body); err != nil {
			s.fail(w, r, log.OpImport, err)
			return
		}
		req.Project = body.ProjectName
		req.Progress = float64(body.Progress)
		req.FileName = body.FileName
		req.Rows = body.BudgetData
	}

	result, err := s.deps.Budget.Import(r.Context(), req)
	if err != nil {
		s.metrics.importFailures.Add(1)
		s.fail(w, r, log.OpImport, err)
		return
	}
	s.metrics.budgetLines.Add(int64(result.Lines))
	s.logger.InfoContext(r.Context(), "Budget imported",
		log.FieldUser, req.Owner,
		log.FieldProject, req.Project,
		log.FieldImportID, result.ImportID,
		log.FieldRows, result.Lines)
	NewResponse().Status(http.StatusCreated).JSON(result).Write(w)
}

func (s *Server) handleBudgetList(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}

	lines, err := s.deps.Budget.List(r.Context(), owner(r), parser.Get("projectName"))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"budgetDataByProj": lines}).Write(w)
}

type updateIncomeBody struct {
	ID          string    `json:"id"`
	Progress    flexFloat `json:"progress"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
}

func (s *Server) handleBudgetUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var body updateIncomeBody
	if err := NewRequestBodyParser(r).Decode(&body); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	line, err := s.deps.Budget.UpdateIncome(r.Context(), owner(r), services.UpdateIncomeRequest{
		LineID:      strings.TrimSpace(body.ID),
		Progress:    float64(body.Progress),
		Category:    body.Category,
		Description: body.Description,
	})
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]any{"budgetLine": line}).Write(w)
}
