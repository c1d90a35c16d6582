package http

import (
	"net/http"
	"strings"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
)

// handleListTransactions lists the owner's transactions, optionally for one
// ?project=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	project := sanitizeInput(r.URL.Query().Get("project"))
	list, err := s.deps.Transactions.List(r.Context(), owner(r), project)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"transactions": list}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := NewRequestBodyParser(r).Decode(&t); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	created, err := s.deps.Transactions.Create(r.Context(), owner(r), t)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.metrics.transactions.Add(1)
	s.logger.InfoContext(r.Context(), "Transaction created",
		log.FieldTransactionID, created.ID,
		log.FieldProject, created.ProjectName)
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{"transaction": created}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := NewRequestBodyParser(r).Decode(&t); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	t.ID = r.PathValue("id")

	updated, err := s.deps.Transactions.Update(r.Context(), owner(r), t)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.metrics.transactions.Add(1)
	NewResponse().JSON(map[string]any{"transaction": updated}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Transactions.Delete(r.Context(), owner(r), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Transaction deleted", log.FieldTransactionID, id)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

type importTransactionsBody struct {
	ProjectName string          `json:"projectName"`
	Records     []ingest.Record `json:"records"`
}

// handleImportTransactions creates transactions from header-keyed rows,
// either uploaded as a spreadsheet or posted as JSON records. Rows that
// fail are reported next to the created ones.
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		project string
		records []ingest.Record
	)

	if isMultipart(r) {
		up, err := s.readUpload(r, log.OpImport)
		if err != nil {
			s.fail(w, r, log.OpImport, err)
			return
		}
		project = strings.TrimSpace(r.FormValue("projectName"))
		records = ingest.Records(up.Rows)
	} else {
		var body importTransactionsBody
		if err := NewRequestBodyParser(r).Decode(&body); err != nil {
			s.fail(w, r, log.OpImport, err)
			return
		}
		project = strings.TrimSpace(body.ProjectName)
		records = body.Records
	}

	summary := s.deps.Transactions.Import(r.Context(), owner(r), project, records)
	s.metrics.transactions.Add(int64(len(summary.Created)))
	if len(summary.Failed) > 0 {
		s.metrics.importFailures.Add(1)
	}
	NewResponse().JSON(summary).Write(w)
}
