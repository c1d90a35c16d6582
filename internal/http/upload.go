package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
)

// upload is a parsed multipart spreadsheet.
type upload struct {
	FileName string
	Raw      []byte
	Rows     []ingest.Row
}

// readUpload parses the multipart form of r and reads its "file" field as a
// spreadsheet. Other form values stay available through r.FormValue.
func (s *Server) readUpload(r *http.Request, op string) (upload, error) {
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return upload{}, maxBytes
		}
		return upload{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, fmt.Errorf("%w: missing file field", errBadRequest)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}

	res := <-ingest.ReadAsync(r.Context(), header.Filename, bytes.NewReader(raw))
	if res.Err != nil {
		s.metrics.importFailures.Add(1)
		s.logger.WarnContext(r.Context(), "Spreadsheet unreadable",
			log.FieldOperation, log.OpParse,
			log.FieldFile, header.Filename,
			log.FieldError, res.Err)
		return upload{}, fmt.Errorf("read %s: %w", header.Filename, res.Err)
	}

	s.metrics.uploads.Add(1)
	s.structured.LogUpload(r.Context(), owner(r), header.Filename, len(res.Rows), op)
	return upload{FileName: header.Filename, Raw: raw, Rows: res.Rows}, nil
}

// render executes a template into a buffer so a failure never leaves a
// half-written body.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.metrics.templateFailure.Add(1)
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		InternalServerError().Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.metrics.templateFailure.Add(1)
		s.structured.LogError(r.Context(), "Template execution failed", err, log.ComponentHTTP, log.OpRender, log.NewFields())
		InternalServerError().Write(w)
		return
	}
	NewResponse().HTML(buf.Bytes()).Write(w)
}
