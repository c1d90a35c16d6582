package http

import (
	"net/http"

	"boqtrack/internal/core"
	"boqtrack/internal/log"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Projects.ListProjects(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"myProjects": projects}).Write(w)
}

// handleCreateProject accepts a JSON project or the same fields form-encoded.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	var p core.Project
	if parser.IsJSON() {
		if err := parser.Decode(&p); err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
	} else {
		var err error
		p = core.Project{
			Name:        parser.Get("name"),
			Code:        parser.Get("projectCode"),
			Location:    parser.Get("location"),
			Manager:     parser.Get("manager"),
			Description: parser.Get("description"),
		}
		if p.StartDate, err = core.ParseDate(parser.Get("startDate")); err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		if p.EndDate, err = core.ParseDate(parser.Get("endDate")); err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
	}

	created, err := s.deps.Projects.CreateProject(r.Context(), owner(r), p)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Project created",
		log.FieldUser, created.Owner,
		log.FieldProject, created.Name)
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{"project": created}).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Projects.ListCategories(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"categories": categories}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	created, err := s.deps.Projects.CreateCategory(r.Context(), owner(r), parser.Get("name"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{"category": created}).Write(w)
}
