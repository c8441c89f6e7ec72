// Package api exposes the weft engine over HTTP. The wire format is a thin
// JSON envelope over the engine's own structures; all domain semantics live
// below this layer. Authentication is left to whatever fronts the service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/engine"
)

// Server handles the HTTP surface for one engine instance.
type Server struct {
	engine *engine.Engine
}

// NewServer creates a Server around eng.
func NewServer(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/projects", s.listProjects)
		r.Post("/projects", s.createProject)
		r.Get("/projects/{projectID}/spaces", s.listSpaces)
		r.Post("/projects/{projectID}/spaces", s.createSpace)

		r.Get("/spaces/{spaceID}/branches", s.listBranches)
		r.Post("/spaces/{spaceID}/branches", s.createBranch)
		r.Delete("/branches/{branchID}", s.deleteBranch)
		r.Post("/branches/{branchID}/fork", s.forkBranch)

		r.Get("/branches/{branchID}/keys", s.listKeys)
		r.Post("/branches/{branchID}/keys", s.createKey)
		r.Put("/branches/{branchID}/translations", s.setTranslation)

		r.Get("/diff", s.diff)
		r.Post("/merge", s.merge)
	})

	return r
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.engine.Registry.CreateProject(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listProjects(w http.ResponseWriter, _ *http.Request) {
	projects, err := s.engine.Registry.ListProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createSpace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sp, err := s.engine.Registry.CreateSpace(chi.URLParam(r, "projectID"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) listSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.engine.Registry.ListSpaces(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (s *Server) createBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := s.engine.Registry.CreateBranch(chi.URLParam(r, "spaceID"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) listBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.engine.Registry.ListBranches(chi.URLParam(r, "spaceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (s *Server) deleteBranch(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Registry.DeleteBranch(chi.URLParam(r, "branchID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) forkBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := s.engine.ForkBranch(chi.URLParam(r, "branchID"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Namespace   string `json:"namespace"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	k, err := s.engine.Catalog.CreateKey(chi.URLParam(r, "branchID"), req.Name, req.Namespace, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, translations, err := s.engine.Catalog.ListKeys(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	type keyWithTranslations struct {
		domain.Key
		Translations []domain.Translation `json:"translations"`
	}
	out := make([]keyWithTranslations, len(keys))
	for i, k := range keys {
		out[i] = keyWithTranslations{Key: k, Translations: translations[k.ID]}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) setTranslation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key       string                   `json:"key"`
		Namespace string                   `json:"namespace"`
		Language  string                   `json:"language"`
		Value     string                   `json:"value"`
		Status    domain.TranslationStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	tr, err := s.engine.Catalog.SetTranslation(chi.URLParam(r, "branchID"), req.Key, req.Namespace, req.Language, req.Value, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) diff(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		writeError(w, domain.Validationf("source and target query parameters are required"))
		return
	}
	diff, err := s.engine.DiffBranches(source, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceBranchID string              `json:"source_branch_id"`
		TargetBranchID string              `json:"target_branch_id"`
		Resolutions    []domain.Resolution `json:"resolutions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SourceBranchID == "" || req.TargetBranchID == "" {
		writeError(w, domain.Validationf("source_branch_id and target_branch_id are required"))
		return
	}
	result, err := s.engine.MergeBranches(req.SourceBranchID, req.TargetBranchID, req.Resolutions)
	if err != nil {
		// An unresolved-conflicts rejection lands here too; writeError
		// carries the blocking comparison keys in the payload.
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
