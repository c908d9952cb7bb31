package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/importer/internal/core"
	"github.com/go-chi/chi/v5"
)

// importBody is the request body of build, preview and run.
// With Template set, Rows[0] holds the source headers and Mapping is ignored.
type importBody struct {
	JobID    string             `json:"jobId,omitempty"`
	Template string             `json:"template,omitempty"`
	Mapping  []string           `json:"mapping"`
	Rows     [][]any            `json:"rows"`
	Options  core.ImportOptions `json:"options"`
}

// BuildResponse is returned by the build endpoint.
type BuildResponse struct {
	Stats   core.BuildStats       `json:"stats"`
	Records []*core.PendingRecord `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"importers": core.Count(),
		"runs":      s.service.RunStatus(),
	})
}

func (s *Server) handleListImporters(w http.ResponseWriter, r *http.Request) {
	if group := r.URL.Query().Get("group"); group != "" {
		writeJSON(w, s.service.ImportersByGroup()[group])
		return
	}
	writeJSON(w, s.service.Importers())
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.Columns(core.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, cols)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := s.service.Templates().List(core.Kind(r.URL.Query().Get("kind")))
	if templates == nil {
		templates = []core.ImportTemplate{}
	}
	writeJSON(w, templates)
}

// handleMatchTemplates scores templates against ?headers=a,b,c.
func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(chi.URLParam(r, "kind"))
	if _, err := core.Require(kind); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	raw := r.URL.Query().Get("headers")
	if raw == "" {
		badRequest(w, "missing headers parameter")
		return
	}
	headers := strings.Split(raw, ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	matches := s.service.Templates().Match(kind, headers)
	if matches == nil {
		matches = []core.TemplateMatch{}
	}
	writeJSON(w, matches)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	ictx, ok := s.service.Job(jobID)
	if !ok {
		respondError(w, r, fmt.Errorf("job %q: %w", jobID, core.ErrNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, ictx)
}

func (s *Server) handleForgetJob(w http.ResponseWriter, r *http.Request) {
	s.service.ForgetJob(chi.URLParam(r, "jobID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	kind, spec, _, ok := s.decodeImport(w, r)
	if !ok {
		return
	}

	records, stats, err := s.service.Build(kind, spec)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if records == nil {
		records = []*core.PendingRecord{}
	}
	writeJSON(w, BuildResponse{Stats: stats, Records: records})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind, spec, _, ok := s.decodeImport(w, r)
	if !ok {
		return
	}

	resp, err := s.service.Preview(r.Context(), chi.URLParam(r, "tenant"), kind, spec)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, resp)
}

// handleRun applies the import. An interrupted run answers with the partial
// result; repeating the request with the returned jobId resumes it.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	kind, spec, jobID, ok := s.decodeImport(w, r)
	if !ok {
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.Import(ctx, core.ImportRequest{
		Tenant: chi.URLParam(r, "tenant"),
		Kind:   kind,
		JobID:  jobID,
		Spec:   spec,
	})
	if err != nil {
		var partial *core.ImportResult
		if res.JobID != "" {
			partial = &res
		}
		respondErrorWith(w, r, err, statusFor(err), partial)
		return
	}
	writeJSON(w, res)
}

// decodeImport reads the import body and resolves a template when named.
func (s *Server) decodeImport(w http.ResponseWriter, r *http.Request) (core.Kind, core.ImportSpec, string, bool) {
	kind := core.Kind(chi.URLParam(r, "kind"))
	if strings.TrimSpace(chi.URLParam(r, "tenant")) == "" {
		badRequest(w, "missing tenant")
		return "", core.ImportSpec{}, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var body importBody
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONStatus(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Code: "REQ002"})
			return "", core.ImportSpec{}, "", false
		}
		badRequest(w, "invalid request body: "+err.Error())
		return "", core.ImportSpec{}, "", false
	}
	if len(body.Rows) > s.cfg.Import.MaxRows {
		writeJSONStatus(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("%d rows exceeds the limit of %d", len(body.Rows), s.cfg.Import.MaxRows),
			Code:  "REQ003",
		})
		return "", core.ImportSpec{}, "", false
	}

	spec := core.ImportSpec{Mapping: body.Mapping, Rows: body.Rows, Options: body.Options}
	if body.Template != "" {
		fromTemplate, err := s.service.SpecFromTemplate(kind, body.Template, body.Rows)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return "", core.ImportSpec{}, "", false
		}
		// Explicit options win over the template's
		if body.Options.Operation != "" {
			fromTemplate.Options.Operation = body.Options.Operation
		}
		if body.Options.Currency != "" {
			fromTemplate.Options.Currency = body.Options.Currency
		}
		spec = fromTemplate
	}
	return kind, spec, body.JobID, true
}
