package httpadapter

import (
	"net/http"
	"strings"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func (rt *Router) templatesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var tpl domain.Template
		if !decodeJSON(w, r, &tpl) {
			return
		}
		created, err := rt.templates.Create(r.Context(), &tpl)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		list, err := rt.templates.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) templateSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/templates/"), "/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template id is required"})
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		tpl, err := rt.templates.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := rt.templates.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 1:
		methodNotAllowed(w)
	case len(parts) == 2 && parts[1] == "instantiate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			ProjectID string `json:"project_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		doc, err := rt.templates.Instantiate(r.Context(), id, req.ProjectID)
		if err != nil {
			writeError(w, err)
			return
		}
		rt.recordDocumentCreated(string(doc.Kind), "template")
		writeJSON(w, http.StatusCreated, doc)
	default:
		http.NotFound(w, r)
	}
}
