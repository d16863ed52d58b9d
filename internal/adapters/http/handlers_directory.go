package httpadapter

import (
	"net/http"
	"strings"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func (rt *Router) clientsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
			Code string `json:"code"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		client, err := rt.directory.CreateClient(r.Context(), req.Name, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	case http.MethodGet:
		clients, err := rt.directory.ListClients(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) projectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			ClientID string `json:"client_id"`
			Name     string `json:"name"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		project, err := rt.directory.CreateProject(r.Context(), req.ClientID, req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, project)
	case http.MethodGet:
		projects, err := rt.directory.ListProjects(r.Context(), r.URL.Query().Get("client_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	default:
		methodNotAllowed(w)
	}
}

// projectSubtree serves /v1/projects/{project_id}/documents.
func (rt *Router) projectSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "documents" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	kind := domain.DocumentKind(r.URL.Query().Get("kind"))
	docs, err := rt.documents.ListByProject(r.Context(), parts[0], kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
