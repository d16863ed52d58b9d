package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func (rt *Router) createDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Kind      string `json:"kind"`
		ProjectID string `json:"project_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.documents.Create(r.Context(), domain.DocumentKind(req.Kind), req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordDocumentCreated(string(doc.Kind), "manual")
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}
	id := parts[0]

	switch len(parts) {
	case 1:
		rt.documentResource(w, r, id)
	case 2:
		rt.documentAction(w, r, id, parts[1])
	case 3:
		switch {
		case parts[1] == "sections" && parts[2] == "reorder":
			rt.reorderSections(w, r, id)
		case parts[1] == "items" && parts[2] == "reorder":
			rt.reorderItems(w, r, id)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) documentResource(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		doc, err := rt.documents.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.documents.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) documentAction(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "export":
		rt.exportDocument(w, r, id)
		return
	case "sections":
		rt.addSection(w, r, id)
		return
	case "items":
		rt.addItem(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch action {
	case "send":
		doc, err := rt.lifecycle.Send(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		rt.recordTransition(string(doc.Kind), string(doc.Status))
		writeJSON(w, http.StatusOK, doc)
	case "status":
		rt.changeStatus(w, r, id)
	case "duplicate":
		doc, err := rt.templates.Duplicate(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		rt.recordDocumentCreated(string(doc.Kind), "duplicate")
		writeJSON(w, http.StatusCreated, doc)
	case "save-as-template":
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		tpl, err := rt.templates.SaveAsTemplate(r.Context(), id, req.Name, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tpl)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) changeStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		doc *domain.Document
		err error
	)
	switch domain.DocumentStatus(req.Status) {
	case domain.StatusAccepted:
		doc, err = rt.lifecycle.MarkAccepted(r.Context(), id)
	case domain.StatusExpired:
		doc, err = rt.lifecycle.MarkExpired(r.Context(), id)
	case domain.StatusPaid:
		doc, err = rt.lifecycle.MarkPaid(r.Context(), id)
	case domain.StatusCancelled:
		doc, err = rt.lifecycle.MarkCancelled(r.Context(), id)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported target status %q", req.Status),
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordTransition(string(doc.Kind), string(doc.Status))
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) exportDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	doc, err := rt.documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	client, err := rt.clients.GetClient(r.Context(), doc.ClientID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Number+".xlsx"))
	if err := rt.exporter.Write(w, doc, client); err != nil {
		// Headers are already out; the broken stream is all we can
		// signal to the client at this point.
		return
	}
	rt.recordExport("xlsx")
}

func (rt *Router) publicDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/public/documents/"), "/")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	doc, err := rt.lifecycle.ViewViaPublicToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordPublicView(string(doc.Kind))
	writeJSON(w, http.StatusOK, doc)
}
