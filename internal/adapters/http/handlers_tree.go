package httpadapter

import (
	"net/http"
	"strings"

	"github.com/lachapelle/studio-backoffice/internal/core/usecase"
)

func (rt *Router) addSection(w http.ResponseWriter, r *http.Request, documentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.tree.AddSection(r.Context(), documentID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) addItem(w http.ResponseWriter, r *http.Request, documentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		SectionID string `json:"section_id"`
		usecase.ItemInput
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.tree.AddItem(r.Context(), documentID, req.SectionID, req.ItemInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) reorderSections(w http.ResponseWriter, r *http.Request, documentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Order []usecase.SortOrderPair `json:"order"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.tree.ReorderSections(r.Context(), documentID, req.Order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) reorderItems(w http.ResponseWriter, r *http.Request, documentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		SectionID string                  `json:"section_id"`
		Order     []usecase.SortOrderPair `json:"order"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := rt.tree.ReorderItems(r.Context(), documentID, req.SectionID, req.Order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) itemResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/items/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var patch usecase.ItemPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		doc, err := rt.tree.UpdateItem(r.Context(), id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		doc, err := rt.tree.RemoveItem(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) sectionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sections/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var patch usecase.SectionPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		doc, err := rt.tree.UpdateSection(r.Context(), id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		doc, err := rt.tree.RemoveSection(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w)
	}
}
