package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lachapelle/studio-backoffice/internal/core/ports"
	"github.com/lachapelle/studio-backoffice/internal/core/usecase"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/export/excel"
	"github.com/lachapelle/studio-backoffice/internal/observability/metrics"
)

type Router struct {
	service   string
	documents *usecase.DocumentUseCase
	tree      *usecase.TreeUseCase
	lifecycle *usecase.LifecycleUseCase
	templates *usecase.TemplateUseCase
	directory *usecase.DirectoryUseCase
	clients   ports.DirectoryRepository
	exporter  *excel.Exporter
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	documents *usecase.DocumentUseCase,
	tree *usecase.TreeUseCase,
	lifecycle *usecase.LifecycleUseCase,
	templates *usecase.TemplateUseCase,
	directory *usecase.DirectoryUseCase,
	clients ports.DirectoryRepository,
	exporter *excel.Exporter,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:   service,
		documents: documents,
		tree:      tree,
		lifecycle: lifecycle,
		templates: templates,
		directory: directory,
		clients:   clients,
		exporter:  exporter,
		metrics:   serverMetrics,
	}
}

// Options carries the traffic-control knobs. Zero values disable the
// corresponding middleware, which keeps handler tests direct.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func (rt *Router) Handler(opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/clients", rt.clientsCollection)
	mux.HandleFunc("/v1/projects", rt.projectsCollection)
	mux.HandleFunc("/v1/projects/", rt.projectSubtree)
	mux.HandleFunc("/v1/documents", rt.createDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/items/", rt.itemResource)
	mux.HandleFunc("/v1/sections/", rt.sectionResource)
	mux.HandleFunc("/v1/templates", rt.templatesCollection)
	mux.HandleFunc("/v1/templates/", rt.templateSubtree)
	mux.HandleFunc("/v1/public/documents/", rt.publicDocument)

	var handler http.Handler = mux
	if opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, opts.MaxInFlight, time.Second)
	}
	if opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, opts.RateLimitRPS, opts.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func (rt *Router) recordDocumentCreated(kind, origin string) {
	if rt.metrics != nil {
		rt.metrics.RecordDocumentCreated(rt.service, kind, origin)
	}
}

func (rt *Router) recordTransition(kind, to string) {
	if rt.metrics != nil {
		rt.metrics.RecordStatusTransition(rt.service, kind, to)
	}
}

func (rt *Router) recordPublicView(kind string) {
	if rt.metrics != nil {
		rt.metrics.RecordPublicView(rt.service, kind)
	}
}

func (rt *Router) recordExport(format string) {
	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.service, format)
	}
}
