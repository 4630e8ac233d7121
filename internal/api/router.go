package api

import "net/http"

// NewRouter wires the HTTP routes.
// Mode-scoped routes share handlers; the {mode} segment is validated inside.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /{mode}/videos", h.CreateJob)
	mux.HandleFunc("GET /{mode}/videos/{id}/status", h.JobStatus)
	mux.HandleFunc("POST /{mode}/videos/{id}/search", h.Search)
	mux.HandleFunc("GET /{mode}/videos/{id}/clip", h.Clip)

	return mux
}
