package api

import "net/http"

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/adjudicate", h.Adjudicate)
	mux.HandleFunc("POST /v1/verify", h.VerifyBody)
	mux.HandleFunc("GET /v1/verify/", h.Verify)
	mux.HandleFunc("GET /v1/attestations/", h.Attestations)
	mux.HandleFunc("GET /healthz", h.Healthz)
	return mux
}
