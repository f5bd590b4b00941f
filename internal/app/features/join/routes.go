// internal/app/features/join/routes.go
package join

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeJoin)
	r.Post("/", h.HandleJoinPost)
	r.Get("/continue", h.ServeContinue)
	r.Post("/retry", h.HandleRetry)
	r.Post("/cancel", h.HandleCancel)
	return r
}
