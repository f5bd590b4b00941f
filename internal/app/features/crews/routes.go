// internal/app/features/crews/routes.go
package crews

import "github.com/go-chi/chi/v5"

// Routes mounts the crew pages. The router is mounted under /crews and
// all routes require a signed-in session; role checks happen per handler.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/{crewID}", func(r chi.Router) {
		r.Get("/", h.ServeCrewHome)
		r.Get("/manage", h.ServeManage)
		r.Post("/invites", h.HandleCreateInvite)
		r.Post("/invites/{inviteID}/revoke", h.HandleRevokeInvite)
	})
	return r
}
