package handler

import (
	"net/http"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"

	"github.com/go-chi/chi/v5"
)

type ActivityHandler struct {
	activityService *service.ActivityService
}

func NewActivityHandler(as *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: as}
}

func (h *ActivityHandler) RegisterRoutes(g Guards) func(chi.Router) {
	return func(r chi.Router) {
		// Clients may report actions before signing in.
		r.With(g.Optional).Post("/", h.record)
		r.With(g.Authenticated).Get("/", h.list)
	}
}

func (h *ActivityHandler) record(w http.ResponseWriter, r *http.Request) {
	var req service.RecordActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.activityService.Record(r.Context(), middleware.UserFromContext(r.Context()), req); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *ActivityHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.activityService.List(r.Context(), middleware.UserFromContext(r.Context()), service.ListActivityRequest{
		UserEmail: q.Get("user"),
		Action:    q.Get("action"),
		Limit:     queryInt(r, "limit"),
	})
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}
