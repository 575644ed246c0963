package handler

import (
	"net/http"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"

	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(ns *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

func (h *NotificationHandler) RegisterRoutes(g Guards) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(g.Authenticated)
		r.Get("/", h.list)
		r.Patch("/{id}/read", h.markRead)
	}
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.notificationService.List(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.MarkRead(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
