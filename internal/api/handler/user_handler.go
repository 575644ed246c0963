package handler

import (
	"net/http"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(us *service.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) RegisterRoutes(g Guards) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(g.Authenticated)
		r.Get("/me", h.me)
		r.Patch("/me", h.updateProfile)
		r.Get("/search", h.search)

		// Admin only; enforced by the service.
		r.Get("/", h.listUsers)
		r.Patch("/{email}/status", h.setStatus)
		r.Patch("/{email}/role", h.setRole)
	}
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Me(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), middleware.UserFromContext(r.Context()), req)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) search(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Search(r.Context(), middleware.UserFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.userService.List(r.Context(), middleware.UserFromContext(r.Context()), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *UserHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req service.SetUserStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	if err := h.userService.SetStatus(r.Context(), middleware.UserFromContext(r.Context()), email, req.Status); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"email": email, "status": req.Status})
}

func (h *UserHandler) setRole(w http.ResponseWriter, r *http.Request) {
	var req service.SetUserRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	if err := h.userService.SetRole(r.Context(), middleware.UserFromContext(r.Context()), email, req.Role); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"email": email, "role": req.Role})
}
