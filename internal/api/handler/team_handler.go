package handler

import (
	"net/http"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"

	"github.com/go-chi/chi/v5"
)

type TeamHandler struct {
	teamService     *service.TeamService
	approvalService *service.ApprovalService
}

func NewTeamHandler(ts *service.TeamService, as *service.ApprovalService) *TeamHandler {
	return &TeamHandler{teamService: ts, approvalService: as}
}

func (h *TeamHandler) RegisterRoutes(g Guards) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(g.Authenticated) // All team routes require auth
		r.Get("/mine", h.listMyTeams)
		r.Get("/pending", h.listPendingTeams)
		r.Get("/{id}", h.getTeam)
		r.Patch("/{id}/status", h.setTeamStatus)
		r.Delete("/{id}", h.deleteTeam)
		r.Delete("/{id}/members/{email}", h.removeMember)
	}
}

func (h *TeamHandler) listMyTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.ListUserTeams(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) listPendingTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.approvalService.ListPendingTeams(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teamService.GetTeam(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) setTeamStatus(w http.ResponseWriter, r *http.Request) {
	var req service.SetTeamStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	teamID := chi.URLParam(r, "id")
	status, err := h.approvalService.SetTeamStatus(r.Context(), middleware.UserFromContext(r.Context()), teamID, req.Status)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"team_id": teamID, "status": string(status)})
}

func (h *TeamHandler) deleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.teamService.DeleteTeam(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

func (h *TeamHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	err := h.teamService.RemoveMember(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"), email)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
