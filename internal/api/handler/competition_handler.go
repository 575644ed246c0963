package handler

import (
	"net/http"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"
	"robocomp/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type CompetitionHandler struct {
	competitionService *service.CompetitionService
	teamService        *service.TeamService
	approvalService    *service.ApprovalService
}

func NewCompetitionHandler(cs *service.CompetitionService, ts *service.TeamService, as *service.ApprovalService) *CompetitionHandler {
	return &CompetitionHandler{competitionService: cs, teamService: ts, approvalService: as}
}

func (h *CompetitionHandler) RegisterRoutes(g Guards) func(chi.Router) {
	return func(r chi.Router) {
		r.Group(func(public chi.Router) {
			public.Use(g.Optional)
			public.Get("/", h.listCompetitions)
			// {id} also accepts a slug here.
			public.Get("/{id}", h.getCompetition)
			public.Get("/{id}/teams", h.listCompetitionTeams)
		})

		r.Group(func(private chi.Router) {
			private.Use(g.Authenticated)
			private.Post("/", h.createCompetition)
			private.Get("/mine", h.listMyCompetitions)
			private.Patch("/{id}", h.updateCompetition)
			private.Delete("/{id}", h.deleteCompetition)
			private.Patch("/{id}/status", h.setCompetitionStatus)
			private.Post("/{id}/teams", h.createTeam)
			private.With(g.JoinLimit).Post("/{id}/teams/join", h.joinTeam)
			private.Patch("/{id}/teams/{teamId}", h.reviewTeam)
		})
	}
}

func (h *CompetitionHandler) listCompetitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.competitionService.List(r.Context(), middleware.UserFromContext(r.Context()), service.ListCompetitionsRequest{
		Status: model.CompetitionStatus(q.Get("status")),
		Search: q.Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *CompetitionHandler) getCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.competitionService.Get(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, c)
}

func (h *CompetitionHandler) createCompetition(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCompetitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.competitionService.Create(r.Context(), middleware.UserFromContext(r.Context()), req)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *CompetitionHandler) listMyCompetitions(w http.ResponseWriter, r *http.Request) {
	list, err := h.competitionService.ListMine(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, list)
}

func (h *CompetitionHandler) updateCompetition(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCompetitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.competitionService.Update(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, c)
}

func (h *CompetitionHandler) deleteCompetition(w http.ResponseWriter, r *http.Request) {
	if err := h.competitionService.Delete(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

func (h *CompetitionHandler) setCompetitionStatus(w http.ResponseWriter, r *http.Request) {
	var req service.SetCompetitionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.competitionService.SetStatus(r.Context(), middleware.UserFromContext(r.Context()), id, req.Status); err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

func (h *CompetitionHandler) listCompetitionTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.ListCompetitionTeams(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, teams)
}

func (h *CompetitionHandler) createTeam(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	teamID, err := h.teamService.CreateTeam(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"team_id": teamID})
}

func (h *CompetitionHandler) joinTeam(w http.ResponseWriter, r *http.Request) {
	var req service.JoinTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	teamID, err := h.teamService.JoinTeamByCode(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"team_id": teamID})
}

func (h *CompetitionHandler) reviewTeam(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	teamID := chi.URLParam(r, "teamId")
	status, err := h.approvalService.ReviewTeam(r.Context(), middleware.UserFromContext(r.Context()), chi.URLParam(r, "id"), teamID, req.Action)
	if err != nil {
		common.RespondWithDomainError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"team_id": teamID, "status": string(status)})
}
