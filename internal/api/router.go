package api

import (
	"context"
	"net/http"
	"robocomp/internal/api/handler"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/service"
	"robocomp/internal/common"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Competitions  *service.CompetitionService
	Teams         *service.TeamService
	Approvals     *service.ApprovalService
	Users         *service.UserService
	Notifications *service.NotificationService
	Activity      *service.ActivityService
}

type Options struct {
	TokenAuth      *jwtauth.JWTAuth
	RequestTimeout time.Duration
	JoinLimiter    *middleware.RateLimiter // nil disables join throttling
	// HealthChecks run on GET /health; any error reports the service unavailable.
	HealthChecks map[string]func(context.Context) error
}

func NewRouter(svc Services, opts Options) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
	}

	// Verifies a bearer token when present and leaves the result in context.
	r.Use(jwtauth.Verifier(opts.TokenAuth))

	r.Get("/health", health(opts.HealthChecks))

	guards := handler.Guards{
		Authenticated: middleware.Identity(svc.Users),
		Optional:      middleware.OptionalIdentity(svc.Users),
		JoinLimit:     middleware.RateLimit(opts.JoinLimiter, "join"),
	}

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Get("/health", health(opts.HealthChecks))

		competitionHandler := handler.NewCompetitionHandler(svc.Competitions, svc.Teams, svc.Approvals)
		v1.Route("/competitions", competitionHandler.RegisterRoutes(guards))

		teamHandler := handler.NewTeamHandler(svc.Teams, svc.Approvals)
		v1.Route("/teams", teamHandler.RegisterRoutes(guards))

		userHandler := handler.NewUserHandler(svc.Users)
		v1.Route("/users", userHandler.RegisterRoutes(guards))

		notificationHandler := handler.NewNotificationHandler(svc.Notifications)
		v1.Route("/notifications", notificationHandler.RegisterRoutes(guards))

		activityHandler := handler.NewActivityHandler(svc.Activity)
		v1.Route("/activity", activityHandler.RegisterRoutes(guards))
	})

	return r
}

func health(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check(ctx)
			cancel()
			if err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		common.RespondWithJSON(w, code, status)
	}
}
