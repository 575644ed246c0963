package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"robocomp/internal/common"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const userCtxKey contextKey = "user"

// UserResolver maps verified token claims onto a stored user.
type UserResolver interface {
	EnsureUser(ctx context.Context, claims security.Claims) (*model.User, error)
}

// Identity rejects requests without a valid token and stores the resolved
// user in the request context. It expects jwtauth.Verifier to run first.
func Identity(users UserResolver) func(http.Handler) http.Handler {
	return identity(users, false)
}

// OptionalIdentity is Identity for public routes: a missing token leaves the
// request anonymous, an invalid one is still rejected.
func OptionalIdentity(users UserResolver) func(http.Handler) http.Handler {
	return identity(users, true)
}

func identity(users UserResolver, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				if optional && (err == nil || errors.Is(err, jwtauth.ErrNoTokenFound)) {
					next.ServeHTTP(w, r)
					return
				}
				msg := "Authorization token required"
				if err != nil && !errors.Is(err, jwtauth.ErrNoTokenFound) {
					msg = "Invalid token: " + err.Error()
				}
				respondUnauthorized(w, msg)
				return
			}

			c, err := security.ClaimsFromMap(claims)
			if err != nil {
				respondUnauthorized(w, "Invalid token claims: "+err.Error())
				return
			}
			user, err := users.EnsureUser(r.Context(), c)
			if err != nil {
				slog.WarnContext(r.Context(), "could not resolve token identity", "email", c.Email, "error", err)
				common.RespondWithDomainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	common.RespondWithJSON(w, http.StatusUnauthorized, common.ErrorResponse{Error: msg, Kind: common.KindUnauthorized})
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userCtxKey).(*model.User)
	return user
}
