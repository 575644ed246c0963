package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"robocomp/internal/common"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Guards are the identity and throttling middlewares handlers attach to
// their route groups.
type Guards struct {
	Authenticated func(http.Handler) http.Handler
	Optional      func(http.Handler) http.Handler
	JoinLimit     func(http.Handler) http.Handler
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithJSON(w, http.StatusBadRequest, common.ErrorResponse{
			Error: "Invalid request payload: " + err.Error(),
			Kind:  common.KindInvalidArgument,
		})
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// pathEmail returns the {email} route parameter decoded. chi hands back the
// raw segment, so b%40x.io arrives still escaped.
func pathEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		common.RespondWithDomainError(w, r, common.Errorf("malformed email in path: %w", common.ErrBadRequest))
		return "", false
	}
	return email, true
}
