package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authMiddleware resolves the owner id from the bearer access token and
// attaches it to the request context. Requests without a valid token never
// reach the handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, common.ErrorUnauthenticated)
			return
		}

		userID, err := s.users.UserIDFromToken(token)
		if err != nil {
			writeError(w, common.ErrorUnauthenticated)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
