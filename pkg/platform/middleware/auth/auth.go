package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "famledger/pkg/domain"
	request "famledger/pkg/platform/middleware/request"
	"famledger/pkg/requestcontext"
)

// ActorResolver validates a bearer token and yields the actor's user ID.
// The identity provider owns authentication; this middleware only resolves
// who is calling so services can authorize against the membership store.
type ActorResolver interface {
	ResolveActor(tokenString string) (id.UserID, error)
}

// writeJSONError writes a JSON error response with the given status code and
// error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","message":"%s"}`, errCode, errDesc))
}

// RequireActor rejects requests without a valid bearer token and injects the
// resolved actor ID into the request context.
func RequireActor(resolver ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			actorID, err := resolver.ResolveActor(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
