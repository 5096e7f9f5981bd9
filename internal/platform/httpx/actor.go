package httpx

import (
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/shared"
)

// Identity headers set by the upstream gateway.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Actor reads the identity headers into the request context. Requests without
// a valid user id pass through anonymous.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil || id == uuid.Nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: id, Role: r.Header.Get(HeaderUserRole)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor rejects anonymous requests.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			RespondError(w, shared.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits actors holding any of the roles. "admin" is always admitted.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				RespondError(w, shared.ErrUnauthorized)
				return
			}
			if actor.Role != "admin" && !slices.Contains(roles, actor.Role) {
				RespondError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorID returns the acting user id, or uuid.Nil when anonymous.
func ActorID(r *http.Request) uuid.UUID {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor.ID
}

// ParseUUID parses a uuid path or query value.
func ParseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewError(shared.ErrValidation, "invalid id "+raw)
	}
	return id, nil
}
