package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/auth"
)

type contextKey struct{}

// Middleware runs Check for every request, taking the user from the session,
// the organization from the {org_id} route parameter and the project from the
// {project_id} route parameter or the project_id query parameter.
func Middleware(g *Guard, opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := Request{UserID: auth.GetUserID(r.Context())}

			if raw := chi.URLParam(r, "org_id"); raw != "" {
				orgID, err := uuid.Parse(raw)
				if err != nil {
					apperrors.WriteBadRequest(w, r, "Invalid organization ID")
					return
				}
				req.OrgID = orgID
			}

			raw := chi.URLParam(r, "project_id")
			if raw == "" {
				raw = r.URL.Query().Get("project_id")
			}
			if raw != "" {
				projectID, err := uuid.Parse(raw)
				if err != nil {
					apperrors.WriteBadRequest(w, r, "Invalid project ID")
					return
				}
				req.ProjectID = &projectID
			}

			gc, err := g.Check(r.Context(), req, opts...)
			if err != nil {
				WriteFailure(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), gc)))
		})
	}
}

// WriteFailure writes err as an API error envelope.
func WriteFailure(w http.ResponseWriter, r *http.Request, err error) {
	var f *Failure
	if !errors.As(err, &f) {
		apperrors.WriteInternalError(w, r, msgInternal)
		return
	}
	apperrors.WriteError(w, r, f.Status, string(f.Kind), f.Message)
}

// FromContext returns the guard result stored by Middleware.
func FromContext(ctx context.Context) (*Context, bool) {
	gc, ok := ctx.Value(contextKey{}).(*Context)
	return gc, ok
}

// WithContext stores gc in ctx.
func WithContext(ctx context.Context, gc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, gc)
}

// MustFromContext returns the guard result or writes a 500 when the route was
// mounted without Middleware.
func MustFromContext(w http.ResponseWriter, r *http.Request) (*Context, bool) {
	gc, ok := FromContext(r.Context())
	if !ok {
		apperrors.WriteInternalError(w, r, msgInternal)
		return nil, false
	}
	return gc, true
}
