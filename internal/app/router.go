package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/auth"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
	"github.com/aliuyar1234/feedbackiq/internal/db"
	"github.com/aliuyar1234/feedbackiq/internal/feedback"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/ingest"
	"github.com/aliuyar1234/feedbackiq/internal/orgs"
	"github.com/aliuyar1234/feedbackiq/internal/permissions"
	"github.com/aliuyar1234/feedbackiq/internal/projects"
	"github.com/aliuyar1234/feedbackiq/internal/stats"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(d *Deps) *chi.Mux {
	r := chi.NewRouter()
	cfg := d.Config

	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", apperrors.RequestIDHeader},
		ExposedHeaders:   []string{apperrors.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(cfg.JWTSecret))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(d))

	session := auth.SessionConfig{
		Secret:       cfg.JWTSecret,
		Days:         cfg.SessionDays,
		IsProduction: !cfg.IsDev(),
	}
	allow := func(perms ...permissions.Permission) func(http.Handler) http.Handler {
		return guard.Middleware(d.Guard, guard.RequirePermission(perms...))
	}
	signedIn := guard.Middleware(d.Guard, guard.WithoutOrg())
	uploadLimiter := cache.NewUploadLimiter(d.Cache, cfg.UploadRPM)
	uploadLimits := ingest.NewUploadLimits(cfg.MaxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", auth.HandleSignup(d.Pool, d.Auditor, session))
			r.With(LoginRateLimitMiddleware()).Post("/login", auth.HandleLogin(d.Pool, d.Auditor, session))
			r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout)
			r.With(auth.RequireAuth).Get("/me", auth.HandleMe(d.Pool))
		})

		r.Get("/invites/{token}", orgs.HandleResolveInvite(d.Invites))
		r.With(signedIn).Post("/invites/accept", orgs.HandleAcceptInvite(d.Invites, d.Auditor))

		r.Route("/orgs", func(r chi.Router) {
			r.With(signedIn).Post("/", orgs.HandleCreate(d.Orgs, d.Auditor))
			r.With(signedIn).Get("/", orgs.HandleList(d.Orgs))

			r.Route("/{org_id}", func(r chi.Router) {
				r.With(allow(permissions.OrgRead)).Get("/", orgs.HandleGet(d.Orgs))
				r.With(allow(permissions.OrgUpdate)).Patch("/", orgs.HandleUpdate(d.Orgs, d.Auditor))
				r.With(allow(permissions.OrgDelete)).Delete("/", orgs.HandleDelete(d.Orgs))
				r.With(allow(permissions.OrgUpdate)).Get("/audit", orgs.HandleListAudit(d.AuditReader))

				r.With(allow(permissions.OrgMembersRead)).Get("/members", orgs.HandleListMembers(d.Orgs))
				r.With(allow(permissions.OrgMembersUpdate)).Patch("/members/{user_id}", orgs.HandleUpdateMemberRole(d.Orgs, d.Auditor))
				// Leaving is open to every member; removing others is checked per target.
				r.With(allow(permissions.OrgRead)).Delete("/members/{user_id}", orgs.HandleRemoveMember(d.Orgs, d.Auditor))

				r.With(allow(permissions.OrgMembersInvite)).Post("/invites", orgs.HandleCreateInvite(d.Invites, d.Auditor))
				r.With(allow(permissions.OrgMembersInvite)).Get("/invites", orgs.HandleListInvites(d.Invites))
				r.With(allow(permissions.OrgMembersInvite)).Delete("/invites/{invite_id}", orgs.HandleRevokeInvite(d.Invites, d.Auditor))

				r.With(allow(permissions.ProjectCreate)).Post("/projects", projects.HandleCreate(d.Projects, d.Auditor))
				r.With(allow(permissions.ProjectRead)).Get("/projects", projects.HandleList(d.Projects))
				r.With(allow(permissions.ProjectRead)).Get("/projects/{project_id}", projects.HandleGet(d.Projects))
				r.With(allow(permissions.ProjectDelete)).Delete("/projects/{project_id}", projects.HandleDelete(d.Projects, d.Auditor))

				r.With(allow(permissions.DataCreate)).Post("/feedback", feedback.HandleCreate(d.Feedback))
				r.With(allow(permissions.DataRead)).Get("/feedback", feedback.HandleList(d.FeedbackStore))
				r.With(allow(permissions.DataExport)).Get("/feedback/export", feedback.HandleExport(d.FeedbackStore, d.Auditor))
				r.With(allow(permissions.DataCreate), uploadLimiter.Middleware).
					Post("/feedback/upload", ingest.HandleUpload(d.Pipeline, uploadLimits, d.Stats, d.Auditor))

				r.With(allow(permissions.InsightsRead)).Get("/stats", stats.HandleStats(d.Stats))
				r.With(allow(permissions.InsightsRead)).Get("/insights/weekly", stats.HandleWeeklyInsights(d.Stats))
				r.With(allow(permissions.ReportsRead)).Get("/insights/reports", stats.HandleListReports(d.Reporter))
			})
		})
	})

	return r
}

// handleHealthz returns a simple liveness check
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz reports 503 when the database is unreachable. Redis is
// optional, so its state is reported without failing the probe.
func handleReadyz(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), d.Pool, 2*time.Second); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		cacheStatus := "ok"
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := d.Cache.Ping(ctx); err != nil {
			cacheStatus = "degraded"
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
			"cache":  cacheStatus,
		})
	}
}
