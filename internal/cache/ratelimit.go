package cache

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
)

const uploadWindow = time.Minute

// UploadLimiter caps uploads per organization per minute. Counters live in
// Redis so the limit holds across replicas; when Redis is unreachable the
// limiter falls back to an in-process httprate window.
type UploadLimiter struct {
	cache     Cache
	perMinute int
}

func NewUploadLimiter(c Cache, perMinute int) *UploadLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &UploadLimiter{cache: c, perMinute: perMinute}
}

func orgKey(r *http.Request) string {
	if id := chi.URLParam(r, "org_id"); id != "" {
		return id
	}
	return r.RemoteAddr
}

func (l *UploadLimiter) tooMany(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(uploadWindow.Seconds())))
	apperrors.WriteTooManyRequests(w, r, "Too many uploads for this organization, please retry later")
}

func (l *UploadLimiter) Middleware(next http.Handler) http.Handler {
	fallback := httprate.Limit(l.perMinute, uploadWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return orgKey(r), nil
		}),
		httprate.WithLimitHandler(l.tooMany),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := l.cache.IncrWithExpiry(r.Context(), UploadRateKey(orgKey(r)), uploadWindow)
		if err != nil {
			if err != ErrUnavailable {
				log.Warn().Err(err).Msg("Upload rate limit counter unavailable, using in-process limit")
			}
			fallback.ServeHTTP(w, r)
			return
		}

		remaining := l.perMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.perMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(l.perMinute) {
			l.tooMany(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
