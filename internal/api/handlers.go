package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitboard/internal/apperr"
	"fitboard/internal/dashboard"
	"fitboard/internal/models"
	"fitboard/internal/transform"
)

const CacheHeader = "X-Cache"

type Gateway interface {
	dashboard.Gateway
	GetBundle(ctx context.Context, id int) (*models.CanonicalUserBundle, error)
}

type Dashboards interface {
	Load(ctx context.Context, id int) (*dashboard.Dashboard, error)
}

// Cache is the response cache and rate limiter; redis in production.
type Cache interface {
	IsRateLimited(ctx context.Context, ip string) bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type Handler struct {
	dashboards Dashboards
	gw         Gateway
	cache      Cache
	cacheTTL   time.Duration
}

// NewHandler builds the handler. A nil cache disables both response caching
// and rate limiting.
func NewHandler(dashboards Dashboards, gw Gateway, cache Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		dashboards: dashboards,
		gw:         gw,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/dashboard/{id}", h.limit(h.GetDashboard))
	mux.HandleFunc("GET /api/user/{id}", h.limit(h.GetUser))
	mux.HandleFunc("GET /api/user/{id}/activity", h.limit(h.GetActivity))
	mux.HandleFunc("GET /api/user/{id}/average-sessions", h.limit(h.GetAverageSessions))
	mux.HandleFunc("GET /api/user/{id}/performance", h.limit(h.GetPerformance))
	mux.HandleFunc("GET /api/user/{id}/bundle", h.limit(h.GetBundle))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("JSON marshal error", "error", err)
		http.Error(w, `{"error": "Internal Server Error"}`, http.StatusInternalServerError)
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNetwork, apperr.KindSchema:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: dashboard.Message(err)})
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (h *Handler) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.cache != nil {
			ip := clientIP(r)
			if h.cache.IsRateLimited(r.Context(), ip) {
				slog.Warn("Rate limit exceeded", "ip", ip)
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests"})
				return
			}
		}
		next(w, r)
	}
}

func userID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, apperr.Validation("api.user_id", "invalid user id %q", r.PathValue("id"))
	}
	return id, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetDashboard serves every chart of a user. Charts that failed are part of
// the payload; only an unknown user fails the request.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	id, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	cacheKey := fmt.Sprintf("dashboard:%d", id)
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, cacheKey); err == nil {
			slog.Info("Cache HIT", "user_id", id, "duration", time.Since(start))
			w.Header().Set(CacheHeader, "HIT")
			writeBody(w, http.StatusOK, cached)
			return
		}
	}

	d, err := h.dashboards.Load(ctx, id)
	if d == nil {
		slog.Error("Failed to load dashboard", "user_id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Service unavailable"})
		return
	}
	if err != nil {
		slog.Warn("Dashboard served before all charts settled", "user_id", id, "error", err)
	}
	if d.NotFound() {
		writeError(w, d.Err)
		return
	}
	if d.HasError {
		slog.Warn("Dashboard has failed charts", "user_id", id, "error", d.Err)
	}

	body, err := json.Marshal(d)
	if err != nil {
		slog.Error("JSON marshal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
		return
	}

	// only complete dashboards are cached
	if h.cache != nil && !d.Loading && !d.HasError {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if err := h.cache.Set(setCtx, cacheKey, body, h.cacheTTL); err != nil {
			slog.Warn("Cache write failed", "key", cacheKey, "error", err)
		}
		cancel()
	}

	slog.Info("Request processed", "user_id", id, "duration", time.Since(start))
	w.Header().Set(CacheHeader, "MISS")
	writeBody(w, http.StatusOK, body)
}

// serve runs one gateway call and writes its projection.
func serve[S, T any](w http.ResponseWriter, r *http.Request, get func(context.Context, int) (S, error), project func(S) (T, error)) {
	id, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	src, err := get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get chart", "user_id", id, "path", r.URL.Path, "error", err)
		writeError(w, err)
		return
	}
	out, err := project(src)
	if err != nil {
		slog.Error("Failed to project chart", "user_id", id, "path", r.URL.Path, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func pure[S, T any](fn func(S) T) func(S) (T, error) {
	return func(s S) (T, error) { return fn(s), nil }
}

type userResponse struct {
	Profile   models.UserProfile        `json:"profile"`
	Score     transform.ScoreChart      `json:"score"`
	Nutrition []transform.NutritionCard `json:"nutrition"`
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.gw.GetUser, pure(func(s models.UserSummary) userResponse {
		return userResponse{
			Profile:   s.Profile,
			Score:     transform.Score(s.Score),
			Nutrition: transform.Nutrition(s.Nutrition),
		}
	}))
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.gw.GetActivity, pure(transform.Activity))
}

func (h *Handler) GetAverageSessions(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.gw.GetAverageSessions, transform.AddGhostPoints)
}

func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.gw.GetPerformance, pure(transform.Performance))
}

// GetBundle serves the canonical, untransformed entities of a user.
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.gw.GetBundle, pure(func(b *models.CanonicalUserBundle) *models.CanonicalUserBundle { return b }))
}
