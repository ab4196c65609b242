package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"minerva/pkg/logger"
)

// Handler provides health check endpoints. Redis is optional: a nil client
// means the market data cache is disabled, which degrades but never breaks
// the service.
type Handler struct {
	log           *logger.Logger
	redis         *redis.Client
	chatProviders []string
	dataProviders []string
	startTime     time.Time
	serviceName   string
	version       string
}

// New creates a new health check handler
func New(
	log *logger.Logger,
	redisClient *redis.Client,
	chatProviders []string,
	dataProviders []string,
	serviceName string,
	version string,
) *Handler {
	return &Handler{
		log:           log,
		redis:         redisClient,
		chatProviders: chatProviders,
		dataProviders: dataProviders,
		startTime:     time.Now(),
		serviceName:   serviceName,
		version:       version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	Detail       string `json:"detail,omitempty"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// HandleReadiness checks if service is ready to accept queries: at least one
// chat provider and one market data provider must be wired. Redis being down
// only disables caching, so it never fails readiness.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]ComponentHealth{
		"chat_providers": h.checkChatProviders(),
		"data_providers": h.checkDataProviders(),
		"redis":          h.checkRedis(ctx),
	}

	allReady := checks["chat_providers"].Status == "healthy" &&
		checks["data_providers"].Status == "healthy"

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if !allReady {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

// HandleHealth returns detailed health status (includes all checks)
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := map[string]ComponentHealth{
		"chat_providers": h.checkChatProviders(),
		"data_providers": h.checkDataProviders(),
		"redis":          h.checkRedis(ctx),
	}

	healthyCount := 0
	requiredCount := 0
	for name, c := range checks {
		if name == "redis" && c.Status == "disabled" {
			continue
		}
		requiredCount++
		if c.Status == "healthy" {
			healthyCount++
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if healthyCount == 0 {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if healthyCount < requiredCount {
		status.Status = "degraded"
		// Still return 200 for degraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

// checkChatProviders verifies at least one chat provider is registered
func (h *Handler) checkChatProviders() ComponentHealth {
	if len(h.chatProviders) == 0 {
		return ComponentHealth{
			Status: "unhealthy",
			Error:  "no chat providers configured",
		}
	}
	return ComponentHealth{
		Status: "healthy",
		Detail: fmt.Sprintf("%d configured", len(h.chatProviders)),
	}
}

// checkDataProviders verifies the market data fallback chain is non-empty
func (h *Handler) checkDataProviders() ComponentHealth {
	if len(h.dataProviders) == 0 {
		return ComponentHealth{
			Status: "unhealthy",
			Error:  "no market data providers configured",
		}
	}
	return ComponentHealth{
		Status: "healthy",
		Detail: fmt.Sprintf("%d in chain", len(h.dataProviders)),
	}
}

// checkRedis verifies Redis connectivity when a cache backend is configured
func (h *Handler) checkRedis(ctx context.Context) ComponentHealth {
	if h.redis == nil {
		return ComponentHealth{
			Status: "disabled",
			Detail: "cache not configured",
		}
	}

	start := time.Now()
	err := h.redis.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Redis health check failed", "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}
