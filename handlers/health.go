package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"pk55-api/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db        Pinger
	redis     Pinger
	startTime time.Time
}

// NewHealthHandler reports on db and, when non-nil, redis.
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, startTime: time.Now()}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "connected",
		Redis:     "disabled",
		Uptime:    fmt.Sprintf("%v", time.Since(h.startTime).Round(time.Second)),
		GoVersion: runtime.Version(),
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer dbCancel()
	if err := h.db.Ping(dbCtx); err != nil {
		health.Status = "degraded"
		health.Database = "error"
	}

	if h.redis != nil {
		health.Redis = "connected"
		redisCtx, redisCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer redisCancel()
		if err := h.redis.Ping(redisCtx); err != nil {
			health.Status = "degraded"
			health.Redis = "error"
		}
	}

	utils.SendJSON(w, http.StatusOK, health)
}

func Root(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, map[string]string{"message": "PK55 API Server"})
}
