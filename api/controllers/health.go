package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/minhdang/storefront-backend/api/responses"
	"github.com/minhdang/storefront-backend/pkg/config"
	"github.com/minhdang/storefront-backend/pkg/db"
	"github.com/minhdang/storefront-backend/pkg/logger"
	"github.com/minhdang/storefront-backend/pkg/redis"
)

const readyProbeTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency readiness. Any failing probe flips the
// response to 503 so load balancers stop routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		probe := func(name string, ping func(context.Context) error) {
			if ping == nil {
				status[name] = "skipped"
				return
			}
			if err := ping(ctx); err != nil {
				healthy = false
				status[name] = "unavailable"
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness probe failed", err)
				}
				return
			}
			status[name] = "ready"
		}

		if dbP != nil {
			probe("database", dbP.Ping)
		} else {
			probe("database", nil)
		}
		if redisP != nil {
			probe("redis", redisP.Ping)
		} else {
			probe("redis", nil)
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, status)
	}
}
