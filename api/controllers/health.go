package controllers

import (
	"context"
	"net/http"

	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ordena-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks every wired dependency before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger, pubsub pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{
		{"database", db},
		{"redis", redis},
		{"pubsub", pubsub},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ordena-Env", cfg.App.Env)
		for _, d := range deps {
			if d.dep == nil {
				continue
			}
			if err := d.dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, d.name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
