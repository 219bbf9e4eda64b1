package daemon

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
	"git.home.luguber.info/inful/nightlybuilder/internal/version"
)

// Handler returns the daemon API.
func (d *Daemon) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/healthz", d.handleHealth)
	router.GET("/status", d.handleStatus)
	router.POST("/trigger", d.handleTrigger)
	router.Handler(http.MethodGet, "/metrics", metrics.HTTPHandler(d.registry))
	return router
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, d.Status())
}

func (d *Daemon) handleTrigger(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	err := d.Trigger()
	switch {
	case err == nil:
		slog.Info("Run triggered over HTTP", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
	case stderrors.Is(err, ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		slog.Error("Trigger failed", logfields.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", logfields.Error(err))
	}
}
