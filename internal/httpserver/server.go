// Package httpserver exposes the operational HTTP surface: Prometheus
// metrics, health and the device listing.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
	"github.com/tejusbharadwaj/edgemeter/internal/registry"
)

var startTime = time.Now()

// HealthSource reports dependency health.
type HealthSource interface {
	Healthy(ctx context.Context) error
}

// DeviceSource lists the configured devices.
type DeviceSource interface {
	Devices(ctx context.Context) ([]models.Device, error)
	Device(ctx context.Context, id string) (models.Device, error)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the ops routes.
func NewRouter(gatherer prometheus.Gatherer, health HealthSource, devices DeviceSource, logger logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/healthz", handleHealth(health)).Methods("GET")

	router.HandleFunc("/api/v1/devices", handleDevices(devices, logger)).Methods("GET")
	router.HandleFunc("/api/v1/devices/{id}", handleDevice(devices, logger)).Methods("GET")

	return router
}

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func handleHealth(health HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "healthy", Uptime: time.Since(startTime).String()}
		code := http.StatusOK
		if err := health.Healthy(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, resp)
	}
}

func handleDevices(devices DeviceSource, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := devices.Devices(r.Context())
		if err != nil {
			logger.WithError(err).Error("Failed to list devices")
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "device registry unavailable"})
			return
		}
		if list == nil {
			list = []models.Device{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func handleDevice(devices DeviceSource, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		d, err := devices.Device(r.Context(), id)
		switch {
		case errors.Is(err, registry.ErrDeviceNotFound):
			respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		case err != nil:
			logger.WithError(err).WithField("device", id).Error("Failed to load device")
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "device registry unavailable"})
		default:
			respondJSON(w, http.StatusOK, d)
		}
	}
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
