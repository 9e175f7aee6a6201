package handler

import (
	"encoding/json"
	"net/http"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/hub"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type HTTPHandler struct {
	hub        *hub.Hub
	instanceID string
}

func NewHTTPHandler(h *hub.Hub, instanceID string) *HTTPHandler {
	return &HTTPHandler{hub: h, instanceID: instanceID}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"instance_id": h.instanceID,
		"connections": h.hub.ClientCount(),
	})
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// NewRouter wires every relay route behind request logging and metrics.
func NewRouter(ws *WSHandler, httpHandler *HTTPHandler, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()
	ws.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	withMetrics := metrics.Middleware("/ws", "/health", "/metrics")(router)
	return pkglog.HTTPMiddleware(logger)(withMetrics)
}
