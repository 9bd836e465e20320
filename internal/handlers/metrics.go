package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus registry on the metrics port.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
