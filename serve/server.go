// Package serve implements the HTTP API used by feed editors.
package serve

import (
	"io"
	"net/http"

	"hastycam/config"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hastycam_feed_validation_failures_total",
	Help: "Feed fields rejected by validation.",
}, []string{"field"})

// NewHandler builds the complete API. Requests are logged to accessLog in
// combined log format, unless it is nil.
func NewHandler(store *config.Store, updater *Updater, accessLog io.Writer) http.Handler {
	mux := http.NewServeMux()
	fs := &FeedServer{Store: store}
	fs.RegisterHandlers(mux)
	mux.Handle("/configws", updater)
	mux.Handle("/metrics", promhttp.Handler())

	var h http.Handler = mux
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	if accessLog != nil {
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}
	return h
}
