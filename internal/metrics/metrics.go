package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	BytesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "splitdl",
			Name:      "bytes_downloaded_total",
			Help:      "Bytes written to chunk files by range fetchers.",
		},
	)

	ChunkFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitdl",
			Name:      "chunk_fetches_total",
			Help:      "Chunk fetches by result (fetched, resumed, skipped, failed).",
		},
		[]string{"result"},
	)

	Attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitdl",
			Name:      "attempts_total",
			Help:      "Whole-file download attempts by result.",
		},
		[]string{"result"},
	)

	Files = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitdl",
			Name:      "files_total",
			Help:      "Files finished by the batch orchestrator, by status.",
		},
		[]string{"status"},
	)

	ActiveFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "splitdl",
			Name:      "active_files",
			Help:      "Files currently holding a download permit.",
		},
	)

	BackoffSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "splitdl",
			Name:      "backoff_seconds_total",
			Help:      "Seconds spent waiting between retry attempts.",
		},
	)
)

// Register registers the splitdl collectors into reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(BytesDownloaded, ChunkFetches, Attempts, Files, ActiveFiles, BackoffSeconds)
}

// Serve exposes the default registry on addr under /metrics. It returns the
// server so the caller can shut it down once the batch is done.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("op", "metrics").Err(err).Msg("Metrics server stopped")
		}
	}()
	log.Debug().Str("op", "metrics").Str("addr", addr).Msg("Serving metrics")
	return server
}
