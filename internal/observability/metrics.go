package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_campaign_fetches_total",
			Help: "Campaign fetches by outcome (applied, stale_discard, failed)",
		}, []string{"outcome"},
	)
	FetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_campaign_fetch_duration_seconds",
		Help:    "Campaign fetch latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_screen_cache_lookups_total",
			Help: "Screen cache lookups by result (hit, miss, stale_fallback)",
		}, []string{"result"},
	)
	EventSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_event_sends_total",
			Help: "Engagement event sends by outcome (sent, queued, replayed)",
		}, []string{"outcome"},
	)
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_http_requests_total",
			Help: "Total driver HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_http_request_duration_seconds",
		Help:    "Driver request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_http_in_flight",
		Help: "In-flight driver HTTP requests",
	})
)

func init() {
	prometheus.MustRegister(FetchesTotal, FetchLatency, CacheLookups, EventSends, RequestsTotal, Latency, InFlight)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
