package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// upload and process calls hold the request open for the provider round trip
var defaultLatencyBuckets = []float64{50, 300, 1000, 5000, 30000, 120000, 600000}

// Middleware exposes request count, latency and in-flight requests partitioned by route pattern.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMiddleware returns a middleware labelled with the server name. Empty buckets select the defaults.
func NewMiddleware(server string, buckets ...float64) *Middleware {
	if len(buckets) == 0 {
		buckets = defaultLatencyBuckets
	}
	labels := prometheus.Labels{"server": server}

	return &Middleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem:   subsystem,
			Name:        "http_requests_total",
			Help:        "number of http requests partitioned by status code, method and route",
			ConstLabels: labels,
		}, []string{"code", "method", "route"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem:   subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "time spent serving http requests partitioned by status code, method and route",
			ConstLabels: labels,
			Buckets:     buckets,
		}, []string{"code", "method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem:   subsystem,
			Name:        "http_requests_in_flight",
			Help:        "number of http requests being served",
			ConstLabels: labels,
		}),
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, route).Inc()
		m.latency.WithLabelValues(code, r.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Register adds the collectors to reg. Collectors registered earlier under the same name are reused.
func (m *Middleware) Register(reg prometheus.Registerer) error {
	var err error
	m.requests, err = register(reg, m.requests)
	if err != nil {
		return err
	}
	m.latency, err = register(reg, m.latency)
	if err != nil {
		return err
	}
	m.inFlight, err = register(reg, m.inFlight)
	return err
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
