package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
	OutcomeTimeout   = "timeout"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts inbound API requests by method, route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records inbound API request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// WebhookDeliveries counts outbound delivery attempts by event type and outcome.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by event type and outcome."},
		[]string{"event_type", "outcome"},
	)
	// WebhookLatency tracks outbound delivery latency in milliseconds.
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000}},
		[]string{"event_type", "outcome"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Event label buckets for types that cannot be labelled on their own.
const (
	EventLabelUnknown = "unknown"
	EventLabelOther   = "other"
)

// MaxEventLabels bounds the distinct event_type label values.
const MaxEventLabels = 64

// eventLabels maps caller-supplied event types onto a bounded label set.
// A type is labelled by its family, the part before the first ".", and
// families beyond the limit share the "other" label.
type eventLabels struct {
	mu    sync.Mutex
	max   int
	known map[string]struct{}
}

func newEventLabels(max int) *eventLabels {
	return &eventLabels{max: max, known: make(map[string]struct{})}
}

func (l *eventLabels) label(eventType string) string {
	family, _, _ := strings.Cut(eventType, ".")
	if family == "" {
		return EventLabelUnknown
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.known[family]; ok {
		return family
	}
	if len(l.known) >= l.max {
		return EventLabelOther
	}
	l.known[family] = struct{}{}
	return family
}

var deliveryLabels = newEventLabels(MaxEventLabels)

// EventLabel returns the event_type label recorded for eventType.
func EventLabel(eventType string) string {
	return deliveryLabels.label(eventType)
}

// ObserveDelivery records one outbound attempt.
func ObserveDelivery(eventType, outcome string, elapsed time.Duration) {
	label := EventLabel(eventType)
	WebhookDeliveries.WithLabelValues(label, outcome).Inc()
	WebhookLatency.WithLabelValues(label, outcome).Observe(float64(elapsed.Milliseconds()))
}

// StatusOutcome classifies a completed HTTP exchange.
func StatusOutcome(status int) string {
	if status >= 200 && status < 300 {
		return OutcomeDelivered
	}
	return OutcomeRejected
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		HTTPRequests.WithLabelValues(labels...).Inc()
		HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
