package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg             *prometheus.Registry
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Offers          *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calc_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calc_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calc_offers_total",
		Help: "Calculated offers by outcome (ok, failed).",
	}, []string{"outcome"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "calc_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "calc_cache_misses_total"})

	r.MustRegister(requests, duration, offers, hits, misses)
	return &Registry{
		reg:             r,
		Requests:        requests,
		RequestDuration: duration,
		Offers:          offers,
		CacheHits:       hits,
		CacheMisses:     misses,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
