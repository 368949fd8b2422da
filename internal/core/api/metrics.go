package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flagkeeper",
		Subsystem: "targeting_api",
		Name:      "requests_total",
		Help:      "Targeting API requests by method and status code.",
	}, []string{"method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flagkeeper",
		Subsystem: "targeting_api",
		Name:      "request_duration_seconds",
		Help:      "Targeting API request latency by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	publishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flagkeeper",
		Subsystem: "targeting_api",
		Name:      "publishes_total",
		Help:      "Accepted publishes by outcome (published, pending_approval).",
	}, []string{"status"})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flagkeeper",
		Subsystem: "targeting_api",
		Name:      "rejected_configurations_total",
		Help:      "Configurations refused by validation, by first error kind.",
	}, []string{"kind"})
)

// MetricsInterceptor records request counts and latency per method.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		requestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
