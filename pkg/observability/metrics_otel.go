package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpRequestSize     metric.Int64Histogram
	httpResponseSize    metric.Int64Histogram

	// Access resolution metrics
	resolutionsTotal   metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	activeSessions     metric.Int64UpDownCounter

	// Grant metrics
	grantIssuesTotal metric.Int64Counter

	// Billing metrics
	subscriptionQueriesTotal metric.Int64Counter
	webhookEventsTotal       metric.Int64Counter

	// Store metrics
	storeOperations metric.Int64Counter
	storeDuration   metric.Float64Histogram
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/lumenhq/entitlements")

	m := &OTelMetrics{}
	var err error

	// HTTP metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	m.httpRequestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_size histogram: %w", err)
	}

	m.httpResponseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_response_size histogram: %w", err)
	}

	// Access resolution metrics
	m.resolutionsTotal, err = meter.Int64Counter(
		"access.resolutions.total",
		metric.WithDescription("Total number of access status resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolutions_total counter: %w", err)
	}

	m.resolutionDuration, err = meter.Float64Histogram(
		"access.resolution.duration",
		metric.WithDescription("Access status resolution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution_duration histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"access.sessions.active",
		metric.WithDescription("Number of active resolver sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	// Grant metrics
	m.grantIssuesTotal, err = meter.Int64Counter(
		"grants.issues.total",
		metric.WithDescription("Total number of welcome grant issuance attempts"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant_issues_total counter: %w", err)
	}

	// Billing metrics
	m.subscriptionQueriesTotal, err = meter.Int64Counter(
		"billing.subscription.queries.total",
		metric.WithDescription("Total number of subscription backend queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription_queries_total counter: %w", err)
	}

	m.webhookEventsTotal, err = meter.Int64Counter(
		"billing.webhook.events.total",
		metric.WithDescription("Total number of billing webhook events received"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_events_total counter: %w", err)
	}

	// Store metrics
	m.storeOperations, err = meter.Int64Counter(
		"store.operations.total",
		metric.WithDescription("Total number of grant and override store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store_operations counter: %w", err)
	}

	m.storeDuration, err = meter.Float64Histogram(
		"store.operation.duration",
		metric.WithDescription("Store operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store_duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if requestSize > 0 {
		m.httpRequestSize.Record(ctx, requestSize, metric.WithAttributes(attrs...))
	}
	if responseSize > 0 {
		m.httpResponseSize.Record(ctx, responseSize, metric.WithAttributes(attrs...))
	}
}

// RecordResolution records an access status resolution metric
func (m *OTelMetrics) RecordResolution(ctx context.Context, trigger, tier string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("resolution.trigger", trigger),
		attribute.String("resolution.tier", tier),
	}

	m.resolutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.resolutionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// AddActiveSessions adjusts the active resolver session count by delta
func (m *OTelMetrics) AddActiveSessions(ctx context.Context, delta int64) {
	m.activeSessions.Add(ctx, delta)
}

// RecordGrantIssue records a welcome grant issuance attempt
func (m *OTelMetrics) RecordGrantIssue(ctx context.Context, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("grant.outcome", outcome),
	}
	m.grantIssuesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSubscriptionQuery records a subscription backend query
func (m *OTelMetrics) RecordSubscriptionQuery(ctx context.Context, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("query.outcome", outcome),
	}
	m.subscriptionQueriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent records a billing webhook event
func (m *OTelMetrics) RecordWebhookEvent(ctx context.Context, eventType string) {
	attrs := []attribute.KeyValue{
		attribute.String("webhook.event_type", eventType),
	}
	m.webhookEventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStoreOperation records a grant or override store operation metric
func (m *OTelMetrics) RecordStoreOperation(ctx context.Context, operation, storeType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.type", storeType),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", "true"))
	} else {
		attrs = append(attrs, attribute.String("error", "false"))
	}

	m.storeOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.storeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
