package observability

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusHandler adapts the promhttp handler to a gin route.
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// AccessMetrics are the service's domain counters: code redemptions and
// per-lesson authorization verdicts.
type AccessMetrics struct {
	redemptions  metric.Int64Counter
	lessonChecks metric.Int64Counter
}

// NewAccessMetrics registers the counters on the given provider.
func NewAccessMetrics(provider *sdkmetric.MeterProvider) (*AccessMetrics, error) {
	meter := provider.Meter("access-service")

	redemptions, err := meter.Int64Counter("access_code_redemptions_total",
		metric.WithDescription("Redemption code validation attempts"))
	if err != nil {
		return nil, err
	}

	lessonChecks, err := meter.Int64Counter("access_lesson_checks_total",
		metric.WithDescription("Per-lesson authorization verdicts"))
	if err != nil {
		return nil, err
	}

	return &AccessMetrics{redemptions: redemptions, lessonChecks: lessonChecks}, nil
}

// RecordRedemption counts one code validation attempt.
func (m *AccessMetrics) RecordRedemption(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordLessonCheck counts one lesson verdict by reason.
func (m *AccessMetrics) RecordLessonCheck(ctx context.Context, reason string, allowed bool) {
	if m == nil {
		return
	}
	m.lessonChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Bool("allowed", allowed),
	))
}
