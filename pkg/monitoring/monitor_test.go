package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountSubmission(t *testing.T) {
	before := testutil.ToFloat64(SubmissionCounter.WithLabelValues("unknown", "invalid"))
	CountSubmission("", "invalid")
	assert.Equal(t, before+1, testutil.ToFloat64(SubmissionCounter.WithLabelValues("unknown", "invalid")))

	CountSubmission("speech_habit", "created")
	assert.GreaterOrEqual(t, testutil.ToFloat64(SubmissionCounter.WithLabelValues("speech_habit", "created")), 1.0)
}

func TestMetricsEndpoint(t *testing.T) {
	Init()
	Init()
	ObserveStage("validate", time.Now())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/metrics", PrometheusHandler())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/ok", "200")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "questionnaire_pipeline_stage_seconds")
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
