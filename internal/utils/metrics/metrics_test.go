package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	return New("test", prometheus.NewRegistry())
}

func TestNew_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)
	m.RecordPart("succeeded")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "mediaupload_upload_parts_total")
	assert.Contains(t, names, "mediaupload_http_requests_in_flight")
}

func TestRecordHTTPRequest(t *testing.T) {
	m := newTestMetrics()

	m.RecordHTTPRequest("POST", "/api/upload-url", 200, 10*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/upload-url", 201, 10*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/upload-url", 500, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/upload-url", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/upload-url", "5xx")))
}

func TestRecordUpload(t *testing.T) {
	m := newTestMetrics()

	m.RecordUpload("chunked", "succeeded", 100<<20, 2*time.Second)
	m.RecordUpload("chunked", "failed", 0, time.Second)
	m.RecordUpload("single", "succeeded", 1<<20, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("chunked", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("chunked", "failed")))
	assert.Equal(t, float64(100<<20), testutil.ToFloat64(m.UploadBytes.WithLabelValues("chunked")))
	assert.Equal(t, float64(1<<20), testutil.ToFloat64(m.UploadBytes.WithLabelValues("single")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.UploadDuration))
}

func TestRecordPartAndAuthorization(t *testing.T) {
	m := newTestMetrics()

	m.RecordPart("succeeded")
	m.RecordPart("succeeded")
	m.RecordPart("failed")
	m.RecordAuthorization("part_url", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadParts.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadParts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorizationsTotal.WithLabelValues("part_url", "ok")))
}

func TestHandler(t *testing.T) {
	m := newTestMetrics()
	m.RecordAuthorization("upload_url", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_broker_authorizations_total{operation="upload_url",status="ok"} 1`)
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusCodeToString(tt.code))
	}
}

func TestUploadSummary(t *testing.T) {
	m := newTestMetrics()

	m.RecordUpload("single", "succeeded", 100, time.Second)
	m.RecordUpload("chunked", "succeeded", 400, time.Second)
	m.RecordUpload("chunked", "failed", 0, time.Second)
	m.RecordPart("succeeded")
	m.RecordPart("failed")
	m.RecordAuthorization("upload_url", "succeeded")

	s, err := m.UploadSummary()
	require.NoError(t, err)
	assert.Equal(t, UploadSummary{Succeeded: 2, Failed: 1, Bytes: 500, Parts: 2}, s)
}

func TestUploadSummary_Empty(t *testing.T) {
	s, err := newTestMetrics().UploadSummary()
	require.NoError(t, err)
	assert.Zero(t, s)
}
