package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探すヘルパー。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordOTPIssued_CountsPerFlow はフロー別に発行数が数えられることを検証する。
func TestRecordOTPIssued_CountsPerFlow(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOTPIssued("signup")
	c.RecordOTPIssued("login")
	c.RecordOTPIssued("login")

	if v := findMetric(t, reg, "notekeeper_otp_issued_total", map[string]string{"flow": "login"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("otp_issued_total{flow=login} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "notekeeper_otp_issued_total", map[string]string{"flow": "signup"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("otp_issued_total{flow=signup} = %v, want 1", v)
	}
}

func TestRecordOTPVerify_And_OAuthLogin(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOTPVerify("invalid")
	c.RecordOAuthLogin("linked")

	if v := findMetric(t, reg, "notekeeper_otp_verify_total", map[string]string{"result": "invalid"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("otp_verify_total = %v, want 1", v)
	}
	if v := findMetric(t, reg, "notekeeper_oauth_login_total", map[string]string{"outcome": "linked"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("oauth_login_total = %v, want 1", v)
	}
}

func TestRecordDeliveryFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDeliveryFailure()

	if v := findMetric(t, reg, "notekeeper_otp_delivery_fail_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("otp_delivery_fail_total = %v, want 1", v)
	}
}

// TestRecordHTTPRequest_StatusAndLatency はステータスとレイテンシが記録されることを検証する。
func TestRecordHTTPRequest_StatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodDelete, "/notes/{id}", http.StatusOK, 25*time.Millisecond)

	status := findMetric(t, reg, "notekeeper_http_requests_total", map[string]string{
		"method": "DELETE", "route": "/notes/{id}", "status_code": "200",
	})
	if v := status.GetCounter().GetValue(); v != 1 {
		t.Errorf("http_requests_total = %v, want 1", v)
	}

	latency := findMetric(t, reg, "notekeeper_http_request_duration_seconds", map[string]string{
		"method": "DELETE", "route": "/notes/{id}",
	})
	if n := latency.GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("sample count = %d, want 1", n)
	}
}

func TestRecordOTPCleanup_AddsDeletedCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOTPCleanup(3)
	c.RecordOTPCleanup(0)

	if v := findMetric(t, reg, "notekeeper_otp_cleanup_deleted_total", nil).GetCounter().GetValue(); v != 3 {
		t.Errorf("otp_cleanup_deleted_total = %v, want 3", v)
	}
}

// TestHandler_ServesMetrics はHandlerがテキスト形式でメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOTPIssued("signup")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "notekeeper_otp_issued_total") {
		t.Error("response should contain notekeeper_otp_issued_total metric")
	}
}
