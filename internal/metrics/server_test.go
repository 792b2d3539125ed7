package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewServer(t *testing.T) {
	s := NewServer(":0")
	if s.addr != ":0" {
		t.Errorf("addr = %q, want %q", s.addr, ":0")
	}
	if s.Addr() != ":0" {
		t.Errorf("Addr() before Start = %q, want %q", s.Addr(), ":0")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	addr := s.Addr()
	if !strings.Contains(addr, ":") || strings.HasSuffix(addr, ":0") {
		t.Errorf("Addr() = %q, expected bound host:port", addr)
	}
}

func TestServerWithCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetricsWithRegistry(reg)
	m.RecordAppend(0.002, true, 10)
	m.RecordAppend(0.008, false, 10)
	m.RecordError(OpAppend, "Unexpected", true)

	s := NewServerWithRegistry("127.0.0.1:0", reg)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	time.Sleep(10 * time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, expected text/plain", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	bodyStr := string(body)

	for _, want := range []string{
		"objaccess_objectstore_operation_latency_seconds",
		"objaccess_objectstore_bytes_written_total 10",
		`status="success"`,
		`status="failure"`,
		`objaccess_objectstore_errors_total{kind="Unexpected",operation="append",retryable="true"} 1`,
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestServer_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetricsWithRegistry(reg)
	m.RecordHead(0.001, true)

	rec := httptest.NewRecorder()
	NewServerWithRegistry(":0", reg).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `operation="head"`) {
		t.Error("expected head series in output")
	}
}

func TestServer_Close(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := s.Addr()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := http.Get("http://" + addr + "/metrics"); err == nil {
		t.Error("expected error after server close")
	}
}

func TestServer_CloseWithoutStart(t *testing.T) {
	s := NewServer(":0")
	if err := s.Close(); err != nil {
		t.Errorf("Close on unstarted server returned error: %v", err)
	}
}
