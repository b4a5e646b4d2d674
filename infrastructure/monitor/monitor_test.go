package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitorCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordSubmission("BTCUSDT")
	m.RecordSubmission("BTCUSDT")
	m.RecordAccepted("BTCUSDT")
	m.RecordRejected("BTCUSDT", "rule_violated")
	m.SetHistorySize("BTCUSDT", 42)
	m.RecordRuleReload(true)
	m.RecordRuleReload(false)
	m.ObservePersist(2 * time.Millisecond)

	if got := testutil.ToFloat64(m.ordersRecorded.WithLabelValues("BTCUSDT")); got != 2 {
		t.Errorf("expected 2 recorded, got %f", got)
	}
	if got := testutil.ToFloat64(m.ordersAccepted.WithLabelValues("BTCUSDT")); got != 1 {
		t.Errorf("expected 1 accepted, got %f", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected.WithLabelValues("BTCUSDT", "rule_violated")); got != 1 {
		t.Errorf("expected 1 rejected, got %f", got)
	}
	if got := testutil.ToFloat64(m.historyEntries.WithLabelValues("BTCUSDT")); got != 42 {
		t.Errorf("expected history 42, got %f", got)
	}
	if got := testutil.ToFloat64(m.ruleReloads.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed reload, got %f", got)
	}
	if n := testutil.CollectAndCount(m.persistLatency); n != 1 {
		t.Errorf("expected persist histogram, got %d series", n)
	}
}

func TestMonitorHandler(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordRejected("ETHUSDT", "no_matching_rule")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `guard_orders_rejected_total{reason="no_matching_rule",symbol="ETHUSDT"} 1`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
