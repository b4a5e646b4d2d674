package alert

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	err := mgr.SendAlert(Alert{
		Level:   LevelError,
		Key:     "BTCUSDT:corrupt_snapshot",
		Message: "snapshot unreadable",
		Fields:  map[string]interface{}{"symbol": "BTCUSDT"},
	})
	if err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}
	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}
	got := mock.GetAlerts()[0]
	if got.Fields["symbol"] != "BTCUSDT" {
		t.Errorf("field symbol = %v, want BTCUSDT", got.Fields["symbol"])
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestThrottlePerKey(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)
	now := time.Unix(1000, 0)
	mgr.throttle.now = func() time.Time { return now }

	mgr.Send("BTCUSDT:rule_violated", "rejected")
	mgr.Send("BTCUSDT:rule_violated", "rejected again")
	mgr.Send("ETHUSDT:rule_violated", "rejected")
	if mock.Count() != 2 {
		t.Fatalf("expected 2 alerts after throttling, got %d", mock.Count())
	}

	now = now.Add(time.Minute)
	mgr.Send("BTCUSDT:rule_violated", "rejected later")
	if mock.Count() != 3 {
		t.Fatalf("expected throttle to expire, got %d alerts", mock.Count())
	}
}

func TestAllChannelsFail(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	mgr := NewManager([]Channel{bad}, time.Minute)
	if err := mgr.SendAlert(Alert{Level: LevelCritical, Message: "x"}); err == nil {
		t.Fatal("expected error when every channel fails")
	}

	good := NewMockChannel("good")
	mgr.AddChannel(good)
	if err := mgr.SendAlert(Alert{Level: LevelCritical, Message: "y"}); err != nil {
		t.Fatalf("expected success with one healthy channel: %v", err)
	}
	if names := mgr.GetChannels(); len(names) != 2 || names[1] != "good" {
		t.Fatalf("unexpected channels: %v", names)
	}
}

func TestZapChannel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ch := NewZapChannel("log", zap.New(core))
	_ = ch.Send(Alert{Level: LevelWarning, Key: "k", Message: "order_rejected"})
	_ = ch.Send(Alert{Level: LevelCritical, Key: "k", Message: "snapshot_corrupt"})

	if logs.Len() != 2 {
		t.Fatalf("expected 2 log entries, got %d", logs.Len())
	}
	entries := logs.All()
	if entries[0].Level != zap.WarnLevel || entries[1].Level != zap.ErrorLevel {
		t.Fatalf("unexpected levels: %v %v", entries[0].Level, entries[1].Level)
	}
}
