package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-guard-go/config"
	"order-guard-go/infrastructure/logger"
	"order-guard-go/internal/snapshot"
	"order-guard-go/order"
	"order-guard-go/rules"
	"order-guard-go/tracker"
)

const gridRules = `
symbols:
  BTCUSDT:
    perGrid:
      - size: {min: "0", max: "100"}
        period: {unit: hours, value: 1}
        maxOrders: 2
`

func testConfig(t *testing.T, backend string) (config.AppConfig, string) {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(gridRules), 0o644))
	return config.AppConfig{
		Env:       "test",
		Storage:   config.StorageConfig{Backend: backend, Dir: filepath.Join(dir, "data"), Capacity: 100},
		Log:       logger.Config{Level: "error", Outputs: []string{"stdout"}, Format: "json"},
		Alert:     config.AlertConfig{ThrottleSeconds: 60},
		RulesFile: rulesPath,
		Symbols: map[string]config.SymbolConfig{
			"BTCUSDT": {
				StepSize: "0.001",
				Global:   []config.RuleSpec{{Period: rules.Weeks(52)}},
			},
		},
	}, rulesPath
}

type recordingGateway struct{ placed []order.Order }

func (g *recordingGateway) Place(o order.Order) (string, error) {
	g.placed = append(g.placed, o)
	return o.ID, nil
}

func (g *recordingGateway) Cancel(string) error { return nil }

func limit(size string) order.Order {
	return order.NewLimitOrder("BTCUSDT", tracker.SideBuy, decimal.RequireFromString(size), decimal.RequireFromString("100"))
}

func TestContainer_BuildAndSubmit(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			cfg, _ := testConfig(t, backend)
			gw := &recordingGateway{}
			c := NewFromConfig(cfg, WithGateway(gw))
			require.NoError(t, c.Build())
			require.NoError(t, c.Start(context.Background()))

			set, ok := c.Rules().Rules("BTCUSDT")
			require.True(t, ok)
			assert.Len(t, set, 2)

			placed, err := c.OrderManager().Submit(limit("1"))
			require.NoError(t, err)
			assert.Len(t, placed.ValidatedRules, 2)
			_, err = c.OrderManager().Submit(limit("1"))
			require.NoError(t, err)
			_, err = c.OrderManager().Submit(limit("1"))
			assert.ErrorIs(t, err, rules.ErrRuleViolated)
			assert.Len(t, gw.placed, 2)

			_, err = c.OrderManager().Submit(limit("0.0005"))
			assert.Error(t, err, "step size constraint")

			all, _ := c.Tracker().All("BTCUSDT")
			assert.Len(t, all, 3)
			require.NoError(t, c.HealthCheck())
			require.NoError(t, c.Stop())
		})
	}
}

func TestContainer_HistorySurvivesRestart(t *testing.T) {
	cfg, _ := testConfig(t, config.BackendPebble)

	first := NewFromConfig(cfg)
	require.NoError(t, first.Build())
	_, err := first.Guard().PreOrder(tracker.NewLimitRequest("BTCUSDT", tracker.SideSell, decimal.NewFromInt(3), decimal.NewFromInt(10)))
	require.NoError(t, err)
	require.NoError(t, first.Stop())

	second := NewFromConfig(cfg)
	require.NoError(t, second.Build())
	defer second.Stop()
	all, ok := second.Tracker().All("BTCUSDT")
	require.True(t, ok)
	require.Len(t, all, 1)
	assert.True(t, all[0].Item.Size.Equal(decimal.NewFromInt(3)))
}

func TestContainer_ApplyRulesKeepsPreviousOnFailure(t *testing.T) {
	cfg, rulesPath := testConfig(t, config.BackendFile)
	c := NewFromConfig(cfg)
	require.NoError(t, c.Build())
	defer c.Stop()
	before, _ := c.Rules().Rules("BTCUSDT")

	// 只有 24 小时以外的周期，合并后缺少短周期覆盖
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
symbols:
  BTCUSDT:
    perGrid:
      - period: {unit: days, value: 3}
        maxOrders: 5
`), 0o644))
	err := c.ApplyRules()
	assert.ErrorIs(t, err, rules.ErrRuleSetInvalid)
	after, _ := c.Rules().Rules("BTCUSDT")
	assert.Equal(t, before, after)

	require.NoError(t, os.WriteFile(rulesPath, []byte(`
symbols:
  ETHUSDT:
    perGrid:
      - period: {unit: hours, value: 2}
`), 0o644))
	assert.ErrorIs(t, c.ApplyRules(), rules.ErrInvalidDynamicUpdate, "symbol without seeded globals")

	require.NoError(t, os.WriteFile(rulesPath, []byte(`
symbols:
  BTCUSDT:
    perGrid:
      - period: {unit: hours, value: 4}
        maxOrders: 9
`), 0o644))
	require.NoError(t, c.ApplyRules())
	updated, _ := c.Rules().Rules("BTCUSDT")
	require.Len(t, updated, 2)
	assert.Equal(t, rules.Hours(4), updated[1].Period)
}

func TestContainer_CorruptSnapshotFailsBuild(t *testing.T) {
	cfg, _ := testConfig(t, config.BackendFile)
	require.NoError(t, os.MkdirAll(cfg.Storage.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.Dir, "order_tracker_BTCUSDT.json"), []byte("[{"), 0o644))

	c := NewFromConfig(cfg)
	err := c.Build()
	assert.ErrorIs(t, err, tracker.ErrCorruptSnapshot)
}

func TestContainer_FailedBuildReleasesResources(t *testing.T) {
	cfg, _ := testConfig(t, config.BackendPebble)
	logPath := filepath.Join(t.TempDir(), "guard.log")
	cfg.Log = logger.Config{Level: "info", Outputs: []string{"file"}, OutputFile: logPath, ErrorFile: logPath + ".err"}

	st, err := snapshot.NewPebbleStore(cfg.Storage.Dir)
	require.NoError(t, err)
	require.NoError(t, st.Save("BTCUSDT", []byte("[{")))
	require.NoError(t, st.Close())

	c := NewFromConfig(cfg)
	err = c.Build()
	require.ErrorIs(t, err, tracker.ErrCorruptSnapshot)

	// 存储已关闭，可以重新打开
	reopened, err := snapshot.NewPebbleStore(cfg.Storage.Dir)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
	// 日志文件已关闭，再次关闭是空操作
	assert.NoError(t, c.Logger().Close())
}
