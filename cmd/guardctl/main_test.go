package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-guard-go/history"
	"order-guard-go/internal/snapshot"
	"order-guard-go/tracker"
)

func writeFiles(t *testing.T, perGrid string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("symbols:\n  BTCUSDT:\n    perGrid:\n"+perGrid), 0o644))
	cfgPath = filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
env: test
storage:
  dir: `+filepath.Join(dir, "data")+`
rulesFile: `+rulesPath+`
symbols:
  BTCUSDT:
    global:
      - period: {unit: weeks, value: 52}
`), 0o644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheck_OK(t *testing.T) {
	_, cfgPath := writeFiles(t, "      - period: {unit: hours, value: 1}\n        maxOrders: 3\n")
	out, err := execute(t, "check", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK   BTCUSDT (2 rules)")
}

func TestCheck_MissingShortHorizon(t *testing.T) {
	_, cfgPath := writeFiles(t, "      - period: {unit: days, value: 7}\n")
	out, err := execute(t, "check", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL BTCUSDT")
}

func TestCheck_ReportsEverySymbolSorted(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
symbols:
  SOLUSDT:
    perGrid:
      - period: {unit: hours, value: 1}
  BTCUSDT:
    perGrid:
      - period: {unit: days, value: 7}
  DOGEUSDT:
    perGrid:
      - period: {unit: hours, value: 1}
  ETHUSDT:
    perGrid:
      - period: {unit: hours, value: 2}
        maxOrders: 4
`), 0o644))
	cfgPath := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
env: test
storage:
  dir: `+filepath.Join(dir, "data")+`
rulesFile: `+rulesPath+`
symbols:
  SOLUSDT:
    global:
      - period: {unit: weeks, value: 52}
  BTCUSDT:
    global:
      - period: {unit: weeks, value: 52}
  ETHUSDT:
    global:
      - period: {unit: weeks, value: 52}
`), 0o644))

	out, err := execute(t, "check", "--config", cfgPath)
	require.Error(t, err)

	var heads []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "FAIL") {
			heads = append(heads, line)
		}
	}
	require.Len(t, heads, 4)
	assert.True(t, strings.HasPrefix(heads[0], "FAIL BTCUSDT"), heads[0])
	assert.True(t, strings.HasPrefix(heads[1], "FAIL DOGEUSDT"), heads[1])
	assert.Equal(t, "OK   ETHUSDT (2 rules)", heads[2])
	assert.Equal(t, "OK   SOLUSDT (2 rules)", heads[3])
	assert.Contains(t, err.Error(), "BTCUSDT")
	assert.Contains(t, err.Error(), "DOGEUSDT")
}

func TestInspect(t *testing.T) {
	dir, cfgPath := writeFiles(t, "      - period: {unit: hours, value: 1}\n")

	out, err := execute(t, "inspect", "BTCUSDT", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no snapshot")

	st, err := snapshot.NewFileStore(filepath.Join(dir, "data"))
	require.NoError(t, err)
	h := history.New[tracker.Record](tracker.DefaultCapacity)
	for ts := uint64(1); ts <= 3; ts++ {
		h.Insert(history.NewEntry(ts, tracker.Record{
			Size:  decimal.NewFromInt(int64(ts)),
			Price: decimal.NewFromInt(100),
			Side:  tracker.SideBuy,
			ID:    tracker.NewID(ts),
		}))
	}
	data, err := h.Snapshot()
	require.NoError(t, err)
	require.NoError(t, st.Save("BTCUSDT", data))

	out, err = execute(t, "inspect", "BTCUSDT", "--config", cfgPath, "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT: 3 entries")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2\tBUY\t2\t100\t"))
}
