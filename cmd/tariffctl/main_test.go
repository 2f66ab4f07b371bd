package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/history"
	"github.com/berfenger/smartess/internal/server"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tariff = `
depth_of_discharge: 0.9
rates:
  - name: Day
    windows:
      - start: "09:00"
        end: "16:59"
    discharge:
      mode: spread
  - name: Peak
    reserve: 1
    windows:
      - start: "17:00"
        end: "22:59"
    discharge:
      mode: proportional
      fraction: 1
  - name: Night
    windows:
      - start: "23:00"
        end: "08:59"
    charge:
      mode: target_capacity
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tariffFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tariff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tariff), 0o644))
	return path
}

func TestScheduleCommand(t *testing.T) {

	out, err := run(t, "schedule", "--tariff", tariffFile(t), "--timezone", "UTC", "--at", "2022-04-19T10:00:00Z", "--json")
	require.NoError(t, err)

	var dto server.ScheduleDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	require.Len(t, dto.Entries, 21)
	assert.Equal(t, "Day", dto.Entries[0].Rate)
	assert.True(t, dto.Entries[0].ActiveAtQuery)
	require.NotNil(t, dto.NextCharge)
	assert.Equal(t, time.Date(2022, 4, 19, 23, 0, 0, 0, time.UTC), dto.NextCharge.Start.UTC())

	out, err = run(t, "schedule", "--tariff", tariffFile(t), "--timezone", "UTC", "--at", "2022-04-19T10:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Day *")
	assert.Contains(t, out, "next charge: Night at 2022-04-19T23:00:00Z")
}

func TestDispatchCommand(t *testing.T) {

	out, err := run(t, "dispatch", "--tariff", tariffFile(t), "--timezone", "UTC",
		"--at", "2022-04-19T10:00:00Z", "--soc", "0.645", "--load", "1450", "--capacity", "10", "--json")
	require.NoError(t, err)

	var res struct {
		Decision server.DecisionDTO
		Command  domain.DispatchCommand
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "discharging", res.Decision.Regime)
	assert.InDelta(t, 1.0, res.Decision.ReserveCapacity, 1e-9)
	assert.InDelta(t, 13.0, res.Decision.HoursUntilCharge, 1e-9)
	// 4.45 kWh over 13 h
	assert.Equal(t, int16(1108), res.Command.SetPointWatt)
	assert.True(t, res.Command.DisableCharge)
}

func TestCheckCommand(t *testing.T) {

	out, err := run(t, "check", "--tariff", tariffFile(t), "--timezone", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "3 rates")
	assert.Contains(t, out, "Night: 1 windows, charge target(1.00)")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("depth_of_discharge: 1.5\nrates: []\n"), 0o644))
	_, err = run(t, "check", "--tariff", bad)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	missing := filepath.Join(t.TempDir(), "typo.yaml")
	_, err = run(t, "check", "--tariff", missing)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.NoFileExists(t, missing, "inspection never creates the file")
}

func TestHistoryCommand(t *testing.T) {

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), domain.DispatchRecord{
		Time: time.Date(2022, 4, 19, 2, 0, 0, 0, time.UTC), Regime: domain.RegimeCharging, Rate: "Night", SetPointWatt: 6000, Applied: true,
	}))
	require.NoError(t, store.Close())

	out, err := run(t, "history", "--db", path, "--json")
	require.NoError(t, err)
	var recs []server.DispatchRecordDTO
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "Night", recs[0].Rate)
	assert.Equal(t, int16(6000), recs[0].SetPointWatt)
}
