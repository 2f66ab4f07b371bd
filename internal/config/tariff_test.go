package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTariff = `
depth_of_discharge: 0.9
rates:
  - name: Day
    unit_cost: 0.145
    reserve: 1.5
    windows:
      - start: "09:00"
        end: "16:59"
        days: [weekdays]
      - start: "09:00"
        end: "22:59"
        days: [sat, sun]
    discharge:
      mode: spread
  - name: Peak
    unit_cost: "0.31"
    windows:
      - start: "17:00"
        end: "22:59"
        days: weekdays
    discharge:
      mode: proportional
      fraction: 0.75
  - name: Night
    unit_cost: 0.07
    windows:
      - start: "23:00"
        end: "08:59"
    charge:
      mode: target_capacity
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTariffFile(t *testing.T) {
	require := require.New(t)

	table, err := LoadTariffFile(writeFile(t, "tariff.yaml", sampleTariff))
	require.NoError(err)
	require.Equal(0.9, table.DepthOfDischarge)
	require.Len(table.Rates, 3)

	day := table.Rates[0]
	require.Equal("Day", day.Name)
	require.True(decimal.RequireFromString("0.145").Equal(day.UnitCost))
	require.Equal(1.5, day.Reserve)
	require.Len(day.Windows, 2)
	require.Equal([]domain.Weekday{domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday, domain.Friday}, day.Windows[0].Days)
	require.Equal([]domain.Weekday{domain.Saturday, domain.Sunday}, day.Windows[1].Days)
	require.Equal("22:59", day.Windows[1].End.String())
	require.Equal(domain.DischargeSpread{}, day.Discharge)
	require.Equal(domain.ChargeDisabled{}, day.Charge)

	peak := table.Rates[1]
	require.True(decimal.RequireFromString("0.31").Equal(peak.UnitCost))
	require.Len(peak.Windows[0].Days, 5)
	require.Equal(domain.DischargeProportionalToLoad{Fraction: 0.75}, peak.Discharge)

	night := table.Rates[2]
	require.Equal(domain.AllWeekdays, night.Windows[0].Days)
	require.Equal(domain.ChargeTargetCapacity{Fraction: 1}, night.Charge)
	require.Equal(domain.DischargeDisabled{}, night.Discharge)
}

func TestLoadTariffFileEmptyDays(t *testing.T) {
	content := `
rates:
  - name: Day
    windows:
      - start: "09:00"
        end: "16:59"
        days: []
    discharge:
      mode: spread
  - name: Night
    windows:
      - start: "23:00"
        end: "08:59"
    charge:
      mode: target_capacity
`
	table, err := LoadTariffFile(writeFile(t, "tariff.yaml", content))
	require.NoError(t, err)
	require.Len(t, table.Rates, 2)

	day := table.Rates[0].Windows[0]
	assert.Empty(t, day.Days, "an empty list is kept empty")
	assert.Empty(t, day.Resolve(time.Date(2022, 4, 18, 8, 0, 0, 0, time.UTC), time.UTC))

	assert.Equal(t, domain.AllWeekdays, table.Rates[1].Windows[0].Days, "no days key means every day")
}

func TestLoadTariffFileJSON(t *testing.T) {
	content := `{
  "rates": [
    {"name": "Night", "windows": [{"start": "0:00", "end": "6:59", "days": ["all"]}],
     "charge": {"mode": "target", "fraction": 0.8, "unit_limit": 3000}}
  ]
}`
	table, err := LoadTariffFile(writeFile(t, "tariff.json", content))
	require.NoError(t, err)
	assert.Equal(t, DefaultDepthOfDischarge, table.DepthOfDischarge)
	require.Len(t, table.Rates, 1)
	assert.Equal(t, domain.ChargeTargetCapacity{Fraction: 0.8, UnitLimit: 3000}, table.Rates[0].Charge)
	assert.True(t, table.Rates[0].UnitCost.IsZero())
}

func TestLoadTariffFileCreatesPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tariff.yaml")

	table, err := LoadTariffFile(path)
	require.NoError(t, err)
	assert.Empty(t, table.Rates)
	assert.Equal(t, DefaultDepthOfDischarge, table.DepthOfDischarge)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rates: []\n", string(content))

	// second load reads the placeholder back
	_, err = LoadTariffFile(path)
	assert.NoError(t, err)
}

func TestReadTariffFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")

	_, err := ReadTariffFile(path)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, path)
}

func TestLoadTariffFileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		err     error
	}{
		{"bad time", `
rates:
  - name: A
    windows: [{start: "25:00", end: "26:00"}]
`, domain.ErrInvalidTimeOfDay},
		{"bad day", `
rates:
  - name: A
    windows: [{start: "01:00", end: "02:00", days: [someday]}]
`, domain.ErrInvalidWeekday},
		{"bad discharge", `
rates:
  - name: A
    discharge: {mode: everything}
`, domain.ErrInvalidPolicy},
		{"bad charge", `
rates:
  - name: A
    charge: {mode: always}
`, domain.ErrInvalidPolicy},
		{"charge above full", `
rates:
  - name: A
    charge: {mode: target_capacity, fraction: 1.5}
`, domain.ErrInvalidPolicy},
		{"overlap", `
rates:
  - name: A
    windows: [{start: "01:00", end: "03:00"}]
  - name: B
    windows: [{start: "02:00", end: "04:00", days: [mon]}]
`, domain.ErrOverlappingWindows},
		{"bad depth of discharge", `
depth_of_discharge: 1.2
rates: []
`, domain.ErrConfiguration},
		{"duplicated name", `
rates:
  - name: A
  - name: A
`, domain.ErrInvalidRate},
		{"bad unit cost", `
rates:
  - name: A
    unit_cost: cheap
`, domain.ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTariffFile(writeFile(t, "tariff.yaml", tc.content))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
