package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeRateTable() TariffTable {
	return TariffTable{
		DepthOfDischarge: 0.9,
		Rates: []Rate{
			{Name: "Day", Windows: []RateWindow{window("09:00", "16:59", AllWeekdays...)}, Discharge: DischargeSpread{}, Charge: ChargeDisabled{}},
			{Name: "Peak", Windows: []RateWindow{window("17:00", "18:59", AllWeekdays...)}, Discharge: DischargeProportionalToLoad{Fraction: 1}, Charge: ChargeDisabled{}},
			{Name: "Night", Windows: []RateWindow{window("23:00", "08:59", AllWeekdays...)}, Discharge: DischargeDisabled{}, Charge: ChargeTargetCapacity{Fraction: 1}},
		},
	}
}

func TestTariffTableValid(t *testing.T) {
	assert.NoError(t, threeRateTable().Validate())
	assert.NoError(t, TariffTable{DepthOfDischarge: 0.8}.Validate(), "an empty table is valid")
}

func TestTariffTableDepthOfDischarge(t *testing.T) {
	for _, dod := range []float64{0, -0.1, 1.01} {
		table := threeRateTable()
		table.DepthOfDischarge = dod
		assert.ErrorIs(t, table.Validate(), ErrConfiguration, "dod %v", dod)
	}
}

func TestTariffTableRejectsOverlap(t *testing.T) {
	require := require.New(t)

	table := threeRateTable()
	table.Rates[0].Windows[0].End = mustTimeOfDay("17:00")
	err := table.Validate()
	require.ErrorIs(err, ErrOverlappingWindows)
	require.Contains(err.Error(), "Day")
	require.Contains(err.Error(), "Peak")

	// Sunday late window runs into Monday morning
	table = TariffTable{
		DepthOfDischarge: 1,
		Rates: []Rate{
			{Name: "Late", Windows: []RateWindow{window("23:00", "01:00", Sunday)}},
			{Name: "Early", Windows: []RateWindow{window("00:30", "02:00", Monday)}},
		},
	}
	require.ErrorIs(table.Validate(), ErrOverlappingWindows)

	// same windows on days that never meet
	table.Rates[1].Windows[0].Days = []Weekday{Wednesday}
	require.NoError(table.Validate())
}

func TestTariffTableAllowsOverlapWithinRate(t *testing.T) {
	table := TariffTable{
		DepthOfDischarge: 1,
		Rates: []Rate{
			{Name: "Cheap", Windows: []RateWindow{window("01:00", "04:59", AllWeekdays...), window("03:00", "05:59", Saturday)}},
		},
	}
	assert.NoError(t, table.Validate())
}

func TestTariffTableRateChecks(t *testing.T) {
	table := threeRateTable()
	table.Rates[1].Name = "Day"
	assert.ErrorIs(t, table.Validate(), ErrInvalidRate)

	table = threeRateTable()
	table.Rates[0].Name = ""
	assert.ErrorIs(t, table.Validate(), ErrInvalidRate)

	table = threeRateTable()
	table.Rates[0].Reserve = -1
	assert.ErrorIs(t, table.Validate(), ErrInvalidRate)

	table = threeRateTable()
	table.Rates[1].Discharge = DischargeProportionalToLoad{Fraction: -0.5}
	assert.ErrorIs(t, table.Validate(), ErrInvalidPolicy)

	table = threeRateTable()
	table.Rates[2].Charge = ChargeTargetCapacity{Fraction: 1.5}
	assert.ErrorIs(t, table.Validate(), ErrInvalidPolicy)

	table = threeRateTable()
	table.Rates[2].Windows[0].Days = []Weekday{Weekday(9)}
	assert.ErrorIs(t, table.Validate(), ErrInvalidWeekday)
}

func TestRatePolicies(t *testing.T) {
	r := Rate{Name: "x"}
	assert.False(t, r.ChargeEnabled())
	assert.Equal(t, DischargeDisabled{}, r.EffectiveDischarge())

	r.Charge = ChargeTargetCapacity{Fraction: 0.8, UnitLimit: 3}
	assert.True(t, r.ChargeEnabled())
	assert.Equal(t, "target(0.80)", r.Charge.String())
	assert.Equal(t, "proportional(0.50)", DischargeProportionalToLoad{Fraction: 0.5}.String())
}
