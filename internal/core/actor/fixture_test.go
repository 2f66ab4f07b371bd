package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/smartess/internal/adapter/actor"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/service"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2022-04-19 is a Tuesday
var nightTime = time.Date(2022, 4, 19, 2, 0, 0, 0, time.UTC)

func tod(s string) domain.TimeOfDay {
	v, err := domain.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return v
}

func everyDay(start, end string) []domain.RateWindow {
	return []domain.RateWindow{{Start: tod(start), End: tod(end), Days: domain.AllWeekdays}}
}

func testTable() domain.TariffTable {
	return domain.TariffTable{
		DepthOfDischarge: 0.9,
		Rates: []domain.Rate{
			{Name: "Day", Windows: everyDay("09:00", "16:59"), Discharge: domain.DischargeSpread{}, Charge: domain.ChargeDisabled{}},
			{Name: "Peak", Windows: everyDay("17:00", "22:59"), Discharge: domain.DischargeProportionalToLoad{Fraction: 1}, Charge: domain.ChargeDisabled{}, Reserve: 1},
			{Name: "Night", Windows: everyDay("23:00", "08:59"), Discharge: domain.DischargeDisabled{}, Charge: domain.ChargeTargetCapacity{Fraction: 1}},
		},
	}
}

func testController(t *testing.T, table domain.TariffTable) *service.DispatchController {
	t.Helper()
	ctrl, err := service.NewDispatchController(table, service.ControllerOptions{
		Location:          time.UTC,
		MaxGridImportWatt: 6000,
	})
	require.NoError(t, err)
	return ctrl
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func victronProducer(vebus *victron_modbus.TestVEBusReader, ess *victron_modbus.TestESSWriter, logger *zap.Logger) actor.Producer {
	return func() actor.Actor {
		return adactor.NewVictronActor(vebus, ess, victron_modbus.TestBatteryReader{CapacityAh: 200}, victron_modbus.L1, logger)
	}
}

// memoryRecorder keeps dispatch records in memory, newest last.
type memoryRecorder struct {
	mu      sync.Mutex
	records []domain.DispatchRecord
}

func (r *memoryRecorder) Record(_ context.Context, rec domain.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) Recent(_ context.Context, limit int) ([]domain.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DispatchRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *memoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *memoryRecorder) Last() domain.DispatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

type countingObserver struct {
	mu       sync.Mutex
	ticks    int
	failures map[string]int
}

func (o *countingObserver) ObserveDispatch(domain.DispatchRecord, *domain.ControllerOutputState, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

func (o *countingObserver) ObserveFailure(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures == nil {
		o.failures = map[string]int{}
	}
	o.failures[stage]++
}

func (o *countingObserver) Failures(stage string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures[stage]
}
