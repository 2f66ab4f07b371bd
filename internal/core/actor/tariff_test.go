package actor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/service"
	"github.com/berfenger/smartess/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTariffActor(t *testing.T, ctrl *service.DispatchController, loader ControllerLoader, cron string) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewTariffActor(ctrl, loader, cron, logger)
	}))
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return as, pid
}

func TestTariffActorSchedule(t *testing.T) {

	assert := assert.New(t)
	as, pid := startTariffActor(t, testController(t, testTable()), nil, "")

	result, err := as.Root.RequestFuture(pid, domain.GetScheduleRequest{At: time.Date(2022, 4, 19, 10, 0, 0, 0, time.UTC)}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.GetScheduleResponse)

	require.False(t, resp.HasResponseError())
	// one occurrence per rate and weekday
	require.Len(t, resp.Schedule, 21)
	assert.Equal("Day", resp.Schedule[0].Rate.Name)
	assert.Equal("Peak", resp.Schedule[1].Rate.Name)
	assert.Equal("Night", resp.NextCharge.Rate.Name)
	assert.Equal(0.9, resp.DepthOfDischarge)
	assert.Equal(time.UTC, resp.Location)
}

func TestTariffActorComputeDispatch(t *testing.T) {

	as, pid := startTariffActor(t, testController(t, testTable()), nil, "")

	req := domain.ComputeDispatchRequest{
		At:    nightTime,
		Input: domain.ControllerInputState{SystemLoad: 1000, Soc: 0.5, Capacity: 10},
	}
	result, err := as.Root.RequestFuture(pid, req, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ComputeDispatchResponse)

	require.False(t, resp.HasResponseError())
	assert.Equal(t, domain.RegimeCharging, resp.Output.Regime)
	assert.Equal(t, 6000.0, resp.Output.GridLoad)
}

func TestTariffActorNoRates(t *testing.T) {

	as, pid := startTariffActor(t, testController(t, domain.TariffTable{DepthOfDischarge: 0.8}), nil, "")

	result, err := as.Root.RequestFuture(pid, domain.ComputeDispatchRequest{At: nightTime}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ComputeDispatchResponse)
	assert.ErrorIs(t, resp.GetResponseError(), domain.ErrConfiguration)
}

func TestTariffActorReload(t *testing.T) {

	errBroken := errors.New("broken tariff file")
	var calls atomic.Int32
	loader := func() (*service.DispatchController, error) {
		if calls.Add(1) == 1 {
			table := testTable()
			table.Rates = table.Rates[2:]
			return testController(t, table), nil
		}
		return nil, errBroken
	}
	as, pid := startTariffActor(t, testController(t, testTable()), loader, "")

	result, err := as.Root.RequestFuture(pid, domain.ReloadTariffRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ReloadTariffResponse)
	require.False(t, resp.HasResponseError())
	assert.Equal(t, 1, resp.Rates)

	result, err = as.Root.RequestFuture(pid, domain.ReloadTariffRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp = result.(domain.ReloadTariffResponse)
	assert.ErrorIs(t, resp.GetResponseError(), errBroken)
	assert.Equal(t, 1, resp.Rates, "previous table kept")

	result, err = as.Root.RequestFuture(pid, domain.GetScheduleRequest{At: nightTime}, 5*time.Second).Result()
	require.NoError(t, err)
	schedule := result.(domain.GetScheduleResponse).Schedule
	require.Len(t, schedule, 7)
	for _, e := range schedule {
		assert.Equal(t, "Night", e.Rate.Name)
	}
}

func TestTariffActorCronReload(t *testing.T) {

	var calls atomic.Int32
	loader := func() (*service.DispatchController, error) {
		calls.Add(1)
		return testController(t, testTable()), nil
	}
	// every second
	as, pid := startTariffActor(t, testController(t, testTable()), loader, "* * * * * *")

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 5*time.Second, 100*time.Millisecond)

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, result.(domain.ActorHealthResponse).Healthy)
}

func TestTariffActorStartsFromLoader(t *testing.T) {

	loader := func() (*service.DispatchController, error) {
		return testController(t, testTable()), nil
	}
	as, pid := startTariffActor(t, nil, loader, "")

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, result.(domain.ActorHealthResponse).Healthy)
}

func TestTariffActorRestartStopsReloadJob(t *testing.T) {

	var calls atomic.Int32
	loader := func() (*service.DispatchController, error) {
		if calls.Add(1) == 1 {
			panic("loader failure")
		}
		return testController(t, testTable()), nil
	}
	// every second
	as, pid := startTariffActor(t, testController(t, testTable()), loader, "* * * * * *")

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond, "reloads resume after the restart")

	start := calls.Load()
	time.Sleep(4 * time.Second)
	reloads := calls.Load() - start

	// one job per second; a leaked scheduler doubles it
	assert.GreaterOrEqual(t, reloads, int32(2))
	assert.LessOrEqual(t, reloads, int32(6))

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, result.(domain.ActorHealthResponse).Healthy)
}
