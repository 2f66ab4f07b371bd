package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/util/actorutil"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type victronFixture struct {
	system *actor.ActorSystem
	pid    *actor.PID
	vebus  *victron_modbus.TestVEBusReader
	ess    *victron_modbus.TestESSWriter
}

func startVictronActor(t *testing.T, battery victron_modbus.BatteryModbusReader) victronFixture {
	t.Helper()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	vebus := victron_modbus.CreateTestVEBusReader()
	ess := victron_modbus.CreateTestESSWriter()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewVictronActor(vebus, ess, battery, victron_modbus.L2, logger)
	})
	pid := as.Root.Spawn(props)
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return victronFixture{system: as, pid: pid, vebus: vebus, ess: ess}
}

func TestVictronActorTelemetry(t *testing.T) {

	assert := assert.New(t)
	f := startVictronActor(t, nil)

	result, err := f.system.Root.RequestFuture(f.pid, domain.GetTelemetryRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.GetTelemetryResponse)

	require.False(t, resp.HasResponseError())
	assert.Equal(victron_modbus.L2, resp.Telemetry.Line, "configured line")
	assert.Equal(64.5, resp.Telemetry.SocPercent)
	assert.Equal(1450.0, resp.Telemetry.Output.PowerWatt)
}

func TestVictronActorTelemetryError(t *testing.T) {

	f := startVictronActor(t, nil)
	f.vebus.SetErr(errors.New("gx unreachable"))

	result, err := f.system.Root.RequestFuture(f.pid, domain.GetTelemetryRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.GetTelemetryResponse)

	assert.True(t, resp.HasResponseError())
	assert.Nil(t, resp.Telemetry)

	// actor keeps serving after a failed read
	result, err = f.system.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, result.(domain.ActorHealthResponse).Healthy)
}

func TestVictronActorApplyDispatch(t *testing.T) {

	assert := assert.New(t)
	f := startVictronActor(t, nil)

	req := domain.ApplyDispatchRequest{
		Command: domain.DispatchCommand{SetPointWatt: 1250, DisableCharge: true},
	}
	result, err := f.system.Root.RequestFuture(f.pid, req, 5*time.Second).Result()
	require.NoError(t, err)
	assert.False(result.(domain.ApplyDispatchResponse).HasResponseError())

	applied := f.ess.Applied()
	require.Len(t, applied, 1)
	assert.Equal(victron_modbus.ESSCommand{
		Line:          victron_modbus.L2,
		SetPointWatt:  1250,
		DisableCharge: true,
		DisableFeedIn: false,
	}, applied[0])
}

func TestVictronActorSerializesRequests(t *testing.T) {

	f := startVictronActor(t, nil)

	futures := make([]*actor.Future, 0, 5)
	for i := 0; i < 5; i++ {
		futures = append(futures, f.system.Root.RequestFuture(f.pid, domain.ApplyDispatchRequest{
			Command: domain.DispatchCommand{SetPointWatt: int16(100 * (i + 1))},
		}, 5*time.Second))
	}
	for _, fut := range futures {
		_, err := fut.Result()
		require.NoError(t, err)
	}

	applied := f.ess.Applied()
	require.Len(t, applied, 5)
	for i, cmd := range applied {
		assert.Equal(t, int16(100*(i+1)), cmd.SetPointWatt, "arrival order")
	}
}

func TestVictronActorBatteryCapacity(t *testing.T) {

	f := startVictronActor(t, victron_modbus.TestBatteryReader{CapacityAh: 200})
	result, err := f.system.Root.RequestFuture(f.pid, domain.GetBatteryCapacityRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 200.0, result.(domain.GetBatteryCapacityResponse).CapacityAh)

	f = startVictronActor(t, nil)
	result, err = f.system.Root.RequestFuture(f.pid, domain.GetBatteryCapacityRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, result.(domain.GetBatteryCapacityResponse).GetResponseError(), ErrNoBatteryReader)
}

func TestVictronActorAlarms(t *testing.T) {

	f := startVictronActor(t, nil)
	f.vebus.SetAlarms([]victron_modbus.Alarm{
		{Kind: victron_modbus.AlarmGridLost, State: victron_modbus.AlarmStateAlarm},
	})

	result, err := f.system.Root.RequestFuture(f.pid, domain.GetAlarmsRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.GetAlarmsResponse)
	require.False(t, resp.HasResponseError())
	require.Len(t, resp.Alarms, 1)
	assert.Equal(t, "grid_lost", resp.Alarms[0].Name())
}
