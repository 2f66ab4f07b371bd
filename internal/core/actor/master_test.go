package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/smartess/internal/adapter/actor"
	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/mqtt"
	"github.com/berfenger/smartess/internal/util"
	"github.com/berfenger/smartess/internal/util/actorutil"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type masterFixture struct {
	system   *actor.ActorSystem
	pid      *actor.PID
	ess      *victron_modbus.TestESSWriter
	recorder *memoryRecorder
	publish  *adactor.PublishRecorder
}

func startMaster(t *testing.T, cfg config.Config) masterFixture {
	t.Helper()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	vebus := victron_modbus.CreateTestVEBusReader()
	f := masterFixture{
		system:   as,
		ess:      victron_modbus.CreateTestESSWriter(),
		recorder: &memoryRecorder{},
		publish:  &adactor.PublishRecorder{},
	}
	ctrl := testController(t, testTable())

	deps := MasterDeps{
		Victron: func() *adactor.VictronActor {
			return adactor.NewVictronActor(vebus, f.ess, nil, victron_modbus.L1, logger)
		},
		Tariff: func() *TariffActor {
			return NewTariffActor(ctrl, nil, "", logger)
		},
		MQTT: func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, f.publish, logger)
		},
		Recorder: f.recorder,
		Clock:    fixedClock(nightTime),
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(&cfg, deps, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	f.pid = pid

	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return f
}

func (f masterFixture) health(t *testing.T) domain.ActorHealthResponse {
	t.Helper()
	res, err := f.system.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	return healthResp
}

func TestMasterActor(t *testing.T) {

	f := startMaster(t, util.LoadTestConfig())

	require.Eventually(t, func() bool {
		return f.health(t).Healthy
	}, 10*time.Second, 200*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(f.ess.Applied()) > 0
	}, 10*time.Second, 50*time.Millisecond)

	res, err := f.system.Root.RequestFuture(f.pid, domain.GetScheduleRequest{At: nightTime}, 5*time.Second).Result()
	require.NoError(t, err)
	schedule := res.(domain.GetScheduleResponse)
	assert.Equal(t, "Night", schedule.NextCharge.Rate.Name)

	assert.Zero(t, f.publish.Count(), "mqtt disabled")
}

func TestMasterActorWithMQTT(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enabled = true
	cfg.MQTT.HADiscovery = true
	f := startMaster(t, cfg)

	require.Eventually(t, func() bool {
		return f.health(t).Healthy
	}, 10*time.Second, 200*time.Millisecond)

	sensors, switches := DiscoveryEntities(&cfg)
	require.Eventually(t, func() bool {
		return f.publish.DiscoveryEntities() == len(sensors)+len(switches)
	}, 10*time.Second, 50*time.Millisecond)

	// operator switch from MQTT
	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_DISPATCH_HOLD,
		Command:  "command",
		Payload:  mqtt.MQTT_PAYLOAD_ON,
	}})

	require.Eventually(t, func() bool {
		res, err := f.system.Root.RequestFuture(f.pid, domain.GetDispatchStateRequest{}, 5*time.Second).Result()
		return err == nil && res.(domain.GetDispatchStateResponse).Hold
	}, 10*time.Second, 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.publish.Count() > 0
	}, 10*time.Second, 50*time.Millisecond, "dispatch events reach mqtt")

	res, err := f.system.Root.RequestFuture(f.pid, domain.DispatchDryRunRequest{Enable: true}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.DispatchDryRunResponse).Changed)
}
