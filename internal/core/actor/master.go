package actor

import (
	"errors"
	"fmt"
	"time"

	adactor "github.com/berfenger/smartess/internal/adapter/actor"
	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/port"
	. "github.com/berfenger/smartess/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const healthCheckTimeout = 500 * time.Millisecond

type VictronActorProvider func() *adactor.VictronActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type TariffActorProvider func() *TariffActor

// MasterDeps wires the children of the master actor. MQTT is only started
// when enabled in the config; Recorder, Observer and Clock are optional.
type MasterDeps struct {
	Victron  VictronActorProvider
	Tariff   TariffActorProvider
	MQTT     MQTTActorProvider
	Recorder port.DispatchRecorder
	Observer port.DispatchObserver
	Clock    func() time.Time
}

type MasterOfPuppetsActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *Stash
	deps     MasterDeps

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	victronActor       *actor.PID
	tariffActor        *actor.PID
	dispatchActor      *actor.PID
	mqttActor          *actor.PID
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected  []string
	healthy   map[string]bool
	received  int
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(config *config.Config, deps MasterDeps, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:      config,
		deps:        deps,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream: &eventstream.EventStream{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// EventStream carries every sensor update published by the children.
func (state *MasterOfPuppetsActor) EventStream() *eventstream.EventStream {
	return state.eventStream
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		victronActorPID, err := state.startVictronActor(ctx)
		if err != nil {
			panic(err)
		}
		state.victronActor = victronActorPID

		tariffActorPID, err := state.startTariffActor(ctx)
		if err != nil {
			panic(err)
		}
		state.tariffActor = tariffActorPID

		if state.config.MQTT.Enabled && state.deps.MQTT != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
		}

		dispatchActorPID, err := state.startDispatchActor(ctx)
		if err != nil {
			panic(err)
		}
		state.dispatchActor = dispatchActorPID

		if state.mqttActor != nil && state.config.MQTT.HADiscovery {
			if _, err := state.startHADiscoveryActor(ctx); err != nil {
				panic(err)
			}
		}

		state.currentHealthCheck = newHealthCheckResult(state.healthTargets())

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, id := range state.currentHealthCheck.expected {
			id := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.child(id), domain.ActorHealthRequest{}, healthCheckTimeout), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the dispatch actor
		if msg.Command != nil {
			state.logger.Debug("master@default parsedCommand", zap.String("device", msg.Command.DeviceId), zap.String("payload", msg.Command.Payload))
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				ctx.Send(state.dispatchActor, cmd)
			}
		}
	case domain.GetScheduleRequest, domain.ReloadTariffRequest:
		ctx.Forward(state.tariffActor)
	case domain.GetDispatchStateRequest, domain.DispatchHoldRequest, domain.DispatchDryRunRequest:
		ctx.Forward(state.dispatchActor)
	case *actor.Terminated:
		// if the ESS link is gone for good, terminate
		if msg.Who.Id == state.victronActor.Id {
			state.logger.Error("master@default victron terminated")
			panic(errors.New("victron terminated"))
		}
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) healthTargets() []string {
	targets := []string{domain.ACTOR_ID_VICTRON, domain.ACTOR_ID_TARIFF, domain.ACTOR_ID_DISPATCH}
	if state.mqttActor != nil {
		targets = append(targets, domain.ACTOR_ID_MQTT)
	}
	return targets
}

func (state *MasterOfPuppetsActor) child(id string) *actor.PID {
	switch id {
	case domain.ACTOR_ID_VICTRON:
		return state.victronActor
	case domain.ACTOR_ID_TARIFF:
		return state.tariffActor
	case domain.ACTOR_ID_DISPATCH:
		return state.dispatchActor
	case domain.ACTOR_ID_MQTT:
		return state.mqttActor
	}
	return nil
}

func (state *MasterOfPuppetsActor) restartDecider(child string) actor.DeciderFunc {
	return func(reason interface{}) actor.Directive {
		state.logger.Warn("master: child failure", zap.String("child", child), zap.Any("reason", reason))
		return actor.RestartDirective
	}
}

func (state *MasterOfPuppetsActor) startVictronActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	victronProps := actor.PropsFromProducer(func() actor.Actor {
		return state.deps.Victron()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(victronProps, domain.ACTOR_ID_VICTRON)
}

func (state *MasterOfPuppetsActor) startTariffActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, state.restartDecider(domain.ACTOR_ID_TARIFF))

	tariffProps := actor.PropsFromProducer(func() actor.Actor {
		return state.deps.Tariff()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(tariffProps, domain.ACTOR_ID_TARIFF)
}

func (state *MasterOfPuppetsActor) startDispatchActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, state.restartDecider(domain.ACTOR_ID_DISPATCH))

	deps := DispatchActorDeps{
		Victron:     state.victronActor,
		Tariff:      state.tariffActor,
		EventStream: state.eventStream,
		Recorder:    state.deps.Recorder,
		Observer:    state.deps.Observer,
		Clock:       state.deps.Clock,
	}
	dispatchProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDispatchActor(state.config, deps, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(dispatchProps, domain.ACTOR_ID_DISPATCH)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.deps.MQTT(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, state.restartDecider(domain.ACTOR_ID_HA_DISCOVERY))

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func newHealthCheckResult(expected []string) healthCheckResult {
	return healthCheckResult{
		expected: expected,
		healthy:  make(map[string]bool, len(expected)),
	}
}

func (state *healthCheckResult) reset() {
	clear(state.healthy)
	state.received = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.received >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) unhealthy() []string {
	var ids []string
	for _, id := range state.expected {
		if !state.healthy[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if !resp.Healthy {
		resp.State = fmt.Sprintf("unhealthy: %v", state.unhealthy())
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
