package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/events"
	"github.com/berfenger/smartess/internal/core/port"
	"github.com/berfenger/smartess/internal/core/service"
	. "github.com/berfenger/smartess/internal/util/actorutil"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	dispatchRequestTimeout = 3 * time.Second
	recordTimeout          = 1 * time.Second
	// consecutive failed ticks before the actor reports unhealthy
	maxConsecutiveFailures = 5

	StageTelemetry = "telemetry"
	StageCapacity  = "capacity"
	StageDecision  = "decision"
	StageApply     = "apply"
)

var ErrNoTelemetry = errors.New("no telemetry")

// DispatchActorDeps are the collaborators of the dispatch loop. Recorder and
// Observer are optional.
type DispatchActorDeps struct {
	Victron     *actor.PID
	Tariff      *actor.PID
	EventStream *eventstream.EventStream
	Recorder    port.DispatchRecorder
	Observer    port.DispatchObserver
	Clock       func() time.Time
}

// DispatchActor runs the control loop: read telemetry, ask the tariff actor for
// a decision, write it to the ESS and publish the outcome.
type DispatchActor struct {
	ActorWithStates
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc
	stash      *Stash
	config    *config.Config
	deps      DispatchActorDeps

	hold       bool
	dryRun     bool
	ticks      uint
	failures   int
	last       *domain.DispatchRecord
	lastOutput *domain.ControllerOutputState

	logger *zap.Logger
}

type dispatchTick struct {
}

// dispatchCycle carries the data of one tick across the waiting states.
type dispatchCycle struct {
	startedAt time.Time
	at        time.Time
	telemetry *victron_modbus.VEBusTelemetry
	input     domain.ControllerInputState
	output    *domain.ControllerOutputState
	command   domain.DispatchCommand
	applied   bool
	stage     string
	err       error
}

func NewDispatchActor(config *config.Config, deps DispatchActorDeps, logger *zap.Logger) *DispatchActor {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	act := &DispatchActor{
		config: config,
		deps:   deps,
		dryRun: config.Dispatch.DryRun,
		stash:  &Stash{},
		logger: ActorLogger(domain.ACTOR_ID_DISPATCH, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(DStartingState{
		actor: act,
	})
	return act
}

func (state *DispatchActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type DStartingState struct {
	ActorState
	actor *DispatchActor
}

func (state DStartingState) Name() string {
	return "starting"
}

func (state DStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("dispatch@starting started", zap.Bool("dry_run", state.actor.dryRun))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.publish(events.DispatchSwitchesUpdateEvents(state.actor.hold, state.actor.dryRun))
		ctx.Send(ctx.Self(), dispatchTick{})
		state.actor.Become(DIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting, *actor.Stopping:
		state.actor.stopTicking()
	default:
		state.actor.logger.Debug("dispatch@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type DIdleState struct {
	ActorState
	actor *DispatchActor
}

func (state DIdleState) Name() string {
	return "idle"
}

func (state DIdleState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state.Name()) {
		return
	}
	switch msg := ctx.Message().(type) {
	case dispatchTick:
		state.actor.ticks++
		state.actor.logger.Debug("dispatch@idle: tick", zap.Uint("tick", state.actor.ticks))
		cycle := &dispatchCycle{
			startedAt: time.Now(),
			at:        state.actor.deps.Clock(),
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.deps.Victron, domain.GetTelemetryRequest{}, dispatchRequestTimeout), func(err error) any {
			return domain.GetTelemetryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.BecomeStacked(DWaitingTelemetryState{
			actor: state.actor,
			cycle: cycle,
		})
	default:
		state.actor.logger.Debug("dispatch@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Waiting telemetry state

type DWaitingTelemetryState struct {
	ActorState
	actor *DispatchActor
	cycle *dispatchCycle
}

func (state DWaitingTelemetryState) Name() string {
	return "waitingTelemetry"
}

func (state DWaitingTelemetryState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state.Name()) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.GetTelemetryResponse:
		if msg.HasResponseError() || msg.Telemetry == nil {
			err := msg.GetResponseError()
			if err == nil {
				err = ErrNoTelemetry
			}
			state.actor.fail(ctx, state.cycle, StageTelemetry, err)
			return
		}
		t := msg.Telemetry
		state.cycle.telemetry = t
		state.cycle.input = domain.ControllerInputState{
			SystemLoad: t.Output.PowerWatt,
			Soc:        t.SocPercent / 100,
			Capacity:   state.actor.config.Battery.CapacityKWh,
			Voltage:    t.BatteryVoltage,
		}
		if state.actor.config.Battery.ReadCapacity {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.deps.Victron, domain.GetBatteryCapacityRequest{}, dispatchRequestTimeout), func(err error) any {
				return domain.GetBatteryCapacityResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
			state.actor.next(DWaitingCapacityState{
				actor: state.actor,
				cycle: state.cycle,
			})
			return
		}
		state.actor.requestDecision(ctx, state.cycle)
	default:
		state.actor.logger.Debug("dispatch@waitingTelemetry: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting capacity state

type DWaitingCapacityState struct {
	ActorState
	actor *DispatchActor
	cycle *dispatchCycle
}

func (state DWaitingCapacityState) Name() string {
	return "waitingCapacity"
}

func (state DWaitingCapacityState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state.Name()) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryCapacityResponse:
		if msg.HasResponseError() {
			if state.cycle.input.Capacity <= 0 {
				state.actor.fail(ctx, state.cycle, StageCapacity, msg.GetResponseError())
				return
			}
			state.actor.logger.Warn("dispatch@waitingCapacity: using configured capacity", zap.Error(msg.GetResponseError()))
		} else {
			// Ah at the present battery voltage
			state.cycle.input.Capacity = msg.CapacityAh * state.cycle.input.Voltage / 1000
		}
		state.actor.requestDecision(ctx, state.cycle)
	default:
		state.actor.logger.Debug("dispatch@waitingCapacity: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting decision state

type DWaitingDecisionState struct {
	ActorState
	actor *DispatchActor
	cycle *dispatchCycle
}

func (state DWaitingDecisionState) Name() string {
	return "waitingDecision"
}

func (state DWaitingDecisionState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state.Name()) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.ComputeDispatchResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, state.cycle, StageDecision, msg.GetResponseError())
			return
		}
		out := msg.Output
		state.cycle.output = &out
		state.cycle.command = service.ActuatorCommand(out, state.actor.config.Dispatch.MinSetPointWatt)

		if state.actor.hold || state.actor.dryRun {
			state.actor.logger.Info("dispatch@waitingDecision: not applied",
				zap.Bool("hold", state.actor.hold), zap.Bool("dry_run", state.actor.dryRun),
				zap.Int16("set_point", state.cycle.command.SetPointWatt))
			state.actor.finish(ctx, state.cycle)
			return
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.deps.Victron, domain.ApplyDispatchRequest{Command: state.cycle.command}, dispatchRequestTimeout), func(err error) any {
			return domain.ApplyDispatchResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.next(DWaitingApplyState{
			actor: state.actor,
			cycle: state.cycle,
		})
	default:
		state.actor.logger.Debug("dispatch@waitingDecision: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting apply state

type DWaitingApplyState struct {
	ActorState
	actor *DispatchActor
	cycle *dispatchCycle
}

func (state DWaitingApplyState) Name() string {
	return "waitingApply"
}

func (state DWaitingApplyState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state.Name()) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.ApplyDispatchResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, state.cycle, StageApply, msg.GetResponseError())
			return
		}
		state.cycle.applied = true
		state.actor.finish(ctx, state.cycle)
	default:
		state.actor.logger.Debug("dispatch@waitingApply: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// receiveCommon answers the messages every state serves. It reports whether
// the message was consumed.
func (a *DispatchActor) receiveCommon(ctx actor.Context, stateName string) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		a.logger.Debug("dispatch@" + stateName + ": ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DISPATCH,
			Healthy: a.failures < maxConsecutiveFailures,
			State:   stateName,
		})
	case domain.GetDispatchStateRequest:
		resp := domain.GetDispatchStateResponse{
			Hold:   a.hold,
			DryRun: a.dryRun,
		}
		if a.last != nil {
			last := *a.last
			resp.Last = &last
		}
		if a.lastOutput != nil {
			out := *a.lastOutput
			resp.Output = &out
		}
		ForRequest(msg).Respond(ctx, resp)
	case *actor.Restarting, *actor.Stopping:
		// the next instance starts its own tick loop
		a.stopTicking()
	case domain.DispatchControlRequest:
		a.handleControl(ctx, msg)
	case domain.GetAlarmsResponse:
		if msg.HasResponseError() {
			a.logger.Warn("dispatch@"+stateName+": alarms read failed", zap.Error(msg.GetResponseError()))
			return true
		}
		a.publish(events.AlarmsToUpdateEvents(msg.Alarms))
	default:
		return false
	}
	return true
}

func (a *DispatchActor) handleControl(ctx actor.Context, cmd domain.DispatchControlRequest) {
	switch c := cmd.(type) {
	case domain.DispatchHoldRequest:
		changed := a.hold != c.Enable
		a.hold = c.Enable
		a.logger.Info("dispatch: hold", zap.Bool("enable", c.Enable), zap.Bool("changed", changed))
		a.publish([]domain.SensorUpdateEvent{events.DispatchHoldSwitchUpdateEvent(a.hold)})
		if ctx.Sender() != nil || c.ReplyTo() != nil {
			ForRequest(c).Respond(ctx, domain.DispatchHoldResponse{Changed: changed})
		}
	case domain.DispatchDryRunRequest:
		changed := a.dryRun != c.Enable
		a.dryRun = c.Enable
		a.logger.Info("dispatch: dry run", zap.Bool("enable", c.Enable), zap.Bool("changed", changed))
		a.publish([]domain.SensorUpdateEvent{events.DispatchDryRunSwitchUpdateEvent(a.dryRun)})
		if ctx.Sender() != nil || c.ReplyTo() != nil {
			ForRequest(c).Respond(ctx, domain.DispatchDryRunResponse{Changed: changed})
		}
	}
}

func (a *DispatchActor) next(state ActorState) {
	a.UnbecomeStacked()
	a.BecomeStacked(state)
}

func (a *DispatchActor) requestDecision(ctx actor.Context, cycle *dispatchCycle) {
	req := domain.ComputeDispatchRequest{
		At:    cycle.at,
		Input: cycle.input,
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.deps.Tariff, req, dispatchRequestTimeout), func(err error) any {
		return domain.ComputeDispatchResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	a.next(DWaitingDecisionState{
		actor: a,
		cycle: cycle,
	})
}

func (a *DispatchActor) fail(ctx actor.Context, cycle *dispatchCycle, stage string, err error) {
	a.logger.Error("dispatch: tick failed", zap.String("stage", stage), zap.Error(err))
	cycle.stage = stage
	cycle.err = err
	if a.deps.Observer != nil {
		a.deps.Observer.ObserveFailure(stage)
	}
	a.finish(ctx, cycle)
}

// finish publishes and records the tick, schedules the next one and returns to idle.
func (a *DispatchActor) finish(ctx actor.Context, cycle *dispatchCycle) {
	rec := cycle.record()

	if cycle.err != nil {
		a.failures++
	} else {
		a.failures = 0
	}

	a.publish(events.TelemetryToUpdateEvents(cycle.telemetry))
	// switches are republished so late MQTT subscribers catch up
	a.publish(events.DispatchSwitchesUpdateEvents(a.hold, a.dryRun))
	if cycle.output != nil {
		a.publish(events.DispatchToUpdateEvents(cycle.input, *cycle.output, cycle.command))
		a.lastOutput = cycle.output
	}
	a.last = &rec

	if a.deps.Recorder != nil {
		rctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := a.deps.Recorder.Record(rctx, rec); err != nil {
			a.logger.Warn("dispatch: history record failed", zap.Error(err))
		}
		cancel()
	}
	if a.deps.Observer != nil {
		a.deps.Observer.ObserveDispatch(rec, cycle.output, time.Since(cycle.startedAt))
	}

	if n := a.config.Dispatch.AlarmPollTicks; n > 0 && a.ticks%n == 0 {
		ctx.Request(a.deps.Victron, domain.GetAlarmsRequest{})
	}

	a.cancelTick = a.scheduler.RequestOnce(a.config.Dispatch.PollInterval(), ctx.Self(), dispatchTick{})

	a.UnbecomeStacked()
	a.stash.UnstashAll(ctx)
}

func (a *DispatchActor) stopTicking() {
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
}

func (a *DispatchActor) publish(evs []domain.SensorUpdateEvent) {
	if a.deps.EventStream == nil {
		return
	}
	for _, ev := range evs {
		a.deps.EventStream.Publish(ev)
	}
}

func (c *dispatchCycle) record() domain.DispatchRecord {
	rec := domain.DispatchRecord{
		Time:         c.at,
		SystemLoad:   c.input.SystemLoad,
		Soc:          c.input.Soc,
		SetPointWatt: c.command.SetPointWatt,
		Applied:      c.applied,
	}
	if c.output != nil {
		rec.Regime = c.output.Regime
		rec.GridLoad = c.output.GridLoad
		rec.BatteryLoad = c.output.BatteryLoad
		rec.UsingCapacity = c.output.UsingCapacity
		rec.Reserve = c.output.ReserveCapacity
		if !c.output.CurrentRate.IsZero() {
			rec.Rate = c.output.CurrentRate.Rate.Name
		}
		if !c.output.NextCharge.IsZero() {
			rec.NextCharge = c.output.NextCharge.Start
		}
	}
	if c.err != nil {
		rec.Error = fmt.Sprintf("%s: %v", c.stage, c.err)
	}
	return rec
}
