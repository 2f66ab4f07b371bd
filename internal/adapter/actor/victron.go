package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/util/actorutil"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const modbusTaskTimeout = 2 * time.Second

var ErrNoBatteryReader = errors.New("battery capacity reader not configured")

// VictronActor serializes every Modbus exchange with the GX device. Calls run
// off the actor goroutine and later requests are stashed until they finish.
type VictronActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	vebus    victron_modbus.VEBusModbusReader
	ess      victron_modbus.ESSModbusWriter
	battery  victron_modbus.BatteryModbusReader
	line     victron_modbus.Line
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

// NewVictronActor builds the adapter. battery may be nil when the capacity is configured statically.
func NewVictronActor(vebus victron_modbus.VEBusModbusReader, ess victron_modbus.ESSModbusWriter, battery victron_modbus.BatteryModbusReader, line victron_modbus.Line, logger *zap.Logger) *VictronActor {
	act := &VictronActor{
		vebus:    vebus,
		ess:      ess,
		battery:  battery,
		line:     line,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_VICTRON, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *VictronActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *VictronActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("victron@starting started")
		if err := state.vebus.Open(); err != nil {
			panic(err)
		}
		if err := state.ess.Open(); err != nil {
			panic(err)
		}
		if state.battery != nil {
			if err := state.battery.Open(); err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("victron@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *VictronActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("victron@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_VICTRON,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetTelemetryRequest:
		state.logger.Debug("victron@default: GetTelemetryRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		runModbusTask(ctx, sender, state.getTelemetry, func(err error) domain.GetTelemetryResponse {
			return domain.GetTelemetryResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetAlarmsRequest:
		state.logger.Debug("victron@default: GetAlarmsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		runModbusTask(ctx, sender, state.getAlarms, func(err error) domain.GetAlarmsResponse {
			return domain.GetAlarmsResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetBatteryCapacityRequest:
		state.logger.Debug("victron@default: GetBatteryCapacityRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if state.battery == nil {
			ctx.Send(sender, domain.GetBatteryCapacityResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: ErrNoBatteryReader},
			})
			return
		}
		runModbusTask(ctx, sender, state.getBatteryCapacity, func(err error) domain.GetBatteryCapacityResponse {
			return domain.GetBatteryCapacityResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.ApplyDispatchRequest:
		state.logger.Debug("victron@default: ApplyDispatchRequest", zap.Int16("set_point", msg.Command.SetPointWatt))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		cmd := victron_modbus.ESSCommand{
			Line:          state.line,
			SetPointWatt:  msg.Command.SetPointWatt,
			DisableCharge: msg.Command.DisableCharge,
			DisableFeedIn: msg.Command.DisableFeedIn,
		}
		runModbusTask(ctx, sender, func() (*domain.ApplyDispatchResponse, error) {
			if err := state.ess.Apply(cmd); err != nil {
				state.logger.Error("victron@default: apply failed", zap.Error(err))
				return nil, err
			}
			return &domain.ApplyDispatchResponse{}, nil
		}, func(err error) domain.ApplyDispatchResponse {
			return domain.ApplyDispatchResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err}}
		})
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("victron@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *VictronActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("victron@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("victron@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *VictronActor) close() {
	state.vebus.Close()
	state.ess.Close()
	if state.battery != nil {
		state.battery.Close()
	}
}

func (a *VictronActor) getTelemetry() (*domain.GetTelemetryResponse, error) {
	t, err := a.vebus.GetTelemetry(a.line)
	if err != nil {
		a.logger.Error("victron: telemetry read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetTelemetryResponse{Telemetry: t}, nil
}

func (a *VictronActor) getAlarms() (*domain.GetAlarmsResponse, error) {
	alarms, err := a.vebus.GetAlarms()
	if err != nil {
		a.logger.Error("victron: alarms read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetAlarmsResponse{Alarms: alarms}, nil
}

func (a *VictronActor) getBatteryCapacity() (*domain.GetBatteryCapacityResponse, error) {
	ah, err := a.battery.GetCapacity()
	if err != nil {
		a.logger.Error("victron: battery capacity read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetBatteryCapacityResponse{CapacityAh: ah}, nil
}

func runModbusTask[T any](ctx actor.Context, sender *actor.PID, fn func() (*T, error), recoverFn func(error) T) {
	actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, fn),
		mapTaskResult[T](sender)).Recover(func(err error) backgroundTaskResult {
		return backgroundTaskResult{
			message: recoverFn(err),
			replyTo: sender,
		}
	}).WithTimeout(modbusTaskTimeout).PipeTo(ctx.Self())
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
