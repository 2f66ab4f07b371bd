package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/service"
	"github.com/berfenger/smartess/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// ControllerLoader builds a controller from the current tariff source.
type ControllerLoader func() (*service.DispatchController, error)

// TariffActor owns the active dispatch controller. A reload swaps it
// atomically from the actor's point of view; a failed reload keeps the old one.
type TariffActor struct {
	behavior   actor.Behavior
	stash      *actorutil.Stash
	controller *service.DispatchController
	loader     ControllerLoader
	reloadCron string
	loadedAt   time.Time
	clock      func() time.Time
	scheduler  quartz.Scheduler
	cancel     context.CancelFunc

	logger *zap.Logger
}

func NewTariffActor(controller *service.DispatchController, loader ControllerLoader, reloadCron string, logger *zap.Logger) *TariffActor {
	act := &TariffActor{
		controller: controller,
		loader:     loader,
		reloadCron: reloadCron,
		loadedAt:   time.Now(),
		clock:      time.Now,
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_TARIFF, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *TariffActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TariffActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("tariff@starting started")
		if state.controller == nil {
			if err := state.reload(); err != nil {
				panic(err)
			}
		}
		if state.reloadCron != "" && state.loader != nil {
			if err := state.startReloadJob(ctx); err != nil {
				state.logger.Error("tariff@starting reload job", zap.String("cron", state.reloadCron), zap.Error(err))
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopReloadJob()
	default:
		state.logger.Debug("tariff@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TariffActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("tariff@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TARIFF,
			Healthy: state.controller != nil,
			State:   "idle",
		})
	case domain.GetScheduleRequest:
		state.logger.Debug("tariff@default: GetScheduleRequest")
		at := state.at(msg.At)
		resp := domain.GetScheduleResponse{
			Schedule:         state.controller.GetSchedule(at),
			DepthOfDischarge: state.controller.DepthOfDischarge(),
			Location:         state.controller.Location(),
		}
		nextCharge, err := state.controller.NextCharge(at)
		if err != nil {
			resp.ResponseError = err
		}
		resp.NextCharge = nextCharge
		actorutil.ForRequest(msg).Respond(ctx, resp)
	case domain.ComputeDispatchRequest:
		at := state.at(msg.At)
		out, err := state.controller.DesiredState(at, msg.Input)
		if err != nil {
			state.logger.Warn("tariff@default: no dispatch decision", zap.Time("at", at), zap.Error(err))
		} else {
			state.logger.Debug("tariff@default: ComputeDispatchRequest",
				zap.Stringer("regime", out.Regime), zap.Stringer("rate", out.CurrentRate))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.ComputeDispatchResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Output:             out,
		})
	case domain.ReloadTariffRequest:
		err := state.reload()
		resp := domain.ReloadTariffResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Rates:              len(state.controller.Rates()),
			LoadedAt:           state.loadedAt,
		}
		if err != nil {
			state.logger.Error("tariff@default: reload failed, keeping previous table", zap.Error(err))
		} else {
			state.logger.Info("tariff@default: table reloaded", zap.Int("rates", resp.Rates))
		}
		if ctx.Sender() != nil || msg.ReplyTo() != nil {
			actorutil.ForRequest(msg).Respond(ctx, resp)
		}
	case *actor.Restarting, *actor.Stopping:
		state.stopReloadJob()
	default:
		state.logger.Debug("tariff@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TariffActor) at(t time.Time) time.Time {
	if t.IsZero() {
		return state.clock()
	}
	return t
}

func (state *TariffActor) reload() error {
	if state.loader == nil {
		return fmt.Errorf("%w: no tariff source", domain.ErrConfiguration)
	}
	controller, err := state.loader()
	if err != nil {
		return err
	}
	state.controller = controller
	state.loadedAt = state.clock()
	return nil
}

func (state *TariffActor) startReloadJob(ctx actor.Context) error {
	trigger, err := quartz.NewCronTriggerWithLoc(state.reloadCron, state.location())
	if err != nil {
		return err
	}
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return err
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	sched.Start(jobCtx)

	job := &reloadTariffJob{system: ctx.ActorSystem(), pid: ctx.Self()}
	if err := sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey("tariff_reload")), trigger); err != nil {
		cancel()
		sched.Stop()
		return err
	}
	state.scheduler = sched
	state.cancel = cancel
	return nil
}

func (state *TariffActor) stopReloadJob() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
}

func (state *TariffActor) location() *time.Location {
	if state.controller != nil {
		return state.controller.Location()
	}
	return time.Local
}

// reloadTariffJob asks the tariff actor to reload on every cron fire.
type reloadTariffJob struct {
	system *actor.ActorSystem
	pid    *actor.PID
}

func (j *reloadTariffJob) Execute(_ context.Context) error {
	j.system.Root.Send(j.pid, domain.ReloadTariffRequest{})
	return nil
}

func (j *reloadTariffJob) Description() string {
	return "reload tariff table"
}
