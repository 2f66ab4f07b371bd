package port

import (
	"context"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
)

type DispatchController interface {
	GetSchedule(now time.Time) []domain.ScheduleEntry
	NextCharge(now time.Time) (domain.ScheduleEntry, error)
	DesiredState(now time.Time, in domain.ControllerInputState) (domain.ControllerOutputState, error)
	MaxGridImportPower() float64
}

// DispatchRecorder keeps the outcome of every dispatch tick.
type DispatchRecorder interface {
	Record(ctx context.Context, rec domain.DispatchRecord) error
	Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error)
}

// DispatchObserver is notified at the end of every dispatch tick.
type DispatchObserver interface {
	ObserveDispatch(rec domain.DispatchRecord, out *domain.ControllerOutputState, duration time.Duration)
	ObserveFailure(stage string)
}
