package service

import (
	"math"

	"github.com/berfenger/smartess/internal/core/domain"
)

const DefaultMinSetPointWatt = 50

// ActuatorCommand turns a dispatch decision into ESS register values. The grid
// set point never drops below minSetPoint so the inverter keeps a small import
// margin, and saturates at the int16 register range.
func ActuatorCommand(out domain.ControllerOutputState, minSetPoint int16) domain.DispatchCommand {
	setPoint := math.Max(math.Round(out.GridLoad), float64(minSetPoint))
	setPoint = math.Min(setPoint, math.MaxInt16)
	return domain.DispatchCommand{
		SetPointWatt:  int16(setPoint),
		DisableCharge: out.DisableCharge,
		DisableFeedIn: out.DisableFeedIn,
	}
}
