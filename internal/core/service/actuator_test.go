package service

import (
	"math"
	"testing"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestActuatorCommand(t *testing.T) {
	cases := []struct {
		name     string
		gridLoad float64
		want     int16
	}{
		{"rounds", 1234.6, 1235},
		{"keeps minimum import", 0, DefaultMinSetPointWatt},
		{"below minimum", 49.4, DefaultMinSetPointWatt},
		{"charging", DefaultMaxGridImportWatt, DefaultMaxGridImportWatt},
		{"saturates", 1e6, math.MaxInt16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := ActuatorCommand(domain.ControllerOutputState{GridLoad: tc.gridLoad}, DefaultMinSetPointWatt)
			assert.Equal(t, tc.want, cmd.SetPointWatt)
		})
	}
}

func TestActuatorCommandFlags(t *testing.T) {
	cmd := ActuatorCommand(domain.ControllerOutputState{GridLoad: 800, DisableCharge: true, DisableFeedIn: false}, 0)
	assert.Equal(t, domain.DispatchCommand{SetPointWatt: 800, DisableCharge: true}, cmd)

	cmd = ActuatorCommand(domain.ControllerOutputState{GridLoad: 800, DisableFeedIn: true}, 0)
	assert.False(t, cmd.DisableCharge)
	assert.True(t, cmd.DisableFeedIn)
}

func TestActuatorFromDecision(t *testing.T) {
	ctrl := newController(t, dayPeakNight(0))
	out, err := ctrl.DesiredState(at(4, 19, 2, 0), input(0.4, 0))
	assert.NoError(t, err)
	cmd := ActuatorCommand(out, DefaultMinSetPointWatt)
	assert.Equal(t, int16(DefaultMaxGridImportWatt), cmd.SetPointWatt)
	assert.True(t, cmd.DisableFeedIn)
	assert.False(t, cmd.DisableCharge)
}
