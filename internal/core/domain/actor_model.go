package domain

import (
	"time"

	"github.com/berfenger/smartess/pkg/victron_modbus"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_VICTRON      = "victron"
	ACTOR_ID_TARIFF       = "tariff"
	ACTOR_ID_DISPATCH     = "dispatch"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Victron actor

type GetTelemetryRequest struct {
	ActorRequestMixIn
}

type GetTelemetryResponse struct {
	ActorResponseMixIn
	Telemetry *victron_modbus.VEBusTelemetry
}

type GetAlarmsRequest struct {
	ActorRequestMixIn
}

type GetAlarmsResponse struct {
	ActorResponseMixIn
	Alarms []victron_modbus.Alarm
}

type GetBatteryCapacityRequest struct {
	ActorRequestMixIn
}

type GetBatteryCapacityResponse struct {
	ActorResponseMixIn
	CapacityAh float64
}

type ApplyDispatchRequest struct {
	ActorRequestMixIn
	Command DispatchCommand
}

type ApplyDispatchResponse struct {
	ActorResponseMixIn
}

// Tariff actor

type GetScheduleRequest struct {
	ActorRequestMixIn
	At time.Time
}

type GetScheduleResponse struct {
	ActorResponseMixIn
	Schedule         []ScheduleEntry
	NextCharge       ScheduleEntry
	DepthOfDischarge float64
	Location         *time.Location
}

type ComputeDispatchRequest struct {
	ActorRequestMixIn
	At    time.Time
	Input ControllerInputState
}

type ComputeDispatchResponse struct {
	ActorResponseMixIn
	Output ControllerOutputState
}

type ReloadTariffRequest struct {
	ActorRequestMixIn
}

type ReloadTariffResponse struct {
	ActorResponseMixIn
	Rates    int
	LoadedAt time.Time
}

// Dispatch actor

type GetDispatchStateRequest struct {
	ActorRequestMixIn
}

type GetDispatchStateResponse struct {
	ActorResponseMixIn
	Last   *DispatchRecord
	Output *ControllerOutputState
	Hold   bool
	DryRun bool
}

// MQTT actor

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
