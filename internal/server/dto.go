package server

import (
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
)

type ScheduleEntryDTO struct {
	Rate          string    `json:"rate"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	UnitCost      string    `json:"unit_cost"`
	Charge        string    `json:"charge"`
	Discharge     string    `json:"discharge"`
	ReserveKWh    float64   `json:"reserve_kwh"`
	ActiveAtQuery bool      `json:"active"`
}

type ScheduleDTO struct {
	At               time.Time          `json:"at"`
	Timezone         string             `json:"timezone"`
	DepthOfDischarge float64            `json:"depth_of_discharge"`
	NextCharge       *ScheduleEntryDTO  `json:"next_charge,omitempty"`
	Entries          []ScheduleEntryDTO `json:"entries"`
	Error            string             `json:"error,omitempty"`
}

type DispatchRecordDTO struct {
	Time          time.Time  `json:"time"`
	Regime        string     `json:"regime"`
	Rate          string     `json:"rate,omitempty"`
	NextCharge    *time.Time `json:"next_charge,omitempty"`
	SystemLoad    float64    `json:"system_load_w"`
	Soc           float64    `json:"soc"`
	GridLoad      float64    `json:"grid_load_w"`
	BatteryLoad   float64    `json:"battery_load_w"`
	UsingCapacity float64    `json:"using_capacity_kwh"`
	Reserve       float64    `json:"reserve_kwh"`
	SetPointWatt  int16      `json:"set_point_w"`
	Applied       bool       `json:"applied"`
	Error         string     `json:"error,omitempty"`
}

type DecisionDTO struct {
	Regime            string  `json:"regime"`
	DisableCharge     bool    `json:"disable_charge"`
	DisableFeedIn     bool    `json:"disable_feed_in"`
	Soc               float64 `json:"usable_soc"`
	GridLoad          float64 `json:"grid_load_w"`
	BatteryLoad       float64 `json:"battery_load_w"`
	AvailableCapacity float64 `json:"available_capacity_kwh"`
	UsingCapacity     float64 `json:"using_capacity_kwh"`
	ReserveCapacity   float64 `json:"reserve_capacity_kwh"`
	HoursUntilCharge  float64 `json:"hours_until_charge"`
	CurrentRate       string  `json:"current_rate,omitempty"`
	NextRate          string  `json:"next_rate,omitempty"`
	NextCharge        string  `json:"next_charge,omitempty"`
}

type DispatchStateDTO struct {
	Hold     bool               `json:"hold"`
	DryRun   bool               `json:"dry_run"`
	Last     *DispatchRecordDTO `json:"last,omitempty"`
	Decision *DecisionDTO       `json:"decision,omitempty"`
}

type SwitchDTO struct {
	Enable  bool `json:"enable"`
	Changed bool `json:"changed"`
}

type ReloadDTO struct {
	Rates    int       `json:"rates"`
	LoadedAt time.Time `json:"loaded_at"`
	Error    string    `json:"error,omitempty"`
}

func ScheduleEntryToDTO(e domain.ScheduleEntry, at time.Time) ScheduleEntryDTO {
	dto := ScheduleEntryDTO{
		Rate:          e.Rate.Name,
		Start:         e.Start,
		End:           e.End,
		UnitCost:      e.Rate.UnitCost.String(),
		Charge:        "disabled",
		Discharge:     e.Rate.EffectiveDischarge().String(),
		ReserveKWh:    e.Rate.Reserve,
		ActiveAtQuery: e.Contains(at),
	}
	if e.Rate.Charge != nil {
		dto.Charge = e.Rate.Charge.String()
	}
	return dto
}

func ScheduleToDTO(at time.Time, resp domain.GetScheduleResponse) ScheduleDTO {
	dto := ScheduleDTO{
		At:               at,
		DepthOfDischarge: resp.DepthOfDischarge,
		Entries:          make([]ScheduleEntryDTO, 0, len(resp.Schedule)),
	}
	if resp.Location != nil {
		dto.Timezone = resp.Location.String()
	}
	for _, e := range resp.Schedule {
		dto.Entries = append(dto.Entries, ScheduleEntryToDTO(e, at))
	}
	if !resp.NextCharge.IsZero() {
		nc := ScheduleEntryToDTO(resp.NextCharge, at)
		dto.NextCharge = &nc
	}
	if resp.HasResponseError() {
		dto.Error = resp.GetResponseError().Error()
	}
	return dto
}

func DispatchRecordToDTO(rec domain.DispatchRecord) DispatchRecordDTO {
	dto := DispatchRecordDTO{
		Time:          rec.Time,
		Regime:        rec.Regime.String(),
		Rate:          rec.Rate,
		SystemLoad:    rec.SystemLoad,
		Soc:           rec.Soc,
		GridLoad:      rec.GridLoad,
		BatteryLoad:   rec.BatteryLoad,
		UsingCapacity: rec.UsingCapacity,
		Reserve:       rec.Reserve,
		SetPointWatt:  rec.SetPointWatt,
		Applied:       rec.Applied,
		Error:         rec.Error,
	}
	if !rec.NextCharge.IsZero() {
		nc := rec.NextCharge
		dto.NextCharge = &nc
	}
	return dto
}

func DecisionToDTO(out domain.ControllerOutputState) DecisionDTO {
	return DecisionDTO{
		Regime:            out.Regime.String(),
		DisableCharge:     out.DisableCharge,
		DisableFeedIn:     out.DisableFeedIn,
		Soc:               out.Soc,
		GridLoad:          out.GridLoad,
		BatteryLoad:       out.BatteryLoad,
		AvailableCapacity: out.AvailableCapacity,
		UsingCapacity:     out.UsingCapacity,
		ReserveCapacity:   out.ReserveCapacity,
		HoursUntilCharge:  out.HoursUntilCharge,
		CurrentRate:       entryName(out.CurrentRate),
		NextRate:          entryName(out.NextRate),
		NextCharge:        out.NextCharge.String(),
	}
}

func DispatchStateToDTO(resp domain.GetDispatchStateResponse) DispatchStateDTO {
	dto := DispatchStateDTO{
		Hold:   resp.Hold,
		DryRun: resp.DryRun,
	}
	if resp.Last != nil {
		last := DispatchRecordToDTO(*resp.Last)
		dto.Last = &last
	}
	if resp.Output != nil {
		decision := DecisionToDTO(*resp.Output)
		dto.Decision = &decision
	}
	return dto
}

func entryName(e domain.ScheduleEntry) string {
	if e.IsZero() {
		return ""
	}
	return e.Rate.Name
}
