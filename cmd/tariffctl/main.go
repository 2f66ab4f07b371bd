package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/service"
	"github.com/berfenger/smartess/internal/history"
	"github.com/berfenger/smartess/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd binds the flags to v so that SMARTESS_* variables and the
// CONFIG_FILE used by the service apply here too.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "tariffctl",
		Short:         "Inspect the tariff table and dispatch decisions offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			v.SetEnvPrefix(config.EnvPrefix)
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()
			if cfgFile == "" {
				cfgFile = os.Getenv("CONFIG_FILE")
			}
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading %s: %w", cfgFile, err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "service config file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().String("tariff", "", "tariff file (default tariff.file from the config)")
	rootCmd.PersistentFlags().String("timezone", "", "timezone for days and midnight (default dispatch.timezone)")
	rootCmd.PersistentFlags().Bool("json", false, "print JSON")
	_ = v.BindPFlag("tariff.file", rootCmd.PersistentFlags().Lookup("tariff"))
	_ = v.BindPFlag("dispatch.timezone", rootCmd.PersistentFlags().Lookup("timezone"))
	_ = v.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(scheduleCmd(v))
	rootCmd.AddCommand(checkCmd(v))
	rootCmd.AddCommand(dispatchCmd(v))
	rootCmd.AddCommand(historyCmd(v))

	return rootCmd
}

func loadController(v *viper.Viper) (*service.DispatchController, error) {
	dispatch := config.DispatchConfig{
		Timezone:          v.GetString("dispatch.timezone"),
		MaxGridImportWatt: v.GetFloat64("dispatch.max_grid_import_watt"),
	}
	loc, err := dispatch.Location()
	if err != nil {
		return nil, err
	}
	table, err := config.ReadTariffFile(v.GetString("tariff.file"))
	if err != nil {
		return nil, err
	}
	return service.NewDispatchController(table, service.ControllerOptions{
		Location:          loc,
		MaxGridImportWatt: dispatch.MaxGridImportWatt,
	})
}

func parseAt(at string, loc *time.Location) (time.Time, error) {
	if at == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.ParseInLocation(time.RFC3339, at, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339: %w", err)
	}
	return t.In(loc), nil
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func scheduleCmd(v *viper.Viper) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the merged rate schedule at an instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(v)
			if err != nil {
				return err
			}
			now, err := parseAt(at, ctrl.Location())
			if err != nil {
				return err
			}
			resp := domain.GetScheduleResponse{
				Schedule:         ctrl.GetSchedule(now),
				DepthOfDischarge: ctrl.DepthOfDischarge(),
				Location:         ctrl.Location(),
			}
			resp.NextCharge, resp.ResponseError = ctrl.NextCharge(now)
			dto := server.ScheduleToDTO(now, resp)

			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				return printJSON(out, dto)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RATE\tSTART\tEND\tCHARGE\tDISCHARGE\tRESERVE\t")
			for _, e := range dto.Entries {
				marker := ""
				if e.ActiveAtQuery {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\t%.2f\t\n", e.Rate, marker,
					e.Start.Format("Mon 2006-01-02 15:04"), e.End.Format("Mon 2006-01-02 15:04"),
					e.Charge, e.Discharge, e.ReserveKWh)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if dto.NextCharge != nil {
				fmt.Fprintf(out, "next charge: %s at %s\n", dto.NextCharge.Rate, dto.NextCharge.Start.Format(time.RFC3339))
			} else {
				fmt.Fprintf(out, "next charge: %s\n", dto.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference instant, RFC3339 (default now)")
	return cmd
}

func checkCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the tariff file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rates := ctrl.Rates()
			fmt.Fprintf(out, "%s: %d rates, depth of discharge %.2f, timezone %s\n",
				v.GetString("tariff.file"), len(rates), ctrl.DepthOfDischarge(), ctrl.Location())
			for _, r := range rates {
				fmt.Fprintf(out, "  %s: %d windows, charge %s, discharge %s, reserve %.2f kWh, unit cost %s\n",
					r.Name, len(r.Windows), chargeName(r), r.EffectiveDischarge(), r.Reserve, r.UnitCost)
			}
			if len(rates) > 0 {
				if _, err := ctrl.NextCharge(time.Now()); err != nil {
					fmt.Fprintf(out, "warning: %v\n", err)
				}
			}
			return nil
		},
	}
}

func chargeName(r *domain.Rate) string {
	if r.Charge == nil {
		return domain.ChargeDisabled{}.String()
	}
	return r.Charge.String()
}

func dispatchCmd(v *viper.Viper) *cobra.Command {
	var (
		at          string
		in          domain.ControllerInputState
		minSetPoint int16
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Compute the dispatch decision for a state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(v)
			if err != nil {
				return err
			}
			now, err := parseAt(at, ctrl.Location())
			if err != nil {
				return err
			}
			decision, err := ctrl.DesiredState(now, in)
			if err != nil {
				return err
			}
			command := service.ActuatorCommand(decision, minSetPoint)

			out := cmd.OutOrStdout()
			dto := server.DecisionToDTO(decision)
			if v.GetBool("json") {
				return printJSON(out, struct {
					Decision server.DecisionDTO    `json:"decision"`
					Command  domain.DispatchCommand `json:"command"`
				}{dto, command})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "regime\t%s\n", dto.Regime)
			fmt.Fprintf(tw, "current rate\t%s\n", dto.CurrentRate)
			fmt.Fprintf(tw, "next rate\t%s\n", dto.NextRate)
			fmt.Fprintf(tw, "next charge\t%s\n", dto.NextCharge)
			fmt.Fprintf(tw, "hours until charge\t%.2f\n", dto.HoursUntilCharge)
			fmt.Fprintf(tw, "usable soc\t%.3f\n", dto.Soc)
			fmt.Fprintf(tw, "available\t%.3f kWh\n", dto.AvailableCapacity)
			fmt.Fprintf(tw, "reserve\t%.3f kWh\n", dto.ReserveCapacity)
			fmt.Fprintf(tw, "using\t%.3f kWh\n", dto.UsingCapacity)
			fmt.Fprintf(tw, "grid load\t%.0f W\n", dto.GridLoad)
			fmt.Fprintf(tw, "battery load\t%.0f W\n", dto.BatteryLoad)
			fmt.Fprintf(tw, "set point\t%d W\n", command.SetPointWatt)
			fmt.Fprintf(tw, "charge\t%s\n", onOff(!command.DisableCharge))
			fmt.Fprintf(tw, "feed-in\t%s\n", onOff(!command.DisableFeedIn))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference instant, RFC3339 (default now)")
	cmd.Flags().Float64Var(&in.Soc, "soc", 0.5, "state of charge, 0..1")
	cmd.Flags().Float64Var(&in.SystemLoad, "load", 0, "system load in W")
	cmd.Flags().Float64Var(&in.Capacity, "capacity", 10, "battery capacity in kWh")
	cmd.Flags().Int16Var(&minSetPoint, "min-set-point", service.DefaultMinSetPointWatt, "lowest grid set point in W")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func historyCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the last dispatch ticks from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewSQLiteStore(v.GetString("history.path"))
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				dtos := make([]server.DispatchRecordDTO, 0, len(recs))
				for _, rec := range recs {
					dtos = append(dtos, server.DispatchRecordToDTO(rec))
				}
				return printJSON(out, dtos)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tREGIME\tRATE\tLOAD\tSOC\tSET POINT\tAPPLIED\tERROR\t")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.3f\t%d\t%t\t%s\t\n",
					rec.Time.Format(time.DateTime), rec.Regime, rec.Rate, rec.SystemLoad, rec.Soc,
					rec.SetPointWatt, rec.Applied, rec.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("db", "", "history database (default history.path)")
	_ = v.BindPFlag("history.path", cmd.Flags().Lookup("db"))
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of ticks")
	return cmd
}
