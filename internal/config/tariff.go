package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const DefaultDepthOfDischarge = 0.8

// TariffFile is the on-disk layout of the tariff table.
type TariffFile struct {
	DepthOfDischarge float64      `mapstructure:"depth_of_discharge"`
	Rates            []RateConfig `mapstructure:"rates"`
}

type RateConfig struct {
	Name     string
	UnitCost decimal.Decimal `mapstructure:"unit_cost"`
	// kWh
	Reserve   float64
	Windows   []WindowConfig
	Discharge DischargeConfig
	Charge    ChargeConfig
}

type WindowConfig struct {
	Start string
	End   string
	// day names or all, weekdays, weekend. Absent means every day, an
	// empty list means the window never occurs.
	Days []string
}

type DischargeConfig struct {
	// disabled, proportional or spread
	Mode     string
	Fraction float64
}

type ChargeConfig struct {
	// disabled or target_capacity
	Mode      string
	Fraction  *float64
	UnitLimit uint16 `mapstructure:"unit_limit"`
}

// LoadTariffFile reads the tariff table at path. A missing file is created
// with an empty rate list so the operator has something to fill in.
func LoadTariffFile(path string) (domain.TariffTable, error) {
	if err := ensureTariffFile(path); err != nil {
		return domain.TariffTable{}, err
	}
	return ReadTariffFile(path)
}

// ReadTariffFile reads the tariff table at path and fails when it does not exist.
func ReadTariffFile(path string) (domain.TariffTable, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.TariffTable{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("depth_of_discharge", DefaultDepthOfDischarge)
	if err := v.ReadInConfig(); err != nil {
		return domain.TariffTable{}, fmt.Errorf("%w: reading %s: %v", domain.ErrConfiguration, path, err)
	}

	var file TariffFile
	err := v.Unmarshal(&file, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return domain.TariffTable{}, fmt.Errorf("%w: decoding %s: %v", domain.ErrConfiguration, path, err)
	}
	return file.Table()
}

func ensureTariffFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	placeholder := "rates: []\n"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		placeholder = "{\"rates\": []}\n"
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
	}
	if err := os.WriteFile(path, []byte(placeholder), 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// Table converts the file into a validated domain table.
func (f TariffFile) Table() (domain.TariffTable, error) {
	table := domain.TariffTable{
		DepthOfDischarge: f.DepthOfDischarge,
		Rates:            make([]domain.Rate, 0, len(f.Rates)),
	}
	for _, rc := range f.Rates {
		rate, err := rc.Rate()
		if err != nil {
			return domain.TariffTable{}, err
		}
		table.Rates = append(table.Rates, rate)
	}
	if err := table.Validate(); err != nil {
		return domain.TariffTable{}, err
	}
	return table, nil
}

func (rc RateConfig) Rate() (domain.Rate, error) {
	rate := domain.Rate{
		Name:     rc.Name,
		UnitCost: rc.UnitCost,
		Reserve:  rc.Reserve,
	}
	for i, wc := range rc.Windows {
		w, err := wc.Window()
		if err != nil {
			return domain.Rate{}, fmt.Errorf("rate %q window #%d: %w", rc.Name, i, err)
		}
		rate.Windows = append(rate.Windows, w)
	}
	discharge, err := rc.Discharge.Policy()
	if err != nil {
		return domain.Rate{}, fmt.Errorf("rate %q: %w", rc.Name, err)
	}
	rate.Discharge = discharge
	charge, err := rc.Charge.Policy()
	if err != nil {
		return domain.Rate{}, fmt.Errorf("rate %q: %w", rc.Name, err)
	}
	rate.Charge = charge
	return rate, nil
}

func (wc WindowConfig) Window() (domain.RateWindow, error) {
	start, err := domain.ParseTimeOfDay(wc.Start)
	if err != nil {
		return domain.RateWindow{}, err
	}
	end, err := domain.ParseTimeOfDay(wc.End)
	if err != nil {
		return domain.RateWindow{}, err
	}
	names := wc.Days
	if names == nil {
		names = []string{"all"}
	}
	days, err := domain.ParseWeekdays(names)
	if err != nil {
		return domain.RateWindow{}, err
	}
	return domain.RateWindow{Start: start, End: end, Days: days}, nil
}

func (dc DischargeConfig) Policy() (domain.DischargePolicy, error) {
	switch strings.ToLower(dc.Mode) {
	case "", "disabled", "none":
		return domain.DischargeDisabled{}, nil
	case "proportional", "proportional_to_load":
		return domain.DischargeProportionalToLoad{Fraction: dc.Fraction}, nil
	case "spread":
		return domain.DischargeSpread{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown discharge mode %q", domain.ErrInvalidPolicy, dc.Mode)
	}
}

func (cc ChargeConfig) Policy() (domain.ChargePolicy, error) {
	switch strings.ToLower(cc.Mode) {
	case "", "disabled", "none":
		return domain.ChargeDisabled{}, nil
	case "target_capacity", "target":
		fraction := 1.0
		if cc.Fraction != nil {
			fraction = *cc.Fraction
		}
		return domain.ChargeTargetCapacity{Fraction: fraction, UnitLimit: cc.UnitLimit}, nil
	default:
		return nil, fmt.Errorf("%w: unknown charge mode %q", domain.ErrInvalidPolicy, cc.Mode)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalDecodeHook accepts numbers and numeric strings for decimal fields.
func decimalDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		default:
			return data, nil
		}
	}
}
