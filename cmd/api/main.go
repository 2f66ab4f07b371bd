package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	adactor "github.com/berfenger/smartess/internal/adapter/actor"
	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/actor"
	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/service"
	"github.com/berfenger/smartess/internal/history"
	"github.com/berfenger/smartess/internal/metrics"
	"github.com/berfenger/smartess/internal/server"
	"github.com/berfenger/smartess/internal/util/actorutil"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("Using", "config", cfg.Redacted())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	deps := actor.MasterDeps{}
	opts := server.Options{Logger: logger}

	var instrument *victron_modbus.ModbusInstrument
	if cfg.Metrics.Enabled {
		m, err := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			logger.Fatal("metrics", zap.Error(err))
		}
		deps.Observer = m
		instrument = m.ModbusInstrument()
		opts.Gatherer = prometheus.DefaultGatherer
	}

	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			logger.Fatal("history store", zap.String("path", cfg.History.Path), zap.Error(err))
		}
		defer store.Close()
		deps.Recorder = store
		opts.Recorder = store
	}

	deps.Victron, err = victronActorProvider(cfg, logger, instrument)
	if err != nil {
		logger.Fatal("victron modbus", zap.Error(err))
	}
	deps.Tariff, err = tariffActorProvider(cfg, logger)
	if err != nil {
		logger.Fatal("tariff", zap.String("file", cfg.Tariff.File), zap.Error(err))
	}
	deps.MQTT = mqttActorProvider(cfg, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(cfg, deps, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("spawn master", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, opts)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func victronActorProvider(cfg *config.Config, logger *zap.Logger, instrument *victron_modbus.ModbusInstrument) (actor.VictronActorProvider, error) {

	tcp := cfg.VictronModbusTcp
	line, err := victron_modbus.ParseLine(cfg.Dispatch.Phase)
	if err != nil {
		return nil, err
	}

	vebusCfg := victron_modbus.TCPConfig{Host: tcp.Host, Port: tcp.Port, UnitId: uint8(tcp.VEBusUnitId), Timeout: tcp.Timeout()}
	vebus, err := victron_modbus.CreateVEBusModbusReader(vebusCfg, logger, instrument)
	if err != nil {
		return nil, err
	}
	// ESS control registers live on the VE.Bus unit
	ess, err := victron_modbus.CreateESSModbusWriter(vebusCfg, logger, instrument)
	if err != nil {
		return nil, err
	}

	var battery victron_modbus.BatteryModbusReader
	if cfg.Battery.ReadCapacity {
		batteryCfg := vebusCfg
		batteryCfg.UnitId = uint8(tcp.BatteryUnitId)
		battery, err = victron_modbus.CreateBatteryModbusReader(batteryCfg, logger, instrument)
		if err != nil {
			return nil, err
		}
	}

	return func() *adactor.VictronActor {
		return adactor.NewVictronActor(vebus, ess, battery, line, logger)
	}, nil
}

func tariffActorProvider(cfg *config.Config, logger *zap.Logger) (actor.TariffActorProvider, error) {

	loc, err := cfg.Dispatch.Location()
	if err != nil {
		return nil, err
	}
	loader := func() (*service.DispatchController, error) {
		table, err := config.LoadTariffFile(cfg.Tariff.File)
		if err != nil {
			return nil, err
		}
		return service.NewDispatchController(table, service.ControllerOptions{
			Location:          loc,
			MaxGridImportWatt: cfg.Dispatch.MaxGridImportWatt,
		})
	}

	// fail fast on a broken file; later reloads keep the last good table
	controller, err := loader()
	if err != nil {
		return nil, err
	}

	return func() *actor.TariffActor {
		return actor.NewTariffActor(controller, loader, cfg.Tariff.ReloadCron, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}
