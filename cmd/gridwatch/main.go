package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/gridwatch/internal/adapter/actor"
	"github.com/berfenger/gridwatch/internal/adapter/store"
	"github.com/berfenger/gridwatch/internal/config"
	"github.com/berfenger/gridwatch/internal/core/actor"
	"github.com/berfenger/gridwatch/internal/core/port"
	"github.com/berfenger/gridwatch/internal/core/service"
	"github.com/berfenger/gridwatch/internal/metrics"
	"github.com/berfenger/gridwatch/internal/server"
	"github.com/berfenger/gridwatch/internal/util/actorutil"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/jackc/pgx/v5/pgxpool"
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

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// resolve the register map and counter width
	regMap, err := cfg.AnalyzerRegisterMap()
	if err != nil {
		logger.Fatal("invalid register map", zap.Error(err))
	}

	// metrics registry
	m := metrics.New()

	// time-series store
	tsStore, err := initStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	reconciler := service.NewEnergyReconciler(regMap.CounterWidthBits(), cfg.Poller.MaxEnergyDeltaWh, logger)

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, regMap, m, logger)
	if err != nil {
		panic(err)
	}

	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enabled {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, modbusProv, mqttProv, tsStore, reconciler, m, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, tsStore, m)
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

func initConfig() (*config.Config, error) {

	// alias PORT => GRIDWATCH_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GRIDWATCH_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("gridwatch")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	if cfg.MQTT.Enabled {
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic
	}

	// check bounds
	if cfg.AnalyzerModbusTcp.Host == "" {
		return nil, errors.New("config param analyzer_modbus_tcp.host is required")
	}
	if cfg.Poller.IntervalMillis < 1000 {
		return nil, errors.New("config param poller.interval_millis should be >= 1000")
	}
	if cfg.Poller.MaxEnergyDeltaWh == 0 {
		return nil, errors.New("config param poller.max_energy_delta_wh should be > 0")
	}
	if cfg.Poller.BackoffInitialMillis == 0 || cfg.Poller.BackoffMaxMillis < cfg.Poller.BackoffInitialMillis {
		return nil, errors.New("config params poller.backoff_initial_millis/backoff_max_millis are inconsistent")
	}
	if cfg.Store.Driver != "memory" && cfg.Store.Driver != "postgres" {
		return nil, errors.New("config param store.driver must be memory or postgres")
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.PostgresURI == "" {
		return nil, errors.New("config param store.postgres_uri is required with the postgres driver")
	}

	return &cfg, nil
}

func initStore(cfg *config.Config, logger *zap.Logger) (port.TimeSeriesStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.PostgresURI)
		if err != nil {
			return nil, err
		}
		pgStore := store.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return pgStore, nil
	default:
		logger.Warn("using in-memory store, energy totals reset on restart")
		return store.NewMemoryStore(), nil
	}
}

func modbusActorProvider(cfg *config.Config, regMap analyzer.RegisterMap, m *metrics.Metrics, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	timeout := time.Duration(cfg.AnalyzerModbusTcp.TimeoutMillis) * time.Millisecond

	reader, err := analyzer.CreatePowerAnalyzerModbusReader(cfg.AnalyzerModbusTcp.Host,
		cfg.AnalyzerModbusTcp.Port, uint8(cfg.AnalyzerModbusTcp.UnitId), timeout,
		regMap, logger, m.AnalyzerInstrument())

	if err != nil {
		return nil, err
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(reader, timeout, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("analyzer_modbus_tcp.port", 502)
	viper.SetDefault("analyzer_modbus_tcp.unit_id", 1)
	viper.SetDefault("analyzer_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("poller.interval_millis", 10000)
	viper.SetDefault("poller.max_energy_delta_wh", 10000)
	viper.SetDefault("poller.backoff_initial_millis", 2000)
	viper.SetDefault("poller.backoff_max_millis", 60000)
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.base_topic", "gridwatch")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
