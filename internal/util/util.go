package util

import (
	"github.com/berfenger/gridwatch/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		AnalyzerModbusTcp: config.AnalyzerModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		Poller: config.PollerConfig{
			IntervalMillis:       200,
			MaxEnergyDeltaWh:     10000,
			BackoffInitialMillis: 200,
			BackoffMaxMillis:     2000,
		},
		Store: config.StoreConfig{
			Driver: "memory",
		},
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Port: 8080,
	}
}
