package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/gridwatch/pkg/analyzer"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel          zapcore.Level
	AnalyzerModbusTcp AnalyzerModbusTCPConfig `mapstructure:"analyzer_modbus_tcp"`
	Poller            PollerConfig            `mapstructure:"poller"`
	Store             StoreConfig             `mapstructure:"store"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`

	// RegisterMap overrides the built-in PA330 layout when present.
	RegisterMap []RegisterEntryConfig `mapstructure:"register_map"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type AnalyzerModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type PollerConfig struct {
	IntervalMillis uint32 `mapstructure:"interval_millis"`
	// MaxEnergyDeltaWh is the maximum plausible energy delta within one
	// poll interval; larger counter movement is treated as a device reset
	// or corrupt read. Must be validated against the real device's counter
	// width and the configured interval.
	MaxEnergyDeltaWh     uint64 `mapstructure:"max_energy_delta_wh"`
	BackoffInitialMillis uint32 `mapstructure:"backoff_initial_millis"`
	BackoffMaxMillis     uint32 `mapstructure:"backoff_max_millis"`
}

type StoreConfig struct {
	Driver      string // memory | postgres
	PostgresURI string `mapstructure:"postgres_uri"`
}

type MQTTConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

type RegisterEntryConfig struct {
	Field     string
	Address   uint16
	Encoding  string  // uint16 | int16 | uint32 | int32
	WordOrder string  `mapstructure:"word_order"` // big | little
	Scale     float64 // raw-to-physical factor
	Min       float64
	Max       float64
	Counter   bool
}

// AnalyzerRegisterMap resolves the effective register map: the configured
// override when present, the built-in PA330 layout otherwise.
func (c Config) AnalyzerRegisterMap() (analyzer.RegisterMap, error) {
	if len(c.RegisterMap) == 0 {
		return analyzer.DefaultRegisterMap(), nil
	}
	regMap := analyzer.RegisterMap{}
	for _, entry := range c.RegisterMap {
		def, err := entry.toRegisterDef()
		if err != nil {
			return analyzer.RegisterMap{}, err
		}
		regMap.Registers = append(regMap.Registers, def)
	}
	if err := regMap.Validate(); err != nil {
		return analyzer.RegisterMap{}, err
	}
	return regMap, nil
}

func (e RegisterEntryConfig) toRegisterDef() (analyzer.RegisterDef, error) {
	def := analyzer.RegisterDef{
		Field:   e.Field,
		Address: e.Address,
		Scale:   e.Scale,
		Min:     e.Min,
		Max:     e.Max,
		Counter: e.Counter,
	}
	switch strings.ToLower(e.Encoding) {
	case "uint16", "":
		def.Encoding = analyzer.EncodingUint16
	case "int16":
		def.Encoding = analyzer.EncodingInt16
	case "uint32":
		def.Encoding = analyzer.EncodingUint32
	case "int32":
		def.Encoding = analyzer.EncodingInt32
	default:
		return def, fmt.Errorf("register_map: field %q has unknown encoding %q", e.Field, e.Encoding)
	}
	switch strings.ToLower(e.WordOrder) {
	case "big", "":
		def.WordOrder = analyzer.WordOrderBigEndian
	case "little":
		def.WordOrder = analyzer.WordOrderLittleEndian
	default:
		return def, fmt.Errorf("register_map: field %q has unknown word order %q", e.Field, e.WordOrder)
	}
	if def.Scale == 0 {
		def.Scale = 1
	}
	return def, nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
