package domain

import "fmt"

const (
	SENSOR_ID_VOLTAGE_L1            = "voltage_l1"
	SENSOR_ID_VOLTAGE_L2            = "voltage_l2"
	SENSOR_ID_VOLTAGE_L3            = "voltage_l3"
	SENSOR_ID_CURRENT_L1            = "current_l1"
	SENSOR_ID_CURRENT_L2            = "current_l2"
	SENSOR_ID_CURRENT_L3            = "current_l3"
	SENSOR_ID_ACTIVE_POWER          = "active_power"
	SENSOR_ID_REACTIVE_POWER        = "reactive_power"
	SENSOR_ID_IMPORT_POWER          = "grid_import_power"
	SENSOR_ID_EXPORT_POWER          = "grid_export_power"
	SENSOR_ID_TOTAL_ENERGY_IMPORTED = "total_energy_imported"
	SENSOR_ID_TOTAL_ENERGY_EXPORTED = "total_energy_exported"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
