package events

import (
	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/carlmjohnson/versioninfo"
)

// Device describes the bridge as published on the MQTT info topic.
type Device struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
}

func BridgeDevice() Device {
	return Device{
		Id:           "gridwatch_bridge",
		Name:         "gridwatch",
		Version:      versioninfo.Short(),
		Model:        "PA330 power analyzer bridge",
		Manufacturer: "gridwatch",
	}
}

// MeasurementToUpdateEvents maps one decoded measurement to sensor update
// events for the event stream.
func MeasurementToUpdateEvents(m *analyzer.Measurement) []any {
	var events []any

	voltageIds := []string{domain.SENSOR_ID_VOLTAGE_L1, domain.SENSOR_ID_VOLTAGE_L2, domain.SENSOR_ID_VOLTAGE_L3}
	currentIds := []string{domain.SENSOR_ID_CURRENT_L1, domain.SENSOR_ID_CURRENT_L2, domain.SENSOR_ID_CURRENT_L3}

	for i, id := range voltageIds {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: id,
			},
			Value:    m.VoltageVolt[i],
			Decimals: 1,
		})
	}
	for i, id := range currentIds {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: id,
			},
			Value:    m.CurrentAmp[i],
			Decimals: 2,
		})
	}
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_ACTIVE_POWER,
		},
		Value:    m.ActivePowerWatt,
		Decimals: 0,
	})
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_REACTIVE_POWER,
		},
		Value:    m.ReactivePowerVAR,
		Decimals: 0,
	})
	// import/export split follows the device sign convention:
	// positive = consumption, negative = production
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_IMPORT_POWER,
		},
		Value:    m.ImportPowerWatt(),
		Decimals: 0,
	})
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_EXPORT_POWER,
		},
		Value:    m.ExportPowerWatt(),
		Decimals: 0,
	})

	return events
}

// EnergySampleToUpdateEvents maps reconciled monotonic totals to sensor
// update events. Published retained so late subscribers see the totals.
func EnergySampleToUpdateEvents(sample domain.CumulativeEnergySample) []any {
	return []any{
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_TOTAL_ENERGY_IMPORTED,
			},
			Value:    float64(sample.TotalImportedWh),
			Decimals: 0,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_TOTAL_ENERGY_EXPORTED,
			},
			Value:    float64(sample.TotalExportedWh),
			Decimals: 0,
		},
	}
}
