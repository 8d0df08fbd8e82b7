package analyzer

import (
	"fmt"
	"math"
	"time"
)

// RawSample is the unprocessed outcome of one poll cycle: every field of the
// register map with its raw register words. Ephemeral, never persisted.
type RawSample struct {
	Timestamp time.Time
	Words     map[string][]uint16
}

// Measurement is one decoded physical sample. Active power is signed:
// positive = consumption from grid, negative = production. Energy counters
// stay raw and unsigned; the reconciler turns them into monotonic totals.
type Measurement struct {
	Timestamp        time.Time  `json:"timestamp"`
	VoltageVolt      [3]float64 `json:"voltage_volt"`
	CurrentAmp       [3]float64 `json:"current_amp"`
	ActivePowerWatt  float64    `json:"active_power_watt"`
	ReactivePowerVAR float64    `json:"reactive_power_var"`
	EnergyImportedWh uint64     `json:"energy_imported_wh"`
	EnergyExportedWh uint64     `json:"energy_exported_wh"`
}

// ImportPowerWatt returns the grid consumption share of active power.
func (m Measurement) ImportPowerWatt() float64 {
	return math.Max(0, m.ActivePowerWatt)
}

// ExportPowerWatt returns the production share of active power.
func (m Measurement) ExportPowerWatt() float64 {
	return math.Max(0, -m.ActivePowerWatt)
}

// Decode turns a raw sample into a measurement following the register map.
// Pure function: no side effects, no partial results on error.
func Decode(sample RawSample, regMap RegisterMap) (*Measurement, error) {
	m := &Measurement{Timestamp: sample.Timestamp}
	for _, def := range regMap.Registers {
		words, ok := sample.Words[def.Field]
		if !ok {
			return nil, fmt.Errorf("%w: field %q missing", ErrIncomplete, def.Field)
		}
		if len(words) != int(def.Words()) {
			return nil, fmt.Errorf("%w: field %q has %d words, want %d",
				ErrIncomplete, def.Field, len(words), def.Words())
		}
		raw := combineWords(words, def.WordOrder)
		if def.Counter {
			if err := setCounterField(m, def.Field, raw); err != nil {
				return nil, err
			}
			continue
		}
		value := typedValue(raw, def) * def.Scale
		if def.hasRange() && (value < def.Min || value > def.Max) {
			return nil, fmt.Errorf("%w: field %q value %g outside [%g, %g]",
				ErrOutOfRange, def.Field, value, def.Min, def.Max)
		}
		if err := setScalarField(m, def.Field, value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Encode is the inverse of Decode with the same scale factors. The scripted
// test device uses it to lay measurements out as register words, and the
// decode round-trip property is checked against it.
func Encode(m Measurement, regMap RegisterMap) (map[string][]uint16, error) {
	words := make(map[string][]uint16, len(regMap.Registers))
	for _, def := range regMap.Registers {
		var raw uint64
		if def.Counter {
			value, err := counterField(m, def.Field)
			if err != nil {
				return nil, err
			}
			raw = value
		} else {
			value, err := scalarField(m, def.Field)
			if err != nil {
				return nil, err
			}
			raw = rawFromValue(value/def.Scale, def)
		}
		words[def.Field] = splitWords(raw, def.Words(), def.WordOrder)
	}
	return words, nil
}

func combineWords(words []uint16, order WordOrder) uint64 {
	var raw uint64
	if order == WordOrderLittleEndian {
		for i := len(words) - 1; i >= 0; i-- {
			raw = raw<<16 | uint64(words[i])
		}
	} else {
		for _, w := range words {
			raw = raw<<16 | uint64(w)
		}
	}
	return raw
}

func splitWords(raw uint64, count uint16, order WordOrder) []uint16 {
	words := make([]uint16, count)
	for i := int(count) - 1; i >= 0; i-- {
		words[i] = uint16(raw & 0xffff)
		raw >>= 16
	}
	if order == WordOrderLittleEndian {
		for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
	}
	return words
}

func typedValue(raw uint64, def RegisterDef) float64 {
	switch def.Encoding {
	case EncodingInt16:
		return float64(int16(raw))
	case EncodingInt32:
		return float64(int32(raw))
	case EncodingUint32:
		return float64(uint32(raw))
	default:
		return float64(uint16(raw))
	}
}

func rawFromValue(value float64, def RegisterDef) uint64 {
	rounded := int64(math.Round(value))
	switch def.Encoding {
	case EncodingInt16:
		return uint64(uint16(int16(rounded)))
	case EncodingInt32:
		return uint64(uint32(int32(rounded)))
	case EncodingUint32:
		return uint64(uint32(rounded))
	default:
		return uint64(uint16(rounded))
	}
}

func setScalarField(m *Measurement, field string, value float64) error {
	switch field {
	case FieldVoltageL1:
		m.VoltageVolt[0] = value
	case FieldVoltageL2:
		m.VoltageVolt[1] = value
	case FieldVoltageL3:
		m.VoltageVolt[2] = value
	case FieldCurrentL1:
		m.CurrentAmp[0] = value
	case FieldCurrentL2:
		m.CurrentAmp[1] = value
	case FieldCurrentL3:
		m.CurrentAmp[2] = value
	case FieldActivePower:
		m.ActivePowerWatt = value
	case FieldReactivePower:
		m.ReactivePowerVAR = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrIncomplete, field)
	}
	return nil
}

func scalarField(m Measurement, field string) (float64, error) {
	switch field {
	case FieldVoltageL1:
		return m.VoltageVolt[0], nil
	case FieldVoltageL2:
		return m.VoltageVolt[1], nil
	case FieldVoltageL3:
		return m.VoltageVolt[2], nil
	case FieldCurrentL1:
		return m.CurrentAmp[0], nil
	case FieldCurrentL2:
		return m.CurrentAmp[1], nil
	case FieldCurrentL3:
		return m.CurrentAmp[2], nil
	case FieldActivePower:
		return m.ActivePowerWatt, nil
	case FieldReactivePower:
		return m.ReactivePowerVAR, nil
	default:
		return 0, fmt.Errorf("%w: unknown field %q", ErrIncomplete, field)
	}
}

func setCounterField(m *Measurement, field string, raw uint64) error {
	switch field {
	case FieldEnergyImported:
		m.EnergyImportedWh = raw
	case FieldEnergyExported:
		m.EnergyExportedWh = raw
	default:
		return fmt.Errorf("%w: unknown counter field %q", ErrIncomplete, field)
	}
	return nil
}

func counterField(m Measurement, field string) (uint64, error) {
	switch field {
	case FieldEnergyImported:
		return m.EnergyImportedWh, nil
	case FieldEnergyExported:
		return m.EnergyExportedWh, nil
	default:
		return 0, fmt.Errorf("%w: unknown counter field %q", ErrIncomplete, field)
	}
}
