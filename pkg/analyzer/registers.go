package analyzer

import (
	"fmt"
	"sort"
)

// MaxReadWords is the protocol limit for a single read-holding-registers
// request (Modbus function 0x03).
const MaxReadWords = 125

// Canonical measurement fields. A register map must define all of them.
const (
	FieldVoltageL1      = "voltage_l1"
	FieldVoltageL2      = "voltage_l2"
	FieldVoltageL3      = "voltage_l3"
	FieldCurrentL1      = "current_l1"
	FieldCurrentL2      = "current_l2"
	FieldCurrentL3      = "current_l3"
	FieldActivePower    = "active_power"
	FieldReactivePower  = "reactive_power"
	FieldEnergyImported = "energy_imported"
	FieldEnergyExported = "energy_exported"
)

func CanonicalFields() []string {
	return []string{
		FieldVoltageL1, FieldVoltageL2, FieldVoltageL3,
		FieldCurrentL1, FieldCurrentL2, FieldCurrentL3,
		FieldActivePower, FieldReactivePower,
		FieldEnergyImported, FieldEnergyExported,
	}
}

type Encoding int

const (
	EncodingUint16 Encoding = iota
	EncodingInt16
	EncodingUint32
	EncodingInt32
)

func (e Encoding) Words() uint16 {
	switch e {
	case EncodingUint32, EncodingInt32:
		return 2
	default:
		return 1
	}
}

func (e Encoding) Bits() uint {
	return uint(e.Words()) * 16
}

func (e Encoding) signed() bool {
	return e == EncodingInt16 || e == EncodingInt32
}

// WordOrder is the order of 16-bit words within a multi-word register pair.
// It is device-specific, so it is carried per register map entry.
type WordOrder int

const (
	// WordOrderBigEndian: most significant word first (documented default).
	WordOrderBigEndian WordOrder = iota
	// WordOrderLittleEndian: least significant word first. Some firmware
	// revisions of this device class swap the pair.
	WordOrderLittleEndian
)

// RegisterDef describes one field of the register map.
type RegisterDef struct {
	Field     string
	Address   uint16
	Encoding  Encoding
	WordOrder WordOrder
	// Scale converts the raw integer value to physical units.
	Scale float64
	// Min/Max validate the scaled value. Both zero disables the check
	// (cumulative counters carry no plausible static range).
	Min float64
	Max float64
	// Counter marks a wrapping cumulative counter. Counter fields are kept
	// as raw unsigned integers and never scaled.
	Counter bool
}

func (d RegisterDef) Words() uint16 {
	return d.Encoding.Words()
}

func (d RegisterDef) hasRange() bool {
	return d.Min != 0 || d.Max != 0
}

// RegisterMap is the static register layout of one analyzer model.
type RegisterMap struct {
	Registers []RegisterDef
}

// DefaultRegisterMap returns the documented layout of the PA330 three-phase
// power analyzer. Voltages and currents are 16-bit with decimal scaling,
// power values are signed 32-bit pairs (positive = grid consumption,
// negative = production), energy counters are unsigned 32-bit Wh totals.
func DefaultRegisterMap() RegisterMap {
	return RegisterMap{Registers: []RegisterDef{
		{Field: FieldVoltageL1, Address: 0x0000, Encoding: EncodingUint16, Scale: 0.1, Min: 0, Max: 300},
		{Field: FieldVoltageL2, Address: 0x0001, Encoding: EncodingUint16, Scale: 0.1, Min: 0, Max: 300},
		{Field: FieldVoltageL3, Address: 0x0002, Encoding: EncodingUint16, Scale: 0.1, Min: 0, Max: 300},
		{Field: FieldCurrentL1, Address: 0x0003, Encoding: EncodingUint16, Scale: 0.01, Min: 0, Max: 200},
		{Field: FieldCurrentL2, Address: 0x0004, Encoding: EncodingUint16, Scale: 0.01, Min: 0, Max: 200},
		{Field: FieldCurrentL3, Address: 0x0005, Encoding: EncodingUint16, Scale: 0.01, Min: 0, Max: 200},
		{Field: FieldActivePower, Address: 0x0006, Encoding: EncodingInt32, Scale: 1, Min: -150000, Max: 150000},
		{Field: FieldReactivePower, Address: 0x0008, Encoding: EncodingInt32, Scale: 1, Min: -150000, Max: 150000},
		{Field: FieldEnergyImported, Address: 0x0034, Encoding: EncodingUint32, Scale: 1, Counter: true},
		{Field: FieldEnergyExported, Address: 0x0036, Encoding: EncodingUint32, Scale: 1, Counter: true},
	}}
}

// CounterWidthBits returns the register width of the energy counters.
func (m RegisterMap) CounterWidthBits() uint {
	for _, def := range m.Registers {
		if def.Counter {
			return def.Encoding.Bits()
		}
	}
	return 32
}

// Validate checks the map defines every canonical field exactly once, with
// sane scales and no overlapping addresses.
func (m RegisterMap) Validate() error {
	seen := make(map[string]bool, len(m.Registers))
	for _, def := range m.Registers {
		if seen[def.Field] {
			return fmt.Errorf("register map: duplicate field %q", def.Field)
		}
		seen[def.Field] = true
		if def.Scale == 0 {
			return fmt.Errorf("register map: field %q has zero scale", def.Field)
		}
		if def.hasRange() && def.Min >= def.Max {
			return fmt.Errorf("register map: field %q has inverted range", def.Field)
		}
	}
	for _, field := range CanonicalFields() {
		if !seen[field] {
			return fmt.Errorf("register map: missing field %q", field)
		}
	}
	if _, err := m.Plan(MaxReadWords); err != nil {
		return err
	}
	return nil
}

// ReadBlock is one contiguous read request covering one or more fields.
type ReadBlock struct {
	Start  uint16
	Count  uint16
	Fields []RegisterDef
}

// Plan groups the register map into contiguous read blocks, splitting
// whenever a gap appears or a block would exceed maxWords. Blocks are issued
// as sequential requests on the same connection.
func (m RegisterMap) Plan(maxWords uint16) ([]ReadBlock, error) {
	if len(m.Registers) == 0 {
		return nil, fmt.Errorf("register map: empty")
	}
	defs := make([]RegisterDef, len(m.Registers))
	copy(defs, m.Registers)
	sort.Slice(defs, func(i, j int) bool { return defs[i].Address < defs[j].Address })

	var blocks []ReadBlock
	for _, def := range defs {
		if def.Words() > maxWords {
			return nil, fmt.Errorf("register map: field %q wider than a single request", def.Field)
		}
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			end := last.Start + last.Count
			if def.Address < end {
				return nil, fmt.Errorf("register map: field %q overlaps previous entry", def.Field)
			}
			if def.Address == end && last.Count+def.Words() <= maxWords {
				last.Count += def.Words()
				last.Fields = append(last.Fields, def)
				continue
			}
		}
		blocks = append(blocks, ReadBlock{
			Start:  def.Address,
			Count:  def.Words(),
			Fields: []RegisterDef{def},
		})
	}
	return blocks, nil
}
