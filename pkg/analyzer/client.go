package analyzer

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// PowerAnalyzerReader is the read-only view of the analyzer. The connection
// is exclusively owned by a single caller: requests are never pipelined and
// never issued concurrently.
type PowerAnalyzerReader interface {
	Open() error
	Close() error
	// ReadRawSample performs one full poll cycle over all register blocks.
	ReadRawSample() (*RawSample, error)
	// ReadMeasurement is ReadRawSample followed by Decode.
	ReadMeasurement() (*Measurement, error)
	RegisterMap() RegisterMap
}

// Instrument receives the duration of every protocol round trip.
type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

type modbusPowerAnalyzerReader struct {
	client     *modbus.ModbusClient
	regMap     RegisterMap
	blocks     []ReadBlock
	instrument []Instrument
	logger     *zap.Logger
}

// CreatePowerAnalyzerModbusReader builds a reader over Modbus TCP. The
// register map is validated and split into contiguous read blocks up front;
// each block becomes one request per poll cycle, issued sequentially.
// Transaction id matching on responses is enforced by the modbus client.
func CreatePowerAnalyzerModbusReader(host string, port uint, unitId uint8, timeout time.Duration,
	regMap RegisterMap, logger *zap.Logger, instrumentation *Instrument) (PowerAnalyzerReader, error) {

	if err := regMap.Validate(); err != nil {
		return nil, err
	}
	blocks, err := regMap.Plan(MaxReadWords)
	if err != nil {
		return nil, err
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(unitId); err != nil {
		return nil, err
	}

	var inst []Instrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "analyzer")).With(zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &modbusPowerAnalyzerReader{
		client:     client,
		regMap:     regMap,
		blocks:     blocks,
		instrument: inst,
		logger:     logger,
	}, nil
}

func (reader *modbusPowerAnalyzerReader) Open() error {
	if err := reader.client.Open(); err != nil {
		return wrapErr(ErrConnection, err)
	}
	return nil
}

func (reader *modbusPowerAnalyzerReader) Close() error {
	return reader.client.Close()
}

func (reader *modbusPowerAnalyzerReader) RegisterMap() RegisterMap {
	return reader.regMap
}

func (reader *modbusPowerAnalyzerReader) ReadRawSample() (*RawSample, error) {
	sample := &RawSample{
		Timestamp: time.Now(),
		Words:     make(map[string][]uint16, len(reader.regMap.Registers)),
	}
	for _, block := range reader.blocks {
		words, err := reader.readRegisters(block.Start, block.Count)
		if err != nil {
			return nil, err
		}
		if len(words) != int(block.Count) {
			return nil, fmt.Errorf("%w: block 0x%04x returned %d words, want %d",
				ErrTransport, block.Start, len(words), block.Count)
		}
		for _, def := range block.Fields {
			offset := def.Address - block.Start
			sample.Words[def.Field] = words[offset : offset+def.Words()]
		}
	}
	return sample, nil
}

func (reader *modbusPowerAnalyzerReader) ReadMeasurement() (*Measurement, error) {
	sample, err := reader.ReadRawSample()
	if err != nil {
		return nil, err
	}
	return Decode(*sample, reader.regMap)
}

func (reader *modbusPowerAnalyzerReader) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", reader.instrument)()
	words, err := reader.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, classifyReadError(err)
	}
	return words, nil
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *Instrument {
	if logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Duration("took", readTime))
		},
	}
}
