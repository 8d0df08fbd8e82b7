package analyzer

import (
	"sync"
	"time"
)

// TestPowerAnalyzerReader is a scripted in-process analyzer. Each scripted
// step answers one poll cycle, either with a measurement or with an error;
// the last step repeats once the script runs out.
type TestPowerAnalyzerReader struct {
	mu     sync.Mutex
	script []TestPollStep
	next   int

	OpenErr   error
	OpenCalls int
	Reads     int
}

type TestPollStep struct {
	Measurement *Measurement
	Err         error
}

func CreateTestPowerAnalyzerReader(script ...TestPollStep) *TestPowerAnalyzerReader {
	return &TestPowerAnalyzerReader{script: script}
}

// TestMeasurement returns a plausible three-phase sample with the given
// active power and raw energy counters.
func TestMeasurement(activePowerWatt float64, importedWh, exportedWh uint64) *Measurement {
	return &Measurement{
		Timestamp:        time.Now(),
		VoltageVolt:      [3]float64{230.1, 229.8, 231.4},
		CurrentAmp:       [3]float64{5.42, 4.91, 5.17},
		ActivePowerWatt:  activePowerWatt,
		ReactivePowerVAR: 120,
		EnergyImportedWh: importedWh,
		EnergyExportedWh: exportedWh,
	}
}

func (reader *TestPowerAnalyzerReader) Open() error {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.OpenCalls++
	return reader.OpenErr
}

func (reader *TestPowerAnalyzerReader) Close() error {
	return nil
}

func (reader *TestPowerAnalyzerReader) RegisterMap() RegisterMap {
	return DefaultRegisterMap()
}

func (reader *TestPowerAnalyzerReader) ReadRawSample() (*RawSample, error) {
	m, err := reader.ReadMeasurement()
	if err != nil {
		return nil, err
	}
	words, err := Encode(*m, DefaultRegisterMap())
	if err != nil {
		return nil, err
	}
	return &RawSample{Timestamp: m.Timestamp, Words: words}, nil
}

func (reader *TestPowerAnalyzerReader) ReadMeasurement() (*Measurement, error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.Reads++
	if len(reader.script) == 0 {
		return TestMeasurement(320.5, 55022, 277034), nil
	}
	step := reader.script[reader.next]
	if reader.next < len(reader.script)-1 {
		reader.next++
	}
	if step.Err != nil {
		return nil, step.Err
	}
	m := *step.Measurement
	return &m, nil
}

// ensure interface compliance
var _ PowerAnalyzerReader = (*TestPowerAnalyzerReader)(nil)
