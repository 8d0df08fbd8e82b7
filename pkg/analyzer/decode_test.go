package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {

	require := require.New(t)

	regMap := DefaultRegisterMap()
	m := Measurement{
		Timestamp:        time.Now(),
		VoltageVolt:      [3]float64{230.1, 229.8, 231.4},
		CurrentAmp:       [3]float64{5.42, 4.91, 5.17},
		ActivePowerWatt:  -1250,
		ReactivePowerVAR: 340,
		EnergyImportedWh: 55022,
		EnergyExportedWh: 277034,
	}

	words, err := Encode(m, regMap)
	require.NoError(err)

	decoded, err := Decode(RawSample{Timestamp: m.Timestamp, Words: words}, regMap)
	require.NoError(err)

	// scaled fields recover within the scale factor's precision
	for i := 0; i < 3; i++ {
		assert.InDelta(t, m.VoltageVolt[i], decoded.VoltageVolt[i], 0.1)
		assert.InDelta(t, m.CurrentAmp[i], decoded.CurrentAmp[i], 0.01)
	}
	assert.Equal(t, m.ActivePowerWatt, decoded.ActivePowerWatt)
	assert.Equal(t, m.ReactivePowerVAR, decoded.ReactivePowerVAR)
	assert.Equal(t, m.EnergyImportedWh, decoded.EnergyImportedWh)
	assert.Equal(t, m.EnergyExportedWh, decoded.EnergyExportedWh)

	// re-encoding the decoded measurement recovers the original raw words
	words2, err := Encode(*decoded, regMap)
	require.NoError(err)
	assert.Equal(t, words, words2)
}

func TestDecodeNegativePower(t *testing.T) {

	require := require.New(t)

	m := *TestMeasurement(-4000, 100, 200)
	words, err := Encode(m, DefaultRegisterMap())
	require.NoError(err)

	decoded, err := Decode(RawSample{Timestamp: m.Timestamp, Words: words}, DefaultRegisterMap())
	require.NoError(err)

	assert.Equal(t, float64(-4000), decoded.ActivePowerWatt)
	assert.Equal(t, float64(4000), decoded.ExportPowerWatt())
	assert.Equal(t, float64(0), decoded.ImportPowerWatt())
}

func TestDecodeWordOrder(t *testing.T) {

	// 0x12345678 split MSW-first vs LSW-first
	big := splitWords(0x12345678, 2, WordOrderBigEndian)
	little := splitWords(0x12345678, 2, WordOrderLittleEndian)

	assert.Equal(t, []uint16{0x1234, 0x5678}, big)
	assert.Equal(t, []uint16{0x5678, 0x1234}, little)

	assert.Equal(t, uint64(0x12345678), combineWords(big, WordOrderBigEndian))
	assert.Equal(t, uint64(0x12345678), combineWords(little, WordOrderLittleEndian))
}

func TestDecodeRejectsOutOfRange(t *testing.T) {

	require := require.New(t)

	regMap := DefaultRegisterMap()
	m := *TestMeasurement(320, 100, 200)
	words, err := Encode(m, regMap)
	require.NoError(err)

	// 512.0 V on L1 is far outside the 0-300 V device class range
	words[FieldVoltageL1] = []uint16{5120}

	_, err = Decode(RawSample{Timestamp: m.Timestamp, Words: words}, regMap)
	require.Error(err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeRejectsIncompleteSample(t *testing.T) {

	require := require.New(t)

	regMap := DefaultRegisterMap()
	m := *TestMeasurement(320, 100, 200)

	words, err := Encode(m, regMap)
	require.NoError(err)
	delete(words, FieldCurrentL2)

	_, err = Decode(RawSample{Timestamp: m.Timestamp, Words: words}, regMap)
	assert.ErrorIs(t, err, ErrIncomplete)

	words, err = Encode(m, regMap)
	require.NoError(err)
	words[FieldActivePower] = words[FieldActivePower][:1]

	_, err = Decode(RawSample{Timestamp: m.Timestamp, Words: words}, regMap)
	assert.ErrorIs(t, err, ErrIncomplete)
}
