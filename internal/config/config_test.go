package config

import (
	"testing"

	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegisterMapWhenUnconfigured(t *testing.T) {

	require := require.New(t)

	cfg := Config{}
	regMap, err := cfg.AnalyzerRegisterMap()
	require.NoError(err)
	assert.Equal(t, analyzer.DefaultRegisterMap(), regMap)
}

func TestRegisterMapOverride(t *testing.T) {

	require := require.New(t)

	cfg := Config{RegisterMap: []RegisterEntryConfig{
		{Field: analyzer.FieldVoltageL1, Address: 0x10, Scale: 0.1, Max: 300},
		{Field: analyzer.FieldVoltageL2, Address: 0x11, Scale: 0.1, Max: 300},
		{Field: analyzer.FieldVoltageL3, Address: 0x12, Scale: 0.1, Max: 300},
		{Field: analyzer.FieldCurrentL1, Address: 0x13, Scale: 0.01, Max: 200},
		{Field: analyzer.FieldCurrentL2, Address: 0x14, Scale: 0.01, Max: 200},
		{Field: analyzer.FieldCurrentL3, Address: 0x15, Scale: 0.01, Max: 200},
		{Field: analyzer.FieldActivePower, Address: 0x16, Encoding: "int32", Min: -100000, Max: 100000},
		{Field: analyzer.FieldReactivePower, Address: 0x18, Encoding: "int32", Min: -100000, Max: 100000},
		// this firmware revision swaps the energy counter word order
		{Field: analyzer.FieldEnergyImported, Address: 0x34, Encoding: "uint32", WordOrder: "little", Counter: true},
		{Field: analyzer.FieldEnergyExported, Address: 0x36, Encoding: "uint32", WordOrder: "little", Counter: true},
	}}

	regMap, err := cfg.AnalyzerRegisterMap()
	require.NoError(err)
	require.Len(regMap.Registers, 10)
	assert.Equal(t, analyzer.WordOrderLittleEndian, regMap.Registers[8].WordOrder)
	assert.Equal(t, float64(1), regMap.Registers[8].Scale)

	blocks, err := regMap.Plan(analyzer.MaxReadWords)
	require.NoError(err)
	assert.Len(t, blocks, 2)
}

func TestRegisterMapOverrideRejectsUnknownEncoding(t *testing.T) {

	cfg := Config{RegisterMap: []RegisterEntryConfig{
		{Field: analyzer.FieldVoltageL1, Address: 0x10, Encoding: "float64"},
	}}

	_, err := cfg.AnalyzerRegisterMap()
	assert.Error(t, err)
}

func TestRegisterMapOverrideRejectsIncompleteMap(t *testing.T) {

	cfg := Config{RegisterMap: []RegisterEntryConfig{
		{Field: analyzer.FieldVoltageL1, Address: 0x10, Scale: 0.1, Max: 300},
	}}

	_, err := cfg.AnalyzerRegisterMap()
	assert.Error(t, err)
}

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("GridWatch")
	require.NoError(t, err)
	assert.Equal(t, "gridwatch", topic)

	_, err = CheckMQTTTopic("grid/watch")
	assert.Error(t, err)
}
