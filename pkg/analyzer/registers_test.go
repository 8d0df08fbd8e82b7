package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegisterMapPlan(t *testing.T) {

	require := require.New(t)

	regMap := DefaultRegisterMap()
	require.NoError(regMap.Validate())

	blocks, err := regMap.Plan(MaxReadWords)
	require.NoError(err)

	// instant block + energy counter block, two sequential round trips
	require.Len(blocks, 2)
	assert.Equal(t, uint16(0x0000), blocks[0].Start)
	assert.Equal(t, uint16(10), blocks[0].Count)
	assert.Equal(t, uint16(0x0034), blocks[1].Start)
	assert.Equal(t, uint16(4), blocks[1].Count)

	assert.Equal(t, uint(32), regMap.CounterWidthBits())
}

func TestPlanSplitsAtRequestLimit(t *testing.T) {

	require := require.New(t)

	// 130 contiguous single-word registers cannot fit one request
	regMap := RegisterMap{}
	for i := 0; i < 130; i++ {
		regMap.Registers = append(regMap.Registers, RegisterDef{
			Field:    fmt.Sprintf("reg_%d", i),
			Address:  uint16(i),
			Encoding: EncodingUint16,
			Scale:    1,
		})
	}

	blocks, err := regMap.Plan(MaxReadWords)
	require.NoError(err)
	require.Len(blocks, 2)
	assert.Equal(t, uint16(125), blocks[0].Count)
	assert.Equal(t, uint16(125), blocks[1].Start)
	assert.Equal(t, uint16(5), blocks[1].Count)
}

func TestPlanRejectsOverlap(t *testing.T) {

	regMap := RegisterMap{Registers: []RegisterDef{
		{Field: "a", Address: 0, Encoding: EncodingUint32, Scale: 1},
		{Field: "b", Address: 1, Encoding: EncodingUint16, Scale: 1},
	}}

	_, err := regMap.Plan(MaxReadWords)
	assert.Error(t, err)
}

func TestValidateRequiresCanonicalFields(t *testing.T) {

	regMap := DefaultRegisterMap()
	regMap.Registers = regMap.Registers[:len(regMap.Registers)-1]

	err := regMap.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), FieldEnergyExported)
}
