package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiabilityTruncates(t *testing.T) {
	got, err := Liability(3200_000000, 182)
	require.NoError(t, err)
	assert.Equal(t, int64(5824_000000), got)

	got, err = Liability(1, 199)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = Liability(math.MaxInt64, 182)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	got, err := MulDiv(math.MaxInt64, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "36017.800000", FormatUnits(36_017_800_000))
	assert.Equal(t, "0.000001", FormatUnits(1))
	assert.Equal(t, "-1.500000", FormatUnits(-1_500_000))
}

func TestHash32JSON(t *testing.T) {
	h := Hash32{0xab, 0x01}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"0xab01000000000000000000000000000000000000000000000000000000000000"`, string(data))

	var back Hash32
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, h, back)

	_, err = ParseHash32("0x1234")
	assert.Error(t, err)
}

func TestPoolRedeemed(t *testing.T) {
	p := Pool{MakerSupply: 10, TakerSupply: 4, MakerPot: 20, TakerPot: 8}
	p = p.Redeemed(SideTaker, 1, 2)
	assert.Equal(t, int64(3), p.TakerSupply)
	assert.Equal(t, int64(6), p.TakerPot)
	assert.Equal(t, int64(2), p.PaidOut)
	assert.Equal(t, int64(10), p.MakerSupply)
}
