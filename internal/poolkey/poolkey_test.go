package poolkey

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

func TestPoolIDMatchesABIEncoding(t *testing.T) {
	uint256T, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	stringT, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		odds   int64
		gameID string
	}{
		{182, "1"},
		{250, "42"},
		{101, "a-game-id-longer-than-thirty-two-bytes-for-padding"},
	} {
		packed, err := abi.Arguments{{Type: uint256T}, {Type: stringT}}.Pack(big.NewInt(tc.odds), tc.gameID)
		require.NoError(t, err)

		got := PoolID(tc.odds, tc.gameID)
		assert.Equal(t, ethcrypto.Keccak256(packed), got[:], "odds=%d game=%s", tc.odds, tc.gameID)
	}
}

func TestPoolIDIsDeterministicAndDistinct(t *testing.T) {
	assert.Equal(t, PoolID(182, "1"), PoolID(182, "1"))
	assert.NotEqual(t, PoolID(182, "1"), PoolID(183, "1"))
	assert.NotEqual(t, PoolID(182, "1"), PoolID(182, "2"))
}

func TestNegativeOddsDoNotAliasPositive(t *testing.T) {
	assert.NotEqual(t, PoolID(182, "1"), PoolID(-182, "1"))

	int256T, err := abi.NewType("int256", "", nil)
	require.NoError(t, err)
	stringT, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: int256T}, {Type: stringT}}.Pack(big.NewInt(-182), "1")
	require.NoError(t, err)

	got := PoolID(-182, "1")
	assert.Equal(t, ethcrypto.Keccak256(packed), got[:])
}

func TestTokenIDsAreDistinct(t *testing.T) {
	a := PoolID(182, "1")
	b := PoolID(182, "2")

	makerA, takerA := TokenIDs(a)
	makerB, takerB := TokenIDs(b)

	ids := map[domain.TokenID]bool{makerA: true, takerA: true, makerB: true, takerB: true}
	assert.Len(t, ids, 4)

	again, _ := TokenIDs(a)
	assert.Equal(t, makerA, again)
}

func TestNewPool(t *testing.T) {
	p := NewPool(182, "1")
	assert.Equal(t, PoolID(182, "1"), p.ID)
	assert.Equal(t, TokenID(p.ID, domain.SideMaker), p.MakerTokenID)
	assert.Equal(t, TokenID(p.ID, domain.SideTaker), p.TakerTokenID)
	assert.Zero(t, p.MakerLiability)
}
