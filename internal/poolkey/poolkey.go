// Package poolkey derives pool and receipt token identifiers. Identifiers are
// keccak256 digests over ABI-encoded arguments so they can be recomputed by
// any client from public inputs.
package poolkey

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// PoolID returns keccak256(abi.encode(uint256 odds, string gameID)). Odds are
// positive for every real pool; a negative value is encoded as an int256 so it
// cannot alias a positive one.
func PoolID(odds int64, gameID string) domain.PoolID {
	data := []byte(gameID)
	padded := (len(data) + 31) / 32 * 32

	var id domain.PoolID
	copy(id[:], ethcrypto.Keccak256(
		concatBytes(
			wordBytes(big.NewInt(odds)),
			wordBytes(big.NewInt(64)), // string head offset
			wordBytes(big.NewInt(int64(len(data)))),
			common.RightPadBytes(data, padded),
		),
	))
	return id
}

// TokenID returns keccak256(abi.encode(bytes32 poolID, uint8 side)).
func TokenID(poolID domain.PoolID, side domain.Side) domain.TokenID {
	var id domain.TokenID
	copy(id[:], ethcrypto.Keccak256(
		concatBytes(
			poolID[:],
			common.LeftPadBytes([]byte{byte(side)}, 32),
		),
	))
	return id
}

// TokenIDs returns the maker and taker receipt ids of a pool.
func TokenIDs(poolID domain.PoolID) (maker, taker domain.TokenID) {
	return TokenID(poolID, domain.SideMaker), TokenID(poolID, domain.SideTaker)
}

// NewPool returns an empty pool for (odds, gameID) with all ids derived.
func NewPool(odds int64, gameID string) domain.Pool {
	id := PoolID(odds, gameID)
	maker, taker := TokenIDs(id)
	return domain.NewPool(id, gameID, odds, maker, taker)
}

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// wordBytes encodes n as a 32-byte two's-complement word.
func wordBytes(n *big.Int) []byte {
	if n.Sign() < 0 {
		n = new(big.Int).Add(n, twoTo256)
	}
	return common.LeftPadBytes(n.Bytes(), 32)
}

func concatBytes(parts ...[]byte) []byte {
	var size int
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
