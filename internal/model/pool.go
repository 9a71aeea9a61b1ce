package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// PoolState is the reserve pair of one constant-product pool at snapshot time.
// ReserveIn is the pool balance of the base token (the token a round trip
// starts and ends with) and ReserveOut the balance of the quote token.
type PoolState struct {
	id         string
	reserveIn  *big.Int
	reserveOut *big.Int
}

// NewPoolState copies the reserves so the caller cannot mutate the snapshot afterwards.
func NewPoolState(id string, reserveIn, reserveOut *big.Int) (PoolState, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PoolState{}, fmt.Errorf("pool id is required")
	}
	if reserveIn == nil || reserveOut == nil {
		return PoolState{}, fmt.Errorf("pool %s: %w", id, ErrNilReserve)
	}
	if reserveIn.Sign() < 0 || reserveOut.Sign() < 0 {
		return PoolState{}, fmt.Errorf("pool %s: %w", id, ErrNegativeReserve)
	}
	return PoolState{
		id:         id,
		reserveIn:  new(big.Int).Set(reserveIn),
		reserveOut: new(big.Int).Set(reserveOut),
	}, nil
}

// MustPoolState is NewPoolState for literals in tests and fixtures.
func MustPoolState(id string, reserveIn, reserveOut int64) PoolState {
	p, err := NewPoolState(id, big.NewInt(reserveIn), big.NewInt(reserveOut))
	if err != nil {
		panic(err)
	}
	return p
}

func (p PoolState) ID() string { return p.id }

// ReserveIn returns a copy of the base token reserve.
func (p PoolState) ReserveIn() *big.Int { return copyOrZero(p.reserveIn) }

// ReserveOut returns a copy of the quote token reserve.
func (p PoolState) ReserveOut() *big.Int { return copyOrZero(p.reserveOut) }

// ReserveInFloat and ReserveOutFloat are the continuous views used by the optimizer.
func (p PoolState) ReserveInFloat() float64  { return toFloat(p.reserveIn) }
func (p PoolState) ReserveOutFloat() float64 { return toFloat(p.reserveOut) }

// Degenerate reports whether either side of the pool is empty.
func (p PoolState) Degenerate() bool {
	return p.reserveIn == nil || p.reserveOut == nil || p.reserveIn.Sign() == 0 || p.reserveOut.Sign() == 0
}

type poolStateJSON struct {
	ID         string `json:"id"`
	ReserveIn  string `json:"reserve_in"`
	ReserveOut string `json:"reserve_out"`
}

// MarshalJSON encodes reserves as decimal strings.
func (p PoolState) MarshalJSON() ([]byte, error) {
	return json.Marshal(poolStateJSON{
		ID:         p.id,
		ReserveIn:  p.ReserveIn().String(),
		ReserveOut: p.ReserveOut().String(),
	})
}

// UnmarshalJSON decodes a PoolState and applies the same checks as NewPoolState.
func (p *PoolState) UnmarshalJSON(data []byte) error {
	var raw poolStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	reserveIn, err := ParseAmount(raw.ReserveIn)
	if err != nil {
		return fmt.Errorf("pool %s reserve_in: %w", raw.ID, err)
	}
	reserveOut, err := ParseAmount(raw.ReserveOut)
	if err != nil {
		return fmt.Errorf("pool %s reserve_out: %w", raw.ID, err)
	}
	parsed, err := NewPoolState(raw.ID, reserveIn, reserveOut)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseAmount parses a non-negative base-10 integer amount.
func ParseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, ErrNegativeReserve
	}
	return parsed, nil
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
