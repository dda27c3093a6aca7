package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account holder with cash and stock positions
type User struct {
	ID       int
	Username string
	Balance  decimal.Decimal
	Holdings []Holding
}

// Holding is a user's position in one instrument
type Holding struct {
	Symbol       string
	Quantity     int
	AvgPrice     decimal.Decimal // cost basis per share
	PurchaseDate time.Time       // day the position was opened
}

// Cost is quantity × average price
func (h Holding) Cost() decimal.Decimal {
	return h.AvgPrice.Mul(decimal.NewFromInt(int64(h.Quantity)))
}

// Holding returns the position in symbol, matched case-insensitively.
func (u *User) Holding(symbol string) (Holding, bool) {
	i := u.holdingIndex(symbol)
	if i < 0 {
		return Holding{}, false
	}
	return u.Holdings[i], true
}

// SetHolding inserts or replaces the position for h.Symbol. A zero quantity
// removes the position.
func (u *User) SetHolding(h Holding) {
	i := u.holdingIndex(h.Symbol)
	switch {
	case i < 0 && h.Quantity > 0:
		u.Holdings = append(u.Holdings, h)
	case i >= 0 && h.Quantity > 0:
		u.Holdings[i] = h
	case i >= 0:
		u.Holdings = append(u.Holdings[:i], u.Holdings[i+1:]...)
	}
}

func (u *User) holdingIndex(symbol string) int {
	for i, h := range u.Holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no holdings storage with u
func (u User) Clone() User {
	if u.Holdings != nil {
		u.Holdings = append([]Holding(nil), u.Holdings...)
	}
	return u
}
