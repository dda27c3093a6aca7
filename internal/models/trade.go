package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side tells whether a trade bought or sold shares
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts BUY or SELL in any case
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown trade side %q", s)
}

// Transaction is an executed buy or sell. It is never modified once recorded.
type Transaction struct {
	ID        int
	UserID    int
	Symbol    string
	Side      Side
	Quantity  int
	Price     decimal.Decimal // price per share at execution
	Timestamp time.Time
}

// Total is quantity × price
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
}
