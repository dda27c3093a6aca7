package models

import "github.com/shopspring/decimal"

// Instrument is a tradable stock and its last two quotes
type Instrument struct {
	Symbol        string
	Name          string
	Price         decimal.Decimal
	PreviousPrice decimal.Decimal
}

// Performance summarises a user's open positions
type Performance struct {
	TotalInvestment   decimal.Decimal
	CurrentValue      decimal.Decimal
	ProfitLoss        decimal.Decimal
	ProfitLossPercent decimal.Decimal
	// Unpriced lists held symbols the registry no longer quotes. They count
	// toward TotalInvestment but not CurrentValue.
	Unpriced []string
}
