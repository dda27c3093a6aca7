package textfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	// local date-time without zone; trailing zero fractions are dropped
	timestampLayout = "2006-01-02T15:04:05.999999999"
)

// accepted when reading, most precise first
var timestampLayouts = []string{timestampLayout, "2006-01-02T15:04"}

// HoldingRecord is a holding row, which names its owner
type HoldingRecord struct {
	UserID int
	models.Holding
}

func EncodeUser(u models.User) string {
	return strings.Join([]string{strconv.Itoa(u.ID), u.Username, u.Balance.String()}, ",")
}

func DecodeUser(line string) (models.User, error) {
	f, err := fields(line, 3)
	if err != nil {
		return models.User{}, err
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	balance, err := decimal.NewFromString(f[2])
	if err != nil {
		return models.User{}, fmt.Errorf("balance: %w", err)
	}
	if f[1] == "" {
		return models.User{}, fmt.Errorf("empty username")
	}
	if balance.IsNegative() {
		return models.User{}, fmt.Errorf("balance %s is negative", balance)
	}
	return models.User{ID: id, Username: f[1], Balance: balance}, nil
}

func EncodeInstrument(in models.Instrument) string {
	return strings.Join([]string{in.Symbol, in.Name, in.Price.String(), in.PreviousPrice.String()}, ",")
}

func DecodeInstrument(line string) (models.Instrument, error) {
	f, err := fields(line, 4)
	if err != nil {
		return models.Instrument{}, err
	}
	price, err := decimal.NewFromString(f[2])
	if err != nil {
		return models.Instrument{}, fmt.Errorf("price: %w", err)
	}
	prev, err := decimal.NewFromString(f[3])
	if err != nil {
		return models.Instrument{}, fmt.Errorf("previous price: %w", err)
	}
	if !price.IsPositive() {
		return models.Instrument{}, fmt.Errorf("price %s is not positive", price)
	}
	return models.Instrument{Symbol: f[0], Name: f[1], Price: price, PreviousPrice: prev}, nil
}

func EncodeHolding(userID int, h models.Holding) string {
	return strings.Join([]string{
		strconv.Itoa(userID),
		h.Symbol,
		strconv.Itoa(h.Quantity),
		h.AvgPrice.String(),
		h.PurchaseDate.Format(dateLayout),
	}, ",")
}

func DecodeHolding(line string) (HoldingRecord, error) {
	f, err := fields(line, 5)
	if err != nil {
		return HoldingRecord{}, err
	}
	userID, err := strconv.Atoi(f[0])
	if err != nil {
		return HoldingRecord{}, fmt.Errorf("user id: %w", err)
	}
	qty, err := strconv.Atoi(f[2])
	if err != nil {
		return HoldingRecord{}, fmt.Errorf("quantity: %w", err)
	}
	if qty <= 0 {
		return HoldingRecord{}, fmt.Errorf("quantity %d is not positive", qty)
	}
	avg, err := decimal.NewFromString(f[3])
	if err != nil {
		return HoldingRecord{}, fmt.Errorf("average price: %w", err)
	}
	if avg.IsNegative() {
		return HoldingRecord{}, fmt.Errorf("average price %s is negative", avg)
	}
	day, err := time.ParseInLocation(dateLayout, f[4], time.Local)
	if err != nil {
		return HoldingRecord{}, fmt.Errorf("purchase date: %w", err)
	}
	return HoldingRecord{
		UserID:  userID,
		Holding: models.Holding{Symbol: f[1], Quantity: qty, AvgPrice: avg, PurchaseDate: day},
	}, nil
}

func EncodeTransaction(tx models.Transaction) string {
	return strings.Join([]string{
		strconv.Itoa(tx.ID),
		strconv.Itoa(tx.UserID),
		tx.Symbol,
		string(tx.Side),
		strconv.Itoa(tx.Quantity),
		tx.Price.String(),
		tx.Timestamp.Format(timestampLayout),
	}, ",")
}

func DecodeTransaction(line string) (models.Transaction, error) {
	f, err := fields(line, 7)
	if err != nil {
		return models.Transaction{}, err
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	userID, err := strconv.Atoi(f[1])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("user id: %w", err)
	}
	side, err := models.ParseSide(f[3])
	if err != nil {
		return models.Transaction{}, err
	}
	qty, err := strconv.Atoi(f[4])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("quantity: %w", err)
	}
	if qty <= 0 {
		return models.Transaction{}, fmt.Errorf("quantity %d is not positive", qty)
	}
	price, err := decimal.NewFromString(f[5])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("price: %w", err)
	}
	ts, err := parseTimestamp(f[6])
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		ID:        id,
		UserID:    userID,
		Symbol:    f[2],
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Timestamp: ts,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: %w", err)
}

// fields splits a record and trims every field. Extra trailing fields are
// tolerated, missing ones are not.
func fields(line string, n int) ([]string, error) {
	f := strings.Split(line, ",")
	if len(f) < n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(f))
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	return f, nil
}
