package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/atharvakonge/trading-ledger/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type userRow struct {
	ID       int             `db:"id"`
	Username string          `db:"username"`
	Balance  decimal.Decimal `db:"balance"`
}

type instrumentRow struct {
	Symbol        string          `db:"symbol"`
	Position      int             `db:"position"`
	Name          string          `db:"name"`
	Price         decimal.Decimal `db:"price"`
	PreviousPrice decimal.Decimal `db:"previous_price"`
}

type holdingRow struct {
	UserID       int             `db:"user_id"`
	Symbol       string          `db:"symbol"`
	Position     int             `db:"position"`
	Quantity     int             `db:"quantity"`
	AvgPrice     decimal.Decimal `db:"avg_price"`
	PurchaseDate time.Time       `db:"purchase_date"`
}

type transactionRow struct {
	ID         int             `db:"id"`
	UserID     int             `db:"user_id"`
	Symbol     string          `db:"symbol"`
	Side       string          `db:"side"`
	Quantity   int             `db:"quantity"`
	Price      decimal.Decimal `db:"price"`
	ExecutedAt time.Time       `db:"executed_at"`
}

// Store keeps the ledger in the tables created by RunMigrations
type Store struct {
	db     *sqlx.DB
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(db *sqlx.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	var instruments []instrumentRow
	if err := s.db.SelectContext(ctx, &instruments,
		`SELECT symbol, position, name, price, previous_price FROM instruments ORDER BY position, symbol`); err != nil {
		return store.Snapshot{}, fmt.Errorf("error loading instruments: %w", err)
	}
	for _, r := range instruments {
		snap.Instruments = append(snap.Instruments, models.Instrument{
			Symbol:        r.Symbol,
			Name:          r.Name,
			Price:         r.Price,
			PreviousPrice: r.PreviousPrice,
		})
	}

	var users []userRow
	if err := s.db.SelectContext(ctx, &users,
		`SELECT id, username, balance FROM users ORDER BY id`); err != nil {
		return store.Snapshot{}, fmt.Errorf("error loading users: %w", err)
	}
	index := make(map[int]int, len(users))
	for i, r := range users {
		index[r.ID] = i
		snap.Users = append(snap.Users, models.User{ID: r.ID, Username: r.Username, Balance: r.Balance})
	}

	var holdings []holdingRow
	if err := s.db.SelectContext(ctx, &holdings,
		`SELECT user_id, symbol, position, quantity, avg_price, purchase_date
		 FROM holdings ORDER BY user_id, position, symbol`); err != nil {
		return store.Snapshot{}, fmt.Errorf("error loading holdings: %w", err)
	}
	for _, r := range holdings {
		i, ok := index[r.UserID]
		if !ok {
			s.logger.Printf("Skipping %s holding of unknown user %d", r.Symbol, r.UserID)
			continue
		}
		snap.Users[i].Holdings = append(snap.Users[i].Holdings, models.Holding{
			Symbol:       r.Symbol,
			Quantity:     r.Quantity,
			AvgPrice:     r.AvgPrice,
			PurchaseDate: localWallClock(r.PurchaseDate),
		})
	}

	var txs []transactionRow
	if err := s.db.SelectContext(ctx, &txs,
		`SELECT id, user_id, symbol, side, quantity, price, executed_at FROM transactions ORDER BY id`); err != nil {
		return store.Snapshot{}, fmt.Errorf("error loading transactions: %w", err)
	}
	for _, r := range txs {
		side, err := models.ParseSide(r.Side)
		if err != nil {
			s.logger.Printf("Skipping transaction %d: %v", r.ID, err)
			continue
		}
		snap.Transactions = append(snap.Transactions, models.Transaction{
			ID:        r.ID,
			UserID:    r.UserID,
			Symbol:    r.Symbol,
			Side:      side,
			Quantity:  r.Quantity,
			Price:     r.Price,
			Timestamp: localWallClock(r.ExecutedAt),
		})
	}

	return snap, nil
}

// Save rewrites the tables of the selected parts in one SQL transaction
func (s *Store) Save(ctx context.Context, snap store.Snapshot, parts store.Part) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if we don't commit

	if parts.Has(store.Instruments) {
		if err := saveInstruments(ctx, tx, snap.Instruments); err != nil {
			return fmt.Errorf("error saving instruments: %w", err)
		}
	}
	if parts.Has(store.Users) {
		if err := saveUsers(ctx, tx, snap.Users); err != nil {
			return fmt.Errorf("error saving users: %w", err)
		}
	}
	if parts.Has(store.Holdings) {
		if err := saveHoldings(ctx, tx, snap.Users); err != nil {
			return fmt.Errorf("error saving holdings: %w", err)
		}
	}
	if parts.Has(store.Transactions) {
		if err := saveTransactions(ctx, tx, snap.Transactions); err != nil {
			return fmt.Errorf("error saving transactions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func saveInstruments(ctx context.Context, tx *sqlx.Tx, instruments []models.Instrument) error {
	symbols := make([]string, len(instruments))
	for i, in := range instruments {
		symbols[i] = in.Symbol
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM instruments WHERE NOT (symbol = ANY($1))`, pq.Array(symbols)); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO instruments (symbol, position, name, price, previous_price)
		VALUES (:symbol, :position, :name, :price, :previous_price)
		ON CONFLICT (symbol) DO UPDATE SET
			position = EXCLUDED.position,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			previous_price = EXCLUDED.previous_price`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, in := range instruments {
		row := instrumentRow{
			Symbol:        in.Symbol,
			Position:      i,
			Name:          in.Name,
			Price:         in.Price,
			PreviousPrice: in.PreviousPrice,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// saveUsers upserts rows instead of deleting them, since holdings and
// transactions reference users.
func saveUsers(ctx context.Context, tx *sqlx.Tx, users []models.User) error {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = int64(u.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM users WHERE NOT (id = ANY($1))`, pq.Array(ids)); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO users (id, username, balance)
		VALUES (:id, :username, :balance)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			balance = EXCLUDED.balance`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, userRow{ID: u.ID, Username: u.Username, Balance: u.Balance}); err != nil {
			return err
		}
	}
	return nil
}

func saveHoldings(ctx context.Context, tx *sqlx.Tx, users []models.User) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO holdings (user_id, symbol, position, quantity, avg_price, purchase_date)
		VALUES (:user_id, :symbol, :position, :quantity, :avg_price, :purchase_date)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range users {
		for i, h := range u.Holdings {
			row := holdingRow{
				UserID:       u.ID,
				Symbol:       h.Symbol,
				Position:     i,
				Quantity:     h.Quantity,
				AvgPrice:     h.AvgPrice,
				PurchaseDate: wallClock(h.PurchaseDate),
			}
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// saveTransactions only inserts ids not stored yet; recorded transactions
// never change.
func saveTransactions(ctx context.Context, tx *sqlx.Tx, txs []models.Transaction) error {
	ids := make([]int64, len(txs))
	for i, t := range txs {
		ids[i] = int64(t.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE NOT (id = ANY($1))`, pq.Array(ids)); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO transactions (id, user_id, symbol, side, quantity, price, executed_at)
		VALUES (:id, :user_id, :symbol, :side, :quantity, :price, :executed_at)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range txs {
		row := transactionRow{
			ID:         t.ID,
			UserID:     t.UserID,
			Symbol:     t.Symbol,
			Side:       string(t.Side),
			Quantity:   t.Quantity,
			Price:      t.Price,
			ExecutedAt: wallClock(t.Timestamp),
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// DATE and TIMESTAMP columns carry no zone. Times are stored by their local
// wall clock and read back into the local zone.

func wallClock(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func localWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}
