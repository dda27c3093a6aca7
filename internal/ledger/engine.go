// Package ledger keeps user balances, holdings and the trade log consistent.
//
// Every exported operation runs under one engine-wide lock, including the
// save that follows a mutation, so a buy or sell is observed either fully
// applied or not at all. A failed save leaves the in-memory change in place
// and is reported with an error wrapping ErrPersistence next to the result.
package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/atharvakonge/trading-ledger/internal/store"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine owns users, their holdings and the transaction log
type Engine struct {
	mu     sync.Mutex
	store  store.Store
	quotes *quotes.Registry
	now    func() time.Time
	logger *log.Logger

	users        []*models.User
	byID         map[int]*models.User
	transactions []models.Transaction
	nextUserID   int
	nextTxID     int
}

// Option customises an Engine
type Option func(*Engine)

// WithClock replaces time.Now for trade timestamps and purchase dates
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets where save failures and load warnings are written
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an empty engine. Call Load to read persisted state.
func New(st store.Store, reg *quotes.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		quotes:     reg,
		now:        time.Now,
		logger:     log.Default(),
		byID:       make(map[int]*models.User),
		nextUserID: 1,
		nextTxID:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Quotes returns the registry the engine prices trades with
func (e *Engine) Quotes() *quotes.Registry { return e.quotes }

// Load replaces the engine state with what the store holds. Stored
// instruments, if any, replace the registry content.
func (e *Engine) Load(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(snap.Instruments) > 0 {
		e.quotes.Replace(snap.Instruments)
	}

	e.users = e.users[:0]
	clear(e.byID)
	e.nextUserID, e.nextTxID = 1, 1
	for _, u := range snap.Users {
		if _, dup := e.byID[u.ID]; dup {
			e.logger.Printf("Skipping duplicate user id %d (%s)", u.ID, u.Username)
			continue
		}
		u := u.Clone()
		kept := u.Holdings[:0]
		for _, h := range u.Holdings {
			if h.Quantity <= 0 {
				e.logger.Printf("Dropping empty %s holding of user %d", h.Symbol, u.ID)
				continue
			}
			kept = append(kept, h)
		}
		u.Holdings = kept
		e.users = append(e.users, &u)
		e.byID[u.ID] = &u
		e.nextUserID = max(e.nextUserID, u.ID+1)
	}

	e.transactions = append([]models.Transaction(nil), snap.Transactions...)
	for _, tx := range e.transactions {
		e.nextTxID = max(e.nextTxID, tx.ID+1)
	}
	return nil
}

// SeedInstruments fills an empty registry and saves it. It does nothing when
// instruments are already known.
func (e *Engine) SeedInstruments(ctx context.Context, instruments []models.Instrument) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quotes.Len() > 0 {
		return nil
	}
	e.quotes.Replace(instruments)
	return e.persist(ctx, store.Instruments)
}

// RegisterUser opens an account with an initial cash balance.
func (e *Engine) RegisterUser(ctx context.Context, name string, initialBalance decimal.Decimal) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, ",\r\n") {
		return models.User{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.userByNameLocked(name); ok {
		return models.User{}, fmt.Errorf("%w: %s", ErrDuplicateUser, name)
	}
	if initialBalance.IsNegative() {
		return models.User{}, fmt.Errorf("%w: initial balance cannot be negative", ErrInvalidAmount)
	}

	u := &models.User{ID: e.nextUserID, Username: name, Balance: initialBalance}
	e.nextUserID++
	e.users = append(e.users, u)
	e.byID[u.ID] = u

	return u.Clone(), e.persist(ctx, store.Users)
}

// Deposit adds cash to a user's balance
func (e *Engine) Deposit(ctx context.Context, userID int, amount decimal.Decimal) (models.User, error) {
	if !amount.IsPositive() {
		return models.User{}, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return models.User{}, err
	}
	u.Balance = u.Balance.Add(amount)
	return u.Clone(), e.persist(ctx, store.Users)
}

// Withdraw removes cash from a user's balance
func (e *Engine) Withdraw(ctx context.Context, userID int, amount decimal.Decimal) (models.User, error) {
	if !amount.IsPositive() {
		return models.User{}, fmt.Errorf("%w: withdrawal must be positive", ErrInvalidAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return models.User{}, err
	}
	if amount.GreaterThan(u.Balance) {
		return models.User{}, fmt.Errorf("%w: withdrawal of %s exceeds balance %s", ErrInvalidAmount, amount, u.Balance)
	}
	u.Balance = u.Balance.Sub(amount)
	return u.Clone(), e.persist(ctx, store.Users)
}

// Buy purchases quantity shares at the current quote. The holding's average
// price is reweighted when the user already owns the symbol.
func (e *Engine) Buy(ctx context.Context, userID int, symbol string, quantity int) (models.Transaction, error) {
	if quantity <= 0 {
		return models.Transaction{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return models.Transaction{}, err
	}
	in, ok := e.quotes.FindBySymbol(symbol)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	qty := decimal.NewFromInt(int64(quantity))
	cost := in.Price.Mul(qty)
	if u.Balance.LessThan(cost) {
		return models.Transaction{}, fmt.Errorf("%w: required %s, available %s", ErrInsufficientFunds, cost.StringFixed(2), u.Balance.StringFixed(2))
	}

	now := e.clock()
	h, held := u.Holding(in.Symbol)
	if held {
		total := h.Quantity + quantity
		h.AvgPrice = h.Cost().Add(cost).Div(decimal.NewFromInt(int64(total)))
		h.Quantity = total
	} else {
		h = models.Holding{
			Symbol:       in.Symbol,
			Quantity:     quantity,
			AvgPrice:     in.Price,
			PurchaseDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		}
	}

	tx := models.Transaction{
		ID:        e.nextTxID,
		UserID:    u.ID,
		Symbol:    in.Symbol,
		Side:      models.SideBuy,
		Quantity:  quantity,
		Price:     in.Price,
		Timestamp: now,
	}

	u.Balance = u.Balance.Sub(cost)
	u.SetHolding(h)
	e.transactions = append(e.transactions, tx)
	e.nextTxID++

	return tx, e.persist(ctx, store.Users|store.Holdings|store.Transactions)
}

// Sell disposes of quantity shares at the current quote. Selling the whole
// position removes the holding.
func (e *Engine) Sell(ctx context.Context, userID int, symbol string, quantity int) (models.Transaction, error) {
	if quantity <= 0 {
		return models.Transaction{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return models.Transaction{}, err
	}
	in, ok := e.quotes.FindBySymbol(symbol)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	h, held := u.Holding(in.Symbol)
	if !held {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrNoHolding, in.Symbol)
	}
	if h.Quantity < quantity {
		return models.Transaction{}, fmt.Errorf("%w: own %d, selling %d", ErrInsufficientShares, h.Quantity, quantity)
	}

	proceeds := in.Price.Mul(decimal.NewFromInt(int64(quantity)))
	tx := models.Transaction{
		ID:        e.nextTxID,
		UserID:    u.ID,
		Symbol:    in.Symbol,
		Side:      models.SideSell,
		Quantity:  quantity,
		Price:     in.Price,
		Timestamp: e.clock(),
	}

	h.Quantity -= quantity
	u.Balance = u.Balance.Add(proceeds)
	u.SetHolding(h)
	e.transactions = append(e.transactions, tx)
	e.nextTxID++

	return tx, e.persist(ctx, store.Users|store.Holdings|store.Transactions)
}

// PortfolioPerformance values the user's open positions at current quotes.
// A holding whose symbol left the registry still counts as invested but adds
// nothing to the current value; it is listed in Unpriced.
func (e *Engine) PortfolioPerformance(userID int) (models.Performance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return models.Performance{}, err
	}
	return e.performanceLocked(u), nil
}

func (e *Engine) performanceLocked(u *models.User) models.Performance {
	var p models.Performance
	for _, h := range u.Holdings {
		p.TotalInvestment = p.TotalInvestment.Add(h.Cost())
		in, ok := e.quotes.FindBySymbol(h.Symbol)
		if !ok {
			p.Unpriced = append(p.Unpriced, h.Symbol)
			continue
		}
		p.CurrentValue = p.CurrentValue.Add(in.Price.Mul(decimal.NewFromInt(int64(h.Quantity))))
	}
	p.ProfitLoss = p.CurrentValue.Sub(p.TotalInvestment)
	if p.TotalInvestment.IsPositive() {
		p.ProfitLossPercent = p.ProfitLoss.Div(p.TotalInvestment).Mul(hundred)
	}
	return p
}

// PortfolioValue is the market value of the user's priced holdings
func (e *Engine) PortfolioValue(userID int) (decimal.Decimal, error) {
	p, err := e.PortfolioPerformance(userID)
	return p.CurrentValue, err
}

// NetWorth is cash plus the market value of holdings
func (e *Engine) NetWorth(userID int) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.userLocked(userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance.Add(e.performanceLocked(u).CurrentValue), nil
}

// UpdatePrices runs one market simulation step and saves the new quotes
func (e *Engine) UpdatePrices(ctx context.Context, perturb quotes.Perturbation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes.UpdatePrices(perturb)
	return e.persist(ctx, store.Instruments)
}

// User returns a copy of the user with the given id
func (e *Engine) User(userID int) (models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, err := e.userLocked(userID)
	if err != nil {
		return models.User{}, err
	}
	return u.Clone(), nil
}

// UserByName finds a user by name, ignoring case
func (e *Engine) UserByName(name string) (models.User, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.userByNameLocked(strings.TrimSpace(name))
	if !ok {
		return models.User{}, false
	}
	return u.Clone(), true
}

// Users lists every account in registration order
func (e *Engine) Users() []models.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.User, len(e.users))
	for i, u := range e.users {
		out[i] = u.Clone()
	}
	return out
}

// Transactions returns the user's trades in execution order
func (e *Engine) Transactions(userID int) []models.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Transaction
	for _, tx := range e.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (e *Engine) userLocked(id int) (*models.User, error) {
	u, ok := e.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownUser, id)
	}
	return u, nil
}

func (e *Engine) userByNameLocked(name string) (*models.User, bool) {
	for _, u := range e.users {
		if strings.EqualFold(u.Username, name) {
			return u, true
		}
	}
	return nil, false
}

// clock is e.now at the microsecond precision every store can keep
func (e *Engine) clock() time.Time {
	return e.now().Truncate(time.Microsecond)
}

// persist must be called with e.mu held
func (e *Engine) persist(ctx context.Context, parts store.Part) error {
	snap := store.Snapshot{
		Users:        make([]models.User, len(e.users)),
		Instruments:  e.quotes.List(),
		Transactions: append([]models.Transaction(nil), e.transactions...),
	}
	for i, u := range e.users {
		snap.Users[i] = u.Clone()
	}
	if err := e.store.Save(ctx, snap, parts); err != nil {
		e.logger.Printf("Error saving ledger state: %v", err)
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	return nil
}
