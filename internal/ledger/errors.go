package ledger

import "errors"

var (
	ErrDuplicateUser      = errors.New("username already exists")
	ErrInvalidName        = errors.New("invalid username")
	ErrUnknownUser        = errors.New("user not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrUnknownSymbol      = errors.New("stock symbol not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoHolding          = errors.New("no shares held")
	ErrPersistence        = errors.New("persistence failure")
)
