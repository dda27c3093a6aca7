// Package textfile stores the ledger as comma-separated record files, one
// record per line: users.txt, stocks.txt, holdings.txt and transactions.txt.
package textfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/atharvakonge/trading-ledger/internal/store"
)

const (
	UsersFile        = "users.txt"
	StocksFile       = "stocks.txt"
	HoldingsFile     = "holdings.txt"
	TransactionsFile = "transactions.txt"
)

// Store reads and rewrites the record files of one directory
type Store struct {
	dir    string
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// New creates the directory if needed. A nil logger means log.Default().
func New(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Load reads every file. A missing file is an empty collection and a
// malformed line is logged and skipped.
func (s *Store) Load(_ context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	err := s.readLines(StocksFile, func(n int, line string) {
		in, err := DecodeInstrument(line)
		if err != nil {
			s.skip(StocksFile, n, err)
			return
		}
		snap.Instruments = append(snap.Instruments, in)
	})
	if err != nil {
		return store.Snapshot{}, err
	}

	index := make(map[int]int)
	err = s.readLines(UsersFile, func(n int, line string) {
		u, err := DecodeUser(line)
		if err != nil {
			s.skip(UsersFile, n, err)
			return
		}
		if _, dup := index[u.ID]; dup {
			s.skip(UsersFile, n, fmt.Errorf("duplicate user id %d", u.ID))
			return
		}
		index[u.ID] = len(snap.Users)
		snap.Users = append(snap.Users, u)
	})
	if err != nil {
		return store.Snapshot{}, err
	}

	err = s.readLines(HoldingsFile, func(n int, line string) {
		rec, err := DecodeHolding(line)
		if err != nil {
			s.skip(HoldingsFile, n, err)
			return
		}
		i, ok := index[rec.UserID]
		if !ok {
			s.skip(HoldingsFile, n, fmt.Errorf("unknown user id %d", rec.UserID))
			return
		}
		u := &snap.Users[i]
		if _, dup := u.Holding(rec.Symbol); dup {
			s.skip(HoldingsFile, n, fmt.Errorf("second %s holding for user %d", rec.Symbol, rec.UserID))
			return
		}
		u.Holdings = append(u.Holdings, rec.Holding)
	})
	if err != nil {
		return store.Snapshot{}, err
	}

	err = s.readLines(TransactionsFile, func(n int, line string) {
		tx, err := DecodeTransaction(line)
		if err != nil {
			s.skip(TransactionsFile, n, err)
			return
		}
		snap.Transactions = append(snap.Transactions, tx)
	})
	if err != nil {
		return store.Snapshot{}, err
	}

	return snap, nil
}

// Save rewrites the files of the selected parts
func (s *Store) Save(_ context.Context, snap store.Snapshot, parts store.Part) error {
	var errs []error
	if parts.Has(store.Users) {
		lines := make([]string, 0, len(snap.Users))
		for _, u := range snap.Users {
			lines = append(lines, EncodeUser(u))
		}
		errs = append(errs, s.writeLines(UsersFile, lines))
	}
	if parts.Has(store.Holdings) {
		var lines []string
		for _, u := range snap.Users {
			for _, h := range u.Holdings {
				lines = append(lines, EncodeHolding(u.ID, h))
			}
		}
		errs = append(errs, s.writeLines(HoldingsFile, lines))
	}
	if parts.Has(store.Transactions) {
		lines := make([]string, 0, len(snap.Transactions))
		for _, tx := range snap.Transactions {
			lines = append(lines, EncodeTransaction(tx))
		}
		errs = append(errs, s.writeLines(TransactionsFile, lines))
	}
	if parts.Has(store.Instruments) {
		lines := make([]string, 0, len(snap.Instruments))
		for _, in := range snap.Instruments {
			lines = append(lines, EncodeInstrument(in))
		}
		errs = append(errs, s.writeLines(StocksFile, lines))
	}
	return errors.Join(errs...)
}

func (s *Store) skip(file string, line int, err error) {
	s.logger.Printf("Skipping %s line %d: %v", file, line, err)
}

func (s *Store) readLines(name string, fn func(n int, line string)) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Printf("%s not found, starting with an empty list", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error opening %s: %w", name, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(n, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", name, err)
	}
	return nil
}

// writeLines replaces name through a temporary file and a rename, so a
// failed write leaves the previous content in place.
func (s *Store) writeLines(name string, lines []string) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("error saving %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("error saving %s: %w", name, err)
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("error saving %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error saving %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("error saving %s: %w", name, err)
	}
	return nil
}
