package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"path"

	"github.com/atharvakonge/trading-ledger/internal/config"
	"github.com/atharvakonge/trading-ledger/internal/db"
	"github.com/atharvakonge/trading-ledger/internal/handlers"
	"github.com/atharvakonge/trading-ledger/internal/ledger"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/atharvakonge/trading-ledger/internal/store"
	"github.com/atharvakonge/trading-ledger/internal/store/textfile"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	handlers.Register(commander)

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, cfg, commander)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, commander *subcommands.Commander) int {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Println("Failed to open store:", err)
		return int(subcommands.ExitFailure)
	}
	defer closeStore()

	engine := ledger.New(st, quotes.NewRegistry())
	if err := engine.Load(ctx); err != nil {
		log.Println("Failed to load ledger:", err)
		return int(subcommands.ExitFailure)
	}

	if cfg.SeedSampleStocks && engine.Quotes().Len() == 0 {
		if err := engine.SeedInstruments(ctx, quotes.SampleInstruments()); err != nil {
			log.Println("Failed to save sample stocks:", err)
		} else {
			log.Println("Sample stocks initialized successfully.")
		}
	}

	seed := cfg.PriceSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	env := &handlers.Env{
		Engine:  engine,
		In:      os.Stdin,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Perturb: quotes.RandomPerturbation(rng),
	}
	return int(commander.Execute(ctx, env))
}

// openStore returns the configured store and a function releasing it
func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreKind {
	case config.StorePostgres:
		conn, err := db.Open(cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(conn); err != nil {
			db.Close(conn)
			return nil, nil, err
		}
		return db.NewStore(conn, log.Default()), func() { db.Close(conn) }, nil
	case config.StoreMemory:
		return store.NewMemory(store.Snapshot{}), func() {}, nil
	default:
		st, err := textfile.New(cfg.DataDir, log.Default())
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}
