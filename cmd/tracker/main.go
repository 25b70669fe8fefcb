package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/hivefolio/tracker/internal/cache"
	"github.com/hivefolio/tracker/internal/chain"
	"github.com/hivefolio/tracker/internal/config"
	"github.com/hivefolio/tracker/internal/database"
	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/engine"
	"github.com/hivefolio/tracker/internal/export"
	"github.com/hivefolio/tracker/internal/external"
	"github.com/hivefolio/tracker/internal/holdings"
	"github.com/hivefolio/tracker/internal/market"
	"github.com/hivefolio/tracker/internal/pools"
	"github.com/hivefolio/tracker/internal/portfolio"
	"github.com/hivefolio/tracker/internal/snapshot"
	"github.com/hivefolio/tracker/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	cfg := config.Load()

	app := &cli.App{
		Name:  "tracker",
		Usage: "value a Hive account's tokens, diesel pools and base-chain holdings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "account",
				Aliases:  []string{"a"},
				Usage:    "Hive account name to value",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tokens",
				Usage: "comma-separated token symbols (default: every held token)",
			},
			&cli.StringFlag{
				Name:  "snapshots-dir",
				Usage: "root directory for snapshot archives",
				Value: cfg.SnapshotsDir,
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "directory for response caches",
				Value: cfg.CacheDir,
			},
			&cli.BoolFlag{
				Name:  "no-layer1",
				Usage: "skip base-chain (layer 1) holdings",
			},
			&cli.BoolFlag{
				Name:  "daemon",
				Usage: "keep running and snapshot on an interval",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "snapshot interval in daemon mode",
				Value: cfg.ReportInterval,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "log warnings and errors only",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "list archived snapshots for the account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "period",
						Usage: "archive period (daily, weekly, monthly, quarterly, yearly)",
						Value: string(snapshot.Daily),
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of rows",
						Value: 30,
					},
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "print the newest snapshot document instead of a listing",
					},
				},
				Action: func(c *cli.Context) error {
					return history(c, cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("tracker failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug, quiet bool) {
	level := slog.LevelInfo
	switch {
	case debug:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func parseSymbols(list string) ([]domain.Symbol, error) {
	if list == "" {
		return nil, nil
	}
	var symbols []domain.Symbol
	for _, raw := range strings.Split(list, ",") {
		raw = strings.ToUpper(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		sym := domain.Symbol(raw)
		if err := domain.ValidateSymbol(sym); err != nil {
			return nil, fmt.Errorf("token %q: %w", raw, err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

func run(c *cli.Context, cfg config.Config) error {
	setupLogging(c.Bool("debug"), c.Bool("quiet"))

	account := c.String("account")
	if err := domain.ValidateAccount(account); err != nil {
		return fmt.Errorf("account %q: %w", account, err)
	}
	symbols, err := parseSymbols(c.String("tokens"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheDir := c.String("cache-dir")
	marketCache := cache.New[domain.PriceQuote](filepath.Join(cacheDir, "market.json"), cfg.CacheTTL)
	poolCache := cache.New[domain.PoolReserves](filepath.Join(cacheDir, "pools.json"), cfg.CacheTTL)
	priceCache := cache.New[decimal.Decimal](filepath.Join(cacheDir, "prices.json"), cfg.CacheTTL)
	chainCache := cache.New[json.RawMessage](filepath.Join(cacheDir, "chain.json"), cfg.CacheTTL)

	caches := []persistentCache{marketCache, poolCache, priceCache, chainCache}
	for _, pc := range caches {
		if err := pc.Load(); err != nil {
			slog.Warn("cache load failed", "error", err)
		}
	}
	// A sweep at exit drops expired entries and flushes everything put
	// during the run back to disk.
	defer sweepCaches(caches)

	engineClient := engine.NewClient(cfg.EngineURL, cfg.EngineRetryMax, cfg.EngineRetryDelay)
	if len(symbols) > 0 {
		// A typo'd symbol would otherwise just value to zero silently.
		if known := engineClient.AllTokens(ctx); len(known) > 0 {
			for _, sym := range symbols {
				if !known[sym] {
					slog.Warn("token not in the exchange registry", "symbol", sym)
				}
			}
		}
	}
	holdingsSvc := holdings.NewService(engineClient)
	marketResolver := market.NewResolver(engineClient, marketCache)
	poolResolver := pools.NewResolver(engineClient, poolCache)

	var chainClient *chain.Client
	if !c.Bool("no-layer1") {
		chainClient = chain.NewClient(cfg.ChainEndpoints, chainCache)
	}

	// Optional database: snapshots and quotes also land in PostgreSQL.
	var snapshotRepo snapshot.Repository
	var quoteRepo external.QuoteRepository
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		migrationsSub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}

		snapshotRepo = snapshot.NewPgRepository(pool)
		quoteRepo = external.NewPgQuoteRepository(pool)
	}

	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	externalSvc := external.NewService(coingecko, priceCache, quoteRepo)

	var chainReader portfolio.ChainReader
	if chainClient != nil {
		chainReader = chainClient
	}
	builder := portfolio.NewService(holdingsSvc, marketResolver, poolResolver, chainReader, externalSvc)

	archive, err := snapshot.NewArchive(c.String("snapshots-dir"))
	if err != nil {
		return err
	}
	snapshotSvc := snapshot.NewService(archive, snapshotRepo)

	hook, err := exportHook(ctx, cfg)
	if err != nil {
		return err
	}

	if c.Bool("daemon") {
		w := worker.NewReportWorker(builder, snapshotSvc, account, symbols,
			!c.Bool("no-layer1"), c.Duration("interval"), hook)
		w.AfterRun = func() { sweepCaches(caches) }
		w.Run(ctx)
		return nil
	}

	p := builder.Build(ctx, account, symbols, !c.Bool("no-layer1"))
	paths, err := snapshotSvc.Store(ctx, p)
	if err != nil {
		return err
	}
	for _, path := range paths {
		slog.Info("snapshot written", "path", path)
	}
	if hook != nil {
		if err := hook.Export(ctx, p); err != nil {
			slog.Error("export failed", "error", err)
		}
	}

	out, err := json.MarshalIndent(snapshot.NewDocument(p), "", "  ")
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// history prints the archived snapshots for an account, from the database
// when one is configured and from the file archive otherwise.
func history(c *cli.Context, cfg config.Config) error {
	setupLogging(c.Bool("debug"), c.Bool("quiet"))

	account := c.String("account")
	if err := domain.ValidateAccount(account); err != nil {
		return fmt.Errorf("account %q: %w", account, err)
	}
	period, err := snapshot.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		repo := snapshot.NewPgRepository(pool)

		if c.Bool("latest") {
			rec, err := repo.GetLatest(ctx, account, period)
			if err != nil {
				return err
			}
			return printIndented(rec.Data)
		}

		records, err := repo.List(ctx, account, period, c.Int("limit"))
		if err != nil {
			return err
		}
		for _, rec := range records {
			var doc snapshot.Document
			total := "?"
			if json.Unmarshal(rec.Data, &doc) == nil {
				total = doc.Summary.TotalUSD
			}
			fmt.Printf("%s  %s USD\n", rec.SnapshotDate.Format("2006-01-02"), total)
		}
		return nil
	}

	archive, err := snapshot.NewArchive(c.String("snapshots-dir"))
	if err != nil {
		return err
	}
	if c.Bool("latest") {
		doc, err := archive.Latest(account, period)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("rendering snapshot: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	names, err := archive.List(account, period)
	if err != nil {
		return err
	}
	limit := c.Int("limit")
	for i, name := range names {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Println(name)
	}
	return nil
}

func printIndented(data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("rendering snapshot: %w", err)
	}
	fmt.Println(buf.String())
	return nil
}

// persistentCache is the lifecycle surface shared by the typed caches.
type persistentCache interface {
	Load() error
	Sweep() error
}

func sweepCaches(caches []persistentCache) {
	for _, pc := range caches {
		if err := pc.Sweep(); err != nil {
			slog.Warn("cache sweep failed", "error", err)
		}
	}
}

// exportHook assembles the optional report writers from configuration.
func exportHook(ctx context.Context, cfg config.Config) (worker.AfterSnapshotHook, error) {
	var writers []export.ReportWriter
	if cfg.XLSXPath != "" {
		writers = append(writers, export.NewXLSXWriter(cfg.XLSXPath))
	}
	if cfg.SpreadsheetID != "" && cfg.SheetsCredentials != "" {
		sw, err := export.NewSheetsWriter(ctx, cfg.SpreadsheetID, cfg.SheetsCredentials)
		if err != nil {
			return nil, fmt.Errorf("sheets writer: %w", err)
		}
		writers = append(writers, sw)
	}
	if len(writers) == 0 {
		return nil, nil
	}
	return export.NewService(writers...), nil
}
