package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	match "github.com/0x5487/custody-exchange"
	"github.com/0x5487/custody-exchange/internal/config"
	"github.com/0x5487/custody-exchange/internal/logging"
	"github.com/0x5487/custody-exchange/store"
	"github.com/ethereum/go-ethereum/common"
)

func main() {
	configPath := flag.String("config", "exchange.yaml", "path to the YAML configuration")
	scriptPath := flag.String("script", "", "JSON-lines command script to run (stdin when \"-\")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)
	slog.SetDefault(logger)
	match.SetLogger(logger)
	store.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *scriptPath, os.Stdout); err != nil {
		logger.Error("exchange stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, scriptPath string, out io.Writer) error {
	reservoirs := make(map[string]match.Reservoir, len(cfg.Assets))
	memory := make(map[string]*match.MemoryReservoir, len(cfg.Assets))
	for _, a := range cfg.Assets {
		r := match.NewMemoryReservoir(a.Symbol)
		reservoirs[a.Symbol] = r
		memory[a.Symbol] = r
	}
	if err := seedWallets(cfg, memory); err != nil {
		return err
	}

	reference, err := match.NewSymbol(cfg.Engine.Reference)
	if err != nil {
		return err
	}

	opts := []match.Option{
		match.WithReservoirs(reservoirs),
		match.WithCommandBuffer(cfg.Engine.CommandBuffer),
	}
	if cfg.Engine.LimitMatching {
		opts = append(opts, match.WithLimitOrderMatching())
	}

	var async *match.AsyncPublishLog
	if cfg.Journal.Dir != "" {
		journal, err := store.Open(cfg.Journal.Dir)
		if err != nil {
			return err
		}
		defer journal.Close()
		async = match.NewAsyncPublishLog(journal, 1024)
		opts = append(opts, match.WithPublishLog(async))
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, match.WithMetrics(match.NewMetrics(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("metrics server started", slog.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	engine := match.NewEngine(reference, opts...)
	go func() {
		_ = engine.Start()
	}()

	for _, a := range cfg.Assets {
		symbol, err := match.NewSymbol(a.Symbol)
		if err != nil {
			return err
		}
		if err := engine.RegisterAsset(ctx, symbol, reservoirs[a.Symbol], a.Decimals); err != nil {
			return fmt.Errorf("register %s: %w", a.Symbol, err)
		}
	}

	if scriptPath != "" {
		if err := runScript(ctx, engine, scriptPath); err != nil {
			return err
		}
	}

	if err := report(ctx, engine, cfg, out); err != nil {
		return err
	}

	var errs []error
	if cfg.Snapshot.Dir != "" {
		if _, err := engine.TakeSnapshot(ctx, cfg.Snapshot.Dir); err != nil {
			errs = append(errs, fmt.Errorf("snapshot: %w", err))
		}
	}

	if srv != nil {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
	}
	if async != nil {
		if err := async.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("journal flush: %w", err))
		}
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// seedWallets mints configured balances and approves the exchange to pull them.
func seedWallets(cfg *config.Config, reservoirs map[string]*match.MemoryReservoir) error {
	for _, w := range cfg.Wallets {
		asset, _ := cfg.Asset(w.Symbol)
		amount, err := match.ParseUnits(w.Amount.String(), asset.Decimals)
		if err != nil {
			return fmt.Errorf("wallet %s %s: %w", w.Trader, w.Symbol, err)
		}
		owner := common.HexToAddress(w.Trader)
		r := reservoirs[w.Symbol]
		if err := r.Mint(owner, amount); err != nil {
			return fmt.Errorf("wallet %s %s: %w", w.Trader, w.Symbol, err)
		}
		r.Approve(owner, r.BalanceOf(owner))
	}
	return nil
}

// runScript executes every command of the script in order. Rejected
// commands are logged and do not stop the run.
func runScript(ctx context.Context, engine *match.Engine, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	cmds, err := readScript(r)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		result, err := engine.EnqueueCommand(ctx, cmd)
		if err != nil {
			if errors.Is(err, match.ErrShutdown) || errors.Is(err, match.ErrTimeout) {
				return err
			}
			slog.Warn("command rejected", slog.Uint64("line_seq", cmd.SeqID), slog.String("type", cmd.Type.String()), slog.Any("error", err))
			continue
		}

		switch res := result.(type) {
		case *match.Order:
			slog.Info("order accepted", slog.Uint64("order_id", res.ID), slog.String("filled", res.Filled.Dec()))
		case *match.MarketResult:
			slog.Info("market order executed", slog.String("filled", res.Filled.Dec()), slog.Int("fills", len(res.Fills)))
		}
	}
	return nil
}

// report prints every configured trader's balances and every book's depth.
func report(ctx context.Context, engine *match.Engine, cfg *config.Config, out io.Writer) error {
	decimals := make(map[match.Symbol]int32, len(cfg.Assets))
	for _, a := range cfg.Assets {
		decimals[match.MustSymbol(a.Symbol)] = a.Decimals
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRADER\tSYMBOL\tBALANCE")

	seen := make(map[common.Address]bool)
	for _, w := range cfg.Wallets {
		trader := common.HexToAddress(w.Trader)
		if seen[trader] {
			continue
		}
		seen[trader] = true

		balances, err := engine.Balances(ctx, trader)
		if err != nil {
			return err
		}
		for _, b := range balances {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Trader.Hex(), b.Symbol, match.FormatUnits(&b.Amount, decimals[b.Symbol]))
		}
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SYMBOL\tSIDE\tPRICE\tSIZE\tORDERS")
	assets, err := engine.Assets(ctx)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if a.Symbol == engine.Reference() {
			continue
		}
		depth, err := engine.Depth(ctx, a.Symbol, 10)
		if err != nil {
			return err
		}
		for _, item := range depth.Asks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", a.Symbol, match.Sell, item.Price.Dec(), match.FormatUnits(&item.Size, a.Decimals), item.Count)
		}
		for _, item := range depth.Bids {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", a.Symbol, match.Buy, item.Price.Dec(), match.FormatUnits(&item.Size, a.Decimals), item.Count)
		}
	}
	return tw.Flush()
}
