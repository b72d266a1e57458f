package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/config"
	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/httpapi"
	"github.com/DoyleJ11/auction-backend/internal/lobby"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"github.com/DoyleJ11/auction-backend/internal/notify"
	"github.com/DoyleJ11/auction-backend/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	root := &cobra.Command{
		Use:          "auctiond",
		Short:        "Live player auction server",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the auction server (default)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear all sales in the stored auction and reset budgets",
			RunE:  runReset,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg.Level = level
	return zcfg.Build()
}

func setup() (config.Config, *zap.Logger, store.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	gw, err := store.Open(cfg.Store, cfg.DatabaseURL, cfg.RedisURL, cfg.RedisNamespace)
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	return cfg, log, gw, nil
}

// restore loads the stored auction. Undecodable documents are logged and
// replaced by defaults so the server still comes up.
func restore(ctx context.Context, gw store.Gateway, log *zap.Logger) *engine.Auction {
	snap, err := store.LoadSnapshot(ctx, gw)
	if err != nil {
		log.Error("load snapshot", zap.Error(err))
	}
	return engine.Restore(snap)
}

func seed(ctx context.Context, a *engine.Auction, gw store.Gateway, path string, log *zap.Logger) error {
	if path == "" || len(a.Items()) > 0 || len(a.Teams()) > 0 {
		return nil
	}
	s, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	for _, cmd := range s.Commands() {
		if _, err := a.Apply(cmd); err != nil {
			log.Warn("seed entry skipped", zap.String("command", string(cmd.Type)), zap.Error(err))
		}
	}
	log.Info("seeded auction",
		zap.String("file", path),
		zap.Int("teams", len(a.Teams())),
		zap.Int("items", len(a.Items())))
	return store.SaveSnapshot(ctx, gw, a.Snapshot())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, gw, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer gw.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auction := restore(ctx, gw, log)
	if err := seed(ctx, auction, gw, cfg.SeedFile, log); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	m := metrics.New()

	var pub notify.Publisher = notify.Nop{}
	if cfg.NATSURL != "" {
		np, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		pub = np
	}
	defer pub.Close()

	persister := store.NewPersister(gw, log, m)
	lb := lobby.NewLobby(ctx, auction,
		lobby.WithTick(cfg.Tick),
		lobby.WithCountdown(cfg.Countdown),
		lobby.WithSaver(persister),
		lobby.WithPublisher(pub),
		lobby.WithMetrics(m),
		lobby.WithLogger(log),
	)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Lobby:          lb,
			Metrics:        m,
			Log:            log,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The persister outlives the lobby so the final snapshot is flushed.
	persistCtx, stopPersist := context.WithCancel(context.Background())
	defer stopPersist()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return persister.Run(persistCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		lb.Send(lobby.Shutdown{})
		<-lb.Done()
		stopPersist()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func runReset(cmd *cobra.Command, _ []string) error {
	_, log, gw, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer gw.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	auction := restore(ctx, gw, log)
	if _, err := auction.Apply(engine.Command{Type: engine.CmdReset}); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := store.SaveSnapshot(ctx, gw, auction.Snapshot()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Info("auction reset", zap.Int("items", len(auction.Items())), zap.Int("teams", len(auction.Teams())))
	return nil
}
