package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"example.com/wordmint/internal/auth"
	"example.com/wordmint/internal/config"
	"example.com/wordmint/internal/game"
	"example.com/wordmint/internal/httpapi"
	"example.com/wordmint/internal/ratelimit"
	"example.com/wordmint/internal/settlement"
	"example.com/wordmint/internal/signer"
	"example.com/wordmint/internal/store"
	"example.com/wordmint/internal/wordlist"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool // nil when audit store disabled
	rdb *redis.Client // nil when snapshot persistence disabled

	games   *game.Service
	limiter *ratelimit.Limiter

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- corpus + signing key: fatal at startup, never per-request ---
	words, err := wordlist.Load(cfg.Game.WordsFile)
	if err != nil {
		return nil, err
	}

	sgn, err := signer.New(cfg.Signer.KeyHex)
	if err != nil {
		return nil, err
	}

	var payout *big.Int
	if cfg.Settlement.PayoutWei != "" {
		payout = new(big.Int)
		if _, ok := payout.SetString(cfg.Settlement.PayoutWei, 10); !ok {
			return nil, fmt.Errorf("invalid PAYOUT_WEI %q", cfg.Settlement.PayoutWei)
		}
	}

	// --- Postgres (optional) ---
	var db *pgxpool.Pool
	var results *store.ResultsStore
	if cfg.Postgres.URL != "" {
		db, err = pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		results = store.NewResultsStore(db)
	}

	// --- Redis (optional) ---
	var rdb *redis.Client
	var persist game.Persistence
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			if db != nil {
				db.Close()
			}
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
		persist = game.NewRedisInstanceStore(rdb, cfg.Game.InstanceTTL)
	}

	// --- services ---
	authSvc := auth.NewService([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	deriver := game.NewDeriver([]byte(cfg.Game.DeriveSecret), words)
	games := game.NewService(
		game.Config{InstanceTTL: cfg.Game.InstanceTTL},
		deriver, authSvc, persist, log,
	)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	h := &httpapi.Handler{
		Games:            games,
		Auth:             authSvc,
		Signer:           sgn,
		Log:              log,
		SettlementStrict: cfg.Settlement.Mode == "strict",
		Results:          results,
		Payout:           payout,
	}
	if cfg.Settlement.RPCURL != "" {
		h.Settlement = settlement.New(cfg.Settlement.RPCURL, cfg.Settlement.Contract, cfg.Settlement.Timeout)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	h.RegisterRoutes(mux)

	handler := httpapi.RequestLog(log)(httpapi.RateLimit(limiter)(mux))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Info("signer identity", "address", sgn.Address())

	return &App{
		cfg:     cfg,
		log:     log,
		db:      db,
		rdb:     rdb,
		games:   games,
		limiter: limiter,
		srv:     srv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	// eviction sweep; also prunes idle rate-limiter entries
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Game.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := a.games.SweepExpired(gctx); n > 0 {
					a.log.Info("eviction sweep", "evicted", n)
				}
				a.limiter.Sweep(10 * a.cfg.Game.SweepInterval)
			}
		}
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
