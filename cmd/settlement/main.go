// ==============================================================================
// SETTLEMENT SERVICE MAIN - cmd/settlement/main.go
// ==============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stakehub/internal/access"
	"stakehub/internal/commitreveal"
	"stakehub/internal/guard"
	"stakehub/internal/handler"
	"stakehub/internal/journal"
	"stakehub/internal/ledger"
	"stakehub/internal/middleware"
	"stakehub/internal/pool"
	"stakehub/internal/repository/postgres"
	"stakehub/internal/reputation"
	"stakehub/internal/sequencer"
	"stakehub/internal/settlement"
	"stakehub/internal/stake"
	"stakehub/pkg/cache"
	"stakehub/pkg/config"
	"stakehub/pkg/logger"
	"stakehub/pkg/validator"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("settlement-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Starting Settlement Service", map[string]interface{}{
		"port":   cfg.Server.Port,
		"ledger": cfg.Ledger.Backend,
		"redis":  cfg.Redis.Enabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := mustPolicy(cfg, log)

	// Value ledger and settlement state
	var (
		vl     ledger.ValueLedger
		db     *sqlx.DB
		store  = stake.NewStore()
		rstore = stake.NewRoundStore()
	)
	switch cfg.Ledger.Backend {
	case "postgres":
		var err error
		db, err = sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal("Failed to connect to database", map[string]interface{}{
				"error": err.Error(),
			})
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		vl = postgres.NewCustodyLedger(db, config.Address(cfg.Ledger.CustodyAccount))

		state, err := stake.OpenBolt(cfg.Journal.StatePath)
		if err != nil {
			log.Fatal("Failed to open state store", map[string]interface{}{
				"error": err.Error(),
				"path":  cfg.Journal.StatePath,
			})
		}
		defer state.Close()
		if err := store.Restore(state, log); err != nil {
			log.Fatal("Failed to restore pools", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if err := rstore.Restore(state, log); err != nil {
			log.Fatal("Failed to restore rounds", map[string]interface{}{
				"error": err.Error(),
			})
		}
	default:
		log.Warn("Using in-memory value ledger and state; both are lost on restart", nil)
		vl = ledger.NewMemory()
	}

	// Reputation side channel
	tracker := reputation.NewTracker()
	notifiers := []reputation.Notifier{tracker}
	var (
		ranker      reputation.Ranker = tracker
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", map[string]interface{}{
				"error": err.Error(),
			})
		}
		defer redisClient.Close()

		board := reputation.NewLeaderboard(redisClient, cfg.Redis.LeaderboardKey)
		notifiers = append(notifiers, board)
		ranker = board
	}
	notify := reputation.NewDispatcher(log, notifiers...)

	// Event journal
	events, err := journal.OpenBolt(cfg.Journal.Path)
	if err != nil {
		log.Fatal("Failed to open event journal", map[string]interface{}{
			"error": err.Error(),
			"path":  cfg.Journal.Path,
		})
	}
	defer events.Close()
	feed := journal.NewHub(events, log)
	rec := journal.NewRecorder(feed, log, nil)

	// Settlement core
	params := settlement.Params{
		MinStakeFloor:     cfg.Settlement.MinStakeFloor,
		MinDeadlineBuffer: cfg.Settlement.MinDeadlineBuffer,
		MinCommitDuration: cfg.Settlement.MinCommitDuration,
		MinRevealDuration: cfg.Settlement.MinRevealDuration,
		Precision:         cfg.Settlement.Precision,
	}
	g := guard.New()
	pools := pool.NewService(store, vl, policy, g, notify, rec, params, log)
	rounds := commitreveal.NewService(rstore, vl, policy, g, notify, rec, params, log)

	seq := sequencer.New(log, cfg.Server.Backlog)
	val := validator.New()

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// Routes
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", readyCheck(db, redisClient)).Methods(http.MethodGet)

	routes := handler.Routes{
		Pools:  handler.NewPoolHandler(pools, feed, seq, val, log),
		Rounds: handler.NewRoundHandler(rounds, feed, seq, val, log),
		Admin:  handler.NewAdminHandler(policy, ranker, seq, val, log),
		Stream: handler.NewStreamHandler(feed, cfg.Server.AllowedOrigins, log),
		Auth:   middleware.NewAuthMiddleware(cfg.JWT.Secret),
	}
	if redisClient != nil {
		routes.Idempotency = middleware.NewIdempotencyMiddleware(redisClient, cfg.Redis.IdempotencyTTL, log)
		routes.RateLimit = middleware.NewRateLimiter(redisClient, cfg.Server.RateLimit, cfg.Server.RateWindow)
	}
	routes.Register(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// The sequencer outlives the server so in-flight requests drain.
	seqCtx, stopSeq := context.WithCancel(context.Background())
	defer stopSeq()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return seq.Run(seqCtx)
	})
	grp.Go(func() error {
		log.Info("Settlement service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down settlement service...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopSeq()
		return err
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Settlement service stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Settlement service stopped gracefully", nil)
}

// mustPolicy builds the capability policy and applies the configured grants
// on behalf of the owner.
func mustPolicy(cfg *config.Config, log logger.Logger) *access.Policy {
	owner := common.HexToAddress(cfg.Settlement.Owner)
	policy, err := access.NewPolicy(
		owner,
		common.HexToAddress(cfg.Settlement.FeeRecipient),
		cfg.Settlement.FeeCapBps,
		cfg.Settlement.PlatformFeeBps,
	)
	if err != nil {
		log.Fatal("Failed to build access policy", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for _, a := range cfg.Settlement.Admins {
		if err := policy.GrantAdmin(owner, common.HexToAddress(a)); err != nil {
			log.Fatal("Failed to grant admin", map[string]interface{}{
				"account": a,
				"error":   err.Error(),
			})
		}
	}
	for _, a := range cfg.Settlement.Resolvers {
		if err := policy.GrantResolver(owner, common.HexToAddress(a)); err != nil {
			log.Fatal("Failed to grant resolver", map[string]interface{}{
				"account": a,
				"error":   err.Error(),
			})
		}
	}
	return policy
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"settlement"}`))
}

func readyCheck(db *sqlx.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","reason":"redis unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"settlement"}`))
	}
}
