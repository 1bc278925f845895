package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahis-social/server/internal/auth"
	"github.com/ahis-social/server/internal/cache"
	"github.com/ahis-social/server/internal/config"
	"github.com/ahis-social/server/internal/database"
	"github.com/ahis-social/server/internal/logger"
	"github.com/ahis-social/server/internal/repository"
	"github.com/ahis-social/server/internal/repository/memory"
	postgresrepo "github.com/ahis-social/server/internal/repository/postgres"
	"github.com/ahis-social/server/internal/service"
	"github.com/ahis-social/server/internal/transport/http/handlers"
	"github.com/ahis-social/server/internal/transport/http/middleware"
	"github.com/ahis-social/server/internal/transport/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories
	var repos repositories
	switch cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		repos = repositories{store.Users(), store.Conversations(), store.Messages()}
		log.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.Connect(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info("connected to database")
		repos = repositories{
			postgresrepo.NewUserRepo(pool),
			postgresrepo.NewConversationRepo(pool),
			postgresrepo.NewMessageRepo(pool),
		}
	}

	// Identity
	verifier := auth.NewVerifier(cfg.JWTSecret, repos.users, log)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		verifier.SetCache(cache.NewPrincipalCache(rdb, cfg.PrincipalCacheTTL))
		log.Info("principal cache enabled", zap.Duration("ttl", cfg.PrincipalCacheTTL))
	}

	// Real-time
	hub := ws.NewHub(log)
	router := service.NewMessageRouter(repos.conversations, repos.messages, log)
	router.SetNotifier(ws.NewHubNotifier(hub))

	// Services & handlers
	conversationService := service.NewConversationService(repos.conversations, repos.messages, repos.users)
	conversationHandler := handlers.NewConversationHandler(conversationService, log)

	authMW := middleware.Auth(verifier, log)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /ws", ws.ServeWS(hub, verifier, router, ws.Options{
		OriginPatterns:  cfg.WSAllowedOrigins,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
	}, log))

	mux.Handle("GET /api/conversations", authMW(http.HandlerFunc(conversationHandler.List)))
	mux.Handle("POST /api/conversations", authMW(http.HandlerFunc(conversationHandler.Create)))
	mux.Handle("GET /api/conversations/{id}/messages", authMW(http.HandlerFunc(conversationHandler.ListMessages)))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.CORS(cfg.WSAllowedOrigins)(mux),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Shutdown()
		return err
	})

	return g.Wait()
}
