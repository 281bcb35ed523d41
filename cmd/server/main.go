package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/config"
	"github.com/ayush/thunder-dashboard/backend/internal/dashboard"
	"github.com/ayush/thunder-dashboard/backend/internal/jobs"
	"github.com/ayush/thunder-dashboard/backend/internal/middleware"
	"github.com/ayush/thunder-dashboard/backend/internal/realtime"
	"github.com/ayush/thunder-dashboard/backend/internal/report"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── Object storage ───────────────────────────────────────
	objects, err := store.NewMinioStore(
		ctx, cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey,
		cfg.StorageBucket, cfg.StorageScheme, cfg.StorageUseSSL,
	)
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}

	// ── Worker job trigger ───────────────────────────────────
	jobClient := jobs.NewClient(cfg.JobAPIURL, cfg.JobName, cfg.JobAPIToken)

	// ── Realtime ─────────────────────────────────────────────
	hub := realtime.NewHub(64)
	go realtime.NewListener(cfg.PostgresDSN, hub, pgStore).Run(ctx)

	// ── Handlers ─────────────────────────────────────────────
	svc := dashboard.NewService(pgStore, objects, mongoStore, jobClient, store.NewRedisGate(rdb), dashboard.Options{
		UploadURLTTL: cfg.UploadURLTTL,
		ExamWindow:   cfg.ExamWindow,
	})
	authHandler := auth.NewHandler(pgStore, sessions, cfg.CookieSecure)
	dashboardHandler := dashboard.NewHandler(svc)
	reportHandler := report.NewHandler(pgStore, mongoStore)
	wsHandler := realtime.NewHandler(hub, pgStore, svc, cfg.AllowedOrigins)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.RequireAuth(sessions)).Get("/me", authHandler.Me)
	})

	// Dashboard routes (protected)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		dashboardHandler.Routes(r)
		reportHandler.Routes(r)
		r.Get("/subjects/{id}/ws", wsHandler.ServeWS)
	})

	// ── Server ───────────────────────────────────────────────
	// no WriteTimeout: websocket connections are long-lived
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	stop()
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
