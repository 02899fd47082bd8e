package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/icza/passwordless"
	"github.com/icza/passwordless/api"
	"github.com/icza/passwordless/telemetry"
)

type Config struct {
	Addr     string `env:"ADDR" env-default:":3000"`
	MongoURI string `env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Passwordless passwordless.Config
	Telemetry    telemetry.Config
}

func main() {
	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, config.Telemetry)
	if err != nil {
		slog.Error("Failed to set up tracing", "err", err)
	}
	defer shutdownTracing(context.Background())

	client, err := mongo.Connect(options.Client().ApplyURI(config.MongoURI))
	if err != nil {
		slog.Error("Failed to create mongo client", "err", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Ping(pingCtx, nil)
	cancel()
	if err != nil {
		slog.Error("Failed to connect to mongo", "err", err)
		os.Exit(1)
	}

	handler, err := passwordless.NewMongoHandler(ctx, client, config.Passwordless)
	if err != nil {
		slog.Error("Failed to initialize passwordless handler", "err", err)
		os.Exit(1)
	}
	slog.Info("Passwordless login", "enabled", config.Passwordless.Enabled, "url", config.Passwordless.URL)

	registry := passwordless.NewRegistry(handler.Strategy())
	handle := api.NewHandle(handler, registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", handle.RegisterRoutes)

	server := &http.Server{
		Addr:              config.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down server", "err", err)
		}
	}()

	slog.Info("Starting server", "addr", config.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}
