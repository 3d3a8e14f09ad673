// Package main is the entry point of the application
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/duel-server/internal/auth"
	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/config"
	"github.com/tecu23/duel-server/pkg/engine"
	"github.com/tecu23/duel-server/pkg/events"
	"github.com/tecu23/duel-server/pkg/game"
	"github.com/tecu23/duel-server/pkg/repository"
	"github.com/tecu23/duel-server/pkg/server"
)

//	@title						Duel Server API
//	@version					1.0
//	@description				Match archive and health of the duel server. Players connect over TCP or /ws.
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-Api-Key

// App encapsulates global dependencies
type application struct {
	Auth      *auth.APIKeyAuth
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Matches   *repository.InMemoryMatchRepository
	Session   *game.Session
	Hub       *server.Hub
	Server    *http.Server

	StartTime time.Time
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), config.Description())
	}
	flag.Parse()

	// .env is optional, the environment may be set by other means
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	// Initialize event publisher
	publisher := events.NewPublisher()

	// Finished matches are archived from MATCH_ENDED events
	matches := repository.NewInMemoryRepository(logger.Named("repository"))
	matches.Subscribe(publisher)

	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS.URL, logger.Named("nats"))
		if err != nil {
			logger.Fatal("connect NATS error", zap.Error(err))
		}
		defer nc.Drain()

		publisher.SubscribeAll(events.NewNATSForwarder(nc, cfg.NATS.Subject, logger.Named("nats")).Handle)
		logger.Info("forwarding events to NATS", zap.String("subject", cfg.NATS.Subject))
	}

	session := game.NewSession(engine.NewChessOracle(), nil, game.Config{
		TimeControl: chess.TimeControl{
			Initial:   cfg.Clock.Initial,
			Increment: cfg.Clock.Increment,
		},
		EnforceFlagFall: cfg.Clock.EnforceFlagFall,
	}, logger.Named("session"))

	hub := server.NewHub(session, publisher, logger.Named("hub"))

	app := &application{
		Auth:      auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:    logger,
		Config:    cfg,
		Publisher: publisher,
		Matches:   matches,
		Session:   session,
		Hub:       hub,
		StartTime: time.Now(),
	}

	if !app.Auth.Enabled() {
		logger.Warn("No API keys configured, HTTP endpoints are open")
	}

	if err := app.serve(); err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}
