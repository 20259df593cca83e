package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/storeloop/danbot/internal/carrier"
	"github.com/storeloop/danbot/internal/config"
	"github.com/storeloop/danbot/internal/llm"
	"github.com/storeloop/danbot/internal/logger"
	"github.com/storeloop/danbot/internal/relay"
	"github.com/storeloop/danbot/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	var store session.Store
	switch cfg.Session.Backend {
	case "sqlite":
		sqliteStore, err := session.NewSQLiteStore(cfg.Session.DBPath, cfg.Session.MaxPairs)
		if err != nil {
			logger.L.Warn("sqlite open failed, using in-memory sessions", "error", err)
			store = session.NewMemoryStore(cfg.Session.MaxPairs)
		} else {
			defer sqliteStore.Close()
			store = sqliteStore
		}
	default:
		store = session.NewMemoryStore(cfg.Session.MaxPairs)
	}

	completer := llm.NewCompleter(llm.NewClient(cfg.LLM), cfg.LLM)
	sender := carrier.New(cfg.Twilio)
	handler := relay.NewHandler(store, completer, sender, cfg.Persona, cfg.Session.MaxPairs)

	mux := http.NewServeMux()
	handler.Routes(mux)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
