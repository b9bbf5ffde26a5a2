package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-sync/src/config"
	"market-sync/src/logger"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Journal
	journal, err := setupJournal(conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init journal: %v", err)
	}

	// 2. Session (store, connection, dispatcher)
	sess := setupSession(conf.MConfig, appLogger, journal)
	if err := sess.Start(ctx); err != nil {
		appLogger.Critical("Failed to start session: %v", err)
	}

	// 3. Bridge and control servers
	srvs := startServers(ctx, conf, appLogger, sess, journal)

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srvs.stop(shutdownCtx)
	sess.Stop()
	if journal != nil {
		if err := journal.Close(); err != nil {
			appLogger.Warning("Journal close failed: %v", err)
		}
	}
	appLogger.Info("Shutdown complete.")
}
