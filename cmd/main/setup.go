package main

import (
	"market-sync/src/config"
	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/session"
	"market-sync/src/storage"
)

// -----------------------------------------------------------------------------

// setupJournal opens the in-process journal, or returns nil when disabled.
func setupJournal(conf *config.Config, appLogger *logger.Logger) (interfaces.IJournal, error) {
	if !conf.JournalEnabled() {
		appLogger.Info("Journal disabled")
		return nil, nil
	}

	journal, err := storage.NewAsyncSQLiteJournal(conf.MConfig, appLogger.Named("Journal"))
	if err != nil {
		return nil, err
	}
	if err := journal.Initialize(); err != nil {
		return nil, err
	}
	return journal, nil
}

// -----------------------------------------------------------------------------

// setupSession builds the single synchronization session of the process.
func setupSession(cfg *models.MConfig, appLogger *logger.Logger, journal interfaces.IJournal) *session.Session {
	return session.New(cfg, appLogger.Named("Session"), journal)
}
