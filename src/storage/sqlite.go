package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"market-sync/src/logger"
	"market-sync/src/models"

	_ "modernc.org/sqlite"
)

// DefaultDSN is a shared in-memory database: the journal lives and dies with
// the process.
const DefaultDSN = "file:journal?mode=memory&cache=shared"

// -----------------------------------------------------------------------------

// AsyncSQLiteJournal records closed trades and engine notices for the local
// tools. It is a side channel of the snapshot, never its source.
type AsyncSQLiteJournal struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteJournal(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteJournal, error) {
	if cfg == nil {
		return nil, fmt.Errorf("journal requires a config")
	}
	if cfg.Storage.DBType != "" && cfg.Storage.DBType != "sqlite" {
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Storage.DBType)
	}
	return &AsyncSQLiteJournal{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// A single connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if !strings.Contains(dsn, "mode=memory") && dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			d.Logger.Warning("Failed to set WAL mode: %v", err)
		}
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.recreateTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) recreateTables() error {
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS trades"); err != nil {
		return fmt.Errorf("failed to drop trades: %w", err)
	}

	// oid halves are stored bit-for-bit as signed integers.
	query := `
		CREATE TABLE trades (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			asset TEXT NOT NULL,
			open REAL,
			close REAL,
			pnl REAL,
			fee REAL,
			is_long INTEGER,
			duration INTEGER,
			oid_open INTEGER,
			oid_close INTEGER,
			recorded_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create trades: %w", err)
	}
	if _, err := d.DB.Exec("CREATE INDEX idx_trades_asset ON trades (asset)"); err != nil {
		return fmt.Errorf("failed to index trades: %w", err)
	}

	if _, err := d.DB.Exec("DROP TABLE IF EXISTS notices"); err != nil {
		return fmt.Errorf("failed to drop notices: %w", err)
	}
	query = `
		CREATE TABLE notices (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message TEXT NOT NULL,
			recorded_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create notices: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) RecordTrade(asset string, t models.MTradeRecord) error {
	var duration sql.NullInt64
	if t.Duration != nil {
		duration = sql.NullInt64{Int64: int64(*t.Duration), Valid: true}
	}

	_, err := d.DB.Exec(`
		INSERT INTO trades (asset, open, close, pnl, fee, is_long, duration, oid_open, oid_close, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, asset, t.Open, t.Close, t.PnL, t.Fee, t.IsLong, duration,
		int64(t.Oid[0]), int64(t.Oid[1]), time.Now().UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) RecordNotice(message string) error {
	_, err := d.DB.Exec(
		"INSERT INTO notices (message, recorded_at) VALUES (?, ?)",
		message, time.Now().UTC().UnixMilli(),
	)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) TradesFor(asset string) ([]models.MTradeRecord, error) {
	rows, err := d.DB.Query(`
		SELECT open, close, pnl, fee, is_long, duration, oid_open, oid_close
		FROM trades WHERE asset = ? ORDER BY seq
	`, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.MTradeRecord{}
	for rows.Next() {
		var (
			t        models.MTradeRecord
			duration sql.NullInt64
			oidOpen  int64
			oidClose int64
		)
		if err := rows.Scan(&t.Open, &t.Close, &t.PnL, &t.Fee, &t.IsLong, &duration, &oidOpen, &oidClose); err != nil {
			return nil, err
		}
		if duration.Valid {
			v := uint64(duration.Int64)
			t.Duration = &v
		}
		t.Oid = [2]uint64{uint64(oidOpen), uint64(oidClose)}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) RecentNotices(limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	rows, err := d.DB.Query("SELECT message FROM notices ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notices := []string{}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		notices = append(notices, msg)
	}
	return notices, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteJournal) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
