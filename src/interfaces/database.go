package interfaces

import "market-sync/src/models"

// -----------------------------------------------------------------------------
// IJournal defines the contract for the in-process record of closed trades and
// engine notices.
// -----------------------------------------------------------------------------

type IJournal interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// RecordTrade stores one closed trade for asset.
	RecordTrade(asset string, trade models.MTradeRecord) error

	// -----------------------------------------------------------------------------

	// RecordNotice stores one engine notice.
	RecordNotice(message string) error

	// -----------------------------------------------------------------------------

	// TradesFor returns the recorded trades of asset in arrival order.
	TradesFor(asset string) ([]models.MTradeRecord, error)

	// -----------------------------------------------------------------------------

	// RecentNotices returns up to limit notices, newest first.
	RecentNotices(limit int) ([]string, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
