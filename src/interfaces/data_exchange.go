package interfaces

import (
	"market-sync/src/models"
	"market-sync/src/protocol"
)

// -----------------------------------------------------------------------------
// IMessageSink receives decoded engine messages (the reducer queue).
// -----------------------------------------------------------------------------

type IMessageSink interface {
	// Enqueue hands one message to the single reducer context.
	Enqueue(msg protocol.Message)
}

// -----------------------------------------------------------------------------
// ISnapshotStore is the read side handed to render clients and tools.
// -----------------------------------------------------------------------------

type ISnapshotStore interface {
	// -----------------------------------------------------------------------------
	// Snapshot returns the current immutable snapshot.
	Snapshot() models.MSnapshot

	// -----------------------------------------------------------------------------
	// Subscribe returns a channel carrying the latest snapshot after each change
	// and a cancel function.
	Subscribe() (<-chan models.MSnapshot, func())

	// -----------------------------------------------------------------------------
	// DismissNotice clears the visible notice.
	DismissNotice()
}

// -----------------------------------------------------------------------------
// IStateApplier applies a message synchronously. Used for optimistic updates.
// -----------------------------------------------------------------------------

type IStateApplier interface {
	Apply(msg protocol.Message) models.MSnapshot
}
