package interfaces

import "market-sync/src/protocol"

// -----------------------------------------------------------------------------
// ICommandSender defines the contract for fire-and-forget engine commands.
// -----------------------------------------------------------------------------

type ICommandSender interface {

	// -----------------------------------------------------------------------------

	// Submit applies the command's optimistic update, if any, and sends it.
	// It never waits for the engine; effects arrive later as push messages.
	Submit(cmd protocol.Command)
}

// -----------------------------------------------------------------------------
// IConnectionStatus exposes the push connection state for health reporting.
// -----------------------------------------------------------------------------

type IConnectionStatus interface {
	StateName() string
}
