package server

import (
	"bytes"
	"context"
	"net/http"

	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// dismissNoticeMessage is the one client message that is not an engine command.
var dismissNoticeMessage = []byte(`"dismissNotice"`)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the client set. Every client gets the current snapshot on
// register and every published snapshot afterwards.
func (s *BridgeServer) runHub(ctx context.Context) {
	updates, cancel := s.store.Subscribe()
	defer cancel()
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int32(len(s.clients)))
			client.send <- s.store.Snapshot()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
			}

		case snap, ok := <-updates:
			if !ok {
				return
			}
			for client := range s.clients {
				select {
				case client.send <- snap:
				default:
					// Client too slow, disconnect to keep the hub moving
					s.drop(client)
				}
			}
		}
	}
}

// drop must only be called from runHub.
func (s *BridgeServer) drop(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.connections.Store(int32(len(s.clients)))
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		send: make(chan models.MSnapshot, 16),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage accepts either "dismissNotice" or one engine command in
// its wire form. Anything else is logged and ignored.
func (s *BridgeServer) HandleClientMessage(client *Client, message []byte) {
	if bytes.Equal(bytes.TrimSpace(message), dismissNoticeMessage) {
		s.store.DismissNotice()
		return
	}

	cmd, err := protocol.DecodeCommand(message)
	if err != nil {
		s.Logger.Info("Ignoring client message: %v", err)
		return
	}
	s.sender.Submit(cmd)
}
