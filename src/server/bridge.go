// Package server is the render bridge: it exposes the synchronized snapshot to
// render clients over HTTP and a WebSocket fan-out, and accepts their commands.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// BridgeServer
// -----------------------------------------------------------------------------

type BridgeServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	store   interfaces.ISnapshotStore
	sender  interfaces.ICommandSender
	status  interfaces.IConnectionStatus
	journal interfaces.IJournal

	// WebSocket clients, owned by the hub loop
	clients     map[*Client]struct{}
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	connections atomic.Int32
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewBridgeServer wires the bridge. journal may be nil.
func NewBridgeServer(
	cfg *models.MConfig,
	log *logger.Logger,
	store interfaces.ISnapshotStore,
	sender interfaces.ICommandSender,
	status interfaces.IConnectionStatus,
	journal interfaces.IJournal,
) *BridgeServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &BridgeServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.New(),
		store:      store,
		sender:     sender,
		status:     status,
		journal:    journal,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	s.engine.Use(gin.Recovery())

	// Render clients run on the loopback interface.
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *BridgeServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/snapshot", s.getSnapshot)
	api.GET("/markets/:asset", s.getMarket)
	api.GET("/trades/:asset", s.getTrades)
	api.GET("/notices", s.getNotices)
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.POST("/command", s.postCommand)
	api.DELETE("/notice", s.deleteNotice)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *BridgeServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves until Stop. It returns nil after a clean stop.
func (s *BridgeServer) Start(ctx context.Context) error {
	s.Logger.Info("Starting bridge on %s", s.http.Addr)

	go s.runHub(ctx)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *BridgeServer) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) getMarket(c *gin.Context) {
	asset := protocol.NormalizeAsset(c.Param("asset"))
	market, ok := s.store.Snapshot().Market(asset)
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("unknown asset %s", asset))
		return
	}
	c.JSON(http.StatusOK, market)
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) getTrades(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("journal disabled"))
		return
	}
	asset := protocol.NormalizeAsset(c.Param("asset"))
	trades, err := s.journal.TradesFor(asset)
	if err != nil {
		s.Logger.Error("Journal read for %s failed: %v", asset, err)
		c.JSON(http.StatusInternalServerError, errorBody("journal read failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "trades": trades})
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) getNotices(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("journal disabled"))
		return
	}
	limit := defaultNoticeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("invalid limit %q", raw))
			return
		}
		limit = n
	}
	notices, err := s.journal.RecentNotices(limit)
	if err != nil {
		s.Logger.Error("Journal read failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("journal read failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) getHealth(c *gin.Context) {
	snap := s.store.Snapshot()
	connection := "unknown"
	if s.status != nil {
		connection = s.status.StateName()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"engine":      connection,
		"connections": s.connections.Load(),
		"markets":     len(snap.Markets),
	})
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timeframes": timeFrameOptions(),
		"indicators": indicatorOptions(),
	})
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) postCommand(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("unreadable body"))
		return
	}
	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("%v", err))
		return
	}

	s.sender.Submit(cmd)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "command": cmd.CommandTag()})
}

// -----------------------------------------------------------------------------

func (s *BridgeServer) deleteNotice(c *gin.Context) {
	s.store.DismissNotice()
	c.Status(http.StatusNoContent)
}
