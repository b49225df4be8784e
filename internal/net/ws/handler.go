// Package ws carries client sessions over gorilla websockets.
package ws

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"platform-fighter/server"
	"platform-fighter/server/internal/identity"
	"platform-fighter/server/internal/net/proto"
	"platform-fighter/server/internal/telemetry"
)

// Hub is the part of the simulation context a session talks to.
type Hub interface {
	Connect(ctx context.Context, id identity.Identity, conn server.Conn) error
	Disconnect(ctx context.Context, playerID string, conn server.Conn, reason string) error
	Handle(ctx context.Context, playerID string, conn server.Conn, msg proto.ClientMessage) error
}

// HandlerConfig wires a Handler. A nil Identity admits guests only.
type HandlerConfig struct {
	Logger   telemetry.Logger
	Identity *identity.Service
	Session  SessionConfig
	// CallTimeout bounds each hop onto the simulation loop.
	CallTimeout time.Duration
}

// Handler upgrades HTTP requests into hub sessions.
type Handler struct {
	hub         Hub
	logger      telemetry.Logger
	identity    *identity.Service
	session     SessionConfig
	callTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewHandler constructs a websocket handler for hub.
func NewHandler(hub Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	ids := cfg.Identity
	if ids == nil {
		ids = &identity.Service{AllowGuests: true}
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:         hub,
		logger:      logger,
		identity:    ids,
		session:     cfg.Session.withDefaults(),
		callTimeout: timeout,
		upgrader:    upgrader,
	}
}

// Handle resolves the caller's identity, upgrades the connection and runs
// the session until either side closes it. Query parameters: token (or an
// Authorization bearer header), name and codec.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	codec, err := proto.CodecByName(query.Get("codec"))
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	who, err := h.identity.Resolve(r.Context(), bearerToken(r), query.Get("name"))
	if err != nil {
		status := nethttp.StatusUnauthorized
		if !errors.Is(err, identity.ErrUnauthorized) && !errors.Is(err, identity.ErrMissingToken) {
			status = nethttp.StatusBadGateway
		}
		h.logger.Printf("[ws] rejecting connection: %v", err)
		nethttp.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed for %s: %v", who.ID, err)
		return
	}

	sess := newSession(conn, codec, h.session, h.logger)
	go sess.writePump()

	if err := h.call(func(ctx context.Context) error { return h.hub.Connect(ctx, who, sess) }); err != nil {
		h.logger.Printf("[ws] connect failed for %s: %v", who.ID, err)
		sess.Close()
		<-sess.written
		return
	}

	reason := sess.readPump(func(msg proto.ClientMessage) bool {
		err := h.call(func(ctx context.Context) error { return h.hub.Handle(ctx, who.ID, sess, msg) })
		if errors.Is(err, server.ErrUnknownPlayer) {
			return false
		}
		if err != nil {
			h.logger.Printf("[ws] dropping %s from %s: %v", msg.Type, who.ID, err)
		}
		return true
	})

	if err := h.call(func(ctx context.Context) error { return h.hub.Disconnect(ctx, who.ID, sess, reason) }); err != nil {
		h.logger.Printf("[ws] disconnect of %s failed: %v", who.ID, err)
	}
	sess.Close()
	<-sess.written
}

func (h *Handler) call(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.callTimeout)
	defer cancel()
	return fn(ctx)
}

func bearerToken(r *nethttp.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
